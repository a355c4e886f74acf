// internal/generator/client.go
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	stderrors "autoapply/internal/common/errors"
	commonhttp "autoapply/internal/common/http"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/metrics"
)

// Client is the content generation capability used by the composer and the
// response classifier. Implementations must be safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int           // retries after the first attempt
	Backoff    time.Duration // initial backoff, doubled per retry
}

// HTTPClient talks to the generation service over JSON.
type HTTPClient struct {
	config Config
	client *commonhttp.Client
	logger logger.Logger
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Content string `json:"content"`
}

func NewHTTPClient(config Config, log logger.Logger) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.Backoff == 0 {
		config.Backoff = time.Second
	}
	return &HTTPClient{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{"component": "generator"}),
	}
}

// Generate calls the generation service, retrying transient failures with
// exponential backoff. Empty content after exhausting retries is an error.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := c.config.Backoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.GeneratorRequests.WithLabelValues("timeout").Inc()
				return "", stderrors.NewGenerationTimeoutError()
			}
			backoff *= 2
		}

		content, err := c.generateOnce(ctx, prompt)
		if err == nil && content != "" {
			metrics.GeneratorRequests.WithLabelValues("success").Inc()
			return content, nil
		}
		if err == nil {
			err = fmt.Errorf("generator returned empty content")
		}
		if ctx.Err() != nil {
			metrics.GeneratorRequests.WithLabelValues("timeout").Inc()
			return "", stderrors.NewGenerationTimeoutError()
		}
		lastErr = err
		c.logger.Warn("generator call failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	metrics.GeneratorRequests.WithLabelValues("failed").Inc()
	return "", stderrors.NewGenerationFailedError(lastErr)
}

func (c *HTTPClient) generateOnce(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/ai/generate", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generator returned status %d: %s", resp.StatusCode, string(payload))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return out.Content, nil
}
