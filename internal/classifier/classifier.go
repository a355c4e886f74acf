// internal/classifier/classifier.go
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/metrics"
	"autoapply/internal/generator"
	"autoapply/internal/models"
)

// actionLanguage marks replies that ask the candidate to do something.
var actionLanguage = regexp.MustCompile(`(?i)\b(schedule|availability|available|confirm|respond|reply by|deadline|call us|book|complete the)\b`)

var validResponseTypes = map[models.ResponseType]bool{
	models.ResponsePositive:         true,
	models.ResponseNegative:         true,
	models.ResponseNeutral:          true,
	models.ResponseInterviewRequest: true,
	models.ResponseRejection:        true,
	models.ResponseUnknown:          true,
}

// classification is the JSON shape the generator is asked to return.
type classification struct {
	ResponseType string `json:"responseType"`
	Sentiment    string `json:"sentiment"`
}

// Classifier derives responseType, sentiment, actionRequired and priority
// for a recruiter reply. Classification is best-effort: any generator or
// parse failure leaves the input untouched so it can be retried later.
type Classifier struct {
	gen    generator.Client
	logger logger.Logger
}

func New(gen generator.Client, log logger.Logger) *Classifier {
	return &Classifier{
		gen:    gen,
		logger: log.WithFields(map[string]interface{}{"component": "classifier"}),
	}
}

// Classify returns a classified copy of the response with parsed=true, or
// the input unchanged plus CLASSIFICATION_DEFERRED when classification
// could not complete. FromEmail, Subject, Body and ReceivedAt are never
// modified either way.
func (c *Classifier) Classify(ctx context.Context, resp models.RecruiterResponse) (models.RecruiterResponse, error) {
	raw, err := c.gen.Generate(ctx, buildClassificationPrompt(resp))
	if err != nil {
		return resp, stderrors.NewClassificationDeferredError(err)
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		c.logger.Warn("unparseable classification output", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return resp, stderrors.NewClassificationDeferredError(err)
	}

	resp.ResponseType = parsed.responseType
	resp.Sentiment = parsed.sentiment
	resp.Priority = basePriority(parsed.responseType)
	resp.ActionRequired = parsed.responseType == models.ResponseInterviewRequest ||
		actionLanguage.MatchString(resp.Body)

	// Interview requests already carry the action signal in their type;
	// escalation applies to the other types when the reply demands action.
	if resp.ActionRequired && parsed.responseType != models.ResponseInterviewRequest {
		resp.Priority = resp.Priority.Escalate()
	}

	resp.Parsed = true
	metrics.Classifications.WithLabelValues(string(resp.ResponseType)).Inc()
	return resp, nil
}

type parsedClassification struct {
	responseType models.ResponseType
	sentiment    string
}

func parseClassification(raw string) (parsedClassification, error) {
	var out classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &out); err != nil {
		return parsedClassification{}, fmt.Errorf("classification is not valid JSON: %w", err)
	}

	rt := models.ResponseType(strings.ToLower(strings.TrimSpace(out.ResponseType)))
	if !validResponseTypes[rt] {
		return parsedClassification{}, fmt.Errorf("unknown responseType %q", out.ResponseType)
	}
	return parsedClassification{responseType: rt, sentiment: out.Sentiment}, nil
}

// basePriority maps a response type to its default attention level.
func basePriority(rt models.ResponseType) models.Priority {
	switch rt {
	case models.ResponseInterviewRequest:
		return models.PriorityHigh
	case models.ResponseRejection:
		return models.PriorityLow
	default:
		return models.PriorityNormal
	}
}

func buildClassificationPrompt(resp models.RecruiterResponse) string {
	var b strings.Builder
	b.WriteString("Classify the following recruiter reply to a job application.\n")
	b.WriteString(`Return only JSON: {"responseType": "positive|negative|neutral|interview_request|rejection|unknown", "sentiment": "<one word>"}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Subject: %s\n\n%s", resp.Subject, resp.Body)
	return b.String()
}
