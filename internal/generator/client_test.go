// internal/generator/client_test.go
package generator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(Config{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		Backoff:    5 * time.Millisecond,
	}, logger.NewTestLogger(t))
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		w.Write([]byte(`{"content":"Dear hiring team, ..."}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	content, err := client.Generate(context.Background(), "write a cover letter")

	require.NoError(t, err)
	assert.Equal(t, "Dear hiring team, ...", content)
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"content":"recovered"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	content, err := client.Generate(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerate_EmptyContentAfterRetriesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":""}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeGenerationFailed))
}

func TestGenerate_ContextCancelledReturnsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL)
	_, err := client.Generate(ctx, "prompt")

	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeGenerationTimeout))
}
