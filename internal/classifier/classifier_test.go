// internal/classifier/classifier_test.go
package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	content string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func testResponse(body string) models.RecruiterResponse {
	return models.RecruiterResponse{
		ID:            "resp-1",
		ApplicationID: "app-1",
		FromEmail:     "recruiter@acme.io",
		Subject:       "Re: Application for Backend Developer",
		Body:          body,
		ReceivedAt:    time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Parsed:        false,
	}
}

func TestClassify_InterviewRequestIsHighPriority(t *testing.T) {
	gen := &fakeGenerator{content: `{"responseType": "interview_request", "sentiment": "positive"}`}
	c := New(gen, logger.NewTestLogger(t))

	in := testResponse("We would like to schedule a call. What is your availability next week?")
	out, err := c.Classify(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, out.Parsed)
	assert.Equal(t, models.ResponseInterviewRequest, out.ResponseType)
	assert.Equal(t, models.PriorityHigh, out.Priority)
	assert.True(t, out.ActionRequired)
	// Original message fields untouched.
	assert.Equal(t, in.FromEmail, out.FromEmail)
	assert.Equal(t, in.Body, out.Body)
	assert.Equal(t, in.ReceivedAt, out.ReceivedAt)
}

func TestClassify_RejectionIsLowPriority(t *testing.T) {
	gen := &fakeGenerator{content: `{"responseType": "rejection", "sentiment": "negative"}`}
	c := New(gen, logger.NewTestLogger(t))

	out, err := c.Classify(context.Background(), testResponse("We decided to move forward with other candidates."))
	require.NoError(t, err)
	assert.Equal(t, models.ResponseRejection, out.ResponseType)
	assert.Equal(t, models.PriorityLow, out.Priority)
	assert.False(t, out.ActionRequired)
}

func TestClassify_ActionLanguageEscalates(t *testing.T) {
	gen := &fakeGenerator{content: `{"responseType": "neutral", "sentiment": "neutral"}`}
	c := New(gen, logger.NewTestLogger(t))

	out, err := c.Classify(context.Background(), testResponse("Please confirm your availability by Friday."))
	require.NoError(t, err)
	assert.Equal(t, models.ResponseNeutral, out.ResponseType)
	assert.True(t, out.ActionRequired)
	// Neutral's normal priority, escalated one level.
	assert.Equal(t, models.PriorityHigh, out.Priority)
}

func TestClassify_GeneratorFailureLeavesInputUnchanged(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("generator down")}
	c := New(gen, logger.NewTestLogger(t))

	in := testResponse("Thanks for applying.")
	out, err := c.Classify(context.Background(), in)
	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeClassificationDeferred))

	assert.False(t, out.Parsed)
	assert.Empty(t, out.ResponseType)
	assert.Equal(t, in, out)
}

func TestClassify_UnparseableOutputDefers(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "the reply looks positive to me"},
		{name: "unknown type", content: `{"responseType": "enthusiastic", "sentiment": "positive"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeGenerator{content: tt.content}, logger.NewTestLogger(t))

			in := testResponse("body")
			out, err := c.Classify(context.Background(), in)
			require.Error(t, err)
			assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeClassificationDeferred))
			assert.Equal(t, in, out)
		})
	}
}
