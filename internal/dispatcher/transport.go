// internal/dispatcher/transport.go
package dispatcher

import (
	"context"

	"autoapply/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Envelope is one outbound message handed to the mail transport.
// MailID is the pipeline-generated correlation id for this attempt.
type Envelope struct {
	MailID  string
	To      string
	From    string
	Subject string
	Body    string
}

// Transport accepts a composed message for delivery. Acceptance is an
// acknowledgment, not a delivery guarantee; delivery outcomes arrive later
// as DeliveryEvents.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
}

// SESAPI is the slice of the SES client the transport needs.
type SESAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESTransport sends envelopes through AWS SES, tagging each message with
// the pipeline mail id so delivery notifications can be correlated.
type SESTransport struct {
	client SESAPI
	logger logger.Logger
}

func NewSESTransport(client SESAPI, log logger.Logger) *SESTransport {
	return &SESTransport{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "ses-transport"}),
	}
}

func (t *SESTransport) Send(ctx context.Context, env Envelope) error {
	out, err := t.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses: []string{env.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(env.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(env.Body)},
			},
		},
		Tags: []types.MessageTag{
			{Name: aws.String("mail-id"), Value: aws.String(env.MailID)},
		},
	})
	if err != nil {
		return err
	}

	t.logger.Debug("transport accepted message", map[string]interface{}{
		"mailId":       env.MailID,
		"sesMessageId": aws.ToString(out.MessageId),
	})
	return nil
}
