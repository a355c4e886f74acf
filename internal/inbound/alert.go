// internal/inbound/alert.go
package inbound

import (
	"context"
	"encoding/json"

	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Alerter notifies the user about replies that need their attention.
type Alerter interface {
	Notify(ctx context.Context, resp models.RecruiterResponse) error
}

// SNSAPI is the slice of the SNS client the alerter needs.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSAlerter publishes an action-required notification to an SNS topic.
type SNSAlerter struct {
	client   SNSAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSAlerter(client SNSAPI, topicARN string, log logger.Logger) *SNSAlerter {
	return &SNSAlerter{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "sns-alerter"}),
	}
}

func (a *SNSAlerter) Notify(ctx context.Context, resp models.RecruiterResponse) error {
	payload, err := json.Marshal(map[string]interface{}{
		"responseId":    resp.ID,
		"applicationId": resp.ApplicationID,
		"responseType":  resp.ResponseType,
		"priority":      resp.Priority,
		"fromEmail":     resp.FromEmail,
		"subject":       resp.Subject,
	})
	if err != nil {
		return err
	}

	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String("Recruiter reply needs your attention"),
		Message:  aws.String(string(payload)),
	})
	if err != nil {
		return err
	}

	a.logger.Info("action-required alert published", map[string]interface{}{
		"responseId": resp.ID,
		"priority":   string(resp.Priority),
	})
	return nil
}

// NoOpAlerter is used when SNS alerting is switched off.
type NoOpAlerter struct{}

func (NoOpAlerter) Notify(ctx context.Context, resp models.RecruiterResponse) error { return nil }
