// internal/inbound/ingest.go
package inbound

import (
	"context"
	"database/sql"

	"autoapply/internal/classifier"
	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/models"

	"github.com/google/uuid"
)

// Ingestor stores recruiter replies, correlates them to applications and
// runs classification. Replies that cannot be classified yet stay queued
// with parsed=false and are picked up again by ReprocessPending.
type Ingestor struct {
	db         *sql.DB
	classifier *classifier.Classifier
	alerter    Alerter
	logger     logger.Logger
}

func NewIngestor(db *sql.DB, cls *classifier.Classifier, alerter Alerter, log logger.Logger) *Ingestor {
	if alerter == nil {
		alerter = NoOpAlerter{}
	}
	return &Ingestor{
		db:         db,
		classifier: cls,
		alerter:    alerter,
		logger:     log.WithFields(map[string]interface{}{"component": "inbound-ingestor"}),
	}
}

// Ingest correlates an inbound reply to its application via the outbound
// mail id, stores it, and classifies it. A classification failure is not an
// ingestion failure: the stored row stays unparsed for a later retry.
func (i *Ingestor) Ingest(ctx context.Context, email models.InboundEmail) (*models.RecruiterResponse, error) {
	var emailLogID, applicationID string
	err := i.db.QueryRowContext(ctx,
		`SELECT id, application_id FROM email_logs WHERE mail_id = $1`,
		email.CorrelationID).Scan(&emailLogID, &applicationID)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewResponseUnmatchedError(email.CorrelationID)
	}
	if err != nil {
		return nil, stderrors.NewDatabaseQueryFailedError(err)
	}

	resp := models.RecruiterResponse{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		EmailLogID:    emailLogID,
		FromEmail:     email.FromEmail,
		Subject:       email.Subject,
		Body:          email.Body,
		ReceivedAt:    email.ReceivedAt.UTC(),
		Parsed:        false,
	}

	_, err = i.db.ExecContext(ctx, `
		INSERT INTO recruiter_responses
			(id, application_id, email_log_id, from_email, subject, body, received_at, parsed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		resp.ID, resp.ApplicationID, resp.EmailLogID, resp.FromEmail,
		resp.Subject, resp.Body, resp.ReceivedAt, resp.Parsed)
	if err != nil {
		return nil, stderrors.NewDatabaseInsertFailedError(err)
	}

	classified, err := i.classifier.Classify(ctx, resp)
	if err != nil {
		i.logger.Warn("classification deferred, reply stays queued", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return &resp, nil
	}

	if err := i.storeClassification(ctx, classified); err != nil {
		return nil, err
	}
	i.maybeAlert(ctx, &classified)
	return &classified, nil
}

// ReprocessPending re-runs classification for queued replies and returns
// how many were classified this pass.
func (i *Ingestor) ReprocessPending(ctx context.Context) (int, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT id, application_id, email_log_id, from_email, subject, body, received_at
		FROM recruiter_responses
		WHERE parsed = FALSE
		ORDER BY received_at`)
	if err != nil {
		return 0, stderrors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	var pending []models.RecruiterResponse
	for rows.Next() {
		var r models.RecruiterResponse
		if err := rows.Scan(&r.ID, &r.ApplicationID, &r.EmailLogID,
			&r.FromEmail, &r.Subject, &r.Body, &r.ReceivedAt); err != nil {
			return 0, stderrors.NewDatabaseQueryFailedError(err)
		}
		pending = append(pending, r)
	}
	if err := rows.Err(); err != nil {
		return 0, stderrors.NewDatabaseQueryFailedError(err)
	}

	classified := 0
	for _, r := range pending {
		out, err := i.classifier.Classify(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return classified, ctx.Err()
			}
			continue
		}
		if err := i.storeClassification(ctx, out); err != nil {
			return classified, err
		}
		i.maybeAlert(ctx, &out)
		classified++
	}

	if len(pending) > 0 {
		i.logger.Info("reprocessed pending replies", map[string]interface{}{
			"pending":    len(pending),
			"classified": classified,
		})
	}
	return classified, nil
}

func (i *Ingestor) storeClassification(ctx context.Context, resp models.RecruiterResponse) error {
	_, err := i.db.ExecContext(ctx, `
		UPDATE recruiter_responses
		SET parsed = TRUE, response_type = $2, sentiment = $3, action_required = $4, priority = $5
		WHERE id = $1`,
		resp.ID, resp.ResponseType, resp.Sentiment, resp.ActionRequired, resp.Priority)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// maybeAlert publishes a notification for replies that demand action soon.
// Alert delivery is best-effort; a publish failure never fails ingestion.
// A delivered alert marks the reply processed so it is not surfaced again.
func (i *Ingestor) maybeAlert(ctx context.Context, resp *models.RecruiterResponse) {
	if !resp.ActionRequired {
		return
	}
	if resp.Priority != models.PriorityHigh && resp.Priority != models.PriorityUrgent {
		return
	}
	if err := i.alerter.Notify(ctx, *resp); err != nil {
		i.logger.Error("alert publish failed", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return
	}
	if _, err := i.db.ExecContext(ctx,
		`UPDATE recruiter_responses SET processed = TRUE WHERE id = $1`, resp.ID); err != nil {
		i.logger.Error("processed flag update failed", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return
	}
	resp.Processed = true
}
