// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/common/logger"
	"autoapply/internal/common/metrics"
	"autoapply/internal/models"

	"github.com/google/uuid"
)

// backoffSchedule spaces the send retries for one application.
var backoffSchedule = []time.Duration{1 * time.Second, 4 * time.Second, 10 * time.Second}

// Dispatcher takes a composed draft through the approval gate, the quota
// reservation, and the transport, recording every attempt in email_logs.
type Dispatcher struct {
	db          *sql.DB
	transport   Transport
	quota       *QuotaReserver
	fromEmail   string
	maxAttempts int
	backoff     []time.Duration
	logger      logger.Logger
	now         func() time.Time
}

func New(db *sql.DB, transport Transport, quota *QuotaReserver, fromEmail string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		transport:   transport,
		quota:       quota,
		fromEmail:   fromEmail,
		maxAttempts: 3,
		backoff:     backoffSchedule,
		logger:      log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		now:         time.Now,
	}
}

// WithMaxAttempts overrides the per-application send attempt count.
func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

// CreateApplication persists a new draft application for a matched job.
// The UNIQUE(user_id, job_id) constraint makes a repeat match a hard error
// rather than a second application.
func (d *Dispatcher) CreateApplication(ctx context.Context, userID string, draft *models.ApplicationDraft) (*models.Application, error) {
	app := &models.Application{
		ID:             uuid.New().String(),
		UserID:         userID,
		JobID:          draft.JobID,
		Status:         models.StatusDraft,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      d.now().UTC(),
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO applications (id, user_id, job_id, status, approval_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.UserID, app.JobID, app.Status, app.ApprovalStatus, app.CreatedAt)
	if err != nil {
		return nil, stderrors.NewDatabaseInsertFailedError(err)
	}
	return app, nil
}

// Approve records a human approval decision on a draft application.
func (d *Dispatcher) Approve(ctx context.Context, applicationID string, approved bool) error {
	status := models.ApprovalApproved
	if !approved {
		status = models.ApprovalRejected
	}
	_, err := d.db.ExecContext(ctx,
		`UPDATE applications SET approval_status = $2 WHERE id = $1`,
		applicationID, status)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Dispatch sends one draft application. The approval gate is checked before
// any quota or transport contact; the quota slot is reserved before the
// first attempt and kept on failure (a failed send still consumed the
// user's intent for the day and is surfaced for manual retry).
func (d *Dispatcher) Dispatch(ctx context.Context, app *models.Application, draft *models.ApplicationDraft, settings *models.AutoApplicationSettings) (*models.EmailLog, error) {
	if settings.RequireApproval && app.ApprovalStatus != models.ApprovalApproved {
		return nil, stderrors.NewApprovalPendingError(app.ID)
	}

	if err := d.quota.Reserve(ctx, app.UserID, settings.MaxApplicationsPerDay); err != nil {
		if stderrors.IsQuotaExceeded(err) {
			metrics.QuotaSkips.Inc()
		}
		return nil, err
	}

	if err := d.setApplicationStatus(ctx, app.ID, models.StatusPending); err != nil {
		d.quota.Release(ctx, app.UserID)
		return nil, err
	}
	app.Status = models.StatusPending

	var lastLog *models.EmailLog
	var lastErr error
	for attempt := 0; attempt < d.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.waitBackoff(ctx, attempt-1); err != nil {
				lastErr = err
				break
			}
		}

		emailLog, err := d.insertEmailLog(ctx, app.ID, draft, attempt)
		if err != nil {
			return nil, err
		}
		lastLog = emailLog

		sendErr := d.transport.Send(ctx, Envelope{
			MailID:  emailLog.MailID,
			To:      draft.ToEmail,
			From:    d.fromEmail,
			Subject: draft.Subject,
			Body:    draft.Body,
		})
		if sendErr == nil {
			metrics.DispatchAttempts.WithLabelValues("success").Inc()
			if err := d.markSent(ctx, app, emailLog); err != nil {
				return nil, err
			}
			d.logger.Info("application sent", map[string]interface{}{
				"applicationId": app.ID,
				"mailId":        emailLog.MailID,
				"retries":       attempt,
			})
			return emailLog, nil
		}

		metrics.DispatchAttempts.WithLabelValues("failure").Inc()
		lastErr = sendErr
		d.markLogFailed(ctx, emailLog, sendErr)
		d.logger.Warn("send attempt failed", map[string]interface{}{
			"applicationId": app.ID,
			"mailId":        emailLog.MailID,
			"attempt":       attempt + 1,
			"error":         sendErr.Error(),
		})
	}

	if err := d.setApplicationStatus(ctx, app.ID, models.StatusFailed); err != nil {
		return lastLog, err
	}
	app.Status = models.StatusFailed
	return lastLog, stderrors.NewTransportSendFailedError(fmt.Errorf("application %s: %w", app.ID, lastErr))
}

// WithBackoff overrides the retry spacing.
func (d *Dispatcher) WithBackoff(schedule []time.Duration) *Dispatcher {
	if len(schedule) > 0 {
		d.backoff = schedule
	}
	return d
}

func (d *Dispatcher) waitBackoff(ctx context.Context, idx int) error {
	if idx >= len(d.backoff) {
		idx = len(d.backoff) - 1
	}
	select {
	case <-time.After(d.backoff[idx]):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// insertEmailLog records one send attempt with a fresh mail id.
func (d *Dispatcher) insertEmailLog(ctx context.Context, applicationID string, draft *models.ApplicationDraft, retries int) (*models.EmailLog, error) {
	emailLog := &models.EmailLog{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		MailID:        uuid.New().String(),
		ToEmail:       draft.ToEmail,
		FromEmail:     d.fromEmail,
		Subject:       draft.Subject,
		Body:          draft.Body,
		SentStatus:    models.SentStatusPending,
		Retries:       retries,
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, application_id, mail_id, to_email, from_email, subject, body, sent_status, retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		emailLog.ID, emailLog.ApplicationID, emailLog.MailID, emailLog.ToEmail, emailLog.FromEmail,
		emailLog.Subject, emailLog.Body, emailLog.SentStatus, emailLog.Retries, d.now().UTC())
	if err != nil {
		return nil, stderrors.NewDatabaseInsertFailedError(err)
	}
	return emailLog, nil
}

func (d *Dispatcher) markSent(ctx context.Context, app *models.Application, emailLog *models.EmailLog) error {
	sentAt := d.now().UTC()

	_, err := d.db.ExecContext(ctx,
		`UPDATE email_logs SET sent_status = $2, sent_at = $3 WHERE id = $1`,
		emailLog.ID, models.SentStatusSent, sentAt)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	_, err = d.db.ExecContext(ctx,
		`UPDATE applications SET status = $2, mail_id = $3, sent_at = $4 WHERE id = $1`,
		app.ID, models.StatusSent, emailLog.MailID, sentAt)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	emailLog.SentStatus = models.SentStatusSent
	emailLog.SentAt = &sentAt
	app.Status = models.StatusSent
	app.MailID = emailLog.MailID
	app.SentAt = &sentAt
	return nil
}

func (d *Dispatcher) markLogFailed(ctx context.Context, emailLog *models.EmailLog, sendErr error) {
	_, err := d.db.ExecContext(ctx,
		`UPDATE email_logs SET sent_status = $2, error_message = $3 WHERE id = $1`,
		emailLog.ID, models.SentStatusFailed, sendErr.Error())
	if err != nil {
		d.logger.Error("failed to record send failure", map[string]interface{}{
			"emailLogId": emailLog.ID,
			"error":      err.Error(),
		})
	}
	emailLog.SentStatus = models.SentStatusFailed
}

func (d *Dispatcher) setApplicationStatus(ctx context.Context, applicationID string, status models.ApplicationStatus) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE applications SET status = $2 WHERE id = $1`,
		applicationID, status)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
