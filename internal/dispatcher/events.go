// internal/dispatcher/events.go
package dispatcher

import (
	"context"
	"database/sql"
	"time"

	stderrors "autoapply/internal/common/errors"
	"autoapply/internal/models"
)

// DeliveryEvent is an asynchronous transport notification about a message
// that was previously accepted for delivery.
type DeliveryEvent struct {
	MailID    string            `json:"mailId"`
	Status    models.SentStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// HandleDeliveryEvent applies a transport notification to the email log and
// its application. Transitions that do not advance the lifecycle (stale or
// duplicate events) are dropped without error, which makes redelivery of
// the same notification a no-op.
func (d *Dispatcher) HandleDeliveryEvent(ctx context.Context, ev DeliveryEvent) error {
	var logID, applicationID string
	var current models.SentStatus

	err := d.db.QueryRowContext(ctx,
		`SELECT id, application_id, sent_status FROM email_logs WHERE mail_id = $1`,
		ev.MailID).Scan(&logID, &applicationID, &current)
	if err == sql.ErrNoRows {
		return stderrors.NewResponseUnmatchedError(ev.MailID)
	}
	if err != nil {
		return stderrors.NewDatabaseQueryFailedError(err)
	}

	if !models.CanTransition(current, ev.Status) {
		d.logger.Debug("delivery event ignored", map[string]interface{}{
			"mailId": ev.MailID,
			"from":   string(current),
			"to":     string(ev.Status),
		})
		return nil
	}

	ts := ev.Timestamp.UTC()
	if ts.IsZero() {
		ts = d.now().UTC()
	}

	if err := d.applyLogTransition(ctx, logID, ev.Status, ts); err != nil {
		return err
	}

	appStatus, ok := applicationStatusFor(ev.Status)
	if !ok {
		return nil
	}
	return d.setApplicationStatus(ctx, applicationID, appStatus)
}

func (d *Dispatcher) applyLogTransition(ctx context.Context, logID string, status models.SentStatus, ts time.Time) error {
	var query string
	var err error
	switch status {
	case models.SentStatusSent:
		query = `UPDATE email_logs SET sent_status = $2, sent_at = $3 WHERE id = $1`
	case models.SentStatusDelivered:
		query = `UPDATE email_logs SET sent_status = $2, delivered_at = $3 WHERE id = $1`
	case models.SentStatusRead:
		query = `UPDATE email_logs SET sent_status = $2, read_at = $3 WHERE id = $1`
	}
	if query != "" {
		_, err = d.db.ExecContext(ctx, query, logID, status, ts)
	} else {
		_, err = d.db.ExecContext(ctx,
			`UPDATE email_logs SET sent_status = $2 WHERE id = $1`, logID, status)
	}
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// applicationStatusFor maps a delivery status onto the application
// lifecycle. Pending has no application-level counterpart.
func applicationStatusFor(s models.SentStatus) (models.ApplicationStatus, bool) {
	switch s {
	case models.SentStatusSent:
		return models.StatusSent, true
	case models.SentStatusDelivered:
		return models.StatusDelivered, true
	case models.SentStatusRead:
		return models.StatusRead, true
	case models.SentStatusFailed:
		return models.StatusFailed, true
	case models.SentStatusBounced:
		return models.StatusBounced, true
	default:
		return "", false
	}
}
