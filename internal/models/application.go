// internal/models/application.go
package models

import "time"

// ApplicationStatus is the outbound application lifecycle state.
// draft → pending → sent → {delivered → read} | failed | bounced
type ApplicationStatus string

const (
	StatusDraft     ApplicationStatus = "draft"
	StatusPending   ApplicationStatus = "pending"
	StatusSent      ApplicationStatus = "sent"
	StatusDelivered ApplicationStatus = "delivered"
	StatusRead      ApplicationStatus = "read"
	StatusFailed    ApplicationStatus = "failed"
	StatusBounced   ApplicationStatus = "bounced"
)

// ApprovalStatus gates dispatch when requireApproval is on.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Application is the durable record of one application attempt.
// Never deleted; EmailLog rows preserve the per-attempt audit trail.
type Application struct {
	ID             string            `json:"id"`
	JobID          string            `json:"jobId"`
	UserID         string            `json:"userId"`
	Status         ApplicationStatus `json:"status"`
	ApprovalStatus ApprovalStatus    `json:"approvalStatus"`
	MailID         string            `json:"mailId,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SentAt         *time.Time        `json:"sentAt,omitempty"`
}

// ApplicationDraft is the transient value produced by the composer and
// consumed immediately by the dispatcher. Not persisted on its own.
type ApplicationDraft struct {
	JobID              string   `json:"jobId"`
	Subject            string   `json:"subject"`
	Body               string   `json:"body"`
	AttachmentRefs     []string `json:"attachmentRefs,omitempty"`
	ToEmail            string   `json:"toEmail"`
	SynthesizedContact bool     `json:"synthesizedContact"`
}

// SentStatus is the per-attempt delivery state recorded in an EmailLog.
type SentStatus string

const (
	SentStatusPending   SentStatus = "pending"
	SentStatusSent      SentStatus = "sent"
	SentStatusDelivered SentStatus = "delivered"
	SentStatusRead      SentStatus = "read"
	SentStatusFailed    SentStatus = "failed"
	SentStatusBounced   SentStatus = "bounced"
)

// sentStatusRank orders delivery states so transitions never regress.
// failed and bounced are terminal branches at the same rank as read.
var sentStatusRank = map[SentStatus]int{
	SentStatusPending:   0,
	SentStatusSent:      1,
	SentStatusDelivered: 2,
	SentStatusRead:      3,
	SentStatusFailed:    3,
	SentStatusBounced:   3,
}

// CanTransition reports whether moving from one delivery status to another
// respects the lifecycle ordering. Equal or lower-ranked targets, and any
// move out of a terminal branch, are rejected. delivered is already on the
// success branch: the only move left is read, never failed or bounced.
func CanTransition(from, to SentStatus) bool {
	switch from {
	case SentStatusFailed, SentStatusBounced, SentStatusRead:
		return false
	case SentStatusDelivered:
		return to == SentStatusRead
	}
	return sentStatusRank[to] > sentStatusRank[from]
}

// EmailLog is one row per send attempt. An application accumulates one row
// per retry; retries strictly increases across attempts.
type EmailLog struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	MailID        string     `json:"mailId"`
	ToEmail       string     `json:"toEmail"`
	FromEmail     string     `json:"fromEmail"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	SentStatus    SentStatus `json:"sentStatus"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
	Retries       int        `json:"retries"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
}
