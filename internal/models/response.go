// internal/models/response.go
package models

import "time"

// ResponseType is the classified intent of a recruiter reply.
type ResponseType string

const (
	ResponsePositive         ResponseType = "positive"
	ResponseNegative         ResponseType = "negative"
	ResponseNeutral          ResponseType = "neutral"
	ResponseInterviewRequest ResponseType = "interview_request"
	ResponseRejection        ResponseType = "rejection"
	ResponseUnknown          ResponseType = "unknown"
)

// Priority ranks how urgently a reply needs the user's attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Escalate bumps a priority one level; urgent stays urgent.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// RecruiterResponse is an inbound message tied to an application.
// Created with parsed=false; the classifier fills responseType, sentiment,
// actionRequired and priority exactly once on success. Processed flips to
// true once the user has been alerted about an action-required reply.
type RecruiterResponse struct {
	ID             string       `json:"id"`
	ApplicationID  string       `json:"applicationId"`
	EmailLogID     string       `json:"emailLogId"`
	FromEmail      string       `json:"fromEmail"`
	Subject        string       `json:"subject"`
	Body           string       `json:"body"`
	ReceivedAt     time.Time    `json:"receivedAt"`
	Parsed         bool         `json:"parsed"`
	ResponseType   ResponseType `json:"responseType"`
	Sentiment      string       `json:"sentiment,omitempty"`
	ActionRequired bool         `json:"actionRequired"`
	Priority       Priority     `json:"priority"`
	Processed      bool         `json:"processed"`
}

// InboundEmail is the raw event delivered by the inbound mail surface.
// CorrelationID is the mailId of the outbound send the reply threads to.
type InboundEmail struct {
	FromEmail     string    `json:"fromEmail"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	CorrelationID string    `json:"correlationId"`
	ReceivedAt    time.Time `json:"receivedAt"`
}
