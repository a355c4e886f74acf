// internal/models/application_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from SentStatus
		to   SentStatus
		want bool
	}{
		{name: "pending to sent", from: SentStatusPending, to: SentStatusSent, want: true},
		{name: "sent to delivered", from: SentStatusSent, to: SentStatusDelivered, want: true},
		{name: "sent to bounced", from: SentStatusSent, to: SentStatusBounced, want: true},
		{name: "delivered to read", from: SentStatusDelivered, to: SentStatusRead, want: true},
		{name: "duplicate delivered", from: SentStatusDelivered, to: SentStatusDelivered, want: false},
		{name: "read regresses to delivered", from: SentStatusRead, to: SentStatusDelivered, want: false},
		// A late failure notification must not flip a successful delivery.
		{name: "delivered to bounced", from: SentStatusDelivered, to: SentStatusBounced, want: false},
		{name: "delivered to failed", from: SentStatusDelivered, to: SentStatusFailed, want: false},
		{name: "bounced is terminal", from: SentStatusBounced, to: SentStatusRead, want: false},
		{name: "failed is terminal", from: SentStatusFailed, to: SentStatusSent, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
