package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCodeIssued     EventType = "code_issued"
	EventCodeRejected   EventType = "code_rejected"
	EventTokenIssued    EventType = "token_issued"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// CodeIssuedPayload payload.
type CodeIssuedPayload struct {
	ChallengeID string    `json:"challenge_id"`
	ClientID    string    `json:"client_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	Delivered   bool      `json:"delivered"`
}

// CodeRejectedPayload payload.
type CodeRejectedPayload struct {
	ChallengeID string `json:"challenge_id,omitempty"`
	Reason      string `json:"reason"`
}

// TokenIssuedPayload payload.
type TokenIssuedPayload struct {
	WorkspaceID string    `json:"workspace_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
