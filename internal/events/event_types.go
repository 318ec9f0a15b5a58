package events

import (
	"time"

	"github.com/spec-kit/account-requests/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated       EventType = "request_created"
	EventRequestStatusChanged EventType = "request_status_changed"
	EventRequestAssigned      EventType = "request_assigned"
	EventRequestReplyReceived EventType = "request_reply_received"
	EventRequestEmailSent     EventType = "request_email_sent"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string       `json:"id"`
	Type       EventType    `json:"type"`
	RequestKey string       `json:"request_key"`
	Actor      domain.Actor `json:"actor"`
	Timestamp  time.Time    `json:"timestamp"`
	Payload    interface{}  `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	RequesterEmail string  `json:"requester_email"`
	RequesterName  *string `json:"requester_name,omitempty"`
	Source         string  `json:"source"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// RequestReplyReceivedPayload payload.
type RequestReplyReceivedPayload struct {
	SenderEmail string `json:"sender_email"`
	Subject     string `json:"subject"`
}

// RequestEmailSentPayload payload.
type RequestEmailSentPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}
