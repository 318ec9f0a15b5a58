package dto

import (
	"time"

	"github.com/spec-kit/account-requests/internal/domain"
)

// AuditResponse represents one audit entry.
type AuditResponse struct {
	EventID    string                  `json:"event_id"`
	Timestamp  time.Time               `json:"timestamp"`
	ActorEmail string                  `json:"actor_email"`
	ActorIP    *string                 `json:"actor_ip"`
	Action     domain.AuditAction      `json:"action"`
	TargetType *domain.AuditTargetType `json:"target_type"`
	TargetID   *string                 `json:"target_id"`
	Details    map[string]any          `json:"details"`
	Success    bool                    `json:"success"`
}

// NewAuditResponses maps audit entries, preserving order.
func NewAuditResponses(entries []domain.AuditEntry) []AuditResponse {
	resp := make([]AuditResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, AuditResponse{
			EventID:    e.EventID,
			Timestamp:  e.Timestamp,
			ActorEmail: e.ActorEmail,
			ActorIP:    e.ActorIP,
			Action:     e.Action,
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Details:    e.Details,
			Success:    e.Success,
		})
	}
	return resp
}
