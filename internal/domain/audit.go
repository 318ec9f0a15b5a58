package domain

import "time"

// AuditAction names an audited event using dot-separated namespaces.
type AuditAction string

const (
	ActionLoginSuccess     AuditAction = "agent.login.success"
	ActionLoginFailed      AuditAction = "agent.login.failed"
	ActionLogout           AuditAction = "agent.logout"
	ActionPasswordChange   AuditAction = "agent.password.change"
	ActionUserCreate       AuditAction = "agent.user.create"
	ActionUserToggle       AuditAction = "agent.user.toggle"
	ActionUserRoleChange   AuditAction = "agent.user.role_change"
	ActionRequestView      AuditAction = "request.view"
	ActionStatusUpdate     AuditAction = "request.status.update"
	ActionAssignmentUpdate AuditAction = "request.assignment.update"
	ActionCommentCreate    AuditAction = "request.comment.create"
	ActionEmailSend        AuditAction = "request.email.send"
	ActionEmailReceive     AuditAction = "request.email.receive"
	ActionWebhookCreate    AuditAction = "request.webhook.create"
	ActionImportCreate     AuditAction = "request.import.create"
)

// AuditTargetType identifies the kind of object an audit entry refers to.
type AuditTargetType string

const (
	TargetRequest AuditTargetType = "request"
	TargetUser    AuditTargetType = "user"
	TargetSystem  AuditTargetType = "system"
)

// AuditEntry is an immutable record of one state-changing action.
type AuditEntry struct {
	ID         int64
	EventID    string
	Timestamp  time.Time
	ActorEmail string
	ActorIP    *string
	Action     AuditAction
	TargetType *AuditTargetType
	TargetID   *string
	Details    map[string]any
	Success    bool
}

// Actor identifies who performs an action and from where.
type Actor struct {
	Email string
	Name  string
	IP    *string
}

// DisplayName falls back to the local part of the email when no name is set.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	for i := 0; i < len(a.Email); i++ {
		if a.Email[i] == '@' {
			return a.Email[:i]
		}
	}
	return a.Email
}
