package dto

import (
	"time"

	"github.com/spec-kit/account-requests/internal/domain"
)

// WebhookEmailRequest is the inbound email payload posted by the mail relay.
type WebhookEmailRequest struct {
	Subject          string  `json:"subject"`
	Body             string  `json:"body"`
	From             string  `json:"from"`
	MessageID        *string `json:"messageId"`
	ConversationID   *string `json:"conversationId"`
	ReceivedDateTime *string `json:"receivedDateTime"`
}

// InboundEmail converts the payload for the intake service.
func (r WebhookEmailRequest) InboundEmail() domain.InboundEmail {
	return domain.InboundEmail{
		Subject:        r.Subject,
		Body:           r.Body,
		From:           r.From,
		MessageID:      r.MessageID,
		ConversationID: r.ConversationID,
		ReceivedAt:     r.ReceivedDateTime,
	}
}

// WebhookResponse reports the intake disposition.
type WebhookResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RequestKey string `json:"request_key,omitempty"`
	Action     string `json:"action"`
}

// ImportRequest carries pasted email content.
type ImportRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status domain.RequestStatus `json:"status"`
}

// AssignRequest payload. A null or empty assignee unassigns.
type AssignRequest struct {
	AssignedTo *string `json:"assigned_to"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// SendEmailRequest payload.
type SendEmailRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// RequestSummary is the list view of a request.
type RequestSummary struct {
	Key            string               `json:"request_key"`
	Status         domain.RequestStatus `json:"status"`
	RequesterEmail string               `json:"requester_email"`
	RequesterName  *string              `json:"requester_name"`
	Organization   *string              `json:"organization"`
	LabName        *string              `json:"lab_name"`
	RequestType    string               `json:"request_type"`
	AssignedTo     *string              `json:"assigned_to"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	ClosedAt       *time.Time           `json:"closed_at"`
}

// RequestDetailResponse provides full request info.
type RequestDetailResponse struct {
	RequestSummary
	OriginalSubject *string           `json:"original_subject"`
	OriginalBody    *string           `json:"original_body"`
	SourceEmailID   *string           `json:"source_email_id"`
	ConversationID  *string           `json:"conversation_id"`
	ExternalLink    *string           `json:"external_link"`
	Comments        []CommentResponse `json:"comments"`
	Audit           []AuditResponse   `json:"audit"`
}

// CommentResponse represents a timeline entry.
type CommentResponse struct {
	ID           int64              `json:"id"`
	AuthorEmail  string             `json:"author_email"`
	AuthorName   *string            `json:"author_name"`
	Type         domain.CommentType `json:"comment_type"`
	Body         string             `json:"body"`
	EmailSubject *string            `json:"email_subject"`
	CreatedAt    time.Time          `json:"created_at"`
}

// CountsResponse holds dashboard totals.
type CountsResponse struct {
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Closed     int `json:"closed"`
	Total      int `json:"total"`
}

// NewRequestSummary maps a request for list views.
func NewRequestSummary(req *domain.Request) RequestSummary {
	return RequestSummary{
		Key:            req.Key,
		Status:         req.Status,
		RequesterEmail: req.RequesterEmail,
		RequesterName:  req.RequesterName,
		Organization:   req.Organization,
		LabName:        req.LabName,
		RequestType:    req.RequestType,
		AssignedTo:     req.AssignedTo,
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
		ClosedAt:       req.ClosedAt,
	}
}

// NewRequestDetail maps a request with its timeline and audit trail.
func NewRequestDetail(req *domain.Request, comments []domain.Comment, history []domain.AuditEntry) RequestDetailResponse {
	resp := RequestDetailResponse{
		RequestSummary:  NewRequestSummary(req),
		OriginalSubject: req.OriginalSubject,
		OriginalBody:    req.OriginalBody,
		SourceEmailID:   req.SourceEmailID,
		ConversationID:  req.ConversationID,
		ExternalLink:    req.ExternalLink,
		Comments:        make([]CommentResponse, 0, len(comments)),
		Audit:           NewAuditResponses(history),
	}
	for i := range comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&comments[i]))
	}
	return resp
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:           c.ID,
		AuthorEmail:  c.AuthorEmail,
		AuthorName:   c.AuthorName,
		Type:         c.Type,
		Body:         c.Body,
		EmailSubject: c.EmailSubject,
		CreatedAt:    c.CreatedAt,
	}
}
