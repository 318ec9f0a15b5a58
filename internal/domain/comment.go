package domain

import "time"

// CommentType differentiates entries on a request timeline.
type CommentType string

const (
	CommentTypeNote          CommentType = "note"
	CommentTypeEmailSent     CommentType = "email_sent"
	CommentTypeEmailReceived CommentType = "email_received"
	CommentTypeActivityLog   CommentType = "activity_log"
)

// Valid reports whether t is a known comment type.
func (t CommentType) Valid() bool {
	switch t {
	case CommentTypeNote, CommentTypeEmailSent, CommentTypeEmailReceived, CommentTypeActivityLog:
		return true
	}
	return false
}

// Comment is an append-only timeline entry owned by one request.
type Comment struct {
	ID           int64
	RequestID    int64
	RequestKey   string
	AuthorEmail  string
	AuthorName   *string
	Type         CommentType
	Body         string
	EmailSubject *string
	// SourceMessageID is the message id of the inbound email a reply came from.
	SourceMessageID *string
	CreatedAt       time.Time
}
