package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RequestStatus enumerates lifecycle states for account requests.
type RequestStatus string

const (
	RequestStatusOpen       RequestStatus = "Open"
	RequestStatusInProgress RequestStatus = "In Progress"
	RequestStatusClosed     RequestStatus = "Closed"
)

// RequestStatuses lists every status in display order.
var RequestStatuses = []RequestStatus{
	RequestStatusOpen,
	RequestStatusInProgress,
	RequestStatusClosed,
}

// Valid reports whether s is one of the fixed statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusOpen, RequestStatusInProgress, RequestStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status stamps a close time.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusClosed
}

const (
	// DefaultRequestType is stored on every request created from email.
	DefaultRequestType = "Account Request"
	// UnknownEmail stands in for a missing requester or sender address.
	UnknownEmail = "unknown@unknown.com"
	// DefaultKeyPrefix prefixes request keys when none is configured.
	DefaultKeyPrefix = "ACCT"
)

// Request is the aggregate for a single account-signup inquiry.
type Request struct {
	ID              int64
	Key             string
	Status          RequestStatus
	RequesterEmail  string
	RequesterName   *string
	Organization    *string
	LabName         *string
	RequestType     string
	OriginalSubject *string
	OriginalBody    *string
	SourceEmailID   *string
	ConversationID  *string
	AssignedTo      *string
	ExternalLink    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// ApplyStatus moves the request to status at the given instant, keeping the
// close stamp consistent with the terminal state.
func (r *Request) ApplyStatus(status RequestStatus, at time.Time) {
	r.Status = status
	r.UpdatedAt = at
	if status.Terminal() {
		closed := at
		r.ClosedAt = &closed
	} else {
		r.ClosedAt = nil
	}
}

// FormatRequestKey renders a sequence number as PREFIX-NNNN.
func FormatRequestKey(prefix string, seq int64) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// ParseRequestKey returns the numeric part of a request key.
func ParseRequestKey(key string) (int64, error) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 || idx == len(key)-1 {
		return 0, fmt.Errorf("malformed request key %q", key)
	}
	n, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed request key %q: %w", key, err)
	}
	return n, nil
}

// NormalizeKey upper-cases and trims a request key supplied by a caller.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OptionalString returns nil for blank input.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
