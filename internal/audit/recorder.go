// Package audit records append-only entries for state-changing actions.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/repository"
)

// ForRequestLimit bounds the audit history returned for a single request.
const ForRequestLimit = 500

// Event is the caller-facing description of an audited action.
type Event struct {
	Actor      domain.Actor
	Action     domain.AuditAction
	TargetType domain.AuditTargetType
	TargetID   string
	Details    map[string]any
	Failed     bool
}

// Recorder writes audit entries without ever failing the caller.
type Recorder struct {
	repo      repository.AuditRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	onFailure func(domain.AuditEntry, error)
}

// Option customises a Recorder.
type Option func(*Recorder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithFailureHook registers a callback for entries that could not be stored.
func WithFailureHook(fn func(domain.AuditEntry, error)) Option {
	return func(r *Recorder) { r.onFailure = fn }
}

// WithMetrics counts dropped entries.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo repository.AuditRepository, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores one entry. Store errors and panics are logged and counted,
// never returned.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	entry := domain.AuditEntry{
		EventID:    uuid.NewString(),
		Timestamp:  r.now().UTC(),
		ActorEmail: domain.NormalizeEmail(ev.Actor.Email),
		ActorIP:    ev.Actor.IP,
		Action:     ev.Action,
		Details:    ev.Details,
		Success:    !ev.Failed,
	}
	if entry.ActorEmail == "" {
		entry.ActorEmail = domain.UnknownEmail
	}
	if ev.TargetType != "" {
		tt := ev.TargetType
		entry.TargetType = &tt
	}
	if ev.TargetID != "" {
		id := ev.TargetID
		entry.TargetID = &id
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	if err := r.write(ctx, &entry); err != nil {
		r.metrics.RecordAuditFailure()
		r.logger.Error("audit write failed",
			zap.String("event_id", entry.EventID),
			zap.String("action", string(entry.Action)),
			zap.String("actor", entry.ActorEmail),
			zap.Error(err))
		if r.onFailure != nil {
			r.onFailure(entry, err)
		}
	}
}

func (r *Recorder) write(ctx context.Context, entry *domain.AuditEntry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("audit store panic: %v", rec)
		}
	}()
	if r.repo == nil {
		return fmt.Errorf("audit store not configured")
	}
	return r.repo.Append(ctx, entry)
}

// List returns entries newest first.
func (r *Recorder) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	if r == nil || r.repo == nil {
		return nil, nil
	}
	return r.repo.List(ctx, filter.Normalized())
}

// ForRequest returns the audit history of one request.
func (r *Recorder) ForRequest(ctx context.Context, key string) ([]domain.AuditEntry, error) {
	target := domain.NormalizeKey(key)
	return r.List(ctx, repository.AuditFilter{TargetID: &target, Limit: ForRequestLimit})
}

// ForActor returns entries written by one staff member.
func (r *Recorder) ForActor(ctx context.Context, email string, limit int) ([]domain.AuditEntry, error) {
	return r.List(ctx, repository.AuditFilter{ActorEmail: &email, Limit: limit})
}
