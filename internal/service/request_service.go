package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/emailparse"
	"github.com/spec-kit/account-requests/internal/events"
	"github.com/spec-kit/account-requests/internal/notify"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/repository"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// DefaultReplySubject is used when a request has no original subject.
const DefaultReplySubject = "Your Account Request"

// RequestService coordinates request workflows.
type RequestService struct {
	requests  repository.RequestRepository
	comments  repository.CommentRepository
	directory StaffDirectory
	sender    notify.Sender
	audit     *audit.Recorder
	metrics   *observability.Metrics
	logger    *zap.Logger
	events    publisher
	now       func() time.Time
}

// RequestDependencies bundles collaborators for the request service.
type RequestDependencies struct {
	RequestRepo repository.RequestRepository
	CommentRepo repository.CommentRepository
	Directory   StaffDirectory
	Sender      notify.Sender
	Audit       *audit.Recorder
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Dispatcher  events.Dispatcher
	Now         func() time.Time
}

// CreateRequestInput seeds a new request.
type CreateRequestInput struct {
	RequesterEmail  string
	RequesterName   *string
	Organization    *string
	LabName         *string
	OriginalSubject *string
	OriginalBody    *string
	SourceEmailID   *string
	ConversationID  *string
	ExternalLink    *string
}

// RequestListFilter describes dashboard listing filters.
type RequestListFilter struct {
	Status *domain.RequestStatus
	Search *string
	Limit  int
	Offset int
}

// StatusCounts holds per-status totals.
type StatusCounts struct {
	ByStatus map[domain.RequestStatus]int
	Total    int
}

// RequestDetail bundles everything shown for a single request.
type RequestDetail struct {
	Request  *domain.Request
	Comments []domain.Comment
	Audit    []domain.AuditEntry
}

// SendEmailInput describes an outbound staff reply.
type SendEmailInput struct {
	To      []string
	Subject string
	Body    string
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := clockOrDefault(deps.Now)
	return &RequestService{
		requests:  deps.RequestRepo,
		comments:  deps.CommentRepo,
		directory: deps.Directory,
		sender:    deps.Sender,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    logger,
		events:    publisher{dispatcher: deps.Dispatcher, now: now},
		now:       now,
	}
}

// Create stores a new request with the next key and the initial status.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*domain.Request, error) {
	email := domain.NormalizeEmail(input.RequesterEmail)
	if email == "" {
		email = domain.UnknownEmail
	}
	req := &domain.Request{
		Status:          domain.RequestStatusOpen,
		RequesterEmail:  email,
		RequesterName:   input.RequesterName,
		Organization:    input.Organization,
		LabName:         input.LabName,
		RequestType:     domain.DefaultRequestType,
		OriginalSubject: input.OriginalSubject,
		OriginalBody:    input.OriginalBody,
		SourceEmailID:   input.SourceEmailID,
		ConversationID:  input.ConversationID,
		ExternalLink:    input.ExternalLink,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}
	return req, nil
}

// Get returns a request by key.
func (s *RequestService) Get(ctx context.Context, key string) (*domain.Request, error) {
	req, err := s.requests.GetByKey(ctx, key)
	if err != nil {
		return nil, storeError(err, "request", map[string]any{"request_key": key})
	}
	return req, nil
}

// UpdateStatus moves a request to a new status.
func (s *RequestService) UpdateStatus(ctx context.Context, actor domain.Actor, key string, status domain.RequestStatus) (*domain.Request, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  status,
			"allowed": domain.RequestStatuses,
		})
	}
	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	at := s.now()
	ok, err := s.requests.UpdateStatus(ctx, existing.Key, status, at)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, requestNotFound(existing.Key)
	}
	oldStatus := existing.Status
	existing.ApplyStatus(status, at)

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionStatusUpdate,
		TargetType: domain.TargetRequest,
		TargetID:   existing.Key,
		Details:    map[string]any{"from": oldStatus, "to": status},
	})
	s.addActivity(ctx, actor, existing.Key, fmt.Sprintf("Changed status to: %s", status))
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestStatusChanged,
		RequestKey: existing.Key,
		Actor:      actor,
		Payload:    events.RequestStatusChangedPayload{OldStatus: oldStatus, NewStatus: status},
	})
	return existing, nil
}

// Assign sets or clears the assignee. assignee is a staff email.
func (s *RequestService) Assign(ctx context.Context, actor domain.Actor, key string, assignee *string) (*domain.Request, error) {
	if assignee != nil {
		normalized := domain.NormalizeEmail(*assignee)
		if normalized == "" {
			assignee = nil
		} else {
			assignee = &normalized
		}
	}
	existing, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	at := s.now()
	ok, err := s.requests.Assign(ctx, existing.Key, assignee, at)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, requestNotFound(existing.Key)
	}
	oldAssignee := existing.AssignedTo
	existing.AssignedTo = assignee
	existing.UpdatedAt = at

	activity := "Unassigned"
	var assigneeName *string
	if assignee != nil {
		name := s.staffName(ctx, *assignee)
		assigneeName = &name
		activity = "Assigned to: " + name
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionAssignmentUpdate,
		TargetType: domain.TargetRequest,
		TargetID:   existing.Key,
		Details: map[string]any{
			"from":          oldAssignee,
			"to":            assignee,
			"assignee_name": assigneeName,
		},
	})
	s.addActivity(ctx, actor, existing.Key, activity)
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestAssigned,
		RequestKey: existing.Key,
		Actor:      actor,
		Payload:    events.RequestAssignedPayload{OldAssignee: oldAssignee, NewAssignee: assignee},
	})
	return existing, nil
}

// AddComment appends an internal note.
func (s *RequestService) AddComment(ctx context.Context, actor domain.Actor, key, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body is required", nil)
	}
	comment, err := s.appendComment(ctx, actor, key, domain.CommentTypeNote, body, nil)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionCommentCreate,
		TargetType: domain.TargetRequest,
		TargetID:   comment.RequestKey,
		Details: map[string]any{
			"comment_id":       comment.ID,
			"body_char_length": len([]rune(body)),
		},
	})
	return comment, nil
}

// SendEmail delivers a staff reply and records it on the timeline.
func (s *RequestService) SendEmail(ctx context.Context, actor domain.Actor, key string, input SendEmailInput) (*domain.Comment, error) {
	recipients := make([]string, 0, len(input.To))
	for _, rcpt := range input.To {
		if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
			recipients = append(recipients, rcpt)
		}
	}
	if len(recipients) == 0 {
		return nil, apperrors.NewValidationError("at least one recipient is required", nil)
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewValidationError("email body is required", nil)
	}

	req, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		subject = DefaultReplySubject
		if req.OriginalSubject != nil && *req.OriginalSubject != "" {
			subject = "Re: " + *req.OriginalSubject
		}
	}

	if err := s.sender.Send(ctx, subject, body, recipients); err != nil {
		s.metrics.RecordOutboundEmail(false)
		s.logger.Error("send email failed", zap.String("request_key", req.Key), zap.Error(err))
		s.audit.Record(ctx, audit.Event{
			Actor:      actor,
			Action:     domain.ActionEmailSend,
			TargetType: domain.TargetRequest,
			TargetID:   req.Key,
			Details: map[string]any{
				"recipients": recipients,
				"subject":    subject,
				"error":      err.Error(),
			},
			Failed: true,
		})
		return nil, apperrors.NewUpstreamError("failed to send email", err)
	}
	s.metrics.RecordOutboundEmail(true)

	timeline := fmt.Sprintf("Sent to: %s\n\n%s", strings.Join(recipients, ", "), body)
	comment, err := s.appendComment(ctx, actor, req.Key, domain.CommentTypeEmailSent, timeline, &subject)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionEmailSend,
		TargetType: domain.TargetRequest,
		TargetID:   req.Key,
		Details: map[string]any{
			"recipients":       recipients,
			"subject":          subject,
			"body_char_length": len([]rune(body)),
		},
	})
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestEmailSent,
		RequestKey: req.Key,
		Actor:      actor,
		Payload:    events.RequestEmailSentPayload{To: recipients, Subject: subject},
	})
	return comment, nil
}

// List returns requests newest first.
func (s *RequestService) List(ctx context.Context, filter RequestListFilter) ([]domain.Request, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": *filter.Status})
	}
	list, err := s.requests.List(ctx, repository.RequestFilter{
		Status: filter.Status,
		Search: filter.Search,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// Counts returns totals for every status.
func (s *RequestService) Counts(ctx context.Context) (*StatusCounts, error) {
	raw, err := s.requests.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts := &StatusCounts{ByStatus: make(map[domain.RequestStatus]int, len(domain.RequestStatuses))}
	for _, status := range domain.RequestStatuses {
		counts.ByStatus[status] = raw[status]
		counts.Total += raw[status]
	}
	return counts, nil
}

// Detail returns the request with its timeline and audit history, and
// records the view.
func (s *RequestService) Detail(ctx context.Context, actor domain.Actor, key string) (*RequestDetail, error) {
	req, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByRequest(ctx, req.Key)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.audit.ForRequest(ctx, req.Key)
	if err != nil {
		s.logger.Warn("load audit history", zap.String("request_key", req.Key), zap.Error(err))
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionRequestView,
		TargetType: domain.TargetRequest,
		TargetID:   req.Key,
	})
	return &RequestDetail{Request: req, Comments: comments, Audit: history}, nil
}

func (s *RequestService) appendComment(ctx context.Context, actor domain.Actor, key string, kind domain.CommentType, body string, subject *string) (*domain.Comment, error) {
	name := actor.DisplayName()
	comment := &domain.Comment{
		RequestKey:   domain.NormalizeKey(key),
		AuthorEmail:  domain.NormalizeEmail(actor.Email),
		AuthorName:   &name,
		Type:         kind,
		Body:         body,
		EmailSubject: subject,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, storeError(err, "request", map[string]any{"request_key": comment.RequestKey})
	}
	return comment, nil
}

// addActivity writes a synthetic timeline entry. Failures are logged since
// the primary change is already stored.
func (s *RequestService) addActivity(ctx context.Context, actor domain.Actor, key, body string) {
	if _, err := s.appendComment(ctx, actor, key, domain.CommentTypeActivityLog, body, nil); err != nil {
		s.logger.Warn("activity comment failed", zap.String("request_key", key), zap.Error(err))
	}
}

func (s *RequestService) staffName(ctx context.Context, email string) string {
	if s.directory != nil {
		if name, ok := s.directory.DisplayName(ctx, email); ok {
			return name
		}
	}
	return emailparse.NameFromAddress(email)
}
