package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/audit"
	"github.com/spec-kit/account-requests/internal/domain"
	"github.com/spec-kit/account-requests/internal/emailparse"
	"github.com/spec-kit/account-requests/internal/events"
	"github.com/spec-kit/account-requests/internal/observability"
	"github.com/spec-kit/account-requests/internal/repository"
	apperrors "github.com/spec-kit/account-requests/pkg/util/errorutil"
)

// IntakeAction names the disposition of an inbound email.
type IntakeAction string

const (
	IntakeDuplicate      IntakeAction = "duplicate"
	IntakeCommentAdded   IntakeAction = "comment_added"
	IntakeRequestCreated IntakeAction = "request_created"
)

// IntakeResult reports what Ingest did.
type IntakeResult struct {
	Action     IntakeAction
	RequestKey string
	Message    string
	Request    *domain.Request
	Comment    *domain.Comment
}

// IntakeService reconciles inbound emails against existing requests.
type IntakeService struct {
	requests  repository.RequestRepository
	comments  repository.CommentRepository
	creator   *RequestService
	directory StaffDirectory
	audit     *audit.Recorder
	metrics   *observability.Metrics
	logger    *zap.Logger
	events    publisher
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	RequestRepo repository.RequestRepository
	CommentRepo repository.CommentRepository
	Requests    *RequestService
	Directory   StaffDirectory
	Audit       *audit.Recorder
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Dispatcher  events.Dispatcher
	Now         func() time.Time
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		requests:  deps.RequestRepo,
		comments:  deps.CommentRepo,
		creator:   deps.Requests,
		directory: deps.Directory,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    logger,
		events:    publisher{dispatcher: deps.Dispatcher, now: clockOrDefault(deps.Now)},
	}
}

// Ingest applies, in order, duplicate detection by message id, threading by
// conversation id, and creation from the extracted fields. origin is the
// caller's network address and is only recorded in the audit trail.
func (s *IntakeService) Ingest(ctx context.Context, email domain.InboundEmail, origin *string) (*IntakeResult, error) {
	if strings.TrimSpace(email.Body) == "" {
		return nil, apperrors.NewValidationError("email body is required", nil)
	}
	sender := domain.NormalizeEmail(email.From)
	messageID := trimmed(email.MessageID)
	conversationID := trimmed(email.ConversationID)

	if messageID != nil {
		dup, err := s.duplicateOf(ctx, *messageID)
		if dup != nil || err != nil {
			return dup, err
		}
	}

	if conversationID != nil {
		existing, err := s.requests.GetByConversationID(ctx, *conversationID)
		if err == nil {
			return s.thread(ctx, existing, email, sender, messageID, origin)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.MapError(err)
		}
	}

	parsed := emailparse.Extract(email.Subject, email.Body)
	if !parsed.Valid {
		s.metrics.RecordIntake("rejected")
		s.logger.Warn("inbound email rejected",
			zap.String("subject", email.Subject),
			zap.String("body_preview", stringPreview(emailparse.Normalize(email.Body), 120)))
		return nil, apperrors.NewValidationError("could not parse valid request data from email", nil)
	}

	req, err := s.creator.Create(ctx, CreateRequestInput{
		RequesterEmail:  domain.StringValue(parsed.RequesterEmail),
		RequesterName:   parsed.RequesterName,
		Organization:    parsed.Institution,
		LabName:         parsed.LabName,
		OriginalSubject: domain.OptionalString(email.Subject),
		OriginalBody:    &email.Body,
		SourceEmailID:   messageID,
		ConversationID:  conversationID,
		ExternalLink:    parsed.ExternalLink,
	})
	if err != nil {
		return s.lostRace(ctx, messageID, err)
	}

	actor := domain.Actor{Email: senderOrUnknown(sender), IP: origin}
	s.metrics.RecordIntake(string(IntakeRequestCreated))
	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionWebhookCreate,
		TargetType: domain.TargetRequest,
		TargetID:   req.Key,
		Details: map[string]any{
			"source":          "webhook",
			"requester_email": req.RequesterEmail,
			"message_id":      messageID,
			"conversation_id": conversationID,
		},
	})
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestCreated,
		RequestKey: req.Key,
		Actor:      actor,
		Payload: events.RequestCreatedPayload{
			RequesterEmail: req.RequesterEmail,
			RequesterName:  req.RequesterName,
			Source:         "webhook",
		},
	})
	return &IntakeResult{
		Action:     IntakeRequestCreated,
		RequestKey: req.Key,
		Message:    fmt.Sprintf("Created request %s", req.Key),
		Request:    req,
	}, nil
}

// duplicateOf reports a duplicate outcome when messageID already opened or
// was threaded onto a request. It returns nil, nil for an unseen id.
func (s *IntakeService) duplicateOf(ctx context.Context, messageID string) (*IntakeResult, error) {
	existing, err := s.requests.GetByMessageID(ctx, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordIntake(string(IntakeDuplicate))
	s.logger.Info("duplicate inbound email ignored",
		zap.String("message_id", messageID),
		zap.String("request_key", existing.Key))
	return &IntakeResult{
		Action:     IntakeDuplicate,
		RequestKey: existing.Key,
		Message:    "Duplicate email, request already exists",
		Request:    existing,
	}, nil
}

// lostRace turns a unique-claim failure from a concurrent delivery of the
// same message into the duplicate outcome.
func (s *IntakeService) lostRace(ctx context.Context, messageID *string, err error) (*IntakeResult, error) {
	if messageID == nil || !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}
	dup, lookupErr := s.duplicateOf(ctx, *messageID)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if dup == nil {
		return nil, apperrors.MapError(err)
	}
	return dup, nil
}

func (s *IntakeService) thread(ctx context.Context, req *domain.Request, email domain.InboundEmail, sender string, messageID, origin *string) (*IntakeResult, error) {
	author := s.authorName(ctx, req, sender)
	comment := &domain.Comment{
		RequestKey:      req.Key,
		AuthorEmail:     senderOrUnknown(sender),
		AuthorName:      &author,
		Type:            domain.CommentTypeEmailReceived,
		Body:            email.Body,
		EmailSubject:    domain.OptionalString(email.Subject),
		SourceMessageID: messageID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.lostRace(ctx, messageID, err)
		}
		return nil, storeError(err, "request", map[string]any{"request_key": req.Key})
	}

	actor := domain.Actor{Email: comment.AuthorEmail, Name: author, IP: origin}
	s.metrics.RecordIntake(string(IntakeCommentAdded))
	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionEmailReceive,
		TargetType: domain.TargetRequest,
		TargetID:   req.Key,
		Details: map[string]any{
			"comment_id":       comment.ID,
			"message_id":       messageID,
			"subject":          email.Subject,
			"body_char_length": len([]rune(email.Body)),
		},
	})
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestReplyReceived,
		RequestKey: req.Key,
		Actor:      actor,
		Payload: events.RequestReplyReceivedPayload{
			SenderEmail: comment.AuthorEmail,
			Subject:     email.Subject,
		},
	})
	return &IntakeResult{
		Action:     IntakeCommentAdded,
		RequestKey: req.Key,
		Message:    "Reply added to existing conversation",
		Request:    req,
		Comment:    comment,
	}, nil
}

// authorName prefers the requester's stored name, then a staff name, then a
// name derived from the address.
func (s *IntakeService) authorName(ctx context.Context, req *domain.Request, sender string) string {
	if sender != "" && strings.EqualFold(sender, req.RequesterEmail) {
		if name := domain.StringValue(req.RequesterName); name != "" {
			return name
		}
		return emailparse.NameFromAddress(sender)
	}
	if sender != "" && s.directory != nil {
		if name, ok := s.directory.DisplayName(ctx, sender); ok {
			return name
		}
	}
	return emailparse.NameFromAddress(sender)
}

// Import creates a request from pasted email content without dedup or
// threading.
func (s *IntakeService) Import(ctx context.Context, actor domain.Actor, subject, body string) (*domain.Request, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("email body is required", nil)
	}
	parsed := emailparse.Extract(subject, body)
	if !parsed.Valid {
		return nil, apperrors.NewValidationError("could not parse valid data from email", nil)
	}

	req, err := s.creator.Create(ctx, CreateRequestInput{
		RequesterEmail:  domain.StringValue(parsed.RequesterEmail),
		RequesterName:   parsed.RequesterName,
		Organization:    parsed.Institution,
		LabName:         parsed.LabName,
		OriginalSubject: domain.OptionalString(subject),
		OriginalBody:    &body,
		ExternalLink:    parsed.ExternalLink,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     domain.ActionImportCreate,
		TargetType: domain.TargetRequest,
		TargetID:   req.Key,
		Details: map[string]any{
			"source":          "manual_import",
			"requester_email": req.RequesterEmail,
		},
	})
	s.events.publish(ctx, events.Event{
		Type:       events.EventRequestCreated,
		RequestKey: req.Key,
		Actor:      actor,
		Payload: events.RequestCreatedPayload{
			RequesterEmail: req.RequesterEmail,
			RequesterName:  req.RequesterName,
			Source:         "manual_import",
		},
	})
	return req, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return domain.OptionalString(*s)
}

func senderOrUnknown(sender string) string {
	if sender == "" {
		return domain.UnknownEmail
	}
	return sender
}
