package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/config"
	"github.com/spec-kit/account-requests/internal/events"
	"github.com/spec-kit/account-requests/internal/notify"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	sender     notify.Sender
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sender notify.Sender, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sender:     sender,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.logEvent)
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.logEvent)
	n.dispatcher.Subscribe(events.EventRequestReplyReceived, n.logEvent)
	n.dispatcher.Subscribe(events.EventRequestEmailSent, n.logEvent)
	n.dispatcher.Subscribe(events.EventRequestAssigned, n.logEvent)
	n.dispatcher.Subscribe(events.EventRequestAssigned, n.handleRequestAssigned)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info("domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("request_key", event.RequestKey),
		zap.String("actor", event.Actor.Email),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleRequestAssigned(ctx context.Context, event events.Event) error {
	if !n.cfg.NotifyAssignee || n.sender == nil {
		return nil
	}
	payload, ok := event.Payload.(events.RequestAssignedPayload)
	if !ok || payload.NewAssignee == nil {
		return nil
	}
	if *payload.NewAssignee == event.Actor.Email {
		return nil
	}

	subject := fmt.Sprintf("[%s] assigned to you", event.RequestKey)
	body := fmt.Sprintf("%s assigned request %s to you.", event.Actor.DisplayName(), event.RequestKey)
	if err := n.sender.Send(ctx, subject, body, []string{*payload.NewAssignee}); err != nil {
		return fmt.Errorf("notify assignee: %w", err)
	}
	return nil
}
