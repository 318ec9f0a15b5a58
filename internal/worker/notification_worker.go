package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/account-requests/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService == nil {
		logger.Warn("notification service not configured; domain events are dropped")
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification handlers registered")
}
