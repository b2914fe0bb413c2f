package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartEventRelay mirrors every domain event to Redis pub/sub. Relay failures
// are logged and never fail the request that produced the event.
func StartEventRelay(dispatcher events.Dispatcher, publisher *events.RedisPublisher, logger *zap.Logger) {
	if dispatcher == nil || publisher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	events.SubscribeAll(dispatcher, func(ctx context.Context, event events.Event) error {
		if err := publisher.Handle(ctx, event); err != nil {
			logger.Warn("event relay failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
			return err
		}
		return nil
	})
}
