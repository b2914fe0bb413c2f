package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/events"
)

// NotificationChannel is a delivery target for ticket activity.
type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
)

// notificationRoutes decides which channels hear about each event. Email goes
// to the requester, so it only carries what they can see.
var notificationRoutes = map[events.EventType][]NotificationChannel{
	events.EventTicketCreated:       {ChannelEmail, ChannelWebhook},
	events.EventTicketUpdated:       {ChannelWebhook},
	events.EventTicketStatusChanged: {ChannelEmail, ChannelWebhook},
	events.EventTicketAssigned:      {ChannelWebhook},
	events.EventTicketDeleted:       {ChannelWebhook},
	events.EventMessageAdded:        {ChannelEmail, ChannelWebhook},
}

// NotificationService turns ticket events into channel notifications. Delivery
// itself is logged at debug level; no mail or HTTP client is attached yet.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	targets    map[NotificationChannel]string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		targets: map[NotificationChannel]string{
			ChannelEmail:   strings.TrimSpace(cfg.EmailFrom),
			ChannelWebhook: strings.TrimSpace(cfg.WebhookURL),
		},
	}
}

// RegisterHandlers subscribes to every event the services publish.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

// Channels reports where an event is delivered under the current config.
func (n *NotificationService) Channels(event events.Event) []NotificationChannel {
	var out []NotificationChannel
	for _, channel := range notificationRoutes[event.Type] {
		if n.targets[channel] == "" {
			continue
		}
		if channel == ChannelEmail && isInternalNote(event) {
			continue
		}
		out = append(out, channel)
	}
	return out
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	summary := summarizeEvent(event)
	n.logger.Info("ticket activity",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("summary", summary))

	for _, channel := range n.Channels(event) {
		n.logger.Debug("notification delivered",
			zap.String("channel", string(channel)),
			zap.String("target", n.targets[channel]),
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.String("summary", summary))
	}
	return nil
}

func isInternalNote(event events.Event) bool {
	payload, ok := event.Payload.(events.MessageAddedPayload)
	return ok && payload.IsInternal
}

func summarizeEvent(event events.Event) string {
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return fmt.Sprintf("opened with %s priority", payload.Priority)
	case events.TicketStatusChangedPayload:
		return fmt.Sprintf("status %s -> %s", payload.OldStatus, payload.NewStatus)
	case events.TicketAssignedPayload:
		if payload.ResponsibleID == nil {
			return "returned to queue"
		}
		return "assigned to " + *payload.ResponsibleID
	case events.TicketUpdatedPayload:
		return "changed " + strings.Join(payload.Fields, ", ")
	case events.MessageAddedPayload:
		if payload.IsInternal {
			return "internal note added"
		}
		return "reply: " + payload.BodyPreview
	}
	if event.Type == events.EventTicketDeleted {
		return "deleted"
	}
	return string(event.Type)
}
