package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/idempotency"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const notificationConsumer = "notification-worker"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer turns domain events from the notification topic into in-app
// notification rows for the affected user.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	handler := c.handlerFor(enums.OutboxEventType(eventType))
	if handler == nil {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := handler(ctx, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

type eventHandler func(ctx context.Context, data json.RawMessage, logCtx context.Context) error

func (c *Consumer) handlerFor(eventType enums.OutboxEventType) eventHandler {
	switch eventType {
	case enums.EventTagCreated:
		return c.handleTagCreated
	case enums.EventNotificationRequested:
		return c.handleNotificationRequested
	default:
		return nil
	}
}

func (c *Consumer) handleTagCreated(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.TagCreatedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse tag payload: %w", err)
	}
	if payload.RecipientID == uuid.Nil {
		return fmt.Errorf("recipient id missing")
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"tag_request_id": payload.TagRequestID.String(),
		"recipient_id":   payload.RecipientID.String(),
	})

	message := fmt.Sprintf("You received %d shared items to review.", payload.MediaCount)
	if payload.MediaCount == 1 {
		message = "You received 1 shared item to review."
	}
	notification := &models.Notification{
		UserID:  payload.RecipientID,
		Type:    enums.NotificationTypeTagReceived,
		Title:   "New shared media",
		Message: message,
		Link:    stringPtr("/tags"),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "recipient notified of tag request")
	return nil
}

func (c *Consumer) handleNotificationRequested(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse notification payload: %w", err)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}

	notificationType, err := enums.ParseNotificationType(payload.Type)
	if err != nil {
		notificationType = enums.NotificationTypeSystemAnnouncement
	}
	title := payload.Title
	if title == "" {
		title = "FrameVault"
	}

	notification := &models.Notification{
		UserID:  payload.UserID,
		Type:    notificationType,
		Title:   title,
		Message: payload.Body,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(c.logg.WithField(logCtx, "user_id", payload.UserID.String()), "user notification created")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
