package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/idempotency"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type recordingRepo struct {
	created []models.Notification
	err     error
}

func (r *recordingRepo) Create(ctx context.Context, notification *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, *notification)
	return nil
}

type fakeIdempotencyStore struct {
	setNXResult bool
	setNXErr    error
	deleted     []string
}

func (f *fakeIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return f.setNXResult, f.setNXErr
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "fv:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func newTestConsumer(t *testing.T, repo *recordingRepo, store *fakeIdempotencyStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test"})
	consumer, err := NewConsumer(repo, &pubsub.Subscriber{}, manager, logg)
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return consumer
}

func buildEventMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		Attributes: map[string]string{"event_type": string(eventType)},
		Data:       envelope,
	}
}

func TestConsumerCreatesTagNotification(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &fakeIdempotencyStore{setNXResult: true})

	recipient := uuid.New()
	msg := buildEventMessage(t, enums.EventTagCreated, payloads.TagCreatedEvent{
		TagRequestID: uuid.New(),
		SenderID:     uuid.New(),
		RecipientID:  recipient,
		MediaCount:   3,
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != recipient {
		t.Fatalf("notification scoped to wrong user: %s", created.UserID)
	}
	if created.Type != enums.NotificationTypeTagReceived {
		t.Fatalf("unexpected type: %s", created.Type)
	}
}

func TestConsumerCreatesRequestedNotification(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &fakeIdempotencyStore{setNXResult: true})

	userID := uuid.New()
	msg := buildEventMessage(t, enums.EventNotificationRequested, payloads.NotificationRequestedEvent{
		UserID: userID,
		Type:   string(enums.NotificationTypeUploadComplete),
		Title:  "Upload finished",
		Body:   "Your 4 items are ready.",
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != userID {
		t.Fatalf("notification scoped to wrong user: %s", created.UserID)
	}
	if created.Type != enums.NotificationTypeUploadComplete {
		t.Fatalf("unexpected type: %s", created.Type)
	}
	if created.Title != "Upload finished" {
		t.Fatalf("unexpected title: %q", created.Title)
	}
}

func TestConsumerSkipsAlreadyProcessedEvent(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &fakeIdempotencyStore{setNXResult: false})

	msg := buildEventMessage(t, enums.EventTagCreated, payloads.TagCreatedEvent{
		RecipientID: uuid.New(),
		MediaCount:  1,
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack for duplicate event")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notification for duplicate, got %d", len(repo.created))
	}
}

func TestConsumerNacksAndReleasesOnRepoError(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{err: errors.New("db down")}
	store := &fakeIdempotencyStore{setNXResult: true}
	consumer := newTestConsumer(t, repo, store)

	msg := buildEventMessage(t, enums.EventTagCreated, payloads.TagCreatedEvent{
		RecipientID: uuid.New(),
		MediaCount:  1,
	})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack on repository failure")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected idempotency key released, got %d deletions", len(store.deleted))
	}
}

func TestConsumerAcksUnhandledEvent(t *testing.T) {
	t.Parallel()

	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &fakeIdempotencyStore{setNXResult: true})

	msg := buildEventMessage(t, enums.EventMediaUploaded, payloads.MediaUploadedEvent{})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack for unhandled event")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notification, got %d", len(repo.created))
	}
}
