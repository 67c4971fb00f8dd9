package purge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/dcastano/framevault-backend/pkg/db/models"
	"github.com/dcastano/framevault-backend/pkg/enums"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/metrics"
	"github.com/dcastano/framevault-backend/pkg/outbox"
	"github.com/dcastano/framevault-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const consumerName = "purge-worker"

type blobStore interface {
	DeleteMediaObjects(ctx context.Context, keys []string) error
	DeleteThumbnailObjects(ctx context.Context, keys []string) error
}

type catalogReader interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.MediaItem, error)
}

// Consumer removes purged blob keys from both buckets. Blob deletion is
// idempotent: a replayed message deletes keys that no longer exist and acks.
type Consumer struct {
	catalog      catalogReader
	blobs        blobStore
	subscription *pubsub.Subscriber
	logg         *logger.Logger
	jobs         *metrics.ConsumerMetrics
	now          func() time.Time
}

// NewConsumer wires the purge consumer to the provided subscription.
func NewConsumer(catalog catalogReader, blobs blobStore, subscription *pubsub.Subscriber, jobs *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if subscription == nil {
		return nil, errors.New("purge subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		catalog:      catalog,
		blobs:        blobs,
		subscription: subscription,
		logg:         logg,
		jobs:         jobs,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		started := c.now()
		result := c.process(ctx, msg)
		c.jobs.ObserveDuration(consumerName, c.now().Sub(started))
		if result.nack {
			c.jobs.IncNacked(consumerName)
			msg.Nack()
			return
		}
		c.jobs.IncAcked(consumerName)
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

	if eventType != string(enums.EventMediaPurged) {
		c.logg.Info(logCtx, "skipping non-purge event")
		return processResult{ack: true}
	}

	data, err := decodePayload(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		fields["payload_preview"] = previewBytes(data, 800)
		fields["payload_len"] = len(data)
		logCtx = c.logg.WithFields(ctx, fields)
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	var purged payloads.MediaPurgedEvent
	if err := json.Unmarshal(envelope.Data, &purged); err != nil {
		c.logg.Error(logCtx, "failed to parse purge payload", err)
		return processResult{ack: true}
	}

	if purged.StorageKey == "" {
		c.logg.Error(logCtx, "purge payload missing storage key", fmt.Errorf("empty storage_key"))
		return processResult{ack: true}
	}

	fields["media_id"] = purged.MediaID.String()
	fields["storage_key"] = purged.StorageKey
	logCtx = c.logg.WithFields(ctx, fields)

	// A row with this ID still in the catalog means the purge was superseded;
	// deleting the blob would orphan a live reference.
	if purged.MediaID != uuid.Nil {
		rows, err := c.catalog.GetByIDs(logCtx, []uuid.UUID{purged.MediaID})
		if err != nil {
			c.logg.Error(logCtx, "catalog lookup failed", err)
			if isTransientDBError(err) {
				return processResult{nack: true}
			}
			return processResult{ack: true}
		}
		if len(rows) > 0 {
			c.logg.Warn(logCtx, "catalog row still present, skipping blob removal")
			return processResult{ack: true}
		}
	}

	if err := c.blobs.DeleteMediaObjects(ctx, []string{purged.StorageKey}); err != nil {
		c.logg.Error(logCtx, "failed to delete media object", err)
		return processResult{nack: true}
	}

	if purged.ThumbnailKey != nil && *purged.ThumbnailKey != "" {
		if err := c.blobs.DeleteThumbnailObjects(ctx, []string{*purged.ThumbnailKey}); err != nil {
			c.logg.Error(logCtx, "failed to delete thumbnail object", err)
			return processResult{nack: true}
		}
	}

	c.logg.Info(logCtx, "purged media blobs")
	return processResult{ack: true}
}

func decodePayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}

func isTransientDBError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func previewBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
