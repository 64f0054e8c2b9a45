package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/gulautos/storefront-backend/internal/media"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
)

const jobName = "media_object_delete"

type objectDeleter interface {
	Delete(ctx context.Context, key string) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// DeletionConsumer removes stored objects named by media.deleted messages.
type DeletionConsumer struct {
	objects      objectDeleter
	subscription receiver
	metrics      *metrics.JobMetrics
	logg         *logger.Logger
}

type processResult struct {
	ack  bool
	nack bool
}

func NewDeletionConsumer(objects objectDeleter, subscription *pubsub.Subscriber, jobs *metrics.JobMetrics, logg *logger.Logger) (*DeletionConsumer, error) {
	if subscription == nil {
		return nil, errors.New("media deletion subscription is required")
	}
	return newDeletionConsumer(objects, subscription, jobs, logg)
}

func newDeletionConsumer(objects objectDeleter, subscription receiver, jobs *metrics.JobMetrics, logg *logger.Logger) (*DeletionConsumer, error) {
	if objects == nil {
		return nil, errors.New("object store is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &DeletionConsumer{
		objects:      objects,
		subscription: subscription,
		metrics:      jobs,
		logg:         logg,
	}, nil
}

// Run processes deletion messages until the context is canceled.
func (c *DeletionConsumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *DeletionConsumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes[media.EventTypeAttribute]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != media.EventMediaDeleted {
		c.logg.Info(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	var event media.DeletionEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode deletion event", err)
		return processResult{ack: true}
	}
	if event.ObjectKey == "" {
		c.logg.Error(logCtx, "deletion event missing object key", errors.New("empty objectKey"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"media_id":   event.MediaID.String(),
		"object_key": event.ObjectKey,
	})

	started := time.Now()
	err := media.IgnoreMissing(c.objects.Delete(logCtx, event.ObjectKey))
	c.metrics.Observe(jobName, started, err)
	if err != nil {
		c.logg.Error(logCtx, "object deletion failed", err)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "media object deleted")
	return processResult{ack: true}
}
