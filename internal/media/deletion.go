package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gulautos/storefront-backend/pkg/storage/gcs"
)

const (
	// EventTypeAttribute carries the event name on published messages.
	EventTypeAttribute = "event_type"
	// EventMediaDeleted marks a request to remove a stored object.
	EventMediaDeleted = "media.deleted"
)

// DeletionEvent is the payload of a media.deleted message.
type DeletionEvent struct {
	MediaID   uuid.UUID `json:"mediaId"`
	ObjectKey string    `json:"objectKey"`
}

// DeletionQueue removes the objects behind deleted media rows.
type DeletionQueue interface {
	Enqueue(ctx context.Context, events []DeletionEvent) error
}

type objectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// IgnoreMissing treats an already removed object as deleted.
func IgnoreMissing(err error) error {
	if errors.Is(err, gcs.ErrObjectNotFound) {
		return nil
	}
	return err
}

type syncDeletionQueue struct {
	objects objectDeleter
}

// NewSyncDeletionQueue deletes objects inline.
func NewSyncDeletionQueue(objects objectDeleter) DeletionQueue {
	return &syncDeletionQueue{objects: objects}
}

func (q *syncDeletionQueue) Enqueue(ctx context.Context, events []DeletionEvent) error {
	var errs error
	for _, event := range events {
		if err := IgnoreMissing(q.objects.Delete(ctx, event.ObjectKey)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete object %s: %w", event.ObjectKey, err))
		}
	}
	return errs
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.pub.Publish(ctx, msg)
}

type pubsubDeletionQueue struct {
	pub publisher
}

// NewPubSubDeletionQueue publishes one media.deleted message per object.
func NewPubSubDeletionQueue(pub *gcppubsub.Publisher) (DeletionQueue, error) {
	if pub == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &pubsubDeletionQueue{pub: gcpPublisher{pub: pub}}, nil
}

func (q *pubsubDeletionQueue) Enqueue(ctx context.Context, events []DeletionEvent) error {
	results := make([]publishResult, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal deletion event: %w", err)
		}
		results = append(results, q.pub.Publish(ctx, &gcppubsub.Message{
			Data:       data,
			Attributes: map[string]string{EventTypeAttribute: EventMediaDeleted},
		}))
	}

	var errs error
	for i, result := range results {
		if _, err := result.Get(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish deletion of %s: %w", events[i].ObjectKey, err))
		}
	}
	return errs
}
