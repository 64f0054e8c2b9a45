package media

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	failAt   map[int]error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	idx := len(f.messages)
	f.messages = append(f.messages, msg)
	return fakePublishResult{err: f.failAt[idx]}
}

func TestPubSubQueuePublishesOneMessagePerObject(t *testing.T) {
	pub := &fakePublisher{}
	queue := &pubsubDeletionQueue{pub: pub}
	events := []DeletionEvent{
		{MediaID: uuid.New(), ObjectKey: "media/image/a/a.png"},
		{MediaID: uuid.New(), ObjectKey: "media/pdf/b/b.pdf"},
	}

	if err := queue.Enqueue(context.Background(), events); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(pub.messages))
	}
	for i, msg := range pub.messages {
		if msg.Attributes[EventTypeAttribute] != EventMediaDeleted {
			t.Fatalf("message %d missing event type: %v", i, msg.Attributes)
		}
		var decoded DeletionEvent
		if err := json.Unmarshal(msg.Data, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded != events[i] {
			t.Fatalf("message %d = %+v, want %+v", i, decoded, events[i])
		}
	}
}

func TestPubSubQueueAggregatesPublishFailures(t *testing.T) {
	pub := &fakePublisher{failAt: map[int]error{0: errors.New("a"), 2: errors.New("c")}}
	queue := &pubsubDeletionQueue{pub: pub}
	events := []DeletionEvent{{ObjectKey: "a"}, {ObjectKey: "b"}, {ObjectKey: "c"}}

	err := queue.Enqueue(context.Background(), events)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d (%v)", got, err)
	}
}

func TestSyncQueueIgnoresMissingObjects(t *testing.T) {
	objects := newFakeObjects()
	objects.objects["present"] = []byte("x")
	queue := NewSyncDeletionQueue(objects)

	err := queue.Enqueue(context.Background(), []DeletionEvent{{ObjectKey: "present"}, {ObjectKey: "gone"}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatal("present object should be deleted")
	}
}

func TestNewPubSubDeletionQueueRequiresPublisher(t *testing.T) {
	if _, err := NewPubSubDeletionQueue(nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
