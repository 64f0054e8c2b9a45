package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gulautos/storefront-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/gul-prod/topics/media-deleted", resourceName("gul-prod", "topics", "media-deleted"))
	assert.Equal(t, "projects/gul-prod/subscriptions/media-worker", resourceName("gul-prod", "subscriptions", " media-worker "))

	full := "projects/other/topics/media-deleted"
	assert.Equal(t, full, resourceName("gul-prod", "topics", full))
	assert.Equal(t, "projects/gul-prod/subscriptions/"+full, resourceName("gul-prod", "subscriptions", full),
		"a topic path is not a subscription path")
}

func TestDescribeLookup(t *testing.T) {
	assert.NoError(t, describeLookup("topic", "t", nil))
	assert.EqualError(t, describeLookup("topic", "t", status.Error(codes.NotFound, "nope")), `topic "t" does not exist`)

	cause := status.Error(codes.PermissionDenied, "denied")
	err := describeLookup("subscription", "s", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestEnsureRequiresNames(t *testing.T) {
	c := &Client{projectID: "gul-prod"}
	assert.ErrorIs(t, c.EnsureMediaDeletionTopic(context.Background()), errNoTopic)
	assert.ErrorIs(t, c.EnsureMediaDeletionSubscription(context.Background()), errNoSubscription)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "  "}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.MediaDeletionPublisher())
	assert.Nil(t, c.MediaDeletionSubscriber())
	assert.NoError(t, c.Close())
}
