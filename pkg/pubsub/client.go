package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscription    = errors.New("pubsub subscription name is required")
	errNoTopic           = errors.New("pubsub topic name is required")
)

// Client carries the media deletion topic and subscription. The API
// publishes to the topic and the media worker drains the subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	c, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", projectID), "pubsub.connected")
	}
	return &Client{client: c, projectID: projectID, cfg: cfg}, nil
}

// EnsureMediaDeletionTopic checks the topic exists. Topics are provisioned
// by infrastructure, never created here.
func (c *Client) EnsureMediaDeletionTopic(ctx context.Context) error {
	name, err := required(c.cfg.MediaDeletionTopic, errNoTopic)
	if err != nil {
		return err
	}
	_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: resourceName(c.projectID, "topics", name),
	})
	return describeLookup("topic", name, err)
}

// EnsureMediaDeletionSubscription checks the worker's subscription exists.
func (c *Client) EnsureMediaDeletionSubscription(ctx context.Context) error {
	name, err := required(c.cfg.MediaDeletionSubscription, errNoSubscription)
	if err != nil {
		return err
	}
	_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: resourceName(c.projectID, "subscriptions", name),
	})
	return describeLookup("subscription", name, err)
}

func (c *Client) MediaDeletionPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(resourceName(c.projectID, "topics", c.cfg.MediaDeletionTopic))
}

// MediaDeletionSubscriber caps in-flight messages so a burst of deletions
// does not fan out into unbounded concurrent storage calls.
func (c *Client) MediaDeletionSubscriber() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscriber(resourceName(c.projectID, "subscriptions", c.cfg.MediaDeletionSubscription))
	if c.cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstandingMessages
	}
	return sub
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func required(name string, missing error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", missing
	}
	return name, nil
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// resourceName accepts either a short name or a fully qualified
// projects/<p>/<collection>/<name> path.
func resourceName(projectID, collection, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	return "projects/" + strings.TrimSpace(projectID) + "/" + collection + "/" + name
}
