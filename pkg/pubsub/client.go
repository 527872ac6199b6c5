package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic names are required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the Pub/Sub connection shared by the relay and the workers.
// Topics and subscriptions are provisioned out of band; the client only
// verifies they exist.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
	subs      []string
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics := distinct(cfg.OrdersTopic, cfg.PaymentsTopic)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:    psClient,
		projectID: projectID,
		topics:    topics,
		subs:      distinct(cfg.OrdersSubscription, cfg.PaymentsSubscription),
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        c.topics,
			"subscriptions": c.subs,
		}), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks every configured topic and subscription and reports all
// missing resources together.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	var errs error
	for _, name := range c.topics {
		errs = multierr.Append(errs, c.exists(ctx, kindTopic, name))
	}
	for _, name := range c.subs {
		errs = multierr.Append(errs, c.exists(ctx, kindSubscription, name))
	}
	return errs
}

func (c *Client) exists(ctx context.Context, kind, name string) error {
	full := resourceName(c.projectID, kind, name)
	if full == "" {
		return fmt.Errorf("%s %q not configured", kind, name)
	}

	var err error
	switch kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	default:
		return fmt.Errorf("unknown pubsub resource kind %q", kind)
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, full)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, full, err)
	}
}

// Subscription returns a subscriber for a subscription id or full resource
// name, or nil when the name cannot be resolved.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, kindSubscription, name); full != "" {
		return c.client.Subscriber(full)
	}
	return nil
}

// Publisher returns a publisher for a topic id or full resource name, or nil
// when the name cannot be resolved.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if full := resourceName(c.projectID, kindTopic, name); full != "" {
		return c.client.Publisher(full)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id into projects/<project>/<kind>/<id>. Names
// already in that form are returned unchanged.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}

// distinct trims names and drops blanks and duplicates, keeping first-seen order.
func distinct(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
