package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers keeps one publisher per topic for the relay's lifetime.
type topicPublishers struct {
	open  func(topic string) publisher
	cache map[string]publisher
}

func newTopicPublishers(open func(topic string) publisher) *topicPublishers {
	return &topicPublishers{open: open, cache: map[string]publisher{}}
}

func (t *topicPublishers) get(topic string) publisher {
	if pub, ok := t.cache[topic]; ok {
		return pub
	}
	pub := t.open(topic)
	if pub != nil {
		t.cache[topic] = pub
	}
	return pub
}

func (t *topicPublishers) stop() {
	for topic, pub := range t.cache {
		if s, ok := pub.(interface{ Stop() }); ok {
			s.Stop()
		}
		delete(t.cache, topic)
	}
}

// eventMessage carries the stored envelope as-is. Events of one aggregate
// share an ordering key so subscribers see an order's history in sequence.
func eventMessage(event *models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_version":  strconv.Itoa(resolved.Envelope.Version),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (r *Relay) publish(ctx context.Context, event *models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.topics.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, eventMessage(event, resolved))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func orderedTopicOpener(client pubSubClient) func(string) publisher {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		return &orderedTopic{Publisher: p}
	}
}

type orderedTopic struct {
	*gcppubsub.Publisher
}

func (t *orderedTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		PublishResult: t.Publisher.Publish(ctx, msg),
		topic:         t.Publisher,
		key:           msg.OrderingKey,
	}
}

type orderedResult struct {
	*gcppubsub.PublishResult
	topic *gcppubsub.Publisher
	key   string
}

// Get unblocks the ordering key after a failure so the retry can go out.
func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.PublishResult.Get(ctx)
	if err != nil && r.key != "" {
		r.topic.ResumePublish(r.key)
	}
	return id, err
}

// pacer doubles the wait after each failed batch up to max.
type pacer struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max}
}

func (p *pacer) failure() time.Duration {
	if p.current <= 0 {
		p.current = p.base
	}
	p.current = min(p.current*2, p.max)
	return jitter(p.current)
}

func (p *pacer) idle() time.Duration { return jitter(p.base) }

func (p *pacer) reset() { p.current = 0 }

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
