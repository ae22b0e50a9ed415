package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventTypeInit marks messages published solely to force stream creation.
const EventTypeInit = "init"

// Event is the envelope appended to a stream.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent builds an envelope with a fresh id and timestamp, marshaling the
// payload.
func NewEvent(eventType, source string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

func eventValues(ev Event) map[string]interface{} {
	return map[string]interface{}{
		"id":        ev.ID,
		"type":      ev.Type,
		"source":    ev.Source,
		"timestamp": ev.Timestamp.Format(time.RFC3339Nano),
		"data":      string(ev.Data),
	}
}

func eventFromMessage(msg redis.XMessage) Event {
	ev := Event{}
	if v, ok := msg.Values["id"].(string); ok {
		ev.ID = v
	}
	if v, ok := msg.Values["type"].(string); ok {
		ev.Type = v
	}
	if v, ok := msg.Values["source"].(string); ok {
		ev.Source = v
	}
	if v, ok := msg.Values["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			ev.Timestamp = ts
		}
	}
	if v, ok := msg.Values["data"].(string); ok {
		ev.Data = json.RawMessage(v)
	}
	return ev
}

// Publisher appends events to Redis streams.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish appends the event envelope to the named stream.
func (p *Publisher) Publish(ctx context.Context, streamName string, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: eventValues(ev),
	}).Err()
}

// PublisherInterface defines the interface for event publishing.
type PublisherInterface interface {
	Publish(ctx context.Context, streamName string, ev Event) error
}

var _ PublisherInterface = (*Publisher)(nil)

// Handler processes one event. A non-nil error leaves the message
// unacknowledged for redelivery.
type Handler func(ctx context.Context, ev Event) error

// Consumer reads a stream through a named consumer group and dispatches
// messages to handlers registered per event type. Acknowledgment happens
// only after a handler returns without error.
type Consumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	log      *logrus.Logger

	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer for one stream and group.
func NewConsumer(client *redis.Client, stream, group, consumer string, log *logrus.Logger) *Consumer {
	return &Consumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		log:      log,
		handlers: make(map[string]Handler),
	}
}

// Handle registers a handler for an event type. Must be called before Start.
func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// EnsureGroup creates the stream (if absent) and the consumer group
// positioned at new messages only.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Start launches the polling goroutine. It blocks on batch reads and exits
// when Stop is called.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.loop(ctx)
}

// Stop signals the polling goroutine and waits for it to exit.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()

	for {
		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue // Block timeout, no new messages.
			}
			c.log.WithField("stream", c.stream).WithError(err).Warn("stream read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, str := range res {
			for _, msg := range str.Messages {
				c.dispatch(ctx, msg)
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg redis.XMessage) {
	ev := eventFromMessage(msg)

	// Init markers exist only to force stream creation; never ack them so
	// they stay out of delivery accounting.
	if ev.Type == EventTypeInit {
		return
	}

	h, ok := c.handlers[ev.Type]
	if !ok {
		// Uninteresting, not an error.
		c.ack(ctx, msg.ID)
		return
	}

	if err := h(ctx, ev); err != nil {
		c.log.WithFields(logrus.Fields{
			"stream": c.stream,
			"type":   ev.Type,
			"msg_id": msg.ID,
		}).WithError(err).Error("event handler failed, leaving message for redelivery")
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, msgID string) {
	if err := c.client.XAck(ctx, c.stream, c.group, msgID).Err(); err != nil && ctx.Err() == nil {
		c.log.WithField("msg_id", msgID).WithError(err).Warn("ack failed")
	}
}
