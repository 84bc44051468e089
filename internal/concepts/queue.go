package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue concept updates are published to.
const DefaultQueue = "satquiz.concept-updates"

// Update is the message body on the concept queue.
type Update struct {
	UserID   string    `json:"user_id"`
	Outcomes []Outcome `json:"outcomes"`
	At       time.Time `json:"at"`
}

// MessagePublisher sends a body to a named queue.
type MessagePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Publisher is a Tracker that hands updates to a message queue instead of
// writing them itself.
type Publisher struct {
	pub   MessagePublisher
	queue string
	now   func() time.Time
}

// NewPublisher creates a Publisher sending to queue.
func NewPublisher(pub MessagePublisher, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{pub: pub, queue: queue, now: time.Now}
}

// Record publishes one Update message.
func (p *Publisher) Record(ctx context.Context, userID string, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	body, err := json.Marshal(Update{UserID: userID, Outcomes: outcomes, At: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal concept update: %w", err)
	}
	if err := p.pub.Publish(ctx, p.queue, body); err != nil {
		return fmt.Errorf("publish concept update: %w", err)
	}
	return nil
}

// Consumer applies queued updates through a Tracker.
type Consumer struct {
	tracker Tracker
	logger  *slog.Logger
}

// NewConsumer creates a Consumer writing through tracker.
func NewConsumer(tracker Tracker, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{tracker: tracker, logger: logger}
}

// Run handles deliveries until the channel closes or ctx is done.
// Malformed messages are dropped; failed writes are requeued.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var u Update
	if err := json.Unmarshal(d.Body, &u); err != nil || u.UserID == "" {
		c.logger.Warn("dropping malformed concept update", "delivery_tag", d.DeliveryTag, "error", err)
		if err := d.Nack(false, false); err != nil {
			c.logger.Error("nack concept update", "error", err)
		}
		return
	}

	if err := c.tracker.Record(ctx, u.UserID, u.Outcomes); err != nil {
		c.logger.Warn("concept update failed, requeueing", "user", u.UserID, "error", err)
		if err := d.Nack(false, true); err != nil {
			c.logger.Error("nack concept update", "error", err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack concept update", "error", err)
	}
}
