// Package events consumes image pipeline results from AMQP and records the
// generated sizes on the owning note.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/gardenjournal/gardenjournal/internal/errs"
	"github.com/gardenjournal/gardenjournal/internal/metrics"
	"github.com/gardenjournal/gardenjournal/internal/model"
)

// ImageSizer records the sizes the pipeline produced for one image.
type ImageSizer interface {
	AddImageSizes(ctx context.Context, u model.ImageSizesUpdate) error
}

// Channel is the subset of *amqp.Channel the consumer uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

var _ Channel = (*amqp.Channel)(nil)

// Consumer settles image-size messages against the note store.
type Consumer struct {
	notes    ImageSizer
	queue    string
	tag      string
	prefetch int
	timeout  time.Duration
	log      *zap.Logger
	m        *metrics.Metrics
}

// NewConsumer creates a consumer for queue.
func NewConsumer(notes ImageSizer, queue string, log *zap.Logger, m *metrics.Metrics) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		notes:    notes,
		queue:    queue,
		tag:      "gardenjournal-image-sizes",
		prefetch: 16,
		timeout:  10 * time.Second,
		log:      log,
		m:        m,
	}
}

// Dial opens a connection and a channel to the broker at url.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	return conn, ch, nil
}

// Run declares the queue and handles deliveries until ctx is done or the
// broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context, ch Channel) error {
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare %s: %w", c.queue, err)
	}
	msgs, err := ch.Consume(q.Name, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("consuming image sizes", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(c.tag, false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle applies one delivery. Malformed messages and updates whose note or
// image no longer exist are acked and dropped; store faults are requeued.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var u model.ImageSizesUpdate
	if err := json.Unmarshal(d.Body, &u); err != nil {
		c.settle(d, metrics.EventDropped, zap.Error(err))
		return
	}
	fields := []zap.Field{zap.String("note_id", u.NoteID), zap.String("image_id", u.ImageID)}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.notes.AddImageSizes(ctx, u)
	switch {
	case err == nil:
		c.settle(d, metrics.EventApplied, fields...)
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidID):
		c.settle(d, metrics.EventDropped, append(fields, zap.Error(err))...)
	default:
		c.settle(d, metrics.EventRequeued, append(fields, zap.Error(err))...)
	}
}

func (c *Consumer) settle(d amqp.Delivery, disposition string, fields ...zap.Field) {
	fields = append(fields, zap.Uint64("tag", d.DeliveryTag), zap.String("disposition", disposition))
	var err error
	switch disposition {
	case metrics.EventRequeued:
		c.log.Error("image sizes not applied", fields...)
		err = d.Nack(false, true)
	case metrics.EventDropped:
		c.log.Warn("image sizes dropped", fields...)
		err = d.Ack(false)
	default:
		c.log.Debug("image sizes applied", fields...)
		err = d.Ack(false)
	}
	if err != nil {
		c.log.Error("settle delivery", zap.Uint64("tag", d.DeliveryTag), zap.Error(err))
	}
	c.m.ImageEvent(disposition)
}
