package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// DefaultQueue is the queue events are published to.
const DefaultQueue = "video_jobs"

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue on the default exchange. It reconnects once when the channel is closed.
type AMQPPublisher struct {
	mu      sync.Mutex
	url     string
	queue   string
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewAMQPPublisher dials url and declares queue.
func NewAMQPPublisher(url, queue string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == "" {
		queue = DefaultQueue
	}
	p := &AMQPPublisher{url: url, queue: queue, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect opens a connection and channel and declares the queue.
// The caller must hold p.mu or own p exclusively.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("notify: dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("notify: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("notify: declare queue %s: %w", p.queue, err)
	}

	p.conn = conn
	p.channel = ch
	p.logger.Info("amqp publisher connected", slog.String("queue", p.queue))
	return nil
}

// Publish sends ev to the queue.
func (p *AMQPPublisher) Publish(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.channel.Publish("", p.queue, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn("amqp channel closed, reconnecting")
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
		err = p.channel.Publish("", p.queue, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}
