package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-reservation/internal/metrics"
	"github.com/iliyamo/library-reservation/internal/queue"
)

// EventPublisher delivers lending events once their transaction has
// committed.  Delivery is best effort; callers only log failures.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.LendingEvent) error
}

// NopPublisher drops every event.  Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.LendingEvent) error { return nil }

// AMQPPublisher publishes events to the durable lending queue on the
// default exchange.  The connection is dialled lazily and re-dialled
// after a failure.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{url: url} }

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.LendingQueueName, // name
		true,                   // durable
		false,                  // autoDelete
		false,                  // exclusive
		false,                  // noWait
		nil,                    // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Publish marshals ev and sends it as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.LendingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.EventID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                     // default exchange
		queue.LendingQueueName, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		pub,
	); err != nil {
		p.closeLocked()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// publish sends ev with a short deadline detached from the request and
// logs, rather than returns, any failure.
func publish(pub EventPublisher, ev queue.LendingEvent) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.Warn("lending event publish failed", "type", ev.Type, "event_id", ev.EventID, "err", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
