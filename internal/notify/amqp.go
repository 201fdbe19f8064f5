package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AlertEvent is the message body published for every alert.
type AlertEvent struct {
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}

// amqpChannel is the part of *amqp.Channel used for publishing.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes alerts to a durable queue so other services can react.
type AMQP struct {
	mu    sync.Mutex
	url   string
	queue string
	conn  *amqp.Connection
	ch    amqpChannel
	dial  func(url string) (*amqp.Connection, amqpChannel, error)
	now   func() time.Time
}

// NewAMQP creates an AMQP transport. The connection is opened lazily and
// reopened after a failed publish.
func NewAMQP(url, queue string) *AMQP {
	return &AMQP{
		url:   url,
		queue: queue,
		dial:  dialAMQP,
		now:   time.Now,
	}
}

// Name implements Transport.
func (a *AMQP) Name() string { return "amqp" }

// Send implements Transport.
func (a *AMQP) Send(ctx context.Context, msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ch == nil {
		conn, ch, err := a.dial(a.url)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			if conn != nil {
				_ = conn.Close()
			}
			return fmt.Errorf("declare queue %s: %w", a.queue, err)
		}
		a.conn, a.ch = conn, ch
	}

	sentAt := a.now().UTC()
	body, err := json.Marshal(AlertEvent{Message: msg, SentAt: sentAt.Format(time.RFC3339)})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    sentAt,
		Body:         body,
	}
	if err := a.ch.PublishWithContext(ctx, "", a.queue, false, false, pub); err != nil {
		a.reset()
		return fmt.Errorf("publish to %s: %w", a.queue, err)
	}
	return nil
}

// Close releases the broker connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
	return nil
}

func (a *AMQP) reset() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.ch, a.conn = nil, nil
}

func dialAMQP(url string) (*amqp.Connection, amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
