package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/tableside/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultRabbitExchange = "notifications_fanout"

// RabbitSink fans order events out to every queue bound to the exchange.
type RabbitSink struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishes
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitSink(url, exchange string) (*RabbitSink, error) {
	if exchange == "" {
		exchange = DefaultRabbitExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitSink{conn: conn, ch: ch, exchange: exchange}, nil
}

func (s *RabbitSink) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("outbox-%d", event.ID),
		Type:         event.EventType,
		Timestamp:    event.CreatedAt,
		Headers:      amqp.Table{"aggregate_id": event.AggregateID},
		Body:         event.Payload,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ch.PublishWithContext(ctx, s.exchange, "", false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType, err)
	}
	return nil
}

func (s *RabbitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ch.Close() // closing the connection closes the channel anyway
	return s.conn.Close()
}
