package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Exchange carries job wake-ups with routing keys print.<sector> and
// message.<sector>.
const Exchange = "dispatch_topic"

// Broker publishes job signals to RabbitMQ, reconnecting on demand.
type Broker struct {
	url     string
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewBroker dials RabbitMQ with a few retries and declares the exchange.
func NewBroker(url string) (*Broker, error) {
	b := &Broker{url: url}
	var err error
	for i := 0; i < 5; i++ {
		if err = b.connect(); err == nil {
			return b, nil
		}
		wait := time.Duration(i+1) * 2 * time.Second
		log.Warn().Err(err).Dur("retry_in", wait).Msg("dispatch: rabbitmq connect failed")
		time.Sleep(wait)
	}
	return nil, fmt.Errorf("connect to rabbitmq after 5 attempts: %w", err)
}

// connect must be called with mu held or before the broker is shared.
func (b *Broker) connect() error {
	conn, err := amqp091.Dial(b.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare %s exchange: %w", Exchange, err)
	}
	b.conn, b.channel = conn, ch
	return nil
}

func (b *Broker) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil || b.conn.IsClosed() || b.channel == nil || b.channel.IsClosed() {
		b.closeLocked()
		if err := b.connect(); err != nil {
			return fmt.Errorf("reconnect to rabbitmq: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = b.channel.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Broker) closeLocked() error {
	if b.channel != nil {
		b.channel.Close()
		b.channel = nil
	}
	if b.conn != nil {
		err := b.conn.Close()
		b.conn = nil
		return err
	}
	return nil
}
