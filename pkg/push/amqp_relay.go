package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp.Channel used by the relay.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPRelay hands push messages to an external gateway through RabbitMQ.
// Messages are published as persistent JSON to a direct exchange, with the
// queue name as routing key.
type AMQPRelay struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  publisher
	exchange string
	queue    string
}

// NewAMQPRelay dials RabbitMQ and declares the exchange, queue and binding.
func NewAMQPRelay(cfg Config) (*AMQPRelay, error) {
	if cfg.AMQPURL == "" || cfg.AMQPExchange == "" || cfg.AMQPQueue == "" {
		return nil, fmt.Errorf("%w: AMQPURL, AMQPExchange and AMQPQueue are required", ErrInvalidConfig)
	}

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("push: connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("push: open channel: %w", err)
	}

	if err := declareTopology(ch, cfg.AMQPExchange, cfg.AMQPQueue); err != nil {
		_ = conn.Close()
		return nil, err
	}

	relay := newAMQPRelay(ch, cfg.AMQPExchange, cfg.AMQPQueue)
	relay.conn = conn
	return relay, nil
}

func newAMQPRelay(ch publisher, exchange, queue string) *AMQPRelay {
	return &AMQPRelay{channel: ch, exchange: exchange, queue: queue}
}

func declareTopology(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("push: declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("push: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("push: bind queue %s: %w", queue, err)
	}
	return nil
}

// Send publishes msg. Delivery to the device is the gateway's job.
func (r *AMQPRelay) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(ctx, r.exchange, r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	return nil
}

// Close closes the underlying connection.
func (r *AMQPRelay) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
