package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abkawan/toybank-ledger/internal/models"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const (
	// default queue for transaction events
	TransactionQueue = "transactions"
)

// Handler processes one consumed event. A returned error leaves the message for redelivery.
type Handler func(ctx context.Context, event *models.TransactionEvent) error

// channel is the part of *amqp.Channel the queue uses
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// handles RabbitMQ operations
type RabbitMQ struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	log     zerolog.Logger
}

func NewRabbitMQ(uri, queue string, log zerolog.Logger) (*RabbitMQ, error) {
	if queue == "" {
		queue = TransactionQueue
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: ch,
		queue:   queue,
		log:     log,
	}, nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// publishes a committed transaction event to the queue
func (r *RabbitMQ) PublishTransaction(ctx context.Context, event *models.TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	err = r.channel.Publish(
		"",      // exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Type:         string(event.Kind),
			Body:         body,
			DeliveryMode: amqp.Persistent, // make message persistent
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// ConsumeTransactions feeds queued events to handle until ctx is done or the
// delivery channel closes. Messages are acked after handle succeeds; a failing
// message is requeued once and then dropped.
func (r *RabbitMQ) ConsumeTransactions(ctx context.Context, handle Handler) error {
	msgs, err := r.channel.Consume(
		r.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg, handle)
		}
	}
}

func (r *RabbitMQ) deliver(ctx context.Context, msg amqp.Delivery, handle Handler) {
	var event models.TransactionEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		r.log.Error().Err(err).Str("message_id", msg.MessageId).Msg("Failed to unmarshal transaction")
		_ = msg.Reject(false) // Don't requeue
		return
	}

	if err := handle(ctx, &event); err != nil {
		r.log.Error().Err(err).
			Str("transaction", event.ID).
			Bool("redelivered", msg.Redelivered).
			Msg("Failed to process transaction")
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}

	_ = msg.Ack(false)
}
