package config

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// ErrDiscard marks a message that can never be handled; it is dropped instead of requeued.
var ErrDiscard = errors.New("discard message")

// Consumer reads JSON messages from a durable queue.
type Consumer struct {
	channel *amqp.Channel
	queue   string
}

// NewConsumer opens a channel on conn and declares queueName.
func NewConsumer(conn *amqp.Connection, queueName string) (*Consumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := declareQueue(ch, queueName)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &Consumer{
		channel: ch,
		queue:   q.Name,
	}, nil
}

// Consume delivers messages to handler until ctx is done or the channel closes.
// A nil error acks, ErrDiscard drops, any other error requeues.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	log.WithField("queue", c.queue).Info("Consumer is running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			handleDelivery(ctx, c.queue, msg, handler)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, queue string, msg amqp.Delivery, handler func(context.Context, []byte) error) {
	settle(ctx, queue, msg.Body, &msg, handler)
}

func settle(ctx context.Context, queue string, body []byte, ack acknowledger, handler func(context.Context, []byte) error) {
	err := handler(ctx, body)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrDiscard):
		log.WithFields(log.Fields{
			"queue": queue,
			"error": err.Error(),
		}).Warn("Dropping unprocessable message")
		_ = ack.Nack(false, false)
	default:
		log.WithFields(log.Fields{
			"queue": queue,
			"error": err.Error(),
		}).Error("Handle msg failed, requeueing")
		_ = ack.Nack(false, true)
	}
}

// Close closes the channel.
func (c *Consumer) Close() error {
	return c.channel.Close()
}
