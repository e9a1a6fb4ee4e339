package config

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

const (
	rabbitMQMaxRetries = 10
	rabbitMQRetryDelay = 3 * time.Second
)

// ConnectRabbitMQ dials the broker, retrying while it comes up.
func ConnectRabbitMQ(ctx context.Context, cfg RabbitMQConfig) (*amqp.Connection, error) {
	var lastErr error
	for i := 0; i < rabbitMQMaxRetries; i++ {
		conn, err := amqp.Dial(cfg.URL())
		if err == nil {
			log.WithField("host", cfg.Host).Info("Connected to RabbitMQ")
			return conn, nil
		}
		lastErr = err

		if i < rabbitMQMaxRetries-1 {
			log.WithFields(log.Fields{
				"host":    cfg.Host,
				"attempt": i + 1,
				"max":     rabbitMQMaxRetries,
				"error":   err.Error(),
			}).Warn("Failed to connect to RabbitMQ, retrying")

			select {
			case <-time.After(rabbitMQRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("connect to RabbitMQ after %d attempts: %w", rabbitMQMaxRetries, lastErr)
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return q, nil
}
