package notify

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes persistent JSON messages to a durable queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// DialAMQP connects and declares queue.
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
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
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Completed) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.RunID,
			Timestamp:    ev.FinishedAt,
			Body:         body,
		})
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
