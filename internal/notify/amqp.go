// README: RabbitMQ notifier adapter publishing to a topic exchange.
package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeName = "waypoint.events"

type AMQPNotifier struct {
	channel *amqp.Channel
}

// NewAMQPNotifier declares the durable topic exchange and returns the
// adapter. Topics like "order:123" become routing keys like "order.123".
func NewAMQPNotifier(conn *amqp.Connection) (*AMQPNotifier, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = channel.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &AMQPNotifier{channel: channel}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, topic, event string, payload any) error {
	body, err := json.Marshal(message{Event: event, Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return n.channel.PublishWithContext(ctx,
		exchangeName,
		routingKey(topic),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		},
	)
}

func routingKey(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}
