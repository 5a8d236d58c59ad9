// README: Redis pub/sub notifier adapter.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type message struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, topic, event string, payload any) error {
	body, err := json.Marshal(message{Event: event, Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, topic, body).Err()
}
