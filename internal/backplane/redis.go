package backplane

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/quickmeet/signaling/internal/domain"
	"github.com/quickmeet/signaling/lib/logger/sl"
)

// Redis fans envelopes out through a single pub/sub channel. Every node
// subscribes to the same channel and attempts local delivery of each
// message; nodes without the target connection drop it silently.
type Redis struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
	cancel  context.CancelFunc
}

func NewRedis(client *redis.Client, channel string, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: client, channel: channel, log: log}
}

func (r *Redis) Publish(ctx context.Context, env *domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Subscribe starts the consume loop in its own goroutine and returns
// once the subscription is confirmed.
func (r *Redis) Subscribe(ctx context.Context, deliver DeliverFunc) error {
	ctx, r.cancel = context.WithCancel(ctx)

	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env domain.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.log.Warn("malformed backplane message dropped", sl.Err(err))
					continue
				}
				deliver(&env)
			}
		}
	}()

	return nil
}

func (r *Redis) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}
