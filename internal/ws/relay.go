package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"support-chat/internal/models"
)

type relayEnvelope struct {
	Origin string           `json:"origin"`
	Room   string           `json:"room"`
	Event  models.ChatEvent `json:"event"`
}

// RedisRelay fans hub events out to every instance over Redis pub/sub. An
// instance delivers its own events locally and skips them on the way back.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  zerolog.Logger
}

// NewRedisRelay constructs a relay for hub on channel.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		logger:  logger,
	}
}

// Publish sends an event to the other instances.
func (r *RedisRelay) Publish(ctx context.Context, room string, event models.ChatEvent) error {
	data, err := json.Marshal(relayEnvelope{Origin: r.origin, Room: room, Event: event})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the channel and replays remote events into the hub
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Str("channel", r.channel).Msg("websocket relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn().Err(err).Msg("discarding malformed relay message")
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.hub.Deliver(env.Room, env.Event)
}
