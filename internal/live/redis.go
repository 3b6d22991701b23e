package live

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// channelPrefix namespaces the Redis channels the backend publishes on.
const channelPrefix = "pitstop."

// RedisChannel bridges backend-published Redis pub/sub messages onto an
// in-process Bus, so consumers only ever see the Subscriber interface.
type RedisChannel struct {
	rdb    *redis.Client
	bus    *Bus
	logger zerolog.Logger
}

// NewRedisChannel wraps a Redis client. Run must be called before events
// start flowing.
func NewRedisChannel(rdb *redis.Client, logger zerolog.Logger) *RedisChannel {
	return &RedisChannel{rdb: rdb, bus: NewBus(), logger: logger}
}

// Subscribe registers a handler for a topic.
func (c *RedisChannel) Subscribe(topic string, h Handler) func() {
	return c.bus.Subscribe(topic, h)
}

// Run receives messages until ctx is cancelled. Malformed payloads are
// logged and dropped; the channel is advisory, never authoritative.
func (c *RedisChannel) Run(ctx context.Context) error {
	sub := c.rdb.Subscribe(ctx,
		channelPrefix+TopicSlotsChanged,
		channelPrefix+TopicAppointmentStatus,
	)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				c.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed live event")
				continue
			}
			ev.Topic = topicFromChannel(msg.Channel)
			c.bus.Publish(ev)
		}
	}
}

func topicFromChannel(channel string) string {
	if len(channel) > len(channelPrefix) && channel[:len(channelPrefix)] == channelPrefix {
		return channel[len(channelPrefix):]
	}
	return channel
}
