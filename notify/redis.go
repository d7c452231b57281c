// Package notify provides optional cross-process transports for a
// collection's change events, satisfying the collection's narrow EventSink
// interface.
package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v9"
)

// RedisSink publishes change events to a Redis channel, for hosts that run
// the collection embedded in one process but want observers in another.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink wires a RedisSink against client, publishing every event under
// a single Redis pub/sub channel (the collection-level channel name - insert,
// update, delete, ... - is carried in the published envelope instead of
// mapped to distinct Redis channels, keeping one subscription per collection).
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

type envelope struct {
	Channel string `json:"channel"`
	Body    any    `json:"body"`
}

// Publish satisfies nanocol.EventSink
func (s *RedisSink) Publish(ctx context.Context, channel string, body any) error {
	bits, err := json.Marshal(envelope{Channel: channel, Body: body})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, bits).Err()
}
