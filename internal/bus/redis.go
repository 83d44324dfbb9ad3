package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus on top of Redis: events travel over pub/sub
// channels, and grants live in a hash per (channel pattern, credential)
// pair that edge servers consult when admitting subscribers. Keying by
// the pair lets the anonymous read-only grant and a credential's
// read+write grant on the same pattern coexist.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus wraps an existing Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, prefix: "bus:grant:"}
}

// Publish marshals the event and emits it on the channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	return nil
}

// Grant records channel-pattern access in the shared access table.
func (b *RedisBus) Grant(ctx context.Context, grant Grant) error {
	if grant.ChannelPattern == "" {
		return fmt.Errorf("grant: empty channel pattern")
	}

	key := b.grantKey(grant.ChannelPattern, grant.AuthKey)
	fields := map[string]interface{}{
		"read":     strconv.FormatBool(grant.Read),
		"write":    strconv.FormatBool(grant.Write),
		"auth_key": grant.AuthKey,
	}

	if err := b.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("store grant for %s: %w", grant.ChannelPattern, err)
	}

	if grant.TTL > 0 {
		if err := b.client.Expire(ctx, key, grant.TTL).Err(); err != nil {
			return fmt.Errorf("expire grant for %s: %w", grant.ChannelPattern, err)
		}
	}

	return nil
}

// grantKey names the hash holding one credential's access to a channel
// pattern. The anonymous grant is stored under the literal "public"
// segment; auth keys are hex tokens, so the segment is unambiguous.
func (b *RedisBus) grantKey(pattern, authKey string) string {
	if authKey == "" {
		authKey = "public"
	}
	return b.prefix + pattern + ":" + authKey
}

// Subscribe opens a subscription for the provided channels. Exposed for
// consumers and tests; the pipeline itself only publishes.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return b.client.Subscribe(ctx, channels...)
}

var _ Bus = (*RedisBus)(nil)
