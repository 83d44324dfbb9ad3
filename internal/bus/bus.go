// Package bus provides the real-time event transport used to fan
// pipeline events out to subscribers, together with the channel-scoped
// access grants subscribers authenticate against.
package bus

import (
	"context"
	"time"
)

// Event is the structured payload published on a channel. Only the fields
// relevant to a given event kind are set; the rest marshal away.
type Event struct {
	Event string `json:"event"`
	Scope string `json:"scope,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Grant scopes read/write access to a channel pattern. An empty AuthKey
// means no credential is required; a zero TTL means the grant never
// expires.
type Grant struct {
	ChannelPattern string
	Read           bool
	Write          bool
	AuthKey        string
	TTL            time.Duration
}

// Publisher emits events on named channels. Delivery is best-effort; a
// failed publish never rolls back persisted state.
type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// Granter records channel access grants.
type Granter interface {
	Grant(ctx context.Context, grant Grant) error
}

// Bus combines event publication with access management.
type Bus interface {
	Publisher
	Granter
}

// VideoChannel names the public per-video event channel.
func VideoChannel(videoID string) string {
	return "video." + videoID
}

// NotificationChannel names a user's private notification channel.
func NotificationChannel(userID string) string {
	return "notifications." + userID
}

const (
	// VideoChannelPattern matches every per-video channel.
	VideoChannelPattern = "video.*"
	// NotificationChannelPattern matches every private user channel.
	NotificationChannelPattern = "notifications.*"
)
