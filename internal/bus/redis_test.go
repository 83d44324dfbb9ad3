package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBus(t *testing.T) (*RedisBus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBus(client), mr
}

func TestRedisBusGrantsPerCredentialCoexist(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBus(t)

	// The baseline installed at service start: anonymous read on the video
	// pattern, then the service credential's read+write on both patterns.
	grants := []Grant{
		{ChannelPattern: VideoChannelPattern, Read: true},
		{ChannelPattern: VideoChannelPattern, Read: true, Write: true, AuthKey: "service-key"},
		{ChannelPattern: NotificationChannelPattern, Read: true, Write: true, AuthKey: "service-key"},
	}
	for _, grant := range grants {
		if err := b.Grant(ctx, grant); err != nil {
			t.Fatalf("grant %s: %v", grant.ChannelPattern, err)
		}
	}

	public, err := b.client.HGetAll(ctx, "bus:grant:video.*:public").Result()
	if err != nil {
		t.Fatalf("read public grant: %v", err)
	}
	if public["read"] != "true" || public["write"] != "false" || public["auth_key"] != "" {
		t.Fatalf("anonymous read-only grant clobbered: %v", public)
	}

	service, err := b.client.HGetAll(ctx, "bus:grant:video.*:service-key").Result()
	if err != nil {
		t.Fatalf("read service grant: %v", err)
	}
	if service["read"] != "true" || service["write"] != "true" || service["auth_key"] != "service-key" {
		t.Fatalf("unexpected service grant: %v", service)
	}

	notif, err := b.client.Exists(ctx, "bus:grant:notifications.*:service-key").Result()
	if err != nil || notif != 1 {
		t.Fatalf("notification pattern grant missing (exists=%d, err=%v)", notif, err)
	}
}

func TestRedisBusGrantTTL(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestBus(t)

	if err := b.Grant(ctx, Grant{ChannelPattern: "video.v1", Read: true, AuthKey: "tok", TTL: time.Minute}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if ttl := mr.TTL("bus:grant:video.v1:tok"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %s", ttl)
	}

	if err := b.Grant(ctx, Grant{ChannelPattern: "video.v2", Read: true, AuthKey: "tok"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if ttl := mr.TTL("bus:grant:video.v2:tok"); ttl != 0 {
		t.Fatalf("zero-TTL grant must not expire, got %s", ttl)
	}
}

func TestRedisBusGrantRejectsEmptyPattern(t *testing.T) {
	b, _ := newTestBus(t)
	if err := b.Grant(context.Background(), Grant{Read: true}); err == nil {
		t.Fatalf("expected error for empty channel pattern")
	}
}

func TestRedisBusPublishRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBus(t)

	sub := b.Subscribe(ctx, VideoChannel("v1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("confirm subscription: %v", err)
	}

	if err := b.Publish(ctx, VideoChannel("v1"), Event{Event: "published"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != "video.v1" {
			t.Fatalf("unexpected channel %q", msg.Channel)
		}
		var decoded Event
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Event != "published" {
			t.Fatalf("unexpected event %+v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message received")
	}
}
