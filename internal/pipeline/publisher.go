package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipforge/backend/internal/bus"
	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/repositories"
)

// nameTruncateLen bounds the video name carried in owner notifications.
const nameTruncateLen = 20

// Publisher performs the publish state transition and fans the resulting
// events out to subscribers. The persisted flag is the source of truth;
// event emission is best-effort and never rolls the transition back.
type Publisher struct {
	videos repositories.VideoRepository
	bus    bus.Publisher
	logger *slog.Logger
}

// NewPublisher constructs a publication engine.
func NewPublisher(videos repositories.VideoRepository, b bus.Publisher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{videos: videos, bus: b, logger: logger}
}

// Publish transitions the video to published. The repository applies the
// flip as a compare-and-set, so when two sweeps race only the winner
// emits events; the loser returns without side effects.
func (p *Publisher) Publish(ctx context.Context, video models.Video) error {
	won, err := p.videos.Publish(ctx, video.ID)
	if err != nil {
		return fmt.Errorf("publish video %s: %w", video.ID, err)
	}
	if !won {
		return nil
	}

	p.logger.Info("video published", "videoId", video.ID, "ownerId", video.OwnerID)

	p.emit(ctx, bus.VideoChannel(video.ID), bus.Event{Event: "published"})
	p.emit(ctx, bus.NotificationChannel(video.OwnerID), bus.Event{
		Event: "published",
		Scope: "videos",
		ID:    video.ID,
		Name:  truncateName(video.Name, nameTruncateLen),
	})

	return nil
}

func (p *Publisher) emit(ctx context.Context, channel string, event bus.Event) {
	if err := p.bus.Publish(ctx, channel, event); err != nil {
		p.logger.Error("emit event", "channel", channel, "event", event.Event, "error", err)
	}
}

// truncateName shortens s to at most max runes, replacing the tail with
// an ellipsis when it does not fit.
func truncateName(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
