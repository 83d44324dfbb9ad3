package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipforge/backend/internal/bus"
	"github.com/clipforge/backend/internal/repositories"
)

// Engagement applies like/dislike counter mutations and announces each
// action on the video's public channel. The counter is a signed delta
// with no floor; the returned value is for the caller's response only and
// is never pipeline state.
type Engagement struct {
	videos repositories.VideoRepository
	bus    bus.Publisher
	logger *slog.Logger
}

// NewEngagement constructs an engagement handler.
func NewEngagement(videos repositories.VideoRepository, b bus.Publisher, logger *slog.Logger) *Engagement {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engagement{videos: videos, bus: b, logger: logger}
}

// Like increments the likes counter by one and emits a "liked" event.
func (e *Engagement) Like(ctx context.Context, videoID string) (int64, error) {
	return e.adjust(ctx, videoID, 1, "liked")
}

// Dislike decrements the likes counter by one and emits a "disliked" event.
func (e *Engagement) Dislike(ctx context.Context, videoID string) (int64, error) {
	return e.adjust(ctx, videoID, -1, "disliked")
}

func (e *Engagement) adjust(ctx context.Context, videoID string, delta int64, event string) (int64, error) {
	likes, err := e.videos.AdjustLikes(ctx, videoID, delta)
	if err != nil {
		return 0, fmt.Errorf("%s video %s: %w", event, videoID, err)
	}

	if err := e.bus.Publish(ctx, bus.VideoChannel(videoID), bus.Event{Event: event}); err != nil {
		e.logger.Error("emit engagement event", "videoId", videoID, "event", event, "error", err)
	}

	return likes, nil
}
