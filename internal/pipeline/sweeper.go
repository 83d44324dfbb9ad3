package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/backend/internal/logging"
	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/repositories"
)

// VideoPublisher performs the publish transition for a ready video.
type VideoPublisher interface {
	Publish(ctx context.Context, video models.Video) error
}

// SweeperConfig controls the sweep cadence and per-pass parallelism.
type SweeperConfig struct {
	Interval time.Duration
	Parallel int
}

// Sweeper periodically scans for unpublished videos whose renditions are
// all present and hands them to the publication engine. The scan is
// idempotent: once a video is published it drops out of the unpublished
// set, and a rendition committed mid-pass is seen on the next pass.
type Sweeper struct {
	videos    repositories.VideoRepository
	publisher VideoPublisher
	cfg       SweeperConfig
	logger    *slog.Logger
}

// NewSweeper constructs a completion sweeper.
func NewSweeper(videos repositories.VideoRepository, publisher VideoPublisher, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{videos: videos, publisher: publisher, cfg: cfg, logger: logger}
}

// Run sweeps on the configured period until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("completion sweep", "error", err)
			}
		}
	}
}

// Sweep runs one pass: evaluate readiness for every unpublished video and
// publish the ready ones. Videos within a pass are independent, so they
// are published in parallel up to the configured limit.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, span := logging.StartSpan(ctx, "completion-sweep")
	defer span.End()

	videos, err := s.videos.ListUnpublished(ctx)
	if err != nil {
		return fmt.Errorf("list unpublished videos: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Parallel)

	for _, video := range videos {
		if !video.HasAllRenditions() {
			continue
		}
		video := video
		group.Go(func() error {
			if err := s.publisher.Publish(groupCtx, video); err != nil {
				// One video failing must not stop the rest of the pass.
				s.logger.Error("publish ready video", "videoId", video.ID, "error", err)
			}
			return nil
		})
	}

	return group.Wait()
}
