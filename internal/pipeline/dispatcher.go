// Package pipeline contains the transcoding workflow: job dispatch on
// ingestion, the per-format encode workers, periodic completion sweeping,
// the publish transition and engagement counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clipforge/backend/internal/queue"
)

// productionKinds are the jobs dispatched for every new video. Order here
// carries no meaning; the queue makes no ordering promise and the workers
// require none.
var productionKinds = []queue.Kind{
	queue.KindMP4,
	queue.KindOGV,
	queue.KindWebM,
	queue.KindThumbnail,
	queue.KindMediaInfo,
}

// Dispatcher fans a newly created video out into independent production
// jobs. Called exactly once per video, synchronously with record
// creation; it never waits on job completion.
type Dispatcher struct {
	queue  queue.Enqueuer
	logger *slog.Logger
}

// NewDispatcher constructs a dispatcher over the provided queue.
func NewDispatcher(q queue.Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{queue: q, logger: logger}
}

// Dispatch enqueues one job per production kind, each carrying only the
// video identifier. A kind that fails to enqueue does not stop the
// others; the combined error reports every failure.
func (d *Dispatcher) Dispatch(ctx context.Context, videoID string) error {
	var errs []error
	for _, kind := range productionKinds {
		job := queue.Job{Kind: kind, VideoID: videoID}
		if err := d.queue.Enqueue(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("dispatch %s: %w", kind, err))
			continue
		}
		d.logger.Debug("dispatched job", "kind", kind, "videoId", videoID)
	}
	return errors.Join(errs...)
}
