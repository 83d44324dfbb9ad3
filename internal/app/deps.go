package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/backend/internal/access"
	"github.com/clipforge/backend/internal/bus"
	"github.com/clipforge/backend/internal/config"
	"github.com/clipforge/backend/internal/db"
	"github.com/clipforge/backend/internal/pipeline"
	"github.com/clipforge/backend/internal/queue"
	"github.com/clipforge/backend/internal/repositories"
	"github.com/clipforge/backend/internal/storage"
	"github.com/clipforge/backend/internal/transcode"
)

// Dependencies aggregates the wired pipeline components.
type Dependencies struct {
	Queue      *queue.RedisQueue
	Jobs       *pipeline.JobHandler
	Ingest     *pipeline.IngestService
	Sweeper    *pipeline.Sweeper
	Engagement *pipeline.Engagement
	Access     *access.Manager
}

// buildDependencies wires together the concrete implementations used by the
// pipeline service. The event bus handle is constructed here once and
// handed to every component that needs it; nothing reaches for a global.
func buildDependencies(pool db.Pool, redisClient *redis.Client, store *storage.S3Storage, cfg config.Config, logger *slog.Logger) Dependencies {
	videoRepo := repositories.NewPostgresVideoRepository(pool)
	userRepo := repositories.NewPostgresUserRepository(pool)

	eventBus := bus.NewRedisBus(redisClient)
	jobQueue := queue.NewRedisQueue(redisClient, cfg.QueueName)

	encoder := transcode.NewFFmpeg(cfg.FFmpegPath, cfg.ToolTimeout)
	prober := transcode.NewFFprobe(cfg.FFprobePath, cfg.ToolTimeout)

	dispatcher := pipeline.NewDispatcher(jobQueue, logger)
	publisher := pipeline.NewPublisher(videoRepo, eventBus, logger)

	return Dependencies{
		Queue:  jobQueue,
		Jobs:   pipeline.NewJobHandler(videoRepo, store, encoder, prober, cfg.WorkDir, logger),
		Ingest: pipeline.NewIngestService(videoRepo, store, dispatcher, logger),
		Sweeper: pipeline.NewSweeper(videoRepo, publisher, pipeline.SweeperConfig{
			Interval: cfg.SweepInterval,
			Parallel: cfg.SweepParallel,
		}, logger),
		Engagement: pipeline.NewEngagement(videoRepo, eventBus, logger),
		Access:     access.NewManager(userRepo, eventBus, cfg.BusAuthKey, logger),
	}
}
