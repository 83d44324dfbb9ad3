package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PoolConfig controls the concurrency characteristics of the worker pool.
type PoolConfig struct {
	Workers     int
	MaxRetry    int
	PollTimeout time.Duration
}

// Consumer is the queue surface the pool needs: it pulls jobs and pushes
// retries back.
type Consumer interface {
	Enqueuer
	Dequeue(ctx context.Context, timeout time.Duration) (Job, error)
}

// WorkerPool pulls jobs off the queue and runs them through the handler on
// a fixed set of goroutines. A failed job is requeued with an incremented
// attempt counter until the retry budget is spent or the failure is fatal.
type WorkerPool struct {
	queue   Consumer
	handler Handler
	logger  *slog.Logger
	cfg     PoolConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorkerPool constructs and starts the pool.
func NewWorkerPool(queue Consumer, handler Handler, cfg PoolConfig, logger *slog.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		queue:   queue,
		handler: handler,
		logger:  logger,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go pool.worker()
	}

	return pool
}

// Shutdown stops the pool and waits for in-flight jobs to finish.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.once.Do(p.cancel)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(p.ctx, p.cfg.PollTimeout)
		if err != nil {
			if errors.Is(err, ErrEmpty) || p.ctx.Err() != nil {
				continue
			}
			p.logger.Error("dequeue job", "error", err)
			// A broken queue connection fails immediately instead of
			// blocking for the poll window; wait it out so the loop
			// does not spin.
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.cfg.PollTimeout):
			}
			continue
		}

		p.handleJob(job)
	}
}

func (p *WorkerPool) handleJob(job Job) {
	err := p.handler.Handle(p.ctx, job)
	if err == nil {
		return
	}

	if IsFatal(err) {
		p.logger.Error("job failed fatally, dropping",
			"kind", job.Kind, "videoId", job.VideoID, "attempt", job.Attempt, "error", err)
		return
	}

	if job.Attempt+1 >= p.cfg.MaxRetry {
		p.logger.Error("job exhausted retries, dropping",
			"kind", job.Kind, "videoId", job.VideoID, "attempt", job.Attempt, "error", err)
		return
	}

	p.logger.Warn("job failed, requeuing",
		"kind", job.Kind, "videoId", job.VideoID, "attempt", job.Attempt, "error", err)

	retry := job
	retry.Attempt++

	requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.queue.Enqueue(requeueCtx, retry); err != nil {
		p.logger.Error("requeue job",
			"kind", job.Kind, "videoId", job.VideoID, "error", err)
	}
}
