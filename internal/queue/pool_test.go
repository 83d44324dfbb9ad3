package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// memQueue is an in-memory Consumer used to exercise the pool without Redis.
type memQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func (q *memQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	q.mu.Lock()
	if len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()
		return job, nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return Job{}, ErrEmpty
	}
}

func (q *memQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type handlerFunc func(ctx context.Context, job Job) error

func (f handlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdownPool(t *testing.T, pool *WorkerPool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pool.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown pool: %v", err)
	}
}

func TestWorkerPoolRunsJobs(t *testing.T) {
	q := &memQueue{}
	var mu sync.Mutex
	var handled []Job
	handler := handlerFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		handled = append(handled, job)
		mu.Unlock()
		return nil
	})

	_ = q.Enqueue(context.Background(), Job{Kind: KindMP4, VideoID: "vid-1"})
	_ = q.Enqueue(context.Background(), Job{Kind: KindOGV, VideoID: "vid-1"})

	pool := NewWorkerPool(q, handler, PoolConfig{Workers: 2, PollTimeout: 10 * time.Millisecond}, testLogger())
	defer shutdownPool(t, pool)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 2
	}, time.Second)
}

func TestWorkerPoolRequeuesFailures(t *testing.T) {
	q := &memQueue{}
	var mu sync.Mutex
	attempts := make(map[int]int)
	handler := handlerFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts[job.Attempt]++
		mu.Unlock()
		if job.Attempt < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	_ = q.Enqueue(context.Background(), Job{Kind: KindWebM, VideoID: "vid-1"})

	pool := NewWorkerPool(q, handler, PoolConfig{Workers: 1, MaxRetry: 5, PollTimeout: 10 * time.Millisecond}, testLogger())
	defer shutdownPool(t, pool)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts[2] == 1
	}, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if attempts[0] != 1 || attempts[1] != 1 {
		t.Fatalf("expected one run per attempt, got %v", attempts)
	}
}

func TestWorkerPoolDropsFatalJobs(t *testing.T) {
	q := &memQueue{}
	var mu sync.Mutex
	var runs int
	handler := handlerFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return Fatal(errors.New("no retry value"))
	})

	_ = q.Enqueue(context.Background(), Job{Kind: KindThumbnail, VideoID: "vid-1"})

	pool := NewWorkerPool(q, handler, PoolConfig{Workers: 1, MaxRetry: 5, PollTimeout: 10 * time.Millisecond}, testLogger())
	defer shutdownPool(t, pool)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	}, time.Second)

	// Give a would-be retry time to surface before asserting it did not.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("fatal job must not be retried, ran %d times", runs)
	}
	if q.depth() != 0 {
		t.Fatalf("fatal job must not be requeued")
	}
}

func TestWorkerPoolExhaustsRetryBudget(t *testing.T) {
	q := &memQueue{}
	var mu sync.Mutex
	var runs int
	handler := handlerFunc(func(ctx context.Context, job Job) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return errors.New("always failing")
	})

	_ = q.Enqueue(context.Background(), Job{Kind: KindMP4, VideoID: "vid-1"})

	pool := NewWorkerPool(q, handler, PoolConfig{Workers: 1, MaxRetry: 3, PollTimeout: 10 * time.Millisecond}, testLogger())
	defer shutdownPool(t, pool)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 3
	}, time.Second)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 3 {
		t.Fatalf("expected exactly MaxRetry runs, got %d", runs)
	}
}

// brokenQueue fails every dequeue immediately, like a refused connection.
type brokenQueue struct {
	mu    sync.Mutex
	polls int
}

func (q *brokenQueue) Enqueue(ctx context.Context, job Job) error { return nil }

func (q *brokenQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	q.mu.Lock()
	q.polls++
	q.mu.Unlock()
	return Job{}, errors.New("connection refused")
}

func (q *brokenQueue) pollCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.polls
}

func TestWorkerPoolBacksOffOnDequeueErrors(t *testing.T) {
	q := &brokenQueue{}
	handler := handlerFunc(func(ctx context.Context, job Job) error { return nil })

	pool := NewWorkerPool(q, handler, PoolConfig{Workers: 1, PollTimeout: 50 * time.Millisecond}, testLogger())
	defer shutdownPool(t, pool)

	time.Sleep(120 * time.Millisecond)

	// Instant failures must be paced by the poll window, not retried in a
	// tight loop. 120ms at a 50ms backoff allows at most a handful of polls.
	if polls := q.pollCount(); polls > 5 {
		t.Fatalf("expected backoff between failed polls, got %d polls in 120ms", polls)
	}
}

func waitFor(t *testing.T, predicate func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
