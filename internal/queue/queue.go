// Package queue dispatches pipeline jobs through a Redis-backed list with
// at-least-once delivery and a bounded retry budget per job.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind identifies the work a job carries.
type Kind string

const (
	KindMP4       Kind = "mp4"
	KindOGV       Kind = "ogv"
	KindWebM      Kind = "webm"
	KindThumbnail Kind = "thumbnail"
	KindMediaInfo Kind = "mediainfo"
)

// Job is the unit of work moving through the queue. It carries only the
// video identifier; workers reload whatever state they need, which keeps
// redelivered jobs from acting on stale snapshots.
type Job struct {
	Kind    Kind   `json:"kind"`
	VideoID string `json:"video_id"`
	Attempt int    `json:"attempt,omitempty"`
}

// Enqueuer schedules jobs for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Handler executes a single job. Returning an error requeues the job
// unless the error is marked fatal or the retry budget is spent.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// ErrEmpty reports that no job was available within the poll window.
var ErrEmpty = errors.New("queue empty")

// RedisQueue persists jobs in a Redis list. LPUSH plus BRPOP yields FIFO
// ordering per queue, though consumers must not rely on ordering across
// jobs.
type RedisQueue struct {
	client *redis.Client
	name   string
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	if name == "" {
		name = "clipforge:jobs"
	}
	return &RedisQueue{client: client, name: name}
}

// Enqueue appends a job to the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s job for video %s: %w", job.Kind, job.VideoID, err)
	}

	return nil
}

// Dequeue blocks up to timeout waiting for the next job. ErrEmpty is
// returned when the window elapses without work.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Job{}, ErrEmpty
		}
		return Job{}, fmt.Errorf("dequeue: %w", err)
	}

	// BRPop returns [key, value].
	if len(res) != 2 {
		return Job{}, fmt.Errorf("dequeue: unexpected reply length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}

	return job, nil
}

var _ Enqueuer = (*RedisQueue)(nil)
