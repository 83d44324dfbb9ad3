package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clipforge/backend/internal/queue"
)

type enqueuerStub struct {
	mu      sync.Mutex
	jobs    []queue.Job
	failFor queue.Kind
}

func (s *enqueuerStub) Enqueue(ctx context.Context, job queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Kind == s.failFor {
		return errors.New("queue unavailable")
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func TestDispatcherEnqueuesAllKinds(t *testing.T) {
	enqueuer := &enqueuerStub{}
	dispatcher := NewDispatcher(enqueuer, discardLogger())

	if err := dispatcher.Dispatch(context.Background(), "vid-1"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	seen := make(map[queue.Kind]bool)
	for _, job := range enqueuer.jobs {
		if job.VideoID != "vid-1" {
			t.Fatalf("job carries wrong video id: %+v", job)
		}
		if job.Attempt != 0 {
			t.Fatalf("fresh job must start at attempt 0: %+v", job)
		}
		seen[job.Kind] = true
	}

	for _, kind := range []queue.Kind{queue.KindMP4, queue.KindOGV, queue.KindWebM, queue.KindThumbnail, queue.KindMediaInfo} {
		if !seen[kind] {
			t.Fatalf("missing %s job", kind)
		}
	}
}

func TestDispatcherPartialFailure(t *testing.T) {
	enqueuer := &enqueuerStub{failFor: queue.KindOGV}
	dispatcher := NewDispatcher(enqueuer, discardLogger())

	err := dispatcher.Dispatch(context.Background(), "vid-1")
	if err == nil {
		t.Fatalf("expected error when one enqueue fails")
	}

	if len(enqueuer.jobs) != len(productionKinds)-1 {
		t.Fatalf("one failing kind must not stop the others, got %d jobs", len(enqueuer.jobs))
	}
}
