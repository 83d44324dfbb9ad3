package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/backend/internal/bus"
	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/repositories"
)

type videoRepoStub struct {
	mu     sync.Mutex
	videos map[string]*models.Video

	findErr    error
	publishErr error
	adjustErr  error
	listErr    error
	setErr     error
}

func newVideoRepoStub(videos ...models.Video) *videoRepoStub {
	stub := &videoRepoStub{videos: make(map[string]*models.Video)}
	for _, v := range videos {
		copy := v
		stub.videos[v.ID] = &copy
	}
	return stub
}

func (s *videoRepoStub) Create(ctx context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[video.ID]; ok {
		return repositories.ErrConflict
	}
	copy := video
	s.videos[video.ID] = &copy
	return nil
}

func (s *videoRepoStub) FindByID(ctx context.Context, videoID string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.Video{}, s.findErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return *v, nil
}

func (s *videoRepoStub) ListUnpublished(ctx context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Video
	for _, v := range s.videos {
		if !v.Published {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *videoRepoStub) SetRenditionKey(ctx context.Context, videoID string, format models.Format, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return repositories.ErrNotFound
	}
	switch format {
	case models.FormatMP4:
		v.MP4Key = key
	case models.FormatOGV:
		v.OGVKey = key
	case models.FormatWebM:
		v.WebMKey = key
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func (s *videoRepoStub) SetThumbnailKey(ctx context.Context, videoID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return repositories.ErrNotFound
	}
	v.ThumbnailKey = key
	return nil
}

func (s *videoRepoStub) SetMediaInfo(ctx context.Context, videoID string, info *models.MediaInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok {
		return repositories.ErrNotFound
	}
	v.MediaInfo = info
	return nil
}

func (s *videoRepoStub) Publish(ctx context.Context, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return false, s.publishErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if v.Published {
		return false, nil
	}
	v.Published = true
	return true, nil
}

func (s *videoRepoStub) AdjustLikes(ctx context.Context, videoID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adjustErr != nil {
		return 0, s.adjustErr
	}
	v, ok := s.videos[videoID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	v.Likes += delta
	return v.Likes, nil
}

func (s *videoRepoStub) get(t *testing.T, videoID string) models.Video {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok {
		t.Fatalf("video %s not in stub", videoID)
	}
	return *v
}

var _ repositories.VideoRepository = (*videoRepoStub)(nil)

type emittedEvent struct {
	channel string
	event   bus.Event
}

type busStub struct {
	mu     sync.Mutex
	events []emittedEvent
	err    error
}

func (s *busStub) Publish(ctx context.Context, channel string, event bus.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, emittedEvent{channel: channel, event: event})
	return nil
}

func (s *busStub) emitted() []emittedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emittedEvent(nil), s.events...)
}

var _ bus.Publisher = (*busStub)(nil)

// blobStoreStub keeps saved objects in memory and serves fetches from a
// fixed byte payload per key.
type blobStoreStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
	getErr  error
}

func newBlobStoreStub() *blobStoreStub {
	return &blobStoreStub{objects: make(map[string][]byte)}
}

func (s *blobStoreStub) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.objects[name] = data
	return name, nil
}

func (s *blobStoreStub) Fetch(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return 0, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %s not found", key)
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func (s *blobStoreStub) saved(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// encoderStub writes canned bytes to the output path instead of invoking
// a real tool.
type encoderStub struct {
	encodeErr  error
	frameErr   error
	output     []byte
	frame      []byte
	encoded    []models.Format
	mu         sync.Mutex
}

func (s *encoderStub) Encode(ctx context.Context, sourcePath, outputPath string, format models.Format) error {
	if s.encodeErr != nil {
		return s.encodeErr
	}
	s.mu.Lock()
	s.encoded = append(s.encoded, format)
	s.mu.Unlock()
	return os.WriteFile(outputPath, s.output, 0o644)
}

func (s *encoderStub) ExtractFrame(ctx context.Context, sourcePath, outputPath string) error {
	if s.frameErr != nil {
		return s.frameErr
	}
	return os.WriteFile(outputPath, s.frame, 0o644)
}

type proberStub struct {
	info *models.MediaInfo
	err  error
}

func (s *proberStub) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.info, nil
}

func waitForCondition(t *testing.T, predicate func() bool, timeout time.Duration) {
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
