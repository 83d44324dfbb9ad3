package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/repositories"
)

// NewVideo carries the inputs for video creation.
type NewVideo struct {
	OwnerID     string
	Name        string
	Description string
	Filename    string
	Source      io.Reader
}

// IngestService accepts an uploaded source, persists the record and
// triggers the production dispatch exactly once.
type IngestService struct {
	videos     repositories.VideoRepository
	store      BlobStore
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewIngestService constructs the ingestion entry point.
func NewIngestService(videos repositories.VideoRepository, store BlobStore, dispatcher *Dispatcher, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		videos:     videos,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores the source bytes, inserts the video record and dispatches
// the production jobs. The record exists before any job can run, and
// dispatch happens once, synchronously with creation.
func (s *IngestService) Create(ctx context.Context, input NewVideo) (models.Video, error) {
	if strings.TrimSpace(input.Name) == "" {
		return models.Video{}, fmt.Errorf("video name is required")
	}
	if input.Source == nil {
		return models.Video{}, fmt.Errorf("video source is required")
	}

	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   s.now().UTC(),
	}

	sourceName := path.Join(video.ID, "source"+path.Ext(input.Filename))
	key, err := s.store.Save(ctx, sourceName, input.Source)
	if err != nil {
		return models.Video{}, fmt.Errorf("store source for video %s: %w", video.ID, err)
	}
	video.SourceKey = key

	if err := s.videos.Create(ctx, video); err != nil {
		return models.Video{}, fmt.Errorf("create video record: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, video.ID); err != nil {
		return models.Video{}, fmt.Errorf("dispatch production jobs for video %s: %w", video.ID, err)
	}

	s.logger.Info("video ingested", "videoId", video.ID, "ownerId", video.OwnerID)
	return video, nil
}
