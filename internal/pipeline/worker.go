package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/clipforge/backend/internal/logging"
	"github.com/clipforge/backend/internal/models"
	"github.com/clipforge/backend/internal/queue"
	"github.com/clipforge/backend/internal/repositories"
)

// Fixed thumbnail dimensions, matching the derived image style the player
// expects.
const (
	thumbnailWidth  = 250
	thumbnailHeight = 150
)

// JobHandler executes production jobs from the queue. Each job populates
// exactly one column of the video row on success and leaves the record
// untouched on failure.
type JobHandler struct {
	videos  repositories.VideoRepository
	store   BlobStore
	encoder Encoder
	prober  Prober
	workDir string
	logger  *slog.Logger
}

// NewJobHandler wires the worker dependencies together.
func NewJobHandler(videos repositories.VideoRepository, store BlobStore, encoder Encoder, prober Prober, workDir string, logger *slog.Logger) *JobHandler {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		videos:  videos,
		store:   store,
		encoder: encoder,
		prober:  prober,
		workDir: workDir,
		logger:  logger,
	}
}

// Handle routes a job to the worker for its kind.
func (h *JobHandler) Handle(ctx context.Context, job queue.Job) error {
	ctx, span := logging.StartSpan(ctx, "job."+string(job.Kind), slog.String("video_id", job.VideoID))
	defer span.End()

	switch job.Kind {
	case queue.KindMP4:
		return h.handleRendition(ctx, job.VideoID, models.FormatMP4)
	case queue.KindOGV:
		return h.handleRendition(ctx, job.VideoID, models.FormatOGV)
	case queue.KindWebM:
		return h.handleRendition(ctx, job.VideoID, models.FormatWebM)
	case queue.KindThumbnail:
		return h.handleThumbnail(ctx, job.VideoID)
	case queue.KindMediaInfo:
		return h.handleMediaInfo(ctx, job.VideoID)
	default:
		return queue.Fatal(fmt.Errorf("unknown job kind %q", job.Kind))
	}
}

// handleRendition encodes the source into one target format and records
// the stored key through a single-column update. The scratch directory is
// unique per invocation so concurrent runs never collide, and the
// deferred removal covers every exit path.
func (h *JobHandler) handleRendition(ctx context.Context, videoID string, format models.Format) error {
	video, err := h.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(h.workDir, "clipforge-"+string(format)+"-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer h.removeScratch(scratch)

	sourcePath, err := h.fetchSource(ctx, video, scratch)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(scratch, "output."+string(format))
	if err := h.encoder.Encode(ctx, sourcePath, outputPath, format); err != nil {
		return fmt.Errorf("transcode video %s to %s: %w", video.ID, format, err)
	}

	key, err := h.saveArtifact(ctx, outputPath, path.Join(video.ID, string(format)+"."+string(format)))
	if err != nil {
		return err
	}

	if err := h.videos.SetRenditionKey(ctx, video.ID, format, key); err != nil {
		return fmt.Errorf("record %s rendition for video %s: %w", format, video.ID, err)
	}

	h.logger.Info("rendition ready", "videoId", video.ID, "format", format, "key", key)
	return nil
}

// handleThumbnail grabs a single frame one second in, resizes it to the
// fixed thumbnail dimensions and records the stored key.
func (h *JobHandler) handleThumbnail(ctx context.Context, videoID string) error {
	video, err := h.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(h.workDir, "clipforge-thumb-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer h.removeScratch(scratch)

	sourcePath, err := h.fetchSource(ctx, video, scratch)
	if err != nil {
		return err
	}

	framePath := filepath.Join(scratch, "frame.png")
	if err := h.encoder.ExtractFrame(ctx, sourcePath, framePath); err != nil {
		return fmt.Errorf("cut thumbnail for video %s: %w", video.ID, err)
	}

	frame, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("open extracted frame: %w", err)
	}

	thumb := imaging.Fill(frame, thumbnailWidth, thumbnailHeight, imaging.Center, imaging.Lanczos)
	thumbPath := filepath.Join(scratch, "thumbnail.png")
	if err := imaging.Save(thumb, thumbPath); err != nil {
		return fmt.Errorf("save resized thumbnail: %w", err)
	}

	key, err := h.saveArtifact(ctx, thumbPath, path.Join(video.ID, "thumbnail.png"))
	if err != nil {
		return err
	}

	if err := h.videos.SetThumbnailKey(ctx, video.ID, key); err != nil {
		return fmt.Errorf("record thumbnail for video %s: %w", video.ID, err)
	}

	h.logger.Info("thumbnail ready", "videoId", video.ID, "key", key)
	return nil
}

// handleMediaInfo probes the source file and stores its stream facts.
func (h *JobHandler) handleMediaInfo(ctx context.Context, videoID string) error {
	video, err := h.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp(h.workDir, "clipforge-probe-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer h.removeScratch(scratch)

	sourcePath, err := h.fetchSource(ctx, video, scratch)
	if err != nil {
		return err
	}

	info, err := h.prober.Probe(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("probe video %s: %w", video.ID, err)
	}

	if err := h.videos.SetMediaInfo(ctx, video.ID, info); err != nil {
		return fmt.Errorf("record media info for video %s: %w", video.ID, err)
	}

	return nil
}

func (h *JobHandler) loadVideo(ctx context.Context, videoID string) (models.Video, error) {
	video, err := h.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, queue.Fatal(fmt.Errorf("video %s: %w", videoID, err))
		}
		return models.Video{}, fmt.Errorf("load video %s: %w", videoID, err)
	}
	return video, nil
}

// fetchSource downloads the uploaded source into the scratch directory.
// An unfetchable source has no retry value, so the failure is fatal.
func (h *JobHandler) fetchSource(ctx context.Context, video models.Video, scratch string) (string, error) {
	sourcePath := filepath.Join(scratch, "source"+path.Ext(video.SourceKey))

	f, err := os.Create(sourcePath)
	if err != nil {
		return "", fmt.Errorf("create source scratch file: %w", err)
	}
	defer f.Close()

	if _, err := h.store.Fetch(ctx, video.SourceKey, f); err != nil {
		return "", queue.Fatal(fmt.Errorf("fetch source for video %s: %w", video.ID, err))
	}

	return sourcePath, nil
}

func (h *JobHandler) saveArtifact(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact %s: %w", localPath, err)
	}
	defer f.Close()

	stored, err := h.store.Save(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("store artifact %s: %w", key, err)
	}

	return stored, nil
}

func (h *JobHandler) removeScratch(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		h.logger.Warn("remove scratch dir", "dir", dir, "error", err)
	}
}

var _ queue.Handler = (*JobHandler)(nil)
