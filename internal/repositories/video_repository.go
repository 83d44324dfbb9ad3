package repositories

import (
	"context"

	"github.com/clipforge/backend/internal/models"
)

// VideoRepository exposes data access for videos moving through the pipeline.
//
// Every mutating method updates a single column (or applies a guarded
// compare-and-set). Workers for the same video run in parallel, so a
// load-mutate-save of the whole row would silently drop a sibling worker's
// committed rendition; the interface makes that pattern impossible to
// express.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, videoID string) (models.Video, error)
	ListUnpublished(ctx context.Context) ([]models.Video, error)
	SetRenditionKey(ctx context.Context, videoID string, format models.Format, key string) error
	SetThumbnailKey(ctx context.Context, videoID, key string) error
	SetMediaInfo(ctx context.Context, videoID string, info *models.MediaInfo) error
	// Publish flips published false->true. It returns true only for the
	// caller whose update actually changed the row, so concurrent sweeps
	// publish at most once.
	Publish(ctx context.Context, videoID string) (bool, error)
	// AdjustLikes applies a signed delta to the likes counter and returns
	// the resulting value.
	AdjustLikes(ctx context.Context, videoID string, delta int64) (int64, error)
}

// UserRepository exposes data access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, userID string) (models.User, error)
	// SetNotifyToken stores the per-user pub/sub secret. The token is
	// written exactly once; a second attempt returns ErrConflict.
	SetNotifyToken(ctx context.Context, userID, token string) error
}
