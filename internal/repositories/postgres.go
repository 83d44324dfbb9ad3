package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipforge/backend/internal/db"
	"github.com/clipforge/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, notify_token, created_at)
        VALUES ($1, $2, $3, $4)
    `, user.ID, user.Email, user.NotifyToken, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, userID string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, notify_token, created_at
        FROM users
        WHERE id = $1
    `, userID)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.NotifyToken, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

// SetNotifyToken stores the generated pub/sub secret for a user. The guard
// on the current value keeps the token write-once: retrying provisioning
// for an already-tokened user reports ErrConflict instead of rotating a
// secret that grants may already reference.
func (r *PostgresUserRepository) SetNotifyToken(ctx context.Context, userID, token string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET notify_token = $2
        WHERE id = $1 AND notify_token = ''
    `, userID, token)
	if err != nil {
		return fmt.Errorf("update user notify token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, userID); errors.Is(findErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}

	return nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, name, description, source_key, mp4_key, ogv_key, webm_key, thumbnail_key, published, likes, created_at)
        VALUES ($1, $2, $3, $4, $5, '', '', '', '', FALSE, 0, $6)
    `, video.ID, video.OwnerID, video.Name, video.Description, video.SourceKey, video.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

const videoColumns = `id, owner_id, name, description, source_key, mp4_key, ogv_key, webm_key, thumbnail_key, media_info, published, likes, created_at`

// FindByID fetches a video by identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, videoID string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE id = $1
    `, videoID)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListUnpublished returns every video still waiting on publication, oldest
// first. Each sweep pass re-reads the rendition columns, so a rendition
// committed after one pass is picked up by the next.
func (r *PostgresVideoRepository) ListUnpublished(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE published = FALSE
        ORDER BY created_at ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query unpublished videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unpublished videos: %w", err)
	}

	return videos, nil
}

// SetRenditionKey records the stored location of one encoded rendition.
// Only the named column is touched so parallel workers for the same video
// can never clobber each other's writes.
func (r *PostgresVideoRepository) SetRenditionKey(ctx context.Context, videoID string, format models.Format, key string) error {
	column, err := renditionColumn(format)
	if err != nil {
		return err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET `+column+` = $2
        WHERE id = $1
    `, videoID, key)
	if err != nil {
		return fmt.Errorf("update video %s key: %w", format, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetThumbnailKey records the stored location of the extracted thumbnail.
func (r *PostgresVideoRepository) SetThumbnailKey(ctx context.Context, videoID, key string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET thumbnail_key = $2
        WHERE id = $1
    `, videoID, key)
	if err != nil {
		return fmt.Errorf("update video thumbnail key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetMediaInfo stores probed stream facts for the source file.
func (r *PostgresVideoRepository) SetMediaInfo(ctx context.Context, videoID string, info *models.MediaInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode media info: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET media_info = $2
        WHERE id = $1
    `, videoID, payload)
	if err != nil {
		return fmt.Errorf("update video media info: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Publish flips the published flag from false to true. The WHERE clause is
// the compare-and-set: of any number of concurrent callers exactly one
// sees a row change and returns true, so publish events are emitted once.
func (r *PostgresVideoRepository) Publish(ctx context.Context, videoID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET published = TRUE
        WHERE id = $1 AND published = FALSE
    `, videoID)
	if err != nil {
		return false, fmt.Errorf("publish video: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// AdjustLikes applies a signed delta to the likes counter in a single
// statement and returns the new value. The counter has no floor.
func (r *PostgresVideoRepository) AdjustLikes(ctx context.Context, videoID string, delta int64) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET likes = likes + $2
        WHERE id = $1
        RETURNING likes
    `, videoID, delta)

	var likes int64
	if err := row.Scan(&likes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("adjust video likes: %w", err)
	}

	return likes, nil
}

func renditionColumn(format models.Format) (string, error) {
	switch format {
	case models.FormatMP4:
		return "mp4_key", nil
	case models.FormatOGV:
		return "ogv_key", nil
	case models.FormatWebM:
		return "webm_key", nil
	default:
		return "", fmt.Errorf("unknown rendition format %q", format)
	}
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video models.Video
		info  []byte
	)

	if err := row.Scan(
		&video.ID, &video.OwnerID, &video.Name, &video.Description,
		&video.SourceKey, &video.MP4Key, &video.OGVKey, &video.WebMKey,
		&video.ThumbnailKey, &info, &video.Published, &video.Likes,
		&video.CreatedAt,
	); err != nil {
		return models.Video{}, err
	}

	if len(info) > 0 {
		var decoded models.MediaInfo
		if err := json.Unmarshal(info, &decoded); err != nil {
			return models.Video{}, fmt.Errorf("decode media info: %w", err)
		}
		video.MediaInfo = &decoded
	}

	return video, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
