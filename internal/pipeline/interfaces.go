package pipeline

import (
	"context"
	"io"

	"github.com/clipforge/backend/internal/models"
)

// BlobStore captures the attachment-store operations the workers need:
// fetching the uploaded source and saving encoded outputs.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Fetch(ctx context.Context, key string, w io.WriterAt) (int64, error)
}

// Encoder converts a source file to a target rendition or still frame by
// invoking the external transcode tool.
type Encoder interface {
	Encode(ctx context.Context, sourcePath, outputPath string, format models.Format) error
	ExtractFrame(ctx context.Context, sourcePath, outputPath string) error
}

// Prober extracts container and stream facts from a source file.
type Prober interface {
	Probe(ctx context.Context, path string) (*models.MediaInfo, error)
}
