package transcode

import (
	"fmt"

	"github.com/clipforge/backend/internal/models"
)

// Profile fixes the ffmpeg flags and file extension for one rendition
// target. The flag sets are deliberately static; callers only choose the
// target, never individual codec options.
type Profile struct {
	Format models.Format
	Ext    string
	Args   []string
}

var profiles = map[models.Format]Profile{
	models.FormatMP4: {
		Format: models.FormatMP4,
		Ext:    ".mp4",
		Args:   []string{"-f", "mp4", "-vcodec", "h264", "-acodec", "aac", "-strict", "-2"},
	},
	models.FormatOGV: {
		Format: models.FormatOGV,
		Ext:    ".ogv",
		Args:   []string{"-codec:v", "libtheora", "-qscale:v", "7", "-codec:a", "libvorbis", "-qscale:a", "7"},
	},
	models.FormatWebM: {
		Format: models.FormatWebM,
		Ext:    ".webm",
		Args:   []string{"-f", "webm", "-c:v", "libvpx", "-b:v", "1M", "-c:a", "libvorbis"},
	},
}

// ProfileFor returns the encode profile for the requested format.
func ProfileFor(format models.Format) (Profile, error) {
	profile, ok := profiles[format]
	if !ok {
		return Profile{}, fmt.Errorf("no encode profile for format %q", format)
	}
	return profile, nil
}

// Thumbnail extraction grabs a single frame one second in; the fixed
// output dimensions are applied afterwards by the caller.
var thumbnailArgs = []string{"-ss", "00:00:01.000", "-vframes", "1"}

// ThumbnailExt is the container for extracted frames.
const ThumbnailExt = ".png"
