package models

import "time"

// Video represents an uploaded video and its derived artifacts.
//
// The rendition and thumbnail keys start empty and are each filled in by
// exactly one background job. Published flips false->true exactly once,
// after every rendition key is present.
type Video struct {
	ID           string
	OwnerID      string
	Name         string
	Description  string
	SourceKey    string
	MP4Key       string
	OGVKey       string
	WebMKey      string
	ThumbnailKey string
	MediaInfo    *MediaInfo
	Published    bool
	Likes        int64
	CreatedAt    time.Time
}

// HasAllRenditions reports whether every encoded rendition exists. The
// thumbnail is deliberately not part of this check; publication does not
// wait for it.
func (v Video) HasAllRenditions() bool {
	return v.MP4Key != "" && v.OGVKey != "" && v.WebMKey != ""
}

// Format identifies one encoded rendition target.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatOGV  Format = "ogv"
	FormatWebM Format = "webm"
)

// Formats lists every rendition target a video must reach before it can
// be published.
var Formats = []Format{FormatMP4, FormatOGV, FormatWebM}

// MediaInfo captures probed container and stream facts for a source file.
// Stored as JSONB alongside the video row.
type MediaInfo struct {
	General TrackInfo `json:"general"`
	Video   TrackInfo `json:"video"`
	Audio   TrackInfo `json:"audio"`
}

// TrackInfo is a loose bag of per-track attributes as reported by the
// probe tool.
type TrackInfo struct {
	Format   string  `json:"format,omitempty"`
	Codec    string  `json:"codec,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	BitRate  int64   `json:"bit_rate,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Channels int     `json:"channels,omitempty"`
}

// User represents an account that owns videos and receives pipeline
// notifications on a private channel.
type User struct {
	ID          string
	Email       string
	NotifyToken string
	CreatedAt   time.Time
}
