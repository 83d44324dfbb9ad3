package transcode

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/backend/internal/models"
)

// FFprobe gathers container and stream facts for a source file through a
// single ffprobe JSON call.
type FFprobe struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFprobe constructs a prober that shells out to ffprobe.
func NewFFprobe(binary string, timeout time.Duration) *FFprobe {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &FFprobe{
		Binary:  binary,
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Probe inspects the file at path and returns its media facts.
func (p *FFprobe) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	run := p.Run
	if run == nil {
		run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	out, err := run(execCtx, p.Binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return parseProbeJSON(out)
}

// parseProbeJSON converts raw ffprobe JSON output into MediaInfo.
// Exported-path behavior is tested without a real ffprobe binary.
func parseProbeJSON(data []byte) (*models.MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	info := &models.MediaInfo{
		General: models.TrackInfo{
			Format:   raw.Format.FormatName,
			Duration: atof(raw.Format.Duration),
			BitRate:  atoi(raw.Format.BitRate),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if info.Video.Codec == "" {
				info.Video = models.TrackInfo{
					Codec:   s.CodecName,
					BitRate: atoi(s.BitRate),
					Width:   s.Width,
					Height:  s.Height,
				}
			}
		case "audio":
			if info.Audio.Codec == "" {
				info.Audio = models.TrackInfo{
					Codec:    s.CodecName,
					BitRate:  atoi(s.BitRate),
					Channels: s.Channels,
				}
			}
		}
	}

	return info, nil
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
	BitRate   string `json:"bit_rate"`
}

func atof(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func atoi(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
