package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/clipforge/backend/internal/models"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFmpeg converts source files by shelling out to the ffmpeg CLI tool.
// Success is defined by the process exit status alone.
type FFmpeg struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
}

// NewFFmpeg constructs a transcoder that shells out to ffmpeg.
func NewFFmpeg(binary string, timeout time.Duration) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &FFmpeg{
		Binary:  binary,
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Encode converts sourcePath into outputPath using the fixed profile for
// the requested format. A hung tool is cut off by the configured timeout
// and reported as a failure.
func (f *FFmpeg) Encode(ctx context.Context, sourcePath, outputPath string, format models.Format) error {
	profile, err := ProfileFor(format)
	if err != nil {
		return err
	}

	args := append([]string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-i", sourcePath}, profile.Args...)
	args = append(args, outputPath)

	if err := f.run(ctx, args); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	return nil
}

// ExtractFrame grabs a single still image from sourcePath at the fixed
// one-second offset and writes it to outputPath.
func (f *FFmpeg) ExtractFrame(ctx context.Context, sourcePath, outputPath string) error {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-i", sourcePath}
	args = append(args, thumbnailArgs...)
	args = append(args, outputPath)

	if err := f.run(ctx, args); err != nil {
		return fmt.Errorf("extract frame: %w", err)
	}

	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	run := f.Run
	if run == nil {
		run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	if _, err := run(execCtx, f.Binary, args...); err != nil {
		return err
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := lastStderrLine(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}

	return stdout.Bytes(), nil
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
