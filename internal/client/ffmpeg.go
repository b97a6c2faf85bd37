package client

import (
	"context"
	"fmt"
	"log"
	"os/exec"
)

// VideoConcatenator defines the interface for the clip concatenation transform
type VideoConcatenator interface {
	Concat(ctx context.Context, listPath, outputPath string) error
}

// commandRunner abstracts command execution so tests can stub ffmpeg
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegClient concatenates same-codec clips with the concat demuxer.
// Streams are copied, never re-encoded.
type FFmpegClient struct {
	binary string
	run    commandRunner
}

// NewFFmpegClient creates a concatenation client around the ffmpeg binary
func NewFFmpegClient(binary string) *FFmpegClient {
	return &FFmpegClient{
		binary: binary,
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests
func (c *FFmpegClient) WithCommandRunner(r commandRunner) {
	if c != nil && r != nil {
		c.run = r
	}
}

// Concat joins the playlist entries in listPath into outputPath
func (c *FFmpegClient) Concat(ctx context.Context, listPath, outputPath string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}

	log.Printf("[FFmpeg] → %s %v", c.binary, args)

	output, err := c.run(ctx, c.binary, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w (output: %s)", err, string(output))
	}

	return nil
}

// IsConfigured returns true if an ffmpeg binary is available
func (c *FFmpegClient) IsConfigured() bool {
	if c.binary == "" {
		return false
	}
	_, err := exec.LookPath(c.binary)
	return err == nil
}
