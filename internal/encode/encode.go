// Package encode turns rendered stereo frame sequences into per-eye videos
// with ffmpeg and muxes them into a single spatial video with an external
// spatial CLI.
package encode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Per-eye encoding settings. Lossless intermediate encodes keep the final
// spatial mux free of generation loss.
const (
	eyeVideoCodec  = "libx264"
	eyeVideoCRF    = "0"
	eyeVideoPreset = "veryslow"
	eyePixelFormat = "yuv420p"
)

// Eye video file names within the video output directory.
const (
	LeftEyeVideo  = "left_eye.mp4"
	RightEyeVideo = "right_eye.mp4"
)

// DefaultSpatialCmd is the spatial mux command looked up on PATH when no
// explicit command is configured.
const DefaultSpatialCmd = "spatial-make"

// EyeVideos encodes the left and right frame sequences in stereoDir into
// two videos under videoDir, returning their paths.
func EyeVideos(ctx context.Context, stereoDir, videoDir string, fps float64) (left, right string, err error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", "", fmt.Errorf("ffmpeg not found: video encoding requires ffmpeg: %w", err)
	}

	if err := os.MkdirAll(videoDir, 0755); err != nil {
		return "", "", fmt.Errorf("create video directory: %w", err)
	}

	left = filepath.Join(videoDir, LeftEyeVideo)
	right = filepath.Join(videoDir, RightEyeVideo)

	pairs := []struct {
		pattern string
		output  string
	}{
		{filepath.Join(stereoDir, "frame_%06d_left.png"), left},
		{filepath.Join(stereoDir, "frame_%06d_right.png"), right},
	}
	for _, p := range pairs {
		if err := encodeSequence(ctx, ffmpegPath, p.pattern, p.output, fps); err != nil {
			return "", "", err
		}
	}
	return left, right, nil
}

func encodeSequence(ctx context.Context, ffmpegPath, pattern, output string, fps float64) error {
	log.Info().
		Str("pattern", filepath.Base(pattern)).
		Str("output", filepath.Base(output)).
		Float64("fps", fps).
		Msg("Encoding eye video")

	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", pattern,
		"-c:v", eyeVideoCodec,
		"-crf", eyeVideoCRF,
		"-preset", eyeVideoPreset,
		"-pix_fmt", eyePixelFormat,
		"-r", fmt.Sprintf("%g", fps),
		output,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("eye video encoding failed for %s: %w\nOutput: %s",
			filepath.Base(output), err, string(out))
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("eye video missing after encode: %w", err)
	}
	log.Info().Str("output", filepath.Base(output)).Int64("size_bytes", info.Size()).Msg("Eye video encoded")
	return nil
}

// SpatialMux combines the two eye videos into one spatial video by running
// the configured mux command with (left, right, output) arguments.
func SpatialMux(ctx context.Context, muxCmd, leftVideo, rightVideo, outputPath string) error {
	if muxCmd == "" {
		muxCmd = DefaultSpatialCmd
	}
	cmdPath, err := exec.LookPath(muxCmd)
	if err != nil {
		return fmt.Errorf("spatial mux command not found: %s: %w", muxCmd, err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create spatial output directory: %w", err)
	}

	log.Info().
		Str("cmd", muxCmd).
		Str("output", filepath.Base(outputPath)).
		Msg("Muxing spatial video")

	cmd := exec.CommandContext(ctx, cmdPath, leftVideo, rightVideo, outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("spatial mux failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
