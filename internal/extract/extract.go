// Package extract pulls numbered still frames out of an input video with
// ffmpeg and probes video properties with ffprobe. Both tools are treated
// as opaque command-line collaborators.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

// FramePattern is the ffmpeg output pattern for extracted frames, matching
// the frame naming used across the pipeline.
const FramePattern = "frame_%06d.png"

// DefaultFPS is assumed when ffprobe cannot determine the frame rate.
const DefaultFPS = 30.0

// Options configures frame extraction.
type Options struct {
	// FrameInterval extracts every Nth frame; 1 or 0 extracts all.
	FrameInterval int

	// MaxFrames stops extraction after N frames; 0 = unlimited.
	MaxFrames int
}

// VideoInfo is the subset of ffprobe output the pipeline needs.
type VideoInfo struct {
	FPS        float64
	Duration   float64 // seconds
	FrameCount int
}

// ffprobeOutput mirrors the JSON structure emitted by ffprobe.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe inspects a video with ffprobe. Frame rate falls back to DefaultFPS
// when the stream does not declare one.
func Probe(ctx context.Context, videoPath string) (*VideoInfo, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", filepath.Base(videoPath), err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{FPS: DefaultFPS}
	if probe.Format.Duration != "" {
		info.Duration, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if fps := parseFrameRate(stream.RFrameRate); fps > 0 {
			info.FPS = fps
		}
		if stream.NbFrames != "" {
			info.FrameCount, _ = strconv.Atoi(stream.NbFrames)
		}
		break
	}

	log.Debug().
		Str("video", filepath.Base(videoPath)).
		Float64("fps", info.FPS).
		Float64("duration_s", info.Duration).
		Int("frames", info.FrameCount).
		Msg("Probed video")

	return info, nil
}

// parseFrameRate converts an ffprobe rational like "30000/1001" to a float.
func parseFrameRate(rate string) float64 {
	var num, den float64
	if n, err := fmt.Sscanf(rate, "%g/%g", &num, &den); err != nil || n != 2 || den == 0 {
		return 0
	}
	return num / den
}

// Frames extracts still frames from a video into outputDir as
// frame_000000.png onward, returning the number of frames written.
func Frames(ctx context.Context, videoPath, outputDir string, opts Options) (int, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return 0, fmt.Errorf("ffmpeg not found: frame extraction requires ffmpeg: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("create frames directory: %w", err)
	}

	args := []string{"-i", videoPath, "-qscale:v", "2", "-start_number", "0"}
	if opts.FrameInterval > 1 {
		args = append(args, "-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, opts.FrameInterval), "-vsync", "vfr")
	} else {
		args = append(args, "-vsync", "0")
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.MaxFrames))
	}
	args = append(args, "-y", filepath.Join(outputDir, FramePattern))

	log.Info().
		Str("video", filepath.Base(videoPath)).
		Int("frame_interval", opts.FrameInterval).
		Msg("Extracting frames")

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("frame extraction failed: %w\nOutput: %s", err, string(output))
	}

	count, err := countFrames(outputDir)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("no frames extracted from video: %s", filepath.Base(videoPath))
	}

	log.Info().Int("frames", count).Str("dir", outputDir).Msg("Frame extraction complete")
	return count, nil
}

// countFrames counts extracted frame images in a directory.
func countFrames(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return len(matches), nil
}
