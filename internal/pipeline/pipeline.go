// Package pipeline sequences the full spatial-video run: frame extraction,
// splat generation, stereo rendering, per-eye encoding and spatial muxing.
// The coordinator owns directory layout and artifact retention; every
// interactive decision arrives as an already-resolved value so the
// sequencing logic stays non-interactive.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/splatworks/splatpipe/internal/encode"
	"github.com/splatworks/splatpipe/internal/extract"
	"github.com/splatworks/splatpipe/internal/ply"
	"github.com/splatworks/splatpipe/internal/render"
	"github.com/splatworks/splatpipe/internal/splat"
)

// secondsPerFrame is the rough per-frame processing cost used for the
// pre-run estimate shown to the user.
const secondsPerFrame = 7

// Config carries every decision the coordinator needs, fully resolved.
type Config struct {
	InputVideo string
	OutputRoot string

	// KeepTemp retains intermediate PLY files after a successful render.
	KeepTemp bool

	// RegenerateStereo clears and re-renders existing stereo frames;
	// otherwise an existing stereo set is reused as-is.
	RegenerateStereo bool

	// OverwriteTemp clears the project's tmp directory before starting.
	OverwriteTemp bool

	Workers       int
	FrameInterval int
	MaxFrames     int

	Device     string
	Checkpoint string
	SharpBin   string

	BrushBin string
	IPD      float64

	SpatialCmd string

	// Confirm is consulted before committing to a long render; nil means
	// proceed without asking.
	Confirm func(prompt string) bool
}

// Paths is the project directory layout derived from the input video name.
type Paths struct {
	Project   string
	TmpDir    string
	FramesDir string
	PLYDir    string
	StereoDir string
	VideoDir  string
	Spatial   string
}

// Coordinator runs the pipeline stages in order, aborting on the first
// stage failure.
type Coordinator struct {
	cfg   Config
	paths Paths
}

// New creates a coordinator for one input video.
func New(cfg Config) *Coordinator {
	if cfg.IPD == 0 {
		cfg.IPD = render.DefaultIPD
	}
	project := ply.Stem(cfg.InputVideo)
	projectDir := filepath.Join(cfg.OutputRoot, project)
	tmpDir := filepath.Join(projectDir, "tmp")
	videoDir := filepath.Join(projectDir, "video_output")

	return &Coordinator{
		cfg: cfg,
		paths: Paths{
			Project:   project,
			TmpDir:    tmpDir,
			FramesDir: filepath.Join(tmpDir, "frames"),
			PLYDir:    filepath.Join(tmpDir, "ply"),
			StereoDir: filepath.Join(tmpDir, "stereo_frames"),
			VideoDir:  videoDir,
			Spatial:   filepath.Join(videoDir, project+"_spatial.mov"),
		},
	}
}

// Paths exposes the resolved project layout.
func (c *Coordinator) Paths() Paths { return c.paths }

// HasStereoFrames reports whether a previous run left rendered stereo
// frames in the project's temp area.
func (c *Coordinator) HasStereoFrames() bool {
	for _, pattern := range []string{"frame_*_left.png", "frame_*_right.png"} {
		matches, _ := filepath.Glob(filepath.Join(c.paths.StereoDir, pattern))
		if len(matches) > 0 {
			return true
		}
	}
	return false
}

// Run executes the pipeline. Any stage failure aborts the run; no
// partial-stage retry is attempted.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.layout(); err != nil {
		return err
	}

	reuseStereo := false
	if c.HasStereoFrames() {
		if c.cfg.RegenerateStereo {
			log.Info().Str("dir", c.paths.StereoDir).Msg("Clearing existing stereo frames")
			if err := os.RemoveAll(c.paths.StereoDir); err != nil {
				return fmt.Errorf("clear stereo frames: %w", err)
			}
			if err := os.MkdirAll(c.paths.StereoDir, 0755); err != nil {
				return fmt.Errorf("recreate stereo directory: %w", err)
			}
		} else {
			log.Info().Msg("Reusing existing stereo frames")
			reuseStereo = true
		}
	}

	info, err := extract.Probe(ctx, c.cfg.InputVideo)
	if err != nil {
		return fmt.Errorf("probe input video: %w", err)
	}

	if !reuseStereo {
		if err := c.generateStereo(ctx, info); err != nil {
			return err
		}
	}

	log.Info().Msg("Encoding per-eye videos")
	left, right, err := encode.EyeVideos(ctx, c.paths.StereoDir, c.paths.VideoDir, info.FPS)
	if err != nil {
		return fmt.Errorf("encode eye videos: %w", err)
	}

	log.Info().Msg("Muxing spatial video")
	if err := encode.SpatialMux(ctx, c.cfg.SpatialCmd, left, right, c.paths.Spatial); err != nil {
		return fmt.Errorf("mux spatial video: %w", err)
	}

	log.Info().Str("output", c.paths.Spatial).Msg("Pipeline complete")
	return nil
}

// layout creates the stage directories, clearing tmp first when requested.
func (c *Coordinator) layout() error {
	if c.cfg.OverwriteTemp {
		if _, err := os.Stat(c.paths.TmpDir); err == nil {
			log.Info().Str("dir", c.paths.TmpDir).Msg("Clearing existing temp directory")
			if err := os.RemoveAll(c.paths.TmpDir); err != nil {
				return fmt.Errorf("clear temp directory: %w", err)
			}
		}
	}
	for _, dir := range []string{c.paths.FramesDir, c.paths.PLYDir, c.paths.StereoDir, c.paths.VideoDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// generateStereo runs extraction, splat prediction and the stereo render
// batch, then applies the retention policy to the intermediate PLYs.
func (c *Coordinator) generateStereo(ctx context.Context, info *extract.VideoInfo) error {
	if info.FrameCount > 0 && c.cfg.Confirm != nil {
		est := info.FrameCount * secondsPerFrame
		prompt := fmt.Sprintf("Estimated processing time for %d frames: %dh %dm. Continue?",
			info.FrameCount, est/3600, est%3600/60)
		if !c.cfg.Confirm(prompt) {
			return fmt.Errorf("aborted by user")
		}
	}

	frameCount, err := extract.Frames(ctx, c.cfg.InputVideo, c.paths.FramesDir, extract.Options{
		FrameInterval: c.cfg.FrameInterval,
		MaxFrames:     c.cfg.MaxFrames,
	})
	if err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}
	log.Info().Int("frames", frameCount).Msg("Frames extracted")

	if err := splat.Predict(ctx, c.paths.FramesDir, c.paths.PLYDir, splat.Options{
		Bin:        c.cfg.SharpBin,
		Device:     c.cfg.Device,
		Checkpoint: c.cfg.Checkpoint,
	}); err != nil {
		return fmt.Errorf("generate splats: %w", err)
	}

	plyFiles, err := ply.List(c.paths.PLYDir)
	if err != nil {
		return fmt.Errorf("list splat frames: %w", err)
	}
	if len(plyFiles) == 0 {
		return fmt.Errorf("no PLY files found in %s", c.paths.PLYDir)
	}

	brush := &render.Brush{Bin: render.ResolveBin(c.cfg.BrushBin, "")}
	if err := brush.Available(); err != nil {
		return err
	}
	renderer := &render.StereoRenderer{
		Invoker:    brush,
		OutputDir:  c.paths.StereoDir,
		Overrides:  render.Overrides{UsePLYCamera: true},
		IPD:        c.cfg.IPD,
		CamPos:     render.DefaultCamPos,
		CamRot:     render.DefaultCamRot,
		Background: render.DefaultBackground,
	}

	results := renderer.RenderBatch(ctx, plyFiles, c.cfg.Workers)
	if failed := render.Failed(results); len(failed) > 0 {
		for _, f := range failed {
			log.Error().Err(f.Err).Str("frame", f.Frame).Msg("Frame failed")
		}
		return fmt.Errorf("stereo render failed for %d of %d frames", len(failed), len(results))
	}

	if !c.cfg.KeepTemp {
		for _, p := range plyFiles {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("ply", p).Msg("Failed to remove intermediate PLY")
			}
		}
	}
	return nil
}
