package render

// stereo.go renders one PLY frame into a left/right image pair. A frame
// whose outputs both exist already is skipped before any work, which makes
// re-running an interrupted batch safe.

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/splatworks/splatpipe/internal/ply"
)

// Eye identifies which half of a stereo pair a render belongs to.
type Eye string

const (
	EyeLeft  Eye = "left"
	EyeRight Eye = "right"
)

// FrameError reports a renderer failure for a specific frame and eye.
type FrameError struct {
	Frame string
	Eye   Eye
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("render %s (%s eye): %v", e.Frame, e.Eye, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// StereoRenderer orchestrates per-frame stereo renders: it resolves
// projection parameters, plans the eye positions and drives the invoker
// once per eye, left first, failing the frame on the first eye error.
type StereoRenderer struct {
	Invoker   Invoker
	OutputDir string
	Overrides Overrides

	IPD        float64
	CamPos     Vec3
	CamRot     Quat
	Background Color
}

// Done reports whether both eye outputs for the frame already exist.
func (s *StereoRenderer) Done(plyPath string) bool {
	left, right := ply.StereoImagePaths(plyPath, s.OutputDir)
	return fileExists(left) && fileExists(right)
}

// RenderFrame renders the left and right eye images for one PLY frame.
// Frames already done are skipped without touching the parameter resolver.
// The first failing eye aborts the frame; the error carries the frame and
// eye identity.
func (s *StereoRenderer) RenderFrame(ctx context.Context, plyPath string) error {
	if s.Done(plyPath) {
		log.Debug().Str("frame", plyPath).Msg("Both eye outputs exist, skipping")
		return nil
	}

	params := ResolveParams(plyPath, s.Overrides)
	leftPos, rightPos := StereoPositions(s.CamPos, s.IPD)
	leftPath, rightPath := ply.StereoImagePaths(plyPath, s.OutputDir)

	if err := s.Invoker.Render(ctx, s.job(plyPath, leftPath, params, leftPos)); err != nil {
		return &FrameError{Frame: plyPath, Eye: EyeLeft, Err: err}
	}
	if err := s.Invoker.Render(ctx, s.job(plyPath, rightPath, params, rightPos)); err != nil {
		return &FrameError{Frame: plyPath, Eye: EyeRight, Err: err}
	}
	return nil
}

// RenderMono renders a single image from the base camera position.
func (s *StereoRenderer) RenderMono(ctx context.Context, plyPath string) error {
	outPath := ply.MonoImagePath(plyPath, s.OutputDir)
	if fileExists(outPath) {
		log.Debug().Str("frame", plyPath).Msg("Mono output exists, skipping")
		return nil
	}

	params := ResolveParams(plyPath, s.Overrides)
	return s.Invoker.Render(ctx, s.job(plyPath, outPath, params, s.CamPos))
}

func (s *StereoRenderer) job(input, output string, params Params, pos Vec3) Job {
	return Job{
		Input:      input,
		Output:     output,
		Params:     params,
		CamPos:     pos,
		CamRot:     s.CamRot,
		Background: s.Background,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
