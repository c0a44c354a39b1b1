package render

// brush.go builds and executes brush-render invocations. One invocation
// renders one eye of one frame; the caller decides retry and sequencing
// policy.

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultBrushBin is the renderer binary name looked up on PATH when no
// explicit path is given.
const DefaultBrushBin = "brush-render"

// Job describes one renderer invocation: one input PLY, one output image,
// fully resolved projection parameters and camera pose. Immutable once
// built.
type Job struct {
	Input      string
	Output     string
	Params     Params
	CamPos     Vec3
	CamRot     Quat
	Background Color
}

// Invoker runs one render job to completion. Implementations report any
// non-zero renderer exit as an error; they never retry.
type Invoker interface {
	Render(ctx context.Context, job Job) error
}

// Brush invokes the brush-render executable as a synchronous subprocess.
type Brush struct {
	// Bin is the resolved binary path or name.
	Bin string

	// Subsample takes every nth splat when > 0.
	Subsample int

	// ExtraArgs are passed through to the renderer verbatim.
	ExtraArgs []string

	// DryRun logs the command without executing and reports success.
	DryRun bool
}

// ResolveBin picks the renderer binary: an explicit path wins, then a
// local build under rootDir, then the bare name from PATH.
func ResolveBin(explicit, rootDir string) string {
	if explicit != "" {
		return explicit
	}
	if rootDir != "" {
		local := filepath.Join(rootDir, "brush", "target", "release", DefaultBrushBin)
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	return DefaultBrushBin
}

// Available reports whether the renderer binary can be executed.
func (b *Brush) Available() error {
	if strings.ContainsRune(b.Bin, os.PathSeparator) {
		if _, err := os.Stat(b.Bin); err != nil {
			return fmt.Errorf("brush-render binary not found: %s: %w", b.Bin, err)
		}
		return nil
	}
	if _, err := exec.LookPath(b.Bin); err != nil {
		return fmt.Errorf("brush-render binary not found: %s: %w", b.Bin, err)
	}
	return nil
}

// Render executes the renderer for one job. The output directory is
// created if missing. On failure the renderer's combined output is folded
// into the returned error; a partial output file may remain. An invocation
// already started runs to completion even when ctx is cancelled; callers
// honor cancellation between frames instead.
func (b *Brush) Render(ctx context.Context, job Job) error {
	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := buildBrushArgs(job, b.Subsample, b.ExtraArgs)

	log.Debug().
		Str("bin", b.Bin).
		Strs("args", args).
		Msg("Running brush-render")

	if b.DryRun {
		log.Info().Str("cmd", b.Bin+" "+strings.Join(args, " ")).Msg("Dry run, skipping execution")
		return nil
	}

	// Killing the renderer mid-write would leave a partial eye image, so
	// the subprocess is not bound to ctx.
	cmd := exec.Command(b.Bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("brush-render failed for %s: %w\nOutput: %s",
			filepath.Base(job.Input), err, string(output))
	}
	return nil
}

// buildBrushArgs lays out the renderer's argument contract: positional
// input, --output, optional size and fov-x, required center and pose,
// then the optional trailing parameters.
func buildBrushArgs(job Job, subsample int, extra []string) []string {
	args := []string{job.Input, "--output", job.Output}

	if job.Params.Width > 0 {
		args = append(args, "--width", strconv.Itoa(job.Params.Width))
	}
	if job.Params.Height > 0 {
		args = append(args, "--height", strconv.Itoa(job.Params.Height))
	}
	if job.Params.FovX != nil {
		args = append(args, "--fov-x", formatFloat(*job.Params.FovX))
	}
	args = append(args,
		"--center-x", formatFloat(job.Params.CenterX),
		"--center-y", formatFloat(job.Params.CenterY),
		"--cam-pos",
		formatFloat(job.CamPos[0]), formatFloat(job.CamPos[1]), formatFloat(job.CamPos[2]),
		"--cam-rot",
		formatFloat(job.CamRot[0]), formatFloat(job.CamRot[1]),
		formatFloat(job.CamRot[2]), formatFloat(job.CamRot[3]),
		"--background",
		formatFloat(job.Background[0]), formatFloat(job.Background[1]), formatFloat(job.Background[2]),
	)

	if job.Params.FovY != nil {
		args = append(args, "--fov-y", formatFloat(*job.Params.FovY))
	}
	if job.Params.FocalX != nil {
		args = append(args, "--focal-x", formatFloat(*job.Params.FocalX))
	}
	if job.Params.FocalY != nil {
		args = append(args, "--focal-y", formatFloat(*job.Params.FocalY))
	}
	if subsample > 0 {
		args = append(args, "--subsample-points", strconv.Itoa(subsample))
	}
	args = append(args, extra...)

	return args
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
