// Package splat drives the external sharp CLI, which turns still frames
// into Gaussian splat PLY files with an ML model. The model itself is out
// of scope; only the command contract lives here.
package splat

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Options configures a prediction run.
type Options struct {
	// Bin is an explicit path to the sharp executable; discovered when
	// empty.
	Bin string

	// Device selects the compute device: default/cpu/mps/cuda.
	Device string

	// Checkpoint is an optional model checkpoint path.
	Checkpoint string
}

// FindBin locates the sharp executable: PATH first, then common user-local
// install locations.
func FindBin() (string, error) {
	if path, err := exec.LookPath("sharp"); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("sharp not found in PATH: %w", err)
	}

	patterns := []string{
		filepath.Join(home, "Library", "Python", "*", "bin", "sharp"),
		filepath.Join(home, ".local", "bin", "sharp"),
	}
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		// Iterate backwards so the newest Python version wins.
		for i := len(matches) - 1; i >= 0; i-- {
			if info, err := os.Stat(matches[i]); err == nil && info.Mode()&0111 != 0 {
				return matches[i], nil
			}
		}
	}
	return "", fmt.Errorf("sharp executable not found in PATH or user-local installs")
}

// Predict runs sharp over a directory of frames, writing one PLY per frame
// into outputDir.
func Predict(ctx context.Context, inputDir, outputDir string, opts Options) error {
	bin := opts.Bin
	if bin == "" {
		var err error
		bin, err = FindBin()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create ply directory: %w", err)
	}

	device := opts.Device
	if device == "" {
		device = "default"
	}

	args := []string{"predict", "-i", inputDir, "-o", outputDir, "--device", device}
	if opts.Checkpoint != "" {
		args = append(args, "-c", opts.Checkpoint)
	}

	log.Info().
		Str("bin", bin).
		Str("input", inputDir).
		Str("device", device).
		Msg("Generating splats with sharp")

	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sharp predict failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
