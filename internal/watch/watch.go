// Package watch polls a directory for point-cloud frames arriving from an
// upstream producer and feeds them to a renderer once they are safe to
// read. A frame is presumed fully written after its byte size is unchanged
// across two consecutive polls.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/splatworks/splatpipe/internal/ply"
)

// DefaultPollInterval is the sleep between poll cycles.
const DefaultPollInterval = time.Second

// FrameRenderer renders one frame and reports whether a frame's outputs
// already exist. Satisfied by render.StereoRenderer.
type FrameRenderer interface {
	RenderFrame(ctx context.Context, plyPath string) error
	Done(plyPath string) bool
}

// Options configures a watcher run. All paths and policies are explicit;
// the watcher carries no ambient configuration.
type Options struct {
	// InputDir is polled for *.ply frame files.
	InputDir string

	// OutputDir holds the rendered images; used to recover the expected
	// index in sequential mode.
	OutputDir string

	// Sequential gates processing on ascending frame index: the watcher
	// waits for the exact next frame_XXXXXX.ply and never renders out of
	// order.
	Sequential bool

	// PollInterval is the sleep between poll cycles; DefaultPollInterval
	// when zero.
	PollInterval time.Duration

	// DeleteSource removes a frame's PLY file after a successful render.
	DeleteSource bool
}

// Watcher discovers frames as they arrive and drives the renderer. It is
// single-threaded: all state is touched only from Run's polling loop.
type Watcher struct {
	renderer FrameRenderer
	opts     Options

	// sizes maps frame path to the byte size seen on the previous poll.
	sizes map[string]int64
}

// New creates a watcher over the given input directory.
func New(renderer FrameRenderer, opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Watcher{
		renderer: renderer,
		opts:     opts,
		sizes:    make(map[string]int64),
	}
}

// Run polls until the context is cancelled. There is no other termination
// condition: the input is an open-ended stream of frames. Returns nil on
// cancellation and an error when a render fails (the next run resumes
// safely: a frame counts as done only when both outputs exist).
func (w *Watcher) Run(ctx context.Context) error {
	log.Info().
		Str("input", w.opts.InputDir).
		Bool("sequential", w.opts.Sequential).
		Dur("poll_interval", w.opts.PollInterval).
		Msg("Watching for PLY frames")

	if w.opts.Sequential {
		return w.runSequential(ctx)
	}
	return w.runUnordered(ctx)
}

func (w *Watcher) runUnordered(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		progressed, err := w.pollOnce(ctx)
		if err != nil {
			return err
		}
		if !progressed {
			if stopped := w.sleep(ctx); stopped {
				return nil
			}
		}
	}
}

// pollOnce renders every currently eligible frame in index order and
// reports whether any render happened.
func (w *Watcher) pollOnce(ctx context.Context) (bool, error) {
	files, err := ply.List(w.opts.InputDir)
	if err != nil {
		return false, fmt.Errorf("list input frames: %w", err)
	}

	rendered := false
	for _, path := range files {
		if ctx.Err() != nil {
			return rendered, nil
		}
		if w.renderer.Done(path) {
			continue
		}
		if !w.isStable(path) {
			continue
		}
		if err := w.renderFrame(ctx, path); err != nil {
			return rendered, err
		}
		rendered = true
	}
	return rendered, nil
}

func (w *Watcher) runSequential(ctx context.Context) error {
	expected := NextExpectedIndex(w.opts.OutputDir)
	log.Info().Int("next_index", expected).Msg("Sequential mode, resuming after last rendered frame")

	for {
		if ctx.Err() != nil {
			return nil
		}

		path := filepath.Join(w.opts.InputDir, ply.SequentialName(expected, ".ply"))
		if _, err := os.Stat(path); err != nil {
			if stopped := w.sleep(ctx); stopped {
				return nil
			}
			continue
		}

		if w.renderer.Done(path) {
			// Rendered by a previous run; advance without re-rendering.
			expected++
			continue
		}
		if !w.isStable(path) {
			if stopped := w.sleep(ctx); stopped {
				return nil
			}
			continue
		}

		if err := w.renderFrame(ctx, path); err != nil {
			return err
		}
		expected++
	}
}

func (w *Watcher) renderFrame(ctx context.Context, path string) error {
	log.Info().Str("frame", filepath.Base(path)).Msg("Rendering")
	if err := w.renderer.RenderFrame(ctx, path); err != nil {
		return err
	}
	if w.opts.DeleteSource {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("frame", path).Msg("Failed to remove source frame")
		}
		delete(w.sizes, path)
	}
	return nil
}

// isStable records the frame's current size and reports whether it matches
// the previous observation. A size change resets the stability clock; a
// zero-size file is never stable.
func (w *Watcher) isStable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		delete(w.sizes, path)
		return false
	}
	size := info.Size()
	last, seen := w.sizes[path]
	w.sizes[path] = size
	return seen && last == size && size > 0
}

// sleep waits one poll interval, returning true if the context was
// cancelled while waiting.
func (w *Watcher) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(w.opts.PollInterval):
		return false
	}
}

// NextExpectedIndex derives the sequential-mode starting index from the
// output directory: one past the highest frame index with a rendered eye
// image, or 0 when none exist. Resumability is re-derived from the
// filesystem; no checkpoint state is persisted.
func NextExpectedIndex(outputDir string) int {
	next := 0
	for _, pattern := range []string{"frame_*_left.png", "frame_*_right.png"} {
		matches, err := filepath.Glob(filepath.Join(outputDir, pattern))
		if err != nil {
			continue
		}
		for _, m := range matches {
			if idx, ok := outputFrameIndex(m); ok && idx+1 > next {
				next = idx + 1
			}
		}
	}
	return next
}

// outputFrameIndex parses the frame index from a rendered image name such
// as frame_000012_left.png.
func outputFrameIndex(path string) (int, bool) {
	stem := ply.Stem(path)
	stem = strings.TrimSuffix(stem, "_left")
	stem = strings.TrimSuffix(stem, "_right")
	if !strings.HasPrefix(stem, "frame_") {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(stem, "frame_"))
	if err != nil {
		return 0, false
	}
	return idx, true
}
