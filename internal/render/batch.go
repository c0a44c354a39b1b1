package render

// batch.go fans a collection of frames out across a bounded pool of render
// workers. Workers block on the external renderer; one frame's failure is
// recorded without cancelling its siblings.

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultWorkers bounds concurrent renderer processes. Kept small: each
// brush-render instance holds the full splat scene in GPU memory.
const DefaultWorkers = 2

// FrameResult is the per-frame outcome of a batch render. Err is nil on
// success and a *FrameError when the renderer failed, so the aggregation
// step never distinguishes "crashed" from "returned an error".
type FrameResult struct {
	Frame string
	Err   error
}

// Failed filters a batch result down to the failing frames.
func Failed(results []FrameResult) []FrameResult {
	var failed []FrameResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// RenderBatch renders the given frames concurrently with at most workers
// renderer processes in flight. Submission stops at context cancellation;
// frames already in flight run to completion. The returned slice holds one
// result per submitted frame, in no particular order.
func (s *StereoRenderer) RenderBatch(ctx context.Context, frames []string, workers int) []FrameResult {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	log.Info().
		Int("frames", len(frames)).
		Int("workers", workers).
		Msg("Rendering stereo batch")

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	var mu sync.Mutex
	var results []FrameResult

	for _, frame := range frames {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Batch cancelled, skipping remaining frames")
			break
		}

		wg.Add(1)
		go func(plyPath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := s.RenderFrame(ctx, plyPath)
			if err != nil {
				log.Error().Err(err).Str("frame", plyPath).Msg("Frame render failed")
			}

			mu.Lock()
			results = append(results, FrameResult{Frame: plyPath, Err: err})
			mu.Unlock()
		}(frame)
	}

	wg.Wait()

	if failed := Failed(results); len(failed) > 0 {
		log.Warn().
			Int("failed", len(failed)).
			Int("total", len(results)).
			Msg("Batch completed with failures")
	}
	return results
}
