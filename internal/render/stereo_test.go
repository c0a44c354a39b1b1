package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// spyInvoker records every job and writes the output file on success.
// failFrames maps frame stems (optionally with ":left"/":right") that
// should fail.
type spyInvoker struct {
	mu         sync.Mutex
	jobs       []Job
	failFrames map[string]bool
}

func (s *spyInvoker) Render(_ context.Context, job Job) error {
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	stem := strings.TrimSuffix(filepath.Base(job.Input), ".ply")
	eye := ""
	switch {
	case strings.HasSuffix(job.Output, "_left.png"):
		eye = ":left"
	case strings.HasSuffix(job.Output, "_right.png"):
		eye = ":right"
	}
	if s.failFrames[stem] || s.failFrames[stem+eye] {
		return errors.New("simulated renderer exit 1")
	}

	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		return err
	}
	return os.WriteFile(job.Output, []byte("png"), 0644)
}

func (s *spyInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func writeFrames(t *testing.T, dir string, count int) []string {
	t.Helper()
	var paths []string
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.ply", i))
		if err := os.WriteFile(path, []byte("ply\nend_header\n"), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func newTestRenderer(invoker Invoker, outDir string) *StereoRenderer {
	return &StereoRenderer{
		Invoker:    invoker,
		OutputDir:  outDir,
		IPD:        DefaultIPD,
		CamPos:     DefaultCamPos,
		CamRot:     DefaultCamRot,
		Background: DefaultBackground,
	}
}

func TestRenderFrameProducesBothEyesLeftFirst(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 1)

	spy := &spyInvoker{}
	r := newTestRenderer(spy, outDir)

	if err := r.RenderFrame(context.Background(), frames[0]); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if spy.callCount() != 2 {
		t.Fatalf("invoker called %d times, expected 2", spy.callCount())
	}
	if !strings.HasSuffix(spy.jobs[0].Output, "_left.png") {
		t.Errorf("first invocation = %q, expected left eye", spy.jobs[0].Output)
	}
	if !strings.HasSuffix(spy.jobs[1].Output, "_right.png") {
		t.Errorf("second invocation = %q, expected right eye", spy.jobs[1].Output)
	}
	if !r.Done(frames[0]) {
		t.Error("frame should be done after both renders")
	}

	// Eye positions symmetric about the base.
	if spy.jobs[0].CamPos[0] != -DefaultIPD/2 || spy.jobs[1].CamPos[0] != DefaultIPD/2 {
		t.Errorf("eye positions = %v / %v", spy.jobs[0].CamPos, spy.jobs[1].CamPos)
	}
}

func TestRenderFrameFailFastOnLeftEye(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 1)

	spy := &spyInvoker{failFrames: map[string]bool{"frame_000000:left": true}}
	r := newTestRenderer(spy, outDir)

	err := r.RenderFrame(context.Background(), frames[0])
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FrameError, got %T", err)
	}
	if fe.Eye != EyeLeft {
		t.Errorf("failed eye = %s, expected left", fe.Eye)
	}
	if spy.callCount() != 1 {
		t.Errorf("invoker called %d times, expected fail-fast after left eye", spy.callCount())
	}
}

func TestRenderFrameSkipsWhenDone(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 1)

	left, right := filepath.Join(outDir, "frame_000000_left.png"), filepath.Join(outDir, "frame_000000_right.png")
	for _, p := range []string{left, right} {
		if err := os.WriteFile(p, []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	spy := &spyInvoker{}
	r := newTestRenderer(spy, outDir)

	if err := r.RenderFrame(context.Background(), frames[0]); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if spy.callCount() != 0 {
		t.Errorf("invoker called %d times for a done frame, expected 0", spy.callCount())
	}
}

func TestRenderFrameHalfDoneRerenders(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 1)

	// Only the left output exists (interrupted previous run).
	if err := os.WriteFile(filepath.Join(outDir, "frame_000000_left.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	spy := &spyInvoker{}
	r := newTestRenderer(spy, outDir)

	if err := r.RenderFrame(context.Background(), frames[0]); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if spy.callCount() != 2 {
		t.Errorf("invoker called %d times, expected full re-render of half-done frame", spy.callCount())
	}
}

func TestRenderMono(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 1)

	spy := &spyInvoker{}
	r := newTestRenderer(spy, outDir)

	if err := r.RenderMono(context.Background(), frames[0]); err != nil {
		t.Fatalf("RenderMono: %v", err)
	}
	if spy.callCount() != 1 {
		t.Fatalf("invoker called %d times, expected 1", spy.callCount())
	}
	if spy.jobs[0].CamPos != DefaultCamPos {
		t.Errorf("mono render position = %v, expected base position", spy.jobs[0].CamPos)
	}
	if filepath.Base(spy.jobs[0].Output) != "frame_000000.png" {
		t.Errorf("mono output = %q", spy.jobs[0].Output)
	}
}

func TestRenderBatchReportsOnlyFailedFrames(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 5)

	spy := &spyInvoker{failFrames: map[string]bool{"frame_000002": true}}
	r := newTestRenderer(spy, outDir)

	results := r.RenderBatch(context.Background(), frames, 3)
	if len(results) != 5 {
		t.Fatalf("got %d results, expected 5 (lost results?)", len(results))
	}

	failed := Failed(results)
	if len(failed) != 1 {
		t.Fatalf("got %d failures, expected exactly 1: %v", len(failed), failed)
	}
	if filepath.Base(failed[0].Frame) != "frame_000002.ply" {
		t.Errorf("failed frame = %q, expected frame_000002.ply", failed[0].Frame)
	}

	var fe *FrameError
	if !errors.As(failed[0].Err, &fe) {
		t.Fatalf("failure should carry frame and eye identity, got %T", failed[0].Err)
	}

	// Siblings of the failed frame completed.
	for _, idx := range []int{0, 1, 3, 4} {
		name := fmt.Sprintf("frame_%06d", idx)
		if !r.Done(filepath.Join(inDir, name+".ply")) {
			t.Errorf("frame %s should have completed", name)
		}
	}
}

func TestRenderBatchStopsSubmittingOnCancel(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	frames := writeFrames(t, inDir, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spy := &spyInvoker{}
	r := newTestRenderer(spy, outDir)

	results := r.RenderBatch(ctx, frames, 2)
	if len(results) != 0 {
		t.Errorf("got %d results after pre-cancelled context, expected 0", len(results))
	}
	if spy.callCount() != 0 {
		t.Errorf("invoker called %d times after cancellation", spy.callCount())
	}
}
