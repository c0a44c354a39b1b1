package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeRenderer satisfies FrameRenderer, records render order and writes
// both eye outputs on success.
type fakeRenderer struct {
	mu         sync.Mutex
	rendered   []string
	outDir     string
	failFrames map[string]bool
}

func (f *fakeRenderer) RenderFrame(_ context.Context, plyPath string) error {
	f.mu.Lock()
	f.rendered = append(f.rendered, filepath.Base(plyPath))
	f.mu.Unlock()

	stem := stemOf(plyPath)
	if f.failFrames[stem] {
		return errors.New("simulated renderer failure")
	}
	for _, suffix := range []string{"_left.png", "_right.png"} {
		if err := os.WriteFile(filepath.Join(f.outDir, stem+suffix), []byte("png"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRenderer) Done(plyPath string) bool {
	stem := stemOf(plyPath)
	return exists(filepath.Join(f.outDir, stem+"_left.png")) &&
		exists(filepath.Join(f.outDir, stem+"_right.png"))
}

func (f *fakeRenderer) renderedFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rendered...)
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writePLY(t *testing.T, dir string, index, size int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("frame_%06d.ply", index))
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestWatcher(t *testing.T, opts Options) (*Watcher, *fakeRenderer) {
	t.Helper()
	f := &fakeRenderer{outDir: opts.OutputDir}
	if opts.PollInterval == 0 {
		opts.PollInterval = 2 * time.Millisecond
	}
	return New(f, opts), f
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestStabilityRequiresTwoEqualObservations(t *testing.T) {
	inDir := t.TempDir()
	w, _ := newTestWatcher(t, Options{InputDir: inDir, OutputDir: t.TempDir()})

	path := writePLY(t, inDir, 0, 100)

	if w.isStable(path) {
		t.Error("first observation must not be stable")
	}
	if !w.isStable(path) {
		t.Error("second observation at the same size should be stable")
	}

	// Growth resets the stability clock.
	if err := os.WriteFile(path, make([]byte, 150), 0644); err != nil {
		t.Fatal(err)
	}
	if w.isStable(path) {
		t.Error("size change must reset stability")
	}
	if !w.isStable(path) {
		t.Error("unchanged size after reset should be stable again")
	}
}

func TestZeroSizeFileNeverStable(t *testing.T) {
	inDir := t.TempDir()
	w, _ := newTestWatcher(t, Options{InputDir: inDir, OutputDir: t.TempDir()})

	path := writePLY(t, inDir, 0, 0)
	w.isStable(path)
	if w.isStable(path) {
		t.Error("zero-size file must not become stable")
	}
}

func TestPollOnceSkipsDoneFrames(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	w, f := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir})

	writePLY(t, inDir, 0, 64)
	writePLY(t, inDir, 1, 64)
	// Frame 0 already has both outputs.
	for _, suffix := range []string{"_left.png", "_right.png"} {
		if err := os.WriteFile(filepath.Join(outDir, "frame_000000"+suffix), []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	// First poll records sizes, second renders stable frames.
	if _, err := w.pollOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := w.pollOnce(ctx); err != nil {
		t.Fatal(err)
	}

	got := f.renderedFrames()
	if len(got) != 1 || got[0] != "frame_000001.ply" {
		t.Errorf("rendered = %v, expected only frame_000001.ply", got)
	}
}

func TestUnorderedRendersInIndexOrderWithinCycle(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	w, f := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir})

	writePLY(t, inDir, 10, 64)
	writePLY(t, inDir, 2, 64)
	writePLY(t, inDir, 7, 64)

	ctx := context.Background()
	w.pollOnce(ctx)
	w.pollOnce(ctx)

	got := f.renderedFrames()
	want := []string{"frame_000002.ply", "frame_000007.ply", "frame_000010.ply"}
	if len(got) != len(want) {
		t.Fatalf("rendered = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rendered[%d] = %s, expected %s", i, got[i], want[i])
		}
	}
}

func TestSequentialRendersInOrder(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	w, f := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir, Sequential: true})

	// All three present before the watcher starts.
	writePLY(t, inDir, 0, 64)
	writePLY(t, inDir, 1, 64)
	writePLY(t, inDir, 2, 64)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return len(f.renderedFrames()) == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := f.renderedFrames()
	for i, want := range []string{"frame_000000.ply", "frame_000001.ply", "frame_000002.ply"} {
		if got[i] != want {
			t.Errorf("rendered[%d] = %s, expected %s", i, got[i], want)
		}
	}
}

func TestSequentialNeverSkipsMissingFrame(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	w, f := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir, Sequential: true})

	// Frame 1 is missing; frame 2 must not render out of order.
	writePLY(t, inDir, 0, 64)
	writePLY(t, inDir, 2, 64)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return len(f.renderedFrames()) == 1 })
	// Give the watcher a few more cycles to (incorrectly) pick up frame 2.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	got := f.renderedFrames()
	if len(got) != 1 || got[0] != "frame_000000.ply" {
		t.Errorf("rendered = %v, expected only frame_000000.ply while frame 1 is missing", got)
	}
}

func TestSequentialResumesPastRenderedFrames(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()

	// Frames 0 and 1 were rendered by a previous run.
	for _, stem := range []string{"frame_000000", "frame_000001"} {
		for _, suffix := range []string{"_left.png", "_right.png"} {
			if err := os.WriteFile(filepath.Join(outDir, stem+suffix), []byte("png"), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	writePLY(t, inDir, 0, 64)
	writePLY(t, inDir, 1, 64)
	writePLY(t, inDir, 2, 64)

	w, f := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir, Sequential: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitFor(t, func() bool { return len(f.renderedFrames()) == 1 })
	cancel()
	<-done

	got := f.renderedFrames()
	if got[0] != "frame_000002.ply" {
		t.Errorf("rendered = %v, expected resume at frame_000002.ply", got)
	}
}

func TestNextExpectedIndex(t *testing.T) {
	outDir := t.TempDir()
	if got := NextExpectedIndex(outDir); got != 0 {
		t.Errorf("empty output dir: NextExpectedIndex = %d, expected 0", got)
	}

	for _, name := range []string{"frame_000002_right.png", "frame_000004_left.png", "notaframe_left.png"} {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if got := NextExpectedIndex(outDir); got != 5 {
		t.Errorf("NextExpectedIndex = %d, expected 5", got)
	}
}

func TestDeleteSourceAfterRender(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	w, _ := newTestWatcher(t, Options{InputDir: inDir, OutputDir: outDir, DeleteSource: true})

	path := writePLY(t, inDir, 0, 64)

	ctx := context.Background()
	w.pollOnce(ctx)
	w.pollOnce(ctx)

	if exists(path) {
		t.Error("source PLY should be deleted after a successful render")
	}
}

func TestRenderFailureStopsWatcher(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	f := &fakeRenderer{outDir: outDir, failFrames: map[string]bool{"frame_000000": true}}
	w := New(f, Options{InputDir: inDir, OutputDir: outDir, PollInterval: 2 * time.Millisecond})

	writePLY(t, inDir, 0, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Run(ctx); err == nil {
		t.Fatal("expected watcher to surface the render failure")
	}
}

func TestRunReturnsCleanlyWhenCancelled(t *testing.T) {
	w, _ := newTestWatcher(t, Options{InputDir: t.TempDir(), OutputDir: t.TempDir()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("cancelled Run should return nil, got %v", err)
	}
}
