package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/splatworks/splatpipe/internal/extract"
)

func newTestCoordinator(t *testing.T, cfg Config) *Coordinator {
	t.Helper()
	if cfg.InputVideo == "" {
		cfg.InputVideo = "/videos/holiday.mp4"
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = t.TempDir()
	}
	return New(cfg)
}

func writeStereoPair(t *testing.T, dir, stem string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, suffix := range []string{"_left.png", "_right.png"} {
		if err := os.WriteFile(filepath.Join(dir, stem+suffix), []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPathsDerivedFromVideoName(t *testing.T) {
	root := t.TempDir()
	c := New(Config{InputVideo: "/videos/holiday.mp4", OutputRoot: root})

	p := c.Paths()
	if p.Project != "holiday" {
		t.Errorf("Project = %q, expected holiday", p.Project)
	}

	projectDir := filepath.Join(root, "holiday")
	want := Paths{
		Project:   "holiday",
		TmpDir:    filepath.Join(projectDir, "tmp"),
		FramesDir: filepath.Join(projectDir, "tmp", "frames"),
		PLYDir:    filepath.Join(projectDir, "tmp", "ply"),
		StereoDir: filepath.Join(projectDir, "tmp", "stereo_frames"),
		VideoDir:  filepath.Join(projectDir, "video_output"),
		Spatial:   filepath.Join(projectDir, "video_output", "holiday_spatial.mov"),
	}
	if p != want {
		t.Errorf("Paths = %+v, expected %+v", p, want)
	}
}

func TestLayoutCreatesStageDirectories(t *testing.T) {
	c := newTestCoordinator(t, Config{})

	if err := c.layout(); err != nil {
		t.Fatalf("layout: %v", err)
	}

	p := c.Paths()
	for _, dir := range []string{p.FramesDir, p.PLYDir, p.StereoDir, p.VideoDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestLayoutOverwriteClearsTemp(t *testing.T) {
	c := newTestCoordinator(t, Config{OverwriteTemp: true})
	p := c.Paths()

	stale := filepath.Join(p.FramesDir, "frame_000000.png")
	if err := os.MkdirAll(p.FramesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.layout(); err != nil {
		t.Fatalf("layout: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale frame should have been cleared by OverwriteTemp")
	}
}

func TestLayoutKeepsTempWithoutOverwrite(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	p := c.Paths()

	kept := filepath.Join(p.FramesDir, "frame_000000.png")
	if err := os.MkdirAll(p.FramesDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(kept, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.layout(); err != nil {
		t.Fatalf("layout: %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("existing temp contents should survive without OverwriteTemp")
	}
}

func TestHasStereoFrames(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	if c.HasStereoFrames() {
		t.Error("fresh project should have no stereo frames")
	}

	writeStereoPair(t, c.Paths().StereoDir, "frame_000000")
	if !c.HasStereoFrames() {
		t.Error("expected stereo frames to be detected")
	}
}

func TestHasStereoFramesSingleEye(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	dir := c.Paths().StereoDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "frame_000000_right.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	if !c.HasStereoFrames() {
		t.Error("a single right-eye frame still counts as existing stereo output")
	}
}

func TestConfirmDeclinedAbortsBeforeExtraction(t *testing.T) {
	var prompt string
	c := newTestCoordinator(t, Config{
		Confirm: func(p string) bool {
			prompt = p
			return false
		},
	})
	if err := c.layout(); err != nil {
		t.Fatal(err)
	}

	err := c.generateStereo(context.Background(), &extract.VideoInfo{FPS: 30, FrameCount: 900})
	if err == nil || !strings.Contains(err.Error(), "aborted") {
		t.Fatalf("expected user abort, got %v", err)
	}
	if !strings.Contains(prompt, "900 frames") {
		t.Errorf("prompt %q should mention the frame count", prompt)
	}

	// Nothing should have been extracted.
	matches, _ := filepath.Glob(filepath.Join(c.Paths().FramesDir, "*.png"))
	if len(matches) != 0 {
		t.Errorf("extraction must not run after a declined confirmation, found %v", matches)
	}
}

func TestDefaultIPDApplied(t *testing.T) {
	c := newTestCoordinator(t, Config{})
	if c.cfg.IPD != 0.063 {
		t.Errorf("IPD = %g, expected default 0.063", c.cfg.IPD)
	}

	c = newTestCoordinator(t, Config{IPD: 0.07})
	if c.cfg.IPD != 0.07 {
		t.Errorf("IPD = %g, expected explicit 0.07", c.cfg.IPD)
	}
}
