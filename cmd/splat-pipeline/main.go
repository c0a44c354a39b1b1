package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/splatworks/splatpipe/internal/cli"
	"github.com/splatworks/splatpipe/internal/encode"
	"github.com/splatworks/splatpipe/internal/extract"
	"github.com/splatworks/splatpipe/internal/logging"
	"github.com/splatworks/splatpipe/internal/pipeline"
	"github.com/splatworks/splatpipe/internal/render"
)

// videoExtensions are the input formats offered by the interactive picker.
var videoExtensions = []string{".mp4", ".mov", ".avi", ".webm", ".mkv"}

// CLI flags
var (
	videoFlag      string
	guiFlag        bool
	inputDirFlag   string
	outputRootFlag string

	keepTempFlag         bool
	regenerateStereoFlag bool
	overwriteTempFlag    bool
	yesFlag              bool

	workersFlag       int
	deviceFlag        string
	checkpointFlag    string
	sharpBinFlag      string
	brushBinFlag      string
	spatialCmdFlag    string
	frameIntervalFlag int
	maxFramesFlag     int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "splat-pipeline",
	Short: "Turn a regular video into a spatial video via Gaussian splats",
	Long: `Splat Pipeline runs the full conversion: extract frames from an input
video, generate a Gaussian splat PLY per frame with the sharp CLI, render
each splat into a stereo image pair with the brush renderer, encode the two
eye videos with ffmpeg, and mux them into a single spatial video.

Intermediate artifacts live under <output-root>/<video name>/tmp and are
cleaned up after a successful run unless --keep-temp (or KEEP_TEMP=1) is set.
Worker count defaults to the RENDER_WORKERS environment variable.

Examples:
  splat-pipeline --video holiday.mp4
  splat-pipeline --video holiday.mp4 --workers 4 --device mps
  splat-pipeline --input-dir ~/Videos        # interactive selection menu
  splat-pipeline --gui                       # native file picker
  splat-pipeline --video holiday.mp4 --regenerate-stereo --yes`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&videoFlag, "video", "", "Input video file (else selected interactively)")
	rootCmd.Flags().BoolVar(&guiFlag, "gui", false, "Select the input video with a native file picker")
	rootCmd.Flags().StringVar(&inputDirFlag, "input-dir", ".", "Directory scanned for the interactive video menu (prompted for when unset)")
	rootCmd.Flags().StringVar(&outputRootFlag, "output-root", ".", "Root directory for project output")

	rootCmd.Flags().BoolVar(&keepTempFlag, "keep-temp", envBool("KEEP_TEMP"), "Keep intermediate PLY files after a successful run")
	rootCmd.Flags().BoolVar(&regenerateStereoFlag, "regenerate-stereo", false, "Re-render stereo frames even when a previous set exists")
	rootCmd.Flags().BoolVar(&overwriteTempFlag, "overwrite-temp", false, "Clear the project temp directory before starting")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Assume yes for every confirmation (non-interactive)")

	rootCmd.Flags().IntVar(&workersFlag, "workers", envInt("RENDER_WORKERS", render.DefaultWorkers), "Concurrent render workers")
	rootCmd.Flags().StringVar(&deviceFlag, "device", "default", "Compute device for splat generation (default/cpu/mps/cuda)")
	rootCmd.Flags().StringVar(&checkpointFlag, "checkpoint", "", "Model checkpoint path for splat generation")
	rootCmd.Flags().StringVar(&sharpBinFlag, "sharp-bin", "", "Path to the sharp executable")
	rootCmd.Flags().StringVar(&brushBinFlag, "brush-bin", "", "Path to the brush renderer executable")
	rootCmd.Flags().StringVar(&spatialCmdFlag, "spatial-cmd", encode.DefaultSpatialCmd, "Spatial mux command")
	rootCmd.Flags().IntVar(&frameIntervalFlag, "frame-interval", 1, "Extract every Nth frame from the input video")
	rootCmd.Flags().IntVar(&maxFramesFlag, "max-frames", 0, "Stop extraction after N frames (0 = unlimited)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	video := resolveVideo(cmd)
	video = cli.ValidateAndResolveFile(video)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if info, err := extract.Probe(ctx, video); err == nil {
		log.Info().
			Str("video", filepath.Base(video)).
			Str("duration", cli.FormatDurationShort(time.Duration(info.Duration*float64(time.Second)))).
			Float64("fps", info.FPS).
			Msg("Selected input video")
	}

	cfg := pipeline.Config{
		InputVideo:       video,
		OutputRoot:       outputRootFlag,
		KeepTemp:         keepTempFlag,
		RegenerateStereo: regenerateStereoFlag,
		OverwriteTemp:    overwriteTempFlag,
		Workers:          workersFlag,
		FrameInterval:    frameIntervalFlag,
		MaxFrames:        maxFramesFlag,
		Device:           deviceFlag,
		Checkpoint:       checkpointFlag,
		SharpBin:         sharpBinFlag,
		BrushBin:         brushBinFlag,
		SpatialCmd:       spatialCmdFlag,
	}
	if !yesFlag {
		cfg.Confirm = func(prompt string) bool { return cli.PromptYesNo(prompt, true) }
	}

	coordinator := pipeline.New(cfg)

	// An earlier run may have left usable stereo frames; ask before
	// throwing that work away unless a flag already decided.
	if coordinator.HasStereoFrames() && !regenerateStereoFlag && !yesFlag && !overwriteTempFlag {
		if !cli.PromptYesNo("Existing stereo frames found. Reuse them?", true) {
			cfg.RegenerateStereo = true
			coordinator = pipeline.New(cfg)
		}
	}

	logging.NewRunLogger("splat-pipeline").
		Tool("spatialCmd", spatialCmdFlag).
		Feature("keepTemp", cfg.KeepTemp).
		Feature("regenerateStereo", cfg.RegenerateStereo).
		Feature("overwriteTemp", cfg.OverwriteTemp).
		Config("video", video).
		Config("project", coordinator.Paths().Project).
		Config("workers", strconv.Itoa(cfg.Workers)).
		Config("device", cfg.Device).
		Log()

	if err := coordinator.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Pipeline failed")
	}
}

// resolveVideo returns the input video path from the --video flag, the GUI
// picker, or an interactive menu. The menu scans --input-dir when set,
// otherwise a directory prompted from the user.
func resolveVideo(cmd *cobra.Command) string {
	if videoFlag != "" {
		return videoFlag
	}

	if guiFlag {
		selected, err := cli.PromptForVideoFile()
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				log.Fatal().Msg("No video selected")
			}
			log.Fatal().Err(err).Msg("Video selection failed")
		}
		return selected
	}

	dir := inputDirFlag
	if !cmd.Flags().Changed("input-dir") {
		dir = cli.PromptForDirectory()
	}
	dir = cli.ValidateAndResolveDirectory(dir)
	videos := listVideos(dir)
	if len(videos) == 0 {
		log.Fatal().Str("dir", dir).Msg("No video files found. Use --video or --gui")
	}

	names := make([]string, len(videos))
	for i, v := range videos {
		names[i] = filepath.Base(v)
	}
	return videos[cli.PromptSelect("Select input video:", names, 0)]
}

// listVideos returns video files in dir, sorted by name.
func listVideos(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("Failed to read directory")
	}

	var videos []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range videoExtensions {
			if ext == want {
				videos = append(videos, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	sort.Strings(videos)
	return videos
}

// envBool reads a boolean toggle from the environment (1/true/yes).
func envBool(envVar string) bool {
	switch strings.ToLower(logging.EnvOrDefault(envVar, "false")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// envInt reads an integer from the environment, falling back on defaultVal.
func envInt(envVar string, defaultVal int) int {
	v := logging.EnvOrDefault(envVar, strconv.Itoa(defaultVal))
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return defaultVal
}
