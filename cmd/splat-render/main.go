package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/splatworks/splatpipe/internal/cli"
	"github.com/splatworks/splatpipe/internal/logging"
	"github.com/splatworks/splatpipe/internal/ply"
	"github.com/splatworks/splatpipe/internal/render"
	"github.com/splatworks/splatpipe/internal/watch"
)

// CLI flags
var (
	inputFlag  string
	outputFlag string
	fileFlag   string

	firstFrameFlag bool
	monoFlag       bool

	ipdFlag      float64
	brushBinFlag string

	widthFlag   int
	heightFlag  int
	fovXFlag    float64
	fovYFlag    float64
	focalXFlag  float64
	focalYFlag  float64
	centerXFlag float64
	centerYFlag float64

	camPosFlag     string
	camRotFlag     string
	backgroundFlag string

	noPLYCameraFlag bool
	subsampleFlag   int
	brushArgsFlag   []string
	dryRunFlag      bool

	watchFlag        bool
	sequentialFlag   bool
	pollIntervalFlag time.Duration
	workersFlag      int
	keepSourceFlag   bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "splat-render",
	Short: "Render Gaussian splat PLY frames to stereo image pairs",
	Long: `Splat Render turns Gaussian splat PLY files into stereo (or mono) PNG
images using an external brush renderer. It reads camera metadata embedded
after the vertex data of each PLY when present, and renders each frame from
two horizontally offset camera positions.

The input may be a single PLY file, a directory of frame_NNNNNN.ply files
rendered as one batch, or a directory watched for new frames as an upstream
process produces them.

Examples:
  splat-render -i frame_000042.ply -o ./stereo_frames
  splat-render -i ./tmp/ply -o ./stereo_frames --workers 4
  splat-render -i ./tmp/ply -o ./stereo_frames --watch --sequential
  splat-render -i scene.ply -o ./out --mono --width 3840 --height 2160
  splat-render -i scene.ply -o ./out --dry-run`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "PLY file or directory of PLY frames (required)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory for rendered images (required)")
	rootCmd.Flags().StringVar(&fileFlag, "file", "", "Render a single PLY file (overrides --input)")
	rootCmd.Flags().BoolVar(&firstFrameFlag, "first-frame", false, "Render only the first frame of a directory input")
	rootCmd.Flags().BoolVar(&monoFlag, "mono", false, "Render a single centered image instead of a stereo pair")

	rootCmd.Flags().Float64Var(&ipdFlag, "ipd", render.DefaultIPD, "Interpupillary distance in scene units")
	rootCmd.Flags().StringVar(&brushBinFlag, "brush-bin", "", "Path to the brush renderer executable")

	rootCmd.Flags().IntVar(&widthFlag, "width", 0, "Output image width (overrides PLY camera metadata)")
	rootCmd.Flags().IntVar(&heightFlag, "height", 0, "Output image height (overrides PLY camera metadata)")
	rootCmd.Flags().Float64Var(&fovXFlag, "fov-x", 0, "Horizontal field of view in degrees")
	rootCmd.Flags().Float64Var(&fovYFlag, "fov-y", 0, "Vertical field of view in degrees")
	rootCmd.Flags().Float64Var(&focalXFlag, "focal-x", 0, "Horizontal focal length in pixels")
	rootCmd.Flags().Float64Var(&focalYFlag, "focal-y", 0, "Vertical focal length in pixels")
	rootCmd.Flags().Float64Var(&centerXFlag, "center-x", 0, "Principal point X, normalized [0..1]")
	rootCmd.Flags().Float64Var(&centerYFlag, "center-y", 0, "Principal point Y, normalized [0..1]")

	rootCmd.Flags().StringVar(&camPosFlag, "cam-pos", "", "Base camera position as x,y,z")
	rootCmd.Flags().StringVar(&camRotFlag, "cam-rot", "", "Camera rotation quaternion as x,y,z,w")
	rootCmd.Flags().StringVar(&backgroundFlag, "background", "", "Background color as r,g,b (0-1)")

	rootCmd.Flags().BoolVar(&noPLYCameraFlag, "no-ply-camera", false, "Ignore camera metadata embedded in the PLY")
	rootCmd.Flags().IntVar(&subsampleFlag, "subsample-points", 0, "Render every Nth point only")
	rootCmd.Flags().StringArrayVar(&brushArgsFlag, "brush-args", nil, "Extra argument passed to the brush renderer (repeatable)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Log render commands without executing them")

	rootCmd.Flags().BoolVar(&watchFlag, "watch", false, "Watch the input directory and render frames as they appear")
	rootCmd.Flags().BoolVar(&sequentialFlag, "sequential", false, "In watch mode, render frames strictly in index order")
	rootCmd.Flags().DurationVar(&pollIntervalFlag, "poll-interval", watch.DefaultPollInterval, "Watch mode polling interval")
	rootCmd.Flags().IntVar(&workersFlag, "workers", render.DefaultWorkers, "Concurrent render workers for directory batches")
	rootCmd.Flags().BoolVar(&keepSourceFlag, "keep-source", defaultKeepSource(), "In watch mode, keep PLY files after rendering (KEEP_TEMP=0 to delete)")

	rootCmd.MarkFlagRequired("output")
}

// defaultKeepSource resolves the watch-mode retention default: sources are
// kept unless KEEP_TEMP is explicitly set to 0.
func defaultKeepSource() bool {
	return os.Getenv("KEEP_TEMP") != "0"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	input := fileFlag
	if input == "" {
		input = inputFlag
	}
	if input == "" {
		log.Fatal().Msg("No input given. Use --input or --file")
	}

	brush := &render.Brush{
		Bin:       render.ResolveBin(brushBinFlag, ""),
		Subsample: subsampleFlag,
		ExtraArgs: brushArgsFlag,
		DryRun:    dryRunFlag,
	}
	if !dryRunFlag {
		if err := brush.Available(); err != nil {
			log.Fatal().Err(err).Msg("Brush renderer not available")
		}
	}

	renderer := &render.StereoRenderer{
		Invoker:    brush,
		OutputDir:  outputFlag,
		Overrides:  buildOverrides(cmd),
		IPD:        ipdFlag,
		CamPos:     parseVec3(camPosFlag, render.DefaultCamPos, "cam-pos"),
		CamRot:     parseQuat(camRotFlag, render.DefaultCamRot, "cam-rot"),
		Background: parseColor(backgroundFlag, render.DefaultBackground, "background"),
	}

	logging.NewRunLogger("splat-render").
		Tool("brush", brush.Bin).
		Feature("watch", watchFlag).
		Feature("sequential", sequentialFlag).
		Feature("mono", monoFlag).
		Feature("dryRun", dryRunFlag).
		Config("input", input).
		Config("output", outputFlag).
		Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := os.Stat(input)
	if err != nil {
		log.Fatal().Err(err).Str("path", input).Msg("Failed to access input")
	}

	switch {
	case watchFlag:
		if !info.IsDir() {
			log.Fatal().Str("path", input).Msg("Watch mode requires a directory input")
		}
		runWatch(ctx, renderer, input)
	case info.IsDir():
		runBatch(ctx, renderer, input)
	default:
		runSingle(ctx, renderer, input)
	}
}

// runSingle renders one PLY file, stereo or mono.
func runSingle(ctx context.Context, renderer *render.StereoRenderer, plyPath string) {
	var err error
	if monoFlag {
		err = renderer.RenderMono(ctx, plyPath)
	} else {
		err = renderer.RenderFrame(ctx, plyPath)
	}
	if err != nil {
		log.Fatal().Err(err).Str("file", plyPath).Msg("Render failed")
	}
}

// runBatch renders a directory listing as one batch through the worker pool.
func runBatch(ctx context.Context, renderer *render.StereoRenderer, dir string) {
	dir = cli.ValidateAndResolveDirectory(dir)

	frames, err := ply.List(dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("Failed to list PLY frames")
	}
	if len(frames) == 0 {
		log.Fatal().Str("dir", dir).Msg("No PLY files found")
	}
	if firstFrameFlag {
		frames = frames[:1]
	}

	if monoFlag {
		for _, frame := range frames {
			if err := renderer.RenderMono(ctx, frame); err != nil {
				log.Fatal().Err(err).Str("file", frame).Msg("Render failed")
			}
		}
		return
	}

	results := renderer.RenderBatch(ctx, frames, workersFlag)
	if failed := render.Failed(results); len(failed) > 0 {
		for _, f := range failed {
			log.Error().Err(f.Err).Str("frame", f.Frame).Msg("Frame failed")
		}
		os.Exit(1)
	}
}

// runWatch polls the input directory and renders frames as they stabilize.
func runWatch(ctx context.Context, renderer *render.StereoRenderer, dir string) {
	if monoFlag {
		log.Fatal().Msg("Watch mode renders stereo pairs; --mono is not supported")
	}

	w := watch.New(renderer, watch.Options{
		InputDir:     cli.ValidateAndResolveDirectory(dir),
		OutputDir:    outputFlag,
		Sequential:   sequentialFlag,
		PollInterval: pollIntervalFlag,
		DeleteSource: !keepSourceFlag,
	})
	if err := w.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Watcher stopped on render failure")
	}
}

// buildOverrides maps explicitly set flags onto optional overrides so that
// untouched flags never mask camera metadata embedded in the PLY.
func buildOverrides(cmd *cobra.Command) render.Overrides {
	o := render.Overrides{UsePLYCamera: !noPLYCameraFlag}

	if cmd.Flags().Changed("width") {
		o.Width = &widthFlag
	}
	if cmd.Flags().Changed("height") {
		o.Height = &heightFlag
	}
	if cmd.Flags().Changed("fov-x") {
		o.FovX = &fovXFlag
	}
	if cmd.Flags().Changed("fov-y") {
		o.FovY = &fovYFlag
	}
	if cmd.Flags().Changed("focal-x") {
		o.FocalX = &focalXFlag
	}
	if cmd.Flags().Changed("focal-y") {
		o.FocalY = &focalYFlag
	}
	if cmd.Flags().Changed("center-x") {
		o.CenterX = &centerXFlag
	}
	if cmd.Flags().Changed("center-y") {
		o.CenterY = &centerYFlag
	}
	return o
}

func parseComponents(value, name string, n int) []float64 {
	parts := strings.Split(value, ",")
	if len(parts) != n {
		log.Fatal().Str("flag", name).Str("value", value).Int("expected", n).Msg("Wrong number of components")
	}
	out := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			log.Fatal().Err(err).Str("flag", name).Str("value", value).Msg("Invalid component")
		}
		out[i] = v
	}
	return out
}

func parseVec3(value string, fallback render.Vec3, name string) render.Vec3 {
	if value == "" {
		return fallback
	}
	c := parseComponents(value, name, 3)
	return render.Vec3{c[0], c[1], c[2]}
}

func parseQuat(value string, fallback render.Quat, name string) render.Quat {
	if value == "" {
		return fallback
	}
	c := parseComponents(value, name, 4)
	return render.Quat{c[0], c[1], c[2], c[3]}
}

func parseColor(value string, fallback render.Color, name string) render.Color {
	if value == "" {
		return fallback
	}
	c := parseComponents(value, name, 3)
	return render.Color{c[0], c[1], c[2]}
}
