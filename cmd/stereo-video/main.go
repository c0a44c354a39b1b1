package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/splatworks/splatpipe/internal/cli"
	"github.com/splatworks/splatpipe/internal/encode"
	"github.com/splatworks/splatpipe/internal/logging"
)

// CLI flags
var (
	inputFlag         string
	outputFlag        string
	fpsFlag           float64
	spatialOutputFlag string
	spatialCmdFlag    string
	skipSpatialFlag   bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "stereo-video",
	Short: "Encode stereo frame sequences into per-eye videos and a spatial video",
	Long: `Stereo Video encodes a directory of rendered frame_NNNNNN_left.png and
frame_NNNNNN_right.png images into two lossless per-eye videos with ffmpeg,
then muxes them into a single spatial video with an external mux command.

Examples:
  stereo-video -i ./stereo_frames -o ./video_output --fps 30
  stereo-video -i ./stereo_frames -o ./out --spatial-cmd spatialmediakit-make
  stereo-video -i ./stereo_frames -o ./out --skip-spatial`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Directory of stereo frame images (required)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output directory for videos (required)")
	rootCmd.Flags().Float64Var(&fpsFlag, "fps", 30, "Frame rate of the encoded videos")
	rootCmd.Flags().StringVar(&spatialOutputFlag, "spatial-output", "", "Spatial video path (default: <output>/spatial_video.mov)")
	rootCmd.Flags().StringVar(&spatialCmdFlag, "spatial-cmd", encode.DefaultSpatialCmd, "Spatial mux command")
	rootCmd.Flags().BoolVar(&skipSpatialFlag, "skip-spatial", false, "Encode per-eye videos only, skip the spatial mux")

	rootCmd.MarkFlagRequired("input")
	rootCmd.MarkFlagRequired("output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	stereoDir := cli.ValidateAndResolveDirectory(inputFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	left, right, err := encode.EyeVideos(ctx, stereoDir, outputFlag, fpsFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Eye video encoding failed")
	}

	if skipSpatialFlag {
		log.Info().Str("left", left).Str("right", right).Msg("Per-eye videos encoded, spatial mux skipped")
		return
	}

	spatialOutput := spatialOutputFlag
	if spatialOutput == "" {
		spatialOutput = filepath.Join(outputFlag, "spatial_video.mov")
	}
	if err := encode.SpatialMux(ctx, spatialCmdFlag, left, right, spatialOutput); err != nil {
		log.Fatal().Err(err).Msg("Spatial mux failed")
	}

	log.Info().Str("output", spatialOutput).Msg("Spatial video complete")
}
