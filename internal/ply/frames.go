package ply

// frames.go holds the frame naming conventions shared across pipeline
// stages: inputs arrive as frame_XXXXXX.ply and stereo renders leave as
// frame_XXXXXX_left.png / frame_XXXXXX_right.png.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FrameIndex extracts the numeric frame index from a frame_<index> file
// stem. Any other name, or an unparsable index, yields 0.
func FrameIndex(path string) int {
	stem := Stem(path)
	if !strings.HasPrefix(stem, "frame_") {
		return 0
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(stem, "frame_"))
	if err != nil {
		return 0
	}
	return idx
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// SequentialName returns the canonical zero-padded name for a frame index,
// e.g. SequentialName(7, ".ply") == "frame_000007.ply".
func SequentialName(index int, ext string) string {
	return fmt.Sprintf("frame_%06d%s", index, ext)
}

// StereoImagePaths returns the left/right output image paths for a PLY
// frame rendered into outputDir.
func StereoImagePaths(plyPath, outputDir string) (left, right string) {
	stem := Stem(plyPath)
	left = filepath.Join(outputDir, stem+"_left.png")
	right = filepath.Join(outputDir, stem+"_right.png")
	return left, right
}

// MonoImagePath returns the single-image output path for a PLY frame.
func MonoImagePath(plyPath, outputDir string) string {
	return filepath.Join(outputDir, Stem(plyPath)+".png")
}

// List returns the PLY files under inputPath sorted by frame index.
// A file path is returned as a single-element list.
func List(inputPath string) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []string{inputPath}, nil
	}

	matches, err := filepath.Glob(filepath.Join(inputPath, "*.ply"))
	if err != nil {
		return nil, fmt.Errorf("list ply files: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return FrameIndex(matches[i]) < FrameIndex(matches[j])
	})
	return matches, nil
}
