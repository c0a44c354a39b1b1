package cli

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ValidateAndResolveDirectory checks that the path exists and is a directory,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", dirPath).Msg("Directory not found")
		}
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}
	if !info.IsDir() {
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}

	absPath, err := filepath.Abs(dirPath)
	if err == nil {
		dirPath = absPath
	}

	return dirPath
}

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveFile(filePath string) string {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", filePath).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", filePath).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", filePath).Msg("Path is a directory, expected a file")
	}

	absPath, err := filepath.Abs(filePath)
	if err == nil {
		filePath = absPath
	}

	return filePath
}
