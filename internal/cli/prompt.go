package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// PromptForDirectory prompts the user interactively for a directory path.
// Returns the current directory if the user enters nothing.
func PromptForDirectory() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	fmt.Printf("Directory [%s]: ", cwd)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input, using current directory")
		return cwd
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return cwd
	}

	return input
}

// PromptForVideoFile opens a native file picker for a single video file.
// Returns zenity.ErrCanceled unchanged when the user dismisses the dialog.
func PromptForVideoFile() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select input video"),
		zenity.FileFilters{
			{
				Name:     "Video files",
				Patterns: []string{"*.mp4", "*.mov", "*.avi", "*.webm", "*.mkv"},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", err
		}
		return "", fmt.Errorf("file picker failed: %w", err)
	}
	return selected, nil
}

// PromptSelect presents a numbered menu and returns the index of the chosen
// option. An empty or invalid answer selects defaultIdx.
func PromptSelect(title string, options []string, defaultIdx int) int {
	fmt.Println()
	fmt.Println(title)
	for i, opt := range options {
		marker := " "
		if i == defaultIdx {
			marker = "*"
		}
		fmt.Printf("  %s %d) %s\n", marker, i+1, opt)
	}
	fmt.Printf("Choice [%d]: ", defaultIdx+1)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read selection, using default")
		return defaultIdx
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultIdx
	}
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(options) {
		log.Warn().Str("input", input).Msg("Invalid selection, using default")
		return defaultIdx
	}
	return choice - 1
}

// PromptYesNo asks a yes/no question. An empty answer returns defaultYes.
func PromptYesNo(question string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", question, suffix)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read answer, using default")
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultYes
	}
}
