package main

import (
	"errors"
	"os"

	"github.com/archivista/chatrender"
	"github.com/archivista/chatrender/internal/config"
)

// Exit codes for the chatrender CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess  = 0 // Successful render
	ExitGeneral  = 1 // General/unexpected error
	ExitUsage    = 2 // Invalid flags, config, or options
	ExitIO       = 3 // File not found, permission denied, write failure
	ExitPDF      = 4 // PDF backend errors
	ExitNotFound = 5 // Requested content does not exist
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Missing content (exit 5)
	if errors.Is(err, chatrender.ErrContentNotFound) ||
		errors.Is(err, chatrender.ErrNoItems) {
		return ExitNotFound
	}

	// PDF backend errors (exit 4)
	if errors.Is(err, chatrender.ErrPDFUnavailable) ||
		errors.Is(err, chatrender.ErrPageCreate) ||
		errors.Is(err, chatrender.ErrPageLoad) ||
		errors.Is(err, chatrender.ErrPDFGeneration) {
		return ExitPDF
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, chatrender.ErrOutputWrite) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, chatrender.ErrUnsupportedFormat) ||
		errors.Is(err, chatrender.ErrInvalidMediaDisplay) ||
		errors.Is(err, chatrender.ErrInvalidGencomFields) ||
		errors.Is(err, chatrender.ErrNoContentStore) ||
		errors.Is(err, ErrNoTarget) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrPDFNeedsOutput) {
		return ExitUsage
	}

	return ExitGeneral
}
