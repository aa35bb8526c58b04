package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/archivista/chatrender"
	"github.com/archivista/chatrender/internal/config"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "generic", err: errors.New("boom"), want: ExitGeneral},
		{name: "content not found", err: chatrender.ErrContentNotFound, want: ExitNotFound},
		{name: "wrapped not found", err: fmt.Errorf("context: %w", chatrender.ErrContentNotFound), want: ExitNotFound},
		{name: "no items", err: chatrender.ErrNoItems, want: ExitNotFound},
		{name: "pdf unavailable", err: chatrender.ErrPDFUnavailable, want: ExitPDF},
		{name: "pdf generation", err: chatrender.ErrPDFGeneration, want: ExitPDF},
		{name: "page load", err: chatrender.ErrPageLoad, want: ExitPDF},
		{name: "output write", err: chatrender.ErrOutputWrite, want: ExitIO},
		{name: "file missing", err: os.ErrNotExist, want: ExitIO},
		{name: "permission", err: os.ErrPermission, want: ExitIO},
		{name: "config missing", err: config.ErrConfigNotFound, want: ExitUsage},
		{name: "config parse", err: config.ErrConfigParse, want: ExitUsage},
		{name: "bad format", err: chatrender.ErrUnsupportedFormat, want: ExitUsage},
		{name: "bad media display", err: chatrender.ErrInvalidMediaDisplay, want: ExitUsage},
		{name: "no target", err: ErrNoTarget, want: ExitUsage},
		{name: "unknown command", err: ErrUnknownCommand, want: ExitUsage},
		{name: "pdf needs output", err: ErrPDFNeedsOutput, want: ExitUsage},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
