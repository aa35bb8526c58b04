package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	CI         bool   `json:"ci"`
	BrowserBin string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command. PDF export is optional, so a
// missing browser is a warning, not an error: HTML output still works.
func runDoctorCmd(args []string, env *Environment) error {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	result := runDoctor()

	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return fmt.Errorf("environment checks failed")
	}
	return nil
}

// runDoctor performs all diagnostic checks.
func runDoctor() *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			CI:         os.Getenv("CI") != "",
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkChrome(result)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkChrome detects a Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found: PDF export unavailable. Install Chrome or set ROD_BROWSER_BIN (HTML output works without it)")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Chrome not found at %s: PDF export unavailable", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	}
}

// checkSystem verifies the temp directory is writable; PDF rendering stages
// pages through it.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "chatrender-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "chatrender doctor")
	fmt.Fprintln(w)

	if r.Chrome.Found {
		fmt.Fprintf(w, "  browser:  %s", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, " (%s)", r.Chrome.Version)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "  browser:  not found (PDF export unavailable)")
	}

	fmt.Fprintf(w, "  system:   %s/%s", r.Env.OS, r.Env.Arch)
	if r.Env.CI {
		fmt.Fprint(w, " (CI)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  tempdir:  writable=%v\n", r.System.TempWritable)

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning:  %s\n", warning)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error:    %s\n", e)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  status:   %s\n", r.Status)
}
