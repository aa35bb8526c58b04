// Package config loads renderer configuration from YAML files: where the
// archive lives, which source directories hold media, and the default render
// options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archivista/chatrender/internal/fileutil"
	"github.com/archivista/chatrender/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
)

// Config holds all renderer configuration.
type Config struct {
	Archive Archive `yaml:"archive"`
	Render  Render  `yaml:"render"`
	PDF     PDF     `yaml:"pdf"`
}

// Archive describes where archived content and media live.
type Archive struct {
	// Root is the archive directory holding conversations/, chunks/,
	// collections/, buffers/, and media/.
	Root string `yaml:"root"`

	// Sources are additional directories scanned, in order, when a media
	// reference cannot be resolved through the index. Earlier entries win.
	Sources []Source `yaml:"sources"`
}

// Source is one raw export directory to scan for media files.
type Source struct {
	Name string `yaml:"name"` // provider label, e.g. "chatgpt-2024-export"
	Path string `yaml:"path"`
}

// Render holds default render options, overridable per invocation.
type Render struct {
	Template        string `yaml:"template"`        // empty = "default"
	MediaDisplay    string `yaml:"mediaDisplay"`    // inline, gallery, thumbnails
	DollarHeuristic string `yaml:"dollarHeuristic"` // strict, all, off
	GencomFields    string `yaml:"gencomFields"`    // none, all, or comma list

	// GencomLabels remaps generated-comment field names to display labels.
	GencomLabels map[string]string `yaml:"gencomLabels"`

	ShowRoleKey     *bool  `yaml:"showRoleKey"`     // nil = default (on)
	IncludeMetadata bool   `yaml:"includeMetadata"`
	IncludeRaw      bool   `yaml:"includeRaw"`
}

// PDF holds PDF backend settings.
type PDF struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"` // 0 = library default
}

// Validate checks values that would otherwise fail deep inside a render call.
func (c *Config) Validate() error {
	switch c.Render.MediaDisplay {
	case "", "inline", "gallery", "thumbnails":
	default:
		return fmt.Errorf("render.mediaDisplay: invalid value %q (must be inline, gallery, or thumbnails)", c.Render.MediaDisplay)
	}
	switch c.Render.DollarHeuristic {
	case "", "strict", "all", "off":
	default:
		return fmt.Errorf("render.dollarHeuristic: invalid value %q (must be strict, all, or off)", c.Render.DollarHeuristic)
	}
	if c.PDF.TimeoutSeconds < 0 {
		return fmt.Errorf("pdf.timeoutSeconds: must not be negative, got %d", c.PDF.TimeoutSeconds)
	}
	for i, s := range c.Archive.Sources {
		if s.Path == "" {
			return fmt.Errorf("archive.sources[%d].path: required", i)
		}
	}
	return nil
}

// DefaultConfig returns a neutral configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard
// locations. Returns an error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, then the user config
// directory under chatrender/.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "chatrender", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
