package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/archivista/chatrender"
	"github.com/archivista/chatrender/internal/archive"
	"github.com/archivista/chatrender/internal/assets"
	"github.com/archivista/chatrender/internal/config"
)

// Sentinel errors for CLI operations.
var (
	ErrNoTarget       = errors.New("no target specified")
	ErrUnknownCommand = errors.New("unknown command")
	ErrPDFNeedsOutput = errors.New("pdf output requires --output")
)

// renderCommands maps a command name to the renderer entry point it invokes.
var renderCommands = map[string]bool{
	"message":      true,
	"chunk":        true,
	"conversation": true,
	"collection":   true,
	"buffer":       true,
	"combine":      true,
}

// run dispatches the command line. args is os.Args.
func run(ctx context.Context, args []string, env *Environment) error {
	if len(args) < 2 {
		printUsage(env.Stderr)
		return fmt.Errorf("%w: missing command", ErrUnknownCommand)
	}

	command := args[1]
	rest := args[2:]

	switch {
	case renderCommands[command]:
		return runRender(ctx, command, rest, env)
	case command == "templates":
		return runTemplates(env)
	case command == "doctor":
		return runDoctorCmd(rest, env)
	case command == "version":
		fmt.Fprintln(env.Stdout, "chatrender "+Version)
		return nil
	case command == "help", command == "--help", command == "-h":
		runHelp(rest, env)
		return nil
	}

	printUsage(env.Stderr)
	return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}

// runRender executes one of the render commands end to end: load config,
// merge flags, open the archive, render, and serialize.
func runRender(ctx context.Context, command string, args []string, env *Environment) error {
	flags, targets, err := parseRenderFlags(command, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		printRenderUsage(env.Stderr, command)
		return fmt.Errorf("%w: %s requires a target", ErrNoTarget, command)
	}

	log := newLogger(env.Stderr, flags.common.quiet, flags.common.verbose)

	cfg := config.DefaultConfig()
	if flags.common.config != "" {
		cfg, err = config.LoadConfig(flags.common.config)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	opts, err := buildOptions(flags, cfg)
	if err != nil {
		return err
	}

	root := flags.archive
	if root == "" {
		root = cfg.Archive.Root
	}
	if root == "" {
		root = "."
	}
	store := archive.NewStore(root, cfg.Archive.Sources, log)

	rendererOpts := []chatrender.Option{
		chatrender.WithContentStore(store),
		chatrender.WithMediaStore(store),
		chatrender.WithLogger(log),
	}
	if timeout, err := resolveTimeout(flags.timeout, cfg); err != nil {
		return err
	} else if timeout > 0 {
		rendererOpts = append(rendererOpts, chatrender.WithTimeout(timeout))
	}

	renderer := chatrender.NewRenderer(rendererOpts...)
	defer func() {
		if err := renderer.Close(); err != nil {
			log.Warn("closing renderer", "error", err)
		}
	}()

	doc, err := renderTarget(ctx, renderer, command, targets, opts)
	if err != nil {
		return err
	}

	if flags.output == "" {
		if opts.OutputFormat == chatrender.FormatPDF {
			return ErrPDFNeedsOutput
		}
		page, err := renderer.SerializeHTML(doc)
		if err != nil {
			return err
		}
		fmt.Fprint(env.Stdout, page)
		return nil
	}

	if err := renderer.Export(ctx, doc, opts.OutputFormat, flags.output); err != nil {
		if errors.Is(err, chatrender.ErrPDFUnavailable) {
			fmt.Fprintln(env.Stderr, "hint: install Chrome/Chromium or set ROD_BROWSER_BIN;")
			fmt.Fprintln(env.Stderr, "      HTML output (--format html) needs no browser")
		}
		return err
	}

	if flags.keepHTML && opts.OutputFormat == chatrender.FormatPDF {
		htmlPath := strings.TrimSuffix(flags.output, filepath.Ext(flags.output)) + ".html"
		if err := renderer.Export(ctx, doc, chatrender.FormatHTML, htmlPath); err != nil {
			return err
		}
	}
	return nil
}

// renderTarget calls the entry point matching the command. Every command
// takes one target except combine, which accepts several collection names.
func renderTarget(ctx context.Context, r *chatrender.Renderer, command string, targets []string, opts chatrender.RenderOptions) (*chatrender.RenderDocument, error) {
	switch command {
	case "message":
		return r.RenderMessage(ctx, targets[0], opts)
	case "chunk":
		return r.RenderChunk(ctx, targets[0], opts)
	case "conversation":
		return r.RenderConversation(ctx, targets[0], opts)
	case "collection":
		return r.RenderCollection(ctx, targets[0], opts)
	case "buffer":
		return r.RenderBuffer(ctx, targets[0], opts)
	case "combine":
		return r.RenderCombined(ctx, targets, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
}

// buildOptions layers render options: library defaults, then config file,
// then CLI flags. CLI wins.
func buildOptions(flags *renderFlags, cfg *config.Config) (chatrender.RenderOptions, error) {
	opts := chatrender.DefaultOptions()

	if cfg.Render.Template != "" {
		opts.Template = cfg.Render.Template
	}
	if cfg.Render.MediaDisplay != "" {
		opts.MediaDisplay = cfg.Render.MediaDisplay
	}
	if cfg.Render.DollarHeuristic != "" {
		opts.DollarHeuristic = cfg.Render.DollarHeuristic
	}
	if cfg.Render.GencomFields != "" {
		opts.GencomFields = cfg.Render.GencomFields
	}
	if cfg.Render.ShowRoleKey != nil {
		opts.ShowRoleKey = *cfg.Render.ShowRoleKey
	}
	opts.GencomLabels = cfg.Render.GencomLabels
	opts.IncludeMetadata = cfg.Render.IncludeMetadata
	opts.IncludeRaw = cfg.Render.IncludeRaw

	if flags.template != "" {
		opts.Template = flags.template
	}
	if flags.mediaDisplay != "" {
		opts.MediaDisplay = flags.mediaDisplay
	}
	if flags.dollarHeuristic != "" {
		opts.DollarHeuristic = flags.dollarHeuristic
	}
	if flags.gencomFields != "" {
		opts.GencomFields = flags.gencomFields
	}
	if flags.includeMetadata {
		opts.IncludeMetadata = true
	}
	if flags.includeRaw {
		opts.IncludeRaw = true
	}
	if flags.noRoleKey {
		opts.ShowRoleKey = false
	}

	opts.OutputFormat = resolveFormat(flags)

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// resolveFormat picks the output format: explicit flag, else the output
// file extension, else HTML.
func resolveFormat(flags *renderFlags) string {
	if flags.format != "" {
		return strings.ToLower(flags.format)
	}
	if strings.EqualFold(filepath.Ext(flags.output), ".pdf") {
		return chatrender.FormatPDF
	}
	return chatrender.FormatHTML
}

// resolveTimeout parses the --timeout flag, falling back to the config value.
func resolveTimeout(flag string, cfg *config.Config) (time.Duration, error) {
	if flag != "" {
		d, err := time.ParseDuration(flag)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: %w", flag, err)
		}
		return d, nil
	}
	if cfg.PDF.TimeoutSeconds > 0 {
		return time.Duration(cfg.PDF.TimeoutSeconds) * time.Second, nil
	}
	return 0, nil
}

// runTemplates lists the embedded template names.
func runTemplates(env *Environment) error {
	store := assets.NewEmbeddedStore()
	for _, name := range store.Templates() {
		fmt.Fprintln(env.Stdout, name)
	}
	return nil
}
