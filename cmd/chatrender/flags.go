package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// renderFlags holds all flags for the render commands (message, chunk,
// conversation, collection, buffer, combine).
type renderFlags struct {
	common commonFlags

	output   string
	format   string
	archive  string
	timeout  string
	keepHTML bool

	template        string
	mediaDisplay    string
	gencomFields    string
	includeMetadata bool
	includeRaw      bool
	noRoleKey       bool
	dollarHeuristic string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show repair diagnostics")
}

// parseRenderFlags parses a render command's flags and returns positional args.
func parseRenderFlags(command string, args []string) (*renderFlags, []string, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	f := &renderFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file (default: HTML to stdout)")
	fs.StringVarP(&f.format, "format", "f", "", "output format: html, pdf")
	fs.StringVarP(&f.archive, "archive", "a", "", "archive root directory")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "render timeout (e.g., 30s, 2m)")
	fs.BoolVar(&f.keepHTML, "keep-html", false, "also write the intermediate HTML next to a PDF output")

	fs.StringVar(&f.template, "template", "", "document template name")
	fs.StringVar(&f.mediaDisplay, "media-display", "", "media display: inline, gallery, thumbnails")
	fs.StringVar(&f.gencomFields, "gencom-fields", "", "generated-comment fields: none, all, or comma list")
	fs.BoolVar(&f.includeMetadata, "include-metadata", false, "show per-item metadata panel")
	fs.BoolVar(&f.includeRaw, "include-raw", false, "show raw source above rendered content")
	fs.BoolVar(&f.noRoleKey, "no-role-key", false, "omit the role color key")
	fs.StringVar(&f.dollarHeuristic, "dollar-heuristic", "", "single-dollar math detection: strict, all, off")

	addCommonFlags(fs, &f.common)

	fs.Usage = func() { printRenderUsage(os.Stderr, command) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
