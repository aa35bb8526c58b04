package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: chatrender <command> [flags] <target>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render archived chat content to repaired HTML or PDF.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  message        Render a single message by id")
	fmt.Fprintln(w, "  chunk          Render a single chunk by id")
	fmt.Fprintln(w, "  conversation   Render a conversation by id")
	fmt.Fprintln(w, "  collection     Render a collection by name")
	fmt.Fprintln(w, "  buffer         Render a buffer by name")
	fmt.Fprintln(w, "  combine        Render several collections into one document")
	fmt.Fprintln(w, "  templates      List available document templates")
	fmt.Fprintln(w, "  doctor         Check the environment (browser, archive, temp dir)")
	fmt.Fprintln(w, "  version        Show version information")
	fmt.Fprintln(w, "  help           Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'chatrender help <command>' for details on a specific command.")
}

// printRenderUsage prints usage for a render command.
func printRenderUsage(w io.Writer, command string) {
	target := "<id>"
	switch command {
	case "collection", "buffer":
		target = "<name>"
	case "combine":
		target = "<name> [name...]"
	}
	fmt.Fprintf(w, "Usage: chatrender %s [flags] %s\n", command, target)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>        Output file (default: HTML to stdout)")
	fmt.Fprintln(w, "  -f, --format <s>           Output format: html, pdf (default: from extension)")
	fmt.Fprintln(w, "  -a, --archive <dir>        Archive root directory")
	fmt.Fprintln(w, "  -c, --config <name>        Config file name or path")
	fmt.Fprintln(w, "  -t, --timeout <d>          Render timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "      --keep-html            Also write the intermediate HTML next to a PDF output")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Document:")
	fmt.Fprintln(w, "      --template <s>         Document template name")
	fmt.Fprintln(w, "      --media-display <s>    Media display: inline, gallery, thumbnails")
	fmt.Fprintln(w, "      --gencom-fields <s>    Generated-comment fields: none, all, or comma list")
	fmt.Fprintln(w, "      --include-metadata     Show per-item metadata panel")
	fmt.Fprintln(w, "      --include-raw          Show raw source above rendered content")
	fmt.Fprintln(w, "      --no-role-key          Omit the role color key")
	fmt.Fprintln(w, "      --dollar-heuristic <s> Single-dollar math detection: strict, all, off")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Logging:")
	fmt.Fprintln(w, "  -q, --quiet                Only show errors")
	fmt.Fprintln(w, "  -v, --verbose              Show repair diagnostics")
}

// runHelp shows help for a specific command, or general usage.
func runHelp(args []string, env *Environment) {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return
	}
	command := args[0]
	if renderCommands[command] {
		printRenderUsage(env.Stdout, command)
		return
	}
	switch command {
	case "templates":
		fmt.Fprintln(env.Stdout, "Usage: chatrender templates")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "List available document templates, one per line.")
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: chatrender doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check browser availability, archive access, and the temp directory.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: chatrender version")
	default:
		printUsage(env.Stdout)
	}
}
