package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-isolate/engine"
	"github.com/wippyai/wasm-isolate/linker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// isTerminal reports whether w is a terminal. Styles are dropped otherwise
// so piped output stays plain.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if !isTerminal(w) {
		return s
	}
	return style.Render(s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDescriptors(w io.Writer, asJSON bool, descs []linker.Descriptor) error {
	if asJSON {
		return printJSON(w, descs)
	}
	width := 0
	for _, d := range descs {
		width = max(width, len(d.Name().Name))
	}
	for _, d := range descs {
		name := render(w, nameStyle, fmt.Sprintf("%-*s", width, d.Name().Name))
		switch {
		case d.IsDynamic():
			fmt.Fprintf(w, "%s  %s\n", name, render(w, helpStyle, "host module"))
		default:
			loc := d.Location()
			if loc == "" {
				loc = "(in memory)"
			}
			fmt.Fprintf(w, "%s  %s  %s\n", name,
				render(w, typeStyle, "sha256:"+shortDigest(d.Name().Digest)),
				displayPath(loc))
			if d.Location() == "" {
				fmt.Fprintf(w, "%*s  %s\n", width, "", render(w, helpStyle, d.CodeBase()))
			}
		}
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

type callResult struct {
	Function string   `json:"function"`
	Results  []string `json:"results"`
}

func printResults(w io.Writer, asJSON bool, fn engine.Export, res []uint64) error {
	values := decodeResults(fn.Results, res)
	if asJSON {
		return printJSON(w, callResult{Function: fn.Signature(), Results: values})
	}
	if len(values) == 0 {
		fmt.Fprintln(w, render(w, helpStyle, fn.Name+" returned no values"))
		return nil
	}
	fmt.Fprintln(w, render(w, resultStyle, strings.Join(values, " ")))
	return nil
}
