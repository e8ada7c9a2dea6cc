package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ritzau/dirscan/pkg/finder"
)

// Printer renders scan results in one format
type Printer interface {
	Print(w io.Writer, result *finder.Result) error
}

// NewPrinter returns the printer for a format name ("text" or "json")
func NewPrinter(format string) (Printer, error) {
	switch format {
	case "", "text":
		return TextPrinter{}, nil
	case "json":
		return JSONPrinter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// TextPrinter prints a header listing the patterns followed by one
// indented line per file
type TextPrinter struct{}

func (TextPrinter) Print(w io.Writer, result *finder.Result) error {
	bold := color.New(color.Bold)

	if _, err := bold.Fprintf(w, "Found files (excluding %s):\n", FormatPatterns(result.Patterns)); err != nil {
		return err
	}
	for _, f := range result.Files {
		if _, err := fmt.Fprintf(w, "    %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// JSONPrinter writes the result as a single JSON document
type JSONPrinter struct {
	Indent bool
}

type jsonResult struct {
	Root    string   `json:"root"`
	Exclude []string `json:"exclude"`
	Files   []string `json:"files"`
}

func (p JSONPrinter) Print(w io.Writer, result *finder.Result) error {
	enc := json.NewEncoder(w)
	if p.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(jsonResult{
		Root:    result.Root,
		Exclude: nonNil(result.Patterns),
		Files:   nonNil(result.Files),
	})
}

// FormatPatterns renders patterns as a bracketed list of quoted strings,
// e.g. ["*.log", "target"]
func FormatPatterns(patterns []string) string {
	quoted := make([]string, len(patterns))
	for i, p := range patterns {
		quoted[i] = fmt.Sprintf("%q", p)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// PrintSummary writes a one-line colored summary, used between rescans in
// watch mode
func PrintSummary(w io.Writer, result *finder.Result) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprintf(w, "%d file(s)", len(result.Files))
	fmt.Fprintf(w, " under %s, %d entries visited", result.Root, result.Visited)
	if excluded := result.ExcludedFiles + result.ExcludedDirs; excluded > 0 {
		yellow.Fprintf(w, ", %d excluded", excluded)
	}
	fmt.Fprintln(w)
}

// PrintError writes a failed scan in red
func PrintError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
