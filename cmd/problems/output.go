package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/paging"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/workflow"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// writeValue renders v as json or yaml.
func writeValue(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeView(w io.Writer, format string, v workflow.View) error {
	if format != "" && format != "text" {
		return writeValue(w, format, v)
	}

	header := v.Skill
	if len(v.Tags) > 0 {
		header += " · " + strings.Join(v.Tags, ", ")
	}
	fmt.Fprintf(w, "%s\n", colorize(colorBold, header))
	if v.Total == 0 {
		fmt.Fprintln(w, "No problems found.")
		return nil
	}

	first := (v.Page-1)*paging.DefaultPageSize + 1
	for i, p := range v.Problems {
		fmt.Fprintf(w, "%3d. %s  [%s]\n", first+i, p.Title, p.Difficulty)
		if len(p.Tags) > 0 {
			fmt.Fprintf(w, "     %s\n", strings.Join(p.Tags, ", "))
		}
		if p.DetailsURL != "" {
			fmt.Fprintf(w, "     %s\n", colorize(colorCyan, p.DetailsURL))
		}
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d problems)  catalog %s\n", v.Page, v.PageCount, v.Total, colorize(colorCyan, v.CatalogID))
	return nil
}
