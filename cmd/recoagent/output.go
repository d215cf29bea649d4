package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/recoagent/internal/catalog"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// printProduct writes one product line: id, name, category and brand.
func printProduct(w io.Writer, p catalog.PublicProduct, reason string) {
	line := fmt.Sprintf("%s %s %s", colorize(colorBold, fmt.Sprintf("#%d", p.ID)), p.Name, colorize(colorDim, "["+p.Category+"]"))
	if p.Brand != "" {
		line += " " + p.Brand
	}
	if p.Price != nil {
		line += fmt.Sprintf(" %.2f", *p.Price)
	}
	fmt.Fprintln(w, line)
	if reason = strings.TrimSpace(reason); reason != "" {
		fmt.Fprintf(w, "    %s\n", colorize(colorDim, reason))
	}
}
