// Package theme renders the CLI banner and tables.
package theme

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	cyan    = "\033[36m"
	magenta = "\033[35m"
	reset   = "\033[0m"
)

// Banner returns the CLI banner.
func Banner() string {
	return "" +
		cyan + "  __  __ ___ _____ _\n" +
		"  \\ \\/ /| __|_   _| |\n" +
		"   >  < | _|  | | | |__\n" +
		"  /_/\\_\\|___| |_| |____|\n" + reset +
		magenta + "  timeline export to object storage\n" + reset
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}

// Table writes rows under header with columns padded to display width, so
// wide runes in error messages do not break alignment.
func Table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			if n := runewidth.StringWidth(r[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}
	line := func(cells []string) {
		var b strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
	line(header)
	for _, r := range rows {
		line(r)
	}
}
