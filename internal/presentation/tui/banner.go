package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the convo banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"   ___ ___  _ ____   _____ ", "#34d399"},
		{"  / __/ _ \\| '_ \\ \\ / / _ \\", "#2dd4bf"},
		{" | (_| (_) | | | \\ V / (_) |", "#22d3ee"},
		{"  \\___\\___/|_| |_|\\_/ \\___/", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
