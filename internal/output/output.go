// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package output

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/frame_recorder/internal/store"
)

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGray   = lipgloss.Color("#6272A4")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorGray)
	idStyle      = lipgloss.NewStyle().Width(10)
	statusStyles = map[string]lipgloss.Style{
		store.StatusSaved:    okStyle,
		store.StatusFlushing: warnStyle,
		store.StatusFailed:   errorStyle,
	}
)

// Formatter writes human-readable command output.
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, dimStyle.Render("• ")+msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintln(f.w, okStyle.Render("✓ ")+msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, warnStyle.Render("! ")+msg)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, errorStyle.Render("✗ ")+msg)
}

// RecordingList prints catalog entries, newest first.
func (f *Formatter) RecordingList(entries []store.Entry) {
	if len(entries) == 0 {
		f.Info("No recordings found")
		return
	}
	fmt.Fprintln(f.w, titleStyle.Render("Recordings"))
	for _, e := range entries {
		style, ok := statusStyles[e.Status]
		if !ok {
			style = dimStyle
		}
		id := e.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		line := fmt.Sprintf("  %s %s  %-12s %5d records  %s",
			idStyle.Render(id),
			e.StartedAt.Format("2006-01-02 15:04:05"),
			e.Kind,
			e.Records,
			style.Render(e.Status),
		)
		if e.Missing > 0 {
			line += warnStyle.Render(fmt.Sprintf("  %d missing", e.Missing))
		}
		fmt.Fprintln(f.w, line)
		if e.Dir != "" {
			fmt.Fprintln(f.w, "    "+dimStyle.Render(e.Dir))
		}
		if e.Error != "" {
			fmt.Fprintln(f.w, "    "+errorStyle.Render(e.Error))
		}
	}
}

// Verification prints the result of store.Verify.
func (f *Formatter) Verification(v *store.Verification) {
	fmt.Fprintln(f.w, titleStyle.Render(v.Dir))
	fmt.Fprintf(f.w, "  lines %d, images %d, missing %d\n", v.Lines, v.Images, v.Missing)
	fmt.Fprintf(f.w, "  duration %s, %.1f fps\n", v.Duration.Round(time.Millisecond), v.FPS)
	if v.OK() {
		f.Success("recording is consistent")
		return
	}
	for _, issue := range v.Issues {
		f.Error(issue)
	}
}
