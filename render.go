package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"kiwi/internal/indexer"
)

var (
	highlight  = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#8BC34A"}
	errorColor = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EF6C00", Dark: "#FFB74D"}

	titleStyle = lipgloss.NewStyle().Foreground(highlight).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(12)

	okDot   = lipgloss.NewStyle().Foreground(highlight).SetString("●")
	warnDot = lipgloss.NewStyle().Foreground(warnColor).SetString("●")
	errDot  = lipgloss.NewStyle().Foreground(errorColor).SetString("●")
)

// maxPrintedErrors bounds the per-item errors listed by renderResult.
const maxPrintedErrors = 10

// renderResult prints a short dashboard for one finished run.
func renderResult(w io.Writer, res indexer.SyncResult) {
	dot := okDot
	switch {
	case res.State == indexer.StateFailed:
		dot = errDot
	case res.ErrorCount > 0:
		dot = warnDot
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s  %s\n", dot.String(), titleStyle.Render("Sync "+string(res.State)), mutedStyle.Render(res.RunID))
	fmt.Fprintf(w, "  %s\n", mutedStyle.Render(res.Summary()))
	fmt.Fprintln(w)

	rows := []struct {
		label string
		value int
	}{
		{"Scanned", res.Scanned},
		{"New", res.New},
		{"Modified", res.Modified},
		{"Unchanged", res.Unchanged},
		{"Deleted", res.Deleted},
		{"Errored", res.Errored},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(row.label), humanize.Comma(int64(row.value)))
	}
	if !res.Cursor.IsZero() {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Cursor"), res.Cursor.Format("2006-01-02 15:04:05 MST"))
	}

	if len(res.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("Errors"))
		for i, e := range res.Errors {
			if i == maxPrintedErrors {
				fmt.Fprintf(w, "  %s\n", mutedStyle.Render(fmt.Sprintf("... and %d more", res.ErrorCount-maxPrintedErrors)))
				break
			}
			fmt.Fprintf(w, "  %s %s\n", errDot.String(), e.Error())
		}
	}
	fmt.Fprintln(w)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressLine redraws a single status line on an interactive terminal and
// stays silent otherwise.
type progressLine struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	width   int
	drawn   bool
}

func newProgressLine(f *os.File) *progressLine {
	p := &progressLine{w: f, width: 80}
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		p.enabled = true
		if width, _, err := term.GetSize(fd); err == nil && width > 0 {
			p.width = width
		}
	}
	return p
}

// Update implements indexer.ProgressFunc.
func (p *progressLine) Update(pr indexer.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "\r%-*s", p.width-1, truncate(formatProgress(pr), p.width-1))
	p.drawn = true
}

// Done clears the line so later output starts at column zero.
func (p *progressLine) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.drawn {
		fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", p.width-1))
		p.drawn = false
	}
}

func formatProgress(pr indexer.Progress) string {
	if pr.Total == 0 {
		return fmt.Sprintf("%s...", pr.Phase)
	}
	line := fmt.Sprintf("%s %s/%s (%.0f%%)", pr.Phase,
		humanize.Comma(int64(pr.Processed)), humanize.Comma(int64(pr.Total)), pr.Percent)
	if pr.ETA != "" {
		line += ", done " + pr.ETA
	}
	return line
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
