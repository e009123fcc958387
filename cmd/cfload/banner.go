package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/cfload/internal/ingest"
)

type runSummary struct {
	RunID    string
	Source   string
	Database string
	Stats    ingest.Stats
	Err      error
}

func printSummary(w io.Writer, s runSummary) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	status := green.Render("●") + "  " + bold.Render("Load complete")
	if s.Err != nil {
		status = red.Render("●") + "  " + bold.Render("Load failed")
	}

	separator := dim.Render("    ─────────────────────────────────")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, "    "+status)
	lines = append(lines, "    "+dim.Render("run "+s.RunID))
	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    Source         %s", dim.Render(shortenPath(s.Source))))
	lines = append(lines, fmt.Sprintf("    Database       %s", dim.Render(shortenPath(s.Database))))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    Files          %s", cyan.Render(fmt.Sprint(s.Stats.Files))))
	lines = append(lines, fmt.Sprintf("    Lines          %s", cyan.Render(fmt.Sprint(s.Stats.Lines))))
	lines = append(lines, fmt.Sprintf("    Records        %s", cyan.Render(fmt.Sprint(s.Stats.Records))))
	lines = append(lines, fmt.Sprintf("    Batches        %s", cyan.Render(fmt.Sprint(s.Stats.Batches))))
	lines = append(lines, fmt.Sprintf("    Duration       %s", cyan.Render(s.Stats.Duration.Round(time.Millisecond).String())))
	if s.Err != nil {
		lines = append(lines, "")
		lines = append(lines, "    "+red.Render(s.Err.Error()))
	}
	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")

	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
