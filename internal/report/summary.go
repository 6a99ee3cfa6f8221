package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/trackload/internal/stresstest"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	styleSubtle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stylePass   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	styleFail   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

// painter applies styles only when writing to a terminal
type painter bool

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p {
		return s
	}
	return style.Render(s)
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// WriteSummary writes the end-of-run summary to w in format
func WriteSummary(w io.Writer, res *stresstest.Result, format string) error {
	out, err := FormatSummary(res, format, IsTerminal(w))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// FormatSummary renders res as text, json or yaml
func FormatSummary(res *stresstest.Result, format string, color bool) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(res)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText, "":
		return formatSummaryText(res, painter(color)), nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
}

func formatSummaryText(res *stresstest.Result, p painter) string {
	var sb strings.Builder

	title := "trackload run"
	if res.RunID > 0 {
		title = fmt.Sprintf("trackload run #%d", res.RunID)
	}
	sb.WriteString(p.paint(styleTitle, title) + "\n")
	sb.WriteString(fmt.Sprintf("Profile:    %s\n", res.Profile))
	sb.WriteString(fmt.Sprintf("Target:     %s (%s)\n", res.BaseURL, res.Env))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", res.Status))
	if d := res.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("Duration:   %s\n", d.Round(time.Millisecond)))
	}
	sb.WriteString("\n")

	if len(res.Scenarios) > 0 {
		sb.WriteString(p.paint(styleTitle, "Scenarios") + "\n")
		width := 0
		for _, s := range res.Scenarios {
			width = max(width, len(s.Name))
		}
		for _, s := range res.Scenarios {
			line := fmt.Sprintf("%-*s  iterations %d", width, s.Name, s.Iterations)
			if s.Planned > 0 {
				line += fmt.Sprintf("/%d", s.Planned)
			}
			if s.Dropped > 0 {
				line += p.paint(styleFail, fmt.Sprintf("  dropped %d", s.Dropped))
			}
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(p.paint(styleTitle, "Requests") + "\n")
	rows := append([]stresstest.NameStats{}, res.ByName...)
	rows = append(rows, res.Overall)
	width := len("NAME")
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	header := fmt.Sprintf("%-*s %7s %7s %9s %8s %8s %8s %8s %8s %8s",
		width, "NAME", "COUNT", "FAILED", "AVG", "MIN", "MED", "P90", "P95", "P99", "MAX")
	sb.WriteString(p.paint(styleSubtle, header) + "\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%-*s %7d %7d %9s %8s %8s %8s %8s %8s %8s\n",
			width, r.Name, r.Count, r.Failed, fmt.Sprintf("%.0fms", r.AvgMs),
			ms(r.MinMs), ms(r.P50Ms), ms(r.P90Ms), ms(r.P95Ms), ms(r.P99Ms), ms(r.MaxMs)))
	}
	sb.WriteString("\n")

	if len(res.Checks) > 0 {
		sb.WriteString(p.paint(styleTitle, "Checks") + "\n")
		for _, c := range res.Checks {
			mark := p.paint(stylePass, "PASS")
			if c.Failed > 0 {
				mark = p.paint(styleFail, "FAIL")
			}
			sb.WriteString(fmt.Sprintf("%s %s  %.1f%% (%d/%d)\n",
				mark, c.Name, c.Rate()*100, c.Passed, c.Passed+c.Failed))
		}
		sb.WriteString("\n")
	}

	if len(res.Thresholds) > 0 {
		sb.WriteString(p.paint(styleTitle, "Thresholds") + "\n")
		for _, th := range res.Thresholds {
			mark := p.paint(stylePass, "PASS")
			if !th.Passed {
				mark = p.paint(styleFail, "FAIL")
			}
			observed := fmt.Sprintf("observed %.4g", th.Observed)
			if th.NoData {
				observed = "no data"
			}
			sb.WriteString(fmt.Sprintf("%s %s  %s  %s\n", mark, th.Key, th.Expression, p.paint(styleSubtle, observed)))
		}
		sb.WriteString("\n")
	}

	if res.Passed {
		sb.WriteString(p.paint(stylePass, "PASSED") + "\n")
	} else {
		sb.WriteString(p.paint(styleFail, "FAILED") + "\n")
	}
	return sb.String()
}

// FormatRuns renders stored run records as text, json or yaml
func FormatRuns(runs []*stresstest.Run, format string, color bool) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(runs)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatText, "":
	default:
		return "", fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
	}

	if len(runs) == 0 {
		return "No load runs found.\n", nil
	}

	p := painter(color)
	var sb strings.Builder
	for _, run := range runs {
		statusIcon := "OK"
		switch {
		case run.Status == stresstest.StatusRunning:
			statusIcon = "RUN"
		case run.Status == stresstest.StatusCancelled:
			statusIcon = "STOP"
		case run.Status == stresstest.StatusFailed || !run.ThresholdsPassed:
			statusIcon = p.paint(styleFail, "ERR")
		}

		sb.WriteString(fmt.Sprintf("%-4s #%d %s  %s\n", statusIcon, run.ID, run.ProfileName, run.Scenarios))
		line := fmt.Sprintf("     %s | %s | %d iterations | %d reqs | %d failed",
			run.StartedAt.Format("2006-01-02 15:04"), run.Env, run.TotalIterations, run.TotalRequests, run.FailedRequests)
		if run.DroppedIterations > 0 {
			line += fmt.Sprintf(" | %d dropped", run.DroppedIterations)
		}
		sb.WriteString(p.paint(styleSubtle, line) + "\n")
	}
	return sb.String(), nil
}

func ms(v int64) string {
	return fmt.Sprintf("%dms", v)
}
