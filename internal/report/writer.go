// Package report renders the accumulated findings of a run to disk.
// Every run produces a machine-readable JSON report and a
// human-readable Markdown report side by side; emission happens even
// when the run aborted early, so partial findings are never lost.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/finsec-lab/apiaudit/pkg/types"
)

const fileStem = "VirtualBankAPI"

// Writer emits reports into a single directory.
type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// WithClock overrides the timestamp source. Used by tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Write renders rep as JSON and Markdown. It returns the paths of the
// two files written.
func (w *Writer) Write(rep types.Report) (jsonPath, mdPath string, err error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	stamp := w.now().Format("20060102-150405")
	jsonPath = filepath.Join(w.dir, fmt.Sprintf("%s-%s.json", fileStem, stamp))
	mdPath = filepath.Join(w.dir, fmt.Sprintf("%s-%s.md", fileStem, stamp))

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write json report: %w", err)
	}

	if err := os.WriteFile(mdPath, []byte(Markdown(rep)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown report: %w", err)
	}

	return jsonPath, mdPath, nil
}

// severityOrder drives report grouping, most severe first.
var severityOrder = []types.Severity{
	types.SeverityHigh,
	types.SeverityMedium,
	types.SeverityLow,
	types.SeverityInfo,
}

// Markdown renders the report grouped by severity, most severe first.
// Within one severity, findings keep their discovery order.
func Markdown(rep types.Report) string {
	var b strings.Builder

	title := rep.Meta.Title
	if title == "" {
		title = "API Security Audit"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run ID: `%s`\n", rep.Meta.RunID)
	fmt.Fprintf(&b, "- Target: %s\n", rep.Meta.BaseURL)
	if rep.Meta.OpenAPI != "" {
		fmt.Fprintf(&b, "- Specification: %s\n", rep.Meta.OpenAPI)
	}
	fmt.Fprintf(&b, "- Generated: %s\n\n", rep.Meta.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Severity | Count |\n|---|---|\n")
	for _, sev := range severityOrder {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, rep.Summary.BySeverity[sev])
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", rep.Summary.Total)

	for _, sev := range severityOrder {
		group := filterBySeverity(rep.Findings, sev)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", sev, len(group))
		for _, f := range group {
			fmt.Fprintf(&b, "### %s %s\n\n", f.Method, f.Endpoint)
			fmt.Fprintf(&b, "- Category: %s\n", f.Category)
			if f.Status != 0 {
				fmt.Fprintf(&b, "- Status: %d\n", f.Status)
			}
			fmt.Fprintf(&b, "- %s\n", f.Message)
			if f.Recommendation != "" {
				fmt.Fprintf(&b, "- Recommendation: %s\n", f.Recommendation)
			}
			if f.Evidence != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", f.Evidence)
			}
			fmt.Fprintln(&b)
		}
	}

	return b.String()
}

func filterBySeverity(findings []types.Finding, sev types.Severity) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// PrintSummary writes a colored per-severity count table to stdout.
func PrintSummary(rep types.Report) {
	fmt.Println()
	color.Cyan("Audit complete: %d findings\n", rep.Summary.Total)
	for _, sev := range severityOrder {
		count := rep.Summary.BySeverity[sev]
		line := fmt.Sprintf("  %-8s %d", sev, count)
		switch sev {
		case types.SeverityHigh:
			color.Red("%s", line)
		case types.SeverityMedium:
			color.Yellow("%s", line)
		case types.SeverityLow:
			color.White("%s", line)
		default:
			color.Green("%s", line)
		}
	}

	// Keep category breakdown stable across runs.
	byCategory := map[string]int{}
	for _, f := range rep.Findings {
		byCategory[f.Category]++
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	if len(categories) > 0 {
		fmt.Println()
		for _, c := range categories {
			fmt.Printf("  %-28s %d\n", c, byCategory[c])
		}
	}
}
