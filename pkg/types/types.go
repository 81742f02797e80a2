package types

import (
	"strings"
	"sync"
	"time"
)

type Severity string

const (
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Rank orders severities for comparison and summary sorting. Higher is
// more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

type ScenarioLabel string

const (
	LabelPositive ScenarioLabel = "positive"
	LabelNegative ScenarioLabel = "negative"
)

// Scenario is one synthesized HTTP request derived from a declared API
// operation. Scenarios are built by the generator, dispatched once by
// the auditor and then discarded.
type Scenario struct {
	Path    string
	Method  string
	Query   map[string]string
	Headers map[string]string
	Body    map[string]any
	Label   ScenarioLabel
}

// Clone returns a deep-enough copy for negative-case mutation: query,
// headers and the top level of the body are copied, nested body values
// are shared.
func (s Scenario) Clone() Scenario {
	out := Scenario{
		Path:    s.Path,
		Method:  s.Method,
		Query:   make(map[string]string, len(s.Query)),
		Headers: make(map[string]string, len(s.Headers)),
		Label:   s.Label,
	}
	for k, v := range s.Query {
		out.Query[k] = v
	}
	for k, v := range s.Headers {
		out.Headers[k] = v
	}
	if s.Body != nil {
		out.Body = make(map[string]any, len(s.Body))
		for k, v := range s.Body {
			out.Body[k] = v
		}
	}
	return out
}

// Finding is one structured observation produced during a run: a
// vulnerability, a contract mismatch or an informational note.
type Finding struct {
	Endpoint       string   `json:"endpoint"`
	Method         string   `json:"method"`
	Status         int      `json:"status"`
	Category       string   `json:"category"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Evidence       string   `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// NewFinding builds a finding with message and recommendation cleaned of
// control characters that break report rendering.
func NewFinding(endpoint, method string, status int, category string, sev Severity, msg, evidence string) Finding {
	return Finding{
		Endpoint: endpoint,
		Method:   method,
		Status:   status,
		Category: category,
		Severity: sev,
		Message:  cleanMessage(msg),
		Evidence: evidence,
	}
}

// WithRecommendation returns a copy of the finding carrying a remediation hint.
func (f Finding) WithRecommendation(rec string) Finding {
	f.Recommendation = cleanMessage(rec)
	return f
}

func cleanMessage(msg string) string {
	r := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	return strings.TrimSpace(r.Replace(msg))
}

// FindingList is the single append-only sink shared by the auditor,
// the scenario runner and every plugin. Appends are mutex-guarded so a
// concurrent reimplementation of plugin execution stays safe; nothing
// is ever removed or mutated after insertion.
type FindingList struct {
	mu       sync.Mutex
	findings []Finding
}

func NewFindingList() *FindingList {
	return &FindingList{}
}

func (l *FindingList) Append(f ...Finding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.findings = append(l.findings, f...)
}

// All returns a snapshot copy in append order.
func (l *FindingList) All() []Finding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Finding, len(l.findings))
	copy(out, l.findings)
	return out
}

func (l *FindingList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.findings)
}

// Summary counts findings per severity.
type Summary struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"by_severity"`
}

func Summarize(findings []Finding) Summary {
	s := Summary{Total: len(findings), BySeverity: make(map[Severity]int)}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
	}
	return s
}

// Meta is the run metadata attached to every report.
type Meta struct {
	Title       string    `json:"title"`
	OpenAPI     string    `json:"openapi"`
	BaseURL     string    `json:"base_url"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Report is exactly the accumulated finding sequence plus run metadata.
type Report struct {
	Meta     Meta      `json:"meta"`
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}
