package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finsec-lab/apiaudit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() types.Report {
	findings := []types.Finding{
		{Endpoint: "/accounts", Method: "GET", Status: 200, Category: "API2:BrokenAuthentication",
			Severity: types.SeverityHigh, Message: "Protected resource served without any authentication",
			Recommendation: "Require bearer authentication"},
		{Endpoint: "/accounts", Method: "GET", Status: 200, Category: "ContractMatch",
			Severity: types.SeverityInfo, Message: "Response matches documented schema"},
		{Endpoint: "/transactions", Method: "POST", Status: 500, Category: "ContractMismatch",
			Severity: types.SeverityMedium, Message: "body does not match", Evidence: `{"error":"oops"}`},
	}
	return types.Report{
		Meta: types.Meta{
			Title:       "Virtual Bank Audit",
			BaseURL:     "https://vbank.example.com",
			OpenAPI:     "https://vbank.example.com/openapi.json",
			RunID:       "run-1234",
			GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Findings: findings,
		Summary:  types.Summarize(findings),
	}
}

func TestWriteEmitsJSONAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(filepath.Join(dir, "reports")).WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	})

	jsonPath, mdPath, err := w.Write(sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "VirtualBankAPI-20260301-120000.json", filepath.Base(jsonPath))
	assert.Equal(t, "VirtualBankAPI-20260301-120000.md", filepath.Base(mdPath))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded types.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1234", decoded.Meta.RunID)
	assert.Len(t, decoded.Findings, 3)
	assert.Equal(t, 3, decoded.Summary.Total)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Virtual Bank Audit")
}

func TestMarkdownGroupsBySeverity(t *testing.T) {
	md := Markdown(sampleReport())

	high := indexOf(t, md, "## HIGH (1)")
	medium := indexOf(t, md, "## MEDIUM (1)")
	info := indexOf(t, md, "## INFO (1)")
	assert.Less(t, high, medium)
	assert.Less(t, medium, info)

	assert.Contains(t, md, "Run ID: `run-1234`")
	assert.Contains(t, md, "Recommendation: Require bearer authentication")
	assert.Contains(t, md, "```\n{\"error\":\"oops\"}\n```")
}

func TestMarkdownEmptyReport(t *testing.T) {
	rep := types.Report{
		Meta:    types.Meta{RunID: "run-0", BaseURL: "https://vbank.example.com"},
		Summary: types.Summarize(nil),
	}
	md := Markdown(rep)
	assert.Contains(t, md, "# API Security Audit")
	assert.Contains(t, md, "| **Total** | **0** |")
	assert.NotContains(t, md, "## HIGH")
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "missing %q", needle)
	return idx
}
