// Package misconfig implements the security-misconfiguration check
// (OWASP API8): exposed operational endpoints and missing security
// response headers.
package misconfig

import (
	"context"
	"strings"

	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/pkg/contract"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

// debugEndpoints are the operational paths probed for exposure.
var debugEndpoints = []string{"/debug", "/actuator", "/metrics", "/health", "/status", "/test"}

// sensitiveKeywords in a 200 body mark a debug endpoint as leaking
// system internals.
var sensitiveKeywords = []string{"memory", "heap", "database", "config"}

// securityHeaders maps required response headers to the severity of
// their absence.
var securityHeaders = []struct {
	Name     string
	Severity types.Severity
}{
	{"Strict-Transport-Security", types.SeverityHigh},
	{"X-Content-Type-Options", types.SeverityMedium},
	{"X-Frame-Options", types.SeverityMedium},
	{"Content-Security-Policy", types.SeverityMedium},
}

const snippetLimit = 400

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string    { return "API8:SecurityMisconfig" }
func (p *Plugin) Title() string { return "Security Misconfiguration" }
func (p *Plugin) Description() string {
	return "Probes operational endpoints for information leaks and checks security response headers"
}

func (p *Plugin) Run(ctx context.Context, ec *plugins.ExecutionContext) ([]types.Finding, error) {
	var out []types.Finding
	headers := ec.AuthHeaders()

	for _, endpoint := range debugEndpoints {
		resp, err := ec.Exec.Get(ctx, ec.BaseURL+endpoint, headers)
		if err != nil {
			// Unreachable operational paths are the expected case.
			continue
		}
		if resp.Status != 200 {
			continue
		}
		body := strings.ToLower(resp.Body)
		for _, kw := range sensitiveKeywords {
			if strings.Contains(body, kw) {
				out = append(out, types.NewFinding(endpoint, "GET", resp.Status, p.ID(),
					types.SeverityMedium,
					"Operational endpoint discloses system information",
					contract.Snippet(resp.Body, snippetLimit)))
				break
			}
		}
	}

	resp, err := ec.Exec.Get(ctx, ec.BaseURL+"/accounts", headers)
	if err != nil {
		return out, nil
	}
	for _, h := range securityHeaders {
		if strings.TrimSpace(resp.Header.Get(h.Name)) == "" {
			out = append(out, types.NewFinding(ec.BaseURL+"/accounts", "GET", resp.Status, p.ID(),
				h.Severity, "Missing security header: "+h.Name, ""))
		}
	}

	return out, nil
}
