// Package authcheck implements a broken-authentication probe (OWASP
// API2): the primary protected resource must refuse requests carrying
// no credentials at all.
package authcheck

import (
	"context"

	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/pkg/contract"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

const probePath = "/accounts"

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) ID() string    { return "API2:BrokenAuthentication" }
func (p *Plugin) Title() string { return "Broken Authentication" }
func (p *Plugin) Description() string {
	return "Requests the primary protected resource without credentials and expects a refusal"
}

func (p *Plugin) Run(ctx context.Context, ec *plugins.ExecutionContext) ([]types.Finding, error) {
	// Deliberately no Authorization header.
	resp, err := ec.Exec.Get(ctx, ec.BaseURL+probePath, nil)
	if err != nil {
		// Connection failure on an optional probe is a silent skip.
		return nil, nil
	}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		f := types.NewFinding(probePath, "GET", resp.Status, p.ID(),
			types.SeverityHigh,
			"Protected resource served without any authentication",
			contract.Snippet(resp.Body, 400))
		return []types.Finding{f.WithRecommendation("Require bearer authentication on all account resources")}, nil
	case resp.Status == 401 || resp.Status == 403:
		return []types.Finding{types.NewFinding(probePath, "GET", resp.Status, p.ID(),
			types.SeverityInfo, "Unauthenticated request correctly refused", "")}, nil
	default:
		return []types.Finding{types.NewFinding(probePath, "GET", resp.Status, p.ID(),
			types.SeverityLow, "Unexpected status for unauthenticated request", "")}, nil
	}
}
