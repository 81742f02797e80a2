// Package plugins is the extensibility seam of the audit engine: a
// statically registered, ordered collection of independent security
// checks that share one execution context and append to one finding
// sink. A failing check never prevents other checks or the final
// report; that isolation is the central failure-handling contract.
package plugins

import (
	"context"
	"net/http"

	"github.com/finsec-lab/apiaudit/internal/executor"
	"github.com/finsec-lab/apiaudit/internal/logger"
	"github.com/finsec-lab/apiaudit/pkg/openapi"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

// Plugin is one independently pluggable security check.
type Plugin interface {
	// ID is the category tag stamped onto the plugin's findings,
	// e.g. "API8:SecurityMisconfig".
	ID() string
	Title() string
	Description() string
	Run(ctx context.Context, ec *ExecutionContext) ([]types.Finding, error)
}

// ExecutionContext is the read-only bundle handed to every plugin.
// Plugins append to Findings; they never replace it.
type ExecutionContext struct {
	BaseURL           string
	AccessToken       string
	RequestingBank    string
	InterbankClientID string
	ConsentID         string
	Verbose           bool

	Client   *http.Client
	Exec     *executor.Executor
	Doc      openapi.Document
	Resolver *openapi.Resolver
	Log      *logger.Logger

	Findings *types.FindingList
}

// AuthHeaders returns the Authorization header map for the resolved
// token, or an empty map when the run has none.
func (ec *ExecutionContext) AuthHeaders() map[string]string {
	h := map[string]string{}
	if ec.AccessToken != "" {
		h["Authorization"] = "Bearer " + ec.AccessToken
	}
	return h
}
