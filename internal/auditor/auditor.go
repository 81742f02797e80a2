// Package auditor drives a complete audit run: load the API document,
// resolve credentials, establish consent, dispatch generated request
// scenarios, execute the plugin checks, probe common operational paths
// and emit the report. The report is written even when the run aborts
// partway, so whatever was found survives.
package auditor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsec-lab/apiaudit/internal/auth"
	"github.com/finsec-lab/apiaudit/internal/config"
	"github.com/finsec-lab/apiaudit/internal/consent"
	"github.com/finsec-lab/apiaudit/internal/executor"
	"github.com/finsec-lab/apiaudit/internal/httpclient"
	"github.com/finsec-lab/apiaudit/internal/logger"
	"github.com/finsec-lab/apiaudit/internal/plugins"
	"github.com/finsec-lab/apiaudit/internal/plugins/authcheck"
	"github.com/finsec-lab/apiaudit/internal/plugins/inventory"
	"github.com/finsec-lab/apiaudit/internal/plugins/misconfig"
	"github.com/finsec-lab/apiaudit/internal/ratelimit"
	"github.com/finsec-lab/apiaudit/internal/report"
	"github.com/finsec-lab/apiaudit/pkg/contract"
	"github.com/finsec-lab/apiaudit/pkg/generator"
	"github.com/finsec-lab/apiaudit/pkg/openapi"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

// ErrNoBaseURL means neither the configuration nor the loaded document
// names a target.
var ErrNoBaseURL = errors.New("no base URL: set one explicitly or provide a spec that declares servers")

// probePaths are always requested at the end of a run; their responses
// go through the same contract validation as scenario responses.
var probePaths = []string{"/health", "/", "/.well-known/jwks.json"}

// Auditor wires the run's collaborators together. Build one per run.
type Auditor struct {
	cfg       config.Config
	log       *logger.Logger
	client    *http.Client
	exec      *executor.Executor
	limiter   *ratelimit.Limiter
	resolver  *openapi.Resolver
	validator *contract.Validator
	registry  *plugins.Registry
	writer    *report.Writer

	findings *types.FindingList
	baseURL  string
}

func New(cfg config.Config, log *logger.Logger) *Auditor {
	client := httpclient.New(cfg.HTTP)
	return &Auditor{
		cfg:       cfg,
		log:       log,
		client:    client,
		exec:      executor.New(client, log, cfg.Scan.Verbose, cfg.Scan.ExtraHeaders),
		limiter:   ratelimit.NewLimiter(cfg.RateLimit),
		resolver:  openapi.NewResolver(client),
		validator: contract.NewValidator(contract.NewJSONSchemaValidator()),
		registry:  DefaultRegistry(),
		writer:    report.NewWriter(cfg.Report.Dir),
		findings:  types.NewFindingList(),
	}
}

// WithRegistry swaps the plugin set. Used by tests and by callers that
// want a narrower run.
func (a *Auditor) WithRegistry(reg *plugins.Registry) *Auditor {
	a.registry = reg
	return a
}

// DefaultRegistry returns the built-in plugin set in its fixed
// execution order.
func DefaultRegistry() *plugins.Registry {
	return plugins.NewRegistry().
		Register(inventory.New()).
		Register(misconfig.New()).
		Register(authcheck.New())
}

// Result is what a run leaves behind.
type Result struct {
	Report   types.Report
	JSONPath string
	MDPath   string
}

// Run performs the full audit. The report is emitted before returning
// regardless of how far the run got; the returned error marks a fatal
// precondition failure, not the presence of findings.
func (a *Auditor) Run(ctx context.Context) (res Result, err error) {
	runID := uuid.New().String()
	log := a.log.WithRunID(runID)
	log.Infow("Audit starting", "openapi", a.cfg.Scan.OpenAPILocation, "base_url", a.cfg.Scan.BaseURL)

	defer func() {
		res.Report = a.buildReport(runID)
		jsonPath, mdPath, werr := a.writer.Write(res.Report)
		if werr != nil {
			log.Errorw("Report emission failed", "error", werr)
			if err == nil {
				err = werr
			}
			return
		}
		res.JSONPath, res.MDPath = jsonPath, mdPath
		log.Infow("Report written", "json", jsonPath, "markdown", mdPath, "findings", res.Report.Summary.Total)
	}()

	doc := a.loadDocument(ctx, log)

	baseURL, err := a.resolveBaseURL(doc)
	if err != nil {
		return res, err
	}
	a.baseURL = baseURL
	log.Infow("Target resolved", "base_url", baseURL)

	tokens := auth.NewTokenSource(a.exec, log, baseURL, a.cfg.Auth)
	token, err := tokens.Resolve(ctx)
	if err != nil {
		return res, fmt.Errorf("resolve token: %w", err)
	}

	// Validation is advisory: a token the target refuses still gets
	// used, and the refusal itself is recorded.
	if !tokens.Validate(ctx, token) {
		a.findings.Append(types.NewFinding("/auth", "N/A", 0, "AuthCheck",
			types.SeverityHigh, "Resolved token was rejected by the target API", ""))
	}

	consentID := a.establishConsent(ctx, log, baseURL, token)

	a.runScenarios(ctx, log, doc, baseURL, token, consentID)

	ec := &plugins.ExecutionContext{
		BaseURL:           baseURL,
		AccessToken:       token,
		RequestingBank:    a.cfg.Scan.RequestingBank,
		InterbankClientID: a.cfg.Scan.InterbankClientID,
		ConsentID:         consentID,
		Verbose:           a.cfg.Scan.Verbose,
		Client:            a.client,
		Exec:              a.exec,
		Doc:               doc,
		Resolver:          a.resolver,
		Log:               log,
		Findings:          a.findings,
	}
	a.registry.RunAll(ctx, ec)

	a.probeCommonPaths(ctx, doc, baseURL, token)

	return res, nil
}

// loadDocument fetches the OpenAPI document when a location is
// configured. Load failure is not fatal: the run continues without
// contract validation or document-driven scenarios.
func (a *Auditor) loadDocument(ctx context.Context, log *logger.Logger) openapi.Document {
	loc := a.cfg.Scan.OpenAPILocation
	if loc == "" {
		return nil
	}
	doc, err := a.resolver.Load(ctx, loc)
	if err != nil {
		log.Warnw("OpenAPI document unavailable, continuing without contract checks",
			"location", loc, "error", err)
		a.findings.Append(types.NewFinding(loc, "N/A", 0, "SpecUnavailable",
			types.SeverityLow, "OpenAPI document could not be loaded: "+err.Error(), ""))
		return nil
	}
	return doc
}

// resolveBaseURL prefers the configured target over the document's
// first declared server. Trailing slashes are stripped so path joins
// stay clean.
func (a *Auditor) resolveBaseURL(doc openapi.Document) (string, error) {
	if u := strings.TrimSpace(a.cfg.Scan.BaseURL); u != "" {
		return strings.TrimRight(u, "/"), nil
	}
	if u, ok := openapi.FirstServerURL(doc); ok {
		return strings.TrimRight(u, "/"), nil
	}
	return "", ErrNoBaseURL
}

func (a *Auditor) establishConsent(ctx context.Context, log *logger.Logger, baseURL, token string) string {
	if !a.cfg.Consent.Create {
		return ""
	}
	c := consent.NewClient(a.exec, log, baseURL, a.cfg.Scan.RequestingBank, a.cfg.Scan.InterbankClientID)
	id, findings := c.Create(ctx, token)
	a.findings.Append(findings...)
	if id == "" {
		return ""
	}
	usable, state := c.Status(ctx, token, id)
	if !usable {
		log.Warnw("Consent not usable, account scenarios may be refused", "consent_id", id, "state", state)
	}
	return id
}

func (a *Auditor) runScenarios(ctx context.Context, log *logger.Logger, doc openapi.Document, baseURL, token, consentID string) {
	if doc == nil {
		return
	}
	scenarios := generator.New().Generate(doc, generator.Params{
		RequestingBank:    a.cfg.Scan.RequestingBank,
		InterbankClientID: a.cfg.Scan.InterbankClientID,
	})
	log.Infow("Scenarios generated", "count", len(scenarios))

	for _, s := range scenarios {
		// Destructive operations are synthesized for coverage counts
		// but never sent.
		if s.Method == http.MethodDelete {
			continue
		}
		if err := a.limiter.WaitForMethod(ctx, s.Method); err != nil {
			log.Warnw("Run cancelled during pacing", "error", err)
			return
		}
		a.runScenario(ctx, doc, baseURL, token, consentID, s)
	}
}

func (a *Auditor) runScenario(ctx context.Context, doc openapi.Document, baseURL, token, consentID string, s types.Scenario) {
	headers := map[string]string{}
	for k, v := range s.Headers {
		headers[k] = v
	}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	if consentID != "" && s.Query["client_id"] != "" {
		headers["X-Consent-Id"] = consentID
	}

	target := baseURL + s.Path
	if len(s.Query) > 0 {
		q := url.Values{}
		for k, v := range s.Query {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}

	var body any
	if s.Body != nil {
		body = s.Body
	}

	resp, err := a.exec.Do(ctx, s.Method, target, body, headers)
	if err != nil {
		a.findings.Append(types.NewFinding(s.Path, s.Method, 0, "RunnerError",
			types.SeverityLow,
			fmt.Sprintf("Request failed (%s case): %v", s.Label, err), ""))
		return
	}

	// A consent-less 403 on account data is correct access control,
	// not a contract failure. The response body is still validated
	// against the documented contract below.
	if resp.Status == http.StatusForbidden && consentID == "" && strings.Contains(s.Path, "/accounts") {
		a.findings.Append(types.NewFinding(s.Path, s.Method, resp.Status, "AccessControl",
			types.SeverityInfo, "Account data refused without an approved consent", ""))
	}

	schema := openapi.ResolveResponseSchema(doc, s.Path, resp.Status, resp.ContentType())
	a.findings.Append(a.validator.Validate(s.Path, s.Method, contract.ResponseData{
		Status:      resp.Status,
		ContentType: resp.ContentType(),
		Body:        resp.Body,
	}, schema)...)
}

// probeCommonPaths requests well-known operational paths and runs each
// response through contract validation, so a documented /health schema
// is checked like any other. Failures become findings instead of
// aborting the run.
func (a *Auditor) probeCommonPaths(ctx context.Context, doc openapi.Document, baseURL, token string) {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	for _, p := range probePaths {
		resp, err := a.exec.Get(ctx, baseURL+p, headers)
		if err != nil {
			a.findings.Append(types.NewFinding(p, "GET", 0, "ConnectionError",
				types.SeverityLow, "Probe failed: "+err.Error(), ""))
			continue
		}
		schema := openapi.ResolveResponseSchema(doc, p, resp.Status, resp.ContentType())
		a.findings.Append(a.validator.Validate(p, "GET", contract.ResponseData{
			Status:      resp.Status,
			ContentType: resp.ContentType(),
			Body:        resp.Body,
		}, schema)...)
	}
}

func (a *Auditor) buildReport(runID string) types.Report {
	findings := a.findings.All()
	title := a.cfg.Report.Title
	if title == "" {
		title = "API Security Audit"
	}
	baseURL := a.baseURL
	if baseURL == "" {
		baseURL = a.cfg.Scan.BaseURL
	}
	return types.Report{
		Meta: types.Meta{
			Title:       title,
			OpenAPI:     a.cfg.Scan.OpenAPILocation,
			BaseURL:     baseURL,
			RunID:       runID,
			GeneratedAt: time.Now(),
		},
		Findings: findings,
		Summary:  types.Summarize(findings),
	}
}
