// Package auth resolves the access token a run authenticates with:
// an explicit bearer argument, an environment-provided token, or a
// client-credentials exchange against the target's token endpoint.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/finsec-lab/apiaudit/internal/config"
	"github.com/finsec-lab/apiaudit/internal/executor"
	"github.com/finsec-lab/apiaudit/internal/logger"
)

// ErrNoToken means every resolution source was exhausted. This is one
// of the run's two fatal conditions.
var ErrNoToken = errors.New("no valid token found: provide --auth 'bearer:TOKEN', the BANK_TOKEN environment variable, or --client-id/--client-secret")

const bearerPrefix = "bearer:"

// EnvTokenVars are checked in order when no bearer argument is given.
var EnvTokenVars = []string{"BANK_TOKEN", "APIAUDIT_TOKEN"}

type TokenSource struct {
	exec    *executor.Executor
	log     *logger.Logger
	baseURL string
	cfg     config.AuthConfig
	getenv  func(string) string
}

func NewTokenSource(exec *executor.Executor, log *logger.Logger, baseURL string, cfg config.AuthConfig) *TokenSource {
	return &TokenSource{
		exec:    exec,
		log:     log,
		baseURL: baseURL,
		cfg:     cfg,
		getenv:  os.Getenv,
	}
}

// WithEnvLookup overrides environment access, for tests.
func (t *TokenSource) WithEnvLookup(getenv func(string) string) *TokenSource {
	t.getenv = getenv
	return t
}

// Resolve walks the precedence chain: bearer argument, environment,
// client-credentials exchange. First usable token wins.
func (t *TokenSource) Resolve(ctx context.Context) (string, error) {
	if arg := strings.TrimSpace(t.cfg.BearerArg); arg != "" {
		if strings.HasPrefix(strings.ToLower(arg), bearerPrefix) {
			token := CleanToken(arg[len(bearerPrefix):])
			if token != "" {
				t.log.Infow("Access token resolved from argument", "length", len(token))
				return token, nil
			}
			t.log.Warnw("Bearer token is empty after 'bearer:' prefix")
		} else {
			t.log.Warnw("Auth argument should start with 'bearer:'", "prefix", truncate(arg, 20))
		}
	}

	for _, name := range EnvTokenVars {
		if env := t.getenv(name); strings.TrimSpace(env) != "" {
			token := CleanToken(env)
			t.log.Infow("Access token resolved from environment", "var", name, "length", len(token))
			return token, nil
		}
	}

	if t.cfg.ClientID == "" || t.cfg.ClientSecret == "" {
		return "", ErrNoToken
	}
	return t.exchange(ctx)
}

// exchange performs the client-credentials flow: an empty-body POST to
// the token endpoint with credentials in the query string, expecting a
// JSON response carrying access_token.
func (t *TokenSource) exchange(ctx context.Context) (string, error) {
	t.log.Infow("Fetching token via client credentials")
	endpoint := fmt.Sprintf("%s/auth/bank-token?client_id=%s&client_secret=%s",
		t.baseURL, url.QueryEscape(t.cfg.ClientID), url.QueryEscape(t.cfg.ClientSecret))

	resp, err := t.exec.PostJSON(ctx, endpoint, nil, nil)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if resp.Status < 200 || resp.Status > 299 {
		return "", fmt.Errorf("token exchange failed: status %d: %s", resp.Status, truncate(resp.Body, 200))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		return "", fmt.Errorf("token exchange: decode response: %w", err)
	}
	token := CleanToken(payload.AccessToken)
	if token == "" {
		return "", fmt.Errorf("token exchange: response has no access_token: %s", truncate(resp.Body, 200))
	}

	t.log.Infow("Access token received", "length", len(token))
	return token, nil
}

// Validate probes a protected resource with the token. Advisory only:
// a false result records a finding upstream, it never aborts the run.
func (t *TokenSource) Validate(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		return false
	}
	resp, err := t.exec.Get(ctx, t.baseURL+"/accounts", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return false
	}
	return resp.Status != 401 && resp.Status != 403
}

// CleanToken strips line breaks and tabs that sneak in via copy-paste
// or environment files.
func CleanToken(token string) string {
	r := strings.NewReplacer("\r", "", "\n", "", "\t", "")
	return strings.TrimSpace(r.Replace(token))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
