// Package consent manages the interbank authorization grant some
// endpoints require before cross-party account data is served.
package consent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/finsec-lab/apiaudit/internal/executor"
	"github.com/finsec-lab/apiaudit/internal/logger"
	"github.com/finsec-lab/apiaudit/pkg/contract"
	"github.com/finsec-lab/apiaudit/pkg/types"
)

const (
	Category      = "ConsentManagement"
	requestPath   = "/account-consents/request"
	resourcePath  = "/account-consents/"
	evidenceLimit = 2000
)

// Permissions requested for every scanning grant.
var Permissions = []string{"ReadAccountsDetail", "ReadBalances", "ReadTransactions"}

type Client struct {
	exec              *executor.Executor
	log               *logger.Logger
	baseURL           string
	requestingBank    string
	interbankClientID string
	now               func() time.Time
}

func NewClient(exec *executor.Executor, log *logger.Logger, baseURL, requestingBank, interbankClientID string) *Client {
	return &Client{
		exec:              exec,
		log:               log,
		baseURL:           baseURL,
		requestingBank:    requestingBank,
		interbankClientID: interbankClientID,
		now:               time.Now,
	}
}

// WithClock overrides time for tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Create requests a grant. The returned consent ID is empty when the
// grant could not be established; the findings record the outcome
// either way. Consent absence is advisory, not fatal.
func (c *Client) Create(ctx context.Context, token string) (string, []types.Finding) {
	body := map[string]any{
		"client_id":            c.interbankClientID,
		"permissions":          Permissions,
		"reason":               "Security scanning and penetration testing",
		"requesting_bank":      c.requestingBank,
		"requesting_bank_name": "Security Scanner Team " + c.requestingBank,
		"valid_until":          c.now().Add(time.Hour).Format(time.RFC3339),
	}
	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"X-Requesting-Bank": c.requestingBank,
	}

	c.log.Infow("Creating consent", "client_id", c.interbankClientID)
	resp, err := c.exec.PostJSON(ctx, c.baseURL+requestPath, body, headers)
	if err != nil {
		return "", []types.Finding{types.NewFinding(requestPath, "POST", 0, Category,
			types.SeverityMedium, "Consent creation request failed: "+err.Error(), "")}
	}

	evidence := contract.Snippet(resp.Body, evidenceLimit)
	switch {
	case resp.Status == 200 || resp.Status == 201:
		id := ExtractConsentID(resp.Body)
		if id != "" {
			c.log.Infow("Consent created", "consent_id", id)
			return id, []types.Finding{types.NewFinding(requestPath, "POST", resp.Status, Category,
				types.SeverityInfo,
				"Consent created for security testing: "+id,
				"Client: "+c.interbankClientID)}
		}
		return "", []types.Finding{types.NewFinding(requestPath, "POST", resp.Status, Category,
			types.SeverityMedium, "Consent created but no consent_id in response", evidence)}
	case resp.Status == 401:
		return "", []types.Finding{types.NewFinding(requestPath, "POST", resp.Status, Category,
			types.SeverityHigh, "Consent creation failed - authentication required", evidence)}
	case resp.Status == 403:
		return "", []types.Finding{types.NewFinding(requestPath, "POST", resp.Status, Category,
			types.SeverityHigh, "Consent creation failed - insufficient permissions", evidence)}
	default:
		return "", []types.Finding{types.NewFinding(requestPath, "POST", resp.Status, Category,
			types.SeverityMedium, "Consent creation failed with unexpected status", evidence)}
	}
}

// ExtractConsentID tries the response shapes targets are known to use:
// consent_id, data.consentId, id.
func ExtractConsentID(body string) string {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if id, ok := payload["consent_id"].(string); ok && id != "" {
		return id
	}
	if data, ok := payload["data"].(map[string]any); ok {
		if id, ok := data["consentId"].(string); ok && id != "" {
			return id
		}
	}
	if id, ok := payload["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// Status polls the grant once. Only approved or active grants are
// usable; any failure along the way degrades to unusable, never error.
func (c *Client) Status(ctx context.Context, token, consentID string) (bool, string) {
	if strings.TrimSpace(consentID) == "" {
		return false, ""
	}

	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"X-Requesting-Bank": c.requestingBank,
	}
	resp, err := c.exec.Get(ctx, c.baseURL+resourcePath+consentID, headers)
	if err != nil || resp.Status != 200 {
		return false, ""
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		return false, ""
	}

	status := payload.Status
	usable := strings.EqualFold(status, "approved") || strings.EqualFold(status, "active")
	c.log.Infow("Consent status checked", "consent_id", consentID, "status", status, "usable", usable)
	return usable, status
}
