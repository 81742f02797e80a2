// Package executor dispatches the engine's HTTP probes through one
// shared client, applying the operator's extra headers to every request
// and logging each call through the structured logger.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finsec-lab/apiaudit/internal/httpclient"
	"github.com/finsec-lab/apiaudit/internal/logger"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 5 << 20

// Response is the materialized result of one probe: once returned, the
// network resources behind it are already released.
type Response struct {
	Status int
	Header http.Header
	Body   string
}

func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

type Executor struct {
	client       *http.Client
	log          *logger.Logger
	verbose      bool
	extraHeaders [][2]string
}

// New builds an executor. extraHeaders take "Name: Value" strings;
// malformed entries are dropped.
func New(client *http.Client, log *logger.Logger, verbose bool, extraHeaders []string) *Executor {
	return &Executor{
		client:       client,
		log:          log,
		verbose:      verbose,
		extraHeaders: ParseHeaders(extraHeaders),
	}
}

// ParseHeaders splits "Name: Value" strings on the first colon,
// trimming both sides and dropping entries with a blank name or value.
func ParseHeaders(raw []string) [][2]string {
	var out [][2]string
	for _, h := range raw {
		idx := strings.Index(h, ":")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(h[:idx])
		val := strings.TrimSpace(h[idx+1:])
		if name == "" || val == "" {
			continue
		}
		out = append(out, [2]string{name, val})
	}
	return out
}

func (e *Executor) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return e.Do(ctx, http.MethodGet, url, nil, headers)
}

func (e *Executor) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*Response, error) {
	return e.Do(ctx, http.MethodPost, url, body, headers)
}

// Do performs one request. A non-nil body is JSON-encoded; POST and PUT
// requests with a nil body send an empty JSON object.
func (e *Executor) Do(ctx context.Context, method, url string, body any, headers map[string]string) (*Response, error) {
	var reader io.Reader
	contentType := ""
	if method == http.MethodPost || method == http.MethodPut {
		payload := []byte("{}")
		if body != nil {
			var err error
			payload, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
		if e.verbose {
			e.log.Debugw("Request body", "method", method, "url", url, "body", string(payload))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, h := range e.extraHeaders {
		req.Header.Set(h[0], h[1])
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		if e.log != nil {
			e.log.LogError(ctx, err, "http_request", "method", method, "url", url)
		}
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if e.log != nil {
		e.log.LogHTTPRequest(ctx, method, url, resp.StatusCode, time.Since(start))
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   string(raw),
	}, nil
}
