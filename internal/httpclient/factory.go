// Package httpclient builds the shared HTTP client every probe in a
// run goes through: bounded timeouts, pooled connections, explicit
// redirect policy.
package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finsec-lab/apiaudit/internal/config"
)

// New builds the run-wide client. Every request is bounded by the
// overall timeout; header reads are bounded separately so a stalling
// target cannot hang a scan.
func New(cfg config.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.MaxRedirects > 0 {
		max := cfg.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("stopped after %d redirects", max)
			}
			return nil
		}
	}

	return client
}

// CloseBody drains and closes a response body. Unread bodies prevent
// connection reuse and leak pool slots.
func CloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
