// Package probe issues bounded-time reachability checks against candidate
// endpoints. Probe targets are untrusted third-party URLs, so the client skips
// certificate verification and caps redirects.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"servicewatch/internal/urlutil"
)

// DefaultTimeout is the hard per-probe deadline measured from request start.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of a single reachability probe.
type Result struct {
	Reachable      bool
	StatusCode     *int
	ResponseTimeMs *int64
	Error          string // empty on success
}

// Prober performs lightweight HTTP checks. One Prober is shared by all
// concurrent probes; each call carries its own timeout so cancelling one
// in-flight probe never affects its siblings.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a Prober with the given per-probe timeout. A non-positive
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		timeout: timeout,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// probeMethod picks a request method that avoids transferring a response
// body: HEAD when the candidate declares GET (or nothing), OPTIONS otherwise.
func probeMethod(declared string) string {
	if declared == "" || declared == http.MethodGet {
		return http.MethodHead
	}
	return http.MethodOptions
}

// Check probes one candidate endpoint. Any status code below 500 counts as
// reachable: a 4xx means the endpoint exists and answered, only server errors
// and transport failures count against it.
func (p *Prober) Check(ctx context.Context, baseURL, routePath, method string) Result {
	if baseURL == "" {
		return Result{Error: "no application URL configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := urlutil.Join(baseURL, routePath)
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, probeMethod(method), target, nil)
	if err != nil {
		return Result{Error: err.Error()}
	}

	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{ResponseTimeMs: &elapsed, Error: "Connection timeout"}
		}
		return Result{ResponseTimeMs: &elapsed, Error: err.Error()}
	}
	resp.Body.Close()

	status := resp.StatusCode
	return Result{
		Reachable:      status < 500,
		StatusCode:     &status,
		ResponseTimeMs: &elapsed,
	}
}
