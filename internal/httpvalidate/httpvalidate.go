// Package httpvalidate implements voyager's URL liveness checks: a
// HEAD-with-GET-fallback probe, retried with backoff and fanned out
// across a bounded worker pool.
package httpvalidate

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voyager-vpm/voyager/internal/retry"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
	maxRedirects          = 10
)

// Target is one URL to validate, tagged with the package id and
// version it belongs to so invalid URLs can be reported back.
type Target struct {
	PackageID string
	Version   string
	URL       string
}

// Result summarizes a batch URL validation: how many targets were
// checked, how many passed, and which ones failed.
type Result struct {
	Total   int
	Valid   int
	Invalid []Target
}

// Checker is voyager's URL liveness capability.
type Checker interface {
	// CheckURL reports whether url responds successfully, retrying up
	// to maxRetries times on transient failures.
	CheckURL(ctx context.Context, url string, maxRetries int) bool
	// ValidateAll checks every target concurrently, bounded by
	// maxConcurrent in-flight checks.
	ValidateAll(ctx context.Context, targets []Target, maxConcurrent int, maxRetries int) Result
}

type client struct {
	http    *http.Client
	backoff func(attempt int) time.Duration
}

// New builds an HTTP liveness-check client with voyager's redirect
// limit and connect/request timeouts.
func New() Checker {
	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{Timeout: defaultConnectTimeout}).DialContext

	return &client{
		http: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		backoff: retry.BackoffDelay,
	}
}

func shouldFallbackToGet(status int) bool {
	return status == http.StatusForbidden ||
		status == http.StatusMethodNotAllowed ||
		status == http.StatusNotImplemented
}

// checkWithGet re-checks url with a range-limited GET after a HEAD
// fallback status. It returns (result, retryable): retryable is true
// when the caller should continue its retry loop instead of deciding.
func (c *client) checkWithGet(req *http.Request) (result bool, retryable bool) {
	getReq := req.Clone(req.Context())
	getReq.Method = http.MethodGet
	getReq.Header.Set("Range", "bytes=0-0")

	resp, err := c.http.Do(getReq)
	if err != nil {
		return false, true
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, false
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, false
	default:
		return false, true
	}
}

// CheckURL probes url with HEAD, retried up to maxRetries times with
// exponential backoff. Hosts that reject HEAD fall back to a
// range-limited GET. 4xx responses other than 429 fail immediately.
func (c *client) CheckURL(ctx context.Context, url string, maxRetries int) bool {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(c.backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}

		resp, err := c.http.Do(req)
		if err != nil {
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status >= 200 && status < 300 {
			return true
		}

		if shouldFallbackToGet(status) {
			result, retryable := c.checkWithGet(req)
			if retryable {
				continue
			}
			return result
		}

		if status == http.StatusTooManyRequests {
			continue
		}

		if status >= 400 && status < 500 {
			return false
		}
	}
	return false
}

// ValidateAll checks every target concurrently, bounded by
// maxConcurrent in-flight checks.
func (c *client) ValidateAll(ctx context.Context, targets []Target, maxConcurrent int, maxRetries int) Result {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var mu sync.Mutex
	var invalid []Target

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			if !c.CheckURL(ctx, target.URL, maxRetries) {
				mu.Lock()
				invalid = append(invalid, target)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	return Result{
		Total:   len(targets),
		Valid:   len(targets) - len(invalid),
		Invalid: invalid,
	}
}
