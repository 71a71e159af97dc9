// Package fetcher retrieves the openFDA dataset snapshot and per-device
// summary PDFs over HTTP, with per-host rate limiting, retry with backoff,
// and an explicit distinction between transient failures (retryable) and
// confirmed-not-published documents (terminal).
package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/devtree-data/devtree/internal/resilience"
)

// ErrNotFound marks a document the FDA confirms it does not publish.
// Terminal: callers record it and never retry.
var ErrNotFound = errors.New("document not published")

// IsNotFoundText reports whether a flattened error string carries
// ErrNotFound. Stage summaries store failures as text, so error
// identity has to survive as a substring.
func IsNotFoundText(s string) bool {
	return strings.Contains(s, ErrNotFound.Error())
}

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	Retry      resilience.RetryConfig
}

// HTTPFetcher wraps net/http with per-host rate limiting and retry.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

// defaultRateLimiters returns the per-host limiters for the FDA endpoints.
// accessdata.fda.gov throttles aggressively, so the PDF host gets a low
// sustained rate with no burst headroom.
func defaultRateLimiters(perSec float64) map[string]*rate.Limiter {
	if perSec <= 0 {
		perSec = 1
	}
	return map[string]*rate.Limiter{
		"www.accessdata.fda.gov": rate.NewLimiter(rate.Limit(perSec), 1),
		"download.open.fda.gov":  rate.NewLimiter(2, 2),
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "devtree/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: defaultRateLimiters(opts.RatePerSec),
		fallback: rate.NewLimiter(5, 5),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return f.fallback
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return f.fallback
}

// Get fetches rawURL and returns the body. 404 responses return
// ErrNotFound wrapped as terminal; 429/5xx and network failures are
// wrapped as transient and retried with backoff.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	cfg := f.opts.Retry
	cfg.OnRetry = resilience.RetryLogger("fda", "get")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, resilience.NewTransientError(err, 0)
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, resilience.NewTerminalError(eris.Wrapf(ErrNotFound, "404 from %s", rawURL))
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			zap.L().Warn("fetcher: transient status, will retry",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		default:
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		}
	})
}

// GetToFile fetches rawURL and writes the body atomically to path.
// Returns the byte count written.
func (f *HTTPFetcher) GetToFile(ctx context.Context, rawURL, path string) (int64, error) {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	if err := writeFileAtomic(path, body); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "fetcher: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "fetcher: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "fetcher: rename into %s", path)
	}
	return nil
}
