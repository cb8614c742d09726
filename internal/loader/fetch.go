package loader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/honorwall/roster-cli/internal/resilience"
)

// FetchOptions configures remote roster fetches.
type FetchOptions struct {
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables throttling
	Retry         resilience.RetryConfig
}

// Fetcher downloads roster files over HTTP with retry and rate limiting.
// Legacy rosters are often re-scraped on a schedule, so polite fetching
// matters more than throughput here.
type Fetcher struct {
	client  *http.Client
	opts    FetchOptions
	limiter *rate.Limiter
}

// NewFetcher creates a Fetcher with defaults applied.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "roster-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	f := &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
	if opts.RatePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return f
}

// FetchFile downloads url into dir and returns the local path. Transient
// HTTP failures retry with backoff; 4xx responses (other than 408/429) fail
// immediately.
func (f *Fetcher) FetchFile(ctx context.Context, url, dir string) (string, error) {
	log := zap.L().With(zap.String("component", "fetcher"))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "fetch: create dir %s", dir)
	}
	dest := filepath.Join(dir, filepath.Base(url))

	err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "fetch: rate limit wait")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return eris.Wrap(err, "fetch: build request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return eris.Wrapf(err, "fetch: GET %s", url)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("fetch: GET %s: status %d", url, resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		out, err := os.Create(dest)
		if err != nil {
			return eris.Wrapf(err, "fetch: create %s", dest)
		}
		defer out.Close()

		n, err := io.Copy(out, resp.Body)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "fetch: copy body"), 0)
		}

		log.Info("fetched roster file",
			zap.String("url", url),
			zap.String("dest", dest),
			zap.Int64("bytes", n))
		return nil
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}
