package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"site-auditor/pkg/config"
	"site-auditor/pkg/models"
	"site-auditor/pkg/render"
	"site-auditor/pkg/utils"
)

// Fetcher fetches one URL through the render capability with per-request
// timeout, retry with exponential backoff and jitter, and transport error
// classification. It never returns an error: every outcome, including DNS
// failures and 5xx responses, is expressed as a PageRecord so a single page
// failure cannot abort a crawl.
type Fetcher struct {
	renderer render.Renderer
	cfg      *config.Config
	seedHost string // hostname of the crawl seed, for link classification
	log      *logrus.Entry
}

// NewFetcher creates a Fetcher bound to one crawl's seed host.
func NewFetcher(renderer render.Renderer, cfg *config.Config, seedHost string, log *logrus.Entry) *Fetcher {
	return &Fetcher{renderer: renderer, cfg: cfg, seedHost: seedHost, log: log}
}

// retryable reports whether a render attempt outcome warrants another try:
// transient transport failures, 5xx, and 429. The fetch loop additionally
// caps 429 at a single retry.
func retryable(res *render.Result, err error) bool {
	if err != nil {
		// Context cancellation is terminal, everything else transport-level
		// gets retried.
		return !errors.Is(err, context.Canceled)
	}
	return res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests
}

// Fetch renders a URL and returns its PageRecord.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, depth int) *models.PageRecord {
	reqLog := f.log.WithFields(logrus.Fields{"url": rawURL, "depth": depth})

	var lastRes *render.Result
	var lastErr error

	maxRetries := f.cfg.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoffDelay(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Warn("Retrying fetch...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return f.transportRecord(rawURL, depth, ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
		lastRes, lastErr = f.renderer.Render(attemptCtx, rawURL)
		cancel()

		if lastErr == nil && !retryable(lastRes, nil) {
			return f.buildRecord(rawURL, depth, lastRes, reqLog)
		}
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) && ctx.Err() != nil {
				// The crawl deadline expired, not the page.
				return f.transportRecord(rawURL, depth, ctx.Err())
			}
			reqLog.WithField("attempt", attempt).Warnf("Render failed: %v", lastErr)
			continue
		}
		reqLog.WithFields(logrus.Fields{"attempt": attempt, "status_code": lastRes.StatusCode}).Warn("Retryable status")
		// Rate limiting gets exactly one backoff retry.
		if lastRes.StatusCode == http.StatusTooManyRequests && attempt >= 1 {
			break
		}
	}

	// All attempts exhausted.
	if lastErr != nil {
		failure := fmt.Errorf("%w: %w", utils.ErrRetryFailed, fmt.Errorf("%w: %w", utils.ErrRenderFailed, lastErr))
		reqLog.WithField("error_category", utils.CategorizeError(failure)).
			Errorf("All %d fetch attempts failed: %v", maxRetries+1, lastErr)
		return f.transportRecord(rawURL, depth, failure)
	}
	// The server kept answering 5xx/429; preserve the status so the page
	// stays visible in the report.
	reqLog.WithField("error_category", utils.CategorizeError(statusError(lastRes.StatusCode))).
		Warn("Fetch attempts exhausted, keeping final status")
	return f.buildRecord(rawURL, depth, lastRes, reqLog)
}

// statusError expresses a retryable status that survived all attempts as a
// categorizable error for logging.
func statusError(code int) error {
	sentinel := utils.ErrClientHTTPError
	if code >= 500 {
		sentinel = utils.ErrServerHTTPError
	}
	return fmt.Errorf("%w: %w: status %d %s", utils.ErrRetryFailed, sentinel, code, http.StatusText(code))
}

// backoffDelay computes initial * 2^(attempt-1) capped by the max delay,
// with +/-10% jitter to avoid retry bursts lining up.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	backoff := float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff)
	if delay <= 0 || delay > f.cfg.MaxRetryDelay {
		delay = f.cfg.MaxRetryDelay
	}
	var jitter time.Duration
	if delay > 0 {
		jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
	}
	if final := delay + jitter; final > 0 {
		return final
	}
	return 0
}

// transportRecord builds the PageRecord for a URL that never produced an
// HTTP response. StatusCode 0 marks the transport failure; the classified
// error message lands in the record's error list.
func (f *Fetcher) transportRecord(rawURL string, depth int, err error) *models.PageRecord {
	return &models.PageRecord{
		RequestedURL: rawURL,
		FinalURL:     rawURL,
		StatusCode:   0,
		Depth:        depth,
		Errors:       []string{utils.TransportMessage(rawURL, err)},
	}
}
