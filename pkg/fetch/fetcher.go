package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Fetcher resolves a page URL to its HTML
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (string, error)
}

// Mode names a fetch strategy in logs, metrics and cache keys
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeRendered Mode = "rendered"
)

// ModeFor maps the webview flag to a fetch mode
func ModeFor(useWebView bool) Mode {
	if useWebView {
		return ModeRendered
	}
	return ModeDirect
}

// RetryClient issues HTTP requests with exponential backoff and jitter on
// transient failures (network errors, 5xx, 429).
type RetryClient struct {
	client *http.Client
	cfg    config.FetchConfig
	log    *logrus.Entry
}

// NewRetryClient wraps client with the retry policy from cfg
func NewRetryClient(client *http.Client, cfg config.FetchConfig, log *logrus.Entry) *RetryClient {
	return &RetryClient{client: client, cfg: cfg, log: log}
}

func drain(resp *http.Response) {
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// backoff returns the jittered delay before retry number attempt (1-based)
func (c *RetryClient) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(c.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > c.cfg.MaxRetryDelay {
		delay = c.cfg.MaxRetryDelay
	}
	// +/- 10%
	var jitter time.Duration
	if delay/5 > 0 {
		jitter = time.Duration(rand.Int63n(int64(delay/5))) - delay/10
	}
	if d := delay + jitter; d > 0 {
		return d
	}
	return 0
}

// Do performs req under ctx, retrying transient failures. On success the
// caller owns the response body. A 4xx (other than 429) or other non-2xx
// status returns the response together with a categorized error; the caller
// must close its body.
func (c *RetryClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := c.log.WithField("url", req.URL.String())
	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: after error: %w", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 {
			delay := c.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, err := c.client.Do(req.WithContext(ctx))
		if err != nil {
			drain(resp)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if errors.Is(err, errRedirectLimit) {
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", err)
			lastErr = err
			continue
		}

		status := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": status, "attempt": attempt})
		switch {
		case status >= 200 && status < 300:
			resLog.Debug("Fetched")
			return resp, nil
		case status >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, status, resp.Status)
			drain(resp)
			continue
		case status == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, status, resp.Status)
			drain(resp)
			continue
		case status >= 400:
			resLog.Warn("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, status, resp.Status)
		default:
			resLog.Warnf("Non-retryable status: %d", status)
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, status, resp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
