package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, caches and checks robots.txt per host. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
type RobotsHandler struct {
	retry     *RetryClient
	userAgent string

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // host -> parsed data, nil when unavailable

	log *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(retry *RetryClient, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		retry:     retry,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// robotsData returns the parsed robots.txt for target's host, fetching it on first use
func (rh *RobotsHandler) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host
	rh.mu.Lock()
	data, found := rh.cache[host]
	rh.mu.Unlock()
	if found {
		return data
	}

	robotsURL := &url.URL{Scheme: target.Scheme, Host: host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rh.log.WithField("robots_url", robotsURL.String())

	data = rh.fetch(ctx, robotsURL, robotsLog)
	if ctx.Err() != nil {
		// Do not cache a result caused by the caller going away.
		return data
	}
	rh.mu.Lock()
	rh.cache[host] = data
	rh.mu.Unlock()
	return data
}

func (rh *RobotsHandler) fetch(ctx context.Context, robotsURL *url.URL, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rh.userAgent)

	resp, err := rh.retry.Do(ctx, req)
	if err != nil {
		drain(resp)
		robotsLog.Debugf("robots.txt unavailable: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Errorf("Error parsing content: %v", err)
		return nil
	}
	robotsLog.Debug("Fetched and parsed robots.txt")
	return data
}

// Allowed reports whether the configured user agent may fetch target
func (rh *RobotsHandler) Allowed(ctx context.Context, target *url.URL) bool {
	data := rh.robotsData(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rh.userAgent)
}
