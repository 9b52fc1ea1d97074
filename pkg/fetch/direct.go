package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/metrics"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// DirectFetcher downloads a page over HTTP and decodes it to text
type DirectFetcher struct {
	retry   *RetryClient
	cfg     config.FetchConfig
	hosts   *HostLimiter
	robots  *RobotsHandler // nil when robots.txt is not consulted
	decoder Decoder
	log     *logrus.Entry
}

// NewDirectFetcher builds a direct-mode fetcher from configuration
func NewDirectFetcher(client *http.Client, cfg config.FetchConfig, hosts *HostLimiter, log *logrus.Entry) *DirectFetcher {
	log = log.WithField("mode", ModeDirect)
	retry := NewRetryClient(client, cfg, log)
	f := &DirectFetcher{
		retry:   retry,
		cfg:     cfg,
		hosts:   hosts,
		decoder: DecodeBody,
		log:     log,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsHandler(retry, cfg.UserAgent, log)
	}
	return f
}

// WithDecoder returns a copy of f that decodes bodies with d
func (f *DirectFetcher) WithDecoder(d Decoder) *DirectFetcher {
	cp := *f
	cp.decoder = d
	return &cp
}

// Fetch implements Fetcher
func (f *DirectFetcher) Fetch(ctx context.Context, u *url.URL) (string, error) {
	start := time.Now()
	html, err := f.fetch(ctx, u)
	metrics.FetchDuration.WithLabelValues(string(ModeDirect)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues(string(ModeDirect), utils.CategorizeError(err)).Inc()
	}
	return html, err
}

func (f *DirectFetcher) fetch(ctx context.Context, u *url.URL) (string, error) {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %v", utils.ErrBadURL, u)
	}
	pageLog := f.log.WithField("url", u.String())

	if f.robots != nil && !f.robots.Allowed(ctx, u) {
		return "", fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, u)
	}

	if f.hosts != nil {
		release, err := f.hosts.Acquire(ctx, u.Hostname(), f.cfg.SemaphoreAcquireTimeout)
		if err != nil {
			return "", err
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/markdown;q=0.8,text/plain;q=0.7,*/*;q=0.5")

	resp, err := f.retry.Do(ctx, req)
	if err != nil {
		drain(resp)
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	mt := mediaType(contentType)
	if !acceptedMediaType(mt) {
		return "", fmt.Errorf("%w: %s", utils.ErrUnsupportedContent, mt)
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		return "", err
	}

	text, err := f.decoder(body, contentType)
	if err != nil {
		return "", err
	}
	pageLog.WithFields(logrus.Fields{"bytes": len(body), "content_type": mt}).Debug("Fetched page")

	switch mt {
	case mediaMarkdown, "text/x-markdown":
		return markdownToHTML(text)
	case mediaPlain:
		return plainToHTML(text), nil
	}
	return text, nil
}

func (f *DirectFetcher) readBody(r io.Reader) ([]byte, error) {
	limit := f.cfg.MaxBodyBytes
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrResponseBodyRead, limit)
	}
	return body, nil
}
