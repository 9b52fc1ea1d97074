// Package reader is the top-level pipeline: fetch a page, extract the
// article, merge it with page metadata and render the reader document.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/digest"
	"github.com/Sriram-PR/readerview/pkg/engine"
	"github.com/Sriram-PR/readerview/pkg/fetch"
	"github.com/Sriram-PR/readerview/pkg/log"
	"github.com/Sriram-PR/readerview/pkg/metadata"
	"github.com/Sriram-PR/readerview/pkg/metrics"
	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/render"
	"github.com/Sriram-PR/readerview/pkg/sitefix"
	"github.com/Sriram-PR/readerview/pkg/storage"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Extractor runs extractions on per-kind engines. *engine.Registry implements it.
type Extractor interface {
	Extract(ctx context.Context, kind models.ExtractorKind, html string, u *url.URL) (*models.ExtractedArticle, error)
	Warmup(kind models.ExtractorKind) error
	Default() models.ExtractorKind
	States() map[models.ExtractorKind]models.EngineState
	Close()
}

// Deps are the collaborators of a Service. Direct and Extractor are required.
type Deps struct {
	Extractor Extractor
	Direct    fetch.Fetcher
	Rendered  fetch.Fetcher     // nil disables WithWebView
	Original  fetch.Fetcher     // Fetches the original page on the archive path; Direct when nil
	Cache     storage.PageCache // nil disables caching
	Sink      log.Logger        // log.Current() when nil
}

// Service is safe for concurrent use
type Service struct {
	cfg  *config.AppConfig
	deps Deps
	log  *logrus.Entry

	digestOnce sync.Once
	digester   *digest.Digester
	digestErr  error

	closers  []func() error
	maintain func(ctx context.Context)
}

// New builds a Service and all of its collaborators from configuration
func New(cfg *config.AppConfig, entry *logrus.Entry) (*Service, error) {
	rules, err := sitefix.FromConfig(cfg.Rules, entry.WithField("component", "sitefix"))
	if err != nil {
		return nil, err
	}
	registry, err := engine.NewRegistry(cfg.Extractor, rules, entry)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, entry)
	hosts := fetch.NewHostLimiter(cfg.Fetch.MaxRequestsPerHost, entry.WithField("component", "hosts"))
	direct := fetch.NewDirectFetcher(client, cfg.Fetch, hosts, entry)
	rendered := fetch.NewRenderedFetcher(cfg.Render, entry)

	deps := Deps{
		Extractor: registry,
		Direct:    direct,
		Rendered:  rendered,
		Original:  direct.WithDecoder(fetch.DecodeUTF8First),
		Sink:      log.NewLogger(entry),
	}
	closers := []func() error{rendered.Close}
	if cfg.Cache.Enabled {
		store, err := storage.NewBadgerStore(cfg.Cache.TTL, entry)
		if err != nil {
			registry.Close()
			return nil, err
		}
		deps.Cache = store
	}

	s := NewWith(cfg, deps, entry)
	s.closers = closers
	s.maintain = func(ctx context.Context) {
		go hosts.RunEviction(ctx, 0)
		if deps.Cache != nil {
			go deps.Cache.RunGC(ctx, 0)
		}
	}
	return s, nil
}

// NewWith builds a Service from explicit collaborators
func NewWith(cfg *config.AppConfig, deps Deps, entry *logrus.Entry) *Service {
	if deps.Original == nil {
		deps.Original = deps.Direct
	}
	if deps.Sink == nil {
		deps.Sink = log.Current()
	}
	return &Service{cfg: cfg, deps: deps, log: entry.WithField("component", "reader")}
}

// Start runs background upkeep (idle host eviction, cache GC) until ctx is done
func (s *Service) Start(ctx context.Context) {
	if s.maintain != nil {
		s.maintain(ctx)
	}
}

// FetchAndExtract fetches rawURL, extracts its article and renders the reader
// document. The result is complete or the call fails; metadata problems only
// leave metadata fields absent.
func (s *Service) FetchAndExtract(ctx context.Context, rawURL string, opts ...Option) (*models.FetchAndExtractionResult, error) {
	o := collect(opts)
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	kind := o.kind
	if kind == "" {
		kind = s.deps.Extractor.Default()
	}
	reqLog := s.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"url":        u.String(),
		"extractor":  kind,
	})

	if err := s.deps.Extractor.Warmup(kind); err != nil {
		return nil, err
	}

	res, err := s.fetchAndExtract(ctx, u, kind, o, reqLog)
	if err != nil {
		reqLog.WithField("error_category", utils.CategorizeError(err)).Debug("Fetch and extract failed")
		s.deps.Sink.Error(fmt.Sprintf("reader: %s: %v", u, err))
		return nil, err
	}
	s.deps.Sink.Info(fmt.Sprintf("reader: extracted %q from %s", res.Title(), u))
	return res, nil
}

func (s *Service) fetchAndExtract(ctx context.Context, u *url.URL, kind models.ExtractorKind, o options, reqLog *logrus.Entry) (*models.FetchAndExtractionResult, error) {
	base := &url.URL{Scheme: u.Scheme, Host: u.Host}

	target, archived, err := fetch.ArchiveTarget(u, s.cfg.Archive)
	if err != nil {
		return nil, err
	}
	if archived {
		reqLog = reqLog.WithField("archive_target", target.String())
		reqLog.Debug("Fetching through archive mirror")
	}

	mode := fetch.ModeFor(o.webView)
	fetcher, err := s.fetcher(mode)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	html, err := s.cachedFetch(ctx, fetcher, string(mode), target, reqLog)
	if err != nil {
		return nil, err
	}
	reqLog.WithField("fetch_ms", time.Since(start).Milliseconds()).Debug("Page fetched")

	var (
		article *models.ExtractedArticle
		md      *models.SiteMetadata
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		article, err = s.deps.Extractor.Extract(gctx, kind, html, target)
		return err
	})
	if archived {
		// The mirror's hero image is a screenshot; read metadata from the original page.
		g.Go(func() error {
			md = s.originalMetadata(gctx, u, base, reqLog)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if article.Content == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrMissingExtractionData, u)
	}
	switch {
	case !archived:
		md = s.pageMetadata(html, base, reqLog)
	case md == nil:
		// Only the mirror's title still describes the original page.
		if mm := s.pageMetadata(html, base, reqLog); mm != nil && mm.Title != nil {
			md = &models.SiteMetadata{Title: mm.Title}
		}
	}

	res := &models.FetchAndExtractionResult{
		Metadata:  md,
		Extracted: *article,
		BaseURL:   base,
	}
	in := render.Input{
		Title:    res.Title(),
		BodyHTML: *article.Content,
		BaseURL:  base,
		Author:   article.Author,
		Date:     metadata.PublishedOr(article.DatePublished, md),
		Theme:    s.theme(o),
	}
	if md != nil {
		in.HeroImage = md.HeroImage
		in.SiteName = md.SiteName
	}
	if o.exitButton {
		in.ExitURL = u
	}
	res.StyledHTML, err = render.Wrap(in)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) fetcher(mode fetch.Mode) (fetch.Fetcher, error) {
	if mode == fetch.ModeRendered {
		if s.deps.Rendered == nil {
			return nil, fmt.Errorf("%w: rendered fetching is not available", utils.ErrNavigation)
		}
		return s.deps.Rendered, nil
	}
	return s.deps.Direct, nil
}

// cachedFetch consults the page cache before fetching target. Cache errors
// are logged and otherwise ignored.
func (s *Service) cachedFetch(ctx context.Context, f fetch.Fetcher, mode string, target *url.URL, reqLog *logrus.Entry) (string, error) {
	if s.deps.Cache == nil {
		return f.Fetch(ctx, target)
	}
	key := storage.Key(mode, target.String())
	if body, ok, err := s.deps.Cache.Get(key); err != nil {
		reqLog.WithError(err).Warn("Page cache read failed")
	} else if ok {
		metrics.CacheHits.Inc()
		reqLog.Debug("Page cache hit")
		return body, nil
	}

	body, err := f.Fetch(ctx, target)
	if err != nil {
		return "", err
	}
	if err := s.deps.Cache.Put(key, body); err != nil {
		reqLog.WithError(err).Warn("Page cache write failed")
	}
	return body, nil
}

func (s *Service) originalMetadata(ctx context.Context, u, base *url.URL, reqLog *logrus.Entry) *models.SiteMetadata {
	html, err := s.cachedFetch(ctx, s.deps.Original, "original", u, reqLog)
	if err != nil {
		reqLog.WithError(err).Debug("Original page fetch for metadata failed")
		return nil
	}
	return s.pageMetadata(html, base, reqLog)
}

func (s *Service) pageMetadata(html string, base *url.URL, reqLog *logrus.Entry) *models.SiteMetadata {
	md, err := metadata.Extract(html, base)
	if err != nil {
		reqLog.WithError(err).Debug("Metadata extraction failed")
		return nil
	}
	return md
}

func (s *Service) theme(o options) models.Theme {
	if o.theme != nil {
		return *o.theme
	}
	if s.cfg != nil {
		return s.cfg.Theme
	}
	return models.DefaultTheme()
}

// ExtractArticleContent extracts the article from html the caller already has.
// The empty kind selects the default engine.
func (s *Service) ExtractArticleContent(ctx context.Context, rawURL, html string, kind models.ExtractorKind) (*models.ExtractedArticle, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = s.deps.Extractor.Default()
	}
	article, err := s.deps.Extractor.Extract(ctx, kind, html, u)
	if err != nil {
		s.deps.Sink.Error(fmt.Sprintf("reader: extract %s: %v", u, err))
		return nil, err
	}
	return article, nil
}

// Warmup starts engine initialization for kind and returns immediately
func (s *Service) Warmup(kind models.ExtractorKind) error {
	if kind == "" {
		kind = s.deps.Extractor.Default()
	}
	return s.deps.Extractor.Warmup(kind)
}

// States reports the readiness of each engine
func (s *Service) States() map[models.ExtractorKind]models.EngineState {
	return s.deps.Extractor.States()
}

// Digest converts the extracted content of res to markdown with an outline,
// a token count and chunks
func (s *Service) Digest(res *models.FetchAndExtractionResult) (*models.Digest, error) {
	if res == nil || res.Extracted.Content == nil {
		return nil, utils.ErrMissingExtractionData
	}
	s.digestOnce.Do(func() {
		s.digester, s.digestErr = digest.Shared()
	})
	if s.digestErr != nil {
		return nil, s.digestErr
	}
	return s.digester.Build(*res.Extracted.Content, res.BaseURL)
}

// Close releases engines, the browser and the page cache
func (s *Service) Close() error {
	s.deps.Extractor.Close()
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	if s.deps.Cache != nil {
		errs = append(errs, s.deps.Cache.Close())
	}
	return errors.Join(errs...)
}

func parseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrBadURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", utils.ErrBadURL, raw)
	}
	return u, nil
}
