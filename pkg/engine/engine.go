// Package engine wraps one sandbox per extractor kind behind a readiness
// state machine. Calls that arrive before the sandbox has loaded its
// algorithm are queued and replayed in arrival order once it is ready.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/metrics"
	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/sandbox"
	"github.com/Sriram-PR/readerview/pkg/sitefix"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// RuntimeFactory builds a fresh, unloaded runtime. It is called on every
// (re)initialization.
type RuntimeFactory func() (sandbox.Runtime, error)

// continuation runs once the engine is ready, or with the initialization error
type continuation func(sb *sandbox.Sandbox, err error)

// Engine services extraction calls for one extractor kind
type Engine struct {
	kind        models.ExtractorKind
	newRuntime  RuntimeFactory
	rules       *sitefix.Table
	initTimeout time.Duration
	log         *logrus.Entry

	mu      sync.Mutex
	state   models.EngineState
	sb      *sandbox.Sandbox
	pending []continuation
	closed  bool
}

// Options tunes an Engine
type Options struct {
	Rules       *sitefix.Table // Applied to the DOM before the algorithm runs; nil disables normalization
	InitTimeout time.Duration  // Bound on loading the algorithm; zero means no bound
}

// New creates an engine in the uninitialized state. Nothing is loaded until
// the first Extract or Warmup.
func New(kind models.ExtractorKind, factory RuntimeFactory, opts Options, log *logrus.Entry) *Engine {
	e := &Engine{
		kind:        kind,
		newRuntime:  factory,
		rules:       opts.Rules,
		initTimeout: opts.InitTimeout,
		log:         log.WithField("extractor", kind.String()),
	}
	e.publishState(models.EngineUninitialized)
	return e
}

// Kind returns the extractor kind this engine serves
func (e *Engine) Kind() models.ExtractorKind { return e.kind }

// State returns the current readiness state. An engine whose sandbox has
// terminated reports uninitialized.
func (e *Engine) State() models.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkSandboxLocked()
	return e.state
}

// Warmup starts initialization if the engine is uninitialized and returns
// immediately. It is a no-op while initializing or ready.
func (e *Engine) Warmup() {
	e.whenReady(func(*sandbox.Sandbox, error) {})
}

// Extract runs the algorithm over html. An algorithm error or a null result
// fails with utils.ErrFailedToExtract; any returned mapping becomes an
// article, possibly with every field absent.
func (e *Engine) Extract(ctx context.Context, html string, u *url.URL) (*models.ExtractedArticle, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil URL", utils.ErrBadURL)
	}
	start := time.Now()
	article, err := e.extract(ctx, html, u)
	metrics.ExtractDuration.WithLabelValues(e.kind.String()).Observe(time.Since(start).Seconds())
	metrics.ExtractionsTotal.WithLabelValues(e.kind.String(), utils.CategorizeError(err)).Inc()
	return article, err
}

type outcome struct {
	article *models.ExtractedArticle
	err     error
}

func (e *Engine) extract(ctx context.Context, html string, u *url.URL) (*models.ExtractedArticle, error) {
	call := sandbox.Call{HTML: e.normalize(html, u), URL: u}
	done := make(chan outcome, 1)

	e.whenReady(func(sb *sandbox.Sandbox, err error) {
		if err != nil {
			done <- outcome{err: err}
			return
		}
		article, err := e.run(ctx, sb, call)
		done <- outcome{article: article, err: err}
	})

	select {
	case o := <-done:
		return o.article, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, sb *sandbox.Sandbox, call sandbox.Call) (*models.ExtractedArticle, error) {
	res, err := sb.Run(ctx, call)
	switch {
	case err == nil && res == nil:
		return nil, fmt.Errorf("%w: algorithm returned no result", utils.ErrFailedToExtract)
	case err == nil:
		return ArticleFromResult(res), nil
	case errors.Is(err, utils.ErrSandboxTerminated), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		e.log.WithError(err).Debug("Extraction algorithm failed")
		return nil, fmt.Errorf("%w: %v", utils.ErrFailedToExtract, err)
	}
}

// normalize applies the first matching site rule. The input is returned as-is
// when no rule matches or the markup cannot be reparsed.
func (e *Engine) normalize(html string, u *url.URL) string {
	if e.rules == nil {
		return html
	}
	if _, ok := e.rules.Match(u); !ok {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.log.WithError(err).Warn("Could not parse HTML for site normalization")
		return html
	}
	if applied := e.rules.Apply(doc, u); applied == "" {
		return html
	}
	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		e.log.WithError(err).Warn("Could not serialize normalized HTML")
		return html
	}
	return out
}

// whenReady runs k immediately when ready, otherwise queues it and makes sure
// initialization is underway.
func (e *Engine) whenReady(k continuation) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		k(nil, fmt.Errorf("%w: engine closed", utils.ErrSandboxTerminated))
		return
	}
	e.checkSandboxLocked()
	switch e.state {
	case models.EngineReady:
		sb := e.sb
		e.mu.Unlock()
		k(sb, nil)
		return
	case models.EngineInitializing:
		e.pending = append(e.pending, k)
		metrics.EnginePending.WithLabelValues(e.kind.String()).Set(float64(len(e.pending)))
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, k)
	metrics.EnginePending.WithLabelValues(e.kind.String()).Set(float64(len(e.pending)))
	e.setStateLocked(models.EngineInitializing)
	e.mu.Unlock()

	go e.initialize()
}

func (e *Engine) initialize() {
	e.log.Info("Initializing extraction engine")
	start := time.Now()

	sb, err := e.load()

	e.mu.Lock()
	queued := e.pending
	e.pending = nil
	metrics.EnginePending.WithLabelValues(e.kind.String()).Set(0)
	if err != nil || e.closed {
		e.setStateLocked(models.EngineUninitialized)
		e.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: engine closed", utils.ErrSandboxTerminated)
			sb.Close()
		}
		e.log.WithError(err).Error("Extraction engine failed to initialize")
		for _, k := range queued {
			k(nil, err)
		}
		return
	}
	e.sb = sb
	e.setStateLocked(models.EngineReady)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"duration": time.Since(start).Round(time.Millisecond),
		"queued":   len(queued),
	}).Info("Extraction engine ready")

	go e.watch(sb)
	e.drain(sb, queued)
}

// drain runs queued continuations in order. When one of them crashes the
// sandbox, the rest are requeued ahead of later arrivals.
func (e *Engine) drain(sb *sandbox.Sandbox, queued []continuation) {
	for i, k := range queued {
		if !sb.Alive() {
			e.requeue(queued[i:])
			return
		}
		k(sb, nil)
	}
}

func (e *Engine) requeue(ks []continuation) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		for _, k := range ks {
			k(nil, fmt.Errorf("%w: engine closed", utils.ErrSandboxTerminated))
		}
		return
	}
	e.checkSandboxLocked()
	if e.state == models.EngineReady {
		sb := e.sb
		e.mu.Unlock()
		e.drain(sb, ks)
		return
	}
	e.pending = append(append([]continuation{}, ks...), e.pending...)
	metrics.EnginePending.WithLabelValues(e.kind.String()).Set(float64(len(e.pending)))
	if e.state == models.EngineInitializing {
		e.mu.Unlock()
		return
	}
	e.setStateLocked(models.EngineInitializing)
	e.mu.Unlock()

	go e.initialize()
}

func (e *Engine) load() (*sandbox.Sandbox, error) {
	rt, err := e.newRuntime()
	if err != nil {
		return nil, err
	}
	sb := sandbox.Start(rt, e.log)

	ctx := context.Background()
	if e.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.initTimeout)
		defer cancel()
	}
	if err := sb.Load(ctx); err != nil {
		sb.Close()
		return nil, fmt.Errorf("load %s algorithm: %w", e.kind, err)
	}
	return sb, nil
}

// watch resets the engine when its sandbox terminates, so the next call
// re-initializes from scratch.
func (e *Engine) watch(sb *sandbox.Sandbox) {
	<-sb.Done()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkSandboxLocked()
}

// checkSandboxLocked drops a terminated sandbox and returns a ready engine
// to uninitialized.
func (e *Engine) checkSandboxLocked() {
	sb := e.sb
	if sb == nil || sb.Alive() {
		return
	}
	e.sb = nil
	if e.closed {
		return
	}
	e.setStateLocked(models.EngineUninitialized)
	metrics.EngineRestarts.WithLabelValues(e.kind.String()).Inc()
	e.log.WithError(sb.Err()).Warn("Sandbox terminated; engine will re-initialize on next use")
}

// Close terminates the sandbox. Later calls fail with utils.ErrSandboxTerminated.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	sb := e.sb
	e.mu.Unlock()
	if sb != nil {
		sb.Close()
	}
}

func (e *Engine) setStateLocked(s models.EngineState) {
	e.state = s
	e.publishState(s)
}

func (e *Engine) publishState(s models.EngineState) {
	metrics.EngineState.WithLabelValues(e.kind.String()).Set(float64(s))
}
