package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/sandbox"
	"github.com/Sriram-PR/readerview/pkg/sitefix"
)

// Registry owns exactly one Engine per extractor kind for its lifetime
type Registry struct {
	engines map[models.ExtractorKind]*Engine
	def     models.ExtractorKind
}

// NewRegistry builds one engine per kind from the extractor settings. In script
// mode every bundle is checked up front, so a missing asset fails here with
// utils.ErrAssetMissing instead of on the first request.
func NewRegistry(cfg config.ExtractorConfig, rules *sitefix.Table, log *logrus.Entry) (*Registry, error) {
	def, err := models.ParseExtractorKind(cfg.Default)
	if err != nil {
		def = models.DefaultExtractorKind
	}
	r := &Registry{engines: make(map[models.ExtractorKind]*Engine), def: def}
	opts := Options{Rules: rules, InitTimeout: cfg.InitTimeout}

	for _, kind := range models.ExtractorKinds() {
		factory, err := runtimeFactory(cfg, kind)
		if err != nil {
			return nil, err
		}
		r.engines[kind] = New(kind, factory, opts, log.WithField("component", "engine"))
	}
	return r, nil
}

// NewRegistryWith builds a registry from caller-supplied factories. Kinds
// without a factory are unavailable.
func NewRegistryWith(factories map[models.ExtractorKind]RuntimeFactory, opts Options, log *logrus.Entry) *Registry {
	r := &Registry{engines: make(map[models.ExtractorKind]*Engine), def: models.DefaultExtractorKind}
	for kind, f := range factories {
		r.engines[kind] = New(kind, f, opts, log.WithField("component", "engine"))
	}
	return r
}

func runtimeFactory(cfg config.ExtractorConfig, kind models.ExtractorKind) (RuntimeFactory, error) {
	if cfg.Sandbox == config.SandboxScript {
		if _, err := sandbox.NewScriptRuntime(kind, cfg.BundleDir); err != nil {
			return nil, err
		}
		return func() (sandbox.Runtime, error) {
			return sandbox.NewScriptRuntime(kind, cfg.BundleDir)
		}, nil
	}
	return func() (sandbox.Runtime, error) {
		return sandbox.NewNativeRuntime(kind)
	}, nil
}

// Engine returns the engine for kind; the empty kind selects the default
func (r *Registry) Engine(kind models.ExtractorKind) (*Engine, error) {
	if kind == "" {
		kind = r.def
	}
	e, ok := r.engines[kind]
	if !ok {
		return nil, fmt.Errorf("extractor %q is not available", kind)
	}
	return e, nil
}

// Default returns the configured default kind
func (r *Registry) Default() models.ExtractorKind { return r.def }

// Extract runs one extraction on the engine for kind
func (r *Registry) Extract(ctx context.Context, kind models.ExtractorKind, html string, u *url.URL) (*models.ExtractedArticle, error) {
	e, err := r.Engine(kind)
	if err != nil {
		return nil, err
	}
	return e.Extract(ctx, html, u)
}

// Warmup starts initialization of the engine for kind without waiting
func (r *Registry) Warmup(kind models.ExtractorKind) error {
	e, err := r.Engine(kind)
	if err != nil {
		return err
	}
	e.Warmup()
	return nil
}

// States reports the readiness of every engine
func (r *Registry) States() map[models.ExtractorKind]models.EngineState {
	out := make(map[models.ExtractorKind]models.EngineState, len(r.engines))
	for kind, e := range r.engines {
		out[kind] = e.State()
	}
	return out
}

// Close shuts every engine down
func (r *Registry) Close() {
	for _, e := range r.engines {
		e.Close()
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Shared returns the process-wide registry backed by the native runtimes and
// the built-in site rules. It is constructed on first use.
func Shared() *Registry {
	defaultOnce.Do(func() {
		log := logrus.NewEntry(logrus.StandardLogger())
		r, err := NewRegistry(config.ExtractorConfig{Sandbox: config.SandboxNative}, sitefix.Default(log), log)
		if err != nil {
			panic(fmt.Sprintf("engine: native registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
