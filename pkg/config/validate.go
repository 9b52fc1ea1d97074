package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Sandbox modes
const (
	SandboxNative = "native"
	SandboxScript = "script"
)

// DefaultUserAgent identifies direct-mode fetches
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Extractor
	kind, kerr := models.ParseExtractorKind(c.Extractor.Default)
	if kerr != nil {
		warnings = append(warnings, fmt.Sprintf("%v, defaulting to %s", kerr, models.DefaultExtractorKind))
		kind = models.DefaultExtractorKind
	}
	c.Extractor.Default = kind.String()

	switch strings.ToLower(c.Extractor.Sandbox) {
	case "":
		c.Extractor.Sandbox = SandboxNative
	case SandboxNative, SandboxScript:
		c.Extractor.Sandbox = strings.ToLower(c.Extractor.Sandbox)
	default:
		return warnings, fmt.Errorf("%w: extractor.sandbox must be %q or %q, got %q",
			utils.ErrConfigValidation, SandboxNative, SandboxScript, c.Extractor.Sandbox)
	}
	if c.Extractor.Sandbox == SandboxScript && c.Extractor.BundleDir == "" {
		return warnings, fmt.Errorf("%w: extractor.bundle_dir is required for the script sandbox", utils.ErrConfigValidation)
	}
	if c.Extractor.InitTimeout <= 0 {
		c.Extractor.InitTimeout = 30 * time.Second
	}

	warnings = append(warnings, c.validateFetch()...)
	c.validateHTTPClientSettings()
	c.validateRender()

	// Archive
	if c.Archive.MirrorTemplate == "" {
		c.Archive.MirrorTemplate = "https://archive.is/newest/%s"
	} else if !strings.Contains(c.Archive.MirrorTemplate, "%s") {
		return warnings, fmt.Errorf("%w: archive.mirror_template must contain %%s", utils.ErrConfigValidation)
	}
	if c.Archive.Hosts == nil {
		c.Archive.Hosts = []string{"nytimes.com"}
	}

	// Rules
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			return warnings, fmt.Errorf("rule #%d: %w", i+1, err)
		}
	}

	// Cache
	if c.Cache.TTL < 0 {
		warnings = append(warnings, "cache.ttl cannot be negative, disabling cache")
		c.Cache.Enabled = false
		c.Cache.TTL = 0
	}
	if c.Cache.Enabled && c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}

	c.validateTheme()

	return warnings, nil
}

func (c *AppConfig) validateFetch() (warnings []string) {
	f := &c.Fetch
	if f.UserAgent == "" {
		f.UserAgent = DefaultUserAgent
	}

	if f.MaxRetries < 0 {
		warnings = append(warnings, "fetch.max_retries cannot be negative, setting to 0")
		f.MaxRetries = 0
	}
	if f.MaxRetries == 0 && f.InitialRetryDelay == 0 {
		f.MaxRetries = 2
	}
	if f.MaxRetries > 0 {
		if f.InitialRetryDelay <= 0 {
			f.InitialRetryDelay = 500 * time.Millisecond
		}
		if f.MaxRetryDelay <= 0 {
			f.MaxRetryDelay = 5 * time.Second
		}
	}
	if f.InitialRetryDelay > f.MaxRetryDelay && f.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"fetch.initial_retry_delay (%v) > fetch.max_retry_delay (%v), using max_retry_delay for initial",
			f.InitialRetryDelay, f.MaxRetryDelay))
		f.InitialRetryDelay = f.MaxRetryDelay
	}

	if f.MaxBodyBytes < 0 {
		warnings = append(warnings, "fetch.max_body_bytes cannot be negative, using default")
		f.MaxBodyBytes = 0
	}
	if f.MaxBodyBytes == 0 {
		f.MaxBodyBytes = 20 << 20
	}
	if f.MaxRequestsPerHost <= 0 {
		f.MaxRequestsPerHost = 4
	}
	if f.SemaphoreAcquireTimeout <= 0 {
		f.SemaphoreAcquireTimeout = 30 * time.Second
	}
	return warnings
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

func (c *AppConfig) validateRender() {
	r := &c.Render
	if r.SettleDelay <= 0 {
		r.SettleDelay = time.Second
	}
	if r.NavigationTimeout <= 0 {
		r.NavigationTimeout = 45 * time.Second
	}
	if r.MaxTabs <= 0 {
		r.MaxTabs = 2
	}
}

func (c *AppConfig) validateTheme() {
	def := models.DefaultTheme()
	t := &c.Theme
	if t.Foreground == "" {
		t.Foreground = def.Foreground
	}
	if t.Background == "" {
		t.Background = def.Background
	}
	if t.Link == "" {
		t.Link = def.Link
	}
	if t.FontSize <= 0 {
		t.FontSize = def.FontSize
	}
	if t.FontFamily == "" {
		t.FontFamily = def.FontFamily
	}
}

// Validate checks one normalization rule row.
func (r *RuleConfig) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule needs a name", utils.ErrConfigValidation)
	}
	if r.Host == "" && len(r.URLContains) == 0 && len(r.PathPatterns) == 0 {
		return fmt.Errorf("%w: rule %q needs host, url_contains or path_patterns", utils.ErrConfigValidation, r.Name)
	}
	if _, err := utils.CompilePatterns(r.PathPatterns); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	r.Host = strings.ToLower(r.Host)

	switch r.Action {
	case ActionPictureSrcSet, ActionStripConditionalComments:
	case ActionArchiveCleanup:
		if r.SrcSetAttr == "" {
			r.SrcSetAttr = "srcset"
		}
	case ActionRemoveElements:
		if len(r.RemoveSelectors) == 0 {
			return fmt.Errorf("%w: rule %q has no remove_selectors", utils.ErrConfigValidation, r.Name)
		}
	default:
		return fmt.Errorf("%w: rule %q has unknown action %q", utils.ErrConfigValidation, r.Name, r.Action)
	}
	return nil
}
