package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/readerview/pkg/models"
)

// EnvPrefix is the prefix for environment overrides, e.g. READERVIEW_FETCH_USER_AGENT
const EnvPrefix = "READERVIEW"

// AppConfig holds the global application configuration
type AppConfig struct {
	Extractor          ExtractorConfig  `yaml:"extractor"`
	Fetch              FetchConfig      `yaml:"fetch"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty" split_words:"true"`
	Render             RenderConfig     `yaml:"render"`
	Archive            ArchiveConfig    `yaml:"archive"`
	Rules              []RuleConfig     `yaml:"rules,omitempty" ignored:"true"` // Site normalization table, first match wins
	Cache              CacheConfig      `yaml:"cache"`
	Server             ServerConfig     `yaml:"server"`
	Theme              models.Theme     `yaml:"theme"`
}

// ExtractorConfig selects and tunes the extraction engines
type ExtractorConfig struct {
	Default     string        `yaml:"default"`                                 // mercury | readability
	Sandbox     string        `yaml:"sandbox"`                                 // native | script
	BundleDir   string        `yaml:"bundle_dir,omitempty" split_words:"true"` // Script bundles for the script sandbox
	InitTimeout time.Duration `yaml:"init_timeout,omitempty" split_words:"true"`
}

// FetchConfig governs direct-mode page fetching
type FetchConfig struct {
	UserAgent               string        `yaml:"user_agent" split_words:"true"`
	MaxRetries              int           `yaml:"max_retries,omitempty" split_words:"true"`
	InitialRetryDelay       time.Duration `yaml:"initial_retry_delay,omitempty" split_words:"true"`
	MaxRetryDelay           time.Duration `yaml:"max_retry_delay,omitempty" split_words:"true"`
	MaxBodyBytes            int64         `yaml:"max_body_bytes,omitempty" split_words:"true"`
	MaxRequestsPerHost      int           `yaml:"max_requests_per_host,omitempty" split_words:"true"`
	SemaphoreAcquireTimeout time.Duration `yaml:"semaphore_acquire_timeout,omitempty" split_words:"true"`
	RespectRobots           bool          `yaml:"respect_robots,omitempty" split_words:"true"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`                                    // Overall request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty" split_words:"true"`          // Max total idle connections
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty" split_words:"true"` // Max idle connections per host
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty" split_words:"true"`       // Timeout for idle connections
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty" split_words:"true"`   // Timeout for TLS handshake
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty" split_words:"true"`          // Connection dial timeout
	MaxRedirects        int           `yaml:"max_redirects,omitempty" split_words:"true"`
}

// RenderConfig governs rendered-mode capture through a headless browser
type RenderConfig struct {
	SettleDelay       time.Duration `yaml:"settle_delay,omitempty" split_words:"true"` // Wait after load before capture
	NavigationTimeout time.Duration `yaml:"navigation_timeout,omitempty" split_words:"true"`
	BrowserBin        string        `yaml:"browser_bin,omitempty" split_words:"true"` // Empty = let the launcher find or download one
	Headful           bool          `yaml:"headful,omitempty"`
	MaxTabs           int           `yaml:"max_tabs,omitempty" split_words:"true"`
}

// ArchiveConfig lists hosts that block direct fetching and the mirror used instead
type ArchiveConfig struct {
	MirrorTemplate string   `yaml:"mirror_template" split_words:"true"` // fmt template receiving the original URL
	Hosts          []string `yaml:"hosts"`                              // Matched as host suffixes
}

// RuleConfig is one row of the site normalization table
type RuleConfig struct {
	Name            string   `yaml:"name"`
	Action          string   `yaml:"action"`                     // One of the Action* constants
	Host            string   `yaml:"host,omitempty"`             // Exact, case-insensitive host match
	URLContains     []string `yaml:"url_contains,omitempty"`     // Every substring must appear in the URL
	PathPatterns    []string `yaml:"path_patterns,omitempty"`    // Regexps; at least one must match the URL path
	RemoveSelectors []string `yaml:"remove_selectors,omitempty"` // Elements deleted by the rule
	SrcSetAttr      string   `yaml:"srcset_attr,omitempty"`      // Attribute holding the legacy source set
}

// Rule actions understood by the site normalization table
const (
	ActionPictureSrcSet            = "picture_srcset"
	ActionArchiveCleanup           = "archive_cleanup"
	ActionRemoveElements           = "remove_elements"
	ActionStripConditionalComments = "strip_conditional_comments"
)

// CacheConfig governs the in-memory page cache; nothing outlives the process
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// ServerConfig holds listener settings for the HTTP API
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultRules returns the built-in site normalization table
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{
			Name:   "medium-lazy-images",
			Action: ActionPictureSrcSet,
			Host:   "medium.com",
		},
		{
			Name:            "nytimes-archive-mirror",
			Action:          ActionArchiveCleanup,
			URLContains:     []string{"archive.is", "nytimes.com"},
			RemoveSelectors: []string{"#polite", "h1[data-testid='headline']"},
			SrcSetAttr:      "old-srcset",
		},
		{
			Name:        "royalroad-banners",
			Action:      ActionRemoveElements,
			URLContains: []string{"royalroad.com"},
			RemoveSelectors: []string{
				".wide-ad-container",
				".ad-container",
				".announcement-banner",
				".portlet.alert-info",
			},
		},
		{
			Name:        "campaign-archive-conditional-comments",
			Action:      ActionStripConditionalComments,
			URLContains: []string{"campaign-archive.com"},
		},
	}
}

// Load reads a YAML config file (optional when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*AppConfig, []string, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, nil, fmt.Errorf("environment overrides: %w", err)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// Default returns a validated configuration without reading files or the environment
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Validate()
	return cfg
}
