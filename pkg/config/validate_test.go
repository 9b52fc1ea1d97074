package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	cfg := AppConfig{} // Zero value
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "mercury", cfg.Extractor.Default)
	assert.Equal(t, SandboxNative, cfg.Extractor.Sandbox)
	assert.Equal(t, 30*time.Second, cfg.Extractor.InitTimeout)

	assert.Equal(t, DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.InitialRetryDelay)
	assert.Equal(t, 5*time.Second, cfg.Fetch.MaxRetryDelay)
	assert.Equal(t, int64(20<<20), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, 4, cfg.Fetch.MaxRequestsPerHost)

	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 10, cfg.HTTPClientSettings.MaxRedirects)

	assert.Equal(t, time.Second, cfg.Render.SettleDelay)
	assert.Equal(t, 2, cfg.Render.MaxTabs)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, models.DefaultTheme(), cfg.Theme)
	assert.False(t, cfg.Cache.Enabled)
}

func TestAppConfig_Validate_Warnings(t *testing.T) {
	cfg := AppConfig{
		Extractor: ExtractorConfig{Default: "boilerpipe"},
		Fetch: FetchConfig{
			MaxRetries:        -1,
			InitialRetryDelay: 10 * time.Second,
			MaxRetryDelay:     time.Second,
			MaxBodyBytes:      -5,
		},
		Cache: CacheConfig{Enabled: true, TTL: -time.Second},
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.True(t, containsWarning(warnings, "unknown extractor"))
	assert.True(t, containsWarning(warnings, "max_retries cannot be negative"))
	assert.True(t, containsWarning(warnings, "initial_retry_delay"))
	assert.True(t, containsWarning(warnings, "max_body_bytes cannot be negative"))
	assert.True(t, containsWarning(warnings, "cache.ttl cannot be negative"))

	assert.Equal(t, "mercury", cfg.Extractor.Default)
	assert.Equal(t, time.Second, cfg.Fetch.InitialRetryDelay)
	assert.False(t, cfg.Cache.Enabled)
}

func TestAppConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want string
	}{
		{
			name: "UnknownSandbox",
			cfg:  AppConfig{Extractor: ExtractorConfig{Sandbox: "wasm"}},
			want: "extractor.sandbox",
		},
		{
			name: "ScriptSandboxWithoutBundles",
			cfg:  AppConfig{Extractor: ExtractorConfig{Sandbox: "script"}},
			want: "bundle_dir",
		},
		{
			name: "MirrorTemplateWithoutPlaceholder",
			cfg:  AppConfig{Archive: ArchiveConfig{MirrorTemplate: "https://archive.is/newest/"}},
			want: "mirror_template",
		},
		{
			name: "RuleWithoutMatcher",
			cfg:  AppConfig{Rules: []RuleConfig{{Name: "r", Action: ActionPictureSrcSet}}},
			want: "needs host or url_contains",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, utils.ErrConfigValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRuleConfig_Validate(t *testing.T) {
	t.Run("ArchiveCleanupDefaultsSrcSetAttr", func(t *testing.T) {
		r := RuleConfig{Name: "a", Action: ActionArchiveCleanup, URLContains: []string{"archive"}}
		require.NoError(t, r.Validate())
		assert.Equal(t, "srcset", r.SrcSetAttr)
	})
	t.Run("HostLowercased", func(t *testing.T) {
		r := RuleConfig{Name: "m", Action: ActionPictureSrcSet, Host: "Medium.COM"}
		require.NoError(t, r.Validate())
		assert.Equal(t, "medium.com", r.Host)
	})
	t.Run("RemoveElementsNeedsSelectors", func(t *testing.T) {
		r := RuleConfig{Name: "x", Action: ActionRemoveElements, Host: "a.com"}
		assert.Error(t, r.Validate())
	})
	t.Run("MissingName", func(t *testing.T) {
		r := RuleConfig{Action: ActionPictureSrcSet, Host: "a.com"}
		assert.Error(t, r.Validate())
	})
	t.Run("PathPatternsAloneAreEnough", func(t *testing.T) {
		r := RuleConfig{Name: "p", Action: ActionStripConditionalComments, PathPatterns: []string{`^/live/`}}
		assert.NoError(t, r.Validate())
	})
	t.Run("InvalidPathPattern", func(t *testing.T) {
		r := RuleConfig{Name: "p", Action: ActionStripConditionalComments, PathPatterns: []string{`[oops`}}
		assert.ErrorIs(t, r.Validate(), utils.ErrConfigValidation)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, "mercury", cfg.Extractor.Default)
	assert.NotEmpty(t, cfg.Rules)
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
