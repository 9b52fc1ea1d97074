package fetch

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/config"
)

func TestArchiveTarget(t *testing.T) {
	cfg := config.ArchiveConfig{
		MirrorTemplate: "https://archive.is/newest/%s",
		Hosts:          []string{"nytimes.com"},
	}
	tests := []struct {
		raw          string
		wantArchived bool
		wantTarget   string
	}{
		{"https://www.nytimes.com/2024/01/01/world/story.html", true, "https://archive.is/newest/https://www.nytimes.com/2024/01/01/world/story.html"},
		{"https://nytimes.com/a", true, "https://archive.is/newest/https://nytimes.com/a"},
		{"https://cooking.nytimes.com/recipes/1", true, "https://archive.is/newest/https://cooking.nytimes.com/recipes/1"},
		{"https://notnytimes.com/a", false, "https://notnytimes.com/a"},
		{"https://example.com/nytimes.com", false, "https://example.com/nytimes.com"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			target, archived, err := ArchiveTarget(u, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantArchived, archived)
			assert.Equal(t, tt.wantTarget, target.String())
		})
	}
}

func TestNeedsArchive_Disabled(t *testing.T) {
	u, _ := url.Parse("https://www.nytimes.com/a")
	assert.False(t, NeedsArchive(u, config.ArchiveConfig{Hosts: []string{"nytimes.com"}}), "no mirror template")
	assert.False(t, NeedsArchive(u, config.ArchiveConfig{MirrorTemplate: "https://m/%s"}), "no hosts")
	assert.False(t, NeedsArchive(nil, config.ArchiveConfig{MirrorTemplate: "https://m/%s", Hosts: []string{"nytimes.com"}}))
}
