package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/models"
)

const fieldNotesHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Field Notes on Tidal Pools</title>
  <meta name="author" content="Ada Lovelace">
  <meta property="article:published_time" content="2024-03-05T10:00:00Z">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/about">About</a></nav>
  <article>
    <h1>Field Notes on Tidal Pools</h1>
    <p>Tidal pools are rocky depressions that hold seawater when the tide goes out. They are home to anemones, sea stars, crabs, and a remarkable range of algae that tolerate sudden shifts in temperature and salinity.</p>
    <p>Visiting at low tide gives the best view. Walk carefully, because the rocks are slick and many of the organisms clinging to them are fragile. Turning over a stone should always be followed by gently putting it back exactly as it was.</p>
    <p>Over the course of a single afternoon the water in a pool can warm by several degrees, evaporate enough to grow noticeably saltier, and then be flushed completely when the tide returns. The residents have adapted to this cycle in fascinating ways.</p>
    <p>Sea stars, for instance, can pull themselves into crevices to stay damp, while barnacles simply close their plates and wait for the water to come back. Hermit crabs trade shells as they grow, sometimes forming queues by size.</p>
  </article>
  <footer>Copyright 2024</footer>
</body>
</html>`

func loadNative(t *testing.T, kind models.ExtractorKind) Runtime {
	t.Helper()
	rt, err := NewNativeRuntime(kind)
	require.NoError(t, err)
	require.NoError(t, rt.Load(context.Background()))
	return rt
}

func TestNewNativeRuntime_UnknownKind(t *testing.T) {
	_, err := NewNativeRuntime(models.ExtractorKind("boilerpipe"))
	assert.Error(t, err)
}

func TestNativeRuntime_RunBeforeLoad(t *testing.T) {
	for _, kind := range models.ExtractorKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			rt, err := NewNativeRuntime(kind)
			require.NoError(t, err)
			_, err = rt.Run(context.Background(), Call{HTML: fieldNotesHTML, URL: testURL()})
			assert.Error(t, err)
		})
	}
}

func TestNativeRuntime_ExtractsArticle(t *testing.T) {
	for _, kind := range models.ExtractorKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			rt := loadNative(t, kind)
			res, err := rt.Run(context.Background(), Call{HTML: fieldNotesHTML, URL: testURL()})
			require.NoError(t, err)
			require.NotNil(t, res)

			content, ok := res[KeyContent].(string)
			require.True(t, ok, "content should be a string")
			assert.Contains(t, content, "rocky depressions")
			assert.NotContains(t, content, "Copyright 2024")

			title, _ := res[KeyTitle].(string)
			assert.Contains(t, title, "Tidal Pools")

			if kind == models.KindReadability {
				assert.Equal(t, "Ada Lovelace", res[KeyAuthor])
			}
		})
	}
}

func TestNativeRuntime_PublishedTime(t *testing.T) {
	rt := loadNative(t, models.KindReadability)
	res, err := rt.Run(context.Background(), Call{HTML: fieldNotesHTML, URL: testURL()})
	require.NoError(t, err)

	published, ok := res[KeyDatePublished].(time.Time)
	require.True(t, ok, "datePublished should be a time.Time")
	assert.True(t, published.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))
}

func TestNativeRuntime_CancelledContext(t *testing.T) {
	rt := loadNative(t, models.KindMercury)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.Run(ctx, Call{HTML: fieldNotesHTML, URL: testURL()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDistinctExcerpt(t *testing.T) {
	tests := []struct {
		name    string
		excerpt string
		text    string
		want    string
	}{
		{"distinct", "A short summary.", "A short summary. And much more text.", "A short summary."},
		{"same as text", "Only line.", "Only line.", ""},
		{"same ignoring whitespace", "Only  line.\n", " Only line. ", ""},
		{"blank", "   ", "anything", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, distinctExcerpt(tt.excerpt, tt.text))
		})
	}
}

func TestNativeRuntime_InsideSandbox(t *testing.T) {
	rt, err := NewNativeRuntime(models.KindReadability)
	require.NoError(t, err)
	s := Start(rt, testLogger())
	t.Cleanup(s.Close)

	require.NoError(t, s.Load(context.Background()))
	res, err := s.Run(context.Background(), Call{HTML: fieldNotesHTML, URL: testURL()})
	require.NoError(t, err)
	assert.True(t, strings.Contains(res[KeyContent].(string), "Hermit crabs"))
}
