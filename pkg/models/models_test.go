package models

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAndExtractionResult_Title(t *testing.T) {
	tests := []struct {
		name      string
		extracted *string
		metadata  *SiteMetadata
		want      string
	}{
		{"ExtractedWins", StringPtr("Extracted"), &SiteMetadata{Title: StringPtr("Meta")}, "Extracted"},
		{"EmptyExtractedFallsBack", func() *string { s := ""; return &s }(), &SiteMetadata{Title: StringPtr("Meta")}, "Meta"},
		{"AbsentExtractedFallsBack", nil, &SiteMetadata{Title: StringPtr("Meta")}, "Meta"},
		{"NoMetadata", nil, nil, ""},
		{"MetadataWithoutTitle", nil, &SiteMetadata{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FetchAndExtractionResult{
				Extracted: ExtractedArticle{Title: tt.extracted},
				Metadata:  tt.metadata,
			}
			assert.Equal(t, tt.want, r.Title())
		})
	}
}

func TestExtractedArticle_OmitsAbsentFields(t *testing.T) {
	a := ExtractedArticle{Content: StringPtr("<p>Hello</p>")}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	raw := string(data)
	assert.Contains(t, raw, `"content"`)
	assert.NotContains(t, raw, "author")
	assert.NotContains(t, raw, "excerpt")
	assert.NotContains(t, raw, "datePublished")
}

func TestFetchAndExtractionResult_MarshalJSON(t *testing.T) {
	base, err := url.Parse("https://example.com")
	require.NoError(t, err)
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	r := FetchAndExtractionResult{
		Metadata:   &SiteMetadata{HeroImage: StringPtr("https://example.com/hero.jpg")},
		Extracted:  ExtractedArticle{Title: StringPtr("Hello"), Content: StringPtr("<p>x</p>"), DatePublished: &published},
		StyledHTML: "<html></html>",
		BaseURL:    base,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Hello", got["title"])
	assert.Equal(t, "https://example.com", got["baseURL"])
	assert.Equal(t, "<html></html>", got["styledHTML"])
	extracted := got["extracted"].(map[string]interface{})
	assert.Equal(t, "2024-03-01T12:00:00Z", extracted["datePublished"])
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Nil(t, StringPtr("   \n"))
	require.NotNil(t, StringPtr("a"))
	assert.Equal(t, "a", *StringPtr("a"))
	assert.Equal(t, "", Deref(nil))
}

func TestTimePtr(t *testing.T) {
	assert.Nil(t, TimePtr(time.Time{}))
	now := time.Now()
	assert.True(t, TimePtr(now).Equal(now))
}
