package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSiteConfig() SiteConfig {
	return SiteConfig{
		Name:    "testsite",
		BaseURL: "https://example.com",
		Enabled: true,
		Request: RequestPolicy{
			Timeout:       2 * time.Second,
			RetryAttempts: 2,
			RetryDelay:    time.Millisecond,
		},
		Cleaning: CleaningRules{
			TitlePatterns:   []string{`(?i)\s*[\(（].*?(mv|live|cover).*?[\)）]`, `(?i)官方版?`},
			ArtistPatterns:  []string{`(?i)\s*feat\..*$`},
			ExcludeKeywords: []string{"广告", "试听"},
		},
	}
}

func TestValidateSongData(t *testing.T) {
	b := NewBaseAdapter(testSiteConfig())

	assert.True(t, b.ValidateSongData(CandidateSong{Title: "晴天", Artist: "周杰伦"}))
	assert.False(t, b.ValidateSongData(CandidateSong{Title: "", Artist: "周杰伦"}))
	assert.False(t, b.ValidateSongData(CandidateSong{Title: "晴天", Artist: "   "}))
	assert.False(t, b.ValidateSongData(CandidateSong{Title: strings.Repeat("长", 201), Artist: "周杰伦"}))
	assert.False(t, b.ValidateSongData(CandidateSong{Title: "晴天", Artist: strings.Repeat("长", 101)}))

	// Exclude keywords match the combined text case-insensitively.
	assert.False(t, b.ValidateSongData(CandidateSong{Title: "晴天 广告版", Artist: "周杰伦"}))
	assert.False(t, b.ValidateSongData(CandidateSong{Title: "晴天", Artist: "试听专用"}))
}

func TestCleanSongData(t *testing.T) {
	b := NewBaseAdapter(testSiteConfig())

	cleaned := b.CleanSongData(CandidateSong{
		Title:  "晴天 （官方MV）  ",
		Artist: "周杰伦 feat. 费玉清",
		Album:  "  叶惠美   2003 ",
	})
	assert.Equal(t, "晴天", cleaned.Title)
	assert.Equal(t, "周杰伦", cleaned.Artist)
	assert.Equal(t, "叶惠美 2003", cleaned.Album)
}

func TestCleanSongDataSkipsInvalidPattern(t *testing.T) {
	cfg := testSiteConfig()
	cfg.Cleaning.TitlePatterns = []string{`([`, `(?i)live`}
	b := NewBaseAdapter(cfg)

	cleaned := b.CleanSongData(CandidateSong{Title: "晴天 Live", Artist: "周杰伦"})
	assert.Equal(t, "晴天", cleaned.Title)
}

func TestTemplateURL(t *testing.T) {
	cfg := testSiteConfig()
	cfg.URLTemplates = map[CrawlType]string{
		CrawlSearch: "https://example.com/search?w={query}&n={limit}",
	}
	b := NewBaseAdapter(cfg)

	url, err := b.TemplateURL(CrawlSearch, map[string]string{"query": "晴天 周杰伦", "limit": "20"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search?w=%E6%99%B4%E5%A4%A9+%E5%91%A8%E6%9D%B0%E4%BC%A6&n=20", url)

	_, err = b.TemplateURL(CrawlPopular, nil)
	assert.Error(t, err)

	_, err = b.TemplateURL(CrawlSearch, map[string]string{"query": "x"})
	assert.Error(t, err, "unresolved placeholder must fail")
}

func TestTestConnectionCapturesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testSiteConfig()
	cfg.BaseURL = srv.URL
	result := NewBaseAdapter(cfg).TestConnection(context.Background())
	assert.True(t, result.Success)
	assert.True(t, result.Accessible)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.Request.Timeout = 200 * time.Millisecond
	result = NewBaseAdapter(cfg).TestConnection(context.Background())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestFetchJSONRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := testSiteConfig()
	b := NewBaseAdapter(cfg)

	var out struct {
		OK bool `json:"ok"`
	}
	err := b.FetchJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchJSONExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBaseAdapter(testSiteConfig())
	var out map[string]interface{}
	err := b.FetchJSON(context.Background(), srv.URL, nil, &out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestApplyFilters(t *testing.T) {
	b := NewBaseAdapter(testSiteConfig())
	songs := []CandidateSong{
		{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269},
		{Title: "短曲", Artist: "某人", DurationSeconds: 30},
		{Title: "晴天 remix", Artist: "DJ"},
	}

	kept := b.ApplyFilters(songs, &CrawlFilters{MinDuration: 60, ExcludeKeywords: []string{"remix"}})
	require.Len(t, kept, 1)
	assert.Equal(t, "晴天", kept[0].Title)

	kept = b.ApplyFilters(songs, &CrawlFilters{IncludeKeywords: []string{"晴天"}})
	assert.Len(t, kept, 2)

	assert.Len(t, b.ApplyFilters(songs, nil), 3)
}
