// Package adapter defines the contract every music site integration exposes to
// the crawl orchestrator, plus the shared HTTP/cleaning base the concrete
// adapters are built on.
package adapter

import (
	"context"
	"time"
)

// CrawlType identifies which listing an adapter should fetch.
type CrawlType string

const (
	CrawlRecommended CrawlType = "recommended"
	CrawlPopular     CrawlType = "popular"
	CrawlLatest      CrawlType = "latest"
	CrawlSearch      CrawlType = "search"
	CrawlByArtist    CrawlType = "by_artist"
	CrawlByGenre     CrawlType = "by_genre"

	// CrawlDetail keys the URL template behind GetSongDetails. It is not a
	// schedulable crawl type and never appears in SupportedTypes.
	CrawlDetail CrawlType = "detail"
)

// CandidateSong is a song record produced by crawling. It is transient: it
// flows through validate -> clean -> duplicate check and is either persisted
// or discarded. Title and artist are the only fields an adapter must always
// attempt to populate.
type CandidateSong struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Genre           string `json:"genre,omitempty"`
	Year            int    `json:"year,omitempty"`
	CoverURL        string `json:"cover_url,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`
	SourceID        string `json:"source_id,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	Lyrics          string `json:"lyrics,omitempty"`
	FileSizeBytes   int64  `json:"file_size_bytes,omitempty"`
}

// ProxyConfig is an optional outbound proxy for a single crawl call.
type ProxyConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// CrawlFilters are interpreted by the adapter itself, never by the
// orchestrator.
type CrawlFilters struct {
	MinDuration     int      `json:"min_duration,omitempty"`
	MaxDuration     int      `json:"max_duration,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`
	IncludeKeywords []string `json:"include_keywords,omitempty"`
}

// CrawlOptions are caller-supplied per-call overrides. All fields are
// optional; zero values fall back to the site's configured request policy.
type CrawlOptions struct {
	Delay       time.Duration     `json:"delay,omitempty"`
	MaxRetries  int               `json:"max_retries,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Proxy       *ProxyConfig      `json:"proxy,omitempty"`
	EnableCache bool              `json:"enable_cache,omitempty"`
	CacheExpiry time.Duration     `json:"cache_expiry,omitempty"`
	Filters     *CrawlFilters     `json:"filters,omitempty"`
}

// RequestPolicy is the static per-site HTTP policy.
type RequestPolicy struct {
	Timeout       time.Duration     `yaml:"timeout" json:"timeout"`
	RetryAttempts int               `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay    time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	Headers       map[string]string `yaml:"headers" json:"headers"`
}

// CleaningRules hold the regex strip patterns and exclude keywords applied to
// crawled text before validation.
type CleaningRules struct {
	TitlePatterns   []string `yaml:"title_patterns" json:"title_patterns"`
	ArtistPatterns  []string `yaml:"artist_patterns" json:"artist_patterns"`
	AlbumPatterns   []string `yaml:"album_patterns" json:"album_patterns"`
	GenrePatterns   []string `yaml:"genre_patterns" json:"genre_patterns"`
	ExcludeKeywords []string `yaml:"exclude_keywords" json:"exclude_keywords"`
}

// SiteConfig is the static configuration for one site integration. Disabled
// sites are never scheduled by the orchestrator.
type SiteConfig struct {
	Name         string               `yaml:"name" json:"name"`
	BaseURL      string               `yaml:"base_url" json:"base_url"`
	Enabled      bool                 `yaml:"enabled" json:"enabled"`
	Request      RequestPolicy        `yaml:"request" json:"request"`
	Selectors    map[string]string    `yaml:"selectors" json:"selectors"` // opaque to the orchestrator
	URLTemplates map[CrawlType]string `yaml:"url_templates" json:"url_templates"`
	Cleaning     CleaningRules        `yaml:"cleaning" json:"cleaning"`
}

// ConnectionTestResult reports reachability of a site. TestConnection never
// returns an error; failures are captured here.
type ConnectionTestResult struct {
	Site           string `json:"site"`
	Success        bool   `json:"success"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	StatusCode     int    `json:"status_code,omitempty"`
	Accessible     bool   `json:"accessible"`
	Error          string `json:"error,omitempty"`
}

// Descriptor is the static adapter surface exposed for discovery.
type Descriptor struct {
	SiteName       string      `json:"site_name"`
	BaseURL        string      `json:"base_url"`
	Enabled        bool        `json:"enabled"`
	SupportedTypes []CrawlType `json:"supported_types"`
}

// SiteAdapter is the uniform contract every site integration implements.
// Crawl methods may fail with a network or parse error; callers are expected
// to contain those failures.
type SiteAdapter interface {
	SiteName() string
	BaseURL() string
	IsEnabled() bool
	SupportedTypes() []CrawlType

	TestConnection(ctx context.Context) ConnectionTestResult

	CrawlRecommended(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	CrawlPopular(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	CrawlLatest(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	SearchMusic(ctx context.Context, query string, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	CrawlByArtist(ctx context.Context, artist string, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	CrawlByGenre(ctx context.Context, genre string, limit int, opts *CrawlOptions) ([]CandidateSong, error)
	GetSongDetails(ctx context.Context, sourceID string) (*CandidateSong, error)

	ValidateSongData(song CandidateSong) bool
	CleanSongData(song CandidateSong) CandidateSong
}

// CrawlByType dispatches a crawl call by type. Search, by-artist and by-genre
// types use value as the query term; the listing types ignore it.
func CrawlByType(ctx context.Context, a SiteAdapter, ct CrawlType, value string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	switch ct {
	case CrawlPopular:
		return a.CrawlPopular(ctx, limit, opts)
	case CrawlLatest:
		return a.CrawlLatest(ctx, limit, opts)
	case CrawlSearch:
		return a.SearchMusic(ctx, value, limit, opts)
	case CrawlByArtist:
		return a.CrawlByArtist(ctx, value, limit, opts)
	case CrawlByGenre:
		return a.CrawlByGenre(ctx, value, limit, opts)
	default:
		return a.CrawlRecommended(ctx, limit, opts)
	}
}

// Supports reports whether the adapter advertises the given crawl type.
func Supports(a SiteAdapter, ct CrawlType) bool {
	for _, t := range a.SupportedTypes() {
		if t == ct {
			return true
		}
	}
	return false
}
