package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"melodyhub/internal/logger"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultRetryDelay = 2 * time.Second
	maxResponseBytes  = 8 << 20

	maxTitleLen  = 200
	maxArtistLen = 100
)

// BaseAdapter implements the pieces of the site contract that are identical
// across sites: the HTTP request path with retries, connection testing, text
// cleaning and candidate validation. Concrete adapters embed it and add the
// per-site response parsing.
type BaseAdapter struct {
	cfg    SiteConfig
	client *http.Client
	log    hclog.Logger

	// enabled may be flipped at runtime by config reloads.
	enabledMu sync.RWMutex
	enabled   bool

	titleRe  []*regexp.Regexp
	artistRe []*regexp.Regexp
	albumRe  []*regexp.Regexp
	genreRe  []*regexp.Regexp
}

// NewBaseAdapter builds the shared adapter base for a site. Invalid cleaning
// patterns are skipped with a warning rather than failing the whole site.
func NewBaseAdapter(cfg SiteConfig) *BaseAdapter {
	if cfg.Request.Timeout <= 0 {
		cfg.Request.Timeout = defaultTimeout
	}
	if cfg.Request.RetryDelay <= 0 {
		cfg.Request.RetryDelay = defaultRetryDelay
	}

	b := &BaseAdapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Request.Timeout},
		log:     logger.Named("adapter").With("site", cfg.Name),
		enabled: cfg.Enabled,
	}
	b.titleRe = b.compilePatterns(cfg.Cleaning.TitlePatterns)
	b.artistRe = b.compilePatterns(cfg.Cleaning.ArtistPatterns)
	b.albumRe = b.compilePatterns(cfg.Cleaning.AlbumPatterns)
	b.genreRe = b.compilePatterns(cfg.Cleaning.GenrePatterns)
	return b
}

func (b *BaseAdapter) compilePatterns(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			b.log.Warn("skipping invalid cleaning pattern", "pattern", p, "error", err)
			continue
		}
		res = append(res, re)
	}
	return res
}

// SiteName returns the configured site name.
func (b *BaseAdapter) SiteName() string { return b.cfg.Name }

// BaseURL returns the configured base URL.
func (b *BaseAdapter) BaseURL() string { return b.cfg.BaseURL }

// IsEnabled reports whether the site is enabled for scheduling.
func (b *BaseAdapter) IsEnabled() bool {
	b.enabledMu.RLock()
	defer b.enabledMu.RUnlock()
	return b.enabled
}

// SetEnabled flips the site's scheduling state, typically on config reload.
func (b *BaseAdapter) SetEnabled(enabled bool) {
	b.enabledMu.Lock()
	defer b.enabledMu.Unlock()
	b.enabled = enabled
}

// Config returns a copy of the site configuration with the live enabled flag.
func (b *BaseAdapter) Config() SiteConfig {
	cfg := b.cfg
	cfg.Enabled = b.IsEnabled()
	return cfg
}

// TemplateURL expands the URL template registered for the crawl type.
// Placeholders have the form {name} and values are query-escaped.
func (b *BaseAdapter) TemplateURL(ct CrawlType, values map[string]string) (string, error) {
	tmpl, ok := b.cfg.URLTemplates[ct]
	if !ok {
		return "", fmt.Errorf("site %s has no url template for crawl type %q", b.cfg.Name, ct)
	}
	expanded := tmpl
	for k, v := range values {
		expanded = strings.ReplaceAll(expanded, "{"+k+"}", url.QueryEscape(v))
	}
	if strings.Contains(expanded, "{") {
		return "", fmt.Errorf("url template %q for site %s has unresolved placeholders", tmpl, b.cfg.Name)
	}
	return expanded, nil
}

// TestConnection probes the site's base URL. It never returns an error; all
// failures are captured in the result.
func (b *BaseAdapter) TestConnection(ctx context.Context) ConnectionTestResult {
	result := ConnectionTestResult{Site: b.cfg.Name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	b.applyHeaders(req, nil)

	start := time.Now()
	resp, err := b.client.Do(req)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	result.StatusCode = resp.StatusCode
	result.Accessible = resp.StatusCode < http.StatusInternalServerError
	result.Success = resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusBadRequest
	if !result.Success {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

// FetchJSON performs a GET with the site's retry policy (optionally overridden
// by opts) and decodes the response body into out.
func (b *BaseAdapter) FetchJSON(ctx context.Context, rawURL string, opts *CrawlOptions, out interface{}) error {
	attempts := b.cfg.Request.RetryAttempts
	delay := b.cfg.Request.RetryDelay
	client := b.client
	if opts != nil {
		if opts.MaxRetries > 0 {
			attempts = opts.MaxRetries
		}
		if opts.Delay > 0 {
			delay = opts.Delay
		}
		if c := b.clientForOptions(opts); c != nil {
			client = c
		}
	}
	if attempts < 0 {
		attempts = 0
	}

	var lastErr error
	for try := 0; try <= attempts; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := b.doGet(ctx, client, rawURL, opts)
		if err != nil {
			lastErr = err
			b.log.Debug("request attempt failed", "url", rawURL, "attempt", try+1, "error", err)
			continue
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("site %s: decoding %s: %w", b.cfg.Name, rawURL, err)
		}
		return nil
	}
	return fmt.Errorf("site %s: %s failed after %d attempts: %w", b.cfg.Name, rawURL, attempts+1, lastErr)
}

func (b *BaseAdapter) doGet(ctx context.Context, client *http.Client, rawURL string, opts *CrawlOptions) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	b.applyHeaders(req, opts)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func (b *BaseAdapter) applyHeaders(req *http.Request, opts *CrawlOptions) {
	for k, v := range b.cfg.Request.Headers {
		req.Header.Set(k, v)
	}
	if opts != nil {
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "melodyhub/1.0")
	}
}

// clientForOptions returns a per-call client when the options require one
// (custom timeout or proxy); nil means the shared client is fine.
func (b *BaseAdapter) clientForOptions(opts *CrawlOptions) *http.Client {
	if opts.Timeout <= 0 && opts.Proxy == nil {
		return nil
	}

	c := &http.Client{Timeout: b.cfg.Request.Timeout}
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	if opts.Proxy != nil {
		proxyURL := &url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", opts.Proxy.Host, opts.Proxy.Port),
		}
		if opts.Proxy.Username != "" {
			proxyURL.User = url.UserPassword(opts.Proxy.Username, opts.Proxy.Password)
		}
		c.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
	return c
}

// CleanSongData applies the configured strip patterns to the candidate's text
// fields and collapses whitespace. Pure function, no I/O.
func (b *BaseAdapter) CleanSongData(song CandidateSong) CandidateSong {
	song.Title = cleanField(song.Title, b.titleRe)
	song.Artist = cleanField(song.Artist, b.artistRe)
	song.Album = cleanField(song.Album, b.albumRe)
	song.Genre = cleanField(song.Genre, b.genreRe)
	return song
}

func cleanField(s string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// ValidateSongData reports whether a candidate is acceptable: title and artist
// non-empty and within length bounds, and the combined text free of configured
// exclude keywords.
func (b *BaseAdapter) ValidateSongData(song CandidateSong) bool {
	title := strings.TrimSpace(song.Title)
	artist := strings.TrimSpace(song.Artist)
	if title == "" || artist == "" {
		return false
	}
	if len([]rune(title)) > maxTitleLen || len([]rune(artist)) > maxArtistLen {
		return false
	}

	combined := strings.ToLower(title + " " + artist)
	for _, kw := range b.cfg.Cleaning.ExcludeKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// ApplyFilters enforces the caller-supplied filters on parsed candidates.
// Filter interpretation is adapter-internal per the crawl contract.
func (b *BaseAdapter) ApplyFilters(songs []CandidateSong, filters *CrawlFilters) []CandidateSong {
	if filters == nil {
		return songs
	}

	kept := songs[:0:0]
	for _, s := range songs {
		if filters.MinDuration > 0 && s.DurationSeconds > 0 && s.DurationSeconds < filters.MinDuration {
			continue
		}
		if filters.MaxDuration > 0 && s.DurationSeconds > filters.MaxDuration {
			continue
		}
		combined := strings.ToLower(s.Title + " " + s.Artist)
		if containsAny(combined, filters.ExcludeKeywords) {
			continue
		}
		if len(filters.IncludeKeywords) > 0 && !containsAny(combined, filters.IncludeKeywords) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
