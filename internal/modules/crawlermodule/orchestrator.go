package crawlermodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"melodyhub/internal/adapter"
	"melodyhub/internal/events"
	"melodyhub/internal/modules/musicmodule"
)

// MultiSiteCrawlConfig is the request for a fan-out crawl across sites.
type MultiSiteCrawlConfig struct {
	Type    adapter.CrawlType     `json:"type"`
	Limit   int                   `json:"limit"`
	Keyword string                `json:"keyword,omitempty"`
	Sites   []string              `json:"sites,omitempty"` // empty means every enabled site
	Options *adapter.CrawlOptions `json:"options,omitempty"`

	EnableDuplicateDetection bool    `json:"enable_duplicate_detection"`
	DuplicateThreshold       float64 `json:"duplicate_threshold,omitempty"`
}

// SiteCrawlResult is one site's outcome inside a multi-site run.
type SiteCrawlResult struct {
	Site    string `json:"site"`
	Success bool   `json:"success"`
	Crawled int    `json:"crawled"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
	Error   string `json:"error,omitempty"`
}

// MultiSiteCrawlData aggregates the merged outcome of a multi-site run.
type MultiSiteCrawlData struct {
	TotalCrawled       int                     `json:"total_crawled"`
	TotalAdded         int                     `json:"total_added"`
	DuplicatesDetected int                     `json:"duplicates_detected"`
	SiteResults        []SiteCrawlResult       `json:"site_results"`
	Songs              []adapter.CandidateSong `json:"songs"`
}

// MultiSiteCrawlResult is the response of a multi-site run.
type MultiSiteCrawlResult struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	TotalSites      int                 `json:"total_sites"`
	SuccessfulSites int                 `json:"successful_sites"`
	FailedSites     int                 `json:"failed_sites"`
	Data            *MultiSiteCrawlData `json:"data,omitempty"`
	Errors          []string            `json:"errors,omitempty"`
}

const (
	multiBusyMessage = "a multi-site crawl is already running"
	noSitesMessage   = "no enabled sites to crawl"
)

// Orchestrator fans a crawl out across site adapters, contains per-site
// failures, merges the survivors and persists them. One multi-site run at a
// time; a site failing never aborts the others.
type Orchestrator struct {
	mu       sync.RWMutex
	adapters map[string]adapter.SiteAdapter
	order    []string // registration order for stable iteration

	store     *musicmodule.SongStore
	detector  *DuplicateDetector
	progress  *multiProgressTracker
	bus       events.EventBus
	throttler *LoadThrottler
	siteDelay time.Duration
	log       hclog.Logger
}

// NewOrchestrator creates an orchestrator over the given adapters. Disabled
// adapters stay registered (they remain testable and discoverable) but are
// excluded from scheduling.
func NewOrchestrator(adapters []adapter.SiteAdapter, store *musicmodule.SongStore, detector *DuplicateDetector,
	bus events.EventBus, throttler *LoadThrottler, siteDelay time.Duration, log hclog.Logger) *Orchestrator {

	o := &Orchestrator{
		adapters:  make(map[string]adapter.SiteAdapter, len(adapters)),
		store:     store,
		detector:  detector,
		progress:  newMultiProgressTracker(),
		bus:       bus,
		throttler: throttler,
		siteDelay: siteDelay,
		log:       log,
	}
	for _, a := range adapters {
		if _, dup := o.adapters[a.SiteName()]; dup {
			log.Warn("duplicate adapter registration ignored", "site", a.SiteName())
			continue
		}
		o.adapters[a.SiteName()] = a
		o.order = append(o.order, a.SiteName())
	}
	return o
}

// Adapter returns the registered adapter for a site.
func (o *Orchestrator) Adapter(site string) (adapter.SiteAdapter, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.adapters[site]
	return a, ok
}

// SetSiteEnabled flips one site's scheduling state when its adapter supports
// runtime toggling.
func (o *Orchestrator) SetSiteEnabled(site string, enabled bool) {
	o.mu.RLock()
	a, ok := o.adapters[site]
	o.mu.RUnlock()
	if !ok {
		return
	}
	type toggler interface{ SetEnabled(bool) }
	if t, ok := a.(toggler); ok && a.IsEnabled() != enabled {
		t.SetEnabled(enabled)
		o.log.Info("site scheduling toggled", "site", site, "enabled", enabled)
	}
}

// resolveTargets picks the adapters for a run: the requested sites that exist
// and are enabled, or every enabled site when none are requested.
func (o *Orchestrator) resolveTargets(requested []string) []adapter.SiteAdapter {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var targets []adapter.SiteAdapter
	if len(requested) == 0 {
		for _, name := range o.order {
			if a := o.adapters[name]; a.IsEnabled() {
				targets = append(targets, a)
			}
		}
		return targets
	}
	for _, name := range requested {
		a, ok := o.adapters[name]
		if !ok {
			o.log.Warn("requested site is not registered", "site", name)
			continue
		}
		if !a.IsEnabled() {
			o.log.Warn("requested site is disabled", "site", name)
			continue
		}
		targets = append(targets, a)
	}
	return targets
}

type siteOutcome struct {
	site    string
	songs   []adapter.CandidateSong
	crawled int
	err     error
}

// CrawlFromMultipleSites runs one crawl task per target site concurrently,
// waits for every task to settle, merges the successful results, optionally
// flags cross-site duplicates, then persists everything not already stored.
// Duplicate flags are informational; flagged candidates are persisted anyway
// so the caller can review them.
func (o *Orchestrator) CrawlFromMultipleSites(ctx context.Context, cfg MultiSiteCrawlConfig) MultiSiteCrawlResult {
	crawlType := cfg.Type
	if crawlType == "" {
		crawlType = adapter.CrawlRecommended
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 20
	}

	targets := o.resolveTargets(cfg.Sites)
	if len(targets) == 0 {
		return MultiSiteCrawlResult{Success: false, Message: noSitesMessage}
	}

	names := make([]string, len(targets))
	for i, a := range targets {
		names[i] = a.SiteName()
	}

	if !o.progress.TryStart(names, fmt.Sprintf("crawling %d sites (%s)", len(names), crawlType)) {
		return MultiSiteCrawlResult{Success: false, Message: multiBusyMessage}
	}

	o.bus.PublishAsync(events.NewEvent(events.EventMultiCrawlStarted, "orchestrator",
		"Multi-site crawl started", fmt.Sprintf("sites=%v type=%s limit=%d", names, crawlType, limit)))

	outcomes := make([]siteOutcome, len(targets))
	var wg sync.WaitGroup
	for i, a := range targets {
		wg.Add(1)
		go func(idx int, a adapter.SiteAdapter) {
			defer wg.Done()
			outcomes[idx] = o.crawlSite(ctx, a, crawlType, cfg.Keyword, limit, cfg.Options)
		}(i, a)
	}
	wg.Wait()

	result := MultiSiteCrawlResult{TotalSites: len(targets)}
	data := &MultiSiteCrawlData{}
	var merged []adapter.CandidateSong
	siteOf := make([]string, 0)

	for _, out := range outcomes {
		site := SiteCrawlResult{Site: out.site, Crawled: out.crawled}
		if out.err != nil {
			site.Error = out.err.Error()
			result.FailedSites++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", out.site, out.err))
		} else {
			site.Success = true
			result.SuccessfulSites++
			data.TotalCrawled += out.crawled
			for _, s := range out.songs {
				merged = append(merged, s)
				siteOf = append(siteOf, out.site)
			}
		}
		data.SiteResults = append(data.SiteResults, site)
	}

	if cfg.EnableDuplicateDetection && o.detector != nil {
		weights := DefaultDetectionWeights()
		if cfg.DuplicateThreshold > 0 {
			weights.Threshold = cfg.DuplicateThreshold
		}
		flagged := o.detector.BatchDetectDuplicates(merged, &weights)
		data.DuplicatesDetected = len(flagged)
		for idx, det := range flagged {
			o.log.Info("cross-site duplicate flagged",
				"site", siteOf[idx], "title", merged[idx].Title,
				"match_type", det.MatchType, "confidence", det.Confidence)
		}
	}

	siteIdx := make(map[string]int, len(data.SiteResults))
	for i := range data.SiteResults {
		siteIdx[data.SiteResults[i].Site] = i
	}
	for i, candidate := range merged {
		sr := &data.SiteResults[siteIdx[siteOf[i]]]
		existing, err := o.store.FindByExactIdentity(candidate, siteOf[i])
		if err != nil {
			sr.Errors++
			o.log.Warn("existence check failed", "site", siteOf[i], "title", candidate.Title, "error", err)
			continue
		}
		if existing != nil {
			sr.Skipped++
			continue
		}
		song := buildSong(candidate, siteOf[i])
		if err := o.store.Create(&song); err != nil {
			sr.Errors++
			o.log.Warn("persisting song failed", "site", siteOf[i], "title", candidate.Title, "error", err)
			continue
		}
		sr.Added++
		data.TotalAdded++
		data.Songs = append(data.Songs, candidate)
	}

	result.Success = true
	result.Data = data
	result.Message = fmt.Sprintf("%d/%d sites succeeded, crawled %d, added %d, duplicates flagged %d",
		result.SuccessfulSites, result.TotalSites, data.TotalCrawled, data.TotalAdded, data.DuplicatesDetected)

	o.progress.Complete(result.Message)
	o.bus.PublishAsync(events.NewEvent(events.EventMultiCrawlCompleted, "orchestrator",
		"Multi-site crawl completed", result.Message))
	o.log.Info("multi-site crawl completed",
		"sites", result.TotalSites, "succeeded", result.SuccessfulSites, "failed", result.FailedSites,
		"crawled", data.TotalCrawled, "added", data.TotalAdded)
	return result
}

// crawlSite is one fan-out task: politeness delay, crawl, validate and clean.
// Panics are contained here so a misbehaving adapter cannot take the whole
// run down.
func (o *Orchestrator) crawlSite(ctx context.Context, a adapter.SiteAdapter, ct adapter.CrawlType,
	keyword string, limit int, opts *adapter.CrawlOptions) (out siteOutcome) {

	site := a.SiteName()
	out.site = site
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("adapter panicked: %v", r)
			out.songs = nil
		}
		status := SiteCompleted
		msg := fmt.Sprintf("crawled %d", out.crawled)
		if out.err != nil {
			status = SiteError
			msg = out.err.Error()
		}
		o.progress.SiteSettled(site, status, out.crawled, msg)
		o.bus.PublishAsync(events.NewEvent(events.EventMultiCrawlSiteDone, site, "Site crawl settled", msg))
	}()

	o.progress.SiteStarted(site)

	if delay := o.throttledDelay(); delay > 0 {
		select {
		case <-ctx.Done():
			out.err = ctx.Err()
			return out
		case <-time.After(delay):
		}
	}

	raw, err := adapter.CrawlByType(ctx, a, ct, keyword, limit, opts)
	if err != nil {
		out.err = err
		return out
	}
	out.crawled = len(raw)

	seen := make(map[string]bool, len(raw))
	for _, candidate := range raw {
		if !a.ValidateSongData(candidate) {
			continue
		}
		cleaned := a.CleanSongData(candidate)
		key := cleaned.Title + "|" + cleaned.Artist
		if seen[key] {
			continue
		}
		seen[key] = true
		out.songs = append(out.songs, cleaned)
	}
	return out
}

func (o *Orchestrator) throttledDelay() time.Duration {
	if o.siteDelay <= 0 {
		return 0
	}
	if o.throttler == nil {
		return o.siteDelay
	}
	return o.throttler.Delay(o.siteDelay)
}

// TestAllConnections probes every registered adapter sequentially, enabled or
// not.
func (o *Orchestrator) TestAllConnections(ctx context.Context) []adapter.ConnectionTestResult {
	o.mu.RLock()
	targets := make([]adapter.SiteAdapter, 0, len(o.order))
	for _, name := range o.order {
		targets = append(targets, o.adapters[name])
	}
	o.mu.RUnlock()

	results := make([]adapter.ConnectionTestResult, 0, len(targets))
	for _, a := range targets {
		results = append(results, a.TestConnection(ctx))
	}
	return results
}

// Descriptors returns the static surface of every registered adapter.
func (o *Orchestrator) Descriptors() []adapter.Descriptor {
	o.mu.RLock()
	defer o.mu.RUnlock()

	descs := make([]adapter.Descriptor, 0, len(o.order))
	for _, name := range o.order {
		a := o.adapters[name]
		descs = append(descs, adapter.Descriptor{
			SiteName:       a.SiteName(),
			BaseURL:        a.BaseURL(),
			Enabled:        a.IsEnabled(),
			SupportedTypes: a.SupportedTypes(),
		})
	}
	return descs
}

// GetProgress returns the current multi-site run state.
func (o *Orchestrator) GetProgress() MultiSiteCrawlProgress {
	return o.progress.Snapshot()
}

// ResetProgress clears a settled run back to idle. Returns false while a run
// is in flight.
func (o *Orchestrator) ResetProgress() bool {
	return o.progress.Reset()
}
