package crawlermodule

import (
	"math"
	"sync"
	"time"
)

// CrawlStatus is the lifecycle state of a crawl run.
type CrawlStatus string

const (
	StatusIdle      CrawlStatus = "idle"
	StatusRunning   CrawlStatus = "running"
	StatusCompleted CrawlStatus = "completed"
	StatusError     CrawlStatus = "error"
)

// SiteStatus is the per-site state inside a multi-site run.
type SiteStatus string

const (
	SitePending   SiteStatus = "pending"
	SiteRunning   SiteStatus = "running"
	SiteCompleted SiteStatus = "completed"
	SiteError     SiteStatus = "error"
)

// CrawlProgress is the reported state of a single-site run.
type CrawlProgress struct {
	Status          CrawlStatus `json:"status"`
	Current         int         `json:"current"`
	Total           int         `json:"total"`
	ProgressPercent int         `json:"progress_percent"`
	Message         string      `json:"message"`
	StartedAt       *time.Time  `json:"started_at,omitempty"`
	EndedAt         *time.Time  `json:"ended_at,omitempty"`
}

func roundPercent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(current) / float64(total) * 100))
}

// progressTracker is the mutex-guarded owner of one CrawlProgress. A new run
// can only start while no run is in flight (single-flight per process).
type progressTracker struct {
	mu sync.Mutex
	p  CrawlProgress
}

func newProgressTracker() *progressTracker {
	return &progressTracker{p: CrawlProgress{Status: StatusIdle}}
}

// TryStart transitions idle/completed/error -> running. Returns false while a
// run is already in flight.
func (t *progressTracker) TryStart(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.p.Status == StatusRunning {
		return false
	}
	now := time.Now()
	t.p = CrawlProgress{
		Status:    StatusRunning,
		Message:   message,
		StartedAt: &now,
	}
	return true
}

// SetTotal fixes the number of items the run will process.
func (t *progressTracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Total = total
	t.p.ProgressPercent = roundPercent(t.p.Current, total)
}

// Advance increments the processed counter.
func (t *progressTracker) Advance(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Current++
	t.p.ProgressPercent = roundPercent(t.p.Current, t.p.Total)
	if message != "" {
		t.p.Message = message
	}
}

// Complete marks the run finished.
func (t *progressTracker) Complete(message string) {
	t.finish(StatusCompleted, message)
}

// Fail marks the run failed.
func (t *progressTracker) Fail(message string) {
	t.finish(StatusError, message)
}

func (t *progressTracker) finish(status CrawlStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.p.Status = status
	t.p.Message = message
	t.p.EndedAt = &now
}

// Reset returns the tracker to idle. Rejected while a run is in flight.
func (t *progressTracker) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.p.Status == StatusRunning {
		return false
	}
	t.p = CrawlProgress{Status: StatusIdle}
	return true
}

// IsRunning reports whether a run is in flight.
func (t *progressTracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p.Status == StatusRunning
}

// Snapshot returns a copy of the current progress.
func (t *progressTracker) Snapshot() CrawlProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

// SiteProgress is one site's entry in a multi-site run.
type SiteProgress struct {
	Status   SiteStatus `json:"status"`
	Progress int        `json:"progress"`
	Message  string     `json:"message"`
}

// MultiSiteCrawlProgress is the reported state of a multi-site run. A site
// counts as completed once its task settles, whether it succeeded or failed.
type MultiSiteCrawlProgress struct {
	Status          CrawlStatus             `json:"status"`
	CurrentSite     string                  `json:"current_site"`
	CompletedSites  int                     `json:"completed_sites"`
	TotalSites      int                     `json:"total_sites"`
	ProgressPercent int                     `json:"progress_percent"`
	Message         string                  `json:"message"`
	StartedAt       *time.Time              `json:"started_at,omitempty"`
	EndedAt         *time.Time              `json:"ended_at,omitempty"`
	PerSite         map[string]SiteProgress `json:"per_site"`
}

type multiProgressTracker struct {
	mu sync.Mutex
	p  MultiSiteCrawlProgress
}

func newMultiProgressTracker() *multiProgressTracker {
	return &multiProgressTracker{p: MultiSiteCrawlProgress{Status: StatusIdle, PerSite: map[string]SiteProgress{}}}
}

// TryStart begins a run over the given sites, one pending entry per site.
// Returns false while a run is already in flight.
func (t *multiProgressTracker) TryStart(sites []string, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.p.Status == StatusRunning {
		return false
	}
	now := time.Now()
	perSite := make(map[string]SiteProgress, len(sites))
	for _, s := range sites {
		perSite[s] = SiteProgress{Status: SitePending}
	}
	t.p = MultiSiteCrawlProgress{
		Status:     StatusRunning,
		TotalSites: len(sites),
		Message:    message,
		StartedAt:  &now,
		PerSite:    perSite,
	}
	return true
}

// SiteStarted marks one site's task as running.
func (t *multiProgressTracker) SiteStarted(site string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.CurrentSite = site
	t.p.PerSite[site] = SiteProgress{Status: SiteRunning, Message: "crawling"}
}

// SiteSettled records one site's task resolving (success or failure both
// count toward progress) and recomputes the overall percentage.
func (t *multiProgressTracker) SiteSettled(site string, status SiteStatus, crawled int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.PerSite[site] = SiteProgress{Status: status, Progress: crawled, Message: message}
	t.p.CompletedSites++
	t.p.ProgressPercent = roundPercent(t.p.CompletedSites, t.p.TotalSites)
}

// Complete marks the run finished.
func (t *multiProgressTracker) Complete(message string) {
	t.finish(StatusCompleted, message)
}

// Fail marks the run failed.
func (t *multiProgressTracker) Fail(message string) {
	t.finish(StatusError, message)
}

func (t *multiProgressTracker) finish(status CrawlStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.p.Status = status
	t.p.Message = message
	t.p.CurrentSite = ""
	t.p.EndedAt = &now
}

// Reset returns the tracker to idle. Rejected while a run is in flight.
func (t *multiProgressTracker) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.p.Status == StatusRunning {
		return false
	}
	t.p = MultiSiteCrawlProgress{Status: StatusIdle, PerSite: map[string]SiteProgress{}}
	return true
}

// Snapshot returns a deep copy of the current progress.
func (t *multiProgressTracker) Snapshot() MultiSiteCrawlProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.p
	snap.PerSite = make(map[string]SiteProgress, len(t.p.PerSite))
	for k, v := range t.p.PerSite {
		snap.PerSite[k] = v
	}
	return snap
}
