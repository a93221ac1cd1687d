package crawlermodule

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyhub/internal/adapter"
	"melodyhub/internal/database"
	"melodyhub/internal/events"
	"melodyhub/internal/modules/musicmodule"
)

func newTestOrchestrator(t *testing.T, stubs ...*stubAdapter) (*Orchestrator, *musicmodule.SongStore) {
	t.Helper()
	store := musicmodule.NewSongStore(newTestDB(t))
	bus := events.NewBus(16)
	t.Cleanup(bus.Stop)

	adapters := make([]adapter.SiteAdapter, len(stubs))
	for i, s := range stubs {
		adapters[i] = s
	}
	detector := NewDuplicateDetector(store, hclog.NewNullLogger())
	orch := NewOrchestrator(adapters, store, detector, bus, nil, 0, hclog.NewNullLogger())
	return orch, store
}

func TestMultiSiteCrawlContainsFailures(t *testing.T) {
	ok := &stubAdapter{name: "netease", enabled: true, songs: []adapter.CandidateSong{
		{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269},
		{Title: "七里香", Artist: "周杰伦", DurationSeconds: 297},
	}}
	failing := &stubAdapter{name: "qq", enabled: true, err: assert.AnError}
	panicking := &stubAdapter{name: "kugou", enabled: true, panicOnCrawl: true}

	orch, store := newTestOrchestrator(t, ok, failing, panicking)

	result := orch.CrawlFromMultipleSites(context.Background(), MultiSiteCrawlConfig{})

	assert.True(t, result.Success, "partial failure must not fail the whole run")
	assert.Equal(t, 3, result.TotalSites)
	assert.Equal(t, 1, result.SuccessfulSites)
	assert.Equal(t, 2, result.FailedSites)
	assert.Len(t, result.Errors, 2)

	require.NotNil(t, result.Data)
	assert.Equal(t, 2, result.Data.TotalCrawled)
	assert.Equal(t, 2, result.Data.TotalAdded)

	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	progress := orch.GetProgress()
	assert.Equal(t, StatusCompleted, progress.Status)
	assert.Equal(t, 3, progress.CompletedSites)
	assert.Equal(t, 100, progress.ProgressPercent)
	assert.Equal(t, SiteCompleted, progress.PerSite["netease"].Status)
	assert.Equal(t, SiteError, progress.PerSite["qq"].Status)
	assert.Equal(t, SiteError, progress.PerSite["kugou"].Status)
}

func TestMultiSiteCrawlSkipsDisabledAndUnknownSites(t *testing.T) {
	enabled := &stubAdapter{name: "netease", enabled: true,
		songs: []adapter.CandidateSong{{Title: "晴天", Artist: "周杰伦"}}}
	disabled := &stubAdapter{name: "kugou", enabled: false,
		songs: []adapter.CandidateSong{{Title: "不该出现", Artist: "某人"}}}

	orch, store := newTestOrchestrator(t, enabled, disabled)

	result := orch.CrawlFromMultipleSites(context.Background(), MultiSiteCrawlConfig{})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.TotalSites)

	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.True(t, orch.ResetProgress())

	result = orch.CrawlFromMultipleSites(context.Background(), MultiSiteCrawlConfig{
		Sites: []string{"kugou", "no-such-site"},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no enabled sites")
}

func TestMultiSiteCrawlBusyRejection(t *testing.T) {
	stub := &stubAdapter{name: "netease", enabled: true}
	orch, _ := newTestOrchestrator(t, stub)

	require.True(t, orch.progress.TryStart([]string{"netease"}, "previous run"))

	result := orch.CrawlFromMultipleSites(context.Background(), MultiSiteCrawlConfig{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "already running")
	assert.Equal(t, "previous run", orch.GetProgress().Message)
}

func TestMultiSiteCrawlFlagsDuplicatesWithoutSuppressing(t *testing.T) {
	a := &stubAdapter{name: "netease", enabled: true,
		songs: []adapter.CandidateSong{{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}}}
	b := &stubAdapter{name: "qq", enabled: true,
		songs: []adapter.CandidateSong{{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}}}

	orch, store := newTestOrchestrator(t, a, b)
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}))

	result := orch.CrawlFromMultipleSites(context.Background(), MultiSiteCrawlConfig{
		EnableDuplicateDetection: true,
	})

	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Equal(t, 2, result.Data.DuplicatesDetected)

	// Flags are informational; storage dedup is the existence check, which
	// skips both copies here because the song is already stored.
	assert.Zero(t, result.Data.TotalAdded)
	for _, sr := range result.Data.SiteResults {
		assert.Equal(t, 1, sr.Skipped, "site %s", sr.Site)
	}
	n, err := store.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDescriptorsAndConnectionTests(t *testing.T) {
	a := &stubAdapter{name: "netease", enabled: true,
		testResult: adapter.ConnectionTestResult{Success: true, Accessible: true}}
	b := &stubAdapter{name: "kugou", enabled: false,
		testResult: adapter.ConnectionTestResult{Error: "blocked"}}

	orch, _ := newTestOrchestrator(t, a, b)

	descs := orch.Descriptors()
	require.Len(t, descs, 2)
	assert.Equal(t, "netease", descs[0].SiteName)
	assert.True(t, descs[0].Enabled)
	assert.False(t, descs[1].Enabled)

	// Disabled sites are still probed; only scheduling excludes them.
	results := orch.TestAllConnections(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results[0].Accessible)
	assert.Equal(t, "blocked", results[1].Error)
}

func TestSetSiteEnabled(t *testing.T) {
	netease := adapter.NewNeteaseAdapter(adapter.SiteConfig{Name: "netease", Enabled: true})
	orch, _ := newTestOrchestrator(t)
	orch.adapters["netease"] = netease
	orch.order = append(orch.order, "netease")

	assert.True(t, netease.IsEnabled())
	orch.SetSiteEnabled("netease", false)
	assert.False(t, netease.IsEnabled())
	orch.SetSiteEnabled("no-such-site", true) // no-op
}
