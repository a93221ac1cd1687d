package crawlermodule

import (
	"context"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melodyhub/internal/adapter"
	"melodyhub/internal/database"
	"melodyhub/internal/events"
	"melodyhub/internal/modules/musicmodule"
)

// stubAdapter is an in-memory site adapter for runner and orchestrator tests.
// Every crawl method returns the canned songs or error; panicOnCrawl models a
// misbehaving adapter.
type stubAdapter struct {
	name         string
	enabled      bool
	songs        []adapter.CandidateSong
	err          error
	panicOnCrawl bool
	testResult   adapter.ConnectionTestResult
}

func (s *stubAdapter) SiteName() string { return s.name }
func (s *stubAdapter) BaseURL() string  { return "https://" + s.name + ".example" }
func (s *stubAdapter) IsEnabled() bool  { return s.enabled }
func (s *stubAdapter) SupportedTypes() []adapter.CrawlType {
	return []adapter.CrawlType{adapter.CrawlRecommended, adapter.CrawlSearch}
}

func (s *stubAdapter) TestConnection(context.Context) adapter.ConnectionTestResult {
	r := s.testResult
	r.Site = s.name
	return r
}

func (s *stubAdapter) crawl() ([]adapter.CandidateSong, error) {
	if s.panicOnCrawl {
		panic("stub adapter exploded")
	}
	return s.songs, s.err
}

func (s *stubAdapter) CrawlRecommended(context.Context, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) CrawlPopular(context.Context, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) CrawlLatest(context.Context, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) SearchMusic(context.Context, string, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) CrawlByArtist(context.Context, string, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) CrawlByGenre(context.Context, string, int, *adapter.CrawlOptions) ([]adapter.CandidateSong, error) {
	return s.crawl()
}
func (s *stubAdapter) GetSongDetails(context.Context, string) (*adapter.CandidateSong, error) {
	return nil, nil
}

func (s *stubAdapter) ValidateSongData(song adapter.CandidateSong) bool {
	return strings.TrimSpace(song.Title) != "" && strings.TrimSpace(song.Artist) != ""
}

func (s *stubAdapter) CleanSongData(song adapter.CandidateSong) adapter.CandidateSong {
	song.Title = strings.TrimSpace(song.Title)
	song.Artist = strings.TrimSpace(song.Artist)
	return song
}

func newTestRunner(t *testing.T, stub *stubAdapter) (*CrawlRunner, *musicmodule.SongStore) {
	t.Helper()
	store := musicmodule.NewSongStore(newTestDB(t))
	bus := events.NewBus(16)
	t.Cleanup(bus.Stop)
	return NewCrawlRunner(stub, store, bus, hclog.NewNullLogger()), store
}

func TestCrawlMusic(t *testing.T) {
	stub := &stubAdapter{
		name:    "netease",
		enabled: true,
		songs: []adapter.CandidateSong{
			{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269},
			{Title: "晴天 ", Artist: "周杰伦"}, // same song again after cleaning
			{Title: "无主之歌", Artist: ""},    // invalid, no artist
			{Title: "七里香", Artist: "周杰伦", Genre: "流行"},
		},
	}
	runner, store := newTestRunner(t, stub)
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}))

	result := runner.CrawlMusic(context.Background(), CrawlConfig{})

	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Equal(t, 4, result.Data.Crawled)
	assert.Equal(t, 1, result.Data.Added)
	assert.Equal(t, 1, result.Data.Skipped)
	assert.Zero(t, result.Data.Errors)
	require.Len(t, result.Data.Songs, 1)
	assert.Equal(t, "七里香", result.Data.Songs[0].Title)

	progress := runner.GetProgress()
	assert.Equal(t, StatusCompleted, progress.Status)
	assert.NotNil(t, progress.EndedAt)

	// The persisted record gets displayable defaults for the fields the
	// site omitted.
	saved, err := store.FindOne("title = ?", "七里香")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "未知专辑", saved.Album)
	assert.GreaterOrEqual(t, saved.DurationSeconds, 180)
	assert.LessOrEqual(t, saved.DurationSeconds, 300)
	assert.GreaterOrEqual(t, saved.Year, 1990)
	assert.Equal(t, "netease", saved.SourceSite)
}

func TestCrawlMusicBusyRejection(t *testing.T) {
	stub := &stubAdapter{name: "netease", enabled: true,
		songs: []adapter.CandidateSong{{Title: "晴天", Artist: "周杰伦"}}}
	runner, store := newTestRunner(t, stub)

	require.True(t, runner.progress.TryStart("previous run"))

	result := runner.CrawlMusic(context.Background(), CrawlConfig{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "already running")

	// The rejected start must not touch the in-flight run's state or the
	// library.
	progress := runner.GetProgress()
	assert.Equal(t, StatusRunning, progress.Status)
	assert.Equal(t, "previous run", progress.Message)

	n, err := store.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCrawlMusicAdapterFailure(t *testing.T) {
	stub := &stubAdapter{name: "netease", enabled: true, err: assert.AnError}
	runner, _ := newTestRunner(t, stub)

	result := runner.CrawlMusic(context.Background(), CrawlConfig{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "crawl failed")
	assert.Equal(t, StatusError, runner.GetProgress().Status)
}

func TestStopAndReset(t *testing.T) {
	stub := &stubAdapter{name: "netease", enabled: true}
	runner, _ := newTestRunner(t, stub)

	assert.False(t, runner.StopCrawling(), "nothing to stop while idle")

	require.True(t, runner.progress.TryStart("run"))
	assert.False(t, runner.ResetProgress(), "reset must not clobber a live run")
	assert.True(t, runner.StopCrawling())
	assert.Equal(t, StatusError, runner.GetProgress().Status)

	assert.True(t, runner.ResetProgress())
	assert.Equal(t, StatusIdle, runner.GetProgress().Status)
}
