package crawlermodule

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"melodyhub/internal/adapter"
	"melodyhub/internal/database"
	"melodyhub/internal/modules/musicmodule"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&database.Song{}))
	return db
}

func newTestDetector(t *testing.T) (*DuplicateDetector, *musicmodule.SongStore) {
	t.Helper()
	store := musicmodule.NewSongStore(newTestDB(t))
	return NewDuplicateDetector(store, hclog.NewNullLogger()), store
}

func TestDetectDuplicateExact(t *testing.T) {
	detector, store := newTestDetector(t)
	stored := database.Song{Title: "晴天", Artist: "周杰伦", Album: "叶惠美", DurationSeconds: 269}
	require.NoError(t, store.Create(&stored))

	result := detector.DetectDuplicate(adapter.CandidateSong{
		Title: "晴天", Artist: "周杰伦", Album: "叶惠美", DurationSeconds: 269,
	}, nil)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, MatchExact, result.MatchType)
	require.NotNil(t, result.Matched)
	assert.Equal(t, stored.ID, result.Matched.ID)
	assert.Equal(t, 1.0, result.Details.TitleSimilarity)
}

func TestDetectDuplicateFuzzy(t *testing.T) {
	detector, store := newTestDetector(t)
	stored := database.Song{Title: "安静的夜晚", Artist: "周杰伦", Album: "八度空间", DurationSeconds: 270}
	require.NoError(t, store.Create(&stored))

	// Title is one rune off, everything else matches: weighted score
	// 0.4*(5/6) + 0.3 + 0.1 + 0.1, just over the 0.8 threshold.
	result := detector.DetectDuplicate(adapter.CandidateSong{
		Title: "安静的夜晚晚", Artist: "周杰伦", Album: "八度空间", DurationSeconds: 270,
	}, nil)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, MatchFuzzy, result.MatchType)
	assert.InDelta(t, 0.833, result.Confidence, 0.01)
	require.NotNil(t, result.Matched)
	assert.Equal(t, stored.ID, result.Matched.ID)
}

func TestDetectDuplicateMetadata(t *testing.T) {
	detector, store := newTestDetector(t)
	require.NoError(t, store.Create(&database.Song{
		Title: "安静的夜晚", Artist: "周杰伦", Album: "八度空间", DurationSeconds: 270,
	}))

	// Weighted score alone is 0.71 (no album, title a bit off, duration
	// near): below the fuzzy threshold, rescued by the identical-artist
	// bonus in the metadata layer.
	result := detector.DetectDuplicate(adapter.CandidateSong{
		Title: "安静的夜", Artist: "周杰伦", DurationSeconds: 272,
	}, nil)

	assert.True(t, result.IsDuplicate)
	assert.Equal(t, MatchMetadata, result.MatchType)
	assert.InDelta(t, 0.81, result.Confidence, 0.01)
}

func TestDetectDuplicateNoMatch(t *testing.T) {
	detector, store := newTestDetector(t)
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}))

	result := detector.DetectDuplicate(adapter.CandidateSong{
		Title: "Completely Different", Artist: "Someone Else", DurationSeconds: 95,
	}, nil)

	assert.False(t, result.IsDuplicate)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.MatchType)
	assert.Nil(t, result.Matched)
}

func TestDetectDuplicateFailsOpen(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	detector := NewDuplicateDetector(musicmodule.NewSongStore(db), hclog.NewNullLogger())
	mock.ExpectQuery(`SELECT \* FROM "songs"`).WillReturnError(assert.AnError)

	result := detector.DetectDuplicate(adapter.CandidateSong{Title: "晴天", Artist: "周杰伦"}, nil)

	assert.False(t, result.IsDuplicate, "a broken lookup must not flag the candidate")
	assert.Zero(t, result.Confidence)
}

func TestBatchDetectDuplicates(t *testing.T) {
	detector, store := newTestDetector(t)
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269}))

	flagged := detector.BatchDetectDuplicates([]adapter.CandidateSong{
		{Title: "全新的歌", Artist: "新人", DurationSeconds: 95},
		{Title: "晴天", Artist: "周杰伦", DurationSeconds: 269},
	}, nil)

	require.Len(t, flagged, 1)
	assert.Equal(t, MatchExact, flagged[1].MatchType)
}

func TestCleanupDuplicates(t *testing.T) {
	detector, store := newTestDetector(t)

	keeper := database.Song{Title: "晴天", Artist: "周杰伦", CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, store.Create(&keeper))
	require.NoError(t, store.Create(&database.Song{Title: " 晴天 ", Artist: "周杰伦"}))
	require.NoError(t, store.Create(&database.Song{Title: "七里香", Artist: "周杰伦"}))

	t.Run("dry run reports without removing", func(t *testing.T) {
		result, err := detector.CleanupDuplicates(true)
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.Equal(t, 1, result.DuplicatesFound)
		assert.Zero(t, result.DuplicatesRemoved)

		n, err := store.Count()
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})

	t.Run("removal keeps the oldest row", func(t *testing.T) {
		result, err := detector.CleanupDuplicates(false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.DuplicatesFound)
		assert.Equal(t, 1, result.DuplicatesRemoved)
		assert.Empty(t, result.Errors)

		n, err := store.Count()
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		remaining, err := store.FindOne("title = ?", "晴天")
		require.NoError(t, err)
		require.NotNil(t, remaining)
		assert.Equal(t, keeper.ID, remaining.ID)
	})
}

func TestDuplicateStats(t *testing.T) {
	detector, store := newTestDetector(t)
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦"}))
	require.NoError(t, store.Create(&database.Song{Title: "晴天", Artist: "周杰伦"}))
	require.NoError(t, store.Create(&database.Song{Title: "七里香", Artist: "周杰伦"}))

	stats, err := detector.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalSongs)
	assert.Equal(t, 1, stats.DuplicateGroups)
	assert.Equal(t, 1, stats.DuplicateSongs)
	assert.InDelta(t, 1.0/3.0, stats.DuplicateRate, 0.001)
}
