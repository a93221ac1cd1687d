package musicmodule

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"melodyhub/internal/adapter"
	"melodyhub/internal/database"
)

// SongStore is the persistence collaborator for song records. The crawl
// subsystem goes through it for every lookup, create and remove.
type SongStore struct {
	db *gorm.DB
}

// NewSongStore creates a store over the given database handle.
func NewSongStore(db *gorm.DB) *SongStore {
	return &SongStore{db: db}
}

// FindOne returns the first song matching the query, or nil when none does.
func (s *SongStore) FindOne(query interface{}, args ...interface{}) (*database.Song, error) {
	var song database.Song
	err := s.db.Where(query, args...).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("song lookup: %w", err)
	}
	return &song, nil
}

// FindMany returns up to limit songs matching the query.
func (s *SongStore) FindMany(limit int, query interface{}, args ...interface{}) ([]database.Song, error) {
	var songs []database.Song
	q := s.db
	if query != nil {
		q = q.Where(query, args...)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("song query: %w", err)
	}
	return songs, nil
}

// Create persists a new song.
func (s *SongStore) Create(song *database.Song) error {
	if err := s.db.Create(song).Error; err != nil {
		return fmt.Errorf("creating song %q: %w", song.Title, err)
	}
	return nil
}

// Save updates an existing song.
func (s *SongStore) Save(song *database.Song) error {
	if err := s.db.Save(song).Error; err != nil {
		return fmt.Errorf("saving song %s: %w", song.ID, err)
	}
	return nil
}

// Remove deletes a song.
func (s *SongStore) Remove(song *database.Song) error {
	if err := s.db.Delete(song).Error; err != nil {
		return fmt.Errorf("removing song %s: %w", song.ID, err)
	}
	return nil
}

// Count returns the number of stored songs.
func (s *SongStore) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&database.Song{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting songs: %w", err)
	}
	return n, nil
}

// All returns every stored song.
func (s *SongStore) All() ([]database.Song, error) {
	return s.FindMany(0, nil)
}

// FindByExactIdentity looks a candidate up by any of its exact identities:
// trimmed title+artist, source id (scoped to the source site when given), or
// source URL. Each condition is tried only when the candidate carries the
// corresponding field.
func (s *SongStore) FindByExactIdentity(c adapter.CandidateSong, sourceSite string) (*database.Song, error) {
	title := strings.TrimSpace(c.Title)
	artist := strings.TrimSpace(c.Artist)

	if title != "" && artist != "" {
		song, err := s.FindOne("title = ? AND artist = ?", title, artist)
		if err != nil || song != nil {
			return song, err
		}
	}
	if c.SourceID != "" {
		var (
			song *database.Song
			err  error
		)
		if sourceSite != "" {
			song, err = s.FindOne("source_site = ? AND source_id = ?", sourceSite, c.SourceID)
		} else {
			song, err = s.FindOne("source_id = ?", c.SourceID)
		}
		if err != nil || song != nil {
			return song, err
		}
	}
	if c.SourceURL != "" {
		song, err := s.FindOne("source_url = ?", c.SourceURL)
		if err != nil || song != nil {
			return song, err
		}
	}
	return nil, nil
}

// FindFuzzyCandidates fetches up to limit rows loosely related to the
// candidate: any title token longer than two runes as a substring, the artist
// as a substring, or a duration within max(10s, 10%) of the candidate's.
func (s *SongStore) FindFuzzyCandidates(c adapter.CandidateSong, limit int) ([]database.Song, error) {
	var (
		conds []string
		args  []interface{}
	)

	for _, tok := range strings.Fields(c.Title) {
		if len([]rune(tok)) > 2 {
			conds = append(conds, "title LIKE ?")
			args = append(args, "%"+tok+"%")
		}
	}
	if artist := strings.TrimSpace(c.Artist); artist != "" {
		conds = append(conds, "artist LIKE ?")
		args = append(args, "%"+artist+"%")
	}
	if c.DurationSeconds > 0 {
		window := c.DurationSeconds / 10
		if window < 10 {
			window = 10
		}
		conds = append(conds, "(duration_seconds BETWEEN ? AND ?)")
		args = append(args, c.DurationSeconds-window, c.DurationSeconds+window)
	}

	if len(conds) == 0 {
		return nil, nil
	}
	return s.FindMany(limit, strings.Join(conds, " OR "), args...)
}
