package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Song is a persisted song record. The crawl subsystem creates and removes
// songs but never rewrites an existing song's content fields.
type Song struct {
	ID              string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title           string `gorm:"not null;index:idx_songs_title_artist" json:"title"`
	Artist          string `gorm:"not null;index:idx_songs_title_artist" json:"artist"`
	Album           string `json:"album,omitempty"`
	Genre           string `gorm:"index" json:"genre,omitempty"`
	DurationSeconds int    `gorm:"index" json:"duration_seconds,omitempty"`
	Year            int    `json:"year,omitempty"`
	CoverURL        string `json:"cover_url,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`

	// Source identity. The composite index backs the exists-before-create
	// check; uniqueness is not enforced here because most manually created
	// rows carry no source identity at all.
	SourceSite string `gorm:"index:idx_songs_source" json:"source_site,omitempty"`
	SourceID   string `gorm:"index:idx_songs_source" json:"source_id,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`

	Lyrics        string `json:"lyrics,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	PlayCount     int64  `json:"play_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a uuid identity when none is set.
func (s *Song) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
