package adapter

import (
	"context"
	"fmt"
	"strings"
)

// KugouAdapter crawls the Kugou JSON API.
type KugouAdapter struct {
	*BaseAdapter
}

// NewKugouAdapter builds the Kugou adapter from its site config.
func NewKugouAdapter(cfg SiteConfig) *KugouAdapter {
	return &KugouAdapter{BaseAdapter: NewBaseAdapter(cfg)}
}

// SupportedTypes lists the crawl types Kugou serves.
func (a *KugouAdapter) SupportedTypes() []CrawlType {
	return []CrawlType{CrawlRecommended, CrawlPopular, CrawlSearch, CrawlByGenre}
}

type kugouSong struct {
	Hash       string `json:"hash"`
	SongName   string `json:"songname"`
	SingerName string `json:"singername"`
	AlbumName  string `json:"album_name"`
	Duration   int    `json:"duration"` // seconds
	FileSize   int64  `json:"filesize"`
}

type kugouResponse struct {
	Status int `json:"status"`
	Data   struct {
		Info []kugouSong `json:"info"`
	} `json:"data"`
}

func (a *KugouAdapter) convert(raw []kugouSong) []CandidateSong {
	songs := make([]CandidateSong, 0, len(raw))
	for _, s := range raw {
		title := s.SongName
		artist := s.SingerName
		// Kugou often packs "artist - title" into songname.
		if artist == "" {
			if idx := strings.Index(title, " - "); idx > 0 {
				artist = title[:idx]
				title = title[idx+3:]
			}
		}
		songs = append(songs, CandidateSong{
			Title:           title,
			Artist:          artist,
			Album:           s.AlbumName,
			DurationSeconds: s.Duration,
			FileSizeBytes:   s.FileSize,
			SourceID:        s.Hash,
			SourceURL:       fmt.Sprintf("%s/song/#hash=%s", strings.TrimRight(a.BaseURL(), "/"), s.Hash),
		})
	}
	return songs
}

func (a *KugouAdapter) crawl(ctx context.Context, ct CrawlType, values map[string]string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	url, err := a.TemplateURL(ct, values)
	if err != nil {
		return nil, err
	}
	var resp kugouResponse
	if err := a.FetchJSON(ctx, url, opts, &resp); err != nil {
		return nil, err
	}
	if resp.Status != 1 {
		return nil, fmt.Errorf("kugou api returned status %d", resp.Status)
	}

	songs := a.ApplyFilters(a.convert(resp.Data.Info), optFilters(opts))
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	return songs, nil
}

func (a *KugouAdapter) CrawlRecommended(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlRecommended, limitValues(limit), limit, opts)
}

func (a *KugouAdapter) CrawlPopular(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlPopular, limitValues(limit), limit, opts)
}

func (a *KugouAdapter) CrawlLatest(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return nil, fmt.Errorf("site %s does not support crawl type %q", a.SiteName(), CrawlLatest)
}

func (a *KugouAdapter) SearchMusic(ctx context.Context, query string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["query"] = query
	return a.crawl(ctx, CrawlSearch, values, limit, opts)
}

func (a *KugouAdapter) CrawlByArtist(ctx context.Context, artist string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return nil, fmt.Errorf("site %s does not support crawl type %q", a.SiteName(), CrawlByArtist)
}

func (a *KugouAdapter) CrawlByGenre(ctx context.Context, genre string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["genre"] = genre
	return a.crawl(ctx, CrawlByGenre, values, limit, opts)
}

func (a *KugouAdapter) GetSongDetails(ctx context.Context, sourceID string) (*CandidateSong, error) {
	songs, err := a.crawl(ctx, CrawlDetail, map[string]string{"id": sourceID}, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &songs[0], nil
}
