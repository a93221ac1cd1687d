package adapter

import (
	"context"
	"fmt"
	"strings"
)

// QQMusicAdapter crawls the QQ Music JSON API.
type QQMusicAdapter struct {
	*BaseAdapter
}

// NewQQMusicAdapter builds the QQ Music adapter from its site config.
func NewQQMusicAdapter(cfg SiteConfig) *QQMusicAdapter {
	return &QQMusicAdapter{BaseAdapter: NewBaseAdapter(cfg)}
}

// SupportedTypes lists the crawl types QQ Music serves. The API exposes no
// usable by-genre listing.
func (a *QQMusicAdapter) SupportedTypes() []CrawlType {
	return []CrawlType{CrawlRecommended, CrawlPopular, CrawlLatest, CrawlSearch, CrawlByArtist}
}

type qqSong struct {
	SongMid  string `json:"songmid"`
	SongName string `json:"songname"`
	Singer   []struct {
		Name string `json:"name"`
	} `json:"singer"`
	AlbumName string `json:"albumname"`
	AlbumMid  string `json:"albummid"`
	Interval  int    `json:"interval"` // seconds
}

type qqResponse struct {
	Code int `json:"code"`
	Data struct {
		Song struct {
			List []qqSong `json:"list"`
		} `json:"song"`
		List []qqSong `json:"list"`
	} `json:"data"`
}

func (a *QQMusicAdapter) convert(raw []qqSong) []CandidateSong {
	songs := make([]CandidateSong, 0, len(raw))
	for _, s := range raw {
		singers := make([]string, 0, len(s.Singer))
		for _, sg := range s.Singer {
			singers = append(singers, sg.Name)
		}
		cover := ""
		if s.AlbumMid != "" {
			cover = fmt.Sprintf("https://y.gtimg.cn/music/photo_new/T002R300x300M000%s.jpg", s.AlbumMid)
		}
		songs = append(songs, CandidateSong{
			Title:           s.SongName,
			Artist:          strings.Join(singers, "/"),
			Album:           s.AlbumName,
			DurationSeconds: s.Interval,
			CoverURL:        cover,
			SourceID:        s.SongMid,
			SourceURL:       fmt.Sprintf("%s/n/ryqq/songDetail/%s", strings.TrimRight(a.BaseURL(), "/"), s.SongMid),
		})
	}
	return songs
}

func (a *QQMusicAdapter) crawl(ctx context.Context, ct CrawlType, values map[string]string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	url, err := a.TemplateURL(ct, values)
	if err != nil {
		return nil, err
	}
	var resp qqResponse
	if err := a.FetchJSON(ctx, url, opts, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("qq music api returned code %d", resp.Code)
	}

	raw := resp.Data.Song.List
	if len(raw) == 0 {
		raw = resp.Data.List
	}
	songs := a.ApplyFilters(a.convert(raw), optFilters(opts))
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	return songs, nil
}

func (a *QQMusicAdapter) CrawlRecommended(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlRecommended, limitValues(limit), limit, opts)
}

func (a *QQMusicAdapter) CrawlPopular(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlPopular, limitValues(limit), limit, opts)
}

func (a *QQMusicAdapter) CrawlLatest(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlLatest, limitValues(limit), limit, opts)
}

func (a *QQMusicAdapter) SearchMusic(ctx context.Context, query string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["query"] = query
	return a.crawl(ctx, CrawlSearch, values, limit, opts)
}

func (a *QQMusicAdapter) CrawlByArtist(ctx context.Context, artist string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["artist"] = artist
	return a.crawl(ctx, CrawlByArtist, values, limit, opts)
}

func (a *QQMusicAdapter) CrawlByGenre(ctx context.Context, genre string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return nil, fmt.Errorf("site %s does not support crawl type %q", a.SiteName(), CrawlByGenre)
}

func (a *QQMusicAdapter) GetSongDetails(ctx context.Context, sourceID string) (*CandidateSong, error) {
	songs, err := a.crawl(ctx, CrawlDetail, map[string]string{"id": sourceID}, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &songs[0], nil
}
