package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// NeteaseAdapter crawls the NetEase Cloud Music JSON API.
type NeteaseAdapter struct {
	*BaseAdapter
}

// NewNeteaseAdapter builds the NetEase adapter from its site config.
func NewNeteaseAdapter(cfg SiteConfig) *NeteaseAdapter {
	return &NeteaseAdapter{BaseAdapter: NewBaseAdapter(cfg)}
}

// SupportedTypes lists every crawl type NetEase serves.
func (a *NeteaseAdapter) SupportedTypes() []CrawlType {
	return []CrawlType{CrawlRecommended, CrawlPopular, CrawlLatest, CrawlSearch, CrawlByArtist, CrawlByGenre}
}

type neteaseSong struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"album"`
	Duration int64 `json:"duration"` // milliseconds
}

type neteaseResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []neteaseSong `json:"songs"`
	} `json:"result"`
	Songs []neteaseSong `json:"songs"`
}

func (a *NeteaseAdapter) convert(raw []neteaseSong) []CandidateSong {
	songs := make([]CandidateSong, 0, len(raw))
	for _, s := range raw {
		artists := make([]string, 0, len(s.Artists))
		for _, ar := range s.Artists {
			artists = append(artists, ar.Name)
		}
		id := strconv.FormatInt(s.ID, 10)
		songs = append(songs, CandidateSong{
			Title:           s.Name,
			Artist:          strings.Join(artists, "/"),
			Album:           s.Album.Name,
			DurationSeconds: int(s.Duration / 1000),
			CoverURL:        s.Album.PicURL,
			SourceID:        id,
			SourceURL:       fmt.Sprintf("%s/#/song?id=%s", strings.TrimRight(a.BaseURL(), "/"), id),
		})
	}
	return songs
}

func (a *NeteaseAdapter) crawl(ctx context.Context, ct CrawlType, values map[string]string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	url, err := a.TemplateURL(ct, values)
	if err != nil {
		return nil, err
	}
	var resp neteaseResponse
	if err := a.FetchJSON(ctx, url, opts, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return nil, fmt.Errorf("netease api returned code %d", resp.Code)
	}

	raw := resp.Result.Songs
	if len(raw) == 0 {
		raw = resp.Songs
	}
	songs := a.ApplyFilters(a.convert(raw), optFilters(opts))
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}
	return songs, nil
}

func (a *NeteaseAdapter) CrawlRecommended(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlRecommended, limitValues(limit), limit, opts)
}

func (a *NeteaseAdapter) CrawlPopular(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlPopular, limitValues(limit), limit, opts)
}

func (a *NeteaseAdapter) CrawlLatest(ctx context.Context, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	return a.crawl(ctx, CrawlLatest, limitValues(limit), limit, opts)
}

func (a *NeteaseAdapter) SearchMusic(ctx context.Context, query string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["query"] = query
	return a.crawl(ctx, CrawlSearch, values, limit, opts)
}

func (a *NeteaseAdapter) CrawlByArtist(ctx context.Context, artist string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["artist"] = artist
	return a.crawl(ctx, CrawlByArtist, values, limit, opts)
}

func (a *NeteaseAdapter) CrawlByGenre(ctx context.Context, genre string, limit int, opts *CrawlOptions) ([]CandidateSong, error) {
	values := limitValues(limit)
	values["genre"] = genre
	return a.crawl(ctx, CrawlByGenre, values, limit, opts)
}

func (a *NeteaseAdapter) GetSongDetails(ctx context.Context, sourceID string) (*CandidateSong, error) {
	songs, err := a.crawl(ctx, CrawlDetail, map[string]string{"id": sourceID}, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, nil
	}
	return &songs[0], nil
}

// limitValues is the placeholder set shared by the listing templates.
func limitValues(limit int) map[string]string {
	return map[string]string{"limit": strconv.Itoa(limit)}
}

func optFilters(opts *CrawlOptions) *CrawlFilters {
	if opts == nil {
		return nil
	}
	return opts.Filters
}
