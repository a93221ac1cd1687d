package crawlermodule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"melodyhub/internal/adapter"
	"melodyhub/internal/database"
	"melodyhub/internal/modules/musicmodule"
	"melodyhub/internal/similarity"
)

// DetectionWeights tune the fuzzy layer of duplicate detection. The weighted
// score is Title*0.4 + Artist*0.3 + Album*0.1 + Duration*0.1 by default, so a
// perfect fuzzy match tops out at 0.9.
type DetectionWeights struct {
	Title     float64 `json:"title"`
	Artist    float64 `json:"artist"`
	Album     float64 `json:"album"`
	Duration  float64 `json:"duration"`
	Threshold float64 `json:"threshold"`
}

// DefaultDetectionWeights returns the stock weights.
func DefaultDetectionWeights() DetectionWeights {
	return DetectionWeights{
		Title:     0.4,
		Artist:    0.3,
		Album:     0.1,
		Duration:  0.1,
		Threshold: 0.8,
	}
}

// MatchType names the detection layer that flagged a duplicate.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchFuzzy       MatchType = "fuzzy"
	MatchFingerprint MatchType = "fingerprint"
	MatchMetadata    MatchType = "metadata"
)

// MatchDetails carries the per-field similarities behind a detection result.
type MatchDetails struct {
	TitleSimilarity    float64 `json:"title_similarity"`
	ArtistSimilarity   float64 `json:"artist_similarity"`
	AlbumSimilarity    float64 `json:"album_similarity"`
	DurationSimilarity float64 `json:"duration_similarity"`
}

// DetectionResult is the outcome of running a candidate through the
// detection chain.
type DetectionResult struct {
	IsDuplicate bool           `json:"is_duplicate"`
	Confidence  float64        `json:"confidence"`
	MatchType   MatchType      `json:"match_type,omitempty"`
	Matched     *database.Song `json:"matched,omitempty"`
	Details     MatchDetails   `json:"details"`
}

// CleanupResult summarizes a duplicate cleanup pass.
type CleanupResult struct {
	DryRun            bool     `json:"dry_run"`
	DuplicatesFound   int      `json:"duplicates_found"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	Errors            []string `json:"errors,omitempty"`
}

// DuplicateStats summarizes how much of the library is duplicated.
type DuplicateStats struct {
	TotalSongs      int64   `json:"total_songs"`
	DuplicateGroups int     `json:"duplicate_groups"`
	DuplicateSongs  int     `json:"duplicate_songs"`
	DuplicateRate   float64 `json:"duplicate_rate"`
}

const (
	fuzzyCandidateLimit    = 20
	metadataCandidateLimit = 50
)

// DuplicateDetector runs candidates through layered detection against the
// stored library: exact identity, weighted fuzzy similarity, audio
// fingerprint, then relaxed metadata matching. Detection is best-effort; any
// layer error is logged and the candidate is treated as new.
type DuplicateDetector struct {
	store *musicmodule.SongStore
	log   hclog.Logger
}

// NewDuplicateDetector creates a detector over the given store.
func NewDuplicateDetector(store *musicmodule.SongStore, log hclog.Logger) *DuplicateDetector {
	return &DuplicateDetector{store: store, log: log}
}

// DetectDuplicate runs the full detection chain for one candidate. A nil
// weights argument uses the defaults. Errors never propagate: detection
// failures fall open to "not a duplicate" so a broken lookup cannot stall a
// crawl.
func (d *DuplicateDetector) DetectDuplicate(c adapter.CandidateSong, weights *DetectionWeights) DetectionResult {
	w := DefaultDetectionWeights()
	if weights != nil {
		w = *weights
	}

	result, err := d.detect(c, w)
	if err != nil {
		d.log.Warn("duplicate detection failed, treating candidate as new",
			"title", c.Title, "artist", c.Artist, "error", err)
		return DetectionResult{}
	}
	return result
}

func (d *DuplicateDetector) detect(c adapter.CandidateSong, w DetectionWeights) (DetectionResult, error) {
	// Layer 1: exact identity.
	exact, err := d.store.FindByExactIdentity(c, "")
	if err != nil {
		return DetectionResult{}, fmt.Errorf("exact match: %w", err)
	}
	if exact != nil {
		_, details := scoreCandidate(c, *exact, w)
		return DetectionResult{
			IsDuplicate: true,
			Confidence:  1.0,
			MatchType:   MatchExact,
			Matched:     exact,
			Details:     details,
		}, nil
	}

	// Layer 2: weighted fuzzy similarity over a small prefiltered set.
	fuzzy, err := d.matchFuzzy(c, w)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("fuzzy match: %w", err)
	}
	if fuzzy != nil {
		return *fuzzy, nil
	}

	// Layer 3: audio fingerprint. Candidates carry no fingerprint data yet,
	// so this layer never matches; it keeps its place in the chain for when
	// audio analysis lands.
	if fp := d.matchFingerprint(c); fp != nil {
		return *fp, nil
	}

	// Layer 4: relaxed metadata matching over a wider set.
	meta, err := d.matchMetadata(c, w)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("metadata match: %w", err)
	}
	if meta != nil {
		return *meta, nil
	}

	return DetectionResult{}, nil
}

func (d *DuplicateDetector) matchFuzzy(c adapter.CandidateSong, w DetectionWeights) (*DetectionResult, error) {
	candidates, err := d.store.FindFuzzyCandidates(c, fuzzyCandidateLimit)
	if err != nil {
		return nil, err
	}

	var (
		best        *database.Song
		bestScore   float64
		bestDetails MatchDetails
	)
	for i := range candidates {
		score, details := scoreCandidate(c, candidates[i], w)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
			bestDetails = details
		}
	}

	if best == nil || bestScore < w.Threshold {
		return nil, nil
	}
	return &DetectionResult{
		IsDuplicate: true,
		Confidence:  bestScore,
		MatchType:   MatchFuzzy,
		Matched:     best,
		Details:     bestDetails,
	}, nil
}

func (d *DuplicateDetector) matchFingerprint(_ adapter.CandidateSong) *DetectionResult {
	return nil
}

// matchMetadata rescans a wider candidate set with bonuses for signals the
// weighted score underrates: the stored artist appearing inside the candidate
// title (common for "artist - title" crawl results), a near-identical artist,
// and a near-identical duration.
func (d *DuplicateDetector) matchMetadata(c adapter.CandidateSong, w DetectionWeights) (*DetectionResult, error) {
	candidates, err := d.store.FindFuzzyCandidates(c, metadataCandidateLimit)
	if err != nil {
		return nil, err
	}

	title := strings.ToLower(c.Title)

	var (
		best        *database.Song
		bestScore   float64
		bestDetails MatchDetails
	)
	for i := range candidates {
		score, details := scoreCandidate(c, candidates[i], w)

		if artist := strings.ToLower(candidates[i].Artist); artist != "" && strings.Contains(title, artist) {
			score += 0.10
		}
		if details.ArtistSimilarity > 0.9 {
			score += 0.10
		}
		if details.DurationSimilarity > 0.95 {
			score += 0.05
		}
		if score > 1.0 {
			score = 1.0
		}

		if score > bestScore {
			best = &candidates[i]
			bestScore = score
			bestDetails = details
		}
	}

	if best == nil || bestScore < w.Threshold {
		return nil, nil
	}
	return &DetectionResult{
		IsDuplicate: true,
		Confidence:  bestScore,
		MatchType:   MatchMetadata,
		Matched:     best,
		Details:     bestDetails,
	}, nil
}

func scoreCandidate(c adapter.CandidateSong, s database.Song, w DetectionWeights) (float64, MatchDetails) {
	details := MatchDetails{
		TitleSimilarity:    similarity.StringSimilarity(c.Title, s.Title),
		ArtistSimilarity:   similarity.StringSimilarity(c.Artist, s.Artist),
		AlbumSimilarity:    similarity.StringSimilarity(c.Album, s.Album),
		DurationSimilarity: similarity.DurationSimilarity(c.DurationSeconds, s.DurationSeconds),
	}
	score := w.Title*details.TitleSimilarity +
		w.Artist*details.ArtistSimilarity +
		w.Album*details.AlbumSimilarity +
		w.Duration*details.DurationSimilarity
	return score, details
}

// BatchDetectDuplicates runs detection over a batch and returns results for
// the flagged candidates only, keyed by batch index.
func (d *DuplicateDetector) BatchDetectDuplicates(candidates []adapter.CandidateSong, weights *DetectionWeights) map[int]DetectionResult {
	flagged := make(map[int]DetectionResult)
	for i, c := range candidates {
		if result := d.DetectDuplicate(c, weights); result.IsDuplicate {
			flagged[i] = result
		}
	}
	return flagged
}

// CleanupDuplicates groups the stored library by normalized title+artist and
// removes all but the oldest row of each group. With dryRun set it only
// reports what would be removed.
func (d *DuplicateDetector) CleanupDuplicates(dryRun bool) (CleanupResult, error) {
	songs, err := d.store.All()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("loading songs: %w", err)
	}

	result := CleanupResult{DryRun: dryRun}
	for _, group := range groupByIdentity(songs) {
		if len(group) < 2 {
			continue
		}
		result.DuplicatesFound += len(group) - 1
		if dryRun {
			continue
		}
		for _, song := range group[1:] {
			if err := d.store.Remove(song); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.DuplicatesRemoved++
		}
	}

	d.log.Info("duplicate cleanup finished",
		"dry_run", dryRun,
		"found", result.DuplicatesFound,
		"removed", result.DuplicatesRemoved,
		"errors", len(result.Errors))
	return result, nil
}

// Stats reports how much of the stored library duplicates itself under
// normalized title+artist identity.
func (d *DuplicateDetector) Stats() (DuplicateStats, error) {
	songs, err := d.store.All()
	if err != nil {
		return DuplicateStats{}, fmt.Errorf("loading songs: %w", err)
	}

	stats := DuplicateStats{TotalSongs: int64(len(songs))}
	for _, group := range groupByIdentity(songs) {
		if len(group) < 2 {
			continue
		}
		stats.DuplicateGroups++
		stats.DuplicateSongs += len(group) - 1
	}
	if stats.TotalSongs > 0 {
		stats.DuplicateRate = float64(stats.DuplicateSongs) / float64(stats.TotalSongs)
	}
	return stats, nil
}

// groupByIdentity buckets songs by normalized title+artist, ordered oldest
// first inside each bucket so the keeper is always the earliest row.
func groupByIdentity(songs []database.Song) map[string][]*database.Song {
	groups := make(map[string][]*database.Song)
	for i := range songs {
		key := similarity.NormalizeText(songs[i].Title) + "|" + similarity.NormalizeText(songs[i].Artist)
		groups[key] = append(groups[key], &songs[i])
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
	}
	return groups
}
