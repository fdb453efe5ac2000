package index

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// fuzzyThreshold is the minimum Levenshtein similarity (0..1) a fuzzy
// artist match must clear to be surfaced.
const fuzzyThreshold = 0.6

// SearchByArtist returns matching artist names. Fuzzy ranking (by edit
// distance) only kicks in when no exact or substring match exists, per
// spec §4.4.
func (idx *Index) SearchByArtist(query string, caseSensitive, fuzzy bool) []string {
	artists := idx.SortedArtists()
	q := query
	if !caseSensitive {
		q = strings.ToLower(q)
	}

	var hits []string
	for _, artist := range artists {
		candidate := artist
		if !caseSensitive {
			candidate = strings.ToLower(candidate)
		}
		if strings.Contains(candidate, q) {
			hits = append(hits, artist)
		}
	}
	if len(hits) > 0 || !fuzzy {
		return hits
	}

	type ranked struct {
		name  string
		score float32
	}
	var candidates []ranked
	for _, artist := range artists {
		score, err := edlib.StringsSimilarity(q, strings.ToLower(artist), edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score >= fuzzyThreshold {
			candidates = append(candidates, ranked{name: artist, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	result := make([]string, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.name)
	}
	return result
}

// SearchByAlbum returns symbolic album paths whose album-name segment
// contains query, optionally restricted to one artist.
func (idx *Index) SearchByAlbum(query string, artist string) []string {
	q := strings.ToLower(query)
	var hits []string
	for albumPath := range allAlbums(idx) {
		parts := strings.SplitN(albumPath, "/", 3)
		if len(parts) < 3 {
			continue
		}
		if artist != "" && parts[1] != artist {
			continue
		}
		if strings.Contains(strings.ToLower(parts[2]), q) {
			hits = append(hits, albumPath)
		}
	}
	sort.Strings(hits)
	return hits
}

func allAlbums(idx *Index) map[string]struct{} {
	albums := map[string]struct{}{}
	for _, set := range idx.AlbumByArtist {
		for albumPath := range set {
			albums[albumPath] = struct{}{}
		}
	}
	return albums
}

// SearchByTrack returns Track objects whose base name contains query,
// optionally restricted by artist and/or album.
func (idx *Index) SearchByTrack(query, artist, album string) []*Track {
	q := strings.ToLower(query)
	var hits []*Track
	for _, t := range idx.Tracks {
		if artist != "" && t.Artist != artist {
			continue
		}
		if album != "" && t.AlbumPath != album {
			continue
		}
		if strings.Contains(strings.ToLower(t.BaseName), q) {
			hits = append(hits, t)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].TrackPath < hits[j].TrackPath })
	return hits
}

// MissingComponent returns every track that has no file recorded for
// component, matching spec §8.3 scenario S2.
func (idx *Index) MissingComponent(component string) []*Track {
	var hits []*Track
	for _, t := range idx.Tracks {
		if len(t.Files[component]) == 0 {
			hits = append(hits, t)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].TrackPath < hits[j].TrackPath })
	return hits
}
