// Package catalog provides in-memory filtering and search over a loaded
// camera list. The UI layer feeds its dropdowns and search box from
// here; nothing in this package touches the network or disk.
package catalog

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilmfuzzy "github.com/sahilm/fuzzy"

	"github.com/matchmove/camdb/internal/domain"
)

// Options narrows a camera list. Empty fields match everything.
type Options struct {
	Make  string // Exact manufacturer match
	Type  string // Exact category match
	Query string // Case-insensitive substring of the model name
}

// Makes returns the distinct manufacturers, sorted.
func Makes(cameras []domain.Camera) []string {
	return distinct(cameras, func(c domain.Camera) string { return c.Make })
}

// Types returns the distinct category tags, sorted.
func Types(cameras []domain.Camera) []string {
	return distinct(cameras, func(c domain.Camera) string { return c.Type })
}

func distinct(cameras []domain.Camera, field func(domain.Camera) string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, c := range cameras {
		v := field(c)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Filter applies make, type and name-substring criteria.
func Filter(cameras []domain.Camera, opts Options) []domain.Camera {
	query := strings.ToLower(opts.Query)

	var filtered []domain.Camera
	for _, c := range cameras {
		if opts.Make != "" && c.Make != opts.Make {
			continue
		}
		if opts.Type != "" && c.Type != opts.Type {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// Rank performs fuzzy matching of query against camera display names
// and returns the matching cameras ordered best-first.
func Rank(cameras []domain.Camera, query string) []domain.Camera {
	if query == "" {
		return nil
	}

	names := make([]string, len(cameras))
	for i, c := range cameras {
		names[i] = c.DisplayName()
	}

	matches := fuzzy.RankFindFold(query, names)
	sort.Sort(matches)

	results := make([]domain.Camera, 0, len(matches))
	for _, m := range matches {
		results = append(results, cameras[m.OriginalIndex])
	}
	return results
}

// Index is a prebuilt search index over a camera list, implementing
// sahilm/fuzzy.Source so repeated searches avoid re-allocating the
// name table.
type Index struct {
	cameras    []domain.Camera
	lowerNames []string
}

// NewIndex builds an index with pre-computed lowercase display names.
func NewIndex(cameras []domain.Camera) *Index {
	idx := &Index{
		cameras:    cameras,
		lowerNames: make([]string, len(cameras)),
	}
	for i, c := range cameras {
		idx.lowerNames[i] = strings.ToLower(c.DisplayName())
	}
	return idx
}

// String returns the lowercase display name at i (implements fuzzy.Source).
func (idx *Index) String(i int) string { return idx.lowerNames[i] }

// Len returns the number of indexed cameras (implements fuzzy.Source).
func (idx *Index) Len() int { return len(idx.cameras) }

// Match is one ranked search hit with character positions for highlighting.
type Match struct {
	Camera         domain.Camera
	Score          int
	MatchedIndexes []int
}

// Search returns ranked fuzzy matches for query, best-first.
func (idx *Index) Search(query string) []Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	found := sahilmfuzzy.FindFrom(query, idx)
	matches := make([]Match, len(found))
	for i, f := range found {
		matches[i] = Match{
			Camera:         idx.cameras[f.Index],
			Score:          f.Score,
			MatchedIndexes: f.MatchedIndexes,
		}
	}
	return matches
}
