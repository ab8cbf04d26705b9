// Package search ranks extracted records for the incremental query box.
// Filtering is pure and in-memory over a prebuilt record set, cheap enough
// to run on every keystroke; it never touches the database.
package search

import (
	"sort"
	"strings"

	"github.com/halfdome/foxmarks/internal/places"
)

// ranked pairs an entry with its lowercased title so the sort comparator
// does not re-fold strings on every comparison.
type ranked struct {
	entry      places.Entry
	lowerTitle string
}

// Run filters and orders entries for a query.
//
// An empty or all-blank query returns the full set. Anything else keeps
// entries whose title or URL contains the query as a case-insensitive
// substring. Either way the order is: visit count descending, ties by title
// ascending case-insensitive, then URL ascending, then bookmarks before
// history. That order is total, so equal inputs always produce identical
// output.
//
// limit > 0 truncates the result; limit <= 0 means unlimited. The input
// slice is never modified.
func Run(query string, entries []places.Entry, limit int) []places.Entry {
	query = strings.TrimSpace(query)
	queryLower := strings.ToLower(query)

	matched := make([]ranked, 0, len(entries))
	for _, e := range entries {
		lowerTitle := strings.ToLower(e.Title)
		if query != "" &&
			!strings.Contains(lowerTitle, queryLower) &&
			!strings.Contains(strings.ToLower(e.URL), queryLower) {
			continue
		}
		matched = append(matched, ranked{entry: e, lowerTitle: lowerTitle})
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.entry.VisitCount != b.entry.VisitCount {
			return a.entry.VisitCount > b.entry.VisitCount
		}
		if a.lowerTitle != b.lowerTitle {
			return a.lowerTitle < b.lowerTitle
		}
		if a.entry.URL != b.entry.URL {
			return a.entry.URL < b.entry.URL
		}
		return a.entry.Kind < b.entry.Kind
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]places.Entry, len(matched))
	for i, r := range matched {
		out[i] = r.entry
	}
	return out
}
