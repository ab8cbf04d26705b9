// Package places extracts searchable records from a places database
// snapshot. Bookmarks and history are two independent record kinds: a URL
// that is both bookmarked and visited yields one entry of each kind.
package places

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/halfdome/foxmarks/internal/logging"
)

// ErrBadSchema indicates the database does not look like a places database:
// a required table is missing or a query failed against its schema. Callers
// treat this as non-fatal and keep serving their previous record set.
var ErrBadSchema = fmt.Errorf("unrecognized places schema")

// Kind discriminates the two record sources.
type Kind uint8

const (
	KindBookmark Kind = iota
	KindHistory
)

func (k Kind) String() string {
	switch k {
	case KindBookmark:
		return "bookmark"
	case KindHistory:
		return "history"
	default:
		return "unknown"
	}
}

// Entry is one searchable record. URL is never empty; Title falls back to
// the URL when the browser stored none.
type Entry struct {
	Title      string
	URL        string
	VisitCount int64
	Kind       Kind
}

// requiredTables must all exist before extraction queries run.
var requiredTables = []string{"moz_places", "moz_bookmarks", "moz_historyvisits"}

// bookmarkQuery returns one row per bookmarked place. The LEFT JOIN against
// per-place visit counts keeps never-visited bookmarks alive with count 0.
// Hidden places (redirect targets and the like) are excluded.
const bookmarkQuery = `
SELECT p.url,
       COALESCE(MAX(NULLIF(b.title, '')), NULLIF(p.title, ''), ''),
       COALESCE(v.cnt, 0)
FROM moz_bookmarks b
JOIN moz_places p ON p.id = b.fk
LEFT JOIN (
    SELECT place_id, COUNT(*) AS cnt
    FROM moz_historyvisits
    GROUP BY place_id
) v ON v.place_id = p.id
WHERE b.type = 1
  AND p.hidden = 0
  AND p.url IS NOT NULL
  AND p.url <> ''
GROUP BY p.id`

// historyQuery returns one row per visited place. The INNER JOIN guarantees
// at least one recorded visit; places nobody ever visited do not appear.
const historyQuery = `
SELECT p.url,
       COALESCE(NULLIF(p.title, ''), ''),
       COUNT(h.id)
FROM moz_places p
JOIN moz_historyvisits h ON h.place_id = p.id
WHERE p.hidden = 0
  AND p.url IS NOT NULL
  AND p.url <> ''
GROUP BY p.id`

// Extract reads every searchable record from the snapshot. Bookmarks are
// always included; history only when includeHistory is set. Both kinds share
// one frequency source, the per-place row count of moz_historyvisits.
func Extract(db *sql.DB, includeHistory bool) ([]Entry, error) {
	log := logging.ForComponent(logging.CompPlaces)
	start := time.Now()

	if err := probeSchema(db); err != nil {
		return nil, err
	}

	entries, err := queryEntries(db, bookmarkQuery, KindBookmark)
	if err != nil {
		return nil, err
	}
	bookmarks := len(entries)

	history := 0
	if includeHistory {
		hist, err := queryEntries(db, historyQuery, KindHistory)
		if err != nil {
			return nil, err
		}
		history = len(hist)
		entries = append(entries, hist...)
	}

	entries = dedupe(entries)

	log.Debug("extraction done",
		"bookmarks", bookmarks,
		"history", history,
		"elapsed_ms", time.Since(start).Milliseconds())
	return entries, nil
}

// probeSchema verifies the required tables exist before any extraction query
// runs, so a foreign or truncated database fails predictably.
func probeSchema(db *sql.DB) error {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return fmt.Errorf("places: schema probe: %w", ErrBadSchema)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("places: schema probe: %w", ErrBadSchema)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("places: schema probe: %w", ErrBadSchema)
	}

	for _, want := range requiredTables {
		if !have[want] {
			return fmt.Errorf("places: missing table %s: %w", want, ErrBadSchema)
		}
	}
	return nil
}

func queryEntries(db *sql.DB, query string, kind Kind) ([]Entry, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("places: %s query: %w", kind, ErrBadSchema)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Kind: kind}
		if err := rows.Scan(&e.URL, &e.Title, &e.VisitCount); err != nil {
			return nil, fmt.Errorf("places: %s scan: %w", kind, ErrBadSchema)
		}
		if e.URL == "" {
			continue
		}
		if e.Title == "" {
			e.Title = e.URL
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("places: %s rows: %w", kind, ErrBadSchema)
	}
	return entries, nil
}

// dedupe collapses duplicate (URL, kind) pairs, first row wins. Distinct
// places rarely share a URL, but the record set must never carry duplicates.
func dedupe(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		key := e.URL + "\x00" + e.Kind.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
