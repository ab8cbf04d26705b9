package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// makePlacesDB creates a minimal places database inside dir.
func makePlacesDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "places.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE moz_places (id INTEGER PRIMARY KEY, url TEXT, title TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO moz_places (url, title) VALUES ('https://example.com/', 'Example')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return path
}

func countSnapTemps(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "foxmarks-snap-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return len(matches)
}

func TestTakeCopiesDatabase(t *testing.T) {
	profile := t.TempDir()
	src := makePlacesDB(t, profile)

	snap, err := Take(profile)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer snap.Close()

	if snap.Path() == src {
		t.Fatal("snapshot must not point at the live database")
	}

	var n int
	if err := snap.DB().QueryRow("SELECT COUNT(*) FROM moz_places").Scan(&n); err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestTakeMissingSource(t *testing.T) {
	before := countSnapTemps(t)

	_, err := Take(t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if after := countSnapTemps(t); after != before {
		t.Errorf("temp dirs leaked: %d -> %d", before, after)
	}
}

func TestTakeCopyFailureCleansUp(t *testing.T) {
	profile := t.TempDir()
	// A directory where the database file should be: Stat succeeds, the
	// copy fails.
	if err := os.MkdirAll(filepath.Join(profile, "places.sqlite"), 0755); err != nil {
		t.Fatal(err)
	}

	before := countSnapTemps(t)
	_, err := Take(profile)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if after := countSnapTemps(t); after != before {
		t.Errorf("temp dirs leaked: %d -> %d", before, after)
	}
}

func TestTakeSeesWALWrites(t *testing.T) {
	profile := t.TempDir()
	path := makePlacesDB(t, profile)

	// Simulate a running browser: hold a WAL-mode connection open so
	// recent writes live in the -wal sidecar, not the main file.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("wal mode: %v", err)
	}
	if _, err := conn.ExecContext(ctx,
		"INSERT INTO moz_places (url, title) VALUES ('https://wal.example/', 'In WAL')"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := os.Stat(path + "-wal"); err != nil {
		t.Logf("no -wal sidecar; writes already checkpointed: %v", err)
	}

	snap, err := Take(profile)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer snap.Close()

	var n int
	err = snap.DB().QueryRow(
		"SELECT COUNT(*) FROM moz_places WHERE url = 'https://wal.example/'").Scan(&n)
	if err != nil {
		t.Fatalf("query snapshot: %v", err)
	}
	if n != 1 {
		t.Errorf("snapshot missed WAL write: got %d rows", n)
	}
}

func TestSnapshotIsReadOnly(t *testing.T) {
	profile := t.TempDir()
	makePlacesDB(t, profile)

	snap, err := Take(profile)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer snap.Close()

	if _, err := snap.DB().Exec("INSERT INTO moz_places (url) VALUES ('https://nope/')"); err == nil {
		t.Error("write to read-only snapshot should fail")
	}
}

func TestCloseRemovesTemp(t *testing.T) {
	profile := t.TempDir()
	makePlacesDB(t, profile)

	snap, err := Take(profile)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	dir := filepath.Dir(snap.Path())
	if err := snap.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("temp dir still present after Close: %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	profile := t.TempDir()
	makePlacesDB(t, profile)

	snap, err := Take(profile)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if err := snap.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := snap.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestTakeIsFreshEachTime(t *testing.T) {
	profile := t.TempDir()
	makePlacesDB(t, profile)

	first, err := Take(profile)
	if err != nil {
		t.Fatalf("first Take: %v", err)
	}
	defer first.Close()

	second, err := Take(profile)
	if err != nil {
		t.Fatalf("second Take: %v", err)
	}
	defer second.Close()

	if first.Path() == second.Path() {
		t.Error("each Take should produce its own copy")
	}

	// Closing one snapshot must not break the other.
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var n int
	if err := second.DB().QueryRow("SELECT COUNT(*) FROM moz_places").Scan(&n); err != nil {
		t.Fatalf("query second snapshot: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}
