// Package snapshot produces point-in-time copies of a profile's places
// database. Firefox holds the live file open with WAL journaling, so reading
// it in place is unsafe; instead every build cycle copies the database (and
// its -wal/-shm sidecars) into a private temp directory, folds the WAL into
// the copy, and hands back a read-only handle.
package snapshot

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/halfdome/foxmarks/internal/logging"
)

// dbFile is the database filename inside a profile directory.
const dbFile = "places.sqlite"

// ErrUnavailable indicates the live database could not be snapshotted:
// the source file is missing or the copy failed.
var ErrUnavailable = fmt.Errorf("places database unavailable")

// Snapshot is an opened private copy of the places database. Close releases
// the handle and removes the temp directory; it is safe to call more than
// once and runs on every exit path of a build cycle.
type Snapshot struct {
	db   *sql.DB
	dir  string
	path string

	closeOnce sync.Once
	closeErr  error
}

// DB returns the read-only database handle.
func (s *Snapshot) DB() *sql.DB {
	return s.db
}

// Path returns the location of the copied database file.
func (s *Snapshot) Path() string {
	return s.path
}

// Close closes the handle and deletes the temp directory. Idempotent.
func (s *Snapshot) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
		if err := os.RemoveAll(s.dir); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// Take snapshots the places database of the given profile directory. Every
// call produces a fresh copy; staleness is bounded by one build cycle. Any
// failure to produce a usable copy returns an error wrapping ErrUnavailable,
// and no temp files are left behind.
func Take(profileDir string) (*Snapshot, error) {
	log := logging.ForComponent(logging.CompSnapshot)
	start := time.Now()

	src := filepath.Join(profileDir, dbFile)
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("snapshot: source %s: %w", src, ErrUnavailable)
	}

	dir, err := os.MkdirTemp("", "foxmarks-snap-")
	if err != nil {
		return nil, fmt.Errorf("snapshot: temp dir: %w", ErrUnavailable)
	}
	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(dir)
		}
	}()

	dst := filepath.Join(dir, dbFile)
	bytes, err := copyFile(src, dst)
	if err != nil {
		return nil, fmt.Errorf("snapshot: copy %s: %w", src, ErrUnavailable)
	}

	// WAL sidecars hold committed writes not yet merged into the main file.
	// Absence is normal (browser closed cleanly, or not running).
	for _, suffix := range []string{"-wal", "-shm"} {
		side := src + suffix
		if _, err := os.Stat(side); err != nil {
			continue
		}
		n, err := copyFile(side, dst+suffix)
		if err != nil {
			return nil, fmt.Errorf("snapshot: copy %s: %w", side, ErrUnavailable)
		}
		bytes += n
	}

	if err := checkpoint(dst); err != nil {
		return nil, fmt.Errorf("snapshot: checkpoint: %w", ErrUnavailable)
	}

	db, err := sql.Open("sqlite", "file:"+dst+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("snapshot: open copy: %w", ErrUnavailable)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: open copy: %w", ErrUnavailable)
	}

	ok = true
	log.Debug("snapshot ready",
		"profile", profileDir,
		"bytes", bytes,
		"elapsed_ms", time.Since(start).Milliseconds())
	return &Snapshot{db: db, dir: dir, path: dst}, nil
}

// checkpoint folds the WAL into the main database file of the copy, so the
// read-only handle sees every committed write.
func checkpoint(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}
