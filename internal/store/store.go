package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/skycastapp/skycast/internal/errors"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Store provides scoped access to the embedded database at baseDir/skycast.db.
// Each DB() call opens a fresh handle; callers close it when done. There is
// no long-lived shared connection, so per-call atomicity is all the store
// guarantees: a Get-then-Put sequence is not protected against a concurrent
// writer touching the same key, last write wins.
type Store struct {
	baseDir string
	dsn     string
}

// Open initializes the store at baseDir and migrates the schema.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.skycast.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.NewStorage("create base directory", err)
	}
	_ = os.Chmod(baseDir, 0700)

	// Temp-images subdirectory for materialized cache hits/downloads
	tempDir := filepath.Join(baseDir, "tempimages")
	if err := os.MkdirAll(tempDir, 0700); err != nil {
		return nil, errors.NewStorage("create tempimages directory", err)
	}
	_ = os.Chmod(tempDir, 0700)

	dbPath := filepath.Join(baseDir, "skycast.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	s := &Store{baseDir: baseDir, dsn: dsn}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStorage("open database", err)
	}
	defer db.Close()

	if err := verifyWALMode(db); err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return s, nil
}

// DB opens a scoped database handle. The caller must close it.
func (s *Store) DB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return nil, errors.NewStorage("open database", err)
	}
	return db, nil
}

// BaseDir returns the application data directory the store lives in.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// TempImagesDir returns the directory for materialized background images.
func (s *Store) TempImagesDir() string {
	return filepath.Join(s.baseDir, "tempimages")
}

// migrate applies schema migrations based on user_version. A version newer
// than this build understands means the file was written by an incompatible
// schema; the store wipes and reinitializes rather than guessing.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if version > CurrentSchemaVersion {
		if err := wipe(db); err != nil {
			return err
		}
		version = 0
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS weather_records (
		  id             TEXT PRIMARY KEY,
		  city_name      TEXT NOT NULL,
		  location_name  TEXT NOT NULL,
		  country        TEXT NOT NULL,
		  temp_c         REAL NOT NULL,
		  condition_text TEXT NOT NULL,
		  condition_icon TEXT NOT NULL,
		  humidity       INTEGER NOT NULL,
		  wind_kph       REAL NOT NULL,
		  wind_dir       TEXT NOT NULL DEFAULT '',
		  pressure_mb    REAL NOT NULL DEFAULT 0,
		  visibility_km  REAL NOT NULL DEFAULT 0,
		  uv_index       REAL NOT NULL DEFAULT 0,
		  cloud          INTEGER NOT NULL DEFAULT 0,
		  cached_at      INTEGER NOT NULL,
		  favorite       INTEGER NOT NULL DEFAULT 0
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_weather_city
		ON weather_records(city_name);

		CREATE TABLE IF NOT EXISTS image_cache (
		  id            TEXT PRIMARY KEY,
		  url_hash      TEXT NOT NULL,
		  image_url     TEXT NOT NULL,
		  condition_tag TEXT NOT NULL,
		  image_data    BLOB NOT NULL,
		  cached_at     INTEGER NOT NULL,
		  last_accessed INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_image_url_hash
		ON image_cache(url_hash);

		CREATE INDEX IF NOT EXISTS idx_image_last_accessed
		ON image_cache(last_accessed);

		CREATE TABLE IF NOT EXISTS settings (
		  key   TEXT PRIMARY KEY,
		  value TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.NewStorage("migration 1 failed", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// wipe drops all collections and resets the schema version.
func wipe(db *sql.DB) error {
	drop := `
	DROP TABLE IF EXISTS weather_records;
	DROP TABLE IF EXISTS image_cache;
	DROP TABLE IF EXISTS settings;
	`
	if _, err := db.Exec(drop); err != nil {
		return errors.NewStorage("wipe schema", err)
	}
	return setUserVersion(db, 0)
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return errors.NewStorage("verify journal mode", err)
	}
	if journalMode != "wal" {
		return errors.NewStorage(fmt.Sprintf("expected WAL mode, got %s", journalMode), nil)
	}
	return nil
}

// getUserVersion returns the current schema version (user_version pragma).
func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, errors.NewStorage("get user_version", err)
	}
	return version, nil
}

// setUserVersion sets the schema version (user_version pragma).
func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return errors.NewStorage("set user_version", err)
	}
	return nil
}
