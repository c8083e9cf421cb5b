// Package imagecache is a content-addressed store of downloaded background
// images. Entries are keyed by a short digest of the source URL and carry a
// last-accessed timestamp used for count-based eviction and age-based sweeps.
package imagecache

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/store"
)

// DefaultCap is the eviction cap applied after a fresh download.
const DefaultCap = 5

// DefaultMaxAgeDays is the age threshold for the expiry sweep.
const DefaultMaxAgeDays = 7

// Entry is one cached image.
type Entry struct {
	ID           string
	URLHash      string
	ImageURL     string
	Condition    string
	ImageData    []byte
	CachedAt     int64
	LastAccessed int64
}

// Cache is the image store backed by the embedded database.
type Cache struct {
	store *store.Store
}

// New creates an image cache over s.
func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// ComputeKey returns the deterministic digest identifying url: SHA-256,
// base64 with '/' and '+' replaced by URL-safe characters, truncated to
// 16 characters.
func ComputeKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	encoded = strings.ReplaceAll(encoded, "/", "_")
	encoded = strings.ReplaceAll(encoded, "+", "-")
	return encoded[:16]
}

// Get looks up the entry for url. On a hit, last_accessed is updated to now
// and persisted before the entry is returned. Returns nil on a miss.
func (c *Cache) Get(url string) (*Entry, error) {
	db, err := c.store.DB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	hash := ComputeKey(url)
	row := db.QueryRow(`
		SELECT id, url_hash, image_url, condition_tag, image_data, cached_at, last_accessed
		FROM image_cache
		WHERE url_hash = ?
	`, hash)

	var e Entry
	err = row.Scan(&e.ID, &e.URLHash, &e.ImageURL, &e.Condition, &e.ImageData, &e.CachedAt, &e.LastAccessed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorage("read image entry", err)
	}

	now := time.Now().Unix()
	if _, err := db.Exec(`UPDATE image_cache SET last_accessed = ? WHERE id = ?`, now, e.ID); err != nil {
		return nil, errors.NewStorage("touch image entry", err)
	}
	e.LastAccessed = now

	return &e, nil
}

// Put upserts an entry by url_hash. An existing entry keeps its surrogate
// id; last_accessed is set to now either way.
func (c *Cache) Put(e *Entry) error {
	if e.URLHash == "" {
		e.URLHash = ComputeKey(e.ImageURL)
	}
	now := time.Now().Unix()
	if e.CachedAt == 0 {
		e.CachedAt = now
	}
	e.LastAccessed = now

	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	var existingID string
	err = db.QueryRow(`SELECT id FROM image_cache WHERE url_hash = ?`, e.URLHash).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return errors.NewStorage("read existing image entry", err)
	}

	if existingID != "" {
		e.ID = existingID
		_, err = db.Exec(`
			UPDATE image_cache
			SET image_url = ?, condition_tag = ?, image_data = ?, cached_at = ?, last_accessed = ?
			WHERE id = ?
		`, e.ImageURL, e.Condition, e.ImageData, e.CachedAt, e.LastAccessed, e.ID)
		if err != nil {
			return errors.NewStorage("update image entry", err)
		}
		return nil
	}

	if e.ID == "" {
		id, err := generateULID()
		if err != nil {
			return errors.NewStorage("generate entry id", err)
		}
		e.ID = id
	}

	_, err = db.Exec(`
		INSERT INTO image_cache (id, url_hash, image_url, condition_tag, image_data, cached_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.URLHash, e.ImageURL, e.Condition, e.ImageData, e.CachedAt, e.LastAccessed)
	if err != nil {
		return errors.NewStorage("insert image entry", err)
	}
	return nil
}

// ListAll returns every cached entry.
func (c *Cache) ListAll() ([]Entry, error) {
	db, err := c.store.DB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, url_hash, image_url, condition_tag, image_data, cached_at, last_accessed
		FROM image_cache
	`)
	if err != nil {
		return nil, errors.NewStorage("list image entries", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.ID, &e.URLHash, &e.ImageURL, &e.Condition, &e.ImageData, &e.CachedAt, &e.LastAccessed)
		if err != nil {
			return nil, errors.NewStorage("scan image entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list image entries", err)
	}
	return entries, nil
}

// Delete removes the entry with the given id.
func (c *Cache) Delete(id string) error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`DELETE FROM image_cache WHERE id = ?`, id); err != nil {
		return errors.NewStorage("delete image entry", err)
	}
	return nil
}

// EvictToCap keeps the maxCount most recently accessed entries and deletes
// the rest.
func (c *Cache) EvictToCap(maxCount int) error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		DELETE FROM image_cache
		WHERE id NOT IN (
			SELECT id FROM image_cache
			ORDER BY last_accessed DESC, rowid DESC
			LIMIT ?
		)
	`, maxCount)
	if err != nil {
		return errors.NewStorage("evict image entries", err)
	}
	return nil
}

// SweepExpired deletes entries whose last_accessed is older than maxAgeDays.
// Independent of EvictToCap, not a substitute for it.
func (c *Cache) SweepExpired(maxAgeDays int) error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays).Unix()
	if _, err := db.Exec(`DELETE FROM image_cache WHERE last_accessed < ?`, cutoff); err != nil {
		return errors.NewStorage("sweep expired image entries", err)
	}
	return nil
}

func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
