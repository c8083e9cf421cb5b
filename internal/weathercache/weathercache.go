// Package weathercache persists weather records keyed by city name with
// TTL-based freshness. Reads that hit a schema-shape mismatch self-heal by
// clearing the collection instead of failing.
package weathercache

import (
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/store"
)

// Record is a cached weather observation for one city.
type Record struct {
	ID            string  `json:"id"`
	CityName      string  `json:"city_name"`
	LocationName  string  `json:"location_name"`
	Country       string  `json:"country"`
	TempC         float64 `json:"temp_c"`
	ConditionText string  `json:"condition_text"`
	ConditionIcon string  `json:"condition_icon"`
	Humidity      int     `json:"humidity"`
	WindKph       float64 `json:"wind_kph"`
	WindDir       string  `json:"wind_dir,omitempty"`
	PressureMb    float64 `json:"pressure_mb,omitempty"`
	VisibilityKm  float64 `json:"visibility_km,omitempty"`
	UVIndex       float64 `json:"uv_index,omitempty"`
	Cloud         int     `json:"cloud,omitempty"`
	CachedAt      int64   `json:"cached_at"`
	Favorite      bool    `json:"favorite"`
}

// Cache is the weather-record store backed by the embedded database.
type Cache struct {
	store *store.Store
}

// New creates a weather cache over s.
func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// NormalizeCity canonicalizes a city name for use as the record key.
func NormalizeCity(city string) string {
	return strings.TrimSpace(city)
}

const selectColumns = `
	id, city_name, location_name, country, temp_c,
	condition_text, condition_icon, humidity, wind_kph, wind_dir,
	pressure_mb, visibility_km, uv_index, cloud, cached_at, favorite
`

// Put upserts a record by city name. When a record for the city already
// exists, its surrogate id is kept and merge-on-write applies: favorite and
// zero-valued optional fields (wind direction, pressure, visibility, UV,
// cloud) are preserved from the existing record, never silently reset.
func (c *Cache) Put(rec *Record) error {
	rec.CityName = NormalizeCity(rec.CityName)

	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	existing, err := getByCity(db, rec.CityName)
	if err != nil {
		return errors.NewStorage("read existing record", err)
	}

	if existing != nil {
		rec.ID = existing.ID
		if !rec.Favorite {
			rec.Favorite = existing.Favorite
		}
		if rec.WindDir == "" {
			rec.WindDir = existing.WindDir
		}
		if rec.PressureMb == 0 {
			rec.PressureMb = existing.PressureMb
		}
		if rec.VisibilityKm == 0 {
			rec.VisibilityKm = existing.VisibilityKm
		}
		if rec.UVIndex == 0 {
			rec.UVIndex = existing.UVIndex
		}
		if rec.Cloud == 0 {
			rec.Cloud = existing.Cloud
		}

		query := `
			UPDATE weather_records
			SET location_name = ?, country = ?, temp_c = ?,
				condition_text = ?, condition_icon = ?, humidity = ?,
				wind_kph = ?, wind_dir = ?, pressure_mb = ?,
				visibility_km = ?, uv_index = ?, cloud = ?,
				cached_at = ?, favorite = ?
			WHERE id = ?
		`
		_, err = db.Exec(query,
			rec.LocationName, rec.Country, rec.TempC,
			rec.ConditionText, rec.ConditionIcon, rec.Humidity,
			rec.WindKph, rec.WindDir, rec.PressureMb,
			rec.VisibilityKm, rec.UVIndex, rec.Cloud,
			rec.CachedAt, rec.Favorite,
			rec.ID,
		)
		if err != nil {
			return errors.NewStorage("update weather record", err)
		}
		return nil
	}

	if rec.ID == "" {
		id, err := generateULID()
		if err != nil {
			return errors.NewStorage("generate record id", err)
		}
		rec.ID = id
	}

	query := `
		INSERT INTO weather_records (
			id, city_name, location_name, country, temp_c,
			condition_text, condition_icon, humidity, wind_kph, wind_dir,
			pressure_mb, visibility_km, uv_index, cloud, cached_at, favorite
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.Exec(query,
		rec.ID, rec.CityName, rec.LocationName, rec.Country, rec.TempC,
		rec.ConditionText, rec.ConditionIcon, rec.Humidity, rec.WindKph, rec.WindDir,
		rec.PressureMb, rec.VisibilityKm, rec.UVIndex, rec.Cloud, rec.CachedAt, rec.Favorite,
	)
	if err != nil {
		return errors.NewStorage("insert weather record", err)
	}
	return nil
}

// Get returns the record for cityName, or nil if absent. A schema-shape
// mismatch on read clears the collection and reports nil.
func (c *Cache) Get(cityName string) (*Record, error) {
	db, err := c.store.DB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rec, err := getByCity(db, NormalizeCity(cityName))
	if err != nil {
		return nil, c.selfHeal(err)
	}
	return rec, nil
}

// GetIfFresh returns the record only if its age is within ttlSeconds.
// The boundary is inclusive: a record exactly at the TTL edge is still
// fresh. This mirrors the staleness check (age > ttl means stale), not
// the stricter age < ttl.
func (c *Cache) GetIfFresh(cityName string, ttlSeconds int64) (*Record, error) {
	rec, err := c.Get(cityName)
	if err != nil || rec == nil {
		return nil, err
	}
	if time.Now().Unix()-rec.CachedAt > ttlSeconds {
		return nil, nil
	}
	return rec, nil
}

// ListAllCityNames returns all cached city names, ordered by descending
// lexical value.
func (c *Cache) ListAllCityNames() ([]string, error) {
	db, err := c.store.DB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT city_name FROM weather_records ORDER BY city_name DESC`)
	if err != nil {
		return nil, errors.NewStorage("list city names", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return []string{}, c.selfHeal(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list city names", err)
	}
	return names, nil
}

// ListFavorites returns all records with favorite set. The result is never
// nil; an empty slice means no favorites.
func (c *Cache) ListFavorites() ([]Record, error) {
	db, err := c.store.DB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT` + selectColumns + `FROM weather_records WHERE favorite = 1`)
	if err != nil {
		return nil, errors.NewStorage("list favorites", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return []Record{}, c.selfHeal(err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage("list favorites", err)
	}
	return records, nil
}

// SetFavorite updates the favorite flag for cityName. A missing city is a
// no-op, not an error.
func (c *Cache) SetFavorite(cityName string, favorite bool) error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(
		`UPDATE weather_records SET favorite = ? WHERE city_name = ?`,
		favorite, NormalizeCity(cityName),
	)
	if err != nil {
		return errors.NewStorage("set favorite", err)
	}
	return nil
}

// Delete removes the record for cityName.
func (c *Cache) Delete(cityName string) error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`DELETE FROM weather_records WHERE city_name = ?`, NormalizeCity(cityName))
	if err != nil {
		return errors.NewStorage("delete weather record", err)
	}
	return nil
}

// ClearAll removes every weather record.
func (c *Cache) ClearAll() error {
	db, err := c.store.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(`DELETE FROM weather_records`); err != nil {
		return errors.NewStorage("clear weather records", err)
	}
	return nil
}

// selfHeal handles a row that can no longer be decoded: the collection is
// cleared and the read reports empty instead of propagating the error.
// Store-level failures still propagate.
func (c *Cache) selfHeal(err error) error {
	if errors.Is(err, errors.ErrStorage) {
		return err
	}
	if clearErr := c.ClearAll(); clearErr != nil {
		return clearErr
	}
	return nil
}

// getByCity fetches one record on an already-open handle.
func getByCity(db *sql.DB, cityName string) (*Record, error) {
	row := db.QueryRow(`SELECT`+selectColumns+`FROM weather_records WHERE city_name = ?`, cityName)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.CityName, &rec.LocationName, &rec.Country, &rec.TempC,
		&rec.ConditionText, &rec.ConditionIcon, &rec.Humidity, &rec.WindKph, &rec.WindDir,
		&rec.PressureMb, &rec.VisibilityKm, &rec.UVIndex, &rec.Cloud, &rec.CachedAt, &rec.Favorite,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
