package weathercache

import (
	"testing"
	"time"

	"github.com/skycastapp/skycast/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	return New(s)
}

func sampleRecord(city string) *Record {
	return &Record{
		CityName:      city,
		LocationName:  city,
		Country:       "China",
		TempC:         21.5,
		ConditionText: "Partly cloudy",
		ConditionIcon: "//cdn.weatherapi.com/weather/64x64/day/116.png",
		Humidity:      60,
		WindKph:       12.3,
		WindDir:       "NE",
		PressureMb:    1013,
		VisibilityKm:  10,
		UVIndex:       4,
		Cloud:         25,
		CachedAt:      time.Now().Unix(),
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	c := newTestCache(t)

	rec := sampleRecord("Beijing")
	if err := c.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if rec.ID == "" {
		t.Error("Put should assign an id")
	}

	got, err := c.Get("Beijing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored city")
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.TempC != 21.5 || got.ConditionText != "Partly cloudy" {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.WindDir != "NE" || got.PressureMb != 1013 {
		t.Errorf("optional fields not stored: %+v", got)
	}
}

func TestGet_MissingCity(t *testing.T) {
	c := newTestCache(t)

	got, err := c.Get("Nowhere")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestPut_UpsertKeepsID(t *testing.T) {
	c := newTestCache(t)

	first := sampleRecord("Beijing")
	if err := c.Put(first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second := sampleRecord("Beijing")
	second.TempC = 30
	if err := c.Put(second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("upsert ID = %q, want %q", second.ID, first.ID)
	}

	names, err := c.ListAllCityNames()
	if err != nil {
		t.Fatalf("ListAllCityNames failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("city count = %d, want 1", len(names))
	}

	got, _ := c.Get("Beijing")
	if got.TempC != 30 {
		t.Errorf("TempC = %v, want 30", got.TempC)
	}
}

func TestPut_MergePreservesFavoriteAndOptionals(t *testing.T) {
	c := newTestCache(t)

	first := sampleRecord("Beijing")
	if err := c.Put(first); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.SetFavorite("Beijing", true); err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}

	// A refetch with unset optionals must not reset them
	second := &Record{
		CityName:      "Beijing",
		LocationName:  "Beijing",
		Country:       "China",
		TempC:         18,
		ConditionText: "Sunny",
		Humidity:      40,
		WindKph:       8,
		CachedAt:      time.Now().Unix(),
	}
	if err := c.Put(second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := c.Get("Beijing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Favorite {
		t.Error("favorite=true must survive a Put that does not flip it")
	}
	if got.WindDir != "NE" {
		t.Errorf("WindDir = %q, want preserved NE", got.WindDir)
	}
	if got.PressureMb != 1013 || got.VisibilityKm != 10 || got.UVIndex != 4 || got.Cloud != 25 {
		t.Errorf("optional fields reset: %+v", got)
	}
	// Non-optional fields take the new values
	if got.TempC != 18 || got.ConditionText != "Sunny" {
		t.Errorf("new values not applied: %+v", got)
	}
}

func TestGetIfFresh_Boundary(t *testing.T) {
	c := newTestCache(t)

	rec := sampleRecord("Beijing")
	rec.CachedAt = time.Now().Unix() - 60
	if err := c.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Record exactly at the TTL edge is still fresh
	got, err := c.GetIfFresh("Beijing", 60)
	if err != nil {
		t.Fatalf("GetIfFresh failed: %v", err)
	}
	if got == nil {
		t.Error("record at exactly ttl age should be fresh")
	}

	// One second beyond the edge is stale
	got, err = c.GetIfFresh("Beijing", 59)
	if err != nil {
		t.Fatalf("GetIfFresh failed: %v", err)
	}
	if got != nil {
		t.Error("record past ttl age should be stale")
	}
}

func TestGetIfFresh_MissingCity(t *testing.T) {
	c := newTestCache(t)

	got, err := c.GetIfFresh("Nowhere", 600)
	if err != nil {
		t.Fatalf("GetIfFresh failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetIfFresh = %+v, want nil", got)
	}
}

func TestListAllCityNames_DescendingOrder(t *testing.T) {
	c := newTestCache(t)

	for _, city := range []string{"Amsterdam", "Zurich", "Beijing"} {
		if err := c.Put(sampleRecord(city)); err != nil {
			t.Fatalf("Put(%s) failed: %v", city, err)
		}
	}

	names, err := c.ListAllCityNames()
	if err != nil {
		t.Fatalf("ListAllCityNames failed: %v", err)
	}

	want := []string{"Zurich", "Beijing", "Amsterdam"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestListFavorites(t *testing.T) {
	c := newTestCache(t)

	favorites, err := c.ListFavorites()
	if err != nil {
		t.Fatalf("ListFavorites failed: %v", err)
	}
	if favorites == nil {
		t.Fatal("ListFavorites must never return nil")
	}
	if len(favorites) != 0 {
		t.Errorf("favorites = %d, want 0", len(favorites))
	}

	if err := c.Put(sampleRecord("Beijing")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put(sampleRecord("Oslo")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.SetFavorite("Oslo", true); err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}

	favorites, err = c.ListFavorites()
	if err != nil {
		t.Fatalf("ListFavorites failed: %v", err)
	}
	if len(favorites) != 1 || favorites[0].CityName != "Oslo" {
		t.Errorf("favorites = %+v, want [Oslo]", favorites)
	}
}

func TestSetFavorite_MissingCityIsNoop(t *testing.T) {
	c := newTestCache(t)

	if err := c.SetFavorite("Nowhere", true); err != nil {
		t.Errorf("SetFavorite on missing city should be a no-op, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	if err := c.Put(sampleRecord("Beijing")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Delete("Beijing"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := c.Get("Beijing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("record should be gone after Delete")
	}
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t)

	for _, city := range []string{"Beijing", "Oslo", "Lima"} {
		if err := c.Put(sampleRecord(city)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := c.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	names, err := c.ListAllCityNames()
	if err != nil {
		t.Fatalf("ListAllCityNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("city count = %d, want 0", len(names))
	}
}

func TestGet_SelfHealsOnShapeMismatch(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	c := New(s)

	if err := c.Put(sampleRecord("Beijing")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the row so the timestamp can no longer be decoded
	db, err := s.DB()
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE weather_records SET cached_at = 'not-a-timestamp'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}
	db.Close()

	got, err := c.Get("Beijing")
	if err != nil {
		t.Fatalf("Get should self-heal, got error: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil after self-heal", got)
	}

	// The collection was cleared, not just the read suppressed
	names, err := c.ListAllCityNames()
	if err != nil {
		t.Fatalf("ListAllCityNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("records remain after self-heal: %v", names)
	}
}

func TestNormalizeCity(t *testing.T) {
	c := newTestCache(t)

	rec := sampleRecord("  Beijing  ")
	if err := c.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get("Beijing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("normalized lookup should find the record")
	}
}
