// Package service implements the weather read path: fresh cache, live
// fetch with cache write-through, and stale-cache offline fallback.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/weatherapi"
	"github.com/skycastapp/skycast/internal/weathercache"
)

// Source tags where a returned record came from.
type Source string

const (
	// SourceCache means the record was fresh in the local cache.
	SourceCache Source = "cache"
	// SourceLive means the record came from a successful API fetch.
	SourceLive Source = "live"
	// SourceOffline means the fetch failed and a stale cached record
	// was served instead.
	SourceOffline Source = "offline"
)

// Fetcher fetches live current conditions.
type Fetcher interface {
	FetchCurrent(ctx context.Context, cityQuery string) (*weatherapi.Payload, error)
}

// Resolver kicks background-image resolution for a condition.
type Resolver interface {
	ResolveForCondition(ctx context.Context, condition string) string
}

// SettingsWriter records the most recently viewed city.
type SettingsWriter interface {
	SetLastSelectedCity(city string) error
}

// Service coordinates the weather cache, the live API, and the
// background pipeline.
type Service struct {
	weather    *weathercache.Cache
	settings   SettingsWriter
	fetcher    Fetcher
	resolver   Resolver
	ttlSeconds int64
	logger     *zap.Logger
}

// Deps bundles the service's collaborators. Resolver may be nil when no
// background pipeline is wired.
type Deps struct {
	Weather    *weathercache.Cache
	Settings   SettingsWriter
	Fetcher    Fetcher
	Resolver   Resolver
	TTLSeconds int64
	Logger     *zap.Logger
}

// New creates a Service from deps.
func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		weather:    d.Weather,
		settings:   d.Settings,
		fetcher:    d.Fetcher,
		resolver:   d.Resolver,
		ttlSeconds: d.TTLSeconds,
		logger:     d.Logger,
	}
}

// Current returns current conditions for city. Resolution order: a fresh
// cached record wins outright; otherwise a live fetch is attempted and its
// result persisted; a failed fetch falls back to any stale cached record.
// The returned Source tells the caller which path produced the record.
func (s *Service) Current(ctx context.Context, city string) (*weathercache.Record, Source, error) {
	city = weathercache.NormalizeCity(city)
	if city == "" {
		return nil, "", errors.NewParse("empty city name", nil)
	}

	fresh, err := s.weather.GetIfFresh(city, s.ttlSeconds)
	if err != nil {
		return nil, "", err
	}
	if fresh != nil {
		s.logger.Debug("weather served from cache", zap.String("city", city))
		return fresh, SourceCache, nil
	}

	payload, fetchErr := s.fetcher.FetchCurrent(ctx, city)
	if fetchErr != nil {
		stale, err := s.weather.Get(city)
		if err == nil && stale != nil {
			s.logger.Warn("live fetch failed, serving stale record",
				zap.String("city", city), zap.Error(fetchErr))
			return stale, SourceOffline, nil
		}
		return nil, "", fetchErr
	}

	rec := recordFromPayload(city, payload)
	if err := s.weather.Put(rec); err != nil {
		// The live record is still good for display
		s.logger.Warn("persist weather record failed",
			zap.String("city", city), zap.Error(err))
	}
	if err := s.settings.SetLastSelectedCity(city); err != nil {
		s.logger.Warn("save last selected city failed", zap.Error(err))
	}

	if s.resolver != nil && rec.ConditionText != "" {
		// Fire and forget; the background image catches up on its own
		go s.resolver.ResolveForCondition(context.Background(), rec.ConditionText)
	}

	s.logger.Info("weather fetched",
		zap.String("city", city),
		zap.String("condition", rec.ConditionText),
		zap.Float64("temp_c", rec.TempC))
	return rec, SourceLive, nil
}

// recordFromPayload maps an API payload onto a cache record keyed by the
// query city, stamped with the current time.
func recordFromPayload(city string, p *weatherapi.Payload) *weathercache.Record {
	return &weathercache.Record{
		CityName:      city,
		LocationName:  p.Location.Name,
		Country:       p.Location.Country,
		TempC:         p.Current.TempC,
		ConditionText: p.Current.Condition.Text,
		ConditionIcon: p.Current.Condition.Icon,
		Humidity:      p.Current.Humidity,
		WindKph:       p.Current.WindKph,
		WindDir:       p.Current.WindDir,
		PressureMb:    p.Current.PressureMb,
		VisibilityKm:  p.Current.VisKm,
		UVIndex:       p.Current.UV,
		Cloud:         p.Current.Cloud,
		CachedAt:      time.Now().Unix(),
	}
}
