package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/background"
	"github.com/skycastapp/skycast/internal/config"
	"github.com/skycastapp/skycast/internal/errors"
	"github.com/skycastapp/skycast/internal/imagecache"
	"github.com/skycastapp/skycast/internal/janitor"
	"github.com/skycastapp/skycast/internal/pexels"
	"github.com/skycastapp/skycast/internal/service"
	"github.com/skycastapp/skycast/internal/store"
	"github.com/skycastapp/skycast/internal/weatherapi"
	"github.com/skycastapp/skycast/internal/weathercache"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(st *store.Store, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "skycast",
		Usage:   "Weather dashboard cache and background resolver",
		Version: Version,
		Commands: []*cli.Command{
			weatherCmd(st, cfg, logger),
			citiesCmd(st),
			favoriteCmd(st),
			backgroundCmd(st, cfg, logger),
			deleteCmd(st),
			clearCmd(st),
			sweepCmd(st, cfg, logger),
			repairTimestampsCmd(st),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// httpTimeout returns the configured outbound request timeout.
func httpTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
}

// newPipeline wires the background resolution chain over the store.
func newPipeline(st *store.Store, cfg *config.Config, logger *zap.Logger) *background.Pipeline {
	timeout := httpTimeout(cfg)
	return background.New(background.Deps{
		Settings:    st,
		Weather:     weathercache.New(st),
		Images:      imagecache.New(st),
		Search:      pexels.New(cfg.PexelsAPIKey, timeout),
		Downloader:  background.NewHTTPDownloader(timeout),
		Pointer:     background.NewLastUsedPointer(st.BaseDir()),
		TempDir:     st.TempImagesDir(),
		EvictionCap: cfg.ImageCacheCap,
		Logger:      logger,
	})
}

// weatherCmd creates the weather command.
func weatherCmd(st *store.Store, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "weather",
		Usage:     "Show current conditions for a city (cached when fresh)",
		ArgsUsage: "<city>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "background", Aliases: []string{"b"}, Usage: "Also resolve a background image for the condition"},
		},
		Action: func(c *cli.Context) error {
			city := c.Args().First()
			if city == "" {
				return outputError(errors.NewParse("city argument is required", nil))
			}
			if cfg.WeatherAPIKey == "" {
				return cli.Exit("weather API key not configured (set SKYCAST_WEATHER_API_KEY)", 1)
			}

			svc := service.New(service.Deps{
				Weather:    weathercache.New(st),
				Settings:   st,
				Fetcher:    weatherapi.New(cfg.WeatherAPIKey, httpTimeout(cfg)),
				TTLSeconds: int64(cfg.FreshnessTTLSeconds),
				Logger:     logger,
			})

			rec, source, err := svc.Current(c.Context, city)
			if err != nil {
				return outputError(err)
			}

			out := struct {
				Source     service.Source       `json:"source"`
				Record     *weathercache.Record `json:"record"`
				Background string               `json:"background,omitempty"`
			}{Source: source, Record: rec}

			if c.Bool("background") {
				pipeline := newPipeline(st, cfg, logger)
				out.Background = pipeline.ResolveForCondition(c.Context, rec.ConditionText)
			}
			return outputJSON(out)
		},
	}
}

// citiesCmd creates the cities command.
func citiesCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "cities",
		Usage: "List cached cities",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "List full records for favorite cities only"},
		},
		Action: func(c *cli.Context) error {
			cache := weathercache.New(st)

			if c.Bool("favorites") {
				records, err := cache.ListFavorites()
				if err != nil {
					return outputError(err)
				}
				return outputJSON(struct {
					Favorites []weathercache.Record `json:"favorites"`
				}{Favorites: records})
			}

			names, err := cache.ListAllCityNames()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(struct {
				Cities []string `json:"cities"`
			}{Cities: names})
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Mark a cached city as a favorite",
		ArgsUsage: "<city>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "unset", Aliases: []string{"u"}, Usage: "Clear the favorite flag instead"},
		},
		Action: func(c *cli.Context) error {
			city := c.Args().First()
			if city == "" {
				return outputError(errors.NewParse("city argument is required", nil))
			}

			favorite := !c.Bool("unset")
			if err := weathercache.New(st).SetFavorite(city, favorite); err != nil {
				return outputError(err)
			}
			return outputJSON(struct {
				City     string `json:"city"`
				Favorite bool   `json:"favorite"`
			}{City: city, Favorite: favorite})
		},
	}
}

// backgroundCmd creates the background command.
func backgroundCmd(st *store.Store, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "background",
		Usage: "Resolve the background image through the fallback chain",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "condition", Aliases: []string{"c"}, Usage: "Resolve for a condition text instead of the full chain"},
			&cli.StringFlag{Name: "set", Usage: "Store a local image file as the custom background"},
		},
		Action: func(c *cli.Context) error {
			pipeline := newPipeline(st, cfg, logger)

			if path := c.String("set"); path != "" {
				if err := pipeline.SetCustomBackground(path); err != nil {
					return outputError(err)
				}
				stored, err := st.BackgroundImagePath()
				if err != nil {
					return outputError(err)
				}
				return outputJSON(struct {
					BackgroundImagePath string `json:"background_image_path"`
				}{BackgroundImagePath: stored})
			}

			var ref string
			if condition := c.String("condition"); condition != "" {
				ref = pipeline.ResolveForCondition(c.Context, condition)
			} else {
				ref = pipeline.Resolve(c.Context)
			}
			return outputJSON(struct {
				Background string `json:"background"`
			}{Background: ref})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a city's cached record",
		ArgsUsage: "<city>",
		Action: func(c *cli.Context) error {
			city := c.Args().First()
			if city == "" {
				return outputError(errors.NewParse("city argument is required", nil))
			}
			if err := weathercache.New(st).Delete(city); err != nil {
				return outputError(err)
			}
			return outputJSON(struct {
				Deleted string `json:"deleted"`
			}{Deleted: city})
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every cached weather record",
		Action: func(c *cli.Context) error {
			if err := weathercache.New(st).ClearAll(); err != nil {
				return outputError(err)
			}
			return outputJSON(struct {
				Cleared bool `json:"cleared"`
			}{Cleared: true})
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(st *store.Store, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run image cache maintenance (age sweep, LRU cap, temp cleanup)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "cap", Usage: "Maximum cached images to keep (default from config)"},
			&cli.IntFlag{Name: "max-age", Usage: "Age threshold in days (default from config)"},
			&cli.BoolFlag{Name: "watch", Usage: "Keep running and sweep on the configured interval"},
		},
		Action: func(c *cli.Context) error {
			maxAge := cfg.ImageMaxAgeDays
			if c.IsSet("max-age") {
				maxAge = c.Int("max-age")
			}
			capCount := cfg.ImageCacheCap
			if c.IsSet("cap") {
				capCount = c.Int("cap")
			}

			images := imagecache.New(st)
			j := janitor.New(janitor.Options{
				Images:     images,
				TempDir:    st.TempImagesDir(),
				Interval:   time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
				MaxAgeDays: maxAge,
				Cap:        capCount,
				Logger:     logger,
			})

			if c.Bool("watch") {
				if err := j.Start(); err != nil {
					return outputError(err)
				}
				defer j.Stop()

				sig := make(chan os.Signal, 1)
				signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
				<-sig
				return nil
			}

			j.RunOnce()
			remaining, err := images.ListAll()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(struct {
				Remaining int `json:"remaining"`
			}{Remaining: len(remaining)})
		},
	}
}

// repairTimestampsCmd creates the repair-timestamps command. Records
// written by older builds could carry a zero cached_at, which made them
// permanently stale; this stamps them with the current time.
func repairTimestampsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "repair-timestamps",
		Usage: "Stamp weather records that have a zero cached_at",
		Action: func(c *cli.Context) error {
			db, err := st.DB()
			if err != nil {
				return outputError(err)
			}
			defer db.Close()

			var scanned int
			if err := db.QueryRow(`SELECT COUNT(*) FROM weather_records`).Scan(&scanned); err != nil {
				return outputError(errors.NewStorage("count weather records", err))
			}

			result, err := db.Exec(
				`UPDATE weather_records SET cached_at = ? WHERE cached_at = 0`,
				time.Now().Unix(),
			)
			if err != nil {
				return outputError(errors.NewStorage("repair timestamps", err))
			}
			updated, err := result.RowsAffected()
			if err != nil {
				return outputError(errors.NewStorage("repair timestamps", err))
			}

			return outputJSON(struct {
				Scanned int   `json:"scanned"`
				Updated int64 `json:"updated"`
			}{Scanned: scanned, Updated: updated})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if scErr, ok := err.(*errors.SkycastError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", scErr.Code, scErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
