// Package janitor runs periodic image-cache maintenance: the age sweep,
// the LRU cap, and temp-file cleanup.
package janitor

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ImageCache is the maintenance surface of the image cache.
type ImageCache interface {
	SweepExpired(maxAgeDays int) error
	EvictToCap(maxCount int) error
}

// Janitor schedules cache maintenance on a fixed interval.
type Janitor struct {
	scheduler  *gocron.Scheduler
	images     ImageCache
	tempDir    string
	interval   time.Duration
	maxAgeDays int
	cap        int
	logger     *zap.Logger
}

// Options configures a Janitor.
type Options struct {
	Images     ImageCache
	TempDir    string
	Interval   time.Duration
	MaxAgeDays int
	Cap        int
	Logger     *zap.Logger
}

// New creates a Janitor. It does not start it.
func New(opts Options) *Janitor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Janitor{
		scheduler:  gocron.NewScheduler(time.UTC),
		images:     opts.Images,
		tempDir:    opts.TempDir,
		interval:   opts.Interval,
		maxAgeDays: opts.MaxAgeDays,
		cap:        opts.Cap,
		logger:     opts.Logger,
	}
}

// Start schedules the maintenance job and starts the scheduler. The job
// also runs once immediately so a long-idle cache is trimmed at startup.
func (j *Janitor) Start() error {
	minutes := int(j.interval.Minutes())
	if minutes <= 0 {
		minutes = 360
	}

	job, err := j.scheduler.Every(minutes).Minutes().Do(j.RunOnce)
	if err != nil {
		return err
	}
	job.SingletonMode()

	j.scheduler.StartAsync()
	go j.RunOnce()
	return nil
}

// Stop stops the scheduler and cancels future runs.
func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}

// RunOnce performs one maintenance pass. Each step is independent; a
// failing step is logged and the others still run.
func (j *Janitor) RunOnce() {
	if err := j.images.SweepExpired(j.maxAgeDays); err != nil {
		j.logger.Warn("image age sweep failed", zap.Error(err))
	}
	if err := j.images.EvictToCap(j.cap); err != nil {
		j.logger.Warn("image cap eviction failed", zap.Error(err))
	}
	if err := j.cleanTempDir(); err != nil {
		j.logger.Warn("temp image cleanup failed", zap.Error(err))
	}
	j.logger.Debug("image cache maintenance pass complete")
}

// cleanTempDir removes materialized temp images older than the sweep age.
// Fresh temp files stay; a background currently on screen may point at one.
func (j *Janitor) cleanTempDir() error {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -j.maxAgeDays)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "temp_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(j.tempDir, entry.Name())
			if err := os.Remove(path); err != nil {
				j.logger.Warn("remove temp image failed",
					zap.String("path", path), zap.Error(err))
			}
		}
	}
	return nil
}
