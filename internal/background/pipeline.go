// Package background resolves which background image the dashboard shows.
// Resolution is a deterministic, best-effort fallback chain; no stage
// failure is fatal and the pipeline always returns a usable reference,
// worst case the bundled default.
package background

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/skycastapp/skycast/internal/imagecache"
	"github.com/skycastapp/skycast/internal/weathercache"
)

// DefaultBackgroundRef is the bundled default background, the terminal
// always-succeeds stage. It is never written to the last-used pointer so a
// future resolution retries network sources instead of sticking on it.
const DefaultBackgroundRef = "builtin://default-background.jpg"

const builtinPrefix = "builtin://"

// Settings is the slice of the settings store the pipeline depends on.
type Settings interface {
	BackgroundImagePath() (string, error)
	SetBackgroundImagePath(path string) error
	LastSelectedCity() (string, error)
}

// WeatherReader reads cached weather records.
type WeatherReader interface {
	Get(cityName string) (*weathercache.Record, error)
}

// ImageStore is the slice of the image cache the pipeline depends on.
type ImageStore interface {
	Get(url string) (*imagecache.Entry, error)
	Put(e *imagecache.Entry) error
	EvictToCap(maxCount int) error
}

// PhotoSearcher finds one photo URL for a search query.
type PhotoSearcher interface {
	FirstLargeURL(ctx context.Context, query string) (string, error)
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Settings   Settings
	Weather    WeatherReader
	Images     ImageStore
	Search     PhotoSearcher
	Downloader Downloader
	Conditions *ConditionCache
	Pointer    *LastUsedPointer
	TempDir    string
	// EvictionCap is applied after each fresh download. 0 means the
	// imagecache default.
	EvictionCap int
	Logger      *zap.Logger
}

// Pipeline resolves background images through the fallback chain.
type Pipeline struct {
	settings   Settings
	weather    WeatherReader
	images     ImageStore
	search     PhotoSearcher
	downloader Downloader
	conditions *ConditionCache
	pointer    *LastUsedPointer
	tempDir    string
	cap        int
	logger     *zap.Logger
}

// New creates a pipeline from deps.
func New(d Deps) *Pipeline {
	if d.Conditions == nil {
		d.Conditions = NewConditionCache()
	}
	if d.EvictionCap == 0 {
		d.EvictionCap = imagecache.DefaultCap
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Pipeline{
		settings:   d.Settings,
		weather:    d.Weather,
		images:     d.Images,
		search:     d.Search,
		downloader: d.Downloader,
		conditions: d.Conditions,
		pointer:    d.Pointer,
		tempDir:    d.TempDir,
		cap:        d.EvictionCap,
		logger:     d.Logger,
	}
}

// stageStatus tags the outcome of one fallback stage.
type stageStatus int

const (
	stageHit stageStatus = iota
	stageMiss
	stageFailed
)

type stageResult struct {
	status stageStatus
	ref    string
	err    error
}

func hit(ref string) stageResult   { return stageResult{status: stageHit, ref: ref} }
func miss() stageResult            { return stageResult{status: stageMiss} }
func failed(err error) stageResult { return stageResult{status: stageFailed, err: err} }

type stage struct {
	name string
	run  func(ctx context.Context) stageResult
}

// Resolve runs the full fallback chain: custom background, last-used
// pointer, condition search with cache-or-download, bundled default. It
// never fails; stage errors are logged and the chain advances.
func (p *Pipeline) Resolve(ctx context.Context) string {
	stages := []stage{
		{"custom-background", p.customStage},
		{"last-used", p.lastUsedStage},
		{"condition-search", p.conditionStage},
	}
	return p.runChain(ctx, stages)
}

// ResolveForCondition skips the custom and last-used stages and resolves
// directly from condition text. Invoked whenever a fresh fetch changes the
// displayed condition.
func (p *Pipeline) ResolveForCondition(ctx context.Context, condition string) string {
	stages := []stage{
		{"condition-search", func(ctx context.Context) stageResult {
			return p.searchAndMaterialize(ctx, condition)
		}},
	}
	return p.runChain(ctx, stages)
}

func (p *Pipeline) runChain(ctx context.Context, stages []stage) string {
	for _, st := range stages {
		res := st.run(ctx)
		switch res.status {
		case stageHit:
			p.logger.Debug("background resolved",
				zap.String("stage", st.name), zap.String("ref", res.ref))
			return res.ref
		case stageFailed:
			p.logger.Warn("background stage failed",
				zap.String("stage", st.name), zap.Error(res.err))
		}
	}
	p.logger.Debug("background resolved", zap.String("stage", "bundled-default"))
	return DefaultBackgroundRef
}

// customStage resolves the user-set background path. A stale path (file
// deleted since it was configured) is a miss, not a hit.
func (p *Pipeline) customStage(_ context.Context) stageResult {
	path, err := p.settings.BackgroundImagePath()
	if err != nil {
		return failed(err)
	}
	if path == "" {
		return miss()
	}
	if !strings.HasPrefix(path, builtinPrefix) && !fileExists(path) {
		return miss()
	}
	p.saveLastUsed(path)
	return hit(toURI(path))
}

// lastUsedStage resolves the persisted pointer. Remote URLs are returned
// verbatim; local paths are verified on disk first.
func (p *Pipeline) lastUsedStage(_ context.Context) stageResult {
	ref, err := p.pointer.Load()
	if err != nil {
		return failed(err)
	}
	if ref == "" {
		return miss()
	}
	if strings.HasPrefix(ref, "http") || strings.HasPrefix(ref, builtinPrefix) {
		p.saveLastUsed(ref)
		return hit(ref)
	}
	if !fileExists(ref) {
		return miss()
	}
	p.saveLastUsed(ref)
	return hit(toURI(ref))
}

// conditionStage reads the last-selected city's cached condition and
// resolves from it.
func (p *Pipeline) conditionStage(ctx context.Context) stageResult {
	city, err := p.settings.LastSelectedCity()
	if err != nil {
		return failed(err)
	}
	if city == "" {
		return miss()
	}
	rec, err := p.weather.Get(city)
	if err != nil {
		return failed(err)
	}
	if rec == nil || rec.ConditionText == "" {
		return miss()
	}
	return p.searchAndMaterialize(ctx, rec.ConditionText)
}

// searchAndMaterialize finds a photo URL for the condition (consulting the
// in-process condition cache first) and turns it into a local reference via
// the image cache, downloading on a full miss. A failed download still
// yields the raw remote URL.
func (p *Pipeline) searchAndMaterialize(ctx context.Context, condition string) stageResult {
	url, ok := p.conditions.Get(condition)
	if !ok {
		query := QueryForCondition(condition)
		var err error
		url, err = p.search.FirstLargeURL(ctx, query)
		if err != nil {
			return failed(err)
		}
		if url == "" {
			return miss()
		}
		p.conditions.Put(condition, url)
	}

	entry, err := p.images.Get(url)
	if err != nil {
		return failed(err)
	}
	if entry != nil {
		localPath, err := p.writeTempImage(entry.ImageData)
		if err != nil {
			return failed(err)
		}
		p.saveLastUsed(localPath)
		return hit(toURI(localPath))
	}

	data, err := p.downloader.Fetch(ctx, url)
	if err != nil {
		// The search result is still usable for direct network display
		p.logger.Warn("image download failed, using remote URL",
			zap.String("url", url), zap.Error(err))
		p.saveLastUsed(url)
		return hit(url)
	}

	if err := p.images.Put(&imagecache.Entry{
		ImageURL:  url,
		Condition: condition,
		ImageData: data,
	}); err != nil {
		return failed(err)
	}
	if err := p.images.EvictToCap(p.cap); err != nil {
		p.logger.Warn("image cache eviction failed", zap.Error(err))
	}

	localPath, err := p.writeTempImage(data)
	if err != nil {
		return failed(err)
	}
	p.saveLastUsed(localPath)
	return hit(toURI(localPath))
}

// SetCustomBackground stores a local image as the user's custom background:
// the bytes go into the image cache under a custom:// pseudo-URL, a temp
// copy is written, and its path becomes the custom-background setting.
func (p *Pipeline) SetCustomBackground(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	pseudoURL := "custom://" + filepath.Base(path)
	if err := p.images.Put(&imagecache.Entry{
		ImageURL:  pseudoURL,
		Condition: "custom",
		ImageData: data,
	}); err != nil {
		return err
	}

	tempPath, err := p.writeTempImage(data)
	if err != nil {
		return err
	}
	return p.settings.SetBackgroundImagePath(tempPath)
}

// saveLastUsed writes the pointer, logging rather than failing the stage:
// a usable reference beats a persisted one.
func (p *Pipeline) saveLastUsed(ref string) {
	if err := p.pointer.Save(ref); err != nil {
		p.logger.Warn("save last-used pointer failed", zap.Error(err))
	}
}

// writeTempImage materializes image bytes into the scoped temp directory
// and returns the file's absolute path.
func (p *Pipeline) writeTempImage(data []byte) (string, error) {
	if err := os.MkdirAll(p.tempDir, 0700); err != nil {
		return "", err
	}
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.tempDir, fmt.Sprintf("temp_%s.jpg", id.String()))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", err
	}
	return path, nil
}

// toURI converts a local path to a display URI. Already-schemed references
// pass through unchanged.
func toURI(ref string) string {
	for _, prefix := range []string{"http://", "https://", "file://", builtinPrefix} {
		if strings.HasPrefix(ref, prefix) {
			return ref
		}
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return ref
	}
	return "file://" + filepath.ToSlash(abs)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
