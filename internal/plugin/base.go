package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"qbank/internal/cache"
	"qbank/internal/config"
	"qbank/internal/downloader"
	"qbank/internal/logger"
	"qbank/internal/models"
	"qbank/internal/normalizer"
	"qbank/internal/sqlgen"
	"qbank/internal/store"
)

// ErrNotInitialized is returned by Base helpers used before Initialize.
var ErrNotInitialized = errors.New("plugin not initialized")

// Base implements the stages every source shares. Variants embed it and
// provide Scrape, Parse, Transform and the introspection methods.
type Base struct {
	env       *Env
	log       *logger.Logger
	cache     *cache.Store
	processor *normalizer.Processor
	info      Info
	mu        sync.Mutex
}

// NewBase creates the shared part of a plugin.
func NewBase(info Info, env *Env) *Base {
	return &Base{
		env:       env,
		log:       env.Logger.With("plugin", info.ID),
		processor: normalizer.NewProcessor(env.Estimator),
		info:      info,
	}
}

// Info returns the plugin identity.
func (b *Base) Info() Info {
	return b.info
}

// Initialize opens the plugin's cache directory.
func (b *Base) Initialize(_ context.Context) error {
	c, err := cache.NewStore(b.env.Config.CacheDirFor(b.info.ID))
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cache == nil {
		b.cache = c
	}

	return nil
}

// Log returns the plugin-scoped logger.
func (b *Base) Log() *logger.Logger {
	return b.log
}

// Env returns the shared leaves.
func (b *Base) Env() *Env {
	return b.env
}

// Source returns this plugin's configuration section.
func (b *Base) Source() config.SourceConfig {
	return b.env.Config.Source(b.info.ID)
}

// Now returns the current time from the shared clock.
func (b *Base) Now() time.Time {
	return b.env.Now()
}

// Cache returns the plugin's cache store, or nil before Initialize.
func (b *Base) Cache() *cache.Store {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.cache
}

// Fetch returns the cached artifact name when it is valid, otherwise
// downloads it from the first of urls that answers and caches the payload.
// A failed cache write is logged and does not fail the fetch.
func (b *Base) Fetch(ctx context.Context, name string, opts downloader.Options, urls ...string) ([]byte, error) {
	c := b.Cache()
	if c == nil {
		return nil, ErrNotInitialized
	}

	if c.IsCached(name, b.env.Config.Pipeline.MinCacheBytes) {
		data, err := c.Read(name)
		if err == nil {
			b.log.Debug("cache hit", "file", name, "bytes", len(data))

			return data, nil
		}

		b.log.Warn("cache read failed, downloading", "file", name, "error", err)
	}

	res, err := b.env.Downloader.DownloadFirst(ctx, urls, opts)
	if err != nil {
		return nil, err
	}

	data := res.Data

	if err := c.Save(name, data); err != nil {
		b.log.Warn("failed to cache download", "file", name, "error", err)
	}

	b.log.Info("downloaded", "file", name, "url", res.URL, "bytes", len(data))

	return data, nil
}

// ExtractText turns a downloaded document into plain text.
func (b *Base) ExtractText(data []byte) (string, error) {
	return b.env.Extractor.Extract(data)
}

// Process validates and enriches raw questions for one exam.
func (b *Base) Process(src normalizer.Source, parsed *models.ParsedQuestions, cal *normalizer.Calibration) (*models.TransformedQuestions, error) {
	return b.processor.Process(src, parsed, cal)
}

// Validate runs the shared question validator.
func (b *Base) Validate(_ context.Context, questions []models.CompleteQuestion) (*models.ValidationResult, error) {
	return b.env.Validator.Validate(questions), nil
}

// Load writes the signed upsert script and, when configured, applies it.
func (b *Base) Load(ctx context.Context, questions []models.CompleteQuestion) (string, error) {
	run := RunFrom(ctx)

	path, err := b.env.Writer.Write(sqlgen.Artifact{
		PluginID:   b.info.ID,
		PluginName: b.info.Name,
		RunID:      run.ID,
		Questions:  questions,
		Validated:  run.Validated,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	db := b.env.Config.Database
	if !db.ApplyOnLoad {
		return path, nil
	}

	n, err := store.ApplyFile(ctx, store.Driver(db.Driver), db.DSN, path)
	if err != nil {
		return path, fmt.Errorf("failed to apply %s: %w", path, err)
	}

	b.log.Info("script applied", "path", path, "statements", n)

	return path, nil
}
