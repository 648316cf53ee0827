package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"qbank/internal/idgen"
	"qbank/internal/logger"
	"qbank/internal/models"
)

// Pipeline faults reported in ETLResult.Errors.
var (
	ErrSkipScrape       = errors.New("scrape skipped: no other pipeline steps available")
	ErrValidationFailed = errors.New("validation failed")
	ErrNilStageResult   = errors.New("stage returned no result")
)

// State is a lifecycle position of a single run.
type State string

// Lifecycle states, in order.
const (
	StateInitialized       State = "initialized"
	StateScraped           State = "scraped"
	StateParsed            State = "parsed"
	StateTransformed       State = "transformed"
	StateValidated         State = "validated"
	StateValidationSkipped State = "validation_skipped"
	StateLoaded            State = "loaded"
)

// RunOptions alter a single run.
type RunOptions struct {
	// ScrapedData, when set, replaces the scrape stage. SkipScrape still fails.
	ScrapedData    *models.ScrapedData
	SkipScrape     bool
	SkipValidation bool
}

// Runner drives plugins through the lifecycle.
type Runner struct {
	log         *logger.Logger
	newRunID    idgen.Generator
	concurrency int
}

// NewRunner creates a runner that executes at most concurrency plugins at once.
func NewRunner(log *logger.Logger, concurrency int) *Runner {
	if log == nil {
		log = logger.Discard()
	}

	if concurrency < 1 {
		concurrency = 1
	}

	return &Runner{
		log:         log,
		newRunID:    idgen.NewRunID,
		concurrency: concurrency,
	}
}

// RunPlugin executes every stage of p and always returns a result: stage
// errors and panics become a failed ETLResult.
func (r *Runner) RunPlugin(ctx context.Context, p Plugin, opts RunOptions) (res models.ETLResult) {
	start := time.Now()

	res.RunID = r.newRunID()
	log := r.log.With("run", res.RunID)

	defer func() {
		if rec := recover(); rec != nil {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", rec))
			log.Error("plugin panicked", "panic", rec, "stack", string(debug.Stack()))
		}

		res.Duration = time.Since(start)
	}()

	res.PluginID = p.Info().ID
	log = log.With("plugin", res.PluginID)

	if err := r.run(ctx, p, opts, &res, log); err != nil {
		res.Errors = append(res.Errors, err.Error())
		log.Error("❌ pipeline failed", "error", err)

		return res
	}

	res.Success = true
	log.Info("✅ pipeline complete", "questions", res.TotalQuestions, "sql", res.SQLPath, "elapsed", time.Since(start))

	return res
}

func (r *Runner) run(ctx context.Context, p Plugin, opts RunOptions, res *models.ETLResult, log *logger.Logger) error {
	if err := p.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	log.Info("state", "state", StateInitialized)

	if opts.SkipScrape {
		return ErrSkipScrape
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	scraped := opts.ScrapedData
	if scraped == nil {
		var err error

		scraped, err = p.Scrape(ctx)
		if err == nil && scraped == nil {
			err = ErrNilStageResult
		}

		if err != nil {
			return fmt.Errorf("scrape: %w", err)
		}
	}

	log.Info("state", "state", StateScraped, "files", len(scraped.Files))

	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := p.Parse(ctx, scraped)
	if err == nil && parsed == nil {
		err = ErrNilStageResult
	}

	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	res.Warnings = append(res.Warnings, parsed.Warnings...)
	log.Info("state", "state", StateParsed, "questions", len(parsed.Questions), "warnings", len(parsed.Warnings))

	transformed, err := p.Transform(ctx, parsed)
	if err == nil && transformed == nil {
		err = ErrNilStageResult
	}

	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	res.Warnings = append(res.Warnings, transformed.Warnings...)
	log.Info("state", "state", StateTransformed, "questions", len(transformed.Questions))

	validated := false

	if opts.SkipValidation {
		log.Warn("state", "state", StateValidationSkipped)
	} else {
		vr, err := p.Validate(ctx, transformed.Questions)
		if err == nil && vr == nil {
			err = ErrNilStageResult
		}

		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}

		res.Warnings = append(res.Warnings, vr.Warnings...)

		if !vr.IsValid {
			return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(vr.Errors, "; "))
		}

		validated = true

		log.Info("state", "state", StateValidated, "valid", vr.Stats.Valid, "total", vr.Stats.Total)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := p.Load(WithRun(ctx, Run{ID: res.RunID, Validated: validated}), transformed.Questions)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	res.SQLPath = path
	res.TotalQuestions = len(transformed.Questions)
	log.Info("state", "state", StateLoaded, "path", path)

	return nil
}

// RunBatch runs plugins concurrently and returns their results in input order.
func (r *Runner) RunBatch(ctx context.Context, plugins []Plugin, opts RunOptions) []models.ETLResult {
	results := make([]models.ETLResult, len(plugins))

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	r.log.Info("🚀 starting batch", "plugins", len(plugins), "concurrency", r.concurrency)

	for i, p := range plugins {
		g.Go(func() error {
			results[i] = r.RunPlugin(ctx, p, opts)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// Summarize aggregates batch results.
func Summarize(results []models.ETLResult) models.BatchSummary {
	s := models.BatchSummary{Total: len(results)}

	for _, res := range results {
		if res.Success {
			s.Succeeded++
			s.TotalQuestions += res.TotalQuestions
		} else {
			s.Failed++
		}

		s.TotalDuration += res.Duration
	}

	return s
}
