// Package plugin defines the source contract and drives sources through the ETL lifecycle.
package plugin

import (
	"context"

	"qbank/internal/models"
)

// Info identifies a plugin. ID is the registry key and prefixes question ids.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Plugin is one question source. Stages run strictly in declaration order.
type Plugin interface {
	Info() Info
	Initialize(ctx context.Context) error
	Scrape(ctx context.Context) (*models.ScrapedData, error)
	Parse(ctx context.Context, data *models.ScrapedData) (*models.ParsedQuestions, error)
	Transform(ctx context.Context, parsed *models.ParsedQuestions) (*models.TransformedQuestions, error)
	Validate(ctx context.Context, questions []models.CompleteQuestion) (*models.ValidationResult, error)
	Load(ctx context.Context, questions []models.CompleteQuestion) (string, error)
	EstimatedQuestionCount() int
	SupportedYears() []int
	RequiresManualSetup() bool
}

// Run labels the pipeline run a stage executes in.
type Run struct {
	ID        string
	Validated bool
}

type runKey struct{}

// WithRun attaches run details to ctx.
func WithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// RunFrom returns the run attached to ctx, or the zero Run.
func RunFrom(ctx context.Context) Run {
	run, _ := ctx.Value(runKey{}).(Run)

	return run
}
