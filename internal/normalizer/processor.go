// Package normalizer turns parsed raw questions into complete, estimated questions.
package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"qbank/internal/irt"
	"qbank/internal/models"
)

// ErrNoUsableQuestions is returned when every raw question was rejected.
var ErrNoUsableQuestions = errors.New("no usable questions after normalization")

// Processor validates and transforms a parse result.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor(est *irt.Estimator) *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(est),
	}
}

// Process builds a new TransformedQuestions from parsed, leaving parsed untouched.
// Rejected questions become warnings; parse warnings are not repeated here.
func (p *Processor) Process(src Source, parsed *models.ParsedQuestions, cal *Calibration) (*models.TransformedQuestions, error) {
	if parsed == nil || len(parsed.Questions) == 0 {
		return nil, ErrNoUsableQuestions
	}

	total := src.TotalQuestions
	if total <= 0 {
		for _, q := range parsed.Questions {
			total = max(total, q.Number)
		}
	}

	out := &models.TransformedQuestions{
		Questions: make([]models.CompleteQuestion, 0, len(parsed.Questions)),
	}

	seen := make(map[int]bool, len(parsed.Questions))

	for _, raw := range parsed.Questions {
		err := p.validator.Validate(raw)
		if err == nil && seen[raw.Number] {
			err = ErrDuplicateNumbers
		}

		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("question %d: %v, skipped", raw.Number, err))

			continue
		}

		seen[raw.Number] = true

		q, warning := p.transformer.Transform(src, total, raw, cal)
		if warning != "" {
			out.Warnings = append(out.Warnings, warning)
		}

		out.Questions = append(out.Questions, q)
	}

	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoUsableQuestions, strings.Join(out.Warnings, "; "))
	}

	return out, nil
}
