// Package validator checks finished questions and signed artifacts.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"qbank/internal/irt"
	"qbank/internal/models"
	"qbank/pkg/metadata"
)

// Validation errors.
var (
	ErrNoQuestions        = errors.New("no questions to validate")
	ErrMissingID          = errors.New("missing question id")
	ErrDuplicateID        = errors.New("duplicate question id")
	ErrMissingBankID      = errors.New("missing bank id")
	ErrEmptyStem          = errors.New("empty stem")
	ErrOptionCount        = errors.New("option count out of range")
	ErrEmptyOption        = errors.New("empty option text")
	ErrDuplicateLetter    = errors.New("duplicate option letter")
	ErrCorrectIndex       = errors.New("correct index out of range")
	ErrInvalidYear        = errors.New("invalid year")
	ErrIRTOutOfBounds     = errors.New("irt parameters out of bounds")
	ErrIntegrityViolation = errors.New("integrity check failed")
)

// ValidationError is one blocking problem found on a question.
type ValidationError struct {
	Err        error
	QuestionID string
	Detail     string
	Index      int
}

func (e ValidationError) Error() string {
	id := e.QuestionID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}

	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", id, e.Err)
	}

	return fmt.Sprintf("%s: %v: %s", id, e.Err, e.Detail)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// Rules are the structural limits enforced on every question.
type Rules struct {
	MinOptions int
	MaxOptions int
	// MaxQuestions only produces a warning when exceeded; zero disables it.
	MaxQuestions int
}

// DefaultRules accepts two to five options per question.
func DefaultRules() Rules {
	return Rules{MinOptions: 2, MaxOptions: 5}
}

// QuestionValidator validates transform output.
type QuestionValidator struct {
	rules Rules
}

// NewQuestionValidator creates a validator.
func NewQuestionValidator(rules Rules) *QuestionValidator {
	return &QuestionValidator{rules: rules}
}

// Validate checks every question and returns a result that callers must
// treat as immutable.
func (v *QuestionValidator) Validate(questions []models.CompleteQuestion) *models.ValidationResult {
	errs, warnings := v.Check(questions)

	result := &models.ValidationResult{
		Errors:   make([]string, 0, len(errs)),
		Warnings: warnings,
		Stats:    models.ValidationStats{Total: len(questions)},
	}

	invalid := map[int]bool{}

	for _, e := range errs {
		result.Errors = append(result.Errors, e.Error())

		if e.Index >= 0 {
			invalid[e.Index] = true
		}
	}

	result.Stats.Invalid = len(invalid)
	result.Stats.Valid = result.Stats.Total - result.Stats.Invalid
	result.IsValid = len(errs) == 0

	return result
}

// Check returns the structured errors and the warnings for questions.
// Errors not tied to a single question carry Index -1.
func (v *QuestionValidator) Check(questions []models.CompleteQuestion) ([]ValidationError, []string) {
	var (
		errs     []ValidationError
		warnings []string
	)

	if len(questions) == 0 {
		return []ValidationError{{Err: ErrNoQuestions, QuestionID: "batch", Index: -1}}, nil
	}

	if v.rules.MaxQuestions > 0 && len(questions) > v.rules.MaxQuestions {
		warnings = append(warnings, fmt.Sprintf(
			"unusually high question count: got %d, expected max %d (check for parsing errors)",
			len(questions), v.rules.MaxQuestions))
	}

	seen := make(map[string]int, len(questions))

	for i := range questions {
		q := &questions[i]

		fail := func(err error, detail string) {
			errs = append(errs, ValidationError{Err: err, QuestionID: q.ID, Detail: detail, Index: i})
		}

		if q.ID == "" {
			fail(ErrMissingID, "")
		} else if first, dup := seen[q.ID]; dup {
			fail(ErrDuplicateID, fmt.Sprintf("also at #%d", first))
		} else {
			seen[q.ID] = i
		}

		if q.BankID == "" {
			fail(ErrMissingBankID, "")
		}

		if strings.TrimSpace(q.Stem) == "" {
			fail(ErrEmptyStem, "")
		}

		if q.Year <= 0 {
			fail(ErrInvalidYear, fmt.Sprintf("%d", q.Year))
		}

		if n := len(q.Options); n < v.rules.MinOptions || n > v.rules.MaxOptions {
			fail(ErrOptionCount, fmt.Sprintf("got %d, want %d-%d", n, v.rules.MinOptions, v.rules.MaxOptions))
		}

		letters := map[string]bool{}

		for _, o := range q.Options {
			if strings.TrimSpace(o.Text) == "" {
				fail(ErrEmptyOption, "option "+o.Letter)
			}

			if letters[o.Letter] {
				fail(ErrDuplicateLetter, o.Letter)
			}

			letters[o.Letter] = true
		}

		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			fail(ErrCorrectIndex, fmt.Sprintf("%d of %d", q.CorrectIndex, len(q.Options)))
		}

		if err := irt.CheckParameters(q.IRT); err != nil {
			fail(ErrIRTOutOfBounds, err.Error())
		}

		if q.Area == "" {
			warnings = append(warnings, fmt.Sprintf("%s: no area assigned", q.ID))
		}

		if q.Metadata.TotalQuestions > 0 && q.Metadata.Position > q.Metadata.TotalQuestions {
			warnings = append(warnings, fmt.Sprintf("%s: position %d beyond total %d",
				q.ID, q.Metadata.Position, q.Metadata.TotalQuestions))
		}
	}

	return errs, warnings
}

// ValidateIntegrity checks a signed artifact against its metadata block.
func ValidateIntegrity(content string) (*metadata.Metadata, error) {
	meta, err := metadata.Verify(content)
	if err != nil {
		return meta, fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}

	return meta, nil
}
