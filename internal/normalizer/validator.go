package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"qbank/internal/models"
)

// Raw question faults. A faulty question is dropped with a warning.
var (
	ErrEmptyStem        = errors.New("empty stem")
	ErrTooFewOptions    = errors.New("fewer than two options")
	ErrNoCorrectAnswer  = errors.New("no correct answer")
	ErrUnknownAnswer    = errors.New("correct answer matches no option")
	ErrInvalidNumber    = errors.New("question number must be positive")
	ErrDuplicateNumbers = errors.New("duplicate question number")
)

// Validator checks raw questions before enrichment.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that q can be turned into a complete question.
func (v *Validator) Validate(q models.RawQuestion) error {
	if q.Number < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidNumber, q.Number)
	}

	if strings.TrimSpace(q.Stem) == "" {
		return ErrEmptyStem
	}

	if len(q.Options) < 2 {
		return ErrTooFewOptions
	}

	if q.CorrectAnswer == "" {
		return ErrNoCorrectAnswer
	}

	if correctIndex(q) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownAnswer, q.CorrectAnswer)
	}

	return nil
}

// correctIndex returns the zero-based position of the answer letter, or -1.
func correctIndex(q models.RawQuestion) int {
	for i, o := range q.Options {
		if strings.EqualFold(o.Letter, strings.TrimSpace(q.CorrectAnswer)) {
			return i
		}
	}

	return -1
}
