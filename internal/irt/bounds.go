package irt

import (
	"errors"
	"fmt"

	"qbank/internal/models"
)

// Plausible parameter ranges, independent of the estimator's own clamps.
var (
	DifficultyRange     = Bounds{Min: -4, Max: 4}
	DiscriminationRange = Bounds{Min: 0.3, Max: 2.5}
	GuessingRange       = Bounds{Min: 0, Max: 0.5}
)

// ErrOutOfBounds is returned when a parameter lies outside its plausible range.
var ErrOutOfBounds = errors.New("irt parameter out of bounds")

// CheckBounds validates a finished parameter triple.
func CheckBounds(difficulty, discrimination, guessing float64) error {
	var errs []error

	if !DifficultyRange.Contains(difficulty) {
		errs = append(errs, fmt.Errorf("%w: difficulty %.3f not in [%g, %g]",
			ErrOutOfBounds, difficulty, DifficultyRange.Min, DifficultyRange.Max))
	}

	if !DiscriminationRange.Contains(discrimination) {
		errs = append(errs, fmt.Errorf("%w: discrimination %.3f not in [%g, %g]",
			ErrOutOfBounds, discrimination, DiscriminationRange.Min, DiscriminationRange.Max))
	}

	if !GuessingRange.Contains(guessing) {
		errs = append(errs, fmt.Errorf("%w: guessing %.3f not in [%g, %g]",
			ErrOutOfBounds, guessing, GuessingRange.Min, GuessingRange.Max))
	}

	return errors.Join(errs...)
}

// CheckParameters validates a persisted parameter block.
func CheckParameters(p models.IRTParameters) error {
	return CheckBounds(p.Difficulty, p.Discrimination, p.Guessing)
}
