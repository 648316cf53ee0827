package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"qbank/internal/models"
)

// ErrQuestionNotFound is returned by GetQuestion for unknown ids.
var ErrQuestionNotFound = errors.New("question not found")

// CountQuestions returns the number of stored questions, optionally limited to one bank.
func CountQuestions(ctx context.Context, db *sql.DB, bankID string) (int, error) {
	var (
		n   int
		err error
	)

	if bankID == "" {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	} else {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE bank_id = $1`, bankID).Scan(&n)
	}

	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}

	return n, nil
}

// GetQuestion loads one stored question by id.
func GetQuestion(ctx context.Context, db *sql.DB, id string) (*models.CompleteQuestion, error) {
	const q = `SELECT id, bank_id, position, stem, options, correct_index, area, year,
  institution, institution_tier, exam_type, source, total_questions, option_count,
  difficulty, discrimination, guessing, infit, outfit, irt_estimated, irt_confidence, irt_method
FROM questions WHERE id = $1`

	var (
		out     models.CompleteQuestion
		options string
		method  string
		infit   sql.NullFloat64
		outfit  sql.NullFloat64
	)

	err := db.QueryRowContext(ctx, q, id).Scan(
		&out.ID, &out.BankID, &out.Metadata.Position, &out.Stem, &options, &out.CorrectIndex, &out.Area, &out.Year,
		&out.Metadata.Institution, &out.Metadata.InstitutionTier, &out.Metadata.ExamType, &out.Metadata.Source,
		&out.Metadata.TotalQuestions, &out.Metadata.OptionCount,
		&out.IRT.Difficulty, &out.IRT.Discrimination, &out.IRT.Guessing, &infit, &outfit,
		&out.IRT.Estimated, &out.IRT.Confidence, &method,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(options), &out.Options); err != nil {
		return nil, fmt.Errorf("decode options of %s: %w", id, err)
	}

	out.IRT.Method = models.EstimationMethod(method)

	if infit.Valid {
		out.IRT.Infit = &infit.Float64
	}

	if outfit.Valid {
		out.IRT.Outfit = &outfit.Float64
	}

	return &out, nil
}
