package normalizer

import (
	"fmt"
	"strings"

	"qbank/internal/idgen"
	"qbank/internal/irt"
	"qbank/internal/models"
	"qbank/internal/textparse"
)

// Source describes the exam a set of raw questions was taken from.
type Source struct {
	ID          string
	Institution string
	Tier        string
	ExamType    string
	Year        int
	// TotalQuestions overrides the exam size; zero means the highest question number seen.
	TotalQuestions int
}

// Calibration carries externally supplied parameters keyed by question number.
// Empirical parameters win over expert ones, which win over estimation.
type Calibration struct {
	Empirical map[int]irt.CalibratedItem
	Expert    map[int]irt.CalibratedItem
}

// Transformer enriches raw questions into complete ones.
type Transformer struct {
	estimator *irt.Estimator
}

// NewTransformer creates a transformer backed by est.
func NewTransformer(est *irt.Estimator) *Transformer {
	return &Transformer{estimator: est}
}

// Transform builds a complete question from an already validated raw one.
// The returned warning is empty unless calibrated parameters were rejected.
func (t *Transformer) Transform(src Source, total int, q models.RawQuestion, cal *Calibration) (models.CompleteQuestion, string) {
	options := make([]models.Option, len(q.Options))
	for i, o := range q.Options {
		options[i] = models.Option{Letter: strings.ToUpper(o.Letter), Text: o.Text}
	}

	area := metadataString(q.Metadata, "area")
	if area == "" {
		area = textparse.ClassifyArea(q.Stem)
	}

	area = irt.NormalizeArea(area)

	meta := models.QuestionMetadata{
		Institution:     src.Institution,
		InstitutionTier: src.Tier,
		ExamType:        src.ExamType,
		Source:          src.ID,
		Position:        q.Number,
		TotalQuestions:  total,
		OptionCount:     len(options),
	}

	params, warning := t.parameters(src, area, meta, q.Number, cal)

	return models.CompleteQuestion{
		ID:           idgen.QuestionID(src.ID, src.Year, q.Number),
		BankID:       idgen.BankID(src.ID, src.Year),
		Stem:         q.Stem,
		Area:         area,
		Options:      options,
		Metadata:     meta,
		IRT:          params,
		CorrectIndex: correctIndex(q),
		Year:         src.Year,
	}, warning
}

func (t *Transformer) parameters(src Source, area string, meta models.QuestionMetadata, number int, cal *Calibration) (models.IRTParameters, string) {
	var warning string

	if cal != nil {
		if item, ok := cal.Empirical[number]; ok {
			params, err := irt.FromEmpirical(item)
			if err == nil {
				return params, ""
			}

			warning = fmt.Sprintf("question %d: %v; falling back to metadata estimate", number, err)
		} else if item, ok := cal.Expert[number]; ok {
			params, err := irt.FromExpert(item)
			if err == nil {
				return params, ""
			}

			warning = fmt.Sprintf("question %d: %v; falling back to metadata estimate", number, err)
		}
	}

	est := t.estimator.Estimate(irt.Input{
		InstitutionTier: src.Tier,
		ExamType:        src.ExamType,
		Area:            area,
		Year:            src.Year,
		Position:        meta.Position,
		TotalQuestions:  meta.TotalQuestions,
		OptionCount:     meta.OptionCount,
	})

	return est.Parameters(), warning
}

func metadataString(m map[string]any, key string) string {
	s, _ := m[key].(string)

	return s
}
