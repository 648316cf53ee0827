// Package models defines data structures shared by the ETL pipeline stages.
package models

// Institution tiers used as an estimation signal.
const (
	TierNationalLeading = "TIER_1_NATIONAL"
	TierRegionalStrong  = "TIER_2_REGIONAL_STRONG"
	TierRegional        = "TIER_3_REGIONAL"
	TierLocal           = "TIER_4_LOCAL"
)

// Exam types.
const (
	ExamTypeNational   = "national"
	ExamTypeRegional   = "regional"
	ExamTypeRevalida   = "revalida"
	ExamTypeUniversity = "university"
)

// EstimationMethod records where a set of IRT parameters came from.
type EstimationMethod string

// Estimation methods.
const (
	MethodMetadata  EstimationMethod = "metadata"
	MethodExpert    EstimationMethod = "expert"
	MethodEmpirical EstimationMethod = "empirical"
)

// RawOption is a lettered option as it appears in the source document.
type RawOption struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// RawQuestion is a question as extracted by a parser, before enrichment.
type RawQuestion struct {
	Metadata      map[string]any `json:"metadata,omitempty"`
	Stem          string         `json:"stem"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	Options       []RawOption    `json:"options"`
	Number        int            `json:"number"`
}

// Option is a finished answer option.
type Option struct {
	Letter   string `json:"letter"`
	Text     string `json:"text"`
	Feedback string `json:"feedback,omitempty"`
}

// QuestionMetadata carries the structural signals the estimator works from.
type QuestionMetadata struct {
	Institution     string `json:"institution"`
	InstitutionTier string `json:"institutionTier"`
	ExamType        string `json:"examType"`
	Source          string `json:"source"`
	Position        int    `json:"position"`
	TotalQuestions  int    `json:"totalQuestions"`
	OptionCount     int    `json:"optionCount"`
}

// IRTParameters holds the three-parameter logistic model values for an item.
type IRTParameters struct {
	Infit          *float64         `json:"infit,omitempty"`
	Outfit         *float64         `json:"outfit,omitempty"`
	Method         EstimationMethod `json:"method"`
	Difficulty     float64          `json:"difficulty"`
	Discrimination float64          `json:"discrimination"`
	Guessing       float64          `json:"guessing"`
	Confidence     float64          `json:"confidence"`
	Estimated      bool             `json:"estimated"`
}

// CompleteQuestion is the canonical output unit of the pipeline.
type CompleteQuestion struct {
	ID           string           `json:"id"`
	BankID       string           `json:"bankId"`
	Stem         string           `json:"stem"`
	Area         string           `json:"area"`
	Options      []Option         `json:"options"`
	Metadata     QuestionMetadata `json:"metadata"`
	IRT          IRTParameters    `json:"irt"`
	CorrectIndex int              `json:"correctIndex"`
	Year         int              `json:"year"`
}

// CorrectLetter returns the letter of the correct option, or "" when the index is out of range.
func (q *CompleteQuestion) CorrectLetter() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}

	return q.Options[q.CorrectIndex].Letter
}
