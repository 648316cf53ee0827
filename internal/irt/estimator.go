package irt

import (
	"math"

	"qbank/internal/models"
)

// MaxMetadataConfidence caps the confidence of any metadata-only estimate.
const MaxMetadataConfidence = 0.85

// Input is the structural metadata an estimate is derived from.
type Input struct {
	InstitutionTier string
	ExamType        string
	Area            string
	Year            int
	Position        int
	TotalQuestions  int
	OptionCount     int
}

// Components records every term that went into an estimate.
type Components struct {
	PositionModel         string  `json:"positionModel"`
	Base                  float64 `json:"base"`
	TierAdjustment        float64 `json:"tierAdjustment"`
	YearDrift             float64 `json:"yearDrift"`
	ExamTypeAdjustment    float64 `json:"examTypeAdjustment"`
	PositionEffect        float64 `json:"positionEffect"`
	AreaAdjustment        float64 `json:"areaAdjustment"`
	InteractionAdjustment float64 `json:"interactionAdjustment"`
	UnclampedDifficulty   float64 `json:"unclampedDifficulty"`
	TierMultiplier        float64 `json:"tierMultiplier"`
	ExamTypeMultiplier    float64 `json:"examTypeMultiplier"`
	AreaMultiplier        float64 `json:"areaMultiplier"`
	PositionTerm          float64 `json:"positionTerm"`
	AreaKnown             bool    `json:"areaKnown"`
	InteractionApplied    bool    `json:"interactionApplied"`
}

// Estimate is the result of a metadata estimation.
type Estimate struct {
	Method         models.EstimationMethod `json:"method"`
	Components     Components              `json:"components"`
	Difficulty     float64                 `json:"difficulty"`
	Discrimination float64                 `json:"discrimination"`
	Guessing       float64                 `json:"guessing"`
	Confidence     float64                 `json:"confidence"`
}

// Parameters converts the estimate into the persisted parameter block.
func (e Estimate) Parameters() models.IRTParameters {
	return models.IRTParameters{
		Difficulty:     e.Difficulty,
		Discrimination: e.Discrimination,
		Guessing:       e.Guessing,
		Estimated:      true,
		Confidence:     e.Confidence,
		Method:         e.Method,
	}
}

// Estimator computes IRT parameters from metadata. It is safe for concurrent use.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator over a private copy of cfg.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg.Clone()}
}

// Config returns a copy of the coefficient table in use.
func (e *Estimator) Config() Config {
	return e.cfg.Clone()
}

// Estimate derives difficulty, discrimination, guessing and confidence.
// Lookups that miss fall back to neutral values; it never fails.
func (e *Estimator) Estimate(in Input) Estimate {
	area := NormalizeArea(in.Area)
	comp := Components{}

	difficulty := e.difficulty(in, area, &comp)
	discrimination := e.discrimination(in, area, &comp)

	return Estimate{
		Difficulty:     difficulty,
		Discrimination: discrimination,
		Guessing:       e.Guessing(in.OptionCount),
		Confidence:     e.confidence(in, &comp),
		Components:     comp,
		Method:         models.MethodMetadata,
	}
}

func (e *Estimator) difficulty(in Input, area string, comp *Components) float64 {
	cfg := e.cfg.Difficulty

	comp.Base = cfg.Base
	comp.TierAdjustment = cfg.TierAdjustments[in.InstitutionTier]
	comp.YearDrift = float64(cfg.ReferenceYear-in.Year) * cfg.PerYearDrift
	comp.ExamTypeAdjustment = cfg.ExamTypeAdjustments[in.ExamType]
	comp.PositionEffect, comp.PositionModel = positionEffect(cfg.Position, in.Position, in.TotalQuestions)

	if area != "" {
		if adj, ok := cfg.AreaAdjustments[area]; ok {
			comp.AreaAdjustment = adj
			comp.AreaKnown = true
		}

		if adj, ok := cfg.Interactions[in.InstitutionTier][area]; ok {
			comp.InteractionAdjustment = adj
			comp.InteractionApplied = true
		}
	}

	sum := comp.Base +
		comp.TierAdjustment +
		comp.YearDrift +
		comp.ExamTypeAdjustment +
		comp.PositionEffect +
		comp.AreaAdjustment +
		comp.InteractionAdjustment

	comp.UnclampedDifficulty = sum

	return cfg.Bounds.Clamp(sum)
}

// positionEffect centers the position on the exam midpoint.
func positionEffect(cfg PositionConfig, position, total int) (float64, string) {
	if total <= 0 {
		return 0, "none"
	}

	c := float64(position) - float64(total)/2

	if !cfg.HasPolynomial() {
		return cfg.LinearFallback * c, "linear"
	}

	effect := cfg.Linear*c + cfg.Quadratic*c*c + cfg.Cubic*c*c*c
	limit := Bounds{Min: -cfg.Limit, Max: cfg.Limit}

	return limit.Clamp(effect), "polynomial"
}

func (e *Estimator) discrimination(in Input, area string, comp *Components) float64 {
	cfg := e.cfg.Discrimination

	comp.TierMultiplier = multiplier(cfg.TierMultipliers, in.InstitutionTier)
	comp.ExamTypeMultiplier = multiplier(cfg.ExamTypeMultipliers, in.ExamType)
	comp.AreaMultiplier = 1.0

	if area != "" {
		comp.AreaMultiplier = multiplier(cfg.AreaMultipliers, area)
	}

	value := cfg.Base * comp.TierMultiplier * comp.ExamTypeMultiplier * comp.AreaMultiplier

	ratio := positionRatio(in.Position, in.TotalQuestions)
	comp.PositionTerm = cfg.EdgePenalty + (cfg.CenterBoost-cfg.EdgePenalty)*math.Sin(math.Pi*ratio)

	return cfg.Bounds.Clamp(value + comp.PositionTerm)
}

func multiplier(table map[string]float64, key string) float64 {
	if m, ok := table[key]; ok {
		return m
	}

	return 1.0
}

// positionRatio maps position 1..total onto [0, 1]; single-item exams sit at the center.
func positionRatio(position, total int) float64 {
	if total <= 1 {
		return 0.5
	}

	r := float64(position-1) / float64(total-1)

	return Bounds{Min: 0, Max: 1}.Clamp(r)
}

// Guessing returns the pseudo-guessing parameter for an option count.
func (e *Estimator) Guessing(optionCount int) float64 {
	if g, ok := e.cfg.Guessing.ByOptionCount[optionCount]; ok {
		return g
	}

	return e.cfg.Guessing.Default
}

func (e *Estimator) confidence(in Input, comp *Components) float64 {
	cfg := e.cfg.Confidence

	conf, ok := cfg.TierBase[in.InstitutionTier]
	if !ok {
		conf = cfg.DefaultBase
	}

	if comp.AreaKnown {
		conf += cfg.AreaBonus
	}

	if comp.InteractionApplied {
		conf += cfg.InteractionBonus
	}

	if comp.PositionModel == "polynomial" {
		conf += cfg.PolynomialBonus
	}

	conf += cfg.ModelVersionBonus

	return Bounds{Min: 0, Max: MaxMetadataConfidence}.Clamp(conf)
}
