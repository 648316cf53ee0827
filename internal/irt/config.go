// Package irt estimates Item Response Theory parameters from structural exam metadata.
package irt

import (
	"errors"
	"fmt"
	"maps"

	"qbank/internal/models"
)

// Configuration validation errors.
var (
	ErrInvalidDifficultyBounds     = errors.New("irt.difficulty.bounds: min must be below max")
	ErrInvalidDiscriminationBounds = errors.New("irt.discrimination.bounds: min must be below max")
	ErrInvalidPositionLimit        = errors.New("irt.difficulty.position.limit must be non-negative")
	ErrInvalidGuessing             = errors.New("irt.guessing values must be within [0, 1)")
	ErrInvalidReferenceYear        = errors.New("irt.difficulty.reference_year must be positive")
)

// Bounds is a closed numeric interval.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp restricts v to the interval.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}

	if v > b.Max {
		return b.Max
	}

	return v
}

// Contains reports whether v lies inside the interval.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// PositionConfig shapes the difficulty effect of an item's position in the exam.
// The cubic polynomial is used when any of its coefficients is non-zero,
// otherwise LinearFallback is applied to the centered position.
type PositionConfig struct {
	Linear         float64 `yaml:"linear"`
	Quadratic      float64 `yaml:"quadratic"`
	Cubic          float64 `yaml:"cubic"`
	Limit          float64 `yaml:"limit"`
	LinearFallback float64 `yaml:"linear_fallback"`
}

// HasPolynomial reports whether polynomial coefficients are configured.
func (p PositionConfig) HasPolynomial() bool {
	return p.Linear != 0 || p.Quadratic != 0 || p.Cubic != 0
}

// DifficultyConfig holds the additive difficulty model.
type DifficultyConfig struct {
	TierAdjustments     map[string]float64            `yaml:"tier_adjustments"`
	ExamTypeAdjustments map[string]float64            `yaml:"exam_type_adjustments"`
	AreaAdjustments     map[string]float64            `yaml:"area_adjustments"`
	Interactions        map[string]map[string]float64 `yaml:"interactions"` // tier -> area -> adjustment
	Position            PositionConfig                `yaml:"position"`
	Bounds              Bounds                        `yaml:"bounds"`
	Base                float64                       `yaml:"base"`
	PerYearDrift        float64                       `yaml:"per_year_drift"`
	ReferenceYear       int                           `yaml:"reference_year"`
}

// DiscriminationConfig holds the multiplicative discrimination model.
type DiscriminationConfig struct {
	TierMultipliers     map[string]float64 `yaml:"tier_multipliers"`
	ExamTypeMultipliers map[string]float64 `yaml:"exam_type_multipliers"`
	AreaMultipliers     map[string]float64 `yaml:"area_multipliers"`
	Bounds              Bounds             `yaml:"bounds"`
	Base                float64            `yaml:"base"`
	CenterBoost         float64            `yaml:"center_boost"`
	EdgePenalty         float64            `yaml:"edge_penalty"`
}

// GuessingConfig maps option counts to the pseudo-guessing parameter.
type GuessingConfig struct {
	ByOptionCount map[int]float64 `yaml:"by_option_count"`
	Default       float64         `yaml:"default"`
}

// ConfidenceConfig describes how much trust an estimate earns per signal used.
type ConfidenceConfig struct {
	TierBase          map[string]float64 `yaml:"tier_base"`
	DefaultBase       float64            `yaml:"default_base"`
	AreaBonus         float64            `yaml:"area_bonus"`
	InteractionBonus  float64            `yaml:"interaction_bonus"`
	PolynomialBonus   float64            `yaml:"polynomial_bonus"`
	ModelVersionBonus float64            `yaml:"model_version_bonus"`
}

// Config is the complete, swappable coefficient table of the estimator.
type Config struct {
	Difficulty     DifficultyConfig     `yaml:"difficulty"`
	Discrimination DiscriminationConfig `yaml:"discrimination"`
	Guessing       GuessingConfig       `yaml:"guessing"`
	Confidence     ConfidenceConfig     `yaml:"confidence"`
}

// DefaultConfig returns the calibrated default coefficient table.
func DefaultConfig() Config {
	return Config{
		Difficulty: DifficultyConfig{
			Base: 0.0,
			TierAdjustments: map[string]float64{
				models.TierNationalLeading: 0.4,
				models.TierRegionalStrong:  0.2,
				models.TierRegional:        0.0,
				models.TierLocal:           -0.2,
			},
			ReferenceYear: 2024,
			PerYearDrift:  0.02,
			ExamTypeAdjustments: map[string]float64{
				models.ExamTypeNational:   0.2,
				models.ExamTypeRegional:   0.0,
				models.ExamTypeRevalida:   0.1,
				models.ExamTypeUniversity: 0.3,
			},
			Position: PositionConfig{
				Linear:         0.004,
				Quadratic:      0.0,
				Cubic:          0.0000008,
				Limit:          0.5,
				LinearFallback: 0.005,
			},
			AreaAdjustments: map[string]float64{
				"cirurgia":                0.34,
				"clinica_medica":          0.12,
				"pediatria":               -0.05,
				"ginecologia_obstetricia": 0.08,
				"medicina_preventiva":     -0.18,
			},
			Interactions: map[string]map[string]float64{
				models.TierNationalLeading: {
					"cirurgia":       0.20,
					"clinica_medica": 0.10,
				},
				models.TierRegionalStrong: {
					"cirurgia": 0.10,
				},
				models.TierLocal: {
					"cirurgia": -0.05,
				},
			},
			Bounds: Bounds{Min: -3.0, Max: 3.0},
		},
		Discrimination: DiscriminationConfig{
			Base: 1.0,
			TierMultipliers: map[string]float64{
				models.TierNationalLeading: 1.15,
				models.TierRegionalStrong:  1.05,
				models.TierRegional:        1.0,
				models.TierLocal:           0.9,
			},
			ExamTypeMultipliers: map[string]float64{
				models.ExamTypeNational:   1.1,
				models.ExamTypeRegional:   1.0,
				models.ExamTypeRevalida:   1.05,
				models.ExamTypeUniversity: 1.0,
			},
			AreaMultipliers: map[string]float64{
				"cirurgia":                1.05,
				"clinica_medica":          1.0,
				"pediatria":               0.95,
				"ginecologia_obstetricia": 1.0,
				"medicina_preventiva":     0.9,
			},
			CenterBoost: 0.15,
			EdgePenalty: -0.10,
			Bounds:      Bounds{Min: 0.3, Max: 2.5},
		},
		Guessing: GuessingConfig{
			ByOptionCount: map[int]float64{
				4: 0.25,
				5: 0.20,
			},
			Default: 0.25,
		},
		Confidence: ConfidenceConfig{
			TierBase: map[string]float64{
				models.TierNationalLeading: 0.55,
				models.TierRegionalStrong:  0.50,
				models.TierRegional:        0.45,
				models.TierLocal:           0.40,
			},
			DefaultBase:       0.40,
			AreaBonus:         0.05,
			InteractionBonus:  0.05,
			PolynomialBonus:   0.05,
			ModelVersionBonus: 0.05,
		},
	}
}

// Clone returns a deep copy so overrides never leak into the receiver's maps.
func (c Config) Clone() Config {
	out := c

	out.Difficulty.TierAdjustments = maps.Clone(c.Difficulty.TierAdjustments)
	out.Difficulty.ExamTypeAdjustments = maps.Clone(c.Difficulty.ExamTypeAdjustments)
	out.Difficulty.AreaAdjustments = maps.Clone(c.Difficulty.AreaAdjustments)

	if c.Difficulty.Interactions != nil {
		out.Difficulty.Interactions = make(map[string]map[string]float64, len(c.Difficulty.Interactions))
		for tier, areas := range c.Difficulty.Interactions {
			out.Difficulty.Interactions[tier] = maps.Clone(areas)
		}
	}

	out.Discrimination.TierMultipliers = maps.Clone(c.Discrimination.TierMultipliers)
	out.Discrimination.ExamTypeMultipliers = maps.Clone(c.Discrimination.ExamTypeMultipliers)
	out.Discrimination.AreaMultipliers = maps.Clone(c.Discrimination.AreaMultipliers)
	out.Guessing.ByOptionCount = maps.Clone(c.Guessing.ByOptionCount)
	out.Confidence.TierBase = maps.Clone(c.Confidence.TierBase)

	return out
}

// MergeInteractions copies the per-tier areas of def that c does not set.
// YAML decodes each tier's table into a fresh map, so an override naming one
// area would otherwise drop the tier's other defaults.
func (c *Config) MergeInteractions(def Config) {
	for tier, areas := range def.Difficulty.Interactions {
		if c.Difficulty.Interactions == nil {
			c.Difficulty.Interactions = map[string]map[string]float64{}
		}

		got := c.Difficulty.Interactions[tier]
		if got == nil {
			got = make(map[string]float64, len(areas))
			c.Difficulty.Interactions[tier] = got
		}

		for area, v := range areas {
			if _, ok := got[area]; !ok {
				got[area] = v
			}
		}
	}
}

// Validate checks that the coefficient table can produce well-formed estimates.
func (c *Config) Validate() error {
	if c.Difficulty.Bounds.Min >= c.Difficulty.Bounds.Max {
		return ErrInvalidDifficultyBounds
	}

	if c.Discrimination.Bounds.Min >= c.Discrimination.Bounds.Max {
		return ErrInvalidDiscriminationBounds
	}

	if c.Difficulty.Position.Limit < 0 {
		return ErrInvalidPositionLimit
	}

	if c.Difficulty.ReferenceYear <= 0 {
		return ErrInvalidReferenceYear
	}

	if c.Guessing.Default < 0 || c.Guessing.Default >= 1 {
		return fmt.Errorf("%w: default=%v", ErrInvalidGuessing, c.Guessing.Default)
	}

	for count, g := range c.Guessing.ByOptionCount {
		if g < 0 || g >= 1 {
			return fmt.Errorf("%w: %d options=%v", ErrInvalidGuessing, count, g)
		}
	}

	return nil
}
