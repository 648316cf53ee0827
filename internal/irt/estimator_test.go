package irt

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"qbank/internal/models"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestEstimate_WorkedExample(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	got := e.Estimate(Input{
		InstitutionTier: models.TierNationalLeading,
		Year:            2024,
		ExamType:        models.ExamTypeNational,
		Position:        50,
		TotalQuestions:  100,
		Area:            "cirurgia",
		OptionCount:     4,
	})

	if !almostEqual(got.Difficulty, 1.14) {
		t.Errorf("Difficulty = %v, want 1.14", got.Difficulty)
	}

	if !almostEqual(got.Components.UnclampedDifficulty, got.Difficulty) {
		t.Errorf("expected unclamped value, got clamped %v from %v", got.Difficulty, got.Components.UnclampedDifficulty)
	}

	if got.Components.PositionEffect != 0 {
		t.Errorf("PositionEffect = %v, want 0 at the midpoint", got.Components.PositionEffect)
	}

	if !got.Components.InteractionApplied || !got.Components.AreaKnown {
		t.Errorf("expected area and interaction signals, got %+v", got.Components)
	}

	if got.Method != models.MethodMetadata {
		t.Errorf("Method = %s, want metadata", got.Method)
	}
}

func TestGuessing_Table(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	tests := []struct {
		options int
		want    float64
	}{
		{4, 0.25},
		{5, 0.20},
		{2, 0.25},
		{3, 0.25},
		{0, 0.25},
		{7, 0.25},
	}

	for _, tt := range tests {
		got := e.Estimate(Input{OptionCount: tt.options, TotalQuestions: 10, Position: 1}).Guessing
		if got != tt.want {
			t.Errorf("Guessing(%d) = %v, want %v", tt.options, got, tt.want)
		}
	}
}

func TestEstimate_ClampInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	tiers := []string{
		models.TierNationalLeading, models.TierRegionalStrong,
		models.TierRegional, models.TierLocal, "UNKNOWN", "",
	}
	types := []string{
		models.ExamTypeNational, models.ExamTypeRegional,
		models.ExamTypeRevalida, models.ExamTypeUniversity, "other",
	}
	areas := []string{"cirurgia", "Clínica Médica", "pediatria", "", "dermatologia"}

	for round := range 50 {
		cfg := DefaultConfig()
		// Perturb the coefficients so extreme sums are reached.
		cfg.Difficulty.Base = rng.Float64()*10 - 5
		cfg.Difficulty.PerYearDrift = rng.Float64() * 0.5
		cfg.Difficulty.Position.Cubic = rng.Float64() * 0.001
		cfg.Discrimination.Base = rng.Float64() * 5
		cfg.Discrimination.CenterBoost = rng.Float64() * 3

		e := NewEstimator(cfg)

		for range 200 {
			total := rng.IntN(200)
			in := Input{
				InstitutionTier: tiers[rng.IntN(len(tiers))],
				ExamType:        types[rng.IntN(len(types))],
				Area:            areas[rng.IntN(len(areas))],
				Year:            1990 + rng.IntN(50),
				Position:        rng.IntN(total + 1),
				TotalQuestions:  total,
				OptionCount:     rng.IntN(7),
			}

			got := e.Estimate(in)

			if !cfg.Difficulty.Bounds.Contains(got.Difficulty) {
				t.Fatalf("round %d: difficulty %v escapes %+v for %+v", round, got.Difficulty, cfg.Difficulty.Bounds, in)
			}

			if !cfg.Discrimination.Bounds.Contains(got.Discrimination) {
				t.Fatalf("round %d: discrimination %v escapes %+v for %+v", round, got.Discrimination, cfg.Discrimination.Bounds, in)
			}

			if got.Confidence < 0 || got.Confidence > MaxMetadataConfidence {
				t.Fatalf("round %d: confidence %v out of [0, 0.85]", round, got.Confidence)
			}
		}
	}
}

func TestEstimate_ConfidenceCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Confidence.AreaBonus = 0.5
	cfg.Confidence.ModelVersionBonus = 0.5

	got := NewEstimator(cfg).Estimate(Input{
		InstitutionTier: models.TierNationalLeading,
		Area:            "cirurgia",
		Position:        10,
		TotalQuestions:  100,
	})

	if got.Confidence != MaxMetadataConfidence {
		t.Errorf("Confidence = %v, want cap %v", got.Confidence, MaxMetadataConfidence)
	}

	cfg.Confidence.DefaultBase = -3

	got = NewEstimator(cfg).Estimate(Input{InstitutionTier: "UNKNOWN"})
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want floor 0", got.Confidence)
	}
}

func TestEstimate_ConfidenceReflectsSignals(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	bare := e.Estimate(Input{InstitutionTier: models.TierRegional, TotalQuestions: 0})
	rich := e.Estimate(Input{
		InstitutionTier: models.TierRegional,
		Area:            "pediatria",
		Position:        20,
		TotalQuestions:  100,
	})

	// regional base 0.45 + model 0.05
	if !almostEqual(bare.Confidence, 0.50) {
		t.Errorf("bare confidence = %v, want 0.50", bare.Confidence)
	}

	// + area 0.05 + polynomial 0.05
	if !almostEqual(rich.Confidence, 0.60) {
		t.Errorf("rich confidence = %v, want 0.60", rich.Confidence)
	}
}

func TestPositionEffect(t *testing.T) {
	poly := PositionConfig{Linear: 0.01, Cubic: 0.001, Limit: 0.5}

	tests := []struct {
		name      string
		cfg       PositionConfig
		position  int
		total     int
		want      float64
		wantModel string
	}{
		{"midpoint", poly, 50, 100, 0, "polynomial"},
		{"small offset", poly, 52, 100, 0.01*2 + 0.001*8, "polynomial"},
		{"clamped high", poly, 100, 100, 0.5, "polynomial"},
		{"clamped low", poly, 1, 100, -0.5, "polynomial"},
		{"linear fallback", PositionConfig{LinearFallback: 0.01}, 60, 100, 0.1, "linear"},
		{"empty exam", poly, 1, 0, 0, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, model := positionEffect(tt.cfg, tt.position, tt.total)
			if !almostEqual(got, tt.want) {
				t.Errorf("positionEffect = %v, want %v", got, tt.want)
			}

			if model != tt.wantModel {
				t.Errorf("model = %s, want %s", model, tt.wantModel)
			}
		})
	}
}

func TestDiscrimination_PositionShape(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEstimator(cfg)

	in := Input{InstitutionTier: models.TierRegional, ExamType: models.ExamTypeRegional, TotalQuestions: 101}

	in.Position = 1
	edge := e.Estimate(in)

	in.Position = 51
	center := e.Estimate(in)

	if !almostEqual(edge.Discrimination, 1.0+cfg.Discrimination.EdgePenalty) {
		t.Errorf("edge discrimination = %v, want %v", edge.Discrimination, 1.0+cfg.Discrimination.EdgePenalty)
	}

	if !almostEqual(center.Discrimination, 1.0+cfg.Discrimination.CenterBoost) {
		t.Errorf("center discrimination = %v, want %v", center.Discrimination, 1.0+cfg.Discrimination.CenterBoost)
	}

	// Single-item exams must not divide by zero.
	single := e.Estimate(Input{Position: 1, TotalQuestions: 1})
	if math.IsNaN(single.Discrimination) || math.IsInf(single.Discrimination, 0) {
		t.Errorf("single-item discrimination = %v", single.Discrimination)
	}
}

func TestEstimate_UnknownLookupsAreNeutral(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEstimator(cfg)

	got := e.Estimate(Input{
		InstitutionTier: "NOPE",
		ExamType:        "nope",
		Area:            "astrologia",
		Year:            cfg.Difficulty.ReferenceYear,
		Position:        5,
		TotalQuestions:  10,
	})

	if got.Components.TierAdjustment != 0 || got.Components.ExamTypeAdjustment != 0 || got.Components.AreaAdjustment != 0 {
		t.Errorf("expected zero adjustments, got %+v", got.Components)
	}

	if got.Components.TierMultiplier != 1 || got.Components.ExamTypeMultiplier != 1 || got.Components.AreaMultiplier != 1 {
		t.Errorf("expected neutral multipliers, got %+v", got.Components)
	}

	if got.Components.AreaKnown {
		t.Error("unknown area must not count as a signal")
	}
}

func TestEstimate_YearDrift(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	got := e.Estimate(Input{Year: 2019, TotalQuestions: 0})
	if !almostEqual(got.Components.YearDrift, 0.1) {
		t.Errorf("YearDrift = %v, want 0.1", got.Components.YearDrift)
	}
}

func TestNewEstimator_CopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEstimator(cfg)

	cfg.Difficulty.AreaAdjustments["cirurgia"] = 99

	got := e.Estimate(Input{Area: "cirurgia"})
	if got.Components.AreaAdjustment != 0.34 {
		t.Errorf("estimator observed caller mutation: %v", got.Components.AreaAdjustment)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"default", func(*Config) {}, nil},
		{"difficulty bounds", func(c *Config) { c.Difficulty.Bounds = Bounds{Min: 1, Max: 1} }, ErrInvalidDifficultyBounds},
		{"discrimination bounds", func(c *Config) { c.Discrimination.Bounds = Bounds{Min: 2, Max: 1} }, ErrInvalidDiscriminationBounds},
		{"position limit", func(c *Config) { c.Difficulty.Position.Limit = -1 }, ErrInvalidPositionLimit},
		{"reference year", func(c *Config) { c.Difficulty.ReferenceYear = 0 }, ErrInvalidReferenceYear},
		{"guessing", func(c *Config) { c.Guessing.ByOptionCount[4] = 1.2 }, ErrInvalidGuessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
