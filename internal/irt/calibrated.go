package irt

import (
	"fmt"

	"qbank/internal/models"
)

// Confidence assigned to parameters that did not come from this estimator.
const (
	EmpiricalConfidence = 0.95
	ExpertConfidence    = 0.90
)

// CalibratedItem is a set of parameters supplied by an external source.
type CalibratedItem struct {
	Infit          *float64 `json:"infit,omitempty" yaml:"infit,omitempty"`
	Outfit         *float64 `json:"outfit,omitempty" yaml:"outfit,omitempty"`
	Difficulty     float64  `json:"difficulty" yaml:"difficulty"`
	Discrimination float64  `json:"discrimination" yaml:"discrimination"`
	Guessing       float64  `json:"guessing" yaml:"guessing"`
}

// FromEmpirical accepts pre-calibrated parameters after a bounds check.
func FromEmpirical(item CalibratedItem) (models.IRTParameters, error) {
	return fromCalibrated(item, models.MethodEmpirical, EmpiricalConfidence)
}

// FromExpert accepts manually reviewed parameters after a bounds check.
func FromExpert(item CalibratedItem) (models.IRTParameters, error) {
	return fromCalibrated(item, models.MethodExpert, ExpertConfidence)
}

func fromCalibrated(item CalibratedItem, method models.EstimationMethod, confidence float64) (models.IRTParameters, error) {
	if err := CheckBounds(item.Difficulty, item.Discrimination, item.Guessing); err != nil {
		return models.IRTParameters{}, fmt.Errorf("%s parameters rejected: %w", method, err)
	}

	return models.IRTParameters{
		Difficulty:     item.Difficulty,
		Discrimination: item.Discrimination,
		Guessing:       item.Guessing,
		Infit:          item.Infit,
		Outfit:         item.Outfit,
		Estimated:      false,
		Confidence:     confidence,
		Method:         method,
	}, nil
}
