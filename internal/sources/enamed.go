package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"qbank/internal/irt"
	"qbank/internal/models"
	"qbank/internal/normalizer"
	"qbank/internal/plugin"
)

// EnamedID is the registry id of the ENAMED 2025 source.
const EnamedID = "enamed-2025"

// EnamedProfile describes the 2025 national medical education exam.
func EnamedProfile() Profile {
	return Profile{
		Info: plugin.Info{
			ID:          EnamedID,
			Name:        "ENAMED 2025",
			Description: "Exame Nacional de Avaliação da Formação Médica",
			Version:     "1.0.0",
		},
		Institution:      "INEP",
		Tier:             models.TierNationalLeading,
		ExamType:         models.ExamTypeNational,
		BaseURL:          "https://download.inep.gov.br/enamed",
		ExamPath:         "%d/prova.pdf",
		KeyPath:          "%d/gabarito.pdf",
		Years:            []int{2025},
		QuestionsPerYear: 100,
	}
}

// EmpiricalFile is the on-disk format of pre-calibrated item parameters.
type EmpiricalFile struct {
	Items []EmpiricalEntry `json:"items"`
	Year  int              `json:"year"`
}

// EmpiricalEntry is one calibrated item.
type EmpiricalEntry struct {
	irt.CalibratedItem
	Number int `json:"number"`
}

// NewEnamed creates the ENAMED plugin. Published item parameters are used
// whenever an empirical file is present for the year.
func NewEnamed(env *plugin.Env) *Exam {
	e := NewExam(EnamedProfile(), env)
	e.calibration = e.empiricalCalibration

	return e
}

func (e *Exam) empiricalPath(year int) string {
	if p := e.Source().EmpiricalFile; p != "" {
		return p
	}

	return filepath.Join(e.Env().Config.CacheDirFor(e.Info().ID), fmt.Sprintf("empirical_%d.json", year))
}

func (e *Exam) empiricalCalibration(year int) (*normalizer.Calibration, error) {
	path := e.empiricalPath(year)

	items, err := LoadEmpirical(path, year)
	if errors.Is(err, os.ErrNotExist) {
		e.Log().Debug("no empirical parameters", "path", path)

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	e.Log().Info("using empirical parameters", "path", path, "items", len(items))

	return &normalizer.Calibration{Empirical: items}, nil
}

// LoadEmpirical reads an empirical parameter file. A file labelled with
// another year yields no items.
func LoadEmpirical(path string, year int) (map[int]irt.CalibratedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file EmpiricalFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	items := make(map[int]irt.CalibratedItem, len(file.Items))

	if file.Year != 0 && file.Year != year {
		return items, nil
	}

	for _, it := range file.Items {
		items[it.Number] = it.CalibratedItem
	}

	return items, nil
}
