package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"qbank/internal/irt"
	"qbank/internal/models"
	"qbank/internal/normalizer"
	"qbank/internal/plugin"
)

// USPID is the registry id of the USP source.
const USPID = "usp"

// ErrManualSetup is returned when a manual source has no local directory configured.
var ErrManualSetup = errors.New("manual setup required")

// USPProfile describes the University of São Paulo residency exam. Its PDFs
// are not published at stable URLs and must be placed in local_dir.
func USPProfile() Profile {
	return Profile{
		Info: plugin.Info{
			ID:          USPID,
			Name:        "USP",
			Description: "Residência Médica da Faculdade de Medicina da USP",
			Version:     "1.0.0",
		},
		Institution:      "FMUSP",
		Tier:             models.TierRegionalStrong,
		ExamType:         models.ExamTypeUniversity,
		Years:            []int{2022, 2023, 2024},
		QuestionsPerYear: 120,
		OptionCount:      func(int) int { return 5 },
		ManualSetup:      true,
	}
}

// USP reads exam files from disk instead of downloading them.
type USP struct {
	*Exam
}

// NewUSP creates the USP plugin. Expert reviewed parameters are read from
// the configured overrides file when present.
func NewUSP(env *plugin.Env) *USP {
	u := &USP{Exam: NewExam(USPProfile(), env)}
	u.calibration = u.expertCalibration

	return u
}

// Scrape reads {local_dir}/usp_{year}.pdf and {local_dir}/usp-gabarito_{year}.pdf.
func (u *USP) Scrape(ctx context.Context) (*models.ScrapedData, error) {
	dir := u.Source().LocalDir
	if dir == "" {
		return nil, fmt.Errorf("%w: set sources.%s.local_dir", ErrManualSetup, USPID)
	}

	data := models.NewScrapedData(u.Now())
	minBytes := u.Env().Config.Pipeline.MinCacheBytes

	var warnings []string

	for _, year := range u.SupportedYears() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, name := range []string{examName(USPID, year), keyName(USPID, year)} {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%d: %s missing", year, name))

				continue
			}

			if int64(len(content)) < minBytes {
				warnings = append(warnings, fmt.Sprintf("%d: %s too small (%d bytes)", year, name, len(content)))

				continue
			}

			data.Files[name] = content
		}
	}

	data.Metadata[metaWarnings] = warnings

	if len(data.Files) == 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrNoArtifacts, dir, strings.Join(warnings, "; "))
	}

	return data, nil
}

func (u *USP) expertCalibration(year int) (*normalizer.Calibration, error) {
	path := u.Source().OverridesFile
	if path == "" {
		return nil, nil
	}

	overrides, err := LoadExpertOverrides(path)
	if err != nil {
		return nil, err
	}

	items := overrides[year]
	if len(items) == 0 {
		return nil, nil
	}

	u.Log().Info("using expert overrides", "path", path, "year", year, "items", len(items))

	return &normalizer.Calibration{Expert: items}, nil
}

// LoadExpertOverrides reads a YAML file keyed by year, then question number:
//
//	2023:
//	  12: {difficulty: 1.1, discrimination: 1.3, guessing: 0.2}
func LoadExpertOverrides(path string) (map[int]map[int]irt.CalibratedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides: %w", err)
	}

	var out map[int]map[int]irt.CalibratedItem
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse overrides: %w", err)
	}

	return out, nil
}
