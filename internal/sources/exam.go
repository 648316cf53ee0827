// Package sources holds the concrete question sources.
package sources

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"qbank/internal/downloader"
	"qbank/internal/idgen"
	"qbank/internal/models"
	"qbank/internal/normalizer"
	"qbank/internal/plugin"
	"qbank/internal/textparse"
)

// Source errors.
var (
	ErrNoArtifacts = errors.New("no exam artifacts available")
	ErrNoQuestions = errors.New("no questions extracted")
)

// Metadata keys set on scraped data and raw questions.
const (
	metaYear     = "year"
	metaWarnings = "warnings"
)

// Profile describes one exam family.
type Profile struct {
	Info             plugin.Info
	Institution      string
	Tier             string
	ExamType         string
	BaseURL          string
	ExamPath         string
	KeyPath          string
	Years            []int
	QuestionsPerYear int
	// OptionCount returns the number of options per question in a year; nil means 4.
	OptionCount func(year int) int
	ManualSetup bool
}

// Exam is a plugin that downloads one exam PDF and one answer-key PDF per
// year and parses them with the generic text parser.
type Exam struct {
	*plugin.Base
	calibration func(year int) (*normalizer.Calibration, error)
	profile     Profile
}

// NewExam creates an exam plugin from a profile.
func NewExam(profile Profile, env *plugin.Env) *Exam {
	return &Exam{
		Base:    plugin.NewBase(profile.Info, env),
		profile: profile,
	}
}

// Profile returns the exam description.
func (e *Exam) Profile() Profile {
	return e.profile
}

// SupportedYears returns the configured years, falling back to the profile's.
func (e *Exam) SupportedYears() []int {
	years := e.profile.Years
	if cfg := e.Source().Years; len(cfg) > 0 {
		years = cfg
	}

	out := slices.Clone(years)
	sort.Ints(out)

	return out
}

// EstimatedQuestionCount is the expected number of questions across all years.
func (e *Exam) EstimatedQuestionCount() int {
	return e.profile.QuestionsPerYear * len(e.SupportedYears())
}

// RequiresManualSetup reports whether artifacts must be placed by hand.
func (e *Exam) RequiresManualSetup() bool {
	return e.profile.ManualSetup
}

// urls returns the candidate locations of path: the base URL first, then
// every configured mirror.
func (e *Exam) urls(path string, year int) []string {
	src := e.Source()

	base := e.profile.BaseURL
	if src.BaseURL != "" {
		base = src.BaseURL
	}

	rel := fmt.Sprintf(path, year)
	out := make([]string, 0, 1+len(src.Mirrors))

	for _, b := range append([]string{base}, src.Mirrors...) {
		out = append(out, strings.TrimRight(b, "/")+"/"+rel)
	}

	return out
}

func (e *Exam) optionCount(year int) int {
	if e.profile.OptionCount == nil {
		return 4
	}

	return e.profile.OptionCount(year)
}

func examName(id string, year int) string {
	return idgen.CacheName(id, year, "pdf")
}

func keyName(id string, year int) string {
	return idgen.CacheName(id+"-gabarito", year, "pdf")
}

// Scrape fetches every year's exam and answer key. Years that fail are
// recorded as warnings; the stage fails only when nothing was fetched.
func (e *Exam) Scrape(ctx context.Context) (*models.ScrapedData, error) {
	data := models.NewScrapedData(e.Now())

	var warnings []string

	id := e.Info().ID
	opts := downloader.Options{ExpectPDF: true}

	for _, year := range e.SupportedYears() {
		exam := examName(id, year)

		pdf, err := e.Fetch(ctx, exam, opts, e.urls(e.profile.ExamPath, year)...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			warnings = append(warnings, fmt.Sprintf("%d: exam unavailable: %v", year, err))
			e.Log().Warn("exam unavailable", "year", year, "error", err)

			continue
		}

		data.Files[exam] = pdf

		key := keyName(id, year)

		pdf, err = e.Fetch(ctx, key, opts, e.urls(e.profile.KeyPath, year)...)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%d: answer key unavailable: %v", year, err))
			e.Log().Warn("answer key unavailable", "year", year, "error", err)

			continue
		}

		data.Files[key] = pdf
	}

	data.Metadata[metaWarnings] = warnings

	if len(data.Files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifacts, strings.Join(warnings, "; "))
	}

	return data, nil
}

// Parse extracts questions from every year present in data.
func (e *Exam) Parse(_ context.Context, data *models.ScrapedData) (*models.ParsedQuestions, error) {
	out := &models.ParsedQuestions{}

	if w, ok := data.Metadata[metaWarnings].([]string); ok {
		out.Warnings = append(out.Warnings, w...)
	}

	id := e.Info().ID

	for _, year := range e.SupportedYears() {
		pdf, ok := data.Files[examName(id, year)]
		if !ok {
			continue
		}

		text, err := e.ExtractText(pdf)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d: text extraction failed: %v", year, err))

			continue
		}

		parsed := textparse.NewParser(textparse.Options{MaxOptions: e.optionCount(year)}).Parse(text)
		for _, w := range parsed.Warnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d: %s", year, w))
		}

		questions := parsed.Questions

		if keyPDF, ok := data.Files[keyName(id, year)]; ok {
			keyText, err := e.ExtractText(keyPDF)
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%d: answer key extraction failed: %v", year, err))
			} else {
				var keyWarnings []string

				questions, keyWarnings = textparse.ParseAnswerKey(keyText).Apply(questions)
				for _, w := range keyWarnings {
					out.Warnings = append(out.Warnings, fmt.Sprintf("%d: %s", year, w))
				}
			}
		}

		if expected := e.profile.QuestionsPerYear; expected > 0 && len(questions) < expected {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("%d: extracted %d of %d expected questions", year, len(questions), expected))
		}

		for _, q := range questions {
			q.Metadata = map[string]any{metaYear: year}
			out.Questions = append(out.Questions, q)
		}
	}

	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuestions, strings.Join(out.Warnings, "; "))
	}

	return out, nil
}

// Transform enriches the questions of each year separately.
func (e *Exam) Transform(_ context.Context, parsed *models.ParsedQuestions) (*models.TransformedQuestions, error) {
	byYear := map[int][]models.RawQuestion{}

	for _, q := range parsed.Questions {
		year, _ := q.Metadata[metaYear].(int)
		byYear[year] = append(byYear[year], q)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}

	sort.Ints(years)

	out := &models.TransformedQuestions{}

	for _, year := range years {
		var cal *normalizer.Calibration

		if e.calibration != nil {
			c, err := e.calibration(year)
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%d: calibration ignored: %v", year, err))
			}

			cal = c
		}

		res, err := e.Process(normalizer.Source{
			ID:             e.Info().ID,
			Institution:    e.profile.Institution,
			Tier:           e.profile.Tier,
			ExamType:       e.profile.ExamType,
			Year:           year,
			TotalQuestions: e.profile.QuestionsPerYear,
		}, &models.ParsedQuestions{Questions: byYear[year]}, cal)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d: %v", year, err))

			continue
		}

		for _, w := range res.Warnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d: %s", year, w))
		}

		out.Questions = append(out.Questions, res.Questions...)
	}

	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", normalizer.ErrNoUsableQuestions, strings.Join(out.Warnings, "; "))
	}

	return out, nil
}

// Availability reports whether a year's exam and answer key answer a HEAD
// request on any of their candidate URLs.
type Availability struct {
	ExamURL string
	KeyURL  string
	Year    int
	Exam    bool
	Key     bool
}

// CheckAvailability checks every supported year without downloading anything. Manual
// sources have nothing to check and return nil.
func (e *Exam) CheckAvailability(ctx context.Context) []Availability {
	if e.profile.ManualSetup {
		return nil
	}

	dl := e.Env().Downloader
	years := e.SupportedYears()
	out := make([]Availability, 0, len(years))

	for _, year := range years {
		a := Availability{Year: year}
		a.ExamURL, a.Exam = firstAccessible(ctx, dl, e.urls(e.profile.ExamPath, year))
		a.KeyURL, a.Key = firstAccessible(ctx, dl, e.urls(e.profile.KeyPath, year))

		out = append(out, a)
	}

	return out
}

// firstAccessible returns the first URL that answers, or the primary URL and false.
func firstAccessible(ctx context.Context, dl *downloader.Downloader, urls []string) (string, bool) {
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}

		if dl.IsAccessible(ctx, u) {
			return u, true
		}
	}

	return urls[0], false
}
