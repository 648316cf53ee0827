package models

import (
	"sort"
	"time"
)

// ScrapedData is the in-memory envelope produced by a scrape call.
type ScrapedData struct {
	ScrapedAt time.Time         `json:"scrapedAt"`
	Files     map[string][]byte `json:"-"`
	Metadata  map[string]any    `json:"metadata"`
}

// NewScrapedData returns an empty envelope stamped with the given time.
func NewScrapedData(at time.Time) *ScrapedData {
	return &ScrapedData{
		ScrapedAt: at,
		Files:     make(map[string][]byte),
		Metadata:  make(map[string]any),
	}
}

// FileNames returns artifact names in sorted order.
func (s *ScrapedData) FileNames() []string {
	names := make([]string, 0, len(s.Files))
	for name := range s.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ParsedQuestions is the output of the parse stage.
type ParsedQuestions struct {
	Questions []RawQuestion `json:"questions"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// TransformedQuestions is the output of the transform stage.
type TransformedQuestions struct {
	Questions []CompleteQuestion `json:"questions"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// ValidationStats counts validated questions.
type ValidationStats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// ValidationResult is computed once per transform output and never mutated.
type ValidationResult struct {
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Stats    ValidationStats `json:"stats"`
	IsValid  bool            `json:"isValid"`
}

// ETLResult is the terminal record of one plugin run.
type ETLResult struct {
	PluginID       string        `json:"pluginId"`
	RunID          string        `json:"runId"`
	SQLPath        string        `json:"sqlPath,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	TotalQuestions int           `json:"totalQuestions"`
	Duration       time.Duration `json:"duration"`
	Success        bool          `json:"success"`
}

// BatchSummary aggregates the results of a batch run.
type BatchSummary struct {
	Total          int           `json:"total"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	TotalQuestions int           `json:"totalQuestions"`
	TotalDuration  time.Duration `json:"totalDuration"`
}
