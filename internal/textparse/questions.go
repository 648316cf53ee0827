// Package textparse turns extracted exam text into raw questions.
package textparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"qbank/internal/models"
	"qbank/pkg/utils"
)

// Parser defaults.
const (
	DefaultMaxOptions   = 5
	DefaultMinStemRunes = 10
	DefaultMaxGap       = 5
)

// Options tunes the question parser.
type Options struct {
	// Skip holds extra line patterns to drop, such as page headers.
	Skip         []*regexp.Regexp
	MaxOptions   int
	MinStemRunes int
	MaxGap       int
}

// Parser extracts numbered multiple-choice questions from plain text.
type Parser struct {
	numberedPattern *regexp.Regexp
	labeledPattern  *regexp.Regexp
	optionPattern   *regexp.Regexp
	skip            []*regexp.Regexp
	opts            Options
}

var defaultSkip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^p[aá]gina\s+\d+`),
	regexp.MustCompile(`^\d+\s*/\s*\d+$`),
	regexp.MustCompile(`^[-–]\s*\d+\s*[-–]$`),
	regexp.MustCompile(`^\d+$`),
}

// NewParser creates a parser, filling zero options with defaults.
func NewParser(opts Options) *Parser {
	if opts.MaxOptions <= 0 {
		opts.MaxOptions = DefaultMaxOptions
	}

	if opts.MinStemRunes <= 0 {
		opts.MinStemRunes = DefaultMinStemRunes
	}

	if opts.MaxGap <= 0 {
		opts.MaxGap = DefaultMaxGap
	}

	return &Parser{
		numberedPattern: regexp.MustCompile(`^(\d{1,3})\s*[.)](?:\s+(.*))?$`),
		labeledPattern:  regexp.MustCompile(`(?i)^quest(?:ão|ao)\s+(\d{1,3})\s*[.:)\-–]?\s*(.*)$`),
		optionPattern:   regexp.MustCompile(`^\(?([A-Ea-e])\s*[).](?:\s*(.*))?$`),
		skip:            append(append([]*regexp.Regexp{}, defaultSkip...), opts.Skip...),
		opts:            opts,
	}
}

type draft struct {
	stem    []string
	options []models.RawOption
	number  int
}

func (d *draft) nextLetter() string {
	return string(rune('A' + len(d.options)))
}

// Parse scans text line by line. Questions must be numbered in increasing
// order; options must be lettered consecutively from A. Anything that does
// not fit is treated as continuation text. Incomplete questions are dropped
// with a warning.
func (p *Parser) Parse(text string) *models.ParsedQuestions {
	out := &models.ParsedQuestions{}

	var cur *draft

	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || p.skipped(line) {
			continue
		}

		if n, rest, ok := p.questionStart(line); ok && p.accepts(cur, n) {
			if cur != nil && (len(cur.options) > 0 || n == cur.number+1) {
				p.finish(out, cur)

				for missing := cur.number + 1; missing < n; missing++ {
					out.Warnings = append(out.Warnings, fmt.Sprintf("question %d: not found", missing))
				}
			}

			cur = &draft{number: n}
			if rest != "" {
				cur.stem = append(cur.stem, rest)
			}

			continue
		}

		if cur == nil {
			continue
		}

		if letter, rest, ok := p.option(line); ok && letter == cur.nextLetter() && len(cur.options) < p.opts.MaxOptions {
			cur.options = append(cur.options, models.RawOption{Letter: letter, Text: rest})

			continue
		}

		if last := len(cur.options) - 1; last >= 0 {
			cur.options[last].Text = joinText(cur.options[last].Text, line)
		} else {
			cur.stem = append(cur.stem, line)
		}
	}

	if cur != nil {
		p.finish(out, cur)
	}

	return out
}

// accepts decides whether question number n opens a new question. A draft
// without options restarts on "1", which skips numbered instructions.
func (p *Parser) accepts(cur *draft, n int) bool {
	switch {
	case n < 1:
		return false
	case cur == nil:
		return true
	case len(cur.options) == 0:
		return n == 1 || n == cur.number+1
	case n == cur.number+1:
		return true
	case len(cur.options) >= 2:
		return n > cur.number && n-cur.number <= p.opts.MaxGap
	default:
		return false
	}
}

func (p *Parser) finish(out *models.ParsedQuestions, d *draft) {
	stem := utils.NormalizeWhitespace(strings.Join(d.stem, " "))

	if len(d.options) < 2 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("question %d: found %d options, skipped", d.number, len(d.options)))

		return
	}

	if utf8.RuneCountInString(stem) < p.opts.MinStemRunes {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("question %d: stem too short (%q), skipped", d.number, utils.Truncate(stem, 40)))

		return
	}

	options := make([]models.RawOption, len(d.options))
	for i, o := range d.options {
		options[i] = models.RawOption{Letter: o.Letter, Text: utils.NormalizeWhitespace(o.Text)}

		if options[i].Text == "" {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("question %d: option %s is empty", d.number, o.Letter))
		}
	}

	out.Questions = append(out.Questions, models.RawQuestion{
		Number:  d.number,
		Stem:    stem,
		Options: options,
	})
}

func (p *Parser) questionStart(line string) (int, string, bool) {
	m := p.labeledPattern.FindStringSubmatch(line)
	if m == nil {
		m = p.numberedPattern.FindStringSubmatch(line)
	}

	if m == nil {
		return 0, "", false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}

	return n, strings.TrimSpace(m[2]), true
}

func (p *Parser) option(line string) (string, string, bool) {
	m := p.optionPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}

	return strings.ToUpper(m[1]), strings.TrimSpace(m[2]), true
}

func (p *Parser) skipped(line string) bool {
	for _, re := range p.skip {
		if re.MatchString(line) {
			return true
		}
	}

	return false
}

func joinText(a, b string) string {
	if a == "" {
		return b
	}

	return a + " " + b
}
