package textparse

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"qbank/internal/models"
)

// AnswerKey maps question numbers to correct letters.
type AnswerKey struct {
	Answers  map[int]string
	Annulled map[int]bool
}

var answerPattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[-–:.)]\s*(anulada|[a-e]|\*)(?:[^a-z]|$)`)

// ParseAnswerKey reads "1-A 2-C 3-*" style entries anywhere in text. A "*"
// or "ANULADA" marks an annulled question.
func ParseAnswerKey(text string) *AnswerKey {
	key := &AnswerKey{
		Answers:  make(map[int]string),
		Annulled: make(map[int]bool),
	}

	for _, m := range answerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}

		if _, seen := key.Answers[n]; seen || key.Annulled[n] {
			continue
		}

		answer := strings.ToUpper(m[2])
		if answer == "*" || answer == "ANULADA" {
			key.Annulled[n] = true

			continue
		}

		key.Answers[n] = answer
	}

	return key
}

// Len returns the number of entries, annulled ones included.
func (k *AnswerKey) Len() int {
	return len(k.Answers) + len(k.Annulled)
}

// Apply fills CorrectAnswer on questions that lack one and returns the
// questions that remain, dropping annulled ones. Questions without a key
// entry are kept and reported in the warnings.
func (k *AnswerKey) Apply(questions []models.RawQuestion) ([]models.RawQuestion, []string) {
	var (
		out      []models.RawQuestion
		warnings []string
		missing  []int
	)

	for _, q := range questions {
		if k.Annulled[q.Number] {
			warnings = append(warnings, fmt.Sprintf("question %d: annulled, skipped", q.Number))

			continue
		}

		if q.CorrectAnswer == "" {
			if answer, ok := k.Answers[q.Number]; ok {
				q.CorrectAnswer = answer
			} else {
				missing = append(missing, q.Number)
			}
		}

		out = append(out, q)
	}

	if len(missing) > 0 {
		sort.Ints(missing)
		warnings = append(warnings, fmt.Sprintf("no answer key entry for questions %v", missing))
	}

	return out, warnings
}
