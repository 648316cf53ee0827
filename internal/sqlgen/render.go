package sqlgen

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"qbank/internal/models"
)

// Tables written by the script.
const (
	BanksTable     = "question_banks"
	QuestionsTable = "questions"
)

var bankColumns = []string{
	"id", "name", "source", "year", "institution", "exam_type", "question_count", "updated_at",
}

var bankUpdates = []string{
	"name", "institution", "exam_type", "question_count", "updated_at",
}

var questionColumns = []string{
	"id", "bank_id", "position", "stem", "options", "correct_index", "area", "year",
	"institution", "institution_tier", "exam_type", "source", "total_questions", "option_count",
	"difficulty", "discrimination", "guessing", "infit", "outfit",
	"irt_estimated", "irt_confidence", "irt_method", "updated_at",
}

// RenderInput is everything a script is derived from.
type RenderInput struct {
	GeneratedAt time.Time
	PluginID    string
	PluginName  string
	Questions   []models.CompleteQuestion
}

// Render builds the upsert script. The same input always yields the same text;
// updated_at is the GeneratedAt literal so repeated application converges.
func Render(in RenderInput) (string, error) {
	questions := make([]models.CompleteQuestion, len(in.Questions))
	copy(questions, in.Questions)

	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].BankID != questions[j].BankID {
			return questions[i].BankID < questions[j].BankID
		}

		return questions[i].Metadata.Position < questions[j].Metadata.Position
	})

	var b strings.Builder

	fmt.Fprintf(&b, "-- %s question bank upsert (%d questions)\n", in.PluginID, len(questions))
	b.WriteString("BEGIN;\n\n")

	for _, bank := range groupBanks(questions) {
		b.WriteString(bankStatement(bank, in.PluginName, in.GeneratedAt))
		b.WriteString("\n")
	}

	b.WriteString("\n")

	for i := range questions {
		stmt, err := questionStatement(&questions[i], in.GeneratedAt)
		if err != nil {
			return "", fmt.Errorf("failed to render question %s: %w", questions[i].ID, err)
		}

		b.WriteString(stmt)
		b.WriteString("\n")
	}

	b.WriteString("\nCOMMIT;\n")

	return b.String(), nil
}

type bank struct {
	id          string
	source      string
	institution string
	examType    string
	year        int
	count       int
}

func groupBanks(questions []models.CompleteQuestion) []bank {
	index := map[string]int{}

	var banks []bank

	for _, q := range questions {
		i, ok := index[q.BankID]
		if !ok {
			i = len(banks)
			index[q.BankID] = i
			banks = append(banks, bank{
				id:          q.BankID,
				source:      q.Metadata.Source,
				institution: q.Metadata.Institution,
				examType:    q.Metadata.ExamType,
				year:        q.Year,
			})
		}

		banks[i].count++
	}

	return banks
}

func bankStatement(bk bank, pluginName string, at time.Time) string {
	name := fmt.Sprintf("%s %d", pluginName, bk.year)

	values := []string{
		Quote(bk.id),
		Quote(strings.TrimSpace(name)),
		Quote(bk.source),
		Int(bk.year),
		Quote(bk.institution),
		Quote(bk.examType),
		Int(bk.count),
		Timestamp(at),
	}

	return upsert(BanksTable, bankColumns, values, bankUpdates)
}

func questionStatement(q *models.CompleteQuestion, at time.Time) (string, error) {
	options, err := JSON(q.Options)
	if err != nil {
		return "", err
	}

	values := []string{
		Quote(q.ID),
		Quote(q.BankID),
		Int(q.Metadata.Position),
		Quote(q.Stem),
		options,
		Int(q.CorrectIndex),
		Quote(q.Area),
		Int(q.Year),
		Quote(q.Metadata.Institution),
		Quote(q.Metadata.InstitutionTier),
		Quote(q.Metadata.ExamType),
		Quote(q.Metadata.Source),
		Int(q.Metadata.TotalQuestions),
		Int(q.Metadata.OptionCount),
		Float(q.IRT.Difficulty),
		Float(q.IRT.Discrimination),
		Float(q.IRT.Guessing),
		FloatPtr(q.IRT.Infit),
		FloatPtr(q.IRT.Outfit),
		Bool(q.IRT.Estimated),
		Float(q.IRT.Confidence),
		Quote(string(q.IRT.Method)),
		Timestamp(at),
	}

	// Every column but the key is refreshed on re-ingestion.
	return upsert(QuestionsTable, questionColumns, values, questionColumns[1:]), nil
}

func upsert(table string, columns, values, updates []string) string {
	sets := make([]string, len(updates))
	for i, col := range updates {
		sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s;",
		table,
		strings.Join(columns, ", "),
		strings.Join(values, ", "),
		strings.Join(sets, ", "),
	)
}
