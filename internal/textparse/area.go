package textparse

import (
	"strings"
	"unicode"

	"qbank/pkg/utils"
)

// AreaRule lists the folded keyword prefixes that indicate an area. A
// trailing space makes a keyword match whole words only.
type AreaRule struct {
	Area     string
	Keywords []string
}

// AreaRules is consulted in order; the first area with the most hits wins.
var AreaRules = []AreaRule{
	{Area: "ginecologia_obstetricia", Keywords: []string{
		"gestante", "gravidez", "gestacao", "gestacional", "pre natal", "parto", "puerper",
		"obstetr", "ginecol", "menstrua", "menopausa", "utero", "uterin", "ovari", "amenorreia",
	}},
	{Area: "pediatria", Keywords: []string{
		"crianca", "lactente", "recem nascido", "neonat", "pediatr", "pre escolar",
		"puericultura", "aleitamento", "adolescente", "meses de idade",
	}},
	{Area: "cirurgia", Keywords: []string{
		"cirurg", "laparotomia", "laparoscop", "apendicite", "abdome agudo", "trauma", "fratura",
		"hernia", "colecistite", "pos operatorio", "politraumatizado", "queimadura", "atls ",
	}},
	{Area: "medicina_preventiva", Keywords: []string{
		"epidemiolog", "sistema unico de saude", "sus ", "vigilancia", "notificacao compulsoria",
		"incidencia", "prevalencia", "sensibilidade", "especificidade", "vacina", "atencao primaria",
		"saude da familia", "coorte", "caso controle", "ensaio clinico",
	}},
	{Area: "clinica_medica", Keywords: []string{
		"hipertens", "diabet", "insuficiencia cardiaca", "pneumonia", "cirrose", "lupus", "anemia",
		"renal", "tireoid", "infarto", "dispneia", "sepse", "hepatite", "artrite",
	}},
}

// ClassifyArea tags a question with the area whose keywords occur most
// often in text. It returns "" when nothing matches.
func ClassifyArea(text string) string {
	haystack := " " + tokens(text) + " "

	best, bestHits := "", 0

	for _, rule := range AreaRules {
		hits := 0

		for _, kw := range rule.Keywords {
			hits += strings.Count(haystack, " "+kw)
		}

		if hits > bestHits {
			best, bestHits = rule.Area, hits
		}
	}

	return best
}

// tokens folds text and replaces anything that is not a letter or digit with
// single spaces, so keywords match at word starts only.
func tokens(text string) string {
	return utils.NormalizeWhitespace(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}

		return ' '
	}, utils.Fold(text)))
}
