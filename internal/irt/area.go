package irt

import (
	"strings"

	"qbank/pkg/utils"
)

// NormalizeArea folds a subject-area label into a table key:
// "Clínica Médica" becomes "clinica_medica".
func NormalizeArea(area string) string {
	folded := utils.Fold(strings.TrimSpace(area))

	return strings.Join(strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '&'
	}), "_")
}
