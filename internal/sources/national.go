package sources

import (
	"qbank/internal/models"
	"qbank/internal/plugin"
)

// Registry ids of the download-based sources.
const (
	EnareID    = "enare"
	RevalidaID = "revalida"
	SusSPID    = "sus-sp"
)

// EnareProfile describes the national unified residency exam.
func EnareProfile() Profile {
	return Profile{
		Info: plugin.Info{
			ID:          EnareID,
			Name:        "ENARE",
			Description: "Exame Nacional de Residência",
			Version:     "1.0.0",
		},
		Institution:      "EBSERH",
		Tier:             models.TierNationalLeading,
		ExamType:         models.ExamTypeNational,
		BaseURL:          "https://www.gov.br/ebserh/enare/provas",
		ExamPath:         "%d/prova-objetiva.pdf",
		KeyPath:          "%d/gabarito-definitivo.pdf",
		Years:            []int{2021, 2022, 2023, 2024},
		QuestionsPerYear: 120,
	}
}

// RevalidaProfile describes the foreign medical graduate revalidation exam.
// Editions before 2022 used five options.
func RevalidaProfile() Profile {
	return Profile{
		Info: plugin.Info{
			ID:          RevalidaID,
			Name:        "Revalida",
			Description: "Exame Nacional de Revalidação de Diplomas Médicos",
			Version:     "1.0.0",
		},
		Institution:      "INEP",
		Tier:             models.TierNationalLeading,
		ExamType:         models.ExamTypeRevalida,
		BaseURL:          "https://download.inep.gov.br/revalida/provas",
		ExamPath:         "%d/prova-objetiva.pdf",
		KeyPath:          "%d/gabarito.pdf",
		Years:            []int{2020, 2021, 2022, 2023, 2024},
		QuestionsPerYear: 100,
		OptionCount: func(year int) int {
			if year < 2022 {
				return 5
			}

			return 4
		},
	}
}

// SusSPProfile describes the São Paulo state unified residency exam.
func SusSPProfile() Profile {
	return Profile{
		Info: plugin.Info{
			ID:          SusSPID,
			Name:        "SUS-SP",
			Description: "Processo Seletivo Unificado de Residência Médica de São Paulo",
			Version:     "1.0.0",
		},
		Institution:      "SES-SP",
		Tier:             models.TierRegionalStrong,
		ExamType:         models.ExamTypeRegional,
		BaseURL:          "https://www.saude.sp.gov.br/residencia-medica/provas",
		ExamPath:         "%d/prova.pdf",
		KeyPath:          "%d/gabarito.pdf",
		Years:            []int{2022, 2023, 2024},
		QuestionsPerYear: 100,
	}
}

// NewEnare creates the ENARE plugin.
func NewEnare(env *plugin.Env) *Exam {
	return NewExam(EnareProfile(), env)
}

// NewRevalida creates the Revalida plugin.
func NewRevalida(env *plugin.Env) *Exam {
	return NewExam(RevalidaProfile(), env)
}

// NewSusSP creates the SUS-SP plugin.
func NewSusSP(env *plugin.Env) *Exam {
	return NewExam(SusSPProfile(), env)
}
