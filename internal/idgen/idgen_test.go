package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestQuestionID_Deterministic(t *testing.T) {
	a := QuestionID("enamed-2025", 2025, 7)
	b := QuestionID("enamed-2025", 2025, 7)

	if a != b {
		t.Errorf("QuestionID not deterministic: %q vs %q", a, b)
	}

	if a == QuestionID("enamed-2025", 2025, 8) {
		t.Error("different item numbers must yield different ids")
	}

	if a != "enamed-2025-2025-q007" {
		t.Errorf("QuestionID = %q", a)
	}
}

func TestBankID(t *testing.T) {
	if got := BankID("SUS SP", 2023); got != "sus-sp-2023" {
		t.Errorf("BankID = %q, want sus-sp-2023", got)
	}
}

func TestCacheName(t *testing.T) {
	if got := CacheName("revalida", 2022, ".pdf"); got != "revalida_2022.pdf" {
		t.Errorf("CacheName = %q", got)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"ENARE":        "enare",
		"usp / fuvest": "usp-fuvest",
		"--leading":    "leading",
		"trailing!!":   "trailing",
		"a__b":         "a-b",
		"":             "",
	}

	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()

	if a == b {
		t.Error("run ids must be unique")
	}

	if !strings.HasPrefix(a, "run_") {
		t.Fatalf("run id %q lacks prefix", a)
	}

	u, err := uuid.Parse(strings.TrimPrefix(a, "run_"))
	if err != nil {
		t.Fatalf("run id is not a UUID: %v", err)
	}

	if u.Version() != 7 {
		t.Errorf("UUID version = %d, want 7", u.Version())
	}
}
