// Package idgen builds the identifiers the pipeline persists.
//
// Question and bank ids are pure functions of their inputs and double as
// idempotent upsert keys. Run ids are random and only label a single run.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces time-sortable RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// NewRunID labels one pipeline run.
var NewRunID = Prefixed("run_", UUIDv7())

// QuestionID returns the stable id of item number within a source's exam year.
func QuestionID(source string, year, number int) string {
	return fmt.Sprintf("%s-%d-q%03d", Slug(source), year, number)
}

// BankID returns the grouping key of a source's exam year.
func BankID(source string, year int) string {
	return fmt.Sprintf("%s-%d", Slug(source), year)
}

// CacheName returns the conventional cache file name for a source artifact.
func CacheName(source string, year int, ext string) string {
	return fmt.Sprintf("%s_%d.%s", Slug(source), year, strings.TrimPrefix(ext, "."))
}

// Slug lowercases s and collapses anything outside [a-z0-9] into single dashes.
func Slug(s string) string {
	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)

			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')

			dash = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
