// Package sqlgen renders questions as an idempotent SQL upsert script.
package sqlgen

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Null is the SQL NULL literal.
const Null = "NULL"

// Quote renders s as a single-quoted SQL string literal.
// NUL bytes are dropped since neither target database accepts them in text.
func Quote(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Int renders an integer literal.
func Int(v int) string {
	return strconv.Itoa(v)
}

// Float renders a float literal, or NULL for values SQL cannot represent.
func Float(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}

	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FloatPtr renders an optional float.
func FloatPtr(v *float64) string {
	if v == nil {
		return Null
	}

	return Float(*v)
}

// Bool renders a boolean literal.
func Bool(v bool) string {
	if v {
		return "TRUE"
	}

	return "FALSE"
}

// Timestamp renders t as a quoted RFC 3339 UTC literal.
func Timestamp(t time.Time) string {
	return Quote(t.UTC().Format(time.RFC3339))
}

// JSON renders v as a quoted JSON document.
func JSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return Quote(string(data)), nil
}
