package store

import "strings"

// SplitStatements splits a script on semicolons that sit outside string
// literals, dropping "--" line comments. Returned statements are trimmed and
// carry no trailing semicolon.
func SplitStatements(script string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}

		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]

		switch {
		case inQuote:
			cur.WriteByte(c)

			// A doubled quote toggles twice and stays inside the literal.
			if c == '\'' {
				inQuote = false
			}
		case c == '\'':
			inQuote = true

			cur.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}

			cur.WriteByte('\n')
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}

	flush()

	return out
}
