// Package pdftext extracts line-oriented text from PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoText is returned when a document has no extractable text.
var ErrNoText = errors.New("no text content found in PDF")

// Extractor turns a document into plain text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(data []byte) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(data []byte) (string, error) {
	return f(data)
}

// PDF extracts text with pdfcpu by walking each page's content stream.
type PDF struct{}

// NewPDF returns a pdfcpu-backed extractor.
func NewPDF() *PDF {
	return &PDF{}
}

// Extract returns the text of every page joined by newlines. Line breaks from
// text positioning operators are kept so callers can parse line by line.
func (p *PDF) Extract(data []byte) (string, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}

		content, err := io.ReadAll(r)
		if err != nil || len(content) == 0 {
			continue
		}

		if text := TextFromStream(content); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrNoText
	}

	return strings.Join(pages, "\n"), nil
}

// pdfStringRe matches PDF string literals: (text here).
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// TextFromStream interprets the text showing operators of a content stream.
func TextFromStream(data []byte) string {
	var sb strings.Builder

	for line := range bytes.SplitSeq(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeStrings(&sb, line)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			sb.WriteByte('\n')
			writeStrings(&sb, line)
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")),
			bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}

	return cleanText(sb.String())
}

func writeStrings(sb *strings.Builder, line []byte) {
	for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
		sb.WriteString(decodePDFString(m[1]))
	}
}

// decodePDFString handles the escape sequences of PDF string literals.
func decodePDFString(raw []byte) string {
	var sb strings.Builder

	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])

			continue
		}

		i++

		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])

				continue
			}

			// Octal escape, up to three digits.
			val := int(raw[i] - '0')
			for n := 1; n < 3 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}

			sb.WriteByte(byte(val))
		}
	}

	return sb.String()
}

// cleanText collapses runs of spaces inside each line, drops unprintable
// runes and removes empty lines.
func cleanText(text string) string {
	var lines []string

	for line := range strings.SplitSeq(strings.ReplaceAll(text, "\r", "\n"), "\n") {
		line = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}

			if !unicode.IsPrint(r) {
				return -1
			}

			return r
		}, line)

		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
