// Package metadata signs text artifacts with a trailing SQL-comment metadata block.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// TagStart is the start of the metadata block.
	TagStart = "-- METADATA_START"
	// TagEnd is the end of the metadata block.
	TagEnd = "-- METADATA_END"
)

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("hash mismatch")
)

// Metadata describes the provenance of an artifact.
type Metadata struct {
	LastModify time.Time
	Version    string
	Hash       string
	Plugin     string
	RunID      string
	Questions  int
	Validation bool
}

// metadataRegex matches the entire metadata block including tags.
var metadataRegex = regexp.MustCompile(`(?s)\n*-- METADATA_START\n(.*?)\n-- METADATA_END\n?`)

// Extract removes the metadata block from content and returns both the metadata
// and the cleaned content. The cleaned content is what gets hashed.
func Extract(content string) (*Metadata, string) {
	match := metadataRegex.FindStringSubmatch(content)
	cleanContent := metadataRegex.ReplaceAllString(content, "")
	cleanContent = strings.TrimRight(cleanContent, "\n")

	if len(match) < 2 {
		return nil, cleanContent
	}

	meta := &Metadata{}

	for line := range strings.SplitSeq(match[1], "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "--"))

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "VALIDATION":
			meta.Validation = strings.EqualFold(val, "TRUE")
		case "LAST_MODIFY":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.LastModify = t
			}
		case "HASH":
			meta.Hash = val
		case "VERSION":
			meta.Version = val
		case "PLUGIN":
			meta.Plugin = val
		case "RUN_ID":
			meta.RunID = val
		case "QUESTIONS":
			if n, err := strconv.Atoi(val); err == nil {
				meta.Questions = n
			}
		}
	}

	return meta, cleanContent
}

// CalculateHash computes the SHA-256 hash of the content, excluding any metadata block.
func CalculateHash(content string) string {
	_, clean := Extract(content)
	hash := sha256.Sum256([]byte(clean))

	return hex.EncodeToString(hash[:])
}

// Sign replaces any existing metadata block with a fresh one carrying the
// content hash. LastModify is taken from meta and formatted as RFC 3339 UTC.
func Sign(content string, meta Metadata) string {
	_, clean := Extract(content)

	valStr := "FALSE"
	if meta.Validation {
		valStr = "TRUE"
	}

	var b strings.Builder

	b.WriteString(clean)
	b.WriteString("\n\n")
	b.WriteString(TagStart + "\n")
	fmt.Fprintf(&b, "-- VALIDATION: %s\n", valStr)
	fmt.Fprintf(&b, "-- LAST_MODIFY: %s\n", meta.LastModify.UTC().Format(time.RFC3339))

	if meta.Version != "" {
		fmt.Fprintf(&b, "-- VERSION: %s\n", meta.Version)
	}

	if meta.Plugin != "" {
		fmt.Fprintf(&b, "-- PLUGIN: %s\n", meta.Plugin)
	}

	if meta.RunID != "" {
		fmt.Fprintf(&b, "-- RUN_ID: %s\n", meta.RunID)
	}

	fmt.Fprintf(&b, "-- QUESTIONS: %d\n", meta.Questions)
	fmt.Fprintf(&b, "-- HASH: %s\n", CalculateHash(clean))
	b.WriteString(TagEnd + "\n")

	return b.String()
}

// Verify checks if the content matches the hash in its metadata.
func Verify(content string) (*Metadata, error) {
	meta, clean := Extract(content)
	if meta == nil {
		return nil, ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return meta, ErrNoHashFound
	}

	calculated := CalculateHash(clean)
	if calculated != meta.Hash {
		return meta, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return meta, nil
}
