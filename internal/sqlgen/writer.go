package sqlgen

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"qbank/internal/models"
	"qbank/pkg/metadata"
)

// FormatVersion is stamped into every artifact's metadata block.
const FormatVersion = "1"

// maxNameAttempts bounds the numbered suffixes tried for one timestamp.
const maxNameAttempts = 100

// ErrNameExhausted is returned when every suffixed name for a timestamp is taken.
var ErrNameExhausted = errors.New("no free artifact name")

// Artifact describes one script to write.
type Artifact struct {
	PluginID   string
	PluginName string
	RunID      string
	Questions  []models.CompleteQuestion
	Validated  bool
}

// Writer renders and signs scripts into an output directory.
type Writer struct {
	now func() time.Time
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	return &Writer{dir: dir, now: time.Now}, nil
}

// SetClock overrides the time source.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write renders a.Questions, signs the script and writes it to
// {dir}/{plugin}_{timestamp}.sql, returning the path. An existing file is
// never overwritten: later scripts of the same second get _2, _3, ...
func (w *Writer) Write(a Artifact) (string, error) {
	at := w.now().UTC().Truncate(time.Second)

	script, err := Render(RenderInput{
		GeneratedAt: at,
		PluginID:    a.PluginID,
		PluginName:  a.PluginName,
		Questions:   a.Questions,
	})
	if err != nil {
		return "", err
	}

	signed := metadata.Sign(script, metadata.Metadata{
		LastModify: at,
		Version:    FormatVersion,
		Plugin:     a.PluginID,
		RunID:      a.RunID,
		Questions:  len(a.Questions),
		Validation: a.Validated,
	})

	base := fmt.Sprintf("%s_%s", a.PluginID, at.Format("20060102T150405Z"))

	for n := 1; n <= maxNameAttempts; n++ {
		name := base + ".sql"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.sql", base, n)
		}

		path := filepath.Join(w.dir, name)

		err := writeExclusive(path, []byte(signed))
		if errors.Is(err, fs.ErrExist) {
			continue
		}

		if err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}

		return path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNameExhausted, base)
}

// writeExclusive creates path, failing with fs.ErrExist when it is taken.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)

		return err
	}

	return f.Close()
}
