package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "enamed"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	return s
}

func TestStore_IsCached_MinSize(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("x.pdf", bytes.Repeat([]byte("a"), 500)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if s.IsCached("x.pdf", DefaultMinSize) {
		t.Error("500-byte file must be treated as absent")
	}

	if err := s.Save("x.pdf", bytes.Repeat([]byte("a"), 2000)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !s.IsCached("x.pdf", DefaultMinSize) {
		t.Error("2000-byte file must be cached")
	}
}

func TestStore_IsCached_Missing(t *testing.T) {
	s := newTestStore(t)

	if s.IsCached("missing.pdf", 0) {
		t.Error("missing file reported as cached")
	}
}

func TestStore_SaveRead(t *testing.T) {
	s := newTestStore(t)
	want := []byte("%PDF-1.7 content")

	if err := s.Save("enare_2023.pdf", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Read("enare_2023.pdf")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("Read = %q, want %q", got, want)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(names) != 1 || names[0] != "enare_2023.pdf" {
		t.Errorf("List = %v, want only the saved entry", names)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read("nope.pdf")
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestStore_ClearKeepsPath(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("a.pdf", bytes.Repeat([]byte("z"), 4096)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.Clear("a.pdf"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	path, _ := s.Path("a.pdf")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("cleared entry must still exist: %v", err)
	}

	if info.Size() != 0 {
		t.Errorf("cleared entry size = %d, want 0", info.Size())
	}

	if s.IsCached("a.pdf", 1) {
		t.Error("cleared entry must not count as cached")
	}
}

func TestStore_PathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"", "..", "../escape.pdf", "sub/dir.pdf", `win\path.pdf`} {
		if _, err := s.Path(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Path(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}
