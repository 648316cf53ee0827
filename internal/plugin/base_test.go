package plugin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qbank/internal/config"
	"qbank/internal/downloader"
	"qbank/internal/logger"
	"qbank/internal/models"
	"qbank/internal/store"
	"qbank/pkg/metadata"
)

func testEnv(t *testing.T) *Env {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Pipeline.CacheDir = filepath.Join(dir, "cache")
	cfg.Pipeline.OutputDir = filepath.Join(dir, "out")
	cfg.Download.InitialDelayMs = 0
	cfg.Download.MaxAttempts = 2
	cfg.Download.TimeoutSec = 5
	cfg.Database.DSN = "file:" + filepath.Join(dir, "qbank.db") + "?mode=rwc&_pragma=busy_timeout(5000)"

	env, err := NewEnv(cfg, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}

	env.Now = func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }
	env.Writer.SetClock(env.Now)

	return env
}

func TestBaseFetchCachesDownloads(t *testing.T) {
	payload := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2000)...)

	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	b := NewBase(Info{ID: "enare", Name: "ENARE"}, testEnv(t))
	ctx := context.Background()

	if _, err := b.Fetch(ctx, "enare_2023.pdf", downloader.Options{ExpectPDF: true}, srv.URL); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}

	if err := b.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		data, err := b.Fetch(ctx, "enare_2023.pdf", downloader.Options{ExpectPDF: true}, srv.URL)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i+1, err)
		}

		if !bytes.Equal(data, payload) {
			t.Fatalf("Fetch #%d returned %d bytes", i+1, len(data))
		}
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}

	if _, err := os.Stat(filepath.Join(b.Env().Config.CacheDirFor("enare"), "enare_2023.pdf")); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
}

func TestBaseInitializeConcurrent(t *testing.T) {
	b := NewBase(Info{ID: "enare", Name: "ENARE"}, testEnv(t))
	ctx := context.Background()

	if err := b.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	first := b.Cache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := b.Initialize(ctx); err != nil {
				t.Error(err)
			}

			_ = b.Cache()
		}()
	}

	wg.Wait()

	if b.Cache() != first {
		t.Error("Initialize replaced an open cache")
	}
}

func TestBaseFetchRedownloadsTruncatedCache(t *testing.T) {
	payload := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("y"), 1500)...)

	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	b := NewBase(Info{ID: "enare"}, testEnv(t))
	ctx := context.Background()

	if err := b.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	if err := b.Cache().Save("a.pdf", []byte("%PDF tiny")); err != nil {
		t.Fatal(err)
	}

	if _, err := b.Fetch(ctx, "a.pdf", downloader.Options{ExpectPDF: true}, srv.URL); err != nil {
		t.Fatal(err)
	}

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func sampleComplete() []models.CompleteQuestion {
	return []models.CompleteQuestion{{
		ID:           "enare-2023-q001",
		BankID:       "enare-2023",
		Stem:         "Qual a conduta?",
		Area:         "cirurgia",
		Options:      []models.Option{{Letter: "A", Text: "x"}, {Letter: "B", Text: "y"}},
		CorrectIndex: 1,
		Year:         2023,
		Metadata:     models.QuestionMetadata{Source: "enare", Position: 1, TotalQuestions: 1, OptionCount: 2},
		IRT:          models.IRTParameters{Difficulty: 0.4, Discrimination: 1, Guessing: 0.25, Method: models.MethodMetadata, Estimated: true},
	}}
}

func TestBaseLoadWritesSignedScript(t *testing.T) {
	b := NewBase(Info{ID: "enare", Name: "ENARE"}, testEnv(t))

	ctx := WithRun(context.Background(), Run{ID: "run_x", Validated: true})

	path, err := b.Load(ctx, sampleComplete())
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(path) != "enare_20240701T100000Z.sql" {
		t.Errorf("path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := metadata.Verify(string(data))
	if err != nil {
		t.Fatal(err)
	}

	if meta.RunID != "run_x" || !meta.Validation || meta.Questions != 1 {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestBaseLoadAppliesWhenConfigured(t *testing.T) {
	env := testEnv(t)
	env.Config.Database.ApplyOnLoad = true

	b := NewBase(Info{ID: "enare", Name: "ENARE"}, env)
	ctx := context.Background()

	if _, err := b.Load(ctx, sampleComplete()); err != nil {
		t.Fatal(err)
	}

	db, err := store.Open(ctx, store.DriverSQLite, env.Config.Database.DSN)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	n, err := store.CountQuestions(ctx, db, "enare-2023")
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Errorf("stored questions = %d, want 1", n)
	}
}

func TestBaseValidateUsesSharedValidator(t *testing.T) {
	b := NewBase(Info{ID: "enare"}, testEnv(t))

	res, err := b.Validate(context.Background(), sampleComplete())
	if err != nil || !res.IsValid {
		t.Errorf("Validate = %+v, %v", res, err)
	}

	res, _ = b.Validate(context.Background(), nil)
	if res.IsValid {
		t.Error("empty batch should be invalid")
	}
}
