package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"qbank/internal/config"
	"qbank/internal/logger"
	"qbank/internal/pdftext"
	"qbank/internal/plugin"
	"qbank/internal/sources"
	"qbank/internal/store"
	"qbank/internal/validator"
)

const pdfHeader = "%PDF-1.4\n"

func fixture(t *testing.T, name string) []byte {
	t.Helper()

	content, err := os.ReadFile(filepath.Join("..", "fixtures", name))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}

	// Pad past the minimum artifact size.
	return append([]byte(pdfHeader), append(content, []byte(strings.Repeat("\n", 1100))...)...)
}

func TestPipelineFlow_BatchThenApply(t *testing.T) {
	exam := fixture(t, "enare_2023_prova.txt")
	key := fixture(t, "enare_2023_gabarito.txt")

	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		switch r.URL.Path {
		case "/enare/2023/prova-objetiva.pdf":
			w.Write(exam)
		case "/enare/2023/gabarito-definitivo.pdf":
			w.Write(key)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Pipeline.CacheDir = filepath.Join(dir, "cache")
	cfg.Pipeline.OutputDir = filepath.Join(dir, "out")
	cfg.Pipeline.Concurrency = 2
	cfg.Download.InitialDelayMs = 0
	cfg.Download.MaxAttempts = 1
	cfg.Database.DSN = "file:" + filepath.Join(dir, "qbank.db") + "?mode=rwc&_pragma=busy_timeout(5000)"
	cfg.Sources[sources.EnareID] = config.SourceConfig{BaseURL: srv.URL + "/enare", Years: []int{2023}}
	cfg.Sources[sources.SusSPID] = config.SourceConfig{BaseURL: srv.URL + "/sus-sp", Years: []int{2023}}

	log := logger.Discard()

	env, err := plugin.NewEnv(cfg, log)
	if err != nil {
		t.Fatal(err)
	}

	env.Extractor = pdftext.ExtractorFunc(func(data []byte) (string, error) {
		return strings.TrimPrefix(string(data), pdfHeader), nil
	})

	reg := sources.DefaultRegistry(env, log)

	plugins, err := reg.Resolve([]string{sources.EnareID, sources.SusSPID})
	if err != nil {
		t.Fatal(err)
	}

	// 1. Batch: one source succeeds, the other has nothing to download.
	results := plugin.NewRunner(log, cfg.Pipeline.Concurrency).RunBatch(context.Background(), plugins, plugin.RunOptions{})

	if len(results) != 2 || results[0].PluginID != sources.EnareID || results[1].PluginID != sources.SusSPID {
		t.Fatalf("unexpected results order: %+v", results)
	}

	enare, susSP := results[0], results[1]

	if !enare.Success {
		t.Fatalf("enare failed: %v", enare.Errors)
	}

	if enare.TotalQuestions != 4 {
		t.Errorf("Expected 4 questions (one annulled), got %d", enare.TotalQuestions)
	}

	if susSP.Success {
		t.Error("Expected sus-sp to fail without artifacts")
	}

	sum := plugin.Summarize(results)
	if sum.Succeeded != 1 || sum.Failed != 1 || sum.TotalQuestions != 4 {
		t.Errorf("unexpected summary %+v", sum)
	}

	// 2. Verify and apply the artifact twice.
	content, err := os.ReadFile(enare.SQLPath)
	if err != nil {
		t.Fatal(err)
	}

	meta, err := validator.ValidateIntegrity(string(content))
	if err != nil {
		t.Fatalf("artifact failed integrity check: %v", err)
	}

	if !meta.Validation || meta.Questions != 4 || meta.Plugin != sources.EnareID {
		t.Errorf("unexpected metadata %+v", meta)
	}

	ctx := context.Background()

	for range 2 {
		if _, err := store.ApplyFile(ctx, store.DriverSQLite, cfg.Database.DSN, enare.SQLPath); err != nil {
			t.Fatalf("ApplyFile failed: %v", err)
		}
	}

	db, err := store.Open(ctx, store.DriverSQLite, cfg.Database.DSN)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	n, err := store.CountQuestions(ctx, db, "enare-2023")
	if err != nil || n != 4 {
		t.Errorf("CountQuestions = %d, %v; want 4", n, err)
	}

	areas := map[string]string{
		"enare-2023-q001": "ginecologia_obstetricia",
		"enare-2023-q002": "pediatria",
		"enare-2023-q003": "clinica_medica",
		"enare-2023-q004": "medicina_preventiva",
	}

	for id, area := range areas {
		q, err := store.GetQuestion(ctx, db, id)
		if err != nil {
			t.Fatalf("GetQuestion(%s): %v", id, err)
		}

		if q.Area != area {
			t.Errorf("%s area = %s, want %s", id, q.Area, area)
		}
	}

	// 3. A second run is served from the cache.
	before := requests.Load()

	rerun := plugin.NewRunner(log, 1).RunPlugin(context.Background(), plugins[0], plugin.RunOptions{})
	if !rerun.Success || requests.Load() != before {
		t.Errorf("rerun: success=%v, %d new requests", rerun.Success, requests.Load()-before)
	}
}
