package plugin

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qbank/internal/models"
)

// fakePlugin records the stages it ran; nil funcs succeed with defaults.
type fakePlugin struct {
	id        string
	scrape    func() (*models.ScrapedData, error)
	parse     func() (*models.ParsedQuestions, error)
	validate  func() (*models.ValidationResult, error)
	load      func(ctx context.Context) (string, error)
	mu        sync.Mutex
	stages    []string
	questions int
}

func (f *fakePlugin) record(stage string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stages = append(f.stages, stage)
}

func (f *fakePlugin) Info() Info {
	return Info{ID: f.id, Name: strings.ToUpper(f.id), Version: "1.0.0"}
}

func (f *fakePlugin) Initialize(context.Context) error {
	f.record("initialize")

	return nil
}

func (f *fakePlugin) Scrape(context.Context) (*models.ScrapedData, error) {
	f.record("scrape")

	if f.scrape != nil {
		return f.scrape()
	}

	return models.NewScrapedData(time.Now()), nil
}

func (f *fakePlugin) Parse(context.Context, *models.ScrapedData) (*models.ParsedQuestions, error) {
	f.record("parse")

	if f.parse != nil {
		return f.parse()
	}

	return &models.ParsedQuestions{
		Questions: []models.RawQuestion{{Number: 1}, {Number: 2}},
		Warnings:  []string{"parse warning"},
	}, nil
}

func (f *fakePlugin) Transform(_ context.Context, p *models.ParsedQuestions) (*models.TransformedQuestions, error) {
	f.record("transform")

	out := &models.TransformedQuestions{Warnings: []string{"transform warning"}}
	for range p.Questions {
		out.Questions = append(out.Questions, models.CompleteQuestion{})
	}

	return out, nil
}

func (f *fakePlugin) Validate(context.Context, []models.CompleteQuestion) (*models.ValidationResult, error) {
	f.record("validate")

	if f.validate != nil {
		return f.validate()
	}

	return &models.ValidationResult{IsValid: true, Warnings: []string{"validate warning"}}, nil
}

func (f *fakePlugin) Load(ctx context.Context, _ []models.CompleteQuestion) (string, error) {
	f.record("load")

	if f.load != nil {
		return f.load(ctx)
	}

	return "out/" + f.id + ".sql", nil
}

func (f *fakePlugin) EstimatedQuestionCount() int { return f.questions }
func (f *fakePlugin) SupportedYears() []int       { return []int{2024} }
func (f *fakePlugin) RequiresManualSetup() bool   { return false }

func TestRunPluginSuccess(t *testing.T) {
	var run Run

	p := &fakePlugin{id: "enare", load: func(ctx context.Context) (string, error) {
		run = RunFrom(ctx)

		return "out/enare.sql", nil
	}}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{})

	if !res.Success {
		t.Fatalf("expected success, got errors %v", res.Errors)
	}

	if res.PluginID != "enare" || res.SQLPath != "out/enare.sql" || res.TotalQuestions != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	if !strings.HasPrefix(res.RunID, "run_") || run.ID != res.RunID || !run.Validated {
		t.Errorf("run = %+v, RunID = %s", run, res.RunID)
	}

	wantStages := []string{"initialize", "scrape", "parse", "transform", "validate", "load"}
	if !reflect.DeepEqual(p.stages, wantStages) {
		t.Errorf("stages = %v", p.stages)
	}

	wantWarnings := []string{"parse warning", "transform warning", "validate warning"}
	if !reflect.DeepEqual(res.Warnings, wantWarnings) {
		t.Errorf("warnings = %v", res.Warnings)
	}

	if res.Duration <= 0 {
		t.Error("duration not recorded")
	}
}

func TestRunPluginInvalidValidationNeverRaises(t *testing.T) {
	p := &fakePlugin{id: "bad", validate: func() (*models.ValidationResult, error) {
		return &models.ValidationResult{IsValid: false, Errors: []string{"q1: empty stem", "q2: duplicate"}}, nil
	}}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{})

	if res.Success {
		t.Fatal("expected failure")
	}

	want := "validation failed: q1: empty stem; q2: duplicate"
	if len(res.Errors) != 1 || res.Errors[0] != want {
		t.Errorf("errors = %q, want %q", res.Errors, want)
	}

	for _, s := range p.stages {
		if s == "load" {
			t.Error("load must not run after failed validation")
		}
	}
}

func TestRunPluginRecoversPanic(t *testing.T) {
	p := &fakePlugin{id: "panicky", parse: func() (*models.ParsedQuestions, error) {
		panic("boom")
	}}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{})

	if res.Success || len(res.Errors) != 1 || res.Errors[0] != "panic: boom" {
		t.Errorf("unexpected result %+v", res)
	}

	if res.PluginID != "panicky" || res.Duration <= 0 {
		t.Errorf("result not finalized: %+v", res)
	}
}

func TestRunPluginStageErrors(t *testing.T) {
	tests := []struct {
		name   string
		plugin *fakePlugin
		want   string
	}{
		{
			name: "scrape error",
			plugin: &fakePlugin{id: "a", scrape: func() (*models.ScrapedData, error) {
				return nil, errors.New("offline")
			}},
			want: "scrape: offline",
		},
		{
			name: "nil parse result",
			plugin: &fakePlugin{id: "b", parse: func() (*models.ParsedQuestions, error) {
				return nil, nil
			}},
			want: "parse: " + ErrNilStageResult.Error(),
		},
		{
			name: "load error",
			plugin: &fakePlugin{id: "c", load: func(context.Context) (string, error) {
				return "", errors.New("disk full")
			}},
			want: "load: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRunner(nil, 1).RunPlugin(context.Background(), tt.plugin, RunOptions{})
			if res.Success || len(res.Errors) != 1 || res.Errors[0] != tt.want {
				t.Errorf("errors = %q, want %q", res.Errors, tt.want)
			}
		})
	}
}

func TestRunPluginSkipScrapeFails(t *testing.T) {
	p := &fakePlugin{id: "skip"}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{
		SkipScrape:  true,
		ScrapedData: models.NewScrapedData(time.Now()),
	})

	if res.Success || len(res.Errors) != 1 || res.Errors[0] != ErrSkipScrape.Error() {
		t.Errorf("unexpected result %+v", res)
	}

	if !reflect.DeepEqual(p.stages, []string{"initialize"}) {
		t.Errorf("stages = %v", p.stages)
	}
}

func TestRunPluginResumesFromScrapedData(t *testing.T) {
	p := &fakePlugin{id: "resume"}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{
		ScrapedData: models.NewScrapedData(time.Now()),
	})
	if !res.Success {
		t.Fatalf("errors = %v", res.Errors)
	}

	for _, s := range p.stages {
		if s == "scrape" {
			t.Error("scrape should not run when data is supplied")
		}
	}
}

func TestRunPluginSkipValidation(t *testing.T) {
	var run Run

	p := &fakePlugin{id: "fast", load: func(ctx context.Context) (string, error) {
		run = RunFrom(ctx)

		return "x.sql", nil
	}}

	res := NewRunner(nil, 1).RunPlugin(context.Background(), p, RunOptions{SkipValidation: true})
	if !res.Success {
		t.Fatalf("errors = %v", res.Errors)
	}

	if run.Validated {
		t.Error("artifact must not be marked validated")
	}

	for _, s := range p.stages {
		if s == "validate" {
			t.Error("validate should be skipped")
		}
	}
}

func TestRunPluginCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewRunner(nil, 1).RunPlugin(ctx, &fakePlugin{id: "c"}, RunOptions{})
	if res.Success || !strings.Contains(res.Errors[0], context.Canceled.Error()) {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunBatchOrderAndLimit(t *testing.T) {
	var running, peak atomic.Int32

	slowLoad := func(context.Context) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(20 * time.Millisecond)
		running.Add(-1)

		return "ok.sql", nil
	}

	var plugins []Plugin
	for _, id := range []string{"e", "d", "c", "b", "a"} {
		plugins = append(plugins, &fakePlugin{id: id, load: slowLoad})
	}

	plugins = append(plugins, &fakePlugin{id: "z", validate: func() (*models.ValidationResult, error) {
		return &models.ValidationResult{Errors: []string{"bad"}}, nil
	}})

	results := NewRunner(nil, 2).RunBatch(context.Background(), plugins, RunOptions{})

	if len(results) != len(plugins) {
		t.Fatalf("results = %d", len(results))
	}

	for i, res := range results {
		if res.PluginID != plugins[i].Info().ID {
			t.Errorf("results[%d] = %s, want %s", i, res.PluginID, plugins[i].Info().ID)
		}
	}

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}

	s := Summarize(results)
	if s.Total != 6 || s.Succeeded != 5 || s.Failed != 1 || s.TotalQuestions != 10 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if s := Summarize(nil); s != (models.BatchSummary{}) {
		t.Errorf("summary = %+v", s)
	}
}
