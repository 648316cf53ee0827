// Package main provides the qbank command that runs question source pipelines
// and applies their rendered SQL scripts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"qbank/internal/config"
	"qbank/internal/formatter"
	"qbank/internal/logger"
	"qbank/internal/models"
	"qbank/internal/plugin"
	"qbank/internal/sources"
	"qbank/internal/store"
	"qbank/internal/validator"
)

const defaultConfigPath = "configs/qbank.yaml"

// warningWidth caps warning cells in run reports.
const warningWidth = 100

const usage = `Usage: qbank [-config path] [-log-level level] <command> [args]

Commands:
  list                 list registered question sources
  run <plugin-id>      run one source pipeline
  batch [plugin-id...] run several sources concurrently (all when none given)
  info [-check] <plugin-id>
                       show a source's details; -check tests each year's URLs
  apply <sql-file>     verify and apply a rendered script to the database
  verify <sql-file>    check a rendered script's signature
  help                 show this message
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

// app carries what every command needs.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	env      *plugin.Env
	registry *plugin.Registry
	out      io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qbank", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	configPath := fs.String("config", "", "Path to YAML config (default "+defaultConfigPath+" when present)")
	logLevel := fs.String("log-level", "", "Override logging.level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmd, rest := "help", []string(nil)
	if fs.NArg() > 0 {
		cmd, rest = fs.Arg(0), fs.Args()[1:]
	}

	if cmd == "help" || cmd == "-h" {
		fmt.Fprint(stdout, usage)

		return 0
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)

		return 1
	}

	log := logger.NewLoggerWithWriter(cfg.Logging.Level, stderr)

	env, err := plugin.NewEnv(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)

		return 1
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		env:      env,
		registry: sources.DefaultRegistry(env, log),
		out:      stdout,
	}

	switch cmd {
	case "list":
		err = a.list()
	case "run":
		if len(rest) != 1 {
			err = errors.New("usage: qbank run <plugin-id>")

			break
		}

		err = a.runOne(ctx, rest[0])
	case "batch":
		err = a.batch(ctx, rest)
	case "info":
		infoFlags := flag.NewFlagSet("info", flag.ContinueOnError)
		infoFlags.SetOutput(stderr)
		check := infoFlags.Bool("check", false, "Check each year's exam and answer key URLs")

		if err = infoFlags.Parse(rest); err != nil {
			return 2
		}

		if infoFlags.NArg() != 1 {
			err = errors.New("usage: qbank info [-check] <plugin-id>")

			break
		}

		err = a.info(ctx, infoFlags.Arg(0), *check)
	case "apply":
		if len(rest) != 1 {
			err = errors.New("usage: qbank apply <sql-file>")

			break
		}

		err = a.apply(ctx, rest[0])
	case "verify":
		if len(rest) != 1 {
			err = errors.New("usage: qbank verify <sql-file>")

			break
		}

		err = a.verify(rest[0])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)

		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)

		return 1
	}

	return 0
}

func loadConfig(path, level string) (*config.Config, error) {
	cfg := config.Default()

	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if level != "" {
		cfg.Logging.Level = level

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (a *app) list() error {
	tbl := formatter.NewTable("ID", "Name", "Version", "Years", "Questions", "Manual")

	for _, s := range a.registry.Summary() {
		manual := ""
		if s.ManualSetup {
			manual = "yes"
		}

		tbl.Append(s.ID, s.Name, s.Version, joinYears(s.Years), strconv.Itoa(s.Questions), manual)
	}

	fmt.Fprint(a.out, tbl.String())
	fmt.Fprintf(a.out, "\n📊 Estimated questions: %d\n", a.registry.TotalEstimatedQuestions())

	return nil
}

// availabilityChecker is implemented by sources that can check artifact reachability.
type availabilityChecker interface {
	CheckAvailability(ctx context.Context) []sources.Availability
}

func (a *app) info(ctx context.Context, id string, check bool) error {
	p, err := a.registry.Get(id)
	if err != nil {
		return err
	}

	info := p.Info()
	src := a.cfg.Source(id)

	tbl := formatter.NewTable("Field", "Value")
	tbl.Append("ID", info.ID)
	tbl.Append("Name", info.Name)
	tbl.Append("Description", info.Description)
	tbl.Append("Version", info.Version)
	tbl.Append("Years", joinYears(p.SupportedYears()))
	tbl.Append("Estimated questions", strconv.Itoa(p.EstimatedQuestionCount()))
	tbl.Append("Manual setup", strconv.FormatBool(p.RequiresManualSetup()))
	tbl.Append("Cache dir", a.cfg.CacheDirFor(id))

	if src.BaseURL != "" {
		tbl.Append("Base URL", src.BaseURL)
	}

	if src.LocalDir != "" {
		tbl.Append("Local dir", src.LocalDir)
	}

	fmt.Fprint(a.out, tbl.String())

	if !check {
		return nil
	}

	pr, ok := p.(availabilityChecker)
	if !ok || p.RequiresManualSetup() {
		fmt.Fprintf(a.out, "\nℹ️  %s has no remote artifacts to check\n", id)

		return nil
	}

	reach := formatter.NewTable("Year", "Exam", "Answer key", "Exam URL")

	for _, av := range pr.CheckAvailability(ctx) {
		reach.Append(strconv.Itoa(av.Year), mark(av.Exam), mark(av.Key), av.ExamURL)
	}

	fmt.Fprint(a.out, "\n"+reach.String())

	return nil
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}

	return "❌"
}

func (a *app) runner() *plugin.Runner {
	return plugin.NewRunner(a.log, a.cfg.Pipeline.Concurrency)
}

func (a *app) runOne(ctx context.Context, id string) error {
	p, err := a.registry.Get(id)
	if err != nil {
		return err
	}

	res := a.runner().RunPlugin(ctx, p, plugin.RunOptions{})
	a.report(res)

	if len(res.Warnings) > 0 {
		tbl := formatter.NewTable("Warning")
		tbl.MaxCellWidth = warningWidth

		for _, w := range res.Warnings {
			tbl.Append(w)
		}

		fmt.Fprint(a.out, "\n"+tbl.String())
	}

	if !res.Success {
		return fmt.Errorf("%s failed", id)
	}

	return nil
}

func (a *app) batch(ctx context.Context, ids []string) error {
	plugins, err := a.registry.Resolve(ids)
	if err != nil {
		return err
	}

	a.log.Info("🚀 Starting batch", "plugins", len(plugins), "concurrency", a.cfg.Pipeline.Concurrency)

	results := a.runner().RunBatch(ctx, plugins, plugin.RunOptions{})

	tbl := formatter.NewTable("Plugin", "Status", "Questions", "Duration", "Output")

	for _, res := range results {
		a.report(res)

		status := "ok"
		if !res.Success {
			status = "failed"
		}

		tbl.Append(res.PluginID, status, strconv.Itoa(res.TotalQuestions), formatDuration(res.Duration), res.SQLPath)
	}

	sum := plugin.Summarize(results)

	fmt.Fprint(a.out, "\n"+tbl.String())
	fmt.Fprintf(a.out, "\n📊 %d/%d succeeded, %d questions in %s\n",
		sum.Succeeded, sum.Total, sum.TotalQuestions, formatDuration(sum.TotalDuration))

	if sum.Failed > 0 {
		return fmt.Errorf("%d of %d plugins failed", sum.Failed, sum.Total)
	}

	return nil
}

// report prints the one-line outcome of a run.
func (a *app) report(res models.ETLResult) {
	if res.Success {
		fmt.Fprintf(a.out, "✅ %s: %d questions in %s -> %s\n",
			res.PluginID, res.TotalQuestions, formatDuration(res.Duration), res.SQLPath)

		return
	}

	fmt.Fprintf(a.out, "❌ %s: %s\n", res.PluginID, strings.Join(res.Errors, "; "))
}

func (a *app) verify(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	meta, err := validator.ValidateIntegrity(string(content))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✅ %s: signed by %s (run %s), %d questions, validated=%t, %s\n",
		path, meta.Plugin, meta.RunID, meta.Questions, meta.Validation, meta.LastModify.Format(time.RFC3339))

	return nil
}

func (a *app) apply(ctx context.Context, path string) error {
	if err := a.verify(path); err != nil {
		return err
	}

	n, err := store.ApplyFile(ctx, store.Driver(a.cfg.Database.Driver), a.cfg.Database.DSN, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✅ applied %d statements to %s\n", n, a.cfg.Database.Driver)

	return nil
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}

	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
