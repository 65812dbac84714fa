package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/use-agent/dirscrape/api"
	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/diagnostics"
	"github.com/use-agent/dirscrape/engine"
	"github.com/use-agent/dirscrape/metrics"
	"github.com/use-agent/dirscrape/pipeline"
	"github.com/use-agent/dirscrape/scraper"
	"github.com/use-agent/dirscrape/store"
	"github.com/use-agent/dirscrape/webhook"
)

const (
	exitOK          = 0
	exitAborted     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Configuration: .env, env defaults, flags on top ──────────
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	cfg := config.Load()
	bindFlags(cfg)
	flag.Parse()

	initLogger(cfg.Log)

	if cfg.Run.InputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: dirscrape -csv <file> [flags]")
		flag.PrintDefaults()
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitUsage
	}
	if err := cfg.LoadCookies(); err != nil {
		slog.Error("failed to load cookies", "file", cfg.CookiesFile, "error", err)
		return exitUsage
	}
	output := cfg.Run.OutputOrInput()
	slog.Info("dirscrape starting",
		"input", cfg.Run.InputPath,
		"output", output,
		"column", cfg.Run.URLColumn,
		"mode", cfg.Fetch.Mode,
		"headless", cfg.Browser.Headless,
		"cookies", cfg.Cookies.Len(),
		"cookieDomains", cfg.Cookies.Domains(),
	)

	// ── 2. Signal-aware context ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Collaborators ────────────────────────────────────────────
	m := metrics.New()
	diag, err := diagnostics.New(cfg.Diagnostics)
	if err != nil {
		slog.Error("failed to initialise diagnostics", "error", err)
		return exitAborted
	}
	runner := pipeline.NewRunner(cfg.Run, engineFactory(cfg),
		pipeline.WithDiagnostics(diag),
		pipeline.WithMetrics(m),
	)

	// ── 4. Optional status server ───────────────────────────────────
	var srv *http.Server
	if cfg.Status.Addr != "" {
		srv = &http.Server{
			Addr:    cfg.Status.Addr,
			Handler: api.NewRouter(runner, m, cfg.Status, time.Now()),
		}
		go func() {
			slog.Info("status server listening", "addr", cfg.Status.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server error", "error", err)
			}
		}()
	}

	// ── 5. Run ──────────────────────────────────────────────────────
	rep, runErr := runner.Run(ctx, cfg.Run.InputPath, output)
	fmt.Println(rep.Summary())
	printProblemRows(os.Stdout, rep)

	// Post-run work gets its own deadline, detached from the signal context.
	post, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	// ── 6. Snapshot and notification ────────────────────────────────
	if cfg.Store.SQLitePath != "" && rep.Dataset != nil {
		if err := snapshot(post, cfg.Store.SQLitePath, rep); err != nil {
			slog.Warn("run snapshot failed", "path", cfg.Store.SQLitePath, "error", err)
		}
	}
	if cfg.Webhook.URL != "" {
		n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
		if err := n.DeliverWithRetry(post, webhook.NewRunEvent(rep)); err != nil {
			slog.Warn("run notification not delivered", "error", err)
		}
	}

	// ── 7. Shutdown ─────────────────────────────────────────────────
	if srv != nil {
		sctx, scancel := context.WithTimeout(post, 5*time.Second)
		if err := srv.Shutdown(sctx); err != nil {
			slog.Error("status server forced shutdown", "error", err)
		}
		scancel()
	}

	switch {
	case runErr != nil:
		return exitAborted
	case rep.Status == pipeline.StatusInterrupted:
		return exitInterrupted
	default:
		return exitOK
	}
}

// bindFlags registers CLI flags whose defaults come from the environment.
func bindFlags(cfg *config.Config) {
	flag.StringVar(&cfg.Run.InputPath, "csv", cfg.Run.InputPath, "input CSV with a URL column")
	flag.StringVar(&cfg.Run.OutputPath, "output", cfg.Run.OutputPath, "output CSV (default: overwrite the input)")
	flag.StringVar(&cfg.Run.URLColumn, "url-column", cfg.Run.URLColumn, "name of the column holding the profile URL")
	flag.DurationVar(&cfg.Run.RequestDelay, "delay", cfg.Run.RequestDelay, "minimum spacing between page fetches")
	flag.BoolVar(&cfg.Run.Debug, "debug", cfg.Run.Debug, "save the HTML of every fetched page")
	flag.BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run the browser headless")
	flag.StringVar(&cfg.CookiesFile, "cookies", cfg.CookiesFile, "JSON file of {name,value,domain,path} cookies")
	flag.StringVar(&cfg.Fetch.Mode, "mode", cfg.Fetch.Mode, `fetch engine: "browser" or "http"`)
	flag.StringVar(&cfg.Diagnostics.Dir, "diag-dir", cfg.Diagnostics.Dir, "directory for diagnostic artifacts")
	flag.StringVar(&cfg.Status.Addr, "status-addr", cfg.Status.Addr, "listen address for the status server (empty disables it)")
	flag.StringVar(&cfg.Store.SQLitePath, "sqlite", cfg.Store.SQLitePath, "SQLite file for run snapshots (empty disables it)")
}

// engineFactory opens a browser session, or the plain HTTP engine in http mode.
func engineFactory(cfg *config.Config) pipeline.EngineFactory {
	return func(ctx context.Context) (engine.Engine, func() error, error) {
		if cfg.Fetch.Mode == "http" {
			return engine.NewHTTPEngine(cfg.Cookies, cfg.Fetch, cfg.Browser.Proxy), nil, nil
		}
		sess, err := scraper.Open(cfg.Browser, cfg.Fetch)
		if err != nil {
			return nil, nil, err
		}
		f := scraper.NewFetcher(sess.Tab(), cfg.Cookies, cfg.Fetch)
		return engine.NewRodEngine(f.Fetch), sess.Close, nil
	}
}

// printProblemRows renders every row that finished with an error code.
func printProblemRows(w io.Writer, rep *pipeline.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Row", "State", "Code", "URL"})
	n := 0
	for _, r := range rep.Rows {
		if r.Code == "" {
			continue
		}
		t.AppendRow(table.Row{fmt.Sprintf("%d/%d", r.Index+1, rep.Progress.Total), r.State, r.Code, r.URL})
		n++
	}
	if n == 0 {
		return
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func snapshot(ctx context.Context, path string, rep *pipeline.Report) error {
	s, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Snapshot(ctx, rep); err != nil {
		return err
	}
	slog.Info("run snapshot saved", "path", path, "run_id", rep.ID)
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
