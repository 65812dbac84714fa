// Package diagnostics persists what a page looked like when extraction
// found nothing, so selectors can be fixed offline.
package diagnostics

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
)

// Artifact describes the files written for one page.
type Artifact struct {
	HTMLPath     string
	TextPath     string
	MarkdownPath string

	// Duplicate is set when the page matched a recently persisted one and
	// nothing was written; DuplicateOf names that earlier HTML file.
	Duplicate   bool
	DuplicateOf string
}

// Writer persists diagnostic artifacts. It is safe for concurrent use.
type Writer struct {
	dir       string
	enabled   bool
	threshold int
	conv      *converter.Converter

	mu     sync.Mutex
	recent *lru.Cache[uint64, string]

	seq atomic.Uint64
	now func() time.Time
}

// New creates a Writer. The directory is created on first write.
func New(cfg config.DiagnosticsConfig) (*Writer, error) {
	size := cfg.RecentSize
	if size <= 0 {
		size = 1
	}
	recent, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: recent cache: %w", err)
	}
	return &Writer{
		dir:       cfg.Dir,
		enabled:   cfg.Enabled,
		threshold: cfg.SimilarityThreshold,
		conv:      newMarkdownConverter(),
		recent:    recent,
		now:       time.Now,
	}, nil
}

// Enabled reports whether no-data pages are persisted.
func (w *Writer) Enabled() bool { return w != nil && w.enabled }

// Persist writes the extraction source markup, the visible text and a
// Markdown rendering of page. Pages whose fingerprint is within the
// similarity threshold of a recent artifact are skipped.
func (w *Writer) Persist(page *models.Page, visibleText string) (Artifact, error) {
	if !w.Enabled() {
		return Artifact{}, nil
	}
	markup := page.ExtractionSource()

	fp := Fingerprint(markup, visibleText)
	w.mu.Lock()
	if prev, ok := w.similar(fp); ok {
		w.mu.Unlock()
		slog.Debug("diagnostic skipped, matches recent page", "url", page.URL, "previous", prev)
		return Artifact{Duplicate: true, DuplicateOf: prev}, nil
	}
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("diagnostics: create dir: %w", err)
	}

	stem := filepath.Join(w.dir, w.stem("diag", page.URL))
	art := Artifact{
		HTMLPath:     stem + ".html",
		TextPath:     stem + ".txt",
		MarkdownPath: stem + ".md",
	}
	if err := os.WriteFile(art.HTMLPath, []byte(markup), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("diagnostics: write html: %w", err)
	}
	if err := os.WriteFile(art.TextPath, []byte(visibleText), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("diagnostics: write text: %w", err)
	}

	md, err := readableMarkdown(w.conv, markup, page.URL)
	if err != nil {
		slog.Warn("diagnostic markdown failed", "url", page.URL, "error", err)
		art.MarkdownPath = ""
	} else if err := os.WriteFile(art.MarkdownPath, []byte(md), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("diagnostics: write markdown: %w", err)
	}

	w.mu.Lock()
	w.recent.Add(fp, art.HTMLPath)
	w.mu.Unlock()

	slog.Info("diagnostic saved", "url", page.URL, "path", art.HTMLPath)
	return art, nil
}

// SaveDebug writes the top-level markup of page unconditionally. It backs
// the -debug flag and ignores Enabled and dedupe.
func (w *Writer) SaveDebug(page *models.Page) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("diagnostics: create dir: %w", err)
	}
	path := filepath.Join(w.dir, w.stem("debug", page.URL)+".html")
	if err := os.WriteFile(path, []byte(page.HTML), 0o644); err != nil {
		return "", fmt.Errorf("diagnostics: write debug html: %w", err)
	}
	slog.Info("debug page saved", "url", page.URL, "path", path)
	return path, nil
}

// similar must be called with mu held.
func (w *Writer) similar(fp uint64) (string, bool) {
	for _, k := range w.recent.Keys() {
		if Distance(k, fp) <= w.threshold {
			path, _ := w.recent.Peek(k)
			return path, true
		}
	}
	return "", false
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)

// stem builds "<prefix>_<timestamp>_<seq>_<host>", unique within a process.
func (w *Writer) stem(prefix, pageURL string) string {
	host := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = unsafeName.ReplaceAllString(u.Hostname(), "_")
	}
	return fmt.Sprintf("%s_%s_%03d_%s", prefix, w.now().Format("20060102_150405"), w.seq.Add(1), host)
}
