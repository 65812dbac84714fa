package extractor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dirscrape/models"
)

// Source names which document a result was extracted from.
const (
	SourceDocument = "document"
	SourceFrame    = "frame"
)

// Result is the outcome of extracting one page.
type Result struct {
	// Record holds the structured fields. It is never nil.
	Record *models.Record

	// VisibleText is the page's rendered text, filled only when Record is
	// empty. It is a diagnostic, not a field.
	VisibleText string

	// Source is SourceDocument or SourceFrame.
	Source string
}

// Structured reports whether any field was extracted.
func (r Result) Structured() bool {
	return r.Record.Len() > 0
}

// Extractor runs its primary strategies in order, then the fallback
// strategies only if the primary ones produced nothing.
//
// Extract is deterministic: identical markup always yields an identical Result.
type Extractor struct {
	primary  []Strategy
	fallback []Strategy
}

// New creates an Extractor from ordered strategy lists.
func New(primary []Strategy, fallback ...Strategy) *Extractor {
	return &Extractor{primary: primary, fallback: fallback}
}

// Default returns the member-directory extractor: named landmarks first,
// the two-line heuristic as fallback.
func Default() *Extractor {
	return New(
		[]Strategy{MustDirectoryStrategy(DefaultLandmarks())},
		TwoLineStrategy{},
	)
}

// Extract turns rendered markup into a Result.
func (e *Extractor) Extract(markup string) Result {
	res := Result{Record: models.NewRecord(), Source: SourceDocument}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Warn("extractor: markup could not be parsed", "error", err)
		res.VisibleText = markup
		return res
	}

	e.run(e.primary, doc, res.Record)
	if res.Record.Len() == 0 {
		e.run(e.fallback, doc, res.Record)
	}
	if res.Record.Len() == 0 {
		res.VisibleText = documentText(doc)
	}
	return res
}

// ExtractPage extracts from the first embedded frame when the fetcher captured
// one, since gated content is delivered there. If the frame yields nothing the
// top-level document is tried before giving up.
func (e *Extractor) ExtractPage(p *models.Page) Result {
	if p.FrameHTML == "" {
		if p.FrameCount > 0 {
			slog.Debug("extractor: page has frames but none was captured",
				"url", p.URL, "frames", p.FrameCount)
		}
		return e.Extract(p.HTML)
	}

	res := e.Extract(p.FrameHTML)
	res.Source = SourceFrame
	if res.Structured() || p.HTML == "" {
		return res
	}

	top := e.Extract(p.HTML)
	if top.Structured() {
		slog.Debug("extractor: frame had no fields, using top-level document", "url", p.URL)
		return top
	}
	return res
}

// run applies strategies in order, isolating unexpected faults (including
// panics) to the strategy that raised them.
func (e *Extractor) run(strategies []Strategy, doc *goquery.Document, rec *models.Record) {
	for _, s := range strategies {
		if err := apply(s, doc, rec); err != nil {
			slog.Warn("extractor: strategy failed", "strategy", s.Name(), "error", err)
		}
	}
}

func apply(s Strategy, doc *goquery.Document, rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Apply(doc, rec)
}
