package engine

import (
	"context"
	"fmt"

	"github.com/use-agent/dirscrape/models"
)

// FetchFunc is the callback that runs the browser fetch cycle. It is
// injected from main.go so engine/ does not import scraper/.
type FetchFunc func(ctx context.Context, target string) (*models.Page, error)

// RodEngine delegates to a browser session's fetcher.
type RodEngine struct {
	fetchFunc FetchFunc
}

// NewRodEngine wraps fetchFunc, typically (*scraper.Fetcher).Fetch.
func NewRodEngine(fetchFunc FetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "browser" }

func (e *RodEngine) Fetch(ctx context.Context, target string) (*models.Page, error) {
	if e.fetchFunc == nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal,
			fmt.Sprintf("%s: fetchFunc not configured", e.Name()), nil)
	}
	page, err := e.fetchFunc(ctx, target)
	if err != nil {
		return nil, err
	}
	page.FetchMethod = e.Name()
	return page, nil
}
