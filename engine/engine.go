package engine

import (
	"context"

	"github.com/use-agent/dirscrape/models"
)

// Engine fetches one rendered directory page. Implementations are used by
// one goroutine at a time.
type Engine interface {
	// Name returns the engine identifier ("browser" or "http").
	Name() string

	// Fetch retrieves target and returns its markup. Errors are
	// *models.ScrapeError with FETCH_TIMEOUT or NAVIGATION_FAILED codes.
	Fetch(ctx context.Context, target string) (*models.Page, error)
}
