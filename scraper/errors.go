package scraper

import (
	"context"
	"errors"

	"github.com/use-agent/dirscrape/models"
)

// ErrCookieDomainMismatch marks a cookie refused because the tab is not on
// the cookie's domain. The caller must navigate there first.
var ErrCookieDomainMismatch = errors.New("cookie domain does not match current page")

// categorizeError wraps raw errors into typed ScrapeErrors so the pipeline
// can tell timeouts from other navigation faults.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeNavigation, "fetch canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
