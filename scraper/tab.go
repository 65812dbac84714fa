package scraper

import (
	"context"
	"time"

	"github.com/use-agent/dirscrape/models"
)

// Tab is the browser capability set one fetch cycle needs. The rod-backed
// implementation lives in rod_tab.go; tests drive the cycle with a fake.
type Tab interface {
	// Navigate loads url in the tab.
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the URL of the loaded document.
	CurrentURL(ctx context.Context) (string, error)

	// SetCookie adds one cookie to the browser's jar.
	SetCookie(ctx context.Context, c models.Cookie) error

	// WaitElement blocks until selector matches or ctx ends.
	WaitElement(ctx context.Context, selector string) error

	// WaitStable blocks until the DOM stays unchanged for window or ctx ends.
	WaitStable(ctx context.Context, window time.Duration) error

	// HTML returns the rendered markup of the top-level document.
	HTML(ctx context.Context) (string, error)

	// Title returns the document title, or "".
	Title(ctx context.Context) string

	// FrameCount returns the number of embedded frames.
	FrameCount(ctx context.Context) (int, error)

	// FrameHTML switches into frame index and returns its rendered markup.
	FrameHTML(ctx context.Context, index int) (string, error)
}
