package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/dirscrape/models"
)

// domStableDiff is the fraction of DOM change tolerated within the stable window.
const domStableDiff = 0.01

// rodTab adapts a single rod page to Tab. Every call binds ctx to the page
// so timeouts and cancellation reach the browser.
type rodTab struct {
	page *rod.Page
}

var _ Tab = (*rodTab)(nil)

func (t *rodTab) Navigate(ctx context.Context, url string) error {
	return t.page.Context(ctx).Navigate(url)
}

func (t *rodTab) CurrentURL(ctx context.Context) (string, error) {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (t *rodTab) SetCookie(ctx context.Context, c models.Cookie) error {
	_, err := proto.NetworkSetCookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: c.Domain,
		Path:   c.Path,
	}.Call(t.page.Context(ctx))
	return err
}

func (t *rodTab) WaitElement(ctx context.Context, selector string) error {
	_, err := t.page.Context(ctx).Element(selector)
	return err
}

func (t *rodTab) WaitStable(ctx context.Context, window time.Duration) error {
	return t.page.Context(ctx).WaitDOMStable(window, domStableDiff)
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	return t.page.Context(ctx).HTML()
}

func (t *rodTab) Title(ctx context.Context) string {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.Title
}

func (t *rodTab) FrameCount(ctx context.Context) (int, error) {
	els, err := t.page.Context(ctx).Elements("iframe")
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (t *rodTab) FrameHTML(ctx context.Context, index int) (string, error) {
	els, err := t.page.Context(ctx).Elements("iframe")
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(els) {
		return "", fmt.Errorf("frame %d out of range (%d frames)", index, len(els))
	}
	frame, err := els[index].Frame()
	if err != nil {
		return "", fmt.Errorf("enter frame %d: %w", index, err)
	}
	return frame.Context(ctx).HTML()
}
