package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
)

// Fetcher runs the fetch cycle for one URL at a time on a Tab.
//
// Cycle:
//
//  1. Origin         – scheme and host of the target
//  2. Visit origin   – the site initialises its session there
//  3. Origin settle  – bounded wait for the DOM to go quiet
//  4. Cookies        – inject the jar entries for the target host
//  5. Visit target   – now authenticated
//  6. Readiness      – wait for the readiness element, or FETCH_TIMEOUT
//  7. Render settle  – landmark or stable DOM, else a short grace pause
//  8. Capture        – markup of the document and its first frame
type Fetcher struct {
	tab Tab
	jar models.CookieJar
	cfg config.FetchConfig

	// pause is the fixed grace wait; tests replace it.
	pause func(ctx context.Context, d time.Duration)
}

// NewFetcher binds a Tab to the run's cookies and fetch settings.
func NewFetcher(tab Tab, jar models.CookieJar, cfg config.FetchConfig) *Fetcher {
	return &Fetcher{tab: tab, jar: jar, cfg: cfg, pause: sleepCtx}
}

// Fetch performs the full cycle for target. A readiness timeout yields a
// FETCH_TIMEOUT error; any other navigation failure yields NAVIGATION_FAILED.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*models.Page, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "invalid target URL "+target, err)
	}

	// ── 1-3. Origin visit ────────────────────────────────────────────
	origin := u.Scheme + "://" + u.Host
	if err := f.navigate(ctx, origin); err != nil {
		return nil, categorizeError(err, "navigation to origin failed")
	}
	f.settle(ctx, f.cfg.OriginSettle, "")

	// ── 4. Cookie injection ─────────────────────────────────────────
	if cookies := f.jar.ForHost(u.Hostname()); len(cookies) > 0 {
		n, err := Inject(ctx, f.tab, cookies)
		switch {
		case errors.Is(err, ErrCookieDomainMismatch):
			slog.Warn("cookies refused on origin", "origin", origin, "set", n, "error", err)
		case err != nil:
			return nil, categorizeError(err, "cookie injection failed")
		default:
			slog.Debug("cookies injected", "origin", origin, "count", n)
		}
	}

	// ── 5. Target visit ─────────────────────────────────────────────
	if err := f.navigate(ctx, target); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	// ── 6. Readiness ────────────────────────────────────────────────
	readyCtx, cancel := context.WithTimeout(ctx, f.cfg.ReadyTimeout)
	err = f.tab.WaitElement(readyCtx, f.cfg.ReadySelector)
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(readyCtx.Err(), context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout,
				"page did not become ready within "+f.cfg.ReadyTimeout.String(), err)
		}
		return nil, categorizeError(err, "readiness wait failed")
	}

	// ── 7. Render settle ────────────────────────────────────────────
	f.settle(ctx, f.cfg.RenderSettle, f.cfg.LandmarkSelector)

	// ── 8. Capture ──────────────────────────────────────────────────
	return f.capture(ctx, target)
}

// navigate bounds a single navigation by the readiness timeout.
func (f *Fetcher) navigate(ctx context.Context, to string) error {
	navCtx, cancel := context.WithTimeout(ctx, f.cfg.ReadyTimeout)
	defer cancel()
	return f.tab.Navigate(navCtx, to)
}

// settle returns as soon as landmark appears or the DOM holds still for the
// stable window, never later than limit. The grace pause runs only when
// neither signal arrived in time.
func (f *Fetcher) settle(ctx context.Context, limit time.Duration, landmark string) {
	if limit <= 0 {
		return
	}
	deadline := time.Now().Add(limit)

	if landmark != "" {
		lctx, cancel := context.WithTimeout(ctx, limit/2)
		err := f.tab.WaitElement(lctx, landmark)
		cancel()
		if err == nil {
			return
		}
	}

	sctx, cancel := context.WithDeadline(ctx, deadline)
	err := f.tab.WaitStable(sctx, f.cfg.StableWindow)
	cancel()
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	slog.Debug("render did not settle, applying grace pause", "limit", limit, "grace", f.cfg.Grace)
	f.pause(ctx, f.cfg.Grace)
}

func (f *Fetcher) capture(ctx context.Context, target string) (*models.Page, error) {
	markup, err := f.tab.HTML(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	page := &models.Page{
		URL:         target,
		FinalURL:    target,
		Title:       f.tab.Title(ctx),
		HTML:        markup,
		FetchMethod: "browser",
	}
	if cur, err := f.tab.CurrentURL(ctx); err == nil && cur != "" {
		page.FinalURL = cur
	}

	n, err := f.tab.FrameCount(ctx)
	if err != nil {
		slog.Debug("frame lookup failed, using top-level document", "url", target, "error", err)
		return page, nil
	}
	page.FrameCount = n
	if n == 0 {
		return page, nil
	}

	frameHTML, err := f.tab.FrameHTML(ctx, 0)
	if err != nil {
		slog.Warn("could not enter first frame, using top-level document",
			"url", target, "frames", n, "error", err)
		return page, nil
	}
	page.FrameHTML = frameHTML
	return page, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
