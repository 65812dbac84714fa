package scraper

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
	"github.com/ysmood/gson"
)

// Session owns one browser process and the single tab every fetch reuses.
// Cookies set during one fetch persist for the rest of the session.
// A Session is not safe for concurrent fetches.
type Session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	tab      *rodTab

	closeOnce sync.Once
	closeErr  error
}

// Open launches the browser, opens the tab and installs stealth, headers
// and resource blocking on it.
func Open(browserCfg config.BrowserConfig, fetchCfg config.FetchConfig) (*Session, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", browserCfg.ViewportWidth, browserCfg.ViewportHeight))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", browserCfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}

	s := &Session{
		launcher: l,
		browser:  browser,
		page:     page,
		tab:      &rodTab{page: page},
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             browserCfg.ViewportWidth,
		Height:            browserCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("viewport override failed, keeping window size", "error", err)
	}

	if browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if headers := requestHeaders(fetchCfg); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}).Call(page); err != nil {
			slog.Warn("extra headers not applied", "error", err)
		}
	}

	s.router = setupHijack(page, browserCfg.BlockedResourceTypes)
	return s, nil
}

// Tab returns the session's browser tab.
func (s *Session) Tab() Tab { return s.tab }

// Close stops interception, closes the tab and kills the browser process.
// Only the first call does anything; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		slog.Info("closing browser session")
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				slog.Debug("hijack router stop", "error", err)
			}
		}
		if err := s.page.Close(); err != nil {
			slog.Debug("tab close", "error", err)
		}
		s.closeErr = s.browser.Close()
		s.launcher.Cleanup()
	})
	return s.closeErr
}

// requestHeaders merges Accept-Language with configured extra headers.
func requestHeaders(cfg config.FetchConfig) proto.NetworkHeaders {
	h := make(proto.NetworkHeaders, len(cfg.Headers)+1)
	if cfg.AcceptLanguage != "" {
		h["Accept-Language"] = gson.New(cfg.AcceptLanguage)
	}
	for k, v := range cfg.Headers {
		h[k] = gson.New(v)
	}
	return h
}
