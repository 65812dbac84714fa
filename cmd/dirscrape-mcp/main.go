package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/engine"
	"github.com/use-agent/dirscrape/extractor"
	"github.com/use-agent/dirscrape/models"
	"github.com/use-agent/dirscrape/scraper"
)

// toolResult is the JSON body returned for a structured page.
type toolResult struct {
	URL       string         `json:"url"`
	FinalURL  string         `json:"final_url,omitempty"`
	Title     string         `json:"title,omitempty"`
	Source    string         `json:"source"`
	Fields    *models.Record `json:"fields"`
	FieldKeys []string       `json:"field_keys"`
}

// sessionTool serialises every call onto one engine.
type sessionTool struct {
	mu      sync.Mutex
	eng     engine.Engine
	ex      *extractor.Extractor
	limiter *rate.Limiter
}

func main() {
	cfg := config.Load()
	initLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := cfg.LoadCookies(); err != nil {
		slog.Error("failed to load cookies", "file", cfg.CookiesFile, "error", err)
		os.Exit(2)
	}

	tool := &sessionTool{ex: extractor.Default()}
	if cfg.Run.RequestDelay > 0 {
		tool.limiter = rate.NewLimiter(rate.Every(cfg.Run.RequestDelay), 1)
	}

	if cfg.Fetch.Mode == "http" {
		tool.eng = engine.NewHTTPEngine(cfg.Cookies, cfg.Fetch, cfg.Browser.Proxy)
	} else {
		cfg.Browser.Headless = true
		sess, err := scraper.Open(cfg.Browser, cfg.Fetch)
		if err != nil {
			slog.Error("failed to open browser session", "error", err)
			os.Exit(1)
		}
		defer sess.Close()
		tool.eng = engine.NewRodEngine(scraper.NewFetcher(sess.Tab(), cfg.Cookies, cfg.Fetch).Fetch)
	}

	s := server.NewMCPServer(
		"dirscrape",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_directory_record",
		mcp.WithDescription("Open a member-directory profile page in an authenticated browser session and return its fields (company name, location, member id, enrollment dates, profile, address, contacts) as JSON. When no structured fields are found, returns the page's visible text instead."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute URL of the directory profile page"),
		),
	)
	s.AddTool(extractTool, tool.handle)

	slog.Info("dirscrape MCP server ready", "engine", tool.eng.Name(), "cookies", cfg.Cookies.Len())
	if err := server.ServeStdio(s); err != nil {
		slog.Error("MCP server error", "error", err)
	}
}

func (t *sessionTool) handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cancelled: %v", err)), nil
		}
	}

	page, err := t.eng.Fetch(ctx, url)
	if err != nil {
		slog.Warn("fetch failed", "url", url, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %v", models.CodeOf(err), err)), nil
	}

	res := t.ex.ExtractPage(page)
	if !res.Structured() {
		slog.Info("no structured data", "url", url)
		return mcp.NewToolResultText(fmt.Sprintf("[%s] no structured fields found on %s. Visible text:\n\n%s",
			models.ErrCodeNoStructuredData, url, res.VisibleText)), nil
	}

	body, err := json.MarshalIndent(toolResult{
		URL:       url,
		FinalURL:  page.FinalURL,
		Title:     page.Title,
		Source:    res.Source,
		Fields:    res.Record,
		FieldKeys: res.Record.Keys(),
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode record: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// initLogger writes to stderr; stdout carries the MCP protocol.
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
	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}
