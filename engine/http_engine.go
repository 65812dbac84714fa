package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBody  = 10 << 20
)

// HTTPEngine fetches pages without a browser, over a Chrome-like TLS
// fingerprint. It suits directory pages that are rendered server side.
// Cookies from the run's jar are seeded once per host; cookies the site
// sets persist for the engine's lifetime.
type HTTPEngine struct {
	client  *http.Client
	cookies models.CookieJar
	cfg     config.FetchConfig
	seeded  map[string]bool
}

// chromeH1Spec is a Chrome ClientHello with ALPN forced to http/1.1.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine. proxy, when set, must be an
// http(s) proxy URL.
func NewHTTPEngine(cookies models.CookieJar, cfg config.FetchConfig, proxy string) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext:    dialChromeTLS,
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		cookies: cookies,
		cfg:     cfg,
		seeded:  make(map[string]bool),
	}
}

// WithTransport replaces the round tripper, keeping the cookie jar.
func (e *HTTPEngine) WithTransport(rt http.RoundTripper) *HTTPEngine {
	e.client.Transport = rt
	return e
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, target string) (*models.Page, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "invalid target URL "+target, err)
	}
	e.seed(u)

	body, final, err := e.get(ctx, target)
	if err != nil {
		return nil, err
	}

	page := &models.Page{
		URL:         target,
		FinalURL:    final.String(),
		Title:       extractTitle(body),
		HTML:        body,
		FetchMethod: e.Name(),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return page, nil
	}
	frames := doc.Find("iframe")
	page.FrameCount = frames.Length()
	src, ok := frames.First().Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return page, nil
	}
	ref, err := final.Parse(strings.TrimSpace(src))
	if err != nil {
		slog.Warn("bad frame src, using top-level document", "url", target, "src", src, "error", err)
		return page, nil
	}
	e.seed(ref)
	frameHTML, _, err := e.get(ctx, ref.String())
	if err != nil {
		slog.Warn("could not load first frame, using top-level document",
			"url", target, "frame", ref.String(), "error", err)
		return page, nil
	}
	page.FrameHTML = frameHTML
	return page, nil
}

// seed copies the configured cookies for u's host into the client jar once.
func (e *HTTPEngine) seed(u *url.URL) {
	host := u.Hostname()
	if e.seeded[host] {
		return
	}
	e.seeded[host] = true
	var hc []*http.Cookie
	for _, c := range e.cookies.ForHost(host) {
		hc = append(hc, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	if len(hc) > 0 {
		e.client.Jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, hc)
	}
}

// get performs one bounded GET and returns the body and the final URL.
func (e *HTTPEngine) get(ctx context.Context, target string) (string, *url.URL, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.ReadyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", nil, models.NewScrapeError(models.ErrCodeNavigation, "build request", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if e.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", e.cfg.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", nil, models.NewScrapeError(models.ErrCodeTimeout,
				"page did not respond within "+e.cfg.ReadyTimeout.String(), err)
		}
		return "", nil, models.NewScrapeError(models.ErrCodeNavigation, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", nil, models.NewScrapeError(models.ErrCodeNavigation, "read body", err)
	}
	if resp.StatusCode >= 400 {
		return "", nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("HTTP %d for %s", resp.StatusCode, target), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isHTMLContentType(ct) {
		return "", nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("non-html content-type %q for %s", ct, target), nil)
	}
	return string(raw), resp.Request.URL, nil
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle returns the text of the first <title> element.
func extractTitle(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if tn, _ := z.TagName(); string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
