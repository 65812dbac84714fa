package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
)

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func testEngine(jar models.CookieJar) (*HTTPEngine, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	cfg := config.FetchConfig{ReadyTimeout: time.Second, AcceptLanguage: "en-US,en;q=0.9"}
	return NewHTTPEngine(jar, cfg, "").WithTransport(transport), transport
}

func TestHTTPEngine_FetchWithCookiesAndFrame(t *testing.T) {
	jar := models.NewCookieJar([]models.Cookie{
		{Name: "sid", Value: "secret", Domain: "dir.example"},
		{Name: "stray", Value: "x", Domain: "other.example"},
	})
	e, transport := testEngine(jar)

	transport.RegisterResponder("GET", "https://dir.example/profile/1",
		func(req *http.Request) (*http.Response, error) {
			c, err := req.Cookie("sid")
			if err != nil || c.Value != "secret" {
				return httpmock.NewStringResponse(403, "members only"), nil
			}
			if _, err := req.Cookie("stray"); err == nil {
				t.Error("cookie for another domain was sent")
			}
			if got := req.Header.Get("Accept-Language"); got != "en-US,en;q=0.9" {
				t.Errorf("Accept-Language = %q", got)
			}
			return htmlResponder(`<html><head><title> Acme Profile </title></head>
				<body><iframe src="/frame/1"></iframe></body></html>`)(req)
		})
	transport.RegisterResponder("GET", "https://dir.example/frame/1",
		htmlResponder(`<html><body><div class="company_name"><span class="company">Acme</span></div></body></html>`))

	page, err := e.Fetch(context.Background(), "https://dir.example/profile/1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Acme Profile" {
		t.Errorf("Title = %q", page.Title)
	}
	if page.FrameCount != 1 || page.FrameHTML == "" {
		t.Fatalf("frame not captured: count=%d html=%q", page.FrameCount, page.FrameHTML)
	}
	if page.FetchMethod != "http" || page.FinalURL != "https://dir.example/profile/1" {
		t.Errorf("unexpected page meta: %+v", page)
	}
}

func TestHTTPEngine_ErrorStatusIsNavigationFailure(t *testing.T) {
	e, transport := testEngine(models.CookieJar{})
	transport.RegisterResponder("GET", "https://dir.example/gone", httpmock.NewStringResponder(404, "nope"))

	_, err := e.Fetch(context.Background(), "https://dir.example/gone")
	if models.CodeOf(err) != models.ErrCodeNavigation {
		t.Fatalf("code = %q, want NAVIGATION_FAILED (err=%v)", models.CodeOf(err), err)
	}
}

func TestHTTPEngine_TransportError(t *testing.T) {
	e, transport := testEngine(models.CookieJar{})
	transport.RegisterResponder("GET", "https://dir.example/p", httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := e.Fetch(context.Background(), "https://dir.example/p")
	if models.CodeOf(err) != models.ErrCodeNavigation {
		t.Fatalf("code = %q, want NAVIGATION_FAILED", models.CodeOf(err))
	}
}

func TestHTTPEngine_FrameFailureFallsBack(t *testing.T) {
	e, transport := testEngine(models.CookieJar{})
	transport.RegisterResponder("GET", "https://dir.example/p",
		htmlResponder(`<html><body><iframe src="https://cdn.example/embed"></iframe>top</body></html>`))
	transport.RegisterResponder("GET", "https://cdn.example/embed", httpmock.NewStringResponder(500, ""))

	page, err := e.Fetch(context.Background(), "https://dir.example/p")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.FrameCount != 1 || page.FrameHTML != "" {
		t.Errorf("expected frame counted but not captured, got %d %q", page.FrameCount, page.FrameHTML)
	}
	if page.ExtractionSource() != page.HTML {
		t.Error("extraction should fall back to the top-level document")
	}
}

func TestHTTPEngine_InvalidURL(t *testing.T) {
	e, _ := testEngine(models.CookieJar{})
	if _, err := e.Fetch(context.Background(), "mailto:x@example.com"); models.CodeOf(err) != models.ErrCodeNavigation {
		t.Fatalf("expected NAVIGATION_FAILED, got %v", err)
	}
}

func TestRodEngine_StampsFetchMethod(t *testing.T) {
	e := NewRodEngine(func(_ context.Context, target string) (*models.Page, error) {
		return &models.Page{URL: target, HTML: "<html></html>"}, nil
	})
	page, err := e.Fetch(context.Background(), "https://dir.example/p")
	if err != nil {
		t.Fatal(err)
	}
	if page.FetchMethod != "browser" {
		t.Errorf("FetchMethod = %q", page.FetchMethod)
	}
}

func TestRodEngine_NilCallback(t *testing.T) {
	if _, err := NewRodEngine(nil).Fetch(context.Background(), "https://x"); models.CodeOf(err) != models.ErrCodeInternal {
		t.Fatalf("expected INTERNAL error, got %v", err)
	}
}

func TestExtractTitle(t *testing.T) {
	cases := map[string]string{
		"<html><head><title>Hi</title></head></html>": "Hi",
		"<html><head></head></html>":                  "",
		"<title></title>":                             "",
	}
	for in, want := range cases {
		if got := extractTitle(in); got != want {
			t.Errorf("extractTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
