package scraper

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/dirscrape/config"
	"github.com/use-agent/dirscrape/models"
)

// fakeTab records every call and serves canned markup.
type fakeTab struct {
	mu      sync.Mutex
	calls   []string
	current string
	cookies []models.Cookie

	html       string
	frames     []string
	frameErr   error
	neverReady bool
	present    map[string]bool
	stableErr  error
	setErr     error
	navErr     map[string]error
}

func (t *fakeTab) record(s string) {
	t.mu.Lock()
	t.calls = append(t.calls, s)
	t.mu.Unlock()
}

func (t *fakeTab) Navigate(_ context.Context, u string) error {
	t.record("navigate " + u)
	if err := t.navErr[u]; err != nil {
		return err
	}
	t.current = u
	return nil
}

func (t *fakeTab) CurrentURL(context.Context) (string, error) { return t.current, nil }

func (t *fakeTab) SetCookie(_ context.Context, c models.Cookie) error {
	t.record("cookie " + c.Name)
	if t.setErr != nil {
		return t.setErr
	}
	t.cookies = append(t.cookies, c)
	return nil
}

func (t *fakeTab) WaitElement(ctx context.Context, sel string) error {
	t.record("wait " + sel)
	if t.present[sel] && !(t.neverReady && sel == "body") {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (t *fakeTab) WaitStable(context.Context, time.Duration) error {
	t.record("stable")
	return t.stableErr
}

func (t *fakeTab) HTML(context.Context) (string, error) { return t.html, nil }

func (t *fakeTab) Title(context.Context) string { return "Profile" }

func (t *fakeTab) FrameCount(context.Context) (int, error) { return len(t.frames), nil }

func (t *fakeTab) FrameHTML(_ context.Context, i int) (string, error) {
	if t.frameErr != nil {
		return "", t.frameErr
	}
	return t.frames[i], nil
}

func testFetchConfig() config.FetchConfig {
	return config.FetchConfig{
		OriginSettle:     50 * time.Millisecond,
		ReadyTimeout:     50 * time.Millisecond,
		ReadySelector:    "body",
		RenderSettle:     50 * time.Millisecond,
		LandmarkSelector: ".company_name",
		StableWindow:     10 * time.Millisecond,
		Grace:            time.Millisecond,
	}
}

func newTestFetcher(tab Tab, jar models.CookieJar) (*Fetcher, *int) {
	f := NewFetcher(tab, jar, testFetchConfig())
	pauses := 0
	f.pause = func(context.Context, time.Duration) { pauses++ }
	return f, &pauses
}

func TestFetch_OrderOfOperations(t *testing.T) {
	tab := &fakeTab{
		html:    "<html><body><div class=company_name>Acme</div></body></html>",
		present: map[string]bool{"body": true, ".company_name": true},
	}
	jar := models.NewCookieJar([]models.Cookie{
		{Name: "sid", Value: "1", Domain: "www.elitegln.com"},
		{Name: "other", Value: "2", Domain: "example.org"},
	})
	f, pauses := newTestFetcher(tab, jar)

	page, err := f.Fetch(context.Background(), "https://www.elitegln.com/profile/42?tab=1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := []string{
		"navigate https://www.elitegln.com",
		"stable",
		"cookie sid",
		"navigate https://www.elitegln.com/profile/42?tab=1",
		"wait body",
		"wait .company_name",
	}
	if strings.Join(tab.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls:\n got %v\nwant %v", tab.calls, want)
	}
	if *pauses != 0 {
		t.Errorf("grace pause used %d times, want 0", *pauses)
	}
	if page.HTML != tab.html || page.Title != "Profile" || page.FetchMethod != "browser" {
		t.Errorf("unexpected page: %+v", page)
	}
	if page.FrameCount != 0 || page.FrameHTML != "" {
		t.Errorf("expected no frame, got %d %q", page.FrameCount, page.FrameHTML)
	}
}

func TestFetch_ReadinessTimeout(t *testing.T) {
	tab := &fakeTab{neverReady: true, present: map[string]bool{}}
	f, _ := newTestFetcher(tab, models.CookieJar{})

	_, err := f.Fetch(context.Background(), "https://example.com/p/1")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := models.CodeOf(err); code != models.ErrCodeTimeout {
		t.Errorf("code = %q, want %q", code, models.ErrCodeTimeout)
	}
}

func TestFetch_NavigationFailure(t *testing.T) {
	tab := &fakeTab{
		present: map[string]bool{"body": true},
		navErr:  map[string]error{"https://example.com/p/1": errors.New("net::ERR_NAME_NOT_RESOLVED")},
	}
	f, _ := newTestFetcher(tab, models.CookieJar{})

	_, err := f.Fetch(context.Background(), "https://example.com/p/1")
	if code := models.CodeOf(err); code != models.ErrCodeNavigation {
		t.Errorf("code = %q, want %q", code, models.ErrCodeNavigation)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	f, _ := newTestFetcher(&fakeTab{}, models.CookieJar{})
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative"} {
		if _, err := f.Fetch(context.Background(), raw); models.CodeOf(err) != models.ErrCodeNavigation {
			t.Errorf("Fetch(%q) err = %v, want NAVIGATION_FAILED", raw, err)
		}
	}
}

func TestFetch_GraceOnlyWhenNothingSettles(t *testing.T) {
	tab := &fakeTab{
		html:      "<html><body>loading</body></html>",
		present:   map[string]bool{"body": true},
		stableErr: context.DeadlineExceeded,
	}
	f, pauses := newTestFetcher(tab, models.CookieJar{})

	if _, err := f.Fetch(context.Background(), "https://example.com/p/1"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Origin settle and render settle both failed to converge.
	if *pauses != 2 {
		t.Errorf("grace pauses = %d, want 2", *pauses)
	}
}

func TestFetch_PrefersFirstFrame(t *testing.T) {
	tab := &fakeTab{
		html:    "<html><body><iframe src=/inner></iframe></body></html>",
		frames:  []string{"<html><body>inner</body></html>", "<html><body>second</body></html>"},
		present: map[string]bool{"body": true},
	}
	f, _ := newTestFetcher(tab, models.CookieJar{})

	page, err := f.Fetch(context.Background(), "https://example.com/p/1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", page.FrameCount)
	}
	if page.ExtractionSource() != tab.frames[0] {
		t.Errorf("extraction source = %q, want first frame", page.ExtractionSource())
	}
}

func TestFetch_FrameEntryFailureFallsBack(t *testing.T) {
	tab := &fakeTab{
		html:     "<html><body>top</body></html>",
		frames:   []string{"x"},
		frameErr: errors.New("cross-origin"),
		present:  map[string]bool{"body": true},
	}
	f, _ := newTestFetcher(tab, models.CookieJar{})

	page, err := f.Fetch(context.Background(), "https://example.com/p/1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.FrameHTML != "" || page.ExtractionSource() != tab.html {
		t.Errorf("expected top-level fallback, got frame %q", page.FrameHTML)
	}
}

func TestInject_RefusesForeignDomain(t *testing.T) {
	tab := &fakeTab{current: "https://www.elitegln.com/"}
	cookies := []models.Cookie{
		{Name: "a", Value: "1", Domain: "www.elitegln.com", Path: "/"},
		{Name: "b", Value: "2", Domain: "evil.example", Path: "/"},
		{Name: "c", Value: "3", Domain: ".elitegln.com", Path: "/"},
	}

	n, err := Inject(context.Background(), tab, cookies)
	if n != 2 {
		t.Errorf("set = %d, want 2", n)
	}
	if !errors.Is(err, ErrCookieDomainMismatch) {
		t.Fatalf("err = %v, want ErrCookieDomainMismatch", err)
	}
	if !strings.Contains(err.Error(), "evil.example") {
		t.Errorf("error does not name the refused domain: %v", err)
	}
	for _, c := range tab.cookies {
		if c.Name == "b" {
			t.Error("foreign cookie was set")
		}
	}
}

func TestInject_ProtocolFailureAborts(t *testing.T) {
	tab := &fakeTab{current: "https://example.com/", setErr: errors.New("target closed")}
	_, err := Inject(context.Background(), tab, []models.Cookie{{Name: "a", Domain: "example.com"}})
	if err == nil || errors.Is(err, ErrCookieDomainMismatch) {
		t.Fatalf("err = %v, want protocol failure", err)
	}
}

func TestFetch_CookieProtocolFailureIsNavigationError(t *testing.T) {
	tab := &fakeTab{present: map[string]bool{"body": true}, setErr: errors.New("target closed")}
	jar := models.NewCookieJar([]models.Cookie{{Name: "sid", Value: "1", Domain: "example.com"}})
	f, _ := newTestFetcher(tab, jar)

	_, err := f.Fetch(context.Background(), "https://example.com/p/1")
	if models.CodeOf(err) != models.ErrCodeNavigation {
		t.Errorf("code = %q, want NAVIGATION_FAILED", models.CodeOf(err))
	}
}

func TestCategorizeError(t *testing.T) {
	if got := categorizeError(context.DeadlineExceeded, "x").Code; got != models.ErrCodeTimeout {
		t.Errorf("deadline -> %q", got)
	}
	if got := categorizeError(&url.Error{Op: "Get", Err: errors.New("boom")}, "x").Code; got != models.ErrCodeNavigation {
		t.Errorf("other -> %q", got)
	}
}
