package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/dirscrape/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Run.URLColumn != "url" {
		t.Errorf("URLColumn = %q, want url", cfg.Run.URLColumn)
	}
	if cfg.Run.RequestDelay != 2*time.Second {
		t.Errorf("RequestDelay = %v, want 2s", cfg.Run.RequestDelay)
	}
	if cfg.Fetch.ReadyTimeout != 25*time.Second {
		t.Errorf("ReadyTimeout = %v, want 25s", cfg.Fetch.ReadyTimeout)
	}
	if cfg.Browser.ViewportWidth != 1920 || cfg.Browser.ViewportHeight != 1080 {
		t.Errorf("viewport = %dx%d, want 1920x1080", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DIRSCRAPE_URL_COLUMN", "profile_url")
	t.Setenv("DIRSCRAPE_REQUEST_DELAY", "750ms")
	t.Setenv("DIRSCRAPE_HEADERS", "X-Team=ops, broken ,Accept=text/html")

	cfg := Load()
	if cfg.Run.URLColumn != "profile_url" {
		t.Errorf("URLColumn = %q", cfg.Run.URLColumn)
	}
	if cfg.Run.RequestDelay != 750*time.Millisecond {
		t.Errorf("RequestDelay = %v", cfg.Run.RequestDelay)
	}
	if len(cfg.Fetch.Headers) != 2 || cfg.Fetch.Headers["X-Team"] != "ops" {
		t.Errorf("Headers = %v", cfg.Fetch.Headers)
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty column":   func(c *Config) { c.Run.URLColumn = " " },
		"negative delay": func(c *Config) { c.Run.RequestDelay = -time.Second },
		"unknown mode":   func(c *Config) { c.Fetch.Mode = "carrier-pigeon" },
		"zero timeout":   func(c *Config) { c.Fetch.ReadyTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := Load()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if models.CodeOf(err) != models.ErrCodeInvalidInput {
			t.Errorf("%s: code = %s", name, models.CodeOf(err))
		}
	}
}

func TestOutputOrInput(t *testing.T) {
	r := RunConfig{InputPath: "in.csv"}
	if got := r.OutputOrInput(); got != "in.csv" {
		t.Errorf("got %q, want in.csv", got)
	}
	r.OutputPath = "out.csv"
	if got := r.OutputOrInput(); got != "out.csv" {
		t.Errorf("got %q, want out.csv", got)
	}
}

func TestLoadCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	body := `[
		{"name": ".ASPXAUTH", "value": "abc", "domain": "www.example.com", "path": "/"},
		{"name": "wca", "value": "False", "domain": "www.example.com"},
		{"name": "", "value": "dropped", "domain": "www.example.com"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	cfg.CookiesFile = path
	if err := cfg.LoadCookies(); err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if cfg.Cookies.Len() != 2 {
		t.Fatalf("jar len = %d, want 2", cfg.Cookies.Len())
	}
	if got := cfg.Cookies.All()[1].Path; got != "/" {
		t.Errorf("default path = %q, want /", got)
	}
}

func TestParseCookies_Invalid(t *testing.T) {
	if _, err := ParseCookies([]byte(`{not json`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dirscrape.env")
	body := "DIRSCRAPE_URL_COLUMN=from_file\nDIRSCRAPE_GRACE=3s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DIRSCRAPE_ENV_FILE", path)
	t.Setenv("DIRSCRAPE_URL_COLUMN", "from_env")
	t.Cleanup(func() { os.Unsetenv("DIRSCRAPE_GRACE") })

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	cfg := Load()
	if cfg.Run.URLColumn != "from_env" {
		t.Errorf("URLColumn = %q, environment should win over the file", cfg.Run.URLColumn)
	}
	if cfg.Fetch.Grace != 3*time.Second {
		t.Errorf("Grace = %v, want 3s from file", cfg.Fetch.Grace)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	t.Setenv("DIRSCRAPE_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if err := LoadEnvFile(); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}
