package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Category = "hardware/processadores"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "empty base url",
			mutate:  func(cfg *Config) { cfg.BaseURL = "" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "invalid url format",
			mutate:  func(cfg *Config) { cfg.BaseURL = "http://" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "missing category",
			mutate:  func(cfg *Config) { cfg.Category = " / " },
			wantErr: ErrNoCategory,
		},
		{
			name:    "unknown mode",
			mutate:  func(cfg *Config) { cfg.Mode = "some_pages" },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "zero page size",
			mutate:  func(cfg *Config) { cfg.PageSize = 0 },
			wantErr: ErrInvalidPaging,
		},
		{
			name:    "zero initial page",
			mutate:  func(cfg *Config) { cfg.InitialPage = 0 },
			wantErr: ErrInvalidPaging,
		},
		{
			name:    "zero main pages",
			mutate:  func(cfg *Config) { cfg.MainPages = 0 },
			wantErr: ErrInvalidPaging,
		},
		{
			name:    "negative delay",
			mutate:  func(cfg *Config) { cfg.Delay = -time.Second },
			wantErr: ErrInvalidTiming,
		},
		{
			name:    "negative timeout",
			mutate:  func(cfg *Config) { cfg.Timeout = -1 * time.Second },
			wantErr: ErrInvalidTiming,
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 3 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: ErrInvalidRetry,
		},
		{
			name:    "empty user agent",
			mutate:  func(cfg *Config) { cfg.UserAgent = "" },
			wantErr: ErrNoUserAgent,
		},
		{
			name:    "empty selector",
			mutate:  func(cfg *Config) { cfg.EmptyListingSelector = " " },
			wantErr: ErrNoEmptySelector,
		},
		{
			name:    "zero batch size",
			mutate:  func(cfg *Config) { cfg.BatchSize = 0 },
			wantErr: ErrInvalidLimit,
		},
		{
			name:    "unknown format",
			mutate:  func(cfg *Config) { cfg.OutputFormat = "xml" },
			wantErr: ErrInvalidOutputFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestRandomUserAgentAllowsEmptyUserAgent(t *testing.T) {
	cfg := validConfig()
	cfg.UserAgent = ""
	cfg.RandomUserAgent = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("all_pages"); err != nil || m != ModeAllPages || m.Bounded() {
		t.Fatalf("all_pages = %q/%v", m, err)
	}
	if m, err := ParseMode("main_pages"); err != nil || m != ModeMainPages || !m.Bounded() {
		t.Fatalf("main_pages = %q/%v", m, err)
	}
	if _, err := ParseMode("everything"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestPageURL(t *testing.T) {
	cfg := validConfig()
	cfg.BaseURL = "https://www.kabum.com.br/"
	cfg.Category = "/hardware/processadores/"

	got := cfg.PageURL(3, 100)
	want := "https://www.kabum.com.br/hardware/processadores?facet_filters=&page_number=3&page_size=100&sort=most_searched"
	if got != want {
		t.Fatalf("PageURL = %q, want %q", got, want)
	}
}

func TestOutputFile(t *testing.T) {
	cfg := validConfig()
	cfg.OutputDir = "out"

	if got, want := cfg.OutputFile("json"), filepath.Join("out", "products_kabum_hardware_processadores_all.json"); got != want {
		t.Fatalf("OutputFile = %q, want %q", got, want)
	}

	cfg.Mode = ModeMainPages
	if got, want := cfg.OutputFile(".csv"), filepath.Join("out", "products_kabum_hardware_processadores_main.csv"); got != want {
		t.Fatalf("OutputFile = %q, want %q", got, want)
	}
}

func TestDumpFile(t *testing.T) {
	cfg := validConfig()
	cfg.DumpDir = "raw"

	if got, want := cfg.DumpFile(7), filepath.Join("raw", "kabum_hardware_processadores_page_7.html"); got != want {
		t.Fatalf("DumpFile = %q, want %q", got, want)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("KABUM_BASE_URL", "http://example.test")
	t.Setenv("KABUM_PAGE_SIZE", "20")
	t.Setenv("KABUM_DELAY", "250ms")
	t.Setenv("KABUM_FORMAT", "CSV")
	t.Setenv("KABUM_DUMP_DIR", "raw")

	cfg := validConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.BaseURL != "http://example.test" || cfg.PageSize != 20 || cfg.Delay != 250*time.Millisecond || cfg.OutputFormat != "csv" || cfg.DumpDir != "raw" {
		t.Fatalf("unexpected config after env: %+v", cfg)
	}
}

func TestApplyEnvInvalidInt(t *testing.T) {
	t.Setenv("KABUM_PAGE_SIZE", "lots")

	cfg := validConfig()
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), "KABUM_PAGE_SIZE") {
		t.Fatalf("expected KABUM_PAGE_SIZE error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("KABUM_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("KABUM_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if v, ok := EnvString("KABUM_TEST_DOTENV"); !ok || v != "from-file" {
		t.Fatalf("KABUM_TEST_DOTENV = %q/%v, want from-file", v, ok)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kabum.yaml")
	content := "page_size: 50\ndelay: 2s\noutput_format: dual\nempty_listing_selector: \"div.empty\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := validConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.PageSize != 50 || cfg.Delay != 2*time.Second || cfg.OutputFormat != "dual" || cfg.EmptyListingSelector != "div.empty" {
		t.Fatalf("unexpected config after file: %+v", cfg)
	}
	if cfg.Timeout != DefaultConfig().Timeout {
		t.Fatalf("keys absent from the file should keep defaults")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := validConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}
