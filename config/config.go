package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Mode selects bounded or unbounded pagination.
type Mode string

const (
	// ModeAllPages paginates until the listing reports no more results.
	ModeAllPages Mode = "all_pages"
	// ModeMainPages stops after MainPages pages.
	ModeMainPages Mode = "main_pages"
)

// ParseMode validates a mode name from the command line.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.TrimSpace(s)) {
	case ModeAllPages:
		return ModeAllPages, nil
	case ModeMainPages:
		return ModeMainPages, nil
	default:
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidMode, s, ModeAllPages, ModeMainPages)
	}
}

// Bounded reports whether the mode stops after a fixed page count.
func (m Mode) Bounded() bool {
	return m == ModeMainPages
}

// Suffix is the short mode name used in output file names.
func (m Mode) Suffix() string {
	if m == ModeMainPages {
		return "main"
	}
	return "all"
}

// Config holds scraper configuration.
type Config struct {
	BaseURL              string        `yaml:"base_url"`
	Category             string        `yaml:"category"`
	Mode                 Mode          `yaml:"mode"`
	InitialPage          int           `yaml:"initial_page"`
	PageSize             int           `yaml:"page_size"`
	MainPages            int           `yaml:"main_pages"`
	Delay                time.Duration `yaml:"delay"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	RetryBackoff         time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax      time.Duration `yaml:"retry_backoff_max"`
	UserAgent            string        `yaml:"user_agent"`
	RandomUserAgent      bool          `yaml:"random_user_agent"`
	AcceptLanguage       string        `yaml:"accept_language"`
	EmptyListingSelector string        `yaml:"empty_listing_selector"`
	MaxBodySize          int           `yaml:"max_body_size"`
	RepeatWindow         int           `yaml:"repeat_window"`
	OutputDir            string        `yaml:"output_dir"`
	DumpDir              string        `yaml:"dump_dir"`      // raw listing pages, empty to disable
	OutputFormat         string        `yaml:"output_format"` // json, csv, dual, or sqlite
	BatchSize            int           `yaml:"batch_size"`
	MetricsAddr          string        `yaml:"metrics_addr"`
	Verbose              bool          `yaml:"verbose"`
}

// DefaultConfig returns conservative defaults for the Kabum listing pages.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:              "https://www.kabum.com.br",
		Mode:                 ModeAllPages,
		InitialPage:          1,
		PageSize:             100,
		MainPages:            2,
		Delay:                time.Second,
		Timeout:              10 * time.Second,
		MaxRetries:           2,
		RetryBackoff:         500 * time.Millisecond,
		RetryBackoffMax:      5 * time.Second,
		UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage:       "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		EmptyListingSelector: "#listingEmpty",
		MaxBodySize:          20 * 1024 * 1024,
		RepeatWindow:         10000,
		OutputDir:            ".",
		OutputFormat:         "json",
		BatchSize:            64,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL cannot be empty", ErrInvalidBaseURL)
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: base URL must include a host", ErrInvalidBaseURL)
	}
	if strings.Trim(c.Category, "/ ") == "" {
		return ErrNoCategory
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.InitialPage <= 0 {
		return fmt.Errorf("%w: initial page must be positive", ErrInvalidPaging)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive", ErrInvalidPaging)
	}
	if c.MainPages <= 0 {
		return fmt.Errorf("%w: main pages must be positive", ErrInvalidPaging)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay cannot be negative", ErrInvalidTiming)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidTiming)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidRetry)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("%w: retry backoff cannot be negative", ErrInvalidRetry)
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("%w: retry backoff max cannot be negative", ErrInvalidRetry)
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("%w: retry backoff (%s) cannot exceed retry backoff max (%s)", ErrInvalidRetry, c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" && !c.RandomUserAgent {
		return ErrNoUserAgent
	}
	if strings.TrimSpace(c.EmptyListingSelector) == "" {
		return ErrNoEmptySelector
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("%w: max body size cannot be negative", ErrInvalidLimit)
	}
	if c.RepeatWindow < 0 {
		return fmt.Errorf("%w: repeat window cannot be negative", ErrInvalidLimit)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidLimit)
	}
	switch c.OutputFormat {
	case "json", "csv", "dual", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, c.OutputFormat)
	}
	return nil
}

// PageURL builds the listing URL for one page of the configured category.
func (c *Config) PageURL(page, pageSize int) string {
	query := url.Values{}
	query.Set("page_number", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	query.Set("facet_filters", "")
	query.Set("sort", "most_searched")

	base := strings.TrimSuffix(c.BaseURL, "/")
	category := strings.Trim(c.Category, "/")
	return base + "/" + category + "?" + query.Encode()
}

// OutputFile names the output for this category and mode, e.g.
// products_kabum_hardware_processadores_all.json.
func (c *Config) OutputFile(ext string) string {
	category := strings.ReplaceAll(strings.Trim(c.Category, "/"), "/", "_")
	name := fmt.Sprintf("products_kabum_%s_%s.%s", category, c.Mode.Suffix(), strings.TrimPrefix(ext, "."))
	return filepath.Join(c.OutputDir, name)
}

// DumpFile names the raw HTML copy of one listing page under DumpDir.
func (c *Config) DumpFile(page int) string {
	category := strings.ReplaceAll(strings.Trim(c.Category, "/"), "/", "_")
	return filepath.Join(c.DumpDir, fmt.Sprintf("kabum_%s_page_%d.html", category, page))
}
