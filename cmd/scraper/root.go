package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-kabum/config"
	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/aluiziolira/go-scrape-kabum/pipeline"
	"github.com/aluiziolira/go-scrape-kabum/scraper"
)

// errReported marks a failure that has already been logged with its prefix.
var errReported = errors.New("scrape failed")

type rootOptions struct {
	configPath      string
	pageSize        int
	startPage       int
	mainPages       int
	delay           time.Duration
	timeout         time.Duration
	maxRetries      int
	outputDir       string
	dumpDir         string
	format          string
	metricsAddr     string
	randomUserAgent bool
	verbose         bool
}

// NewRootCmd creates the kabum-scraper command.
func NewRootCmd() *cobra.Command {
	return newRootCmd()
}

func newRootCmd(scraperOpts ...scraper.Option) *cobra.Command {
	opts := &rootOptions{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "kabum-scraper <all_pages|main_pages> <category>",
		Short: "Scrape product listings from a Kabum category",
		Long: `kabum-scraper walks the listing pages of one Kabum category and saves
every product it finds.

all_pages paginates until the site reports no more results; main_pages stops
after --main-pages pages. The category is the path slug, for example
hardware/processadores.`,
		Example: `  kabum-scraper main_pages hardware/processadores
  kabum-scraper all_pages hardware/placa-de-video-vga --format dual --delay 2s`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, args, opts, scraperOpts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.IntVar(&opts.pageSize, "page-size", defaults.PageSize, "Products requested per listing page")
	flags.IntVar(&opts.startPage, "start-page", defaults.InitialPage, "First listing page to request")
	flags.IntVar(&opts.mainPages, "main-pages", defaults.MainPages, "Pages scraped in main_pages mode")
	flags.DurationVar(&opts.delay, "delay", defaults.Delay, "Minimum time between page requests")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	flags.IntVar(&opts.maxRetries, "max-retries", defaults.MaxRetries, "Retries for transient network failures")
	flags.StringVar(&opts.outputDir, "output-dir", defaults.OutputDir, "Directory for output files")
	flags.StringVar(&opts.dumpDir, "dump-dir", "", "Save each fetched listing page as raw HTML in this directory")
	flags.StringVar(&opts.format, "format", defaults.OutputFormat, "Output format: json, csv, dual, or sqlite")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVar(&opts.randomUserAgent, "random-user-agent", false, "Send a random browser user agent per request")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runScrape(cmd *cobra.Command, args []string, opts *rootOptions, scraperOpts []scraper.Option) error {
	cfg, err := loadConfig(cmd, args, opts)
	if err != nil {
		return err
	}

	logger, level := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scraper.NewScraper(cfg, scraperOpts...)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, s.Metrics)
		defer shutdown()
	}

	slog.Info("starting scrape",
		slog.String("mode", string(cfg.Mode)),
		slog.String("category", cfg.Category),
		slog.String("base_url", cfg.BaseURL),
	)

	result, err := s.Run(ctx)
	if err != nil {
		return reportFailure(err)
	}

	if len(result.Products) == 0 {
		slog.Warn("no products were scraped, nothing written",
			slog.String("category", cfg.Category),
			slog.String("reason", string(result.StopReason)),
		)
		return nil
	}

	paths, metrics, err := pipeline.Persist(cfg, result)
	if err != nil {
		return reportFailure(fmt.Errorf("save products: %w", err))
	}

	slog.Info("products saved",
		slog.Int("products", len(result.Products)),
		slog.String("output", strings.Join(paths, ", ")),
	)
	printSummary(cmd.OutOrStdout(), result, paths, metrics)
	return nil
}

// loadConfig layers defaults, the YAML file, the environment and finally the
// flags the user actually set.
func loadConfig(cmd *cobra.Command, args []string, opts *rootOptions) (*config.Config, error) {
	mode, err := config.ParseMode(args[0])
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		if err := cfg.LoadFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("page-size") {
		cfg.PageSize = opts.pageSize
	}
	if flags.Changed("start-page") {
		cfg.InitialPage = opts.startPage
	}
	if flags.Changed("main-pages") {
		cfg.MainPages = opts.mainPages
	}
	if flags.Changed("delay") {
		cfg.Delay = opts.delay
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = opts.maxRetries
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("dump-dir") {
		cfg.DumpDir = opts.dumpDir
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(opts.format)
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("random-user-agent") {
		cfg.RandomUserAgent = opts.randomUserAgent
	}
	if opts.verbose {
		cfg.Verbose = true
	}

	cfg.Mode = mode
	cfg.Category = strings.Trim(args[1], "/ ")
	return cfg, nil
}

// reportFailure logs err once under the prefix for its kind.
func reportFailure(err error) error {
	slog.Error(fmt.Sprintf("%s: %v", failurePrefix(err), err))
	return errReported
}

func failurePrefix(err error) string {
	if errors.Is(err, context.Canceled) {
		return "[INTERRUPTED]"
	}
	switch scraper.KindOf(err) {
	case scraper.KindNetwork:
		return "[NETWORK/HTTP ERROR]"
	case scraper.KindStructureNotFound:
		return "[SITE STRUCTURE ERROR]"
	case scraper.KindParsing:
		return "[DATA PARSING ERROR]"
	default:
		return "[UNEXPECTED ERROR]"
	}
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(w io.Writer, result *models.ScrapeResult, paths []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Scrape complete")

	duration := result.EndTime.Sub(result.StartTime)
	productsPerSec := 0.0
	if duration.Seconds() > 0 {
		productsPerSec = float64(len(result.Products)) / duration.Seconds()
	}

	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Category:      %s (%s)\n", result.Category, result.Mode)
	fmt.Fprintf(w, "  Products:      %d\n", len(result.Products))
	fmt.Fprintf(w, "  Pages:         %d\n", result.PageCount)
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	fmt.Fprintf(w, "  Stopped by:    %s\n", result.StopReason)
	if missing, ok := metrics["missing_fields"].(map[string]int); ok && len(missing) > 0 {
		fmt.Fprintf(w, "  Missing:       %v\n", missing)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Products/sec:  %.2f\n", productsPerSec)
	fmt.Fprintf(w, "  Output:        %s\n", strings.Join(paths, ", "))
	fmt.Fprintln(w, separator)
}
