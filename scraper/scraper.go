package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-scrape-kabum/config"
	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/aluiziolira/go-scrape-kabum/parser"
)

// Scraper walks the listing pages of one category in order.
type Scraper struct {
	cfg     *config.Config
	clock   Clock
	fetcher Fetcher
	colly   *collyFetcher
	pacer   *Pacer
	guard   *repeatGuard
	Metrics *Metrics
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithClock replaces the wall clock used for pacing and backoff.
func WithClock(clock Clock) Option {
	return func(s *Scraper) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFetcher replaces the colly transport entirely.
func WithFetcher(f Fetcher) Option {
	return func(s *Scraper) {
		s.fetcher = f
	}
}

// WithTransport swaps the HTTP round tripper under the colly collector.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Scraper) {
		if s.colly != nil {
			s.colly.collector.WithTransport(rt)
		}
	}
}

// WithMetrics shares a metrics bundle across scrapers.
func WithMetrics(m *Metrics) Option {
	return func(s *Scraper) {
		s.Metrics = m
	}
}

// NewScraper builds a scraper configured from cfg.
func NewScraper(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Scraper{
		cfg:     cfg,
		clock:   realClock{},
		Metrics: NewMetrics(),
	}
	// The clock and metrics must be settled before the transport captures them.
	for _, opt := range opts {
		opt(s)
	}
	fetcher, err := newCollyFetcher(cfg, s.clock, s.Metrics)
	if err != nil {
		return nil, err
	}
	s.colly = fetcher
	// Second pass so WithTransport can reach the collector.
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetcher
	}
	s.pacer = NewPacer(cfg.Delay, s.clock)
	s.guard = newRepeatGuard(cfg.RepeatWindow)
	return s, nil
}

// Run paginates from the initial page until the listing is exhausted or the
// page limit is reached. Any error aborts the run and no products are
// returned.
func (s *Scraper) Run(ctx context.Context) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	logger := slog.With(slog.String("run_id", runID), slog.String("category", s.cfg.Category))

	cursor := models.Cursor{Page: s.cfg.InitialPage, PageSize: s.cfg.PageSize}
	result := &models.ScrapeResult{
		RunID:     runID,
		Category:  s.cfg.Category,
		Mode:      string(s.cfg.Mode),
		StartTime: s.clock.Now(),
	}
	var products []models.Product

	logger.Info("scrape started",
		slog.String("mode", string(s.cfg.Mode)),
		slog.Int("start_page", cursor.Page),
		slog.Int("page_size", cursor.PageSize),
	)

	for {
		if s.cfg.Mode.Bounded() && result.PageCount >= s.cfg.MainPages {
			result.StopReason = models.StopPageLimit
			break
		}

		page, stop, err := s.scrapePage(ctx, cursor)
		if err != nil {
			s.Metrics.IncError(KindOf(err), "page")
			logger.Error("scrape aborted",
				slog.Int("page", cursor.Page),
				slog.Int("discarded_products", len(products)),
				slog.Any("error", err),
			)
			return nil, err
		}
		if stop != "" {
			result.StopReason = stop
			logger.Info("no more results", slog.Int("page", cursor.Page), slog.String("reason", string(stop)))
			break
		}

		s.pacer.Done()
		products = append(products, page...)
		result.PageCount++
		s.Metrics.IncPage("scraped")
		s.Metrics.AddProducts(len(page))
		if s.guard.Observe(page) {
			s.Metrics.IncRepeatedPage()
			logger.Warn("page only repeats products already seen", slog.Int("page", cursor.Page))
		}
		logger.Info("page scraped",
			slog.Int("page", cursor.Page),
			slog.Int("products", len(page)),
			slog.Int("total", len(products)),
		)
		cursor.Advance()
	}

	result.Products = products
	result.Cursor = cursor
	result.EndTime = s.clock.Now()
	if s.colly != nil {
		stats := s.colly.Stats()
		result.RequestCount = stats.Requests
		result.RetryCount = stats.Retries
	}

	logger.Info("scrape finished",
		slog.Int("pages", result.PageCount),
		slog.Int("products", len(products)),
		slog.String("reason", string(result.StopReason)),
	)
	return result, nil
}

// scrapePage fetches and decodes one listing page. A non-empty stop reason
// means the page ended the run and contributed nothing.
func (s *Scraper) scrapePage(ctx context.Context, cursor models.Cursor) ([]models.Product, models.StopReason, error) {
	if _, err := s.pacer.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("wait for page %d: %w", cursor.Page, err)
	}

	pageURL := s.cfg.PageURL(cursor.Page, cursor.PageSize)
	slog.Debug("fetching page", slog.Int("page", cursor.Page), slog.String("url", pageURL))

	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var scrapeErr *Error
		if !errors.As(err, &scrapeErr) && ctx.Err() == nil {
			err = networkError(err)
		}
		return nil, "", annotate(err, cursor.Page, pageURL)
	}

	s.dumpPage(cursor.Page, body)

	doc, err := parseDocument(body)
	if err != nil {
		return nil, "", annotate(err, cursor.Page, pageURL)
	}

	if IsTerminalPage(doc, s.cfg.EmptyListingSelector) {
		s.Metrics.IncPage("terminal")
		return nil, models.StopTerminalMarker, nil
	}

	payload, err := ExtractCatalog(doc)
	if err != nil {
		return nil, "", annotate(err, cursor.Page, pageURL)
	}

	raws, err := payload.Products()
	if err != nil {
		return nil, "", annotate(parsingError(err), cursor.Page, pageURL)
	}
	if len(raws) == 0 {
		s.Metrics.IncPage("empty")
		return nil, models.StopEmptyPage, nil
	}

	products := make([]models.Product, 0, len(raws))
	for _, raw := range raws {
		products = append(products, parser.NormalizeProduct(raw))
	}
	return products, "", nil
}
