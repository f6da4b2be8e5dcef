package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/aluiziolira/go-scrape-kabum/config"
)

// Fetcher retrieves the raw body of one listing page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchStats reports request and retry counts.
type FetchStats struct {
	Requests int
	Retries  int
}

type collyFetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	clock     Clock
	metrics   *Metrics
	referer   string

	requests int
	retries  int
}

func newCollyFetcher(cfg *config.Config, clock Clock, metrics *Metrics) (*collyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, errors.New("base url must include a host")
	}

	options := []colly.CollectorOption{
		colly.AllowedDomains(parsed.Hostname()),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	}
	if cfg.UserAgent != "" {
		options = append(options, colly.UserAgent(cfg.UserAgent))
	}
	collector := colly.NewCollector(options...)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &collyFetcher{
		cfg:       cfg,
		collector: collector,
		clock:     clock,
		metrics:   metrics,
		referer:   parsed.Scheme + "://" + parsed.Host + "/",
	}, nil
}

// Fetch issues the request, retrying transient failures with capped
// exponential backoff. Exhausted or permanent failures are network errors.
func (f *collyFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
		}

		body, status, err := f.do(pageURL)
		if err == nil {
			return body, nil
		}

		cause := classifyError(err, status)
		label := errorTypeLabel(cause)
		f.metrics.IncError(KindNetwork, label)

		if !retryable(cause) || attempt >= f.cfg.MaxRetries {
			slog.Debug("request failed",
				slog.String("url", pageURL),
				slog.Int("status", status),
				slog.String("category", label),
				slog.Int("attempts", attempt+1),
				slog.Any("error", err),
			)
			return nil, &Error{Kind: KindNetwork, URL: pageURL, Err: cause}
		}

		delay := f.backoff(attempt + 1)
		f.retries++
		f.metrics.IncRetries()
		slog.Warn("retrying request",
			slog.String("url", pageURL),
			slog.String("category", label),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
		)
		if err := f.clock.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
	}
}

func (f *collyFetcher) do(pageURL string) ([]byte, int, error) {
	c := f.collector.Clone()
	if f.cfg.RandomUserAgent {
		extensions.RandomUserAgent(c)
	}

	var (
		body   []byte
		status int
		start  time.Time
	)
	c.OnRequest(func(r *colly.Request) {
		start = f.clock.Now()
		f.requests++
		f.metrics.IncRequest("started")
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if f.cfg.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
		}
		r.Headers.Set("Referer", f.referer)
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		f.metrics.ObserveDuration(f.clock.Now().Sub(start))
		f.metrics.IncRequest("succeeded")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		f.metrics.IncRequest("failed")
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, status, err
	}
	if body == nil {
		return nil, status, fmt.Errorf("empty response from %s", pageURL)
	}
	return body, status, nil
}

func (f *collyFetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// Stats returns request and retry counts so far.
func (f *collyFetcher) Stats() FetchStats {
	return FetchStats{Requests: f.requests, Retries: f.retries}
}
