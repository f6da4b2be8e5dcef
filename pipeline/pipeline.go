// Package pipeline batches scraped products into output writers.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/aluiziolira/go-scrape-kabum/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output. Nothing is visible at
// the target until Close succeeds, and Abort removes whatever the writer
// produced, committed or not.
type OutputWriter interface {
	Write(products []*models.Product) error
	Close() error
	Abort() error
	Validate() error
}

// Pipeline feeds products to a writer in arrival order, batchSize at a time,
// and counts the fields that fell back to their sentinels.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	batch     []*models.Product

	metrics metrics

	mu     sync.Mutex // guards batch/closed/err
	closed bool
	err    error
}

// NewPipeline builds a pipeline flushing every batchSize products.
func NewPipeline(writer OutputWriter, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		batch:     make([]*models.Product, 0, batchSize),
		metrics:   newMetrics(),
	}
}

// Process appends products, writing full batches as they fill.
func (p *Pipeline) Process(products ...*models.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	if p.closed {
		return ErrPipelineClosed
	}

	for _, product := range products {
		if product == nil {
			continue
		}
		p.metrics.record(parser.MissingFields(product))
		p.batch = append(p.batch, product)
		if len(p.batch) >= p.batchSize {
			if err := p.flushLocked(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close flushes the pending batch and commits the writer. After any write
// error the writer is aborted instead, leaving no output behind.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.err
	}
	p.closed = true

	if p.err == nil && p.flushLocked() == nil {
		if err := p.writer.Close(); err != nil {
			p.err = fmt.Errorf("close writer: %w", err)
		}
	}
	if p.err != nil {
		if err := p.writer.Abort(); err != nil {
			slog.Error("discard partial output", slog.Any("error", err))
		}
	}
	return p.err
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) flushLocked() error {
	if len(p.batch) == 0 {
		return nil
	}
	if err := p.writer.Write(p.batch); err != nil {
		p.err = fmt.Errorf("write batch: %w", err)
		return p.err
	}
	slog.Debug("pipeline batch written", slog.Int("products", len(p.batch)))
	p.batch = make([]*models.Product, 0, p.batchSize)
	return nil
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	missing   map[string]int
}

func newMetrics() metrics {
	return metrics{
		missing: make(map[string]int),
	}
}

func (m *metrics) record(missing []string) {
	m.mu.Lock()
	m.processed++
	for _, field := range missing {
		m.missing[field]++
	}
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyMissing := make(map[string]int, len(m.missing))
	for k, v := range m.missing {
		copyMissing[k] = v
	}

	return map[string]interface{}{
		"processed_products": m.processed,
		"missing_fields":     copyMissing,
	}
}
