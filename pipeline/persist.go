package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-kabum/config"
	"github.com/aluiziolira/go-scrape-kabum/models"
)

// NewWriter builds the writer for cfg.OutputFormat and returns the files it
// will produce.
func NewWriter(cfg *config.Config, runID string) (OutputWriter, []string, error) {
	switch cfg.OutputFormat {
	case "json", "":
		path := cfg.OutputFile("json")
		w, err := NewJSONWriter(path)
		return w, []string{path}, err
	case "csv":
		path := cfg.OutputFile("csv")
		w, err := NewCSVWriter(path)
		return w, []string{path}, err
	case "dual":
		csvPath, jsonPath := cfg.OutputFile("csv"), cfg.OutputFile("json")
		w, err := NewDualWriter(csvPath, jsonPath)
		return w, []string{jsonPath, csvPath}, err
	case "sqlite":
		path := cfg.OutputFile("db")
		w, err := NewSQLiteWriter(path, runID)
		return w, []string{path}, err
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidOutputFormat, cfg.OutputFormat)
	}
}

// Persist writes a finished run's products and validates the output. It
// returns the written paths along with the pipeline counters. On any error
// the output is removed.
func Persist(cfg *config.Config, result *models.ScrapeResult) ([]string, map[string]interface{}, error) {
	writer, paths, err := NewWriter(cfg, result.RunID)
	if err != nil {
		return nil, nil, fmt.Errorf("create writer: %w", err)
	}

	p := NewPipeline(writer, cfg.BatchSize)
	for i := range result.Products {
		if err := p.Process(&result.Products[i]); err != nil {
			p.Close()
			return nil, nil, err
		}
	}
	if err := p.Close(); err != nil {
		return nil, nil, err
	}
	if err := writer.Validate(); err != nil {
		if abortErr := writer.Abort(); abortErr != nil {
			slog.Error("discard invalid output", slog.Any("error", abortErr))
		}
		return nil, nil, fmt.Errorf("validate output: %w", err)
	}

	metrics := p.GetMetrics()
	slog.Debug("output written", slog.Any("paths", paths), slog.Any("metrics", metrics))
	return paths, metrics, nil
}
