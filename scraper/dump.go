package scraper

import (
	"fmt"
	"log/slog"
	"os"
)

// dumpPage keeps the raw body of a fetched page for later inspection. Dump
// failures are logged and never stop the run.
func (s *Scraper) dumpPage(page int, body []byte) {
	if s.cfg.DumpDir == "" {
		return
	}
	path := s.cfg.DumpFile(page)
	if err := writeDump(s.cfg.DumpDir, path, body); err != nil {
		slog.Warn("failed to save raw page", slog.Int("page", page), slog.Any("error", err))
		return
	}
	slog.Debug("raw page saved", slog.Int("page", page), slog.String("path", path))
}

func writeDump(dir, path string, body []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
