package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-kabum/models"
)

// DualWriter saves the same products as JSON and CSV. The two files succeed or
// fail together: a failure on either side discards both.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	failed     error
	mu         sync.Mutex
}

// NewDualWriter creates a writer producing both csvFilename and jsonFilename.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Abort()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Write appends products to both outputs. Once one side fails both are
// discarded and every later call returns the same error.
func (dw *DualWriter) Write(products []*models.Product) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.failed != nil {
		return dw.failed
	}
	if err := dw.csvWriter.Write(products); err != nil {
		return dw.failLocked(fmt.Errorf("CSV write failed: %w", err))
	}
	if err := dw.jsonWriter.Write(products); err != nil {
		return dw.failLocked(fmt.Errorf("JSON write failed: %w", err))
	}
	return nil
}

// Close commits the CSV file and then the JSON file. If the second commit
// fails the first is rolled back.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.failed != nil {
		return dw.failed
	}
	if err := dw.csvWriter.Close(); err != nil {
		return dw.failLocked(fmt.Errorf("CSV close failed: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		return dw.failLocked(fmt.Errorf("JSON close failed: %w", err))
	}
	return nil
}

// Abort removes both outputs.
func (dw *DualWriter) Abort() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.abortLocked()
}

func (dw *DualWriter) failLocked(err error) error {
	dw.failed = err
	if abortErr := dw.abortLocked(); abortErr != nil {
		return errors.Join(err, abortErr)
	}
	return err
}

func (dw *DualWriter) abortLocked() error {
	var errs []error
	if err := dw.csvWriter.Abort(); err != nil {
		errs = append(errs, fmt.Errorf("CSV abort failed: %w", err))
	}
	if err := dw.jsonWriter.Abort(); err != nil {
		errs = append(errs, fmt.Errorf("JSON abort failed: %w", err))
	}
	return errors.Join(errs...)
}

// Validate validates both output files
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation failed: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSON validation failed: %w", err))
	}
	return errors.Join(errs...)
}
