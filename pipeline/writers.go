package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/go-scrape-kabum/models"
)

const outputFileMode fs.FileMode = 0o644

var csvHeader = []string{
	"code", "name", "brand", "description", "price", "image_url",
	"rating", "rating_count", "warranty", "is_open_box", "prime_details",
}

func csvRecord(p *models.Product) []string {
	return []string{
		p.Code.String(),
		p.Name.String(),
		p.Brand.String(),
		p.Description.String(),
		p.Price.String(),
		p.ImageURL.String(),
		p.Rating.String(),
		p.RatingCount.String(),
		p.Warranty.String(),
		p.IsOpenBox.String(),
		p.PrimeDetails.String(),
	}
}

// CSVWriter writes one row per product under a header row. Rows go to a
// temporary file that replaces the target on Close.
type CSVWriter struct {
	out    *stagedFile
	writer *csv.Writer
	rows   int
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := newStagedFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(out.file)
	if err := writer.Write(csvHeader); err != nil {
		out.discard()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		out.discard()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		out:    out,
		writer: writer,
	}, nil
}

// Write appends products to the CSV output.
func (cw *CSVWriter) Write(products []*models.Product) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.out.finished() {
		return ErrPipelineClosed
	}
	for _, product := range products {
		if err := cw.writer.Write(csvRecord(product)); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes the rows and moves the file into place.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.out.finished() {
		return nil
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.out.discard()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.out.commit()
}

// Abort removes the CSV output, whether or not it was already committed.
func (cw *CSVWriter) Abort() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.out.discard()
}

// Validate ensures the file holds the header plus every written row.
func (cw *CSVWriter) Validate() error {
	f, err := os.Open(cw.out.path)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("read csv file: %w", err)
	}
	if len(records) == 0 {
		return errors.New("csv file is empty")
	}
	if got := len(records) - 1; got != cw.rows {
		return fmt.Errorf("csv file has %d rows, want %d", got, cw.rows)
	}
	return nil
}

// JSONWriter writes a single indented JSON array. Records go to a temporary
// file in the target directory that replaces the target on Close.
type JSONWriter struct {
	out     *stagedFile
	writer  *bufio.Writer
	buf     bytes.Buffer
	encoder *json.Encoder
	count   int
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := newStagedFile(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	jw := &JSONWriter{
		out:    out,
		writer: bufio.NewWriter(out.file),
	}
	jw.encoder = json.NewEncoder(&jw.buf)
	jw.encoder.SetEscapeHTML(false)
	jw.encoder.SetIndent("    ", "    ")
	return jw, nil
}

// Write appends products to the array.
func (jw *JSONWriter) Write(products []*models.Product) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.out.finished() {
		return ErrPipelineClosed
	}
	for _, product := range products {
		jw.buf.Reset()
		if err := jw.encoder.Encode(product); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		sep := ",\n    "
		if jw.count == 0 {
			sep = "[\n    "
		}
		if _, err := jw.writer.WriteString(sep); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		if _, err := jw.writer.Write(bytes.TrimRight(jw.buf.Bytes(), "\n")); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.count++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close terminates the array and moves the file into place.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.out.finished() {
		return nil
	}

	tail := "\n]\n"
	if jw.count == 0 {
		tail = "[]\n"
	}
	if _, err := jw.writer.WriteString(tail); err != nil {
		jw.out.discard()
		return fmt.Errorf("write json tail: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		jw.out.discard()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.out.commit()
}

// Abort removes the JSON output, whether or not it was already committed.
func (jw *JSONWriter) Abort() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.discard()
}

// Validate ensures the file is a JSON array holding every written product.
func (jw *JSONWriter) Validate() error {
	data, err := os.ReadFile(jw.out.path)
	if err != nil {
		return fmt.Errorf("read json file: %w", err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("json file is not an array: %w", err)
	}
	if len(records) != jw.count {
		return fmt.Errorf("json file has %d records, want %d", len(records), jw.count)
	}
	return nil
}

// stagedFile is an output file written under a temporary name and renamed
// into place on commit.
type stagedFile struct {
	path      string
	file      *os.File
	committed bool
	discarded bool
}

func newStagedFile(path string) (*stagedFile, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &stagedFile{path: path, file: f}, nil
}

func (sf *stagedFile) finished() bool {
	return sf.committed || sf.discarded
}

func (sf *stagedFile) commit() error {
	if sf.finished() {
		return nil
	}
	if err := sf.file.Chmod(outputFileMode); err != nil {
		sf.discard()
		return fmt.Errorf("set output permissions: %w", err)
	}
	if err := sf.file.Close(); err != nil {
		sf.discard()
		return fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(sf.file.Name(), sf.path); err != nil {
		os.Remove(sf.file.Name())
		sf.discarded = true
		return fmt.Errorf("move output file into place: %w", err)
	}
	sf.committed = true
	return nil
}

// discard removes the temporary file, or the target once committed.
func (sf *stagedFile) discard() error {
	if sf.discarded {
		return nil
	}
	sf.discarded = true
	if sf.committed {
		if err := os.Remove(sf.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove output file: %w", err)
		}
		return nil
	}
	sf.file.Close()
	if err := os.Remove(sf.file.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove temporary file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
