package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/aluiziolira/go-scrape-kabum/models"
	"github.com/aluiziolira/go-scrape-kabum/parser"
)

type mockWriter struct {
	mu       sync.Mutex
	batches  [][]*models.Product
	closed   bool
	aborted  bool
	writeErr error
	closeErr error
}

func (mw *mockWriter) Write(products []*models.Product) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	batch := make([]*models.Product, len(products))
	copy(batch, products)
	mw.batches = append(mw.batches, batch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.closeErr != nil {
		return mw.closeErr
	}
	mw.closed = true
	return nil
}

func (mw *mockWriter) Abort() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.aborted = true
	return nil
}

func (mw *mockWriter) Validate() error {
	return nil
}

func (mw *mockWriter) written() []*models.Product {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.Product
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, len(mw.batches))
	for i, batch := range mw.batches {
		sizes[i] = len(batch)
	}
	return sizes
}

func product(code string) *models.Product {
	p := parser.NormalizeProduct(models.RawProduct{"code": code, "name": "Produto " + code, "price": 10})
	return &p
}

func TestPipelineKeepsOrderAndDuplicates(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, 2)

	input := []*models.Product{product("a"), product("b"), product("a"), nil, product("c")}
	if err := p.Process(input...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	written := writer.written()
	want := []string{"a", "b", "a", "c"}
	if len(written) != len(want) {
		t.Fatalf("written=%d, want %d", len(written), len(want))
	}
	for i, code := range want {
		if got := written[i].Code.String(); got != code {
			t.Fatalf("written[%d] = %s, want %s", i, got, code)
		}
	}
	if !writer.closed || writer.aborted {
		t.Fatalf("writer should be committed, closed=%v aborted=%v", writer.closed, writer.aborted)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, 3)

	for i := 0; i < 7; i++ {
		if err := p.Process(product("x")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if sizes := writer.batchSizes(); len(sizes) != 2 {
		t.Fatalf("batches before close = %v, want two full batches", sizes)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 3 || sizes[0] != 3 || sizes[1] != 3 || sizes[2] != 1 {
		t.Fatalf("batch sizes = %v, want [3 3 1]", sizes)
	}
}

func TestPipelineMissingFieldMetrics(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(writer, 10)

	sparse := parser.NormalizeProduct(models.RawProduct{"code": "only-code"})
	if err := p.Process(product("full"), &sparse); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	metrics := p.GetMetrics()
	if processed := metrics["processed_products"].(int64); processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}
	missing := metrics["missing_fields"].(map[string]int)
	if missing["name"] != 1 || missing["price"] != 1 || missing["code"] != 0 {
		t.Fatalf("missing fields = %v", missing)
	}
	if missing["brand"] != 2 {
		t.Fatalf("brand missing = %d, want 2", missing["brand"])
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(&mockWriter{}, 1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(product("late")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineWriteErrorIsSticky(t *testing.T) {
	boom := errors.New("disk full")
	writer := &mockWriter{writeErr: boom}
	p := NewPipeline(writer, 1)

	if err := p.Process(product("a")); !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if err := p.Process(product("b")); !errors.Is(err, boom) {
		t.Fatalf("later calls should keep failing, got %v", err)
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("close should report the write error, got %v", err)
	}
	if writer.closed || !writer.aborted {
		t.Fatalf("a failed write must abort instead of commit, closed=%v aborted=%v", writer.closed, writer.aborted)
	}
}

func TestPipelineAbortsWhenCommitFails(t *testing.T) {
	boom := errors.New("rename failed")
	writer := &mockWriter{closeErr: boom}
	p := NewPipeline(writer, 10)

	if err := p.Process(product("a")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected close error, got %v", err)
	}
	if !writer.aborted {
		t.Fatalf("writer should be aborted after a failed commit")
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("second close should repeat the error, got %v", err)
	}
}
