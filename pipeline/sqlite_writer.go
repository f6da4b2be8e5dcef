package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/aluiziolira/go-scrape-kabum/models"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	brand TEXT NOT NULL,
	description TEXT NOT NULL,
	price TEXT NOT NULL,
	price_available INTEGER NOT NULL,
	image_url TEXT NOT NULL,
	rating TEXT NOT NULL,
	rating_count TEXT NOT NULL,
	warranty TEXT NOT NULL,
	is_open_box TEXT NOT NULL,
	prime_details TEXT NOT NULL,
	record TEXT NOT NULL,
	scraped_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_products_code ON products(code);
`

const insertProduct = `
INSERT INTO products (
	run_id, position, code, name, brand, description, price, price_available,
	image_url, rating, rating_count, warranty, is_open_box, prime_details,
	record, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteWriter stores one run's products in a single transaction, committed
// on Close. Rows are keyed by run ID and position in the listing. Abort leaves
// the database as it was before the run.
type SQLiteWriter struct {
	path      string
	runID     string
	scrapedAt time.Time

	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt

	position  int
	created   bool
	committed bool
	aborted   bool
	mu        sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database at path.
func NewSQLiteWriter(path, runID string) (*SQLiteWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	fail := func(err error) (*SQLiteWriter, error) {
		db.Close()
		if created {
			removeDatabase(path)
		}
		return nil, err
	}
	if _, err := db.ExecContext(ctx, productsSchema); err != nil {
		return fail(fmt.Errorf("create tables: %w", err))
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("begin transaction: %w", err))
	}
	stmt, err := tx.PrepareContext(ctx, insertProduct)
	if err != nil {
		tx.Rollback()
		return fail(fmt.Errorf("prepare insert: %w", err))
	}

	return &SQLiteWriter{
		path:      path,
		runID:     runID,
		scrapedAt: time.Now().UTC(),
		db:        db,
		tx:        tx,
		stmt:      stmt,
		created:   created,
	}, nil
}

// Write inserts products inside the open transaction.
func (sw *SQLiteWriter) Write(products []*models.Product) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.tx == nil {
		return ErrPipelineClosed
	}
	for _, p := range products {
		record, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode product: %w", err)
		}
		_, err = sw.stmt.Exec(
			sw.runID, sw.position,
			p.Code.String(), p.Name.String(), p.Brand.String(), p.Description.String(),
			p.Price.String(), p.Price.Available(),
			p.ImageURL.String(), p.Rating.String(), p.RatingCount.String(), p.Warranty.String(),
			p.IsOpenBox.String(), p.PrimeDetails.String(),
			string(record), sw.scrapedAt,
		)
		if err != nil {
			return fmt.Errorf("insert product %d: %w", sw.position, err)
		}
		sw.position++
	}
	return nil
}

// Close commits the run and closes the database.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.tx == nil {
		return nil
	}
	tx := sw.tx
	sw.tx = nil

	sw.stmt.Close()
	if err := tx.Commit(); err != nil {
		sw.db.Close()
		sw.aborted = true
		if sw.created {
			removeDatabase(sw.path)
		}
		return fmt.Errorf("commit products: %w", err)
	}
	sw.committed = true
	return sw.db.Close()
}

// Abort rolls back the open transaction, or deletes the run's rows once
// committed. A database file created by this writer is removed.
func (sw *SQLiteWriter) Abort() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.aborted {
		return nil
	}
	sw.aborted = true

	var err error
	if sw.tx != nil {
		sw.stmt.Close()
		if rbErr := sw.tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback products: %w", rbErr)
		}
		sw.tx = nil
		sw.db.Close()
	} else if sw.committed && !sw.created {
		err = sw.deleteRun()
	}

	if sw.created {
		if rmErr := removeDatabase(sw.path); rmErr != nil {
			return errors.Join(err, rmErr)
		}
	}
	return err
}

func (sw *SQLiteWriter) deleteRun() error {
	db, err := sql.Open("sqlite", sw.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(context.Background(),
		"DELETE FROM products WHERE run_id = ?", sw.runID); err != nil {
		return fmt.Errorf("delete run %s: %w", sw.runID, err)
	}
	return nil
}

func removeDatabase(path string) error {
	var errs []error
	for _, name := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks that every written product was committed for this run.
func (sw *SQLiteWriter) Validate() error {
	db, err := sql.Open("sqlite", sw.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM products WHERE run_id = ?", sw.runID).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count != sw.position {
		return fmt.Errorf("database holds %d products for run %s, want %d", count, sw.runID, sw.position)
	}
	return nil
}
