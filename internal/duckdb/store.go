// Package duckdb provides persistence for the methylation engine.
// Region tables are cached as gob files (fast, pure Go).
// Methylation calls are imported into DuckDB (queryable by position span).
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/nanoviz/methview/internal/bed"
)

// Store manages a DuckDB connection holding imported methylation calls.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS methylation_sites (
		chrom VARCHAR,
		pos BIGINT,
		code VARCHAR,
		valid_cov BIGINT,
		n_mod BIGINT
	)`)
	return err
}

// ImportRecords batch-inserts methylation calls using the Appender API.
func (s *Store) ImportRecords(recs []bed.Record) error {
	if len(recs) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "methylation_sites")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range recs {
		if err := appender.AppendRow(r.Chrom, r.Pos, r.Code, r.ValidCov, r.NMod); err != nil {
			return fmt.Errorf("append site: %w", err)
		}
	}

	return appender.Flush()
}

// ImportBED streams a bedMethyl file into the store in batches and returns
// the number of rows imported.
func (s *Store) ImportBED(path string) (int64, error) {
	p, err := bed.NewParser(path)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	const batchSize = 100_000
	batch := make([]bed.Record, 0, batchSize)
	var total int64

	for {
		rec, err := p.Next()
		if err != nil {
			return total, err
		}
		if rec == nil {
			break
		}
		batch = append(batch, *rec)
		if len(batch) == batchSize {
			if err := s.ImportRecords(batch); err != nil {
				return total, err
			}
			total += int64(len(batch))
			batch = batch[:0]
		}
	}

	if err := s.ImportRecords(batch); err != nil {
		return total, err
	}
	return total + int64(len(batch)), nil
}

// Sites returns calls whose chromosome label is one of the given labels and
// whose position falls within [start, end], ordered by position.
func (s *Store) Sites(labels []string, start, end int64) ([]bed.Record, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(labels)), ",")

	args := make([]any, 0, len(labels)+2)
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, start, end)

	rows, err := s.db.Query(
		`SELECT chrom, pos, code, valid_cov, n_mod FROM methylation_sites
		 WHERE chrom IN (`+placeholders+`) AND pos BETWEEN ? AND ?
		 ORDER BY pos`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var recs []bed.Record
	for rows.Next() {
		var r bed.Record
		if err := rows.Scan(&r.Chrom, &r.Pos, &r.Code, &r.ValidCov, &r.NMod); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return recs, nil
}

// CountSites returns the total number of imported calls.
func (s *Store) CountSites() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM methylation_sites").Scan(&n); err != nil {
		return 0, fmt.Errorf("count sites: %w", err)
	}
	return n, nil
}

// Clear removes all imported calls.
func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM methylation_sites")
	return err
}
