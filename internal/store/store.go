// Package store keeps benchmark samples in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"
)

// Tables written by the sweeps.
const (
	KernelTable = "KERNEL_PERFORMANCE"
	CopyTable   = "COPY_PERFORMANCE"
)

// Table names cannot be bound as statement parameters, so only these are
// ever interpolated into SQL.
var knownTables = map[string]bool{
	KernelTable: true,
	CopyTable:   true,
}

// Row is one stored sample.
type Row struct {
	Size int64
	Name string
	Time int64
}

// SummaryRow aggregates the samples of one (size, name) pair.
type SummaryRow struct {
	Size    int64
	Name    string
	AvgTime float64
	Count   int64
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	logger.Debug("Database opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// EnsureTable creates table when it does not exist yet.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (SIZE INT NOT NULL, NAME TEXT NOT NULL, TIME INT NOT NULL)`, table))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// Insert stores one sample.
func (s *Store) Insert(ctx context.Context, table string, size int64, name string, ns int64) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (SIZE, NAME, TIME) VALUES (?, ?, ?)`, table), size, name, ns)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// All returns every row of table in insertion order.
func (s *Store) All(ctx context.Context, table string) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT SIZE, NAME, TIME FROM %s ORDER BY rowid`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Size, &r.Name, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary averages the samples per (size, name), ordered by name then size.
func (s *Store) Summary(ctx context.Context, table string) ([]SummaryRow, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT SIZE, NAME, avg(TIME), count(*) FROM %s GROUP BY SIZE, NAME ORDER BY NAME, SIZE`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", table, err)
	}
	defer rows.Close()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Size, &r.Name, &r.AvgTime, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
