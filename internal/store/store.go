// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists publication, author and affiliation rows in
// SQLite. Tables are created from the first batch that reaches them, grow
// when later batches carry new attributes, and deduplicate across files
// through insert triggers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/internal/schema"
	"github.com/pdiddy/medline2sql/pkg/types"
)

const defaultPath = "medline.db"

// Store manages the destination SQLite database.
type Store struct {
	db     *sql.DB
	schema *schema.Manager
	logger *zap.Logger
}

// Open opens or creates the database at cfg.Path, creates the bookkeeping
// tables and loads the columns of every existing table.
func Open(ctx context.Context, cfg types.StoreConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		schema: schema.NewManager(db, logger),
		logger: logger.With(zap.String("db", path)),
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.schema.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ingested_files (
			file_name TEXT PRIMARY KEY,
			mod_time TEXT NOT NULL,
			run_id TEXT NOT NULL,
			records INTEGER NOT NULL,
			finished_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Define creates table with a fixed column layout if it does not exist.
func (s *Store) Define(ctx context.Context, table string, cols []schema.Column) error {
	return s.schema.Ensure(ctx, table, cols, specFor(table).options())
}

// Truncate deletes every row of table, keeping its layout.
func (s *Store) Truncate(ctx context.Context, table string) error {
	if !s.schema.Registry().Has(table) {
		return fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+schema.Quote(table)); err != nil {
		return fmt.Errorf("truncating %s: %w", table, err)
	}
	return nil
}

// AppendResult reports the fate of each appended row.
type AppendResult struct {
	Outcomes []types.DuplicateOutcome

	// Extended lists columns added to the table during the append.
	Extended []string
}

// Count returns how many rows took outcome o.
func (r AppendResult) Count(o types.DuplicateOutcome) int {
	n := 0
	for _, got := range r.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

// Append inserts rows into table in one transaction. The table is created
// from the rows' inferred columns on first sight. When the insert names a
// column the table lacks, the transaction is rolled back, every missing
// column is added as TEXT and the insert is retried once.
func (s *Store) Append(ctx context.Context, table string, rows []types.Row) (AppendResult, error) {
	if len(rows) == 0 {
		return AppendResult{}, nil
	}
	spec := specFor(table)

	if err := s.schema.Ensure(ctx, table, schema.Infer(rows, spec.key), spec.options()); err != nil {
		return AppendResult{}, err
	}

	outcomes, err := s.insert(ctx, table, rows, spec)
	col, missing := schema.MissingColumn(err)
	if !missing {
		return AppendResult{Outcomes: outcomes}, err
	}

	s.logger.Debug("table lacks column, extending",
		zap.String("table", table), zap.String("column", col))
	added, err := s.schema.Extend(ctx, table, columnNames(rows))
	if err != nil {
		return AppendResult{}, err
	}

	outcomes, err = s.insert(ctx, table, rows, spec)
	if err != nil {
		return AppendResult{Extended: added}, fmt.Errorf("retrying insert into %s: %w", table, err)
	}
	return AppendResult{Outcomes: outcomes, Extended: added}, nil
}

func (s *Store) insert(ctx context.Context, table string, rows []types.Row, spec tableSpec) ([]types.DuplicateOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := make(map[string]*sql.Stmt)
	defer func() {
		for _, stmt := range statements {
			stmt.Close()
		}
	}()

	outcomes := make([]types.DuplicateOutcome, len(rows))
	for i, row := range rows {
		cols, args := bindRow(row)
		signature := strings.Join(cols, "\x00")

		stmt, ok := statements[signature]
		if !ok {
			quoted := make([]string, len(cols))
			for j, c := range cols {
				quoted[j] = schema.Quote(c)
			}
			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				schema.Quote(table), strings.Join(quoted, ", "),
				strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
			stmt, err = tx.PrepareContext(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("preparing insert into %s: %w", table, err)
			}
			statements[signature] = stmt
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, fmt.Errorf("inserting into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("inserting into %s: %w", table, err)
		}
		if n == 0 {
			outcomes[i] = spec.ignored
		} else {
			outcomes[i] = types.Inserted
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing %s: %w", table, err)
	}
	return outcomes, nil
}

// bindRow returns the row's sanitized column names and driver values.
// Names equal up to case keep the first in sorted order.
func bindRow(row types.Row) ([]string, []any) {
	seen := make(map[string]bool, len(row))
	cols := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, attr := range row.Columns() {
		name := schema.Sanitize(attr)
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		cols = append(cols, name)
		args = append(args, driverValue(row[attr]))
	}
	return cols, args
}

func driverValue(v any) any {
	switch v := v.(type) {
	case []string:
		return strings.Join(v, ", ")
	case []int64:
		return types.JoinIDs(v, ", ")
	default:
		return v
	}
}

func columnNames(rows []types.Row) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for attr := range row {
			if !seen[attr] {
				seen[attr] = true
				names = append(names, attr)
			}
		}
	}
	sort.Strings(names)
	return names
}
