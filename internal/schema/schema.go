// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema derives table layouts from loosely-typed rows and keeps
// the destination tables in step with them. Tables are created on first
// sight and only ever grow.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/pkg/types"
)

// Kind is a SQLite column type.
type Kind string

const (
	Integer  Kind = "INTEGER"
	Real     Kind = "REAL"
	DateTime Kind = "DATETIME"
	Text     Kind = "TEXT"
)

// Column is one inferred column.
type Column struct {
	Name       string
	Kind       Kind
	PrimaryKey bool
}

// Options control what Ensure creates alongside a new table.
type Options struct {
	// Index names a column that gets a secondary index. Ignored when it is
	// the primary key.
	Index string

	// Triggers are complete CREATE TRIGGER statements run after the table
	// exists.
	Triggers []string
}

// Sanitize maps an attribute name to a column name.
func Sanitize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Quote renders name as a quoted SQL identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// KindOf returns the column kind for a Go value. Nil has no kind.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case nil:
		return "", false
	case int, int8, int16, int32, int64, uint8, uint16, uint32, bool:
		return Integer, true
	case float32, float64:
		return Real, true
	case time.Time:
		return DateTime, true
	default:
		return Text, true
	}
}

// Infer returns one column per attribute name seen in any row, sanitized
// and sorted. A column takes the kind of its values; values that disagree,
// or a column that is always nil, give TEXT. The column named key is
// marked as primary key. Names equal up to case collapse into the first in
// sorted order, as SQLite treats them as one column.
func Infer(rows []types.Row, key string) []Column {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for attr := range row {
			if name := Sanitize(attr); !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	canonical := make(map[string]string, len(names))
	var cols []Column
	for _, name := range names {
		lower := strings.ToLower(name)
		if _, ok := canonical[lower]; ok {
			continue
		}
		canonical[lower] = name
		cols = append(cols, Column{Name: name, PrimaryKey: name == key})
	}

	kinds := make(map[string]Kind, len(cols))
	for _, row := range rows {
		for attr, v := range row {
			k, ok := KindOf(v)
			if !ok {
				continue
			}
			name := canonical[strings.ToLower(Sanitize(attr))]
			switch prev, seen := kinds[name]; {
			case !seen:
				kinds[name] = k
			case prev != k:
				kinds[name] = Text
			}
		}
	}

	for i := range cols {
		if k, ok := kinds[cols[i].Name]; ok {
			cols[i].Kind = k
		} else {
			cols[i].Kind = Text
		}
	}
	return cols
}

var missingColumnRe = regexp.MustCompile(`no column named ([\w-]+)`)

// MissingColumn extracts the column name from SQLite's "table T has no
// column named X" error.
func MissingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := missingColumnRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ErrUnknownTable is returned by Extend for a table Ensure never saw.
var ErrUnknownTable = errors.New("unknown table")

// Manager creates and extends tables and mirrors their columns in a
// Registry.
type Manager struct {
	db       *sql.DB
	registry *Registry
	logger   *zap.Logger
}

// NewManager returns a Manager for db with an empty registry.
func NewManager(db *sql.DB, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{db: db, registry: NewRegistry(), logger: logger}
}

// Registry returns the manager's column registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Load fills the registry from the tables already in the database.
func (m *Manager) Load(ctx context.Context) error {
	rows, err := m.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	for _, table := range tables {
		if err := m.refresh(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// refresh replaces the registry entry for table with its live columns.
func (m *Manager) refresh(ctx context.Context, table string) error {
	rows, err := m.db.QueryContext(ctx, `PRAGMA table_info(`+Quote(table)+`)`)
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			kind    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}
	if len(cols) > 0 {
		m.registry.Set(table, cols)
	}
	return nil
}

// Ensure creates table with exactly cols, plus the optional index and
// triggers, when the registry does not know it yet. It is a no-op for a
// known table, so repeated calls are safe.
func (m *Manager) Ensure(ctx context.Context, table string, cols []Column, opts Options) error {
	if m.registry.Has(table) {
		return nil
	}
	if len(cols) == 0 {
		return fmt.Errorf("creating %s: no columns", table)
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = Quote(c.Name) + " " + string(c.Kind)
		if c.PrimaryKey {
			defs[i] += " PRIMARY KEY"
		}
	}

	statements := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", Quote(table), strings.Join(defs, ",\n\t")),
	}
	if opts.Index != "" && !isPrimaryKey(cols, opts.Index) {
		statements = append(statements, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)",
			Quote("ix_"+table+"_"+opts.Index), Quote(table), Quote(opts.Index)))
	}
	statements = append(statements, opts.Triggers...)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}

	m.logger.Info("created table", zap.String("table", table), zap.Int("columns", len(cols)))
	return m.refresh(ctx, table)
}

func isPrimaryKey(cols []Column, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return c.PrimaryKey
		}
	}
	return false
}

// Extend adds a TEXT column for each of names that table lacks. Existing
// columns are never altered. It returns the columns it added.
func (m *Manager) Extend(ctx context.Context, table string, names []string) ([]string, error) {
	if err := m.refresh(ctx, table); err != nil {
		return nil, err
	}
	if !m.registry.Has(table) {
		return nil, fmt.Errorf("extending %s: %w", table, ErrUnknownTable)
	}

	var added []string
	for _, name := range names {
		name = Sanitize(name)
		if m.registry.HasColumn(table, name) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", Quote(table), Quote(name))
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return added, fmt.Errorf("adding column %s to %s: %w", name, table, err)
		}
		m.registry.Add(table, name)
		added = append(added, name)
	}

	if len(added) > 0 {
		m.logger.Info("extended table", zap.String("table", table), zap.Strings("columns", added))
	}
	return added, nil
}
