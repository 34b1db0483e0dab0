// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/medline2sql/internal/schema"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// ErrUnknownTable is returned when reading a table that does not exist.
var ErrUnknownTable = errors.New("unknown table")

// DefaultPageSize is the cursor page size when none is given.
const DefaultPageSize = 1000

// LookupResult holds the rows matched by Lookup and, per filter column,
// the requested values no row carried.
type LookupResult struct {
	Rows    []types.Row
	Missing map[string][]any
}

// Lookup returns the rows of table where, for every i, column by[i] takes
// one of values[i]. Requested values absent from the result are reported
// in Missing rather than treated as errors.
func (s *Store) Lookup(ctx context.Context, table string, by []string, values [][]any) (LookupResult, error) {
	if len(by) != len(values) {
		return LookupResult{}, fmt.Errorf("lookup on %s: %d columns but %d value lists", table, len(by), len(values))
	}
	if len(by) == 0 {
		return LookupResult{}, fmt.Errorf("lookup on %s: no filter columns", table)
	}
	if err := s.checkTable(table); err != nil {
		return LookupResult{}, err
	}

	var (
		clauses []string
		args    []any
	)
	for i, col := range by {
		if !s.schema.Registry().HasColumn(table, col) {
			return LookupResult{}, fmt.Errorf("lookup on %s: unknown column %s", table, col)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values[i])), ", ")
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", schema.Quote(col), placeholders))
		args = append(args, values[i]...)
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s", schema.Quote(table), strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return LookupResult{}, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return LookupResult{}, fmt.Errorf("reading %s: %w", table, err)
	}

	result := LookupResult{Rows: found, Missing: make(map[string][]any)}
	for i, col := range by {
		present := make(map[string]bool, len(found))
		for _, r := range found {
			present[r.String(resolveColumn(r, col))] = true
		}
		for _, v := range values[i] {
			if !present[types.Text(v)] {
				result.Missing[col] = append(result.Missing[col], v)
			}
		}
	}
	return result, nil
}

// resolveColumn returns the key in r that names col, ignoring case.
func resolveColumn(r types.Row, col string) string {
	if _, ok := r[col]; ok {
		return col
	}
	for k := range r {
		if strings.EqualFold(k, col) {
			return k
		}
	}
	return col
}

// Cursor pages through a table in insertion order.
type Cursor struct {
	store    *Store
	table    string
	pageSize int
	offset   int
	done     bool
}

// NewCursor returns a cursor over table. A non-positive pageSize uses
// DefaultPageSize.
func (s *Store) NewCursor(table string, pageSize int) *Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cursor{store: s, table: table, pageSize: pageSize}
}

// Next returns the next page of rows. It returns an empty page once the
// table is exhausted; a page shorter than the page size is the last one.
func (c *Cursor) Next(ctx context.Context) ([]types.Row, error) {
	if c.done {
		return nil, nil
	}
	if err := c.store.checkTable(c.table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY rowid LIMIT ? OFFSET ?", schema.Quote(c.table))
	rows, err := c.store.db.QueryContext(ctx, query, c.pageSize, c.offset)
	if err != nil {
		return nil, fmt.Errorf("paging %s: %w", c.table, err)
	}
	defer rows.Close()

	page, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("paging %s: %w", c.table, err)
	}

	c.offset += len(page)
	if len(page) < c.pageSize {
		c.done = true
	}
	if len(page) == 0 {
		return nil, nil
	}
	return page, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	if err := s.checkTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+schema.Quote(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// Tables returns the destination tables present in the database.
func (s *Store) Tables() []string {
	var tables []string
	for _, t := range []string{types.TablePublications, types.TableAuthors, types.TableAffiliations, types.TableAffiliationsParse} {
		if s.schema.Registry().Has(t) {
			tables = append(tables, t)
		}
	}
	return tables
}

// MaxID returns the highest author and affiliation ids already stored, so
// a new run can continue both sequences. Missing tables count as zero.
func (s *Store) MaxID(ctx context.Context) (types.Counters, error) {
	var ids types.Counters

	if s.schema.Registry().Has(types.TableAuthors) {
		var maxID sql.NullInt64
		query := fmt.Sprintf("SELECT MAX(CAST(%s AS INTEGER)) FROM %s", schema.Quote(types.ColAuthorID), schema.Quote(types.TableAuthors))
		if err := s.db.QueryRowContext(ctx, query).Scan(&maxID); err != nil {
			return ids, fmt.Errorf("reading max author id: %w", err)
		}
		ids.Author = maxID.Int64
	}

	if s.schema.Registry().Has(types.TableAffiliations) {
		query := fmt.Sprintf("SELECT %s FROM %s", schema.Quote(types.ColAffiliationID), schema.Quote(types.TableAffiliations))
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return ids, fmt.Errorf("reading affiliation ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var list sql.NullString
			if err := rows.Scan(&list); err != nil {
				return ids, fmt.Errorf("scanning affiliation ids: %w", err)
			}
			parsed, err := types.SplitIDs(list.String)
			if err != nil {
				return ids, fmt.Errorf("parsing affiliation ids %q: %w", list.String, err)
			}
			for _, id := range parsed {
				if id > ids.Affiliation {
					ids.Affiliation = id
				}
			}
		}
		if err := rows.Err(); err != nil {
			return ids, fmt.Errorf("reading affiliation ids: %w", err)
		}
	}

	return ids, nil
}

func (s *Store) checkTable(table string) error {
	if !s.schema.Registry().Has(table) {
		return fmt.Errorf("%s: %w", table, ErrUnknownTable)
	}
	return nil
}

// scanRows reads every row into a types.Row keyed by column name. Text
// comes back as string, never []byte.
func scanRows(rows *sql.Rows) ([]types.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []types.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(types.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
