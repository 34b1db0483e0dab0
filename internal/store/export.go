// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medline2sql/pkg/types"
)

// ExportYAML writes every row of table to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, table string, w io.Writer) (int, error) {
	rows, err := s.exportRows(ctx, table)
	if err != nil {
		return 0, err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("marshaling YAML: %w", err)
	}
	return len(rows), nil
}

// ExportJSON writes every row of table to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, table string, w io.Writer) (int, error) {
	rows, err := s.exportRows(ctx, table)
	if err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return 0, fmt.Errorf("writing JSON: %w", err)
	}
	return len(rows), nil
}

// exportRows reads table through a cursor. Null columns are left out of
// each entry.
func (s *Store) exportRows(ctx context.Context, table string) ([]types.Row, error) {
	cursor := s.NewCursor(table, DefaultPageSize)
	entries := []types.Row{}
	for {
		page, err := cursor.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		if len(page) == 0 {
			return entries, nil
		}
		for _, row := range page {
			for k, v := range row {
				if v == nil {
					delete(row, k)
				}
			}
			entries = append(entries, row)
		}
	}
}
