// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FileRecord is the bookkeeping entry for one ingested source file.
type FileRecord struct {
	Name       string
	ModTime    time.Time
	RunID      string
	Records    int
	FinishedAt time.Time
}

// IsIngested reports whether name was already ingested with the given
// modification time.
func (s *Store) IsIngested(ctx context.Context, name string, modTime time.Time) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT mod_time FROM ingested_files WHERE file_name = ?`, name,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading ingest status of %s: %w", name, err)
	}
	return stored == formatTime(modTime), nil
}

// MarkIngested records that a file was fully persisted.
func (s *Store) MarkIngested(ctx context.Context, rec FileRecord) error {
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingested_files (file_name, mod_time, run_id, records, finished_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_name) DO UPDATE SET
			mod_time=excluded.mod_time, run_id=excluded.run_id,
			records=excluded.records, finished_at=excluded.finished_at`,
		rec.Name, formatTime(rec.ModTime), rec.RunID, rec.Records, formatTime(finished),
	)
	if err != nil {
		return fmt.Errorf("updating ingest status of %s: %w", rec.Name, err)
	}
	return nil
}

// IngestedFiles returns the bookkeeping entries ordered by file name.
func (s *Store) IngestedFiles(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name, mod_time, run_id, records, finished_at FROM ingested_files ORDER BY file_name`)
	if err != nil {
		return nil, fmt.Errorf("listing ingested files: %w", err)
	}
	defer rows.Close()

	var out []FileRecord
	for rows.Next() {
		var (
			rec               FileRecord
			modTime, finished string
		)
		if err := rows.Scan(&rec.Name, &modTime, &rec.RunID, &rec.Records, &finished); err != nil {
			return nil, fmt.Errorf("scanning ingested file: %w", err)
		}
		rec.ModTime, _ = time.Parse(time.RFC3339Nano, modTime)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
