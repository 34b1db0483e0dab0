// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package affil

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/internal/schema"
	"github.com/pdiddy/medline2sql/internal/store"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// DefaultPageSize is the number of affiliation rows parsed per page.
const DefaultPageSize = 30000

// Columns is the fixed layout of the affiliations_parsed table.
var Columns = []schema.Column{
	{Name: "id", Kind: schema.Integer, PrimaryKey: true},
	{Name: "list_of_original_ids", Kind: schema.Text},
	{Name: "full_text", Kind: schema.Text},
	{Name: "department", Kind: schema.Text},
	{Name: "institution", Kind: schema.Text},
	{Name: "location", Kind: schema.Text},
	{Name: "country", Kind: schema.Text},
	{Name: "zipcode", Kind: schema.Text},
	{Name: "email", Kind: schema.Text},
}

// Summary holds counts from one job run.
type Summary struct {
	Pages   int
	Read    int
	Parsed  int
	Dropped int
}

// Job rebuilds affiliations_parsed from the affiliations table.
type Job struct {
	store    *store.Store
	parser   Parser
	pageSize int
	logger   *zap.Logger
}

// NewJob returns a Job reading from s. A nil parser uses Heuristic.
func NewJob(s *store.Store, parser Parser, cfg types.AffiliationConfig, logger *zap.Logger) *Job {
	if parser == nil {
		parser = Heuristic{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Job{store: s, parser: parser, pageSize: pageSize, logger: logger}
}

// Run parses every stored affiliation and writes one affiliations_parsed
// row per distinct affiliation, numbering them from zero. Existing parsed
// rows are replaced. Rows the parser rejects are logged and dropped.
func (j *Job) Run(ctx context.Context, w io.Writer) (Summary, error) {
	var summary Summary

	if err := j.store.Define(ctx, types.TableAffiliationsParse, Columns); err != nil {
		return summary, fmt.Errorf("defining %s: %w", types.TableAffiliationsParse, err)
	}
	if err := j.store.Truncate(ctx, types.TableAffiliationsParse); err != nil {
		return summary, err
	}

	cursor := j.store.NewCursor(types.TableAffiliations, j.pageSize)
	var nextID int64
	for {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		page, err := cursor.Next(ctx)
		if err != nil {
			return summary, err
		}
		if len(page) == 0 {
			break
		}
		summary.Pages++
		summary.Read += len(page)

		out := make([]types.Row, 0, len(page))
		dropped := 0
		for _, row := range page {
			parsed, err := j.parser.Parse(row.String(types.ColAffiliation))
			if err != nil {
				if !errors.Is(err, ErrEmptyAffiliation) {
					j.logger.Warn("affiliation parse failed",
						zap.String("affiliation_ids", row.String(types.ColAffiliationID)), zap.Error(err))
				} else {
					j.logger.Debug("dropping empty affiliation",
						zap.String("affiliation_ids", row.String(types.ColAffiliationID)))
				}
				dropped++
				continue
			}
			parsed.ID = nextID
			parsed.OriginalIDs = row.String(types.ColAffiliationID)
			nextID++
			out = append(out, parsed.Row())
		}

		if _, err := j.store.Append(ctx, types.TableAffiliationsParse, out); err != nil {
			return summary, fmt.Errorf("writing page %d: %w", summary.Pages, err)
		}
		summary.Parsed += len(out)
		summary.Dropped += dropped
		fmt.Fprintf(w, "page %d: parsed %d, dropped %d\n", summary.Pages, len(out), dropped)
	}

	fmt.Fprintf(w, "\nread: %d, parsed: %d, dropped: %d\n", summary.Read, summary.Parsed, summary.Dropped)
	return summary, nil
}
