// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest drives files through extraction, transformation,
// aggregation and persistence. Files are decoded ahead in parallel; all
// later stages run one file at a time in name order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/medline2sql/internal/aggregate"
	"github.com/pdiddy/medline2sql/internal/extract"
	"github.com/pdiddy/medline2sql/internal/metrics"
	"github.com/pdiddy/medline2sql/internal/store"
	"github.com/pdiddy/medline2sql/internal/transform"
	"github.com/pdiddy/medline2sql/internal/xmltree"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// DefaultWorkers bounds how many files are decoded ahead.
const DefaultWorkers = 2

// TableCounts holds per-outcome row counts for one table.
type TableCounts struct {
	Inserted  int `json:"inserted" yaml:"inserted"`
	Discarded int `json:"discarded" yaml:"discarded"`
	Merged    int `json:"merged" yaml:"merged"`
}

func (c *TableCounts) add(res store.AppendResult) {
	c.Inserted += res.Count(types.Inserted)
	c.Discarded += res.Count(types.DiscardedDuplicate)
	c.Merged += res.Count(types.Merged)
}

// Summary holds counts from one ingest run.
type Summary struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Processed int    `json:"processed" yaml:"processed"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Failed    int    `json:"failed" yaml:"failed"`

	Records int `json:"records" yaml:"records"`
	Dropped int `json:"dropped" yaml:"dropped"`

	// EmptyAffiliations counts affiliation occurrences whose text was
	// empty after normalization.
	EmptyAffiliations int `json:"empty_affiliations" yaml:"empty_affiliations"`

	Rows     map[string]TableCounts `json:"rows" yaml:"rows"`
	Counters types.Counters         `json:"counters" yaml:"counters"`
}

// Total returns the number of files seen.
func (s Summary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// Pipeline runs ingest over a directory of record files.
type Pipeline struct {
	store       *store.Store
	transformer *transform.Transformer
	metrics     *metrics.Metrics
	cfg         types.IngestConfig
	logger      *zap.Logger
}

// New returns a Pipeline. A nil m gets a fresh metrics set.
func New(s *store.Store, t *transform.Transformer, m *metrics.Metrics, cfg types.IngestConfig, logger *zap.Logger) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Pipeline{store: s, transformer: t, metrics: m, cfg: cfg, logger: logger}
}

type sourceFile struct {
	path    string
	name    string
	modTime time.Time
}

type parsed struct {
	records []*xmltree.Node
	err     error
}

// Run ingests every record file in dir. Unchanged files already ingested
// are skipped unless the config forces them. A file that cannot be decoded
// or persisted is logged and counted as failed; the run continues with the
// next file. Only context cancellation ends the run early.
func (p *Pipeline) Run(ctx context.Context, dir string, w io.Writer) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Rows: make(map[string]TableCounts)}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	paths, err := ListFiles(dir)
	if err != nil {
		return summary, err
	}
	if p.cfg.Limit > 0 && len(paths) > p.cfg.Limit {
		paths = paths[:p.cfg.Limit]
	}

	ids, err := p.store.MaxID(ctx)
	if err != nil {
		return summary, fmt.Errorf("seeding id counters: %w", err)
	}
	logger.Info("starting ingest", zap.String("dir", dir), zap.Int("files", len(paths)),
		zap.Int64("author_id", ids.Author), zap.Int64("affiliation_id", ids.Affiliation))

	var work []sourceFile
	for _, path := range paths {
		f := sourceFile{path: path, name: filepath.Base(path)}
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", f.name, err)
			logger.Warn("cannot stat file", zap.String("file", f.name), zap.Error(err))
			p.metrics.File(metrics.FileFailed)
			summary.Failed++
			continue
		}
		f.modTime = info.ModTime()

		if !p.cfg.Force {
			done, err := p.store.IsIngested(ctx, f.name, f.modTime)
			if err != nil {
				return summary, err
			}
			if done {
				fmt.Fprintf(w, "skipped %s\n", f.name)
				p.metrics.File(metrics.FileSkipped)
				summary.Skipped++
				continue
			}
		}
		work = append(work, f)
	}

	runCtx, cancel := context.WithCancel(ctx)
	results := p.parseAhead(runCtx, work)
	defer func() {
		cancel()
		results.wait()
	}()

	for i, f := range work {
		res, err := results.next(ctx, i)
		if err != nil {
			summary.Counters = ids
			return summary, err
		}

		flog := logger.With(zap.String("file", f.name))
		if res.err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", f.name, res.err)
			flog.Error("skipping unreadable file", zap.Error(res.err))
			p.metrics.File(metrics.FileFailed)
			summary.Failed++
			continue
		}

		start := time.Now()
		fr, next, err := p.processFile(ctx, f, res.records, ids, flog)
		ids = next
		summary.Records += fr.records
		summary.Dropped += fr.dropped
		summary.EmptyAffiliations += fr.emptyAffiliations
		for table, counts := range fr.rows {
			total := summary.Rows[table]
			total.Inserted += counts.Inserted
			total.Discarded += counts.Discarded
			total.Merged += counts.Merged
			summary.Rows[table] = total
		}

		if err != nil {
			if ctx.Err() != nil {
				summary.Counters = ids
				return summary, ctx.Err()
			}
			fmt.Fprintf(w, "failed  %s: %v\n", f.name, err)
			flog.Error("file not fully persisted", zap.Error(err))
			p.metrics.File(metrics.FileFailed)
			summary.Failed++
			continue
		}

		if err := p.store.MarkIngested(ctx, store.FileRecord{
			Name: f.name, ModTime: f.modTime, RunID: summary.RunID, Records: fr.records,
		}); err != nil {
			flog.Warn("cannot record ingest status", zap.Error(err))
		}

		p.metrics.ObserveFile(time.Since(start))
		p.metrics.File(metrics.FileProcessed)
		summary.Processed++
		fmt.Fprintf(w, "ingested %s (%d records, %d dropped)\n", f.name, fr.records, fr.dropped)
	}

	summary.Counters = ids
	fmt.Fprintf(w, "\nprocessed: %d, skipped: %d, failed: %d, records: %d, dropped: %d\n",
		summary.Processed, summary.Skipped, summary.Failed, summary.Records, summary.Dropped)
	logger.Info("ingest finished",
		zap.Int("processed", summary.Processed), zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed), zap.Int("records", summary.Records),
		zap.Int64("author_id", ids.Author), zap.Int64("affiliation_id", ids.Affiliation))

	if p.cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsFile); err != nil {
			fmt.Fprintf(w, "warning: %v\n", err)
		}
	}
	return summary, nil
}

// lookahead hands decoded files to the sequential stage in order.
type lookahead struct {
	results []chan parsed
	slots   chan struct{}
	group   *errgroup.Group
}

// parseAhead decodes files in the background, holding at most
// cfg.Workers decoded-but-unconsumed files at a time.
func (p *Pipeline) parseAhead(ctx context.Context, work []sourceFile) *lookahead {
	la := &lookahead{
		results: make([]chan parsed, len(work)),
		slots:   make(chan struct{}, p.cfg.Workers),
	}
	for i := range la.results {
		la.results[i] = make(chan parsed, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	la.group = g
	g.Go(func() error {
		for i, f := range work {
			select {
			case la.slots <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
			g.Go(func() error {
				records, err := xmltree.ParseFile(f.path, extract.RecordElement)
				la.results[i] <- parsed{records: records, err: err}
				return nil
			})
		}
		return nil
	})
	return la
}

// next waits for file i and frees its slot.
func (la *lookahead) next(ctx context.Context, i int) (parsed, error) {
	select {
	case res := <-la.results[i]:
		<-la.slots
		return res, nil
	case <-ctx.Done():
		return parsed{}, ctx.Err()
	}
}

func (la *lookahead) wait() {
	_ = la.group.Wait()
}

type fileResult struct {
	records           int
	dropped           int
	emptyAffiliations int
	rows              map[string]TableCounts
}

// processFile transforms, aggregates and persists one decoded file. It
// returns the counters advanced past every id the file consumed, even when
// persisting fails, so ids are never reused.
func (p *Pipeline) processFile(ctx context.Context, f sourceFile, records []*xmltree.Node, ids types.Counters, logger *zap.Logger) (fileResult, types.Counters, error) {
	fr := fileResult{records: len(records), rows: make(map[string]TableCounts)}

	var (
		batch transform.FileBatch
		pubs  []types.Row
	)
	for i, rec := range records {
		row, next, err := p.transformer.Transform(ctx, extract.Extract(rec), f.name, ids, &batch)
		if err != nil {
			if ctx.Err() != nil {
				return fr, ids, ctx.Err()
			}
			if errors.Is(err, transform.ErrMissingKey) {
				logger.Warn("dropping record without key", zap.Int("record", i))
			} else {
				logger.Warn("dropping record", zap.Int("record", i), zap.Error(err))
			}
			fr.dropped++
			continue
		}
		ids = next
		pubs = append(pubs, row)
	}
	p.metrics.Records(metrics.RecordTransformed, len(pubs))
	p.metrics.Records(metrics.RecordDropped, fr.dropped)

	affiliations, empty := aggregate.Affiliations(batch.Affiliations)
	fr.emptyAffiliations = empty
	if empty > 0 {
		logger.Debug("dropped empty affiliations", zap.Int("count", empty))
	}

	tables := []struct {
		name string
		rows []types.Row
	}{
		{types.TablePublications, aggregate.Publications(pubs)},
		{types.TableAuthors, aggregate.Authors(batch.Authors)},
		{types.TableAffiliations, affiliations},
	}
	for _, t := range tables {
		res, err := p.store.Append(ctx, t.name, t.rows)
		if err != nil {
			return fr, ids, fmt.Errorf("persisting %s: %w", t.name, err)
		}
		if len(res.Extended) > 0 {
			logger.Info("added columns", zap.String("table", t.name), zap.Strings("columns", res.Extended))
		}
		counts := fr.rows[t.name]
		counts.add(res)
		fr.rows[t.name] = counts
		p.metrics.Rows(t.name, res.Outcomes)
	}
	return fr, ids, nil
}
