// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/medline2sql/internal/classify"
	"github.com/pdiddy/medline2sql/internal/store"
	"github.com/pdiddy/medline2sql/internal/transform"
	"github.com/pdiddy/medline2sql/pkg/types"
)

type author struct {
	last string
	affs []string
}

func record(pmid string, extra string, authors ...author) string {
	var sb strings.Builder
	sb.WriteString("<PubmedArticle><MedlineCitation>")
	if pmid != "" {
		fmt.Fprintf(&sb, `<PMID Version="1">%s</PMID>`, pmid)
	}
	sb.WriteString(extra)
	sb.WriteString(`<Article><ArticleTitle>Title ` + pmid + `</ArticleTitle><AuthorList CompleteYN="Y">`)
	for _, a := range authors {
		fmt.Fprintf(&sb, "<Author><LastName>%s</LastName>", a.last)
		for _, aff := range a.affs {
			fmt.Fprintf(&sb, "<AffiliationInfo><Affiliation>%s</Affiliation></AffiliationInfo>", aff)
		}
		sb.WriteString("</Author>")
	}
	sb.WriteString("</AuthorList></Article></MedlineCitation></PubmedArticle>")
	return sb.String()
}

func set(records ...string) string {
	return "<PubmedArticleSet>" + strings.Join(records, "\n") + "</PubmedArticleSet>"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if strings.HasSuffix(path, ".gz") {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, gz.Close())
		content = buf.String()
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture lays out two readable files, one malformed file and a stray
// non-record file.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.xml"), set(
		record("1", "", author{"Smith", []string{"Univ A"}}),
		record("2", "", author{"Jones", []string{"Univ  A", "Univ B"}}),
		record("", ""),
	))
	writeFile(t, filepath.Join(dir, "b.xml.gz"), set(
		record("2", "", author{"Jones", []string{"Univ A"}}),
		record("3", "<CoiStatement>None.</CoiStatement>", author{"Lee", nil}),
	))
	writeFile(t, filepath.Join(dir, "c.xml"), "<PubmedArticleSet><PubmedArticle><MedlineCitation>")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a record file")
	return dir
}

func newPipeline(t *testing.T, s *store.Store, cfg types.IngestConfig) *Pipeline {
	logger := zaptest.NewLogger(t)
	return New(s, transform.New(classify.Lexical{}, logger), nil, cfg, logger)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), types.StoreConfig{Path: filepath.Join(t.TempDir(), "ingest.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func affiliationIDs(t *testing.T, s *store.Store, text string) string {
	t.Helper()
	got, err := s.Lookup(context.Background(), types.TableAffiliations, []string{types.ColAffiliation}, [][]any{{text}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	return got.Rows[0].String(types.ColAffiliationID)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	dir := fixture(t)
	s := openStore(t)

	var out bytes.Buffer
	summary, err := newPipeline(t, s, types.IngestConfig{Workers: 2}).Run(ctx, dir, &out)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, summary.Records)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, types.Counters{Author: 4, Affiliation: 4}, summary.Counters)
	assert.Equal(t, map[string]TableCounts{
		types.TablePublications: {Inserted: 3, Discarded: 1},
		types.TableAuthors:      {Inserted: 4},
		types.TableAffiliations: {Inserted: 2, Merged: 1},
	}, summary.Rows)

	assert.Contains(t, out.String(), "ingested a.xml (3 records, 1 dropped)")
	assert.Contains(t, out.String(), "failed  c.xml")
	assert.NotContains(t, out.String(), "notes.txt")

	assert.Equal(t, "1,2,4", affiliationIDs(t, s, "Univ A"))
	assert.Equal(t, "3", affiliationIDs(t, s, "Univ B"))

	got, err := s.Lookup(ctx, types.TablePublications, []string{types.ColPMID}, [][]any{{"2", "3"}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	for _, row := range got.Rows {
		switch row.String(types.ColPMID) {
		case "2":
			assert.Equal(t, "a.xml", row["XML_file_name"])
			assert.Equal(t, "2", row["AuthorList"])
		case "3":
			assert.Equal(t, "None.", row["CoiStatement"])
			assert.Equal(t, "b.xml.gz", row["XML_file_name"])
		}
	}

	authors, err := s.Lookup(ctx, types.TableAuthors, []string{types.ColPMID}, [][]any{{"3"}})
	require.NoError(t, err)
	require.Len(t, authors.Rows, 1)
	assert.Nil(t, authors.Rows[0]["AffiliationList"])
}

func TestRun_IncrementalAndForce(t *testing.T) {
	ctx := context.Background()
	dir := fixture(t)
	s := openStore(t)

	_, err := newPipeline(t, s, types.IngestConfig{}).Run(ctx, dir, &bytes.Buffer{})
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := newPipeline(t, s, types.IngestConfig{}).Run(ctx, dir, &out)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, types.Counters{Author: 4, Affiliation: 4}, summary.Counters)
	assert.Contains(t, out.String(), "skipped a.xml")

	summary, err = newPipeline(t, s, types.IngestConfig{Force: true}).Run(ctx, dir, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, types.Counters{Author: 8, Affiliation: 8}, summary.Counters)
	assert.Equal(t, TableCounts{Discarded: 4}, summary.Rows[types.TablePublications])
	assert.Equal(t, TableCounts{Merged: 3}, summary.Rows[types.TableAffiliations])

	assert.Equal(t, "1,2,4,5,6,8", affiliationIDs(t, s, "Univ A"))
	assert.Equal(t, "3,7", affiliationIDs(t, s, "Univ B"))

	n, err := s.Count(ctx, types.TablePublications)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRun_Limit(t *testing.T) {
	s := openStore(t)
	summary, err := newPipeline(t, s, types.IngestConfig{Limit: 1, Workers: 1}).Run(context.Background(), fixture(t), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total())
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, types.Counters{Author: 2, Affiliation: 3}, summary.Counters)
}

func TestRun_MetricsFile(t *testing.T) {
	s := openStore(t)
	path := filepath.Join(t.TempDir(), "ingest.prom")
	_, err := newPipeline(t, s, types.IngestConfig{MetricsFile: path}).Run(context.Background(), fixture(t), &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `medline2sql_files_total{status="processed"} 2`)
	assert.Contains(t, string(data), `medline2sql_rows_total{outcome="merged",table="affiliations"} 1`)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, openStore(t), types.IngestConfig{}).Run(ctx, fixture(t), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_MissingDir(t *testing.T) {
	_, err := newPipeline(t, openStore(t), types.IngestConfig{}).Run(context.Background(), filepath.Join(t.TempDir(), "nope"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml.gz", "a.xml", "notes.txt", "c.xml.bak"} {
		writeFile(t, filepath.Join(dir, name), "")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.xml"), 0o755))

	got, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xml"), filepath.Join(dir, "b.xml.gz")}, got)
}
