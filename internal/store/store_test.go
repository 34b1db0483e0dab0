// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/medline2sql/internal/schema"
	"github.com/pdiddy/medline2sql/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), types.StoreConfig{Path: filepath.Join(t.TempDir(), "sub", "test.db")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppend_PublicationsDeduplicateAcrossBatches(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res, err := s.Append(ctx, types.TablePublications, []types.Row{
		{"PMID": "1", "ArticleTitle": "first"},
		{"PMID": "2", "ArticleTitle": "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.DuplicateOutcome{types.Inserted, types.Inserted}, res.Outcomes)

	res, err = s.Append(ctx, types.TablePublications, []types.Row{
		{"PMID": "1", "ArticleTitle": "changed"},
		{"PMID": "3", "ArticleTitle": "third"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.DuplicateOutcome{types.DiscardedDuplicate, types.Inserted}, res.Outcomes)
	assert.Equal(t, 1, res.Count(types.DiscardedDuplicate))

	got, err := s.Lookup(ctx, types.TablePublications, []string{"PMID"}, [][]any{{"1"}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "first", got.Rows[0]["ArticleTitle"])

	n, err := s.Count(ctx, types.TablePublications)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAppend_AuthorsDeduplicateByID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first := types.Author{PMID: "1", AuthorID: 1, NoAffiliation: true, Order: 1, IsFirst: true, IsLast: true, NumAuthors: 1}
	_, err := s.Append(ctx, types.TableAuthors, []types.Row{first.Row()})
	require.NoError(t, err)

	res, err := s.Append(ctx, types.TableAuthors, []types.Row{first.Row()})
	require.NoError(t, err)
	assert.Equal(t, []types.DuplicateOutcome{types.DiscardedDuplicate}, res.Outcomes)

	var indexes int
	require.NoError(t, s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'authors' AND sql IS NOT NULL`,
	).Scan(&indexes))
	assert.Equal(t, 1, indexes)
}

func TestAppend_AffiliationsMergeIDs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res, err := s.Append(ctx, types.TableAffiliations, []types.Row{
		{"affiliation": "Univ A", "Affiliation_ID": "1,4"},
		{"affiliation": "Univ B", "Affiliation_ID": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count(types.Merged))

	for _, ids := range []string{"7", "9,10"} {
		res, err = s.Append(ctx, types.TableAffiliations, []types.Row{{"affiliation": "Univ A", "Affiliation_ID": ids}})
		require.NoError(t, err)
		assert.Equal(t, []types.DuplicateOutcome{types.Merged}, res.Outcomes)
	}

	got, err := s.Lookup(ctx, types.TableAffiliations, []string{"affiliation"}, [][]any{{"Univ A"}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "1,4,7,9,10", got.Rows[0]["Affiliation_ID"])

	n, err := s.Count(ctx, types.TableAffiliations)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestAppend_ExtendsOnNewColumns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Append(ctx, types.TablePublications, []types.Row{{"PMID": "1", "Language": "eng"}})
	require.NoError(t, err)

	res, err := s.Append(ctx, types.TablePublications, []types.Row{
		{"PMID": "2", "History_pmc-release": "2020-01-01"},
		{"PMID": "3", "ArticleId_doi": "10.1/x", "Num_Authors": int64(4)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ArticleId_doi", "History_pmc_release", "Num_Authors"}, res.Extended)
	assert.Equal(t, 2, res.Count(types.Inserted))

	got, err := s.Lookup(ctx, types.TablePublications, []string{"PMID"}, [][]any{{"2", "3"}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "2020-01-01", got.Rows[0]["History_pmc_release"])
	assert.Equal(t, "4", got.Rows[1]["Num_Authors"])
}

func TestAppend_RetryFailureAfterExtend(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Define(ctx, "notes", []schema.Column{
		{Name: "id", Kind: schema.Integer, PrimaryKey: true},
		{Name: "body", Kind: schema.Text},
	}))

	res, err := s.Append(ctx, "notes", []types.Row{
		{"id": int64(1), "extra": "x"},
		{"id": int64(1), "body": "same key"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrying insert into notes")
	assert.Equal(t, []string{"extra"}, res.Extended)
	assert.Empty(t, res.Outcomes)

	n, err := s.Count(ctx, "notes")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppend_FirstBatchColumnKinds(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Append(ctx, types.TableAuthors, []types.Row{
		(types.Author{PMID: "1", AuthorID: 5, IsFirst: true, Order: 1, NumAuthors: 1, AffiliationIDs: []int64{3}}).Row(),
	})
	require.NoError(t, err)

	got, err := s.Lookup(ctx, types.TableAuthors, []string{"Author_ID"}, [][]any{{5}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	row := got.Rows[0]
	assert.Equal(t, int64(5), row["Author_ID"])
	assert.Equal(t, int64(1), row["isFirstAu"])
	assert.Equal(t, "3", row["AffiliationList"])
	assert.Nil(t, row["LastName"])
}

func TestAppend_Empty(t *testing.T) {
	s := openStore(t)
	res, err := s.Append(context.Background(), types.TablePublications, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, s.Tables())
}

func TestAppend_FlattensLists(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Append(ctx, types.TablePublications, []types.Row{
		{"PMID": "1", "AuthorList": []int64{1, 2}, "ReferenceList": []string{"a", "b"}},
	})
	require.NoError(t, err)

	got, err := s.Lookup(ctx, types.TablePublications, []string{"PMID"}, [][]any{{"1"}})
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "1, 2", got.Rows[0]["AuthorList"])
	assert.Equal(t, "a, b", got.Rows[0]["ReferenceList"])
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var rows []types.Row
	for i := 1; i <= 4; i++ {
		rows = append(rows, (types.Author{PMID: fmt.Sprint(100 + i%2), AuthorID: int64(i), NoAffiliation: true}).Row())
	}
	_, err := s.Append(ctx, types.TableAuthors, rows)
	require.NoError(t, err)

	tests := []struct {
		name        string
		by          []string
		values      [][]any
		wantIDs     []int64
		wantMissing map[string][]any
	}{
		{
			name:        "single column",
			by:          []string{"PMID"},
			values:      [][]any{{"101", "999"}},
			wantIDs:     []int64{1, 3},
			wantMissing: map[string][]any{"PMID": {"999"}},
		},
		{
			name:        "and of columns",
			by:          []string{"PMID", "Author_ID"},
			values:      [][]any{{"100"}, {1, 2, 4}},
			wantIDs:     []int64{2, 4},
			wantMissing: map[string][]any{"Author_ID": {1}},
		},
		{
			name:        "nothing found",
			by:          []string{"Author_ID"},
			values:      [][]any{{42}},
			wantMissing: map[string][]any{"Author_ID": {42}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Lookup(ctx, types.TableAuthors, tt.by, tt.values)
			require.NoError(t, err)
			var ids []int64
			for _, r := range got.Rows {
				ids = append(ids, r["Author_ID"].(int64))
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantMissing, got.Missing)
		})
	}
}

func TestLookup_Errors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Append(ctx, types.TablePublications, []types.Row{{"PMID": "1"}})
	require.NoError(t, err)

	_, err = s.Lookup(ctx, types.TablePublications, []string{"PMID"}, [][]any{{"1"}, {"2"}})
	assert.Error(t, err)

	_, err = s.Lookup(ctx, types.TablePublications, nil, nil)
	assert.Error(t, err)

	_, err = s.Lookup(ctx, types.TablePublications, []string{"nope"}, [][]any{{"1"}})
	assert.Error(t, err)

	_, err = s.Lookup(ctx, types.TableAuthors, []string{"PMID"}, [][]any{{"1"}})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	tests := []struct {
		rows      int
		pageSize  int
		wantPages []int
	}{
		{2500, 1000, []int{1000, 1000, 500}},
		{2000, 1000, []int{1000, 1000}},
		{3, 10, []int{3}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d by %d", tt.rows, tt.pageSize), func(t *testing.T) {
			table := fmt.Sprintf("t_%d_%d", tt.rows, tt.pageSize)
			rows := make([]types.Row, tt.rows)
			for i := range rows {
				rows[i] = types.Row{"id": int64(i)}
			}
			_, err := s.Append(ctx, table, rows)
			require.NoError(t, err)

			cursor := s.NewCursor(table, tt.pageSize)
			var pages []int
			next := int64(0)
			for {
				page, err := cursor.Next(ctx)
				require.NoError(t, err)
				if len(page) == 0 {
					break
				}
				pages = append(pages, len(page))
				for _, r := range page {
					assert.Equal(t, next, r["id"])
					next++
				}
			}
			assert.Equal(t, tt.wantPages, pages)
		})
	}
}

func TestCursor_UnknownTable(t *testing.T) {
	s := openStore(t)
	_, err := s.NewCursor("missing", 0).Next(context.Background())
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMaxID(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	ids, err := s.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Counters{}, ids)

	_, err = s.Append(ctx, types.TableAuthors, []types.Row{
		(types.Author{PMID: "1", AuthorID: 12}).Row(),
		(types.Author{PMID: "1", AuthorID: 7}).Row(),
	})
	require.NoError(t, err)
	_, err = s.Append(ctx, types.TableAffiliations, []types.Row{
		{"affiliation": "A", "Affiliation_ID": "3,31"},
		{"affiliation": "B", "Affiliation_ID": "8"},
	})
	require.NoError(t, err)

	ids, err = s.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Counters{Author: 12, Affiliation: 31}, ids)
}

func TestReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(ctx, types.StoreConfig{Path: path}, nil)
	require.NoError(t, err)
	_, err = s.Append(ctx, types.TablePublications, []types.Row{{"PMID": "1", "Extra": "x"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, types.StoreConfig{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{types.TablePublications}, s.Tables())
	res, err := s.Append(ctx, types.TablePublications, []types.Row{{"PMID": "1", "Extra": "y"}})
	require.NoError(t, err)
	assert.Equal(t, []types.DuplicateOutcome{types.DiscardedDuplicate}, res.Outcomes)
}

func TestDefine(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	cols := []schema.Column{
		{Name: "id", Kind: schema.Integer, PrimaryKey: true},
		{Name: "country", Kind: schema.Text},
	}
	require.NoError(t, s.Define(ctx, types.TableAffiliationsParse, cols))
	require.NoError(t, s.Define(ctx, types.TableAffiliationsParse, cols))

	_, err := s.Append(ctx, types.TableAffiliationsParse, []types.Row{{"id": int64(0), "country": "France"}})
	require.NoError(t, err)
	n, err := s.Count(ctx, types.TableAffiliationsParse)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Truncate(ctx, types.TableAffiliationsParse))
	n, err = s.Count(ctx, types.TableAffiliationsParse)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.Truncate(ctx, "missing"), ErrUnknownTable)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.Append(ctx, types.TablePublications, []types.Row{
		{"PMID": "1", "ArticleTitle": "T1"},
		{"PMID": "2"},
	})
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	n, err := s.ExportJSON(ctx, types.TablePublications, &jsonBuf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var fromJSON []map[string]any
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, []map[string]any{
		{"PMID": "1", "ArticleTitle": "T1"},
		{"PMID": "2"},
	}, fromJSON)

	var yamlBuf bytes.Buffer
	n, err = s.ExportYAML(ctx, types.TablePublications, &yamlBuf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, fromJSON, fromYAML)
}

func TestIngestedFiles(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	done, err := s.IsIngested(ctx, "a.xml", mod)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkIngested(ctx, FileRecord{Name: "a.xml", ModTime: mod, RunID: "r1", Records: 10}))

	done, err = s.IsIngested(ctx, "a.xml", mod)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = s.IsIngested(ctx, "a.xml", mod.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkIngested(ctx, FileRecord{Name: "a.xml", ModTime: mod.Add(time.Second), RunID: "r2", Records: 11}))
	files, err := s.IngestedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "r2", files[0].RunID)
	assert.Equal(t, 11, files[0].Records)
}
