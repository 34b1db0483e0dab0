// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"github.com/pdiddy/medline2sql/internal/schema"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// tableSpec describes how a destination table is keyed and deduplicated.
type tableSpec struct {
	key      string
	index    string
	triggers []string

	// ignored is the outcome reported when a trigger swallows an insert.
	ignored types.DuplicateOutcome
}

var tableSpecs = map[string]tableSpec{
	types.TablePublications: {
		key:     types.ColPMID,
		ignored: types.DiscardedDuplicate,
		triggers: []string{`CREATE TRIGGER IF NOT EXISTS prevent_duplicate_pmids
	BEFORE INSERT ON publications
	FOR EACH ROW
	WHEN EXISTS (SELECT 1 FROM publications WHERE PMID = NEW.PMID)
	BEGIN
		SELECT RAISE(IGNORE);
	END`},
	},
	types.TableAuthors: {
		key:     types.ColAuthorID,
		index:   types.ColPMID,
		ignored: types.DiscardedDuplicate,
		triggers: []string{`CREATE TRIGGER IF NOT EXISTS prevent_duplicate_authorids
	BEFORE INSERT ON authors
	FOR EACH ROW
	WHEN EXISTS (SELECT 1 FROM authors WHERE Author_ID = NEW.Author_ID)
	BEGIN
		SELECT RAISE(IGNORE);
	END`},
	},
	types.TableAffiliations: {
		key:     types.ColAffiliation,
		ignored: types.Merged,
		triggers: []string{`CREATE TRIGGER IF NOT EXISTS update_affiliation_ids
	BEFORE INSERT ON affiliations
	FOR EACH ROW
	WHEN EXISTS (SELECT 1 FROM affiliations WHERE affiliation = NEW.affiliation)
	BEGIN
		UPDATE affiliations
		SET Affiliation_ID = Affiliation_ID || ',' || NEW.Affiliation_ID
		WHERE affiliation = NEW.affiliation;
		SELECT RAISE(IGNORE);
	END`},
	},
}

func specFor(table string) tableSpec {
	if spec, ok := tableSpecs[table]; ok {
		return spec
	}
	return tableSpec{ignored: types.DiscardedDuplicate}
}

func (t tableSpec) options() schema.Options {
	return schema.Options{Index: t.index, Triggers: t.triggers}
}
