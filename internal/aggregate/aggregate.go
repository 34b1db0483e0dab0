// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate deduplicates and groups the entity streams of one file
// before they are persisted.
package aggregate

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/medline2sql/pkg/types"
)

// ListSeparator joins list-valued publication attributes.
const ListSeparator = ", "

// Publications keeps the first row per PMID in input order and flattens
// list values into ListSeparator-joined strings. Input rows are not
// modified.
func Publications(rows []types.Row) []types.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]types.Row, 0, len(rows))
	for _, row := range rows {
		pmid := row.String(types.ColPMID)
		if seen[pmid] {
			continue
		}
		seen[pmid] = true
		out = append(out, flatten(row))
	}
	return out
}

func flatten(row types.Row) types.Row {
	flat := make(types.Row, len(row))
	for k, v := range row {
		switch list := v.(type) {
		case []string:
			flat[k] = strings.Join(list, ListSeparator)
		case []int64:
			flat[k] = types.JoinIDs(list, ListSeparator)
		default:
			flat[k] = v
		}
	}
	return flat
}

type authorKey struct {
	pmid                         string
	foreName, lastName, initials string
	hasFore, hasLast, hasInit    bool
}

func keyOf(a types.Author) authorKey {
	k := authorKey{pmid: a.PMID}
	if a.ForeName != nil {
		k.foreName, k.hasFore = *a.ForeName, true
	}
	if a.LastName != nil {
		k.lastName, k.hasLast = *a.LastName, true
	}
	if a.Initials != nil {
		k.initials, k.hasInit = *a.Initials, true
	}
	return k
}

// Authors keeps the first author per (PMID, ForeName, LastName, Initials)
// and returns their rows. Absent name parts compare equal to each other and
// differ from an empty present part.
func Authors(authors []types.Author) []types.Row {
	seen := make(map[authorKey]bool, len(authors))
	out := make([]types.Row, 0, len(authors))
	for _, a := range authors {
		k := keyOf(a)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a.Row())
	}
	return out
}

// Normalize returns the canonical form of an affiliation string: Unicode
// NFC with whitespace runs collapsed to single spaces and the ends trimmed.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// Affiliations groups occurrences by normalized text. Each distinct text
// yields one row in first-seen order whose Affiliation_ID lists the
// occurrence ids, comma-joined without spaces, in encounter order.
// Occurrences that normalize to empty text are dropped and counted.
func Affiliations(affs []types.Affiliation) (rows []types.Row, dropped int) {
	index := make(map[string]int, len(affs))
	var ids [][]int64
	var texts []string

	for _, aff := range affs {
		text := Normalize(aff.Text)
		if text == "" {
			dropped++
			continue
		}
		i, ok := index[text]
		if !ok {
			i = len(texts)
			index[text] = i
			texts = append(texts, text)
			ids = append(ids, nil)
		}
		ids[i] = append(ids[i], aff.ID)
	}

	rows = make([]types.Row, len(texts))
	for i, text := range texts {
		rows[i] = types.Row{
			types.ColAffiliation:   text,
			types.ColAffiliationID: types.JoinIDs(ids[i], ","),
		}
	}
	return rows, dropped
}
