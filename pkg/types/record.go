// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
	"strconv"
	"strings"
)

// Destination table names.
const (
	TablePublications      = "publications"
	TableAuthors           = "authors"
	TableAffiliations      = "affiliations"
	TableAffiliationsParse = "affiliations_parsed"
)

// Key columns of the destination tables.
const (
	ColPMID          = "PMID"
	ColAuthorID      = "Author_ID"
	ColAffiliation   = "affiliation"
	ColAffiliationID = "Affiliation_ID"
)

// Row is one loosely-typed record bound for a destination table. Keys are
// column names; absent attributes are simply missing from the map.
type Row map[string]any

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// String returns the value stored under key as text, or "" if absent.
func (r Row) String(key string) string {
	return Text(r[key])
}

// Text renders a scalar column value as text. Nil and unsupported types
// give "".
func Text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Counters holds the two surrogate-ID sequences for one run. The value is
// threaded through every transform call; it is never reset between files.
type Counters struct {
	Author      int64 `json:"author" yaml:"author"`
	Affiliation int64 `json:"affiliation" yaml:"affiliation"`
}

// Author is one entry of a publication's author list.
type Author struct {
	PMID     string
	AuthorID int64

	LastName *string
	ForeName *string
	Initials *string

	// AffiliationIDs lists the surrogate ids assigned to this author's
	// affiliation occurrences. NoAffiliation is set instead when the author
	// carried no affiliation elements at all.
	AffiliationIDs []int64
	NoAffiliation  bool

	Order      int
	IsFirst    bool
	IsLast     bool
	NumAuthors int
}

// HasName reports whether at least one name part is present.
func (a Author) HasName() bool {
	return a.LastName != nil || a.ForeName != nil || a.Initials != nil
}

// Row converts the author into its persisted column layout.
func (a Author) Row() Row {
	row := Row{
		ColPMID:       a.PMID,
		ColAuthorID:   a.AuthorID,
		"LastName":    deref(a.LastName),
		"ForeName":    deref(a.ForeName),
		"Initials":    deref(a.Initials),
		"AUOrder":     int64(a.Order),
		"isFirstAu":   a.IsFirst,
		"isLastAu":    a.IsLast,
		"Num_Authors": int64(a.NumAuthors),
	}
	if a.NoAffiliation {
		row["AffiliationList"] = nil
	} else {
		row["AffiliationList"] = JoinIDs(a.AffiliationIDs, ", ")
	}
	return row
}

// Affiliation is one (author, affiliation string) occurrence.
type Affiliation struct {
	ID   int64
	Text string
}

// JoinIDs renders ids as a sep-joined string.
func JoinIDs(ids []int64, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, sep)
}

// SplitIDs parses a comma-joined id list, ignoring blanks and whitespace.
func SplitIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DuplicateOutcome records which path a single row insert took.
type DuplicateOutcome int

const (
	Inserted DuplicateOutcome = iota
	DiscardedDuplicate
	Merged
)

func (o DuplicateOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DiscardedDuplicate:
		return "discarded"
	case Merged:
		return "merged"
	default:
		return "unknown"
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
