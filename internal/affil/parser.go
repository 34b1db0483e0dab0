// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package affil splits free-text affiliation strings into their parts and
// rebuilds the affiliations_parsed table from the affiliations table.
package affil

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/pdiddy/medline2sql/pkg/types"
)

// ErrEmptyAffiliation is returned for input with no text.
var ErrEmptyAffiliation = errors.New("affiliation is empty")

// Parsed holds the parts of one affiliation string. Parts the parser could
// not find are empty.
type Parsed struct {
	ID          int64  `json:"id" yaml:"id"`
	OriginalIDs string `json:"list_of_original_ids" yaml:"list_of_original_ids"`
	FullText    string `json:"full_text" yaml:"full_text"`
	Department  string `json:"department" yaml:"department"`
	Institution string `json:"institution" yaml:"institution"`
	Location    string `json:"location" yaml:"location"`
	Country     string `json:"country" yaml:"country"`
	Zipcode     string `json:"zipcode" yaml:"zipcode"`
	Email       string `json:"email" yaml:"email"`
}

// Row converts p into its affiliations_parsed layout.
func (p Parsed) Row() types.Row {
	return types.Row{
		"id":                   p.ID,
		"list_of_original_ids": p.OriginalIDs,
		"full_text":            p.FullText,
		"department":           p.Department,
		"institution":          p.Institution,
		"location":             p.Location,
		"country":              p.Country,
		"zipcode":              p.Zipcode,
		"email":                p.Email,
	}
}

// Parser splits one affiliation string.
type Parser interface {
	Parse(text string) (Parsed, error)
}

var (
	emailRe      = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	electronicRe = regexp.MustCompile(`(?i)\belectronic address:\s*`)
	zipRe        = regexp.MustCompile(`\b(?:[A-Z]{1,2}-)?\d{4,6}(?:-\d{3,4})?\b|\b[A-Z]\d[A-Z] ?\d[A-Z]\d\b|\b[A-Z]{1,2}\d[A-Z\d]? ?\d[A-Z]{2}\b`)
	separatorRe  = regexp.MustCompile(`[,;]`)
)

// Stems that mark a segment as a sub-unit of an organization.
var departmentStems = []string{
	"department", "dept", "départ", "departament", "division", "section",
	"laborato", "lab.", "unit.", "program", "faculty", "school", "service",
	"servicio", "klinik für", "abteilung",
}

// Stems that mark a segment as an organization.
var institutionStems = []string{
	"univers", "college", "institu", "hospital", "hôpital", "ospedale",
	"clinic", "center", "centre", "centro", "academy", "académie", "foundation",
	"fundación", "corporation", "inc.", "ltd.", "gmbh.", "company", "agency",
	"ministry", "council", "organi", "consortium", "trust.", "ecole",
	"école", "polytechn", "society",
}

// Heuristic is a rule-based Parser. It removes the e-mail address, takes
// the trailing segment as the country when it names one, pulls the last
// postal code, and classifies the remaining comma-separated segments by
// keyword. Segments after the institution form the location.
type Heuristic struct{}

// Parse implements Parser.
func (Heuristic) Parse(text string) (Parsed, error) {
	full := strings.Join(strings.Fields(text), " ")
	if full == "" {
		return Parsed{}, ErrEmptyAffiliation
	}
	p := Parsed{FullText: full}

	rest := full
	if email := emailRe.FindString(rest); email != "" {
		p.Email = strings.TrimSuffix(email, ".")
		rest = strings.Replace(rest, email, "", 1)
	}
	rest = electronicRe.ReplaceAllString(rest, "")

	parts := segments(rest)
	if n := len(parts); n > 0 {
		if country, ok := countryOf(parts[n-1]); ok {
			p.Country = country
			parts = parts[:n-1]
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if zip := zipRe.FindString(parts[i]); zip != "" {
			p.Zipcode = zip
			parts[i] = strings.TrimSpace(strings.Replace(parts[i], zip, "", 1))
			break
		}
	}
	parts = compact(parts)

	dept, inst := -1, -1
	for i, part := range parts {
		folded := cases.Fold().String(part)
		switch {
		case inst < 0 && hasStem(folded, institutionStems) && !(dept < 0 && startsWithStem(folded, departmentStems)):
			inst = i
		case dept < 0 && hasStem(folded, departmentStems):
			dept = i
		}
	}
	if inst < 0 {
		for i := range parts {
			if i != dept {
				inst = i
				break
			}
		}
	}

	if dept >= 0 {
		p.Department = parts[dept]
	}
	if inst >= 0 {
		p.Institution = parts[inst]
	}

	var location []string
	for i := max(dept, inst) + 1; i < len(parts); i++ {
		location = append(location, parts[i])
	}
	p.Location = strings.Join(location, ", ")

	return p, nil
}

func segments(s string) []string {
	return compact(separatorRe.Split(s, -1))
}

// compact trims segments and drops empty ones.
func compact(parts []string) []string {
	out := parts[:0]
	for _, part := range parts {
		part = strings.Trim(part, " .")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func words(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '(' || r == ')' || r == '/' || r == '&'
	})
}

// matchStem reports whether word matches stem. A stem ending in "." must
// match the whole word; others match as a prefix.
func matchStem(word, stem string) bool {
	if whole, ok := strings.CutSuffix(stem, "."); ok {
		return word == whole
	}
	return strings.HasPrefix(word, stem)
}

// hasStem reports whether any word of folded matches one of stems.
// Multi-word stems match as substrings.
func hasStem(folded string, stems []string) bool {
	ws := words(folded)
	for _, stem := range stems {
		if strings.Contains(stem, " ") {
			if strings.Contains(folded, stem) {
				return true
			}
			continue
		}
		for _, w := range ws {
			if matchStem(w, stem) {
				return true
			}
		}
	}
	return false
}

// startsWithStem reports whether the first word of folded matches one of
// stems, as in "Department of ... University Hospital".
func startsWithStem(folded string, stems []string) bool {
	ws := words(folded)
	if len(ws) == 0 {
		return false
	}
	for _, stem := range stems {
		if !strings.Contains(stem, " ") && matchStem(ws[0], stem) {
			return true
		}
	}
	return false
}
