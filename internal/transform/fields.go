// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package transform

import (
	"strings"

	"github.com/pdiddy/medline2sql/internal/xmltree"
	"github.com/pdiddy/medline2sql/pkg/types"
)

// CleanTitle normalizes the raw inner markup of a title element. Nested
// markup stays as literal text, whitespace runs collapse to one space, and
// the bracket convention for translated titles ("[Title]" or "[Title].")
// is removed: one leading "[" and one trailing "]" or "].".
func CleanTitle(inner string) string {
	s := strings.Join(strings.Fields(inner), " ")

	if strings.HasPrefix(s, "[") {
		s = strings.TrimSpace(s[1:])
	}
	if strings.HasSuffix(s, "]") {
		s = strings.TrimSpace(s[:len(s)-1])
	} else if strings.HasSuffix(s, "].") {
		s = strings.TrimSpace(s[:len(s)-2])
	}
	return s
}

// dateOf renders a Year/Month/Day element group as "YYYY-MM-DD". All three
// parts must be present; one-digit months and days are zero-padded.
func dateOf(n *xmltree.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	year, okY := nonEmpty(n, "Year")
	month, okM := nonEmpty(n, "Month")
	day, okD := nonEmpty(n, "Day")
	if !okY || !okM || !okD {
		return "", false
	}
	return year + "-" + pad2(month) + "-" + pad2(day), true
}

func pad2(s string) string {
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return "0" + s
	}
	return s
}

// nonEmpty returns the trimmed text at path under n, if any.
func nonEmpty(n *xmltree.Node, path string) (string, bool) {
	el := n
	if path != "" {
		el = n.Find(path)
	}
	if el == nil {
		return "", false
	}
	v := strings.TrimSpace(el.Text())
	return v, v != ""
}

// optText is nonEmpty as a pointer, nil when absent.
func optText(n *xmltree.Node, path string) *string {
	v, ok := nonEmpty(n, path)
	if !ok {
		return nil
	}
	return &v
}

// setText copies the trimmed text at path under n into row[key]. Absent or
// empty elements leave the row untouched.
func setText(row types.Row, key string, n *xmltree.Node, path string) {
	if n == nil {
		return
	}
	if v, ok := nonEmpty(n, path); ok {
		row[key] = v
	}
}

// setAttr copies a non-empty attribute of n into row[key].
func setAttr(row types.Row, key string, n *xmltree.Node, attr string) {
	if v, ok := n.Attr(attr); ok && strings.TrimSpace(v) != "" {
		row[key] = strings.TrimSpace(v)
	}
}
