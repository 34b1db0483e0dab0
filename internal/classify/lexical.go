// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// vocabulary maps a folded candidate name to the stems that vote for it.
var vocabulary = map[string][]string{
	"introduction": {"introduction", "background", "context", "rationale", "overview", "importance", "motivation"},
	"purpose":      {"purpose", "objective", "aim", "goal", "hypothesi", "question", "intent"},
	"conclusion":   {"conclusion", "interpretation", "implication", "discussion", "summary", "significance", "relevance"},
	"results":      {"result", "finding", "outcome", "observation", "measurement"},
	"methods":      {"method", "methodology", "design", "setting", "participant", "patient", "material", "intervention", "procedure", "analysi", "source", "selection", "approach", "subject"},
	"unlabelled":   {"unlabelled", "unlabeled"},
}

// Lexical is an offline labeler. It folds case, splits the label into
// words, strips a plural "s" and counts words that appear in each
// candidate's vocabulary. The highest count wins; ties go to the earlier
// candidate. A label with no votes maps to Unlabelled when that is a
// candidate, otherwise to the first candidate.
type Lexical struct{}

// Label implements Labeler.
func (Lexical) Label(_ context.Context, label string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	words := stems(label)
	best, bestScore := -1, 0
	for i, cand := range candidates {
		score := 0
		for _, voc := range vocabFor(cand) {
			for _, w := range words {
				if w == voc {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best >= 0 {
		return candidates[best], nil
	}
	for _, cand := range candidates {
		if cand == Unlabelled {
			return cand, nil
		}
	}
	return candidates[0], nil
}

func vocabFor(candidate string) []string {
	key := fold(candidate)
	if v, ok := vocabulary[key]; ok {
		return v
	}
	return stems(candidate)
}

func stems(s string) []string {
	fields := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 3 && strings.HasSuffix(f, "s") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}

// fold case-folds s. A Caser is stateful, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
