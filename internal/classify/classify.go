// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify maps short free-text labels onto a fixed candidate set.
// The transform stage uses it to bucket structured-abstract sections.
package classify

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/medline2sql/pkg/types"
)

// Unlabelled is the candidate for sections that carry no recognizable label.
const Unlabelled = "UNLABELLED"

// AbstractCandidates is the ordered candidate set for abstract section labels.
var AbstractCandidates = []string{"Introduction", "Purpose", "Conclusion", "Results", "Methods", Unlabelled}

// Labeler picks the best-matching candidate for label. Implementations
// must return one of the candidates.
type Labeler interface {
	Label(ctx context.Context, label string, candidates []string) (string, error)
}

// New builds the labeler selected by cfg. The result memoizes answers per
// (label, candidate set), since structured abstracts reuse a small set of
// labels across millions of records.
func New(cfg types.ClassifierConfig, client *http.Client, logger *zap.Logger) (Labeler, error) {
	switch cfg.Backend {
	case types.ClassifierLexical, "":
		return NewCached(Lexical{}), nil
	case types.ClassifierHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("classifier backend %q requires a url", cfg.Backend)
		}
		return NewCached(NewHTTP(client, cfg, logger)), nil
	default:
		return nil, fmt.Errorf("unsupported classifier backend %q: use lexical or http", cfg.Backend)
	}
}

// Cached memoizes another Labeler. It is safe for concurrent use.
type Cached struct {
	next Labeler

	mu   sync.Mutex
	seen map[string]string
}

// NewCached wraps next with a memo table.
func NewCached(next Labeler) *Cached {
	return &Cached{next: next, seen: make(map[string]string)}
}

// Label returns the memoized answer or asks the wrapped labeler.
func (c *Cached) Label(ctx context.Context, label string, candidates []string) (string, error) {
	key := fmt.Sprintf("%s\x00%q", label, candidates)

	c.mu.Lock()
	got, ok := c.seen[key]
	c.mu.Unlock()
	if ok {
		return got, nil
	}

	got, err := c.next.Label(ctx, label, candidates)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.seen[key] = got
	c.mu.Unlock()
	return got, nil
}
