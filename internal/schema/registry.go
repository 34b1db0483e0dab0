// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"sort"
	"strings"
	"sync"
)

// Registry records the column set of every known table. Column lookups
// ignore case, matching SQLite.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]map[string]string)}
}

// Has reports whether table is known.
func (r *Registry) Has(table string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[table]
	return ok
}

// HasColumn reports whether table is known to have column.
func (r *Registry) HasColumn(table, column string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[table][strings.ToLower(column)]
	return ok
}

// Columns returns the column names of table in sorted order.
func (r *Registry) Columns(table string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols := make([]string, 0, len(r.tables[table]))
	for _, name := range r.tables[table] {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// Set replaces the column set of table.
func (r *Registry) Set(table string, columns []string) {
	set := make(map[string]string, len(columns))
	for _, c := range columns {
		set[strings.ToLower(c)] = c
	}
	r.mu.Lock()
	r.tables[table] = set
	r.mu.Unlock()
}

// Add records additional columns for table.
func (r *Registry) Add(table string, columns ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.tables[table]
	if !ok {
		set = make(map[string]string)
		r.tables[table] = set
	}
	for _, c := range columns {
		set[strings.ToLower(c)] = c
	}
}

// Missing returns the names among columns that table lacks, in input order
// and without repeats.
func (r *Registry) Missing(table string, columns []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	seen := make(map[string]bool)
	for _, c := range columns {
		key := strings.ToLower(c)
		if _, ok := r.tables[table][key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		missing = append(missing, c)
	}
	return missing
}
