package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"portal/internal/account"
)

var (
	ErrUnknownQuery   = errors.New("unknown query")
	ErrQueryForbidden = errors.New("query not available for this role")
)

// Query is a named read that dashboards subscribe to.
type Query struct {
	Name        string
	Collections []string
	Roles       []account.Role
	Run         func(ctx context.Context, viewer account.Profile) (any, error)
}

// Allows reports whether role may run q.
func (q Query) Allows(role account.Role) bool {
	for _, r := range q.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Reads reports whether q depends on collection.
func (q Query) Reads(collection string) bool {
	for _, c := range q.Collections {
		if c == collection {
			return true
		}
	}
	return false
}

// Registry holds the queries by name.
type Registry struct {
	mu      sync.RWMutex
	queries map[string]Query
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{queries: map[string]Query{}}
}

// Register adds q, replacing any query with the same name.
func (r *Registry) Register(q Query) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[q.Name] = q
}

// Lookup finds a query by name.
func (r *Registry) Lookup(name string) (Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queries[name]
	return q, ok
}

// Resolve looks up every name and checks role may run it.
func (r *Registry) Resolve(names []string, role account.Role) ([]Query, error) {
	out := make([]Query, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		q, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, name)
		}
		if !q.Allows(role) {
			return nil, fmt.Errorf("%w: %s", ErrQueryForbidden, name)
		}
		out = append(out, q)
	}
	return out, nil
}

// Run executes the named query for viewer.
func (r *Registry) Run(ctx context.Context, name string, viewer account.Profile) (any, error) {
	qs, err := r.Resolve([]string{name}, viewer.Role)
	if err != nil {
		return nil, err
	}
	return qs[0].Run(ctx, viewer)
}

// Names lists the registered queries in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
