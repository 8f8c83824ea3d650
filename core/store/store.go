// Package store provides the host's key-value persistence consumed by the
// promotion system. Values are identifier lists (node-scope active list,
// promoted-set cache) and identifier maps (cluster-wide active map). A scope
// flag selects the single-node or cluster-wide backend.
package store

import "context"

// Scope distinguishes single-node from cluster-wide storage.
type Scope int

const (
	ScopeNode Scope = iota
	ScopeCluster
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeNode:
		return "node"
	case ScopeCluster:
		return "cluster"
	default:
		return "unknown"
	}
}

// Store is one KV backend. Absent keys read as empty values with a nil error.
type Store interface {
	GetList(ctx context.Context, key string) ([]string, error)
	PutList(ctx context.Context, key string, vals []string) error
	GetMap(ctx context.Context, key string) (map[string]int64, error)
	PutMap(ctx context.Context, key string, vals map[string]int64) error
	Close() error
}

// Scoped routes reads and writes to the backend for a scope flag.
type Scoped struct {
	node    Store
	cluster Store
}

// NewScoped pairs a node-scope and a cluster-scope backend.
func NewScoped(node, cluster Store) *Scoped {
	return &Scoped{node: node, cluster: cluster}
}

// For returns the backend for the given scope.
func (s *Scoped) For(scope Scope) Store {
	if scope == ScopeCluster {
		return s.cluster
	}
	return s.node
}

// Close closes both backends, returning the first error.
func (s *Scoped) Close() error {
	var first error
	if s.node != nil {
		if err := s.node.Close(); err != nil {
			first = err
		}
	}
	if s.cluster != nil {
		if err := s.cluster.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
