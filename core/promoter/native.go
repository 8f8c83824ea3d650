package promoter

import (
	"context"

	"github.com/extpin/extpin/core/store"
)

// StoreNative reads the native active set from the host's KV persistence,
// unioning the single-node active list with the cluster-wide active map.
// It reads the backends directly, never through the active-view filter.
type StoreNative struct {
	scoped *store.Scoped
}

// NewStoreNative wraps scope-flagged storage.
func NewStoreNative(scoped *store.Scoped) *StoreNative {
	return &StoreNative{scoped: scoped}
}

func (n *StoreNative) NativeActive(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)

	list, err := n.scoped.For(store.ScopeNode).GetList(ctx, store.KeyActive)
	if err != nil {
		return nil, err
	}
	for _, id := range list {
		out[id] = true
	}

	network, err := n.scoped.For(store.ScopeCluster).GetMap(ctx, store.KeyActiveNetwork)
	if err != nil {
		return nil, err
	}
	for id := range network {
		out[id] = true
	}
	return out, nil
}
