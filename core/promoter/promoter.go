// Package promoter implements the reconciliation engine: it decides, for
// each extension identifier, whether an activation or deactivation hook must
// fire, and guarantees each fires at most once per actual promotion or
// demotion.
//
// The engine runs in three phases per process: the promotion phase
// (Promote), the steady state where the view filter and permission gate are
// active, and the shutdown phase (ReconcileOnShutdown) where the cache is
// committed and out-of-band deactivation triggers fire.
package promoter

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/extpin/extpin/core/extension"
	"github.com/extpin/extpin/core/hooks"
	"github.com/extpin/extpin/core/infra/logging"
	"github.com/extpin/extpin/core/infra/metrics"
)

// NativeReader reads the host's own ground truth of independently toggled
// extensions, bypassing the active-view filter to avoid self-reference.
type NativeReader interface {
	NativeActive(ctx context.Context) (map[string]bool, error)
}

// Trigger requests out-of-band deactivation of one identifier.
type Trigger interface {
	Fire(ctx context.Context, id string)
}

// Options configure a Promoter. Loader, Hooks, Cache, and Native are
// required; Trigger, Metrics, and Notifiers are optional.
type Options struct {
	Loader    extension.Loader
	Hooks     extension.Hooks
	Cache     *CacheStore
	Native    NativeReader
	Trigger   Trigger
	Metrics   metrics.Metrics
	Notifiers hooks.Notifiers
}

// Promoter is the reconciliation engine. It is caller-owned: construct it,
// seed it with the promoted set, install the filters, and commit at
// shutdown.
type Promoter struct {
	loader    extension.Loader
	hooks     extension.Hooks
	cache     *CacheStore
	native    NativeReader
	trigger   Trigger
	metrics   metrics.Metrics
	notifiers hooks.Notifiers

	mu          sync.Mutex
	promoted    []string
	promotedSet map[string]bool
	pending     []string
	scheduled   map[string]bool

	nativeOnce sync.Once
	nativeSet  map[string]bool
}

// New constructs a Promoter.
func New(opts Options) *Promoter {
	m := opts.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Promoter{
		loader:      opts.Loader,
		hooks:       opts.Hooks,
		cache:       opts.Cache,
		native:      opts.Native,
		trigger:     opts.Trigger,
		metrics:     m,
		notifiers:   opts.Notifiers,
		promotedSet: make(map[string]bool),
		scheduled:   make(map[string]bool),
	}
}

// Promote appends one identifier to the promoted set, loads its code, and
// schedules its activation hook when this is a genuine first promotion.
//
// Validation and existence checks run on every call, including repeats. A
// repeated identifier is not re-appended, not re-loaded, and never
// re-scheduled: activation fires at most once per identifier per process no
// matter how often Promote is called with it.
func (p *Promoter) Promote(ctx context.Context, id string) error {
	if err := extension.ValidateIdentifier(id); err != nil {
		return err
	}
	if !p.loader.Exists(id) {
		return extension.ErrNotInstalled
	}

	// The cached set must be read before any promotion mutates in-process
	// state, so needsActivation never compares against a partial cache.
	cached := p.cache.Get(ctx)
	native := p.nativeActive(ctx)

	p.mu.Lock()
	if !p.promotedSet[id] {
		p.promotedSet[id] = true
		p.promoted = append(p.promoted, id)
	}
	needsActivation := !contains(cached, id) && !native[id] && !p.scheduled[id]
	if needsActivation {
		p.scheduled[id] = true
		p.pending = append(p.pending, id)
	}
	p.mu.Unlock()

	if err := p.loader.Load(ctx, id); err != nil {
		return err
	}
	if needsActivation {
		logging.Debug("promoter", "activation scheduled", "extension", id)
	}
	return nil
}

// RunPending fires the scheduled activation hooks, deferred here so each
// extension's own initialization completes before its hook runs. Each hook
// fires exactly once; hook errors are logged and do not unschedule the
// remaining hooks.
func (p *Promoter) RunPending(ctx context.Context) {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, id := range batch {
		if err := p.hooks.Activate(ctx, id); err != nil {
			logging.Error("promoter", "activation hook", "extension", id, "error", err)
			continue
		}
		p.metrics.IncActivations()
		p.notify(ctx, "activated", id)
		logging.Info("promoter", "extension activated", "extension", id)
	}
}

// ReconcileOnShutdown compares the cached set against the final promoted
// set, issues one out-of-band deactivation trigger per demoted extension
// that is not natively active, and commits the promoted set to the cache
// store. All failures here are non-fatal.
func (p *Promoter) ReconcileOnShutdown(ctx context.Context) {
	cached := p.cache.Get(ctx)
	native := p.nativeActive(ctx)

	p.mu.Lock()
	promoted := append([]string(nil), p.promoted...)
	promotedSet := make(map[string]bool, len(p.promotedSet))
	for id := range p.promotedSet {
		promotedSet[id] = true
	}
	p.mu.Unlock()

	for _, id := range cached {
		if promotedSet[id] {
			continue
		}
		if native[id] {
			// Natively active extensions stay active on their own merit.
			logging.Debug("promoter", "demotion skipped, natively active", "extension", id)
			continue
		}
		if p.trigger != nil {
			p.trigger.Fire(ctx, id)
			p.notify(ctx, "deactivation_triggered", id)
			logging.Info("promoter", "deactivation triggered", "extension", id)
		}
	}

	result := p.cache.Commit(ctx, promoted)
	p.metrics.IncCacheCommits(result)
}

// Promoted returns a copy of the current promoted set in promotion order.
func (p *Promoter) Promoted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.promoted...)
}

// IsPromoted reports membership in the promoted set.
func (p *Promoter) IsPromoted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.promotedSet[id]
}

// GetCachedSet returns the promoted set as persisted by the previous
// process lifetime.
func (p *Promoter) GetCachedSet(ctx context.Context) []string {
	return p.cache.Get(ctx)
}

// nativeActive snapshots the host's unfiltered active set once per process.
func (p *Promoter) nativeActive(ctx context.Context) map[string]bool {
	p.nativeOnce.Do(func() {
		if p.native == nil {
			p.nativeSet = map[string]bool{}
			return
		}
		set, err := p.native.NativeActive(ctx)
		if err != nil {
			logging.Error("promoter", "read native active set", "error", err)
			set = map[string]bool{}
		}
		p.nativeSet = set
	})
	return p.nativeSet
}

func (p *Promoter) notify(ctx context.Context, kind, id string) {
	if err := p.notifiers.Notify(ctx, hooks.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Extension: id,
	}); err != nil {
		logging.Error("promoter", "lifecycle notification", "kind", kind, "extension", id, "error", err)
	}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
