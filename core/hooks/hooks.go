// Package hooks provides the host's filterable hook points: priority-ordered
// filter chains for active-list reads and capability resolution, plus a
// notifier fan-out for lifecycle events. Lower priorities run earlier; equal
// priorities run in registration order.
package hooks

import (
	"context"
	"errors"
	"sort"
	"time"
)

// LowestPriority is where first-run filters register (the view filter uses
// this so exclusion applies before any other same-event filter).
const LowestPriority = -100

// ListFilter rewrites a list of extension identifiers.
type ListFilter func(list []string) []string

// MapFilter rewrites the cluster-wide active map (identifier -> activation
// unix timestamp).
type MapFilter func(m map[string]int64) map[string]int64

// CapFilter rewrites a resolved capability list for one operation target.
type CapFilter func(caps []string, op string, target string, selected []string) []string

type entry[F any] struct {
	name     string
	priority int
	seq      int
	fn       F
}

type chain[F any] struct {
	entries []entry[F]
	nextSeq int
}

func (c *chain[F]) add(name string, priority int, fn F) {
	c.entries = append(c.entries, entry[F]{name: name, priority: priority, seq: c.nextSeq, fn: fn})
	c.nextSeq++
	sort.SliceStable(c.entries, func(i, j int) bool {
		if c.entries[i].priority != c.entries[j].priority {
			return c.entries[i].priority < c.entries[j].priority
		}
		return c.entries[i].seq < c.entries[j].seq
	})
}

func (c *chain[F]) remove(name string) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

// ListChain is a priority-ordered chain of list filters.
type ListChain struct {
	c chain[ListFilter]
}

// Add registers a named filter at the given priority.
func (lc *ListChain) Add(name string, priority int, fn ListFilter) {
	lc.c.add(name, priority, fn)
}

// Remove unregisters all filters with the given name.
func (lc *ListChain) Remove(name string) {
	lc.c.remove(name)
}

// Apply runs the chain over the input list.
func (lc *ListChain) Apply(list []string) []string {
	for _, e := range lc.c.entries {
		if e.fn != nil {
			list = e.fn(list)
		}
	}
	return list
}

// MapChain is a priority-ordered chain of map filters.
type MapChain struct {
	c chain[MapFilter]
}

func (mc *MapChain) Add(name string, priority int, fn MapFilter) {
	mc.c.add(name, priority, fn)
}

func (mc *MapChain) Remove(name string) {
	mc.c.remove(name)
}

func (mc *MapChain) Apply(m map[string]int64) map[string]int64 {
	for _, e := range mc.c.entries {
		if e.fn != nil {
			m = e.fn(m)
		}
	}
	return m
}

// CapChain is a priority-ordered chain of capability filters.
type CapChain struct {
	c chain[CapFilter]
}

func (cc *CapChain) Add(name string, priority int, fn CapFilter) {
	cc.c.add(name, priority, fn)
}

func (cc *CapChain) Remove(name string) {
	cc.c.remove(name)
}

func (cc *CapChain) Apply(caps []string, op, target string, selected []string) []string {
	for _, e := range cc.c.entries {
		if e.fn != nil {
			caps = e.fn(caps, op, target, selected)
		}
	}
	return caps
}

// Event describes one lifecycle occurrence fanned out to notifiers.
type Event struct {
	ID        string
	Kind      string
	Extension string
	At        time.Time
}

// Notifier receives lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc allows plain functions to satisfy Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn NotifierFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Notifiers fans out events to zero or more notifiers.
type Notifiers []Notifier

// Notify forwards the event to all notifiers, returning a joined error if
// any fail. Events without a kind or extension are dropped.
func (n Notifiers) Notify(ctx context.Context, event Event) error {
	if len(n) == 0 {
		return nil
	}
	if event.Kind == "" || event.Extension == "" {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
