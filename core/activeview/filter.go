// Package activeview rewrites reads of the host's active-extension views so
// promoted extensions never appear in the host's native toggle lists. A
// companion include pass can add an externally-supplied set back into the
// effective view for read consumers.
package activeview

import "github.com/extpin/extpin/core/hooks"

// Filter names on the host's hook chains.
const (
	ExcludeFilterName = "extpin.exclude_promoted"
	IncludeFilterName = "extpin.include_active"
)

// Filter removes promoted identifiers from active-list reads.
type Filter struct {
	// Promoted supplies the current promoted set on each read.
	Promoted func() []string
	// Suppress disables exclusion entirely (batch/administrative contexts
	// that expect the full installed list).
	Suppress bool
	// LoadAll, together with Suppress, turns exclusion into a union of the
	// native list and the promoted set.
	LoadAll bool
}

// New constructs a filter over a promoted-set supplier.
func New(promoted func() []string) *Filter {
	return &Filter{Promoted: promoted}
}

func (f *Filter) promoted() map[string]bool {
	set := make(map[string]bool)
	if f.Promoted != nil {
		for _, id := range f.Promoted() {
			set[id] = true
		}
	}
	return set
}

// Apply rewrites the single-node active list.
func (f *Filter) Apply(native []string) []string {
	if f.Suppress {
		if !f.LoadAll {
			return native
		}
		return union(native, f.Promoted)
	}
	promoted := f.promoted()
	out := make([]string, 0, len(native))
	for _, id := range native {
		if !promoted[id] {
			out = append(out, id)
		}
	}
	return out
}

// ApplyNetwork rewrites the cluster-wide active map (identifier ->
// activation unix timestamp).
func (f *Filter) ApplyNetwork(native map[string]int64) map[string]int64 {
	if f.Suppress {
		if !f.LoadAll {
			return native
		}
		out := make(map[string]int64, len(native))
		for id, ts := range native {
			out[id] = ts
		}
		if f.Promoted != nil {
			for _, id := range f.Promoted() {
				if _, ok := out[id]; !ok {
					out[id] = 0
				}
			}
		}
		return out
	}
	promoted := f.promoted()
	out := make(map[string]int64, len(native))
	for id, ts := range native {
		if !promoted[id] {
			out[id] = ts
		}
	}
	return out
}

// Include returns a list filter that adds extra identifiers back into the
// view. It is additive only and introduces no duplicates.
func Include(extra func() []string) hooks.ListFilter {
	return func(list []string) []string {
		if extra == nil {
			return list
		}
		seen := make(map[string]bool, len(list))
		for _, id := range list {
			seen[id] = true
		}
		for _, id := range extra() {
			if !seen[id] {
				seen[id] = true
				list = append(list, id)
			}
		}
		return list
	}
}

// Install registers the exclusion filter at the lowest priority on both
// active-list chains, so it runs before any other same-event filter.
func (f *Filter) Install(lists *hooks.ListChain, maps *hooks.MapChain) {
	if lists != nil {
		lists.Add(ExcludeFilterName, hooks.LowestPriority, f.Apply)
	}
	if maps != nil {
		maps.Add(ExcludeFilterName, hooks.LowestPriority, f.ApplyNetwork)
	}
}

// InstallInclude registers an include-back pass after the exclusion filter.
func InstallInclude(lists *hooks.ListChain, extra func() []string) {
	if lists != nil {
		lists.Add(IncludeFilterName, hooks.LowestPriority+1, Include(extra))
	}
}

func union(native []string, promoted func() []string) []string {
	seen := make(map[string]bool, len(native))
	out := make([]string, 0, len(native))
	for _, id := range native {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if promoted != nil {
		for _, id := range promoted() {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
