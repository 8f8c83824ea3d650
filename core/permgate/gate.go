// Package permgate denies activate/deactivate/delete capabilities for
// promoted extensions. Denials are appended to the resolved capability list,
// never replacing it, so unrelated host policy survives.
package permgate

import "github.com/extpin/extpin/core/hooks"

// Denied is the blanket denial capability appended for protected targets.
// The host's capability subsystem treats its presence as an unconditional no.
const Denied = "do_not_allow"

// GateFilterName identifies the gate on the capability hook chain.
const GateFilterName = "extpin.permission_gate"

// Op is an operation kind subject to gating.
type Op int

const (
	OpActivate Op = iota
	OpDeactivate
	OpDelete
	OpBulkDelete
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpActivate:
		return "activate"
	case OpDeactivate:
		return "deactivate"
	case OpDelete:
		return "delete"
	case OpBulkDelete:
		return "bulk_delete"
	default:
		return "unknown"
	}
}

// ParseOp maps a capability hook operation name to an Op. The second return
// is false for operations the gate does not police.
func ParseOp(name string) (Op, bool) {
	switch name {
	case "activate", "activate_extension":
		return OpActivate, true
	case "deactivate", "deactivate_extension", "deactivate_plugin":
		return OpDeactivate, true
	case "delete", "delete_extension":
		return OpDelete, true
	case "bulk_delete", "bulk_delete_extensions":
		return OpBulkDelete, true
	default:
		return 0, false
	}
}

// Gate resolves capability checks against the current promoted set.
type Gate struct {
	// Promoted supplies the current promoted set on each check.
	Promoted func() []string
	// Denials receives the operation name each time a denial is appended.
	// Optional.
	Denials func(op string)
}

// New constructs a gate over a promoted-set supplier.
func New(promoted func() []string) *Gate {
	return &Gate{Promoted: promoted}
}

// Resolve appends the blanket denial when the operation targets a promoted
// extension. For OpBulkDelete the selected list is inspected instead of the
// single target. The input list is never truncated or reordered.
func (g *Gate) Resolve(caps []string, op Op, target string, selected []string) []string {
	promoted := make(map[string]bool)
	if g.Promoted != nil {
		for _, id := range g.Promoted() {
			promoted[id] = true
		}
	}

	deny := false
	switch op {
	case OpBulkDelete:
		for _, id := range selected {
			if promoted[id] {
				deny = true
				break
			}
		}
	case OpActivate, OpDeactivate, OpDelete:
		deny = promoted[target]
	}

	if !deny {
		return caps
	}
	if g.Denials != nil {
		g.Denials(op.String())
	}
	return append(caps, Denied)
}

// Install registers the gate on the capability hook chain. Operation names
// the gate does not recognize pass through untouched.
func (g *Gate) Install(caps *hooks.CapChain) {
	if caps == nil {
		return
	}
	caps.Add(GateFilterName, hooks.LowestPriority, func(resolved []string, op, target string, selected []string) []string {
		kind, ok := ParseOp(op)
		if !ok {
			return resolved
		}
		return g.Resolve(resolved, kind, target, selected)
	})
}
