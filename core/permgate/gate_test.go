package permgate

import (
	"testing"

	"github.com/extpin/extpin/core/hooks"
)

func promotedSet(ids ...string) func() []string {
	return func() []string { return ids }
}

func TestResolveDeniesPromotedTarget(t *testing.T) {
	g := New(promotedSet("b/b.php"))

	got := g.Resolve([]string{"manage_extensions"}, OpDeactivate, "b/b.php", nil)
	if len(got) != 2 || got[0] != "manage_extensions" || got[1] != Denied {
		t.Fatalf("expected appended denial, got %v", got)
	}

	got = g.Resolve([]string{"manage_extensions"}, OpDeactivate, "a/a.php", nil)
	if len(got) != 1 || got[0] != "manage_extensions" {
		t.Fatalf("expected unmodified caps, got %v", got)
	}
}

func TestResolveBulkDeleteInspectsSelection(t *testing.T) {
	g := New(promotedSet("b/b.php"))

	got := g.Resolve(nil, OpBulkDelete, "", []string{"a/a.php", "b/b.php"})
	if len(got) != 1 || got[0] != Denied {
		t.Fatalf("expected denial for selection containing promoted, got %v", got)
	}

	got = g.Resolve(nil, OpBulkDelete, "", []string{"a/a.php"})
	if len(got) != 0 {
		t.Fatalf("expected no denial, got %v", got)
	}
}

func TestResolveCountsDenials(t *testing.T) {
	g := New(promotedSet("b/b.php"))
	var ops []string
	g.Denials = func(op string) { ops = append(ops, op) }

	g.Resolve(nil, OpDelete, "b/b.php", nil)
	g.Resolve(nil, OpDelete, "a/a.php", nil)
	if len(ops) != 1 || ops[0] != "delete" {
		t.Fatalf("unexpected denial ops: %v", ops)
	}
}

func TestInstallOnCapChain(t *testing.T) {
	var caps hooks.CapChain
	New(promotedSet("b/b.php")).Install(&caps)

	got := caps.Apply([]string{"manage_extensions"}, "deactivate_plugin", "b/b.php", nil)
	if len(got) != 2 || got[1] != Denied {
		t.Fatalf("expected denial via chain, got %v", got)
	}

	// Unrecognized operations pass through.
	got = caps.Apply([]string{"edit_posts"}, "edit_posts", "b/b.php", nil)
	if len(got) != 1 || got[0] != "edit_posts" {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestParseOp(t *testing.T) {
	if op, ok := ParseOp("deactivate_plugin"); !ok || op != OpDeactivate {
		t.Fatalf("unexpected parse: %v %v", op, ok)
	}
	if _, ok := ParseOp("edit_posts"); ok {
		t.Fatalf("expected edit_posts unrecognized")
	}
	if OpBulkDelete.String() != "bulk_delete" {
		t.Fatalf("unexpected op name")
	}
}
