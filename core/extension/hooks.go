package extension

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Hook script names, resolved relative to the extension's directory.
const (
	activateScript   = "activate.sh"
	deactivateScript = "deactivate.sh"
)

// ScriptHooks runs an extension's lifecycle hooks as optional shell scripts
// next to its code. A missing script is a no-op: most extensions have no
// lifecycle work to do.
type ScriptHooks struct {
	root string
}

// NewScriptHooks constructs hooks rooted at the extensions directory.
func NewScriptHooks(root string) *ScriptHooks {
	return &ScriptHooks{root: root}
}

// Activate runs the extension's activation script, if present.
func (h *ScriptHooks) Activate(ctx context.Context, id string) error {
	return h.run(ctx, id, activateScript)
}

// Deactivate runs the extension's deactivation script, if present.
func (h *ScriptHooks) Deactivate(ctx context.Context, id string) error {
	return h.run(ctx, id, deactivateScript)
}

func (h *ScriptHooks) run(ctx context.Context, id, script string) error {
	if err := ValidateIdentifier(id); err != nil {
		return err
	}
	dir := filepath.Join(h.root, filepath.Dir(filepath.FromSlash(id)))
	path := filepath.Join(dir, script)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", path)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "EXTPIN_EXTENSION="+id)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("hook %s for %s: %w: %s", script, id, err, out)
	}
	return nil
}
