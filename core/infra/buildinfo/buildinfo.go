// Package buildinfo carries version metadata stamped at link time.
package buildinfo

import (
	"fmt"

	"github.com/extpin/extpin/core/infra/logging"
)

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
)

// Info returns a single-line build summary.
func Info() string {
	return fmt.Sprintf("version=%s commit=%s built=%s", Version, Commit, BuiltAt)
}

// Log writes the build summary under the given component prefix.
func Log(component string) {
	logging.Info(component, "build info", "version", Version, "commit", Commit, "built", BuiltAt)
}
