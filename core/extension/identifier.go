// Package extension defines identifier validation and the loader contract
// for host extensions.
package extension

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Suffix is the fixed filename suffix every extension identifier must carry.
const Suffix = ".php"

// ErrInvalidIdentifier marks a malformed or unsafe extension identifier.
// Caller error, always surfaced, never recovered.
var ErrInvalidIdentifier = errors.New("invalid extension identifier")

// ValidateIdentifier checks that id is a relative-path-safe token ending in
// Suffix: no absolute paths, no traversal sequences, no backslashes, and the
// cleaned path must equal the input.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if strings.ContainsRune(id, '\\') {
		return fmt.Errorf("%w: backslash in %q", ErrInvalidIdentifier, id)
	}
	if path.IsAbs(id) {
		return fmt.Errorf("%w: absolute path %q", ErrInvalidIdentifier, id)
	}
	if !strings.HasSuffix(id, Suffix) {
		return fmt.Errorf("%w: %q does not end in %s", ErrInvalidIdentifier, id, Suffix)
	}
	for _, seg := range strings.Split(id, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: traversal segment in %q", ErrInvalidIdentifier, id)
		}
	}
	if path.Clean(id) != id {
		return fmt.Errorf("%w: non-canonical path %q", ErrInvalidIdentifier, id)
	}
	return nil
}
