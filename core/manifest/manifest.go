// Package manifest loads the operator-declared promoted set from a YAML
// file. The manifest is the daemon's only promotion source: every listed
// identifier is promoted in order at startup.
package manifest

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/extpin/extpin/core/infra/schema"
)

const manifestSchemaFile = "schema/manifest.schema.json"

//go:embed schema/*.json
var manifestSchemaFS embed.FS

// Manifest declares the promoted set plus the view-filter flags. Suppress
// disables the active-view exclusion; LoadAll additionally folds promoted
// extensions into the active views.
type Manifest struct {
	Extensions []string `yaml:"extensions"`
	Suppress   bool     `yaml:"suppress,omitempty"`
	LoadAll    bool     `yaml:"load_all,omitempty"`
}

// Parse parses manifest data from YAML bytes. Identifier semantics are not
// checked here; the promoter validates each entry when it is promoted.
func Parse(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errors.New("manifest is empty")
	}
	if err := validateManifestSchema(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return nil, errors.New("manifest path is empty")
	}

	// #nosec G304 -- manifest path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	return m, nil
}

func validateManifestSchema(data []byte) error {
	schemaBytes, err := manifestSchemaFS.ReadFile(manifestSchemaFile)
	if err != nil {
		return fmt.Errorf("load manifest schema: %w", err)
	}
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if err := schema.Validate("manifest", schemaBytes, payload); err != nil {
		return fmt.Errorf("validate manifest: %w", err)
	}
	return nil
}
