// Package manifest reads project manifests (package.json)
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodestash/nodestash/internals/resolver"
)

// Filename is the manifest file looked for in a project directory
const Filename = "package.json"

// ManifestError is returned when a project has no usable manifest
type ManifestError struct {
	Dir string
	Err error
}

func (e *ManifestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no %s found in %s", Filename, e.Dir)
	}
	return fmt.Sprintf("invalid %s in %s: %v", Filename, e.Dir, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Manifest is a parsed package.json. Only the fields the installer
// needs are mapped.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// Load reads the manifest from projectDir
func Load(projectDir string) (*Manifest, error) {
	buf, err := os.ReadFile(filepath.Join(projectDir, Filename))
	if err != nil {
		return nil, &ManifestError{Dir: projectDir}
	}

	man := Manifest{}
	if err := json.Unmarshal(buf, &man); err != nil {
		return nil, &ManifestError{Dir: projectDir, Err: err}
	}
	return &man, nil
}

// DependencyList flattens the manifest's dependency groups into the
// list the pipeline consumes. Dev dependencies come first so that a
// name declared in both groups resolves to the runtime range in the
// final result (later entries win during aggregation).
func (m *Manifest) DependencyList(includeDev bool) []resolver.Dependency {
	deps := make([]resolver.Dependency, 0, len(m.Dependencies)+len(m.DevDependencies))

	if includeDev {
		for name, rangeStr := range m.DevDependencies {
			deps = append(deps, resolver.Dependency{Name: name, Range: rangeStr})
		}
	}
	for name, rangeStr := range m.Dependencies {
		deps = append(deps, resolver.Dependency{Name: name, Range: rangeStr})
	}
	return deps
}
