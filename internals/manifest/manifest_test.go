package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"name": "my-app",
		"version": "0.1.0",
		"dependencies": {"left-pad": "1.0.0", "chalk": "^2.0.0"},
		"devDependencies": {"prettier": "*"}
	}`)

	man, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if man.Name != "my-app" {
		t.Errorf("unexpected name %q", man.Name)
	}
	if man.Dependencies["chalk"] != "^2.0.0" {
		t.Errorf("unexpected chalk range %q", man.Dependencies["chalk"])
	}
	if man.DevDependencies["prettier"] != "*" {
		t.Errorf("unexpected prettier range %q", man.DevDependencies["prettier"])
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())

	var manErr *ManifestError
	if !errors.As(err, &manErr) {
		t.Fatalf("expected a ManifestError, got %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{not json`)

	var manErr *ManifestError
	if _, err := Load(dir); !errors.As(err, &manErr) {
		t.Fatalf("expected a ManifestError, got %v", err)
	}
}

func TestDependencyList(t *testing.T) {
	man := &Manifest{
		Dependencies:    map[string]string{"left-pad": "1.0.0"},
		DevDependencies: map[string]string{"prettier": "*"},
	}

	all := man.DependencyList(true)
	if len(all) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(all))
	}
	prodOnly := man.DependencyList(false)
	if len(prodOnly) != 1 || prodOnly[0].Name != "left-pad" {
		t.Fatalf("unexpected production list: %+v", prodOnly)
	}
}

func TestDependencyListRuntimeLast(t *testing.T) {
	// a name declared in both groups: the runtime range has to come
	// later so it wins during result aggregation
	man := &Manifest{
		Dependencies:    map[string]string{"chalk": "2.4.2"},
		DevDependencies: map[string]string{"chalk": "^1.0.0"},
	}

	deps := man.DependencyList(true)
	if len(deps) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(deps))
	}
	if deps[len(deps)-1].Range != "2.4.2" {
		t.Errorf("runtime range should be last, got order %+v", deps)
	}
}
