// Package installer runs the cache population and materialization
// pipeline: a bounded fetch fan-out over the declared dependencies,
// a publish pass into the working set and a scratch cleanup pass.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nodestash/nodestash/internals/cache"
	"github.com/nodestash/nodestash/internals/manifest"
	"github.com/nodestash/nodestash/internals/mirror"
	"github.com/nodestash/nodestash/internals/platform"
	"github.com/nodestash/nodestash/internals/resolver"
)

// ModulesDirName is the working set directory created inside the
// project directory
const ModulesDirName = "node_modules"

// DefaultConcurrency bounds each stage's fan-out when the config does
// not say otherwise
const DefaultConcurrency = 5

// Config carries everything a run needs
type Config struct {
	// Dir is the project directory (contains the manifest, receives
	// the working set)
	Dir string
	// CacheRoot overrides the default package cache location
	CacheRoot string
	// Concurrency bounds each stage's parallel work (0 = default)
	Concurrency int
	// IncludeDev includes devDependencies
	IncludeDev bool
	// KeepModules leaves an existing working set in place instead of
	// renaming it aside
	KeepModules bool
	// Arch / ABI override the detected platform tags
	Arch string
	ABI  string
}

// ConfigError is returned when a run's config is unusable
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Reason
}

// CleanupError is returned when a scratch directory could not be
// removed after an otherwise successful run
type CleanupError struct {
	Dir string
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("could not clean up %s: %v", e.Dir, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// Module is one installed package in a RunResult
type Module struct {
	Version string `json:"version"`
	// Path is where the module was materialized
	Path string `json:"path"`
	// Upstream is registry metadata for the installed version, if the
	// resolver provided any
	Upstream map[string]string `json:"upstream,omitempty"`
}

// Stats summarizes what a run actually did
type Stats struct {
	CacheHits int
	Fetches   int
}

// RunResult is returned after a successful run
type RunResult struct {
	Platform platform.Info     `json:"platform"`
	Modules  map[string]Module `json:"modules"`
	Stats    Stats             `json:"-"`
}

// Reporter receives progress messages. The cmdlog Logger satisfies
// this; a nil Reporter silences the pipeline.
type Reporter interface {
	Log(s string)
	Warn(s string)
}

// Installer ties the pipeline pieces together
type Installer struct {
	// Resolver is the external fetch/build capability
	Resolver resolver.PackageResolver

	cfg          Config
	cache        *cache.Cache
	versions     *resolver.VersionResolver
	materializer *mirror.Materializer
	platform     platform.Info
	report       Reporter
}

// New validates cfg and returns an Installer using the given package
// resolver
func New(cfg Config, pkgResolver resolver.PackageResolver) (*Installer, error) {
	if cfg.Dir == "" {
		return nil, &ConfigError{Reason: "no project directory given"}
	}
	if info, err := os.Stat(cfg.Dir); err != nil || !info.IsDir() {
		return nil, &ConfigError{Reason: "project directory " + cfg.Dir + " does not exist"}
	}
	if cfg.CacheRoot == "" {
		root, err := platform.DefaultCacheRoot()
		if err != nil {
			return nil, &ConfigError{Reason: "could not determine cache root: " + err.Error()}
		}
		cfg.CacheRoot = root
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	inst := &Installer{
		Resolver:     pkgResolver,
		cfg:          cfg,
		cache:        cache.New(cfg.CacheRoot),
		versions:     resolver.New(pkgResolver),
		materializer: mirror.NewMaterializer(),
		platform:     platform.Detect(cfg.Arch, cfg.ABI),
	}
	inst.versions.OnFallback = func(dep resolver.Dependency, latest string) {
		inst.warnf("no version of %s matches %s, using latest (%s)", dep.Name, dep.Range, latest)
	}
	return inst, nil
}

// SetReporter wires progress reporting into the pipeline
func (i *Installer) SetReporter(r Reporter) {
	i.report = r
}

// Cache returns the package cache this installer works against
func (i *Installer) Cache() *cache.Cache {
	return i.cache
}

// Platform returns the platform the run targets
func (i *Installer) Platform() platform.Info {
	return i.platform
}

// ModulesDir returns the working set directory for this project
func (i *Installer) ModulesDir() string {
	return filepath.Join(i.cfg.Dir, ModulesDirName)
}

func (i *Installer) keyFor(name string, version string) cache.Key {
	return cache.Key{
		Name:    name,
		Version: version,
		Arch:    i.platform.Arch,
		ABI:     i.platform.ABI,
	}
}

// Run executes the full pipeline for the given dependencies. On the
// first error the run aborts and no partial result is returned;
// scratch dirs of a failed run stay on disk for inspection.
func (i *Installer) Run(ctx context.Context, deps []resolver.Dependency) (*RunResult, error) {
	if err := i.prepareModulesDir(); err != nil {
		return nil, err
	}

	results, err := i.fetchAll(ctx, deps)
	if err != nil {
		return nil, err
	}

	if err := i.publishAll(results); err != nil {
		return nil, err
	}

	if err := i.cleanupAll(results); err != nil {
		return nil, err
	}

	return i.reduce(results), nil
}

// RunManifest runs the pipeline for a loaded project manifest. Which
// dependency groups take part is decided by the config's IncludeDev.
func (i *Installer) RunManifest(ctx context.Context, man *manifest.Manifest) (*RunResult, error) {
	return i.Run(ctx, man.DependencyList(i.cfg.IncludeDev))
}

// prepareModulesDir renames an existing working set aside (unless the
// config keeps it) so a run never silently destroys one
func (i *Installer) prepareModulesDir() error {
	dest := i.ModulesDir()
	if _, err := os.Stat(dest); err != nil || i.cfg.KeepModules {
		return nil
	}

	backup := dest + "-" + time.Now().Format("20060102-150405")
	if err := os.Rename(dest, backup); err != nil {
		return &ConfigError{Reason: "could not move existing " + ModulesDirName + " aside: " + err.Error()}
	}
	i.logf("moved existing %s to %s", ModulesDirName, filepath.Base(backup))
	return nil
}

// fetchAll is the bounded fan-out that brings every dependency into
// the cache. Results are index-aligned with deps.
func (i *Installer) fetchAll(ctx context.Context, deps []resolver.Dependency) ([]*fetchResult, error) {
	results := make([]*fetchResult, len(deps))

	err := runBounded(len(deps), i.cfg.Concurrency, func(n int) error {
		task := newFetchTask(i, deps[n])
		if err := task.run(ctx); err != nil {
			return err
		}
		res := task.result()
		if res.Hit {
			i.logf("%s@%s found in cache", res.Name, res.Version)
		} else {
			i.logf("fetched %s@%s", res.Name, res.Version)
		}
		results[n] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// publishAll mirrors every resolved cache entry into the working set.
// Always a copy: cache entries have to survive for future runs.
func (i *Installer) publishAll(results []*fetchResult) error {
	dest := i.ModulesDir()
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	return runBounded(len(results), i.cfg.Concurrency, func(n int) error {
		res := results[n]
		return mirror.Mirror(res.Entry, filepath.Join(dest, res.Name))
	})
}

// cleanupAll removes the scratch dirs of the run. An already missing
// dir counts as clean (its content was moved into the cache).
func (i *Installer) cleanupAll(results []*fetchResult) error {
	scratch := make([]string, 0, len(results))
	for _, res := range results {
		if res.Scratch != "" {
			scratch = append(scratch, res.Scratch)
		}
	}

	return runBounded(len(scratch), i.cfg.Concurrency, func(n int) error {
		dir := scratch[n]
		if _, err := os.Stat(dir); err != nil {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return &CleanupError{Dir: dir, Err: err}
		}
		return nil
	})
}

// reduce aggregates the per-task results into the RunResult. Walking
// the results in input order makes the duplicate-name policy
// deterministic: later entries win, and the manifest loader orders
// runtime dependencies last.
func (i *Installer) reduce(results []*fetchResult) *RunResult {
	result := RunResult{
		Platform: i.platform,
		Modules:  make(map[string]Module, len(results)),
	}
	dest := i.ModulesDir()

	for _, res := range results {
		if res.Hit {
			result.Stats.CacheHits++
		} else {
			result.Stats.Fetches++
		}
		result.Modules[res.Name] = Module{
			Version:  res.Version,
			Path:     filepath.Join(dest, res.Name),
			Upstream: res.Upstream,
		}
	}
	return &result
}

func (i *Installer) logf(format string, a ...interface{}) {
	if i.report != nil {
		i.report.Log(fmt.Sprintf(format, a...))
	}
}

func (i *Installer) warnf(format string, a ...interface{}) {
	if i.report != nil {
		i.report.Warn(fmt.Sprintf(format, a...))
	}
}
