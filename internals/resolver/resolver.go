// Package resolver turns declared dependencies into concrete versions.
package resolver

import (
	"context"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// PayloadDirName is the directory inside a fetch destination that
// holds the actual package content. FetchAndBuild implementations
// place the payload there; everything else in the destination is
// fetch residue (tarballs, build intermediates).
const PayloadDirName = "package"

// Dependency is a single declared dependency as found in a manifest
type Dependency struct {
	Name string
	// Range is a semver range ("^2.0.0"), an exact version ("1.0.0")
	// or the latest sentinel ("*" / "latest" / "")
	Range string
}

// PackageInfo is the upstream view of a package: its published
// versions and the version currently tagged latest
type PackageInfo struct {
	Name     string
	Latest   string
	Versions []string
	// Dist maps a version to its distribution metadata (tarball url,
	// shasum). Optional; registries that have it fill it in.
	Dist map[string]map[string]string
}

// Resolved is a dependency pinned to one concrete version
type Resolved struct {
	Name    string
	Version string
	// Upstream carries registry metadata for the selected version
	// (tarball url, integrity) when the upstream provides it
	Upstream map[string]string
}

// PackageResolver is the external capability the pipeline builds on.
// Implementations talk to a registry (or a test double).
type PackageResolver interface {
	// ListVersions returns all published versions of a package plus
	// the latest tag
	ListVersions(ctx context.Context, name string) (*PackageInfo, error)
	// FetchAndBuild downloads and builds name@version into destDir
	FetchAndBuild(ctx context.Context, name string, version string, destDir string) error
}

// VersionResolver selects a concrete version for a dependency using
// an upstream PackageResolver
type VersionResolver struct {
	Upstream PackageResolver
	// OnFallback is called when a range is unsatisfiable and the
	// latest version is used instead. Reporting only.
	OnFallback func(dep Dependency, latest string)
}

// New returns a VersionResolver querying the given upstream
func New(upstream PackageResolver) *VersionResolver {
	return &VersionResolver{Upstream: upstream}
}

// IsExactVersion reports whether a range literal already is a single
// concrete version ("1.0.0" is, "^1.0.0" and "latest" are not)
func IsExactVersion(rangeStr string) bool {
	_, err := semver.StrictNewVersion(rangeStr)
	return err == nil
}

func isLatestSentinel(rangeStr string) bool {
	return rangeStr == "" || rangeStr == "*" || rangeStr == "latest"
}

// Resolve pins dep to a concrete version. Unsatisfiable ranges fall
// back to the latest published version instead of failing; only an
// upstream query failure is an error.
func (r *VersionResolver) Resolve(ctx context.Context, dep Dependency) (*Resolved, error) {
	info, err := r.Upstream.ListVersions(ctx, dep.Name)
	if err != nil {
		return nil, &ResolutionError{Package: dep.Name, Range: dep.Range, Err: err}
	}

	version := info.Latest
	if !isLatestSentinel(dep.Range) {
		version = r.selectVersion(dep, info)
	}

	return &Resolved{
		Name:     dep.Name,
		Version:  version,
		Upstream: info.Dist[version],
	}, nil
}

// selectVersion picks the highest published version that satisfies the
// range without exceeding the latest tag
func (r *VersionResolver) selectVersion(dep Dependency, info *PackageInfo) string {
	constraint, err := semver.NewConstraint(dep.Range)
	if err != nil {
		// not a parsable range, an exact match in the version list
		// is still honored
		for _, v := range info.Versions {
			if v == dep.Range {
				return v
			}
		}
		return r.fallback(dep, info)
	}

	latest, latestErr := semver.NewVersion(info.Latest)

	candidates := make([]*semver.Version, 0, len(info.Versions))
	for _, raw := range info.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if latestErr == nil && v.GreaterThan(latest) {
			continue
		}
		candidates = append(candidates, v)
	}

	if len(candidates) == 0 {
		return r.fallback(dep, info)
	}

	sort.Sort(semver.Collection(candidates))
	return candidates[len(candidates)-1].Original()
}

func (r *VersionResolver) fallback(dep Dependency, info *PackageInfo) string {
	if r.OnFallback != nil {
		r.OnFallback(dep, info.Latest)
	}
	return info.Latest
}
