package installer

import (
	"context"
	"path/filepath"

	"github.com/nodestash/nodestash/internals/cache"
	"github.com/nodestash/nodestash/internals/resolver"
)

type fetchState uint8

const (
	stateChecking fetchState = iota
	stateResolving
	stateFetching
	statePublishing
	stateDone
	stateFailed
)

// fetchResult is what a finished fetch task hands to the later stages
type fetchResult struct {
	Name     string
	Version  string
	Upstream map[string]string
	// Entry is the cache entry path this dependency resolved to
	Entry string
	// Scratch is the scratch dir the task allocated ("" if none)
	Scratch string
	// Hit is true when no external fetch was needed
	Hit bool
}

// fetchTask walks one dependency through the pipeline. Every step is
// a discrete transition so the short-circuit logic can be tested
// without standing up a whole pool.
type fetchTask struct {
	inst  *Installer
	dep   resolver.Dependency
	state fetchState

	resolved *resolver.Resolved
	key      cache.Key
	scratch  string
	entry    string
	hit      bool
	err      error
}

func newFetchTask(inst *Installer, dep resolver.Dependency) *fetchTask {
	return &fetchTask{inst: inst, dep: dep, state: stateChecking}
}

// run advances the task until it is done or failed
func (t *fetchTask) run(ctx context.Context) error {
	for t.state != stateDone && t.state != stateFailed {
		t.step(ctx)
	}
	return t.err
}

func (t *fetchTask) step(ctx context.Context) {
	switch t.state {
	case stateChecking:
		t.stepChecking()
	case stateResolving:
		t.stepResolving(ctx)
	case stateFetching:
		t.stepFetching(ctx)
	case statePublishing:
		t.stepPublishing()
	}
}

func (t *fetchTask) fail(err error) {
	t.err = err
	t.state = stateFailed
}

func (t *fetchTask) finish(entry string, hit bool) {
	t.entry = entry
	t.hit = hit
	t.state = stateDone
}

// stepChecking is the fast path: a range that already is an exact
// version can hit the cache without ever contacting the resolver
func (t *fetchTask) stepChecking() {
	if !resolver.IsExactVersion(t.dep.Range) {
		t.state = stateResolving
		return
	}

	key := t.inst.keyFor(t.dep.Name, t.dep.Range)
	if !t.inst.cache.Has(key) {
		t.state = stateResolving
		return
	}

	t.resolved = &resolver.Resolved{Name: t.dep.Name, Version: t.dep.Range}
	t.key = key
	t.finish(t.inst.cache.PathFor(key), true)
}

func (t *fetchTask) stepResolving(ctx context.Context) {
	res, err := t.inst.versions.Resolve(ctx, t.dep)
	if err != nil {
		t.fail(err)
		return
	}

	t.resolved = res
	t.key = t.inst.keyFor(res.Name, res.Version)

	// the literal range may have missed while the resolved version is
	// cached (e.g. "^2.0.0" resolving to an already cached 2.4.2)
	if t.inst.cache.Has(t.key) {
		t.finish(t.inst.cache.PathFor(t.key), true)
		return
	}
	t.state = stateFetching
}

func (t *fetchTask) stepFetching(ctx context.Context) {
	scratch, err := t.inst.cache.ScratchDir(t.dep.Name)
	if err != nil {
		t.fail(err)
		return
	}
	t.scratch = scratch

	err = t.inst.Resolver.FetchAndBuild(ctx, t.resolved.Name, t.resolved.Version, scratch)
	if err != nil {
		t.fail(err)
		return
	}
	t.state = statePublishing
}

func (t *fetchTask) stepPublishing() {
	// a concurrent task may have populated the same key while our
	// fetch was in flight. The scratch output is then abandoned and
	// removed by the cleanup stage.
	if t.inst.cache.Has(t.key) {
		t.finish(t.inst.cache.PathFor(t.key), false)
		return
	}

	target, err := t.inst.cache.Prepare(t.key)
	if err != nil {
		t.fail(err)
		return
	}

	payload := filepath.Join(t.scratch, resolver.PayloadDirName)
	if err := t.inst.materializer.Publish(payload, target); err != nil {
		t.fail(err)
		return
	}
	t.finish(target, false)
}

func (t *fetchTask) result() *fetchResult {
	return &fetchResult{
		Name:     t.resolved.Name,
		Version:  t.resolved.Version,
		Upstream: t.resolved.Upstream,
		Entry:    t.entry,
		Scratch:  t.scratch,
		Hit:      t.hit,
	}
}
