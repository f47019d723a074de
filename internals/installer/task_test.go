package installer

import (
	"context"
	"os"
	"testing"

	"github.com/nodestash/nodestash/internals/resolver"
)

// the state machine tests drive single transitions so the
// short-circuit logic is visible without running a whole pool

func TestTaskFastPathOnCachedExactVersion(t *testing.T) {
	upstream := newFakeResolver()
	inst := testInstaller(t, upstream, t.TempDir())

	// pre-populate the cache entry the fast path should find
	target, err := inst.Cache().Prepare(inst.keyFor("left-pad", "1.0.0"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}

	task := newFetchTask(inst, resolver.Dependency{Name: "left-pad", Range: "1.0.0"})
	task.step(context.Background())

	if task.state != stateDone {
		t.Fatalf("fast path did not finish the task, state is %d", task.state)
	}
	if !task.hit {
		t.Error("fast path should count as a cache hit")
	}
	if list, _ := upstream.counts(); list != 0 {
		t.Errorf("fast path contacted the resolver %d times", list)
	}
}

func TestTaskChecksCacheAgainAfterResolving(t *testing.T) {
	upstream := newFakeResolver()
	inst := testInstaller(t, upstream, t.TempDir())

	// the literal range "^2.0.0" can not hit, the resolved version can
	target, err := inst.Cache().Prepare(inst.keyFor("chalk", "2.4.2"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}

	task := newFetchTask(inst, resolver.Dependency{Name: "chalk", Range: "^2.0.0"})
	task.step(context.Background()) // checking
	if task.state != stateResolving {
		t.Fatalf("range dependency skipped resolution, state is %d", task.state)
	}

	task.step(context.Background()) // resolving
	if task.state != stateDone {
		t.Fatalf("resolved version should have hit the cache, state is %d", task.state)
	}
	if _, fetches := upstream.counts(); fetches != 0 {
		t.Errorf("cache hit still fetched %d times", fetches)
	}
}

func TestTaskAbandonsScratchWhenRaceLost(t *testing.T) {
	upstream := newFakeResolver()
	inst := testInstaller(t, upstream, t.TempDir())

	task := newFetchTask(inst, resolver.Dependency{Name: "chalk", Range: "^2.0.0"})
	task.step(context.Background()) // checking
	task.step(context.Background()) // resolving
	task.step(context.Background()) // fetching
	if task.state != statePublishing {
		t.Fatalf("expected the task to reach publishing, state is %d", task.state)
	}

	// another task populates the same key while this one fetched
	target, err := inst.Cache().Prepare(task.key)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}

	task.step(context.Background()) // publishing
	if task.state != stateDone {
		t.Fatalf("task did not finish, state is %d", task.state)
	}

	// the fetched scratch output is abandoned in place for cleanup
	if _, err := os.Stat(task.scratch); err != nil {
		t.Error("scratch dir vanished, it should be left for the cleanup stage")
	}
	res := task.result()
	if res.Scratch == "" {
		t.Error("result should record the scratch dir for cleanup")
	}
}

func TestTaskStateSequenceOnColdCache(t *testing.T) {
	upstream := newFakeResolver()
	inst := testInstaller(t, upstream, t.TempDir())

	task := newFetchTask(inst, resolver.Dependency{Name: "chalk", Range: "^2.0.0"})

	wantedStates := []fetchState{stateResolving, stateFetching, statePublishing, stateDone}
	for _, wanted := range wantedStates {
		task.step(context.Background())
		if task.state != wanted {
			t.Fatalf("unexpected state %d, wanted %d", task.state, wanted)
		}
	}

	if task.hit {
		t.Error("a cold-cache task should not count as a hit")
	}
	if !inst.Cache().Has(task.key) {
		t.Error("finished task did not populate the cache")
	}
}
