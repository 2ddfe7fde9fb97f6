package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/buildgraph/internal/events"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/nodestore"
)

type testKey struct {
	domain string
	name   string
}

func (k testKey) Domain() string { return k.domain }
func (k testKey) String() string { return k.domain + ":" + k.name }

// computeFunc adapts a closure into a graph.Func for tests.
type computeFunc func(ctx context.Context, key graph.Key, env graph.Env) (graph.Value, error)

func (f computeFunc) Compute(ctx context.Context, key graph.Key, env graph.Env) (graph.Value, error) {
	return f(ctx, key, env)
}

func (f computeFunc) Tag(graph.Key) string { return "" }

type depError struct{ msg string }

func (e *depError) Error() string { return e.msg }

type unrelatedError struct{}

func (e *unrelatedError) Error() string { return "unrelated" }

func newTestEvaluator(t *testing.T, registry *Registry, opts Options) *Evaluator {
	t.Helper()
	return New(registry, nodestore.New(), &events.Capture{}, opts)
}

func TestEvaluateSingleNode(t *testing.T) {
	registry := NewRegistry()
	registry.Register("const", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		return "value-for-" + key.String(), nil
	}))
	ev := newTestEvaluator(t, registry, Options{})

	k := testKey{domain: "const", name: "a"}
	results, err := ev.Evaluate(context.Background(), k)
	require.NoError(t, err)
	require.NoError(t, results[k].Err)
	assert.Equal(t, "value-for-const:a", results[k].Value)
}

func TestRestartAfterDependencyResolves(t *testing.T) {
	childKey := testKey{domain: "child", name: "c"}
	parentKey := testKey{domain: "parent", name: "p"}
	var parentAttempts atomic.Int32

	registry := NewRegistry()
	registry.Register("child", computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		return 21, nil
	}))
	registry.Register("parent", computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		parentAttempts.Add(1)
		raw := env.Value(childKey)
		if env.ValuesMissing() {
			// Incomplete: no value, no failure.
			return nil, nil
		}
		return raw.(int) * 2, nil
	}))
	ev := newTestEvaluator(t, registry, Options{})

	results, err := ev.Evaluate(context.Background(), parentKey)
	require.NoError(t, err)
	require.NoError(t, results[parentKey].Err)
	assert.Equal(t, 42, results[parentKey].Value)

	// First attempt parked on the child, second replayed it from the
	// memo table.
	assert.Equal(t, int32(2), parentAttempts.Load())

	// The declared dependency set survives in the store.
	assert.Equal(t, []graph.Key{childKey}, ev.Store().Deps(parentKey))
}

func TestReplayMatchesDirectComputation(t *testing.T) {
	childKey := testKey{domain: "child", name: "c"}
	parentKey := testKey{domain: "parent", name: "p"}

	parent := computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		raw := env.Value(childKey)
		if env.ValuesMissing() {
			return nil, nil
		}
		return fmt.Sprintf("got %d", raw.(int)), nil
	})
	child := computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		return 7, nil
	})

	// Via restarts.
	registry := NewRegistry()
	registry.Register("child", child)
	registry.Register("parent", parent)
	ev := newTestEvaluator(t, registry, Options{})
	restarted, err := ev.Evaluate(context.Background(), parentKey)
	require.NoError(t, err)

	// With the dependency pre-resolved, so the first attempt completes.
	registry2 := NewRegistry()
	registry2.Register("child", child)
	registry2.Register("parent", parent)
	store2 := nodestore.New()
	store2.SetValue(childKey, 7)
	ev2 := New(registry2, store2, &events.Capture{}, Options{})
	direct, err := ev2.Evaluate(context.Background(), parentKey)
	require.NoError(t, err)

	assert.Equal(t, direct[parentKey].Value, restarted[parentKey].Value)
}

func TestDependencyFailureBubbles(t *testing.T) {
	childKey := testKey{domain: "child", name: "c"}
	parentKey := testKey{domain: "parent", name: "p"}
	childErr := graph.NewError(childKey, &depError{msg: "child broke"}, graph.Persistent)

	registry := NewRegistry()
	registry.Register("child", computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		return nil, childErr
	}))
	registry.Register("parent", computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		env.Value(childKey)
		if env.ValuesMissing() {
			return nil, nil
		}
		return "unreachable", nil
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	results, err := ev.Evaluate(context.Background(), parentKey)
	require.NoError(t, err)
	require.Error(t, results[parentKey].Err)

	// The bubbled failure keeps blaming the child.
	ge, ok := graph.AsError(results[parentKey].Err)
	require.True(t, ok)
	assert.Equal(t, graph.Key(childKey), ge.RootCause())
}

func TestValueOrErrorSurfacesDeclaredClass(t *testing.T) {
	childKey := testKey{domain: "child", name: "c"}
	parentKey := testKey{domain: "parent", name: "p"}

	registry := NewRegistry()
	registry.Register("child", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		return nil, graph.NewError(key, &depError{msg: "handled"}, graph.Persistent)
	}))
	registry.Register("parent", computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		_, err := env.ValueOrError(childKey, graph.ClassOf[*depError]())
		if err != nil {
			return "recovered", nil
		}
		if env.ValuesMissing() {
			return nil, nil
		}
		return "child was fine", nil
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	results, err := ev.Evaluate(context.Background(), parentKey)
	require.NoError(t, err)
	require.NoError(t, results[parentKey].Err)
	assert.Equal(t, "recovered", results[parentKey].Value)
}

func TestUndeclaredFailureClassPanics(t *testing.T) {
	store := nodestore.New()
	childKey := testKey{domain: "child", name: "c"}
	store.SetFailure(childKey, graph.NewError(childKey, &depError{msg: "x"}, graph.Persistent))

	e := newEnv(store, &events.Capture{})
	assert.Panics(t, func() {
		_, _ = e.ValueOrError(childKey, graph.ClassOf[*unrelatedError]())
	})
}

func TestBatchDeclaresEveryKeyDespiteFailures(t *testing.T) {
	store := nodestore.New()
	failedKey := testKey{domain: "d", name: "failed"}
	doneKey := testKey{domain: "d", name: "done"}
	pendingKey := testKey{domain: "d", name: "pending"}
	store.SetFailure(failedKey, graph.NewError(failedKey, &depError{msg: "x"}, graph.Persistent))
	store.SetValue(doneKey, "v")

	e := newEnv(store, &events.Capture{})
	keys := []graph.Key{failedKey, doneKey, pendingKey}
	results := e.ValuesOrErrors(keys, graph.ClassOf[*depError]())

	require.Len(t, results, 3)
	assert.Error(t, results[failedKey].Err)
	assert.Equal(t, "v", results[doneKey].Value)
	assert.Nil(t, results[pendingKey].Value)
	assert.NoError(t, results[pendingKey].Err)

	// All three declared, in order, and values are flagged missing.
	assert.Equal(t, keys, e.deps)
	assert.True(t, e.ValuesMissing())
}

func TestIncompleteAttemptHasNoOutcome(t *testing.T) {
	store := nodestore.New()
	e := newEnv(store, &events.Capture{})
	pending := testKey{domain: "d", name: "pending"}

	fn := computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		env.Value(pending)
		if env.ValuesMissing() {
			return nil, nil
		}
		return "done", nil
	})

	v, err := fn.Compute(context.Background(), testKey{domain: "d", name: "n"}, e)
	assert.Nil(t, v)
	assert.NoError(t, err)
	assert.True(t, e.ValuesMissing())
}

func TestCatastrophicFailureHaltsEvenWithKeepGoing(t *testing.T) {
	badKey := testKey{domain: "bad", name: "b"}
	registry := NewRegistry()
	registry.Register("bad", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		return nil, graph.NewCatastrophicError(key, &depError{msg: "the sky is falling"}, graph.Transient)
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	_, err := ev.Evaluate(context.Background(), badKey)
	require.Error(t, err)
	ge, ok := graph.AsError(err)
	require.True(t, ok)
	assert.True(t, ge.Catastrophic())
}

func TestKeepGoingEvaluatesOtherRoots(t *testing.T) {
	goodKey := testKey{domain: "good", name: "g"}
	badKey := testKey{domain: "bad", name: "b"}

	registry := NewRegistry()
	registry.Register("good", computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		return "fine", nil
	}))
	registry.Register("bad", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		return nil, graph.NewError(key, &depError{msg: "no"}, graph.Persistent)
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	results, err := ev.Evaluate(context.Background(), goodKey, badKey)
	require.NoError(t, err)
	assert.Equal(t, "fine", results[goodKey].Value)
	assert.Error(t, results[badKey].Err)
}

func TestInterruptPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	key := testKey{domain: "slow", name: "s"}

	registry := NewRegistry()
	registry.Register("slow", computeFunc(func(ctx context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		cancel()
		return nil, ctx.Err()
	}))
	ev := newTestEvaluator(t, registry, Options{})

	_, err := ev.Evaluate(ctx, key)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The interrupted node has no recorded outcome.
	assert.False(t, ev.Store().Terminal(key))
}

func TestDependencyCycleIsReported(t *testing.T) {
	aKey := testKey{domain: "cyc", name: "a"}
	bKey := testKey{domain: "cyc", name: "b"}

	registry := NewRegistry()
	registry.Register("cyc", computeFunc(func(_ context.Context, key graph.Key, env graph.Env) (graph.Value, error) {
		other := aKey
		if key == graph.Key(aKey) {
			other = bKey
		}
		env.Value(other)
		if env.ValuesMissing() {
			return nil, nil
		}
		return "unreachable", nil
	}))
	ev := newTestEvaluator(t, registry, Options{})

	_, err := ev.Evaluate(context.Background(), aKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestUnknownDomainFails(t *testing.T) {
	ev := newTestEvaluator(t, NewRegistry(), Options{KeepGoing: true})
	k := testKey{domain: "nowhere", name: "n"}

	results, err := ev.Evaluate(context.Background(), k)
	require.NoError(t, err)
	require.Error(t, results[k].Err)
	assert.Contains(t, results[k].Err.Error(), "no node function registered")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	fn := computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		return nil, nil
	})
	registry.Register("d", fn)
	assert.Panics(t, func() { registry.Register("d", fn) })
}

func TestNextGenerationRecomputesTransientFailures(t *testing.T) {
	key := testKey{domain: "flaky", name: "f"}
	var attempts atomic.Int32

	registry := NewRegistry()
	registry.Register("flaky", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		if attempts.Add(1) == 1 {
			return nil, graph.NewError(key, errors.New("io hiccup"), graph.Transient)
		}
		return "healed", nil
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	results, err := ev.Evaluate(context.Background(), key)
	require.NoError(t, err)
	require.Error(t, results[key].Err)

	ev.NextGeneration()

	results, err = ev.Evaluate(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, results[key].Err)
	assert.Equal(t, "healed", results[key].Value)
}

func TestPersistentFailuresStayCached(t *testing.T) {
	key := testKey{domain: "det", name: "d"}
	var attempts atomic.Int32

	registry := NewRegistry()
	registry.Register("det", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		attempts.Add(1)
		return nil, graph.NewError(key, errors.New("bad input"), graph.Persistent)
	}))
	ev := newTestEvaluator(t, registry, Options{KeepGoing: true})

	_, err := ev.Evaluate(context.Background(), key)
	require.NoError(t, err)
	ev.NextGeneration()
	results, err := ev.Evaluate(context.Background(), key)
	require.NoError(t, err)

	require.Error(t, results[key].Err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestMemoizedValueIsReusedAcrossEvaluations(t *testing.T) {
	key := testKey{domain: "memo", name: "m"}
	var attempts atomic.Int32

	registry := NewRegistry()
	registry.Register("memo", computeFunc(func(_ context.Context, _ graph.Key, _ graph.Env) (graph.Value, error) {
		attempts.Add(1)
		return "cached", nil
	}))
	ev := newTestEvaluator(t, registry, Options{})

	for i := 0; i < 3; i++ {
		results, err := ev.Evaluate(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, "cached", results[key].Value)
	}
	assert.Equal(t, int32(1), attempts.Load())
}

func TestWideFanOut(t *testing.T) {
	// One root over many leaves exercises the worker pool and the
	// single-restart-point batching.
	const leaves = 100
	rootKey := testKey{domain: "root", name: "r"}
	leafKeys := make([]graph.Key, leaves)
	for i := range leafKeys {
		leafKeys[i] = testKey{domain: "leaf", name: fmt.Sprintf("l%d", i)}
	}

	registry := NewRegistry()
	registry.Register("leaf", computeFunc(func(_ context.Context, key graph.Key, _ graph.Env) (graph.Value, error) {
		return 1, nil
	}))
	registry.Register("root", computeFunc(func(_ context.Context, _ graph.Key, env graph.Env) (graph.Value, error) {
		results := env.ValuesOrErrors(leafKeys)
		if env.ValuesMissing() {
			return nil, nil
		}
		sum := 0
		for _, res := range results {
			sum += res.Value.(int)
		}
		return sum, nil
	}))
	ev := newTestEvaluator(t, registry, Options{Workers: 16})

	results, err := ev.Evaluate(context.Background(), rootKey)
	require.NoError(t, err)
	assert.Equal(t, leaves, results[rootKey].Value)
}
