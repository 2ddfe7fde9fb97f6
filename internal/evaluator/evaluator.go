package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/buildgraph/internal/ctxlog"
	"github.com/vk/buildgraph/internal/events"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/nodestore"
)

// Options tunes one Evaluator.
type Options struct {
	// Workers is the size of the worker pool. Defaults to 8.
	Workers int
	// KeepGoing keeps evaluating other nodes after an ordinary failure.
	// Catastrophic failures and interrupts halt regardless.
	KeepGoing bool
}

// Evaluator memoizes node computations over a store and drives the
// restart protocol. It is safe for sequential reuse across generations;
// a single Evaluate call fans out over the worker pool internally.
type Evaluator struct {
	registry  *Registry
	store     *nodestore.Store
	listener  events.Listener
	workers   int
	keepGoing bool
}

// New wires an evaluator. The listener receives diagnostic events from
// every node function and must not be nil.
func New(registry *Registry, store *nodestore.Store, listener events.Listener, opts Options) *Evaluator {
	if listener == nil {
		panic("evaluator: nil listener")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	return &Evaluator{
		registry:  registry,
		store:     store,
		listener:  listener,
		workers:   workers,
		keepGoing: opts.KeepGoing,
	}
}

// Store exposes the memo table, mainly for result inspection.
func (ev *Evaluator) Store() *nodestore.Store { return ev.store }

// NextGeneration rolls the memo table into a fresh evaluation
// generation: transient failures are dropped so their nodes recompute
// when next needed. Persistent results stay; invalidating them on input
// changes is the owner's concern.
func (ev *Evaluator) NextGeneration() {
	ev.store.DropTransientFailures()
}

// Evaluate computes the given root keys and everything they transitively
// depend on. The returned map holds one Result per root. The error
// return is reserved for whole-evaluation outcomes: an interrupt, a
// catastrophic failure, or a dependency cycle; per-root failures appear
// in their Results.
func (ev *Evaluator) Evaluate(ctx context.Context, roots ...graph.Key) (map[graph.Key]graph.Result, error) {
	r := &run{ev: ev, ctx: ctx,
		scheduled:   make(map[graph.Key]bool),
		pendingDeps: make(map[graph.Key]int),
		rdeps:       make(map[graph.Key][]graph.Key),
	}
	r.cond = sync.NewCond(&r.mu)

	for _, k := range roots {
		r.schedule(k)
	}

	stop := context.AfterFunc(ctx, func() {
		r.halt(context.Cause(ctx), true)
	})
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < ev.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work()
		}()
	}
	wg.Wait()

	r.mu.Lock()
	var evalErr error
	switch {
	case r.hardHalt:
		evalErr = r.haltErr
	case !r.halted && len(r.pendingDeps) > 0:
		evalErr = fmt.Errorf("dependency cycle detected: %d node(s) parked with unsatisfied dependencies", len(r.pendingDeps))
	}
	softErr := r.haltErr
	r.mu.Unlock()

	results := make(map[graph.Key]graph.Result, len(roots))
	for _, k := range roots {
		if v, ok := ev.store.Value(k); ok {
			results[k] = graph.Result{Value: v}
		} else if err, ok := ev.store.Failure(k); ok {
			results[k] = graph.Result{Err: err}
		} else if softErr != nil {
			// Halted before this root could finish.
			results[k] = graph.Result{Err: softErr}
		} else {
			results[k] = graph.Result{}
		}
	}
	return results, evalErr
}

// run is the per-Evaluate scheduling state. The evaluator serializes
// re-entrancy per key: a key is enqueued at most once until it parks,
// and re-enqueued only when its pending count reaches zero.
type run struct {
	ev  *Evaluator
	ctx context.Context

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []graph.Key
	scheduled   map[graph.Key]bool
	pendingDeps map[graph.Key]int
	rdeps       map[graph.Key][]graph.Key
	active      int
	halted      bool
	hardHalt    bool
	haltErr     error
}

func (r *run) work() {
	for {
		r.mu.Lock()
		for !r.halted && len(r.queue) == 0 && r.active > 0 {
			r.cond.Wait()
		}
		if r.halted || len(r.queue) == 0 {
			r.cond.Broadcast()
			r.mu.Unlock()
			return
		}
		k := r.queue[0]
		r.queue = r.queue[1:]
		r.active++
		r.mu.Unlock()

		r.compute(k)

		r.mu.Lock()
		r.active--
		r.cond.Broadcast()
		r.mu.Unlock()
	}
}

func (r *run) compute(k graph.Key) {
	ev := r.ev
	if err := r.ctx.Err(); err != nil {
		r.halt(context.Cause(r.ctx), true)
		return
	}
	if ev.store.Terminal(k) {
		r.finish(k)
		return
	}
	fn, ok := ev.registry.Lookup(k.Domain())
	if !ok {
		ev.store.SetFailure(k, graph.NewError(k,
			fmt.Errorf("no node function registered for domain %q", k.Domain()), graph.Persistent))
		r.finish(k)
		return
	}

	logger := ctxlog.FromContext(r.ctx)
	if tag := fn.Tag(k); tag != "" {
		logger = logger.With("tag", tag)
	}
	logger.Debug("Computing node.", "key", k.String())

	e := newEnv(ev.store, ev.listener)
	v, err := fn.Compute(r.ctx, k, e)
	ev.store.SetDeps(k, e.deps)

	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// An interrupt is neither a value nor a failure; it
			// propagates immediately without being swallowed.
			r.halt(err, true)
			return
		}
		ge, ok := graph.AsError(err)
		if !ok {
			panic(fmt.Sprintf("node function for %s returned undeclared error type %T: %v", k, err, err))
		}
		ev.store.SetFailure(k, err)
		r.finish(k)
		r.haltOnFailure(ge)
	case v != nil:
		if e.missing {
			panic(fmt.Sprintf("node function for %s produced a value with dependencies still missing", k))
		}
		ev.store.SetValue(k, v)
		r.finish(k)
	case e.bubble != nil:
		// The attempt observed a failed dependency and ended without
		// handling it; the dependency's failure becomes this node's
		// failure, root cause still pointing down the chain.
		ev.store.SetFailure(k, e.bubble)
		r.finish(k)
		if ge, ok := graph.AsError(e.bubble); ok {
			r.haltOnFailure(ge)
		}
	default:
		if !e.missing {
			panic(fmt.Sprintf("node function for %s returned incomplete with no missing dependencies", k))
		}
		r.park(k, e)
	}
}

// park suspends an incomplete attempt until its outstanding dependencies
// reach terminal states. A dependency that failed after the attempt read
// it still wakes the node normally: the re-run re-reads the failure and
// either handles it or bubbles it.
func (r *run) park(k graph.Key, e *env) {
	store := r.ev.store
	var outstanding []graph.Key
	for _, d := range e.deps {
		if !store.Terminal(d) {
			outstanding = append(outstanding, d)
		}
	}

	for _, d := range outstanding {
		r.schedule(d)
	}

	r.mu.Lock()
	if r.halted {
		r.mu.Unlock()
		return
	}
	count := 0
	for _, d := range outstanding {
		// A dependency may have finished between the scan above and
		// taking the lock; finished deps are not waited on. Anything
		// still pending here cannot finish before we register, since
		// finish needs this lock.
		if store.Terminal(d) {
			continue
		}
		r.rdeps[d] = append(r.rdeps[d], k)
		count++
	}
	if count == 0 {
		r.queue = append(r.queue, k)
	} else {
		r.pendingDeps[k] = count
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}

// finish wakes parked requesters of a node that just reached a terminal
// state.
func (r *run) finish(k graph.Key) {
	r.mu.Lock()
	waiters := r.rdeps[k]
	delete(r.rdeps, k)
	for _, w := range waiters {
		r.pendingDeps[w]--
		if r.pendingDeps[w] == 0 {
			delete(r.pendingDeps, w)
			if !r.halted {
				r.queue = append(r.queue, w)
			}
		}
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *run) schedule(k graph.Key) {
	if r.ev.store.Terminal(k) {
		return
	}
	r.mu.Lock()
	if !r.halted && !r.scheduled[k] {
		r.scheduled[k] = true
		r.queue = append(r.queue, k)
		r.cond.Broadcast()
	}
	r.mu.Unlock()
}

func (r *run) haltOnFailure(ge *graph.Error) {
	if ge.Catastrophic() {
		r.halt(ge, true)
	} else if !r.ev.keepGoing {
		r.halt(ge, false)
	}
}

// halt stops scheduling new work. A hard halt (interrupt, catastrophe)
// is reported as the evaluation's own error; a soft halt only stops the
// queue and surfaces through per-root results.
func (r *run) halt(err error, hard bool) {
	r.mu.Lock()
	if !r.halted {
		r.halted = true
		r.haltErr = err
		r.hardHalt = hard
	} else if hard && !r.hardHalt {
		r.hardHalt = true
		r.haltErr = err
	}
	r.queue = nil
	r.cond.Broadcast()
	r.mu.Unlock()
}
