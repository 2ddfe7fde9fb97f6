package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/buildgraph/internal/artifact"
	"github.com/vk/buildgraph/internal/events"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/precomputed"
)

// Func is the node function for the action domain. It is stateless per
// call; the executor's Probe is what makes restarted attempts cheap.
type Func struct {
	executor Executor
	actions  map[string]*Action
}

// NewFunc wires the function over its execution collaborator and the
// actions it can be asked about.
func NewFunc(executor Executor, actions []*Action) *Func {
	byID := make(map[string]*Action, len(actions))
	for _, a := range actions {
		if _, exists := byID[a.ID]; exists {
			panic(fmt.Sprintf("action '%s' registered twice", a.ID))
		}
		byID[a.ID] = a
	}
	return &Func{executor: executor, actions: byID}
}

// Compute implements graph.Func.
func (f *Func) Compute(ctx context.Context, key graph.Key, env graph.Env) (graph.Value, error) {
	k := key.(Key)
	a, ok := f.actions[k.ID]
	if !ok {
		return nil, graph.NewError(key, fmt.Errorf("unknown action '%s'", k.ID), graph.Persistent)
	}

	alreadyRan := f.executor.Probe(a)
	resolved, execErr := f.checkInputs(env, a, alreadyRan)
	if execErr != nil {
		f.executor.ReportNotExecuted(a, execErr.RootCauses)
		return nil, f.wrap(key, execErr, false)
	}

	if a.Volatile || a.NotifyOnCacheHit {
		// Depending on the build id guarantees the action is
		// re-considered every build generation even when no real input
		// changed.
		env.Value(precomputed.BuildIDKey())
	}
	if env.ValuesMissing() {
		return nil, nil
	}

	// If this is a restart after declaring newly discovered inputs, the
	// executor returns the already-computed result from the first run.
	value, err := f.executor.Execute(ctx, a, resolved)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}
	var executeErr *ExecutionError
	if err != nil && !errors.As(err, &executeErr) {
		executeErr = &ExecutionError{Msg: err.Error(), ActionID: a.ID, cause: err}
	}
	if executeErr != nil {
		f.executor.ReportFailure(a)
		f.executor.ReportNotExecuted(a, executeErr.RootCauses)
	}

	// Second, smaller dependency wave, on success and failure alike:
	// source inputs used only during dynamic discovery still need
	// tracking for invalidation.
	f.declareAdditionalDeps(env, a)

	if executeErr != nil {
		return nil, f.wrap(key, executeErr, true)
	}
	if env.ValuesMissing() {
		return nil, nil
	}
	return value, nil
}

// Tag implements graph.Func. All info/warning messages associated with
// actions should always be displayed.
func (f *Func) Tag(graph.Key) string { return "" }

// checkInputs declares dependencies on all known inputs of the action
// and classifies each resolved value. The full input set is always
// scanned: missing inputs must all be collected for root-cause
// reporting, and the evaluator needs every edge declared even from a
// failing attempt.
func (f *Func) checkInputs(env graph.Env, a *Action, alreadyRan bool) (*ResolvedInputs, *ExecutionError) {
	keys := f.inputKeys(a)
	deps := env.ValuesOrErrors(keys, artifact.MissingInputClass, ExecutionClass)

	// If the action already ran, break out early: deps are declared,
	// and the input map would go unused.
	if alreadyRan {
		return nil, nil
	}

	// Only populate input data once every value is present; a pass with
	// missing deps still scans for errors, since this may be the last
	// chance to report them.
	populate := !env.ValuesMissing()
	metadata := make(map[artifact.Artifact]artifact.FileValue)
	expanded := make(map[artifact.Artifact][]artifact.Artifact)

	var missingInputs []artifact.Artifact
	var rootCauses []string
	rootCauseSeen := make(map[string]struct{})
	var firstExecErr *ExecutionError

	for _, depKey := range keys {
		input := depKey.(artifact.Key).Artifact
		res := deps[depKey]
		if res.Err != nil {
			var missing *artifact.MissingInputError
			var execErr *ExecutionError
			switch {
			case errors.As(res.Err, &missing):
				missingInputs = append(missingInputs, input)
				if input.Owner != "" {
					if _, seen := rootCauseSeen[input.Owner]; !seen {
						rootCauseSeen[input.Owner] = struct{}{}
						rootCauses = append(rootCauses, input.Owner)
					}
				}
			case errors.As(res.Err, &execErr):
				// First failure wins the throw; the rest are only
				// surfaced as events.
				if firstExecErr == nil {
					firstExecErr = execErr
				} else {
					f.executor.ReportNotExecuted(a, execErr.RootCauses)
				}
			}
			continue
		}
		if !populate || res.Value == nil {
			continue
		}
		switch v := res.Value.(type) {
		case *artifact.AggregateValue:
			for _, entry := range v.Constituents() {
				metadata[entry.Artifact] = entry.Metadata
			}
			// The aggregate's own digest is kept too; cache checking
			// may want it.
			metadata[input] = v.SelfData()
			expanded[input] = v.ConstituentArtifacts()
		case artifact.FileValue:
			metadata[input] = v
		}
	}

	// Rethrow the first execution error: it carries the useful message.
	if firstExecErr != nil {
		return nil, firstExecErr
	}

	if len(missingInputs) > 0 {
		for _, input := range missingInputs {
			env.Listener().Handle(events.Errorf(a.Owner.Location,
				"%s: missing input file '%s'", a.Owner.Label, input))
		}
		return nil, &ExecutionError{
			Msg:        fmt.Sprintf("%d input file(s) do not exist", len(missingInputs)),
			ActionID:   a.ID,
			RootCauses: rootCauses,
		}
	}
	return newResolvedInputs(metadata, expanded), nil
}

func (f *Func) inputKeys(a *Action) []graph.Key {
	if !a.DiscoversInputs {
		return toKeys(a.Inputs, nil)
	}
	mandatory := a.MandatoryInputs
	if mandatory == nil {
		mandatory = []artifact.Artifact{}
	}
	return toKeys(a.Inputs, mandatory)
}

// toKeys maps inputs to artifact keys. A nil mandatory slice means the
// action does not discover inputs, so every input is mandatory.
func toKeys(inputs []artifact.Artifact, mandatory []artifact.Artifact) []graph.Key {
	if mandatory == nil {
		keys := make([]graph.Key, 0, len(inputs))
		for _, in := range inputs {
			keys = append(keys, artifact.ValueKey(in, true))
		}
		return keys
	}

	mandatorySet := make(map[artifact.Artifact]struct{}, len(mandatory))
	for _, m := range mandatory {
		mandatorySet[m] = struct{}{}
	}
	seen := make(map[artifact.Key]struct{})
	var keys []graph.Key
	add := func(k artifact.Key) {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, in := range inputs {
		_, isMandatory := mandatorySet[in]
		add(artifact.ValueKey(in, isMandatory))
	}
	// Inputs may fail to be a superset of the mandatory set when loaded
	// from a stale cache; declare the mandatory ones explicitly.
	for _, m := range mandatory {
		add(artifact.ValueKey(m, true))
	}
	return keys
}

// declareAdditionalDeps issues the post-execution dependency wave on the
// source-artifact subset of a discovering action's inputs.
func (f *Func) declareAdditionalDeps(env graph.Env, a *Action) {
	if !a.DiscoversInputs {
		return
	}
	var sources []artifact.Artifact
	for _, in := range a.Inputs {
		if in.Source {
			sources = append(sources, in)
		}
	}
	mandatory := a.MandatoryInputs
	if mandatory == nil {
		mandatory = []artifact.Artifact{}
	}
	for _, depKey := range toKeys(sources, mandatory) {
		env.Value(depKey)
	}
}

// wrap packages an execution failure as the node's own error. Transience
// is conservatively transient: there is not enough information to tell a
// deterministic compiler error from an IO error without the executor
// declaring it. Catastrophe mirrors the underlying action failure.
func (f *Func) wrap(key graph.Key, execErr *ExecutionError, alreadyReported bool) *graph.Error {
	var cause error = execErr
	if alreadyReported {
		cause = &AlreadyReportedError{Err: execErr}
	}
	if execErr.Catastrophe {
		return graph.NewCatastrophicError(key, cause, graph.Transient)
	}
	return graph.NewError(key, cause, graph.Transient)
}
