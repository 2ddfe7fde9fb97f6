// Package app wires the evaluation core into a runnable program: it
// loads the workspace configuration, registers every node function with
// the evaluator, runs the requested package lookups, and renders their
// outcomes.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/buildgraph/internal/ctxlog"
	"github.com/vk/buildgraph/internal/evaluator"
	"github.com/vk/buildgraph/internal/events"
	"github.com/vk/buildgraph/internal/extrepo"
	"github.com/vk/buildgraph/internal/filestate"
	"github.com/vk/buildgraph/internal/graph"
	"github.com/vk/buildgraph/internal/nodestore"
	"github.com/vk/buildgraph/internal/pkglookup"
	"github.com/vk/buildgraph/internal/precomputed"
	"github.com/vk/buildgraph/internal/workspace"
)

// App is one configured program instance.
type App struct {
	outW io.Writer
	logW io.Writer
	cfg  *Config
}

// NewApp creates an App writing results to outW and logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	return &App{outW: outW, logW: logW, cfg: cfg}
}

// Run evaluates the configured package lookups and prints one line per
// package. It returns an error when evaluation itself fails (interrupt,
// catastrophe, cycle) or any lookup ends in a failure; lookup misses
// (no build file, deleted, invalid name) are ordinary results.
func (a *App) Run(ctx context.Context) error {
	logger := newLogger(a.cfg.LogLevel, a.cfg.LogFormat, a.logW)
	ctx = ctxlog.WithLogger(ctx, logger)

	snapshot, err := workspace.Load(a.cfg.WorkspacePath)
	if err != nil {
		return err
	}
	holder := workspace.NewHolder(snapshot)
	logger.Debug("Workspace loaded.", "snapshot", snapshot.String())

	fileFn, err := filestate.New()
	if err != nil {
		return err
	}
	injected := precomputed.New()
	injected.Set(precomputed.BuildIDName, precomputed.NewBuildID())

	registry := evaluator.NewRegistry()
	registry.Register(filestate.Domain, fileFn)
	registry.Register(pkglookup.Domain, pkglookup.New(holder))
	registry.Register(pkglookup.PackageDomain, extrepo.New())
	registry.Register(precomputed.Domain, injected)

	ev := evaluator.New(registry, nodestore.New(), events.NewLogListener(logger), evaluator.Options{
		Workers:   a.cfg.WorkerCount,
		KeepGoing: a.cfg.KeepGoing,
	})

	keys := make([]graph.Key, 0, len(a.cfg.Packages))
	for _, pkg := range a.cfg.Packages {
		id, err := pkglookup.ParsePackageID(pkg)
		if err != nil {
			return err
		}
		keys = append(keys, pkglookup.Key{ID: id})
	}

	results, err := ev.Evaluate(ctx, keys...)
	if err != nil {
		return err
	}

	failures := 0
	for i, key := range keys {
		res := results[key]
		if res.Err != nil {
			failures++
			fmt.Fprintf(a.outW, "%s: error: %v\n", a.cfg.Packages[i], res.Err)
			continue
		}
		value := res.Value.(pkglookup.Value)
		switch value.Code {
		case pkglookup.Success:
			fmt.Fprintf(a.outW, "%s: %s found under %s\n", a.cfg.Packages[i], pkglookup.BuildFileName, value.Root)
		case pkglookup.InvalidName:
			fmt.Fprintf(a.outW, "%s: invalid name: %s\n", a.cfg.Packages[i], value.Reason)
		default:
			fmt.Fprintf(a.outW, "%s: %s\n", a.cfg.Packages[i], value.Code)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d package lookup(s) failed", failures)
	}
	return nil
}
