// Package run wires samples, the association memo, the pair store, and the merge protocol into
// the predict, worker, coordinator, and merge-only run modes.
package run

import (
	"context"
	"io"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/canon"
	"github.com/2x3systems/gopredict/libpredict/config"
	"github.com/2x3systems/gopredict/libpredict/graph"
	"github.com/2x3systems/gopredict/libpredict/memwatch"
	"github.com/2x3systems/gopredict/libpredict/merge"
	"github.com/2x3systems/gopredict/libpredict/motif"
	"github.com/2x3systems/gopredict/libpredict/pairstore"
	"github.com/2x3systems/gopredict/libpredict/sample"
	"github.com/2x3systems/gopredict/libpredict/transfer"
)

// Env is what every run mode shares: validated settings, G, the memory monitor, and where output goes.
type Env struct {
	Config  *config.Config
	Opts    gopredict.PredictOpts
	Graph   *graph.Graph
	Monitor *memwatch.Monitor // nil until StartMonitor
	Out     io.Writer

	sampler memwatch.Sampler
}

// Stats summarizes a finished run.
type Stats struct {
	NumSamples int64 // samples accumulated (or distributed, for a coordinator)
	NumLines   int64 // merge lines ingested
	NumFlushes int   // worker flushes, including the final one
	NumPairs   int   // pairs written by the final report
	Stopped    bool  // input was cut short by the memory budget
}

// NewEnv validates cfg against G and returns an Env writing to out.
func NewEnv(cfg *config.Config, g *graph.Graph, out io.Writer) (*Env, error) {
	opts, err := cfg.PredictOpts()
	if err != nil {
		return nil, err
	}
	return &Env{
		Config: cfg,
		Opts:   opts,
		Graph:  g,
		Out:    out,
	}, nil
}

// StartMonitor starts the memory monitor, sampling through sampler (nil selects the OS).
func (env *Env) StartMonitor(ctx context.Context, sampler memwatch.Sampler) error {
	opts, err := env.Config.MemwatchOpts()
	if err != nil {
		return err
	}
	opts.Sampler = sampler
	env.sampler = sampler
	env.Monitor = memwatch.Start(ctx, opts)
	return nil
}

// Close stops the memory monitor.
func (env *Env) Close() {
	env.Monitor.Stop()
	env.Monitor = nil
}

// WithOutput returns a shallow copy of env writing to out.
func (env *Env) WithOutput(out io.Writer) *Env {
	dup := *env
	dup.Out = out
	return &dup
}

func (env *Env) names() gopredict.NameResolver {
	if env.Config.NodeNames {
		return env.Graph
	}
	return nil
}

func (env *Env) newStore() *pairstore.Store {
	return pairstore.New(env.Graph.NumNodes(), pairstore.LayoutFor(env.Opts.Weighting))
}

func (env *Env) newEmitter() *merge.Emitter {
	return merge.NewEmitter(env.Out, env.Graph, env.Config.NodeNames)
}

// pipeline is the per-process chain from sample lines to the pair store.
type pipeline struct {
	catalog *canon.Catalog
	reader  *sample.Reader
	acc     *transfer.Accumulator
}

func (env *Env) openPipeline(cacheDir string, readOnly bool) (*pipeline, error) {
	cat, err := canon.OpenCatalog(canon.CatalogOpts{
		K:          env.Opts.K,
		DbPathName: cacheDir,
		ReadOnly:   readOnly,
	})
	if err != nil {
		return nil, err
	}
	memo, err := motif.NewMemo(cat, env.Opts)
	if err != nil {
		cat.Close()
		return nil, err
	}
	return &pipeline{
		catalog: cat,
		reader:  sample.NewReader(env.Graph, cat, env.Config.NodeNames),
		acc:     transfer.NewAccumulator(memo, env.newStore(), env.Graph, env.Opts),
	}, nil
}

func (pl *pipeline) Close() {
	if pl.catalog != nil {
		pl.catalog.Close()
		pl.catalog = nil
	}
}

// consume accumulates every sample read from r, calling afterEach after each one.
// afterEach ends consumption early by returning stop.
func (pl *pipeline) consume(ctx context.Context, r io.Reader, afterEach func() (stop bool, err error)) (stopped bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream := pl.reader.Stream(ctx, r)
	for s := range stream.Outlet {
		if err = pl.acc.Accumulate(s); err == nil {
			stopped, err = afterEach()
		}
		if err != nil || stopped {
			cancel()
			stream.PullAll()
			return stopped, err
		}
	}
	return false, stream.Err()
}
