package run

import (
	"context"
	"io"

	"github.com/2x3systems/gopredict/gopredict"
	"github.com/2x3systems/gopredict/libpredict/merge"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
)

// Predict accumulates every sample of r in this process and then reports the pair store to env.Out.
// If memory goes over budget, the remaining samples are skipped and what was accumulated is reported.
func Predict(ctx context.Context, env *Env, r io.Reader) (stats Stats, err error) {
	pl, err := env.openPipeline(env.Config.CanonCache, false)
	if err != nil {
		return stats, err
	}
	defer pl.Close()

	stats.Stopped, err = pl.consume(ctx, r, func() (bool, error) {
		return env.Monitor.OverBudget(), nil
	})
	stats.NumSamples = pl.acc.NumSamples
	if err != nil {
		return stats, err
	}
	if stats.Stopped {
		budget, resident := env.Monitor.Budget()
		klog.Warningf("predict: stopped after %d samples, resident %d MiB over budget %d MiB", stats.NumSamples, resident>>20, budget>>20)
	}

	stats.NumPairs, err = env.newEmitter().Report(pl.acc.Store(), env.Config.Summarize)
	klog.V(2).Infof("predict: %d samples, %d graphlets canonized, %d pairs reported", stats.NumSamples, pl.catalog.NumCached(), stats.NumPairs)
	return stats, err
}

// Worker accumulates samples of r, flushing the whole pair store to env.Out as merge lines whenever
// the monitor asks for it and once more at the end of input.  Afterwards the store is empty.
func Worker(ctx context.Context, env *Env, r io.Reader) (stats Stats, err error) {
	pl, err := env.openWorkerPipeline()
	if err != nil {
		return stats, err
	}
	defer pl.Close()

	em := env.newEmitter()
	store := pl.acc.Store()
	flush := func() error {
		numPairs, err := em.Flush(store)
		if err != nil {
			return errors.Wrap(err, "worker flush")
		}
		stats.NumFlushes++
		klog.V(2).Infof("worker: flushed %d pairs after %d samples", numPairs, pl.acc.NumSamples)
		return nil
	}

	_, err = pl.consume(ctx, r, func() (bool, error) {
		if !env.Monitor.ShouldFlush() {
			return false, nil
		}
		if err := flush(); err != nil {
			return false, err
		}
		env.Monitor.Acknowledge()
		return false, nil
	})
	stats.NumSamples = pl.acc.NumSamples
	if err != nil {
		return stats, err
	}
	if err = flush(); err != nil {
		return stats, err
	}
	if store.Len() != 0 {
		return stats, errors.Wrapf(gopredict.ErrInvariant, "%d pairs remain after final flush", store.Len())
	}
	return stats, nil
}

// openWorkerPipeline opens the canonical cache read-only, since sibling workers open it too.
// Without a usable cache the worker canonizes from scratch.
func (env *Env) openWorkerPipeline() (*pipeline, error) {
	if dir := env.Config.CanonCache; dir != "" {
		pl, err := env.openPipeline(dir, true)
		if err == nil {
			return pl, nil
		}
		klog.Warningf("worker: canonical cache %q unavailable, starting cold: %v", dir, err)
	}
	return env.openPipeline("", false)
}

// Merge ingests merge lines from r into one pair store and reports it to env.Out.
// Ingestion stops early if memory goes over budget; what was ingested is still reported.
func Merge(ctx context.Context, env *Env, r io.Reader) (stats Stats, err error) {
	if env.Config.Jobs != 1 {
		return stats, errors.Wrapf(gopredict.ErrConfig, "merge requires jobs=1, got %d", env.Config.Jobs)
	}

	ing := merge.NewIngester(env.newStore(), env.names())
	stats.Stopped, err = ing.IngestReader(r, func() bool {
		return env.Monitor.OverBudget() || ctx.Err() != nil
	})
	stats.NumLines = ing.NumLines
	if err != nil {
		return stats, err
	}
	if err = ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Stopped {
		klog.Warningf("merge: memory over budget, stopped after %d lines", stats.NumLines)
	}

	stats.NumPairs, err = env.newEmitter().Report(ing.Store(), env.Config.Summarize)
	klog.V(2).Infof("merge: %d lines, %d entries, %d pairs reported", ing.NumLines, ing.NumEntries, stats.NumPairs)
	return stats, err
}
