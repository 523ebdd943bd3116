package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/2x3systems/gopredict/libpredict/config"
	"github.com/2x3systems/gopredict/libpredict/graph"
	"github.com/2x3systems/gopredict/libpredict/run"
	"github.com/2x3systems/gopredict/libpredict/score"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	fset := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	rootCmd := newRootCmd()
	rootCmd.PersistentFlags().AddGoFlagSet(fset)

	err := rootCmd.Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gopredict",
		Short: "Graphlet-based link prediction",
		Long: `gopredict scores node pairs of a graph by the graphlets they appear in.

Each sampled graphlet (k nodes of G) contributes association signatures to every
pair of its nodes.  Tallies are written as merge lines:

  <u>:<v> <edge01>\t<sig> <tally>\t<sig> <tally>...

Settings come from PREDICT_* environment variables, an optional YAML file
(--config or PREDICT_CONFIG), and the flags below, in increasing precedence.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML settings file")
	pf.Int("k", 4, "graphlet size (3..8)")
	pf.IntP("jobs", "j", 1, "worker processes")
	pf.String("signature", "edge", "association signature: pair | edge | quad")
	pf.String("identity", "canonical", "canonical pair identity: canonical | orbit")
	pf.String("weighting", "uniform", "tally weighting: uniform | degree | distinct")
	pf.String("orbits", "", "predictive pair filter: inline k:g:o:p tokens or a file of them")
	pf.Bool("names", false, "nodes are named rather than numbered")
	pf.Bool("summarize", false, "report distinct internal edges per signature prefix (distinct weighting)")
	pf.String("memory-margin", "1GB", "RAM held back from the memory budget")
	pf.String("canon-cache", "", "directory caching canonical forms across runs")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "predict <graph> [samples]",
		Short: "Accumulate graphlet samples and report every pair's tallies",
		Long: `Reads samples (k nodes per line) from the samples file or stdin.
With --jobs > 1, samples are dealt to worker processes whose flushed tallies are merged.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPredict,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:    "worker <graph>",
		Short:  "Accumulate samples from stdin, periodically flushing merge lines to stdout",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE:   runWorker,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "merge <graph>",
		Short: "Sum merge lines from stdin and report every pair's tallies",
		Args:  cobra.ExactArgs(1),
		RunE:  runMerge,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "score [predictions]",
		Short: "Print AUROC, AUPR, and NDCG of rows ending in <score> <label>",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScore,
	})

	return rootCmd
}

// loadConfig resolves settings from the environment, the config file, and any flags set.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := flags.GetString("config"); path != "" {
		if cfg, err = config.LoadFile(path); err == nil {
			err = cfg.ApplyEnv()
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.Changed("k") {
		cfg.K, _ = flags.GetInt("k")
	}
	if flags.Changed("jobs") {
		cfg.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("signature") {
		cfg.Signature, _ = flags.GetString("signature")
	}
	if flags.Changed("identity") {
		cfg.Identity, _ = flags.GetString("identity")
	}
	if flags.Changed("weighting") {
		cfg.Weighting, _ = flags.GetString("weighting")
	}
	if flags.Changed("orbits") {
		cfg.Orbits, _ = flags.GetString("orbits")
	}
	if flags.Changed("names") {
		cfg.NodeNames, _ = flags.GetBool("names")
	}
	if flags.Changed("summarize") {
		cfg.Summarize, _ = flags.GetBool("summarize")
	}
	if flags.Changed("memory-margin") {
		cfg.MemoryMargin, _ = flags.GetString("memory-margin")
	}
	if flags.Changed("canon-cache") {
		cfg.CanonCache, _ = flags.GetString("canon-cache")
	}
	return cfg, cfg.Validate()
}

// setup loads settings and G and starts the memory monitor.  The returned done func releases both.
func setup(cmd *cobra.Command, graphPath string) (ctx context.Context, env *run.Env, done func(), err error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return
	}

	g, err := graph.LoadFile(graphPath, graph.LoadOpts{Names: cfg.NodeNames})
	if err != nil {
		return
	}
	klog.V(2).Infof("loaded %q: %d nodes, %d edges", graphPath, g.NumNodes(), g.NumEdges())

	if env, err = run.NewEnv(cfg, g, cmd.OutOrStdout()); err != nil {
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if err = env.StartMonitor(ctx, nil); err != nil {
		stop()
		return
	}
	done = func() {
		env.Close()
		stop()
	}
	return ctx, env, done, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx, env, done, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer done()

	var samples io.Reader = cmd.InOrStdin()
	if len(args) > 1 {
		file, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer file.Close()
		samples = file
	}

	var stats run.Stats
	if env.Config.Jobs > 1 {
		workerCfg := *env.Config
		workerCfg.Jobs = 1
		stats, err = run.Coordinate(ctx, env, samples, &run.ExecSpawner{
			Args: []string{"worker", args[0]},
			Env:  workerCfg.Environ(),
		})
	} else {
		stats, err = run.Predict(ctx, env, samples)
	}
	if err != nil {
		return err
	}
	klog.Infof("predict: %d samples, %d pairs reported", stats.NumSamples, stats.NumPairs)
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, env, done, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer done()

	stats, err := run.Worker(ctx, env, cmd.InOrStdin())
	if err != nil {
		return err
	}
	klog.V(2).Infof("worker: %d samples, %d flushes", stats.NumSamples, stats.NumFlushes)
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx, env, done, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer done()

	_, err = run.Merge(ctx, env, cmd.InOrStdin())
	return err
}

func runScore(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) > 0 {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}

	preds, err := score.ReadPredictions(in)
	if err != nil {
		return err
	}
	sc, err := score.Score(preds)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "positives\t%d\nnegatives\t%d\nAUROC\t%.6f\nAUPR\t%.6f\nNDCG\t%.6f\n",
		sc.NumPositive, sc.NumNegative, sc.AUROC, sc.AUPR, sc.NDCG)
	return nil
}
