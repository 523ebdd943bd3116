package run

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/2x3systems/gopredict/libpredict/merge"
	"github.com/2x3systems/gopredict/libpredict/sample"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"
	"golang.org/x/sync/errgroup"
)

// WorkerProc is a running worker: sample lines go to Stdin, merge lines come back on Stdout.
type WorkerProc struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	wait   func() error
}

// Wait blocks until the worker exits.  Stdout must be read to EOF first.
func (wp *WorkerProc) Wait() error {
	return wp.wait()
}

// Spawner starts workers for a coordinator.
type Spawner interface {
	Spawn(ctx context.Context, id int) (*WorkerProc, error)
}

// ExecSpawner runs each worker as a child process, typically "gopredict worker <graph>".
type ExecSpawner struct {
	Path string   // executable; "" selects the running executable
	Args []string // arguments after the executable name
	Env  []string // appended to this process's environment
}

func (sp *ExecSpawner) Spawn(ctx context.Context, id int) (*WorkerProc, error) {
	path := sp.Path
	if path == "" {
		var err error
		if path, err = os.Executable(); err != nil {
			return nil, err
		}
	}

	cmd := exec.CommandContext(ctx, path, sp.Args...)
	cmd.Env = append(os.Environ(), sp.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting worker %d", id)
	}
	klog.Infof("coordinator: started worker %d (pid %d)", id, cmd.Process.Pid)

	return &WorkerProc{
		Stdin:  stdin,
		Stdout: stdout,
		wait:   cmd.Wait,
	}, nil
}

// InProcessSpawner runs each worker on its own goroutines, connected through pipes.
type InProcessSpawner struct {
	Env *Env
}

func (sp *InProcessSpawner) Spawn(ctx context.Context, id int) (*WorkerProc, error) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)

	// Like a child process, each worker watches memory on its own.
	env := sp.Env.WithOutput(outW)
	if err := env.StartMonitor(ctx, sp.Env.sampler); err != nil {
		return nil, err
	}

	go func() {
		defer env.Close()
		stats, err := Worker(ctx, env, inR)
		if err != nil {
			err = errors.Wrapf(err, "worker %d", id)
		} else {
			klog.V(2).Infof("coordinator: worker %d done, %d samples, %d flushes", id, stats.NumSamples, stats.NumFlushes)
		}
		inR.CloseWithError(err)
		outW.CloseWithError(err)
		done <- err
	}()

	return &WorkerProc{
		Stdin:  inW,
		Stdout: outR,
		wait: func() error {
			return <-done
		},
	}, nil
}

// Coordinate deals the sample lines of r round-robin to env.Config.Jobs workers, ingests the merge
// lines they flush into a single pair store, and reports it to env.Out.
//
// Only the calling goroutine touches the pair store.  If memory goes over budget, the workers are
// stopped, their remaining output is discarded, and what was ingested so far is reported.
func Coordinate(ctx context.Context, env *Env, r io.Reader, spawner Spawner) (stats Stats, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := env.Config.Jobs
	workers := make([]*WorkerProc, 0, jobs)
	for id := 0; id < jobs; id++ {
		wp, err := spawner.Spawn(ctx, id)
		if err != nil {
			cancel()
			for _, started := range workers {
				started.Stdin.Close()
				io.Copy(io.Discard, started.Stdout)
				started.Wait()
			}
			return stats, err
		}
		workers = append(workers, wp)
	}
	klog.Infof("coordinator: %d workers running", jobs)

	grp, grpCtx := errgroup.WithContext(ctx)
	lines := make(chan string, 64*jobs)

	for _, wp := range workers {
		wp := wp
		grp.Go(func() error {
			return pumpLines(grpCtx, wp, lines)
		})
	}

	grp.Go(func() error {
		n, err := dealSamples(grpCtx, r, workers)
		stats.NumSamples = n
		return err
	})

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- grp.Wait()
		close(lines)
	}()

	ing := merge.NewIngester(env.newStore(), env.names())
	var ingestErr error
	for line := range lines {
		if ingestErr != nil || stats.Stopped {
			continue
		}
		if ingestErr = ing.IngestLine(line); ingestErr != nil {
			ingestErr = errors.Wrapf(ingestErr, "merge line %d", ing.NumLines+1)
			cancel()
			continue
		}
		if env.Monitor.OverBudget() {
			stats.Stopped = true
			cancel()
		}
	}
	stats.NumLines = ing.NumLines
	workersErr := <-waitErr

	switch {
	case ingestErr != nil:
		return stats, ingestErr
	case stats.Stopped:
		budget, resident := env.Monitor.Budget()
		klog.Warningf("coordinator: resident %d MiB over budget %d MiB, stopped after %d merge lines", resident>>20, budget>>20, stats.NumLines)
		if workersErr != nil {
			klog.V(2).Infof("coordinator: workers stopped with %v", workersErr)
		}
	case workersErr != nil:
		return stats, workersErr
	}

	stats.NumPairs, err = env.newEmitter().Report(ing.Store(), env.Config.Summarize)
	klog.Infof("coordinator: %d samples dealt, %d merge lines ingested, %d pairs reported", stats.NumSamples, stats.NumLines, stats.NumPairs)
	return stats, err
}

// pumpLines forwards every line a worker writes until EOF, then waits for the worker to exit.
func pumpLines(ctx context.Context, wp *WorkerProc, lines chan<- string) error {
	reader := bufio.NewReaderSize(wp.Stdout, 256*1024)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			select {
			case lines <- line:
			case <-ctx.Done():
				io.Copy(io.Discard, reader)
				wp.Wait()
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return wp.Wait()
		}
		if err != nil {
			wp.Wait()
			return err
		}
	}
}

// dealSamples writes the sample lines of r to the workers round-robin and closes their inputs.
func dealSamples(ctx context.Context, r io.Reader, workers []*WorkerProc) (numSamples int64, err error) {
	inputs := make([]*bufio.Writer, len(workers))
	for i, wp := range workers {
		inputs[i] = bufio.NewWriter(wp.Stdin)
	}
	defer func() {
		for i, wp := range workers {
			if ferr := inputs[i].Flush(); err == nil && ctx.Err() == nil {
				err = ferr
			}
			wp.Stdin.Close()
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err = ctx.Err(); err != nil {
			return numSamples, err
		}
		line := scanner.Text()
		if !sample.IsSampleLine(line) {
			continue
		}
		w := inputs[numSamples%int64(len(inputs))]
		if _, err = w.WriteString(strings.TrimSpace(line)); err == nil {
			err = w.WriteByte('\n')
		}
		if err != nil {
			return numSamples, err
		}
		numSamples++
	}
	return numSamples, scanner.Err()
}
