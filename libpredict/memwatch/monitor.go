// Package memwatch samples resident memory against a budget and schedules periodic flushes.
//
// The monitor goroutine only ever sets flags.  Whoever owns the pair store polls those flags
// at its own safe points (between samples, between merge lines) and acts on them there.
package memwatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/plan-systems/klog"
)

// Sampler reports process and system memory.
type Sampler interface {

	// ResidentBytes returns the resident set size of this process.
	ResidentBytes() (uint64, error)

	// TotalBytes returns total system RAM, or 0 if unknown.
	TotalBytes() (uint64, error)
}

// Opts configures a Monitor.
type Opts struct {
	SafetyMargin  uint64        // budget = total RAM - SafetyMargin
	CheckInterval time.Duration // how often resident memory is sampled; 0 disables
	FlushInterval time.Duration // how often a flush is requested; 0 disables
	Sampler       Sampler       // nil selects the OS sampler
}

// DefaultOpts returns a 1 GiB margin checked every second, with a flush requested every 100ms.
func DefaultOpts() Opts {
	return Opts{
		SafetyMargin:  1 << 30,
		CheckInterval: time.Second,
		FlushInterval: 100 * time.Millisecond,
	}
}

// Monitor raises an over-budget alarm and a flush-due flag.
//
// All methods are safe to call on a nil *Monitor, which never raises either flag.
type Monitor struct {
	opts       Opts
	overBudget atomic.Bool
	flushDue   atomic.Bool
	resident   atomic.Uint64
	budget     atomic.Uint64
	numAlarms  atomic.Int64
	cancel     context.CancelFunc
	done       chan struct{}
}

// Start launches a Monitor that runs until ctx is done or Stop is called.
func Start(ctx context.Context, opts Opts) *Monitor {
	if opts.Sampler == nil {
		opts.Sampler = OSSampler()
	}

	m := &Monitor{
		opts: opts,
		done: make(chan struct{}),
	}

	// Sample once up front so the budget is known before the first tick.
	m.Check()

	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
	return m
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	var checkC, flushC <-chan time.Time
	if m.opts.CheckInterval > 0 {
		ticker := time.NewTicker(m.opts.CheckInterval)
		defer ticker.Stop()
		checkC = ticker.C
	}
	if m.opts.FlushInterval > 0 {
		ticker := time.NewTicker(m.opts.FlushInterval)
		defer ticker.Stop()
		flushC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkC:
			m.Check()
		case <-flushC:
			m.flushDue.Store(true)
		}
	}
}

// Check samples memory once and raises the alarm if resident memory exceeds the budget.
func (m *Monitor) Check() {
	if m == nil {
		return
	}

	total, err := m.opts.Sampler.TotalBytes()
	if err != nil || total == 0 {
		klog.V(2).Infof("memwatch: total RAM unavailable: %v", err)
		return
	}
	budget := total / 2
	if total > m.opts.SafetyMargin {
		budget = total - m.opts.SafetyMargin
	}
	m.budget.Store(budget)

	rss, err := m.opts.Sampler.ResidentBytes()
	if err != nil {
		klog.V(2).Infof("memwatch: resident memory unavailable: %v", err)
		return
	}
	m.resident.Store(rss)

	if rss > budget && !m.overBudget.Swap(true) {
		m.numAlarms.Add(1)
		klog.Warningf("memwatch: resident memory %d MiB exceeds budget %d MiB", rss>>20, budget>>20)
	}
}

// OverBudget returns true once resident memory has exceeded the budget and the alarm has not been acknowledged.
func (m *Monitor) OverBudget() bool {
	return m != nil && m.overBudget.Load()
}

// FlushDue returns true if a periodic flush has been requested since the last Acknowledge.
func (m *Monitor) FlushDue() bool {
	return m != nil && m.flushDue.Load()
}

// ShouldFlush returns true if either flag is raised.
func (m *Monitor) ShouldFlush() bool {
	return m.FlushDue() || m.OverBudget()
}

// Acknowledge clears both flags after the owner has flushed.
// If memory is still over budget, the next check raises the alarm again.
func (m *Monitor) Acknowledge() {
	if m == nil {
		return
	}
	m.flushDue.Store(false)
	m.overBudget.Store(false)
}

// NumAlarms returns how many times the alarm has been raised.
func (m *Monitor) NumAlarms() int64 {
	if m == nil {
		return 0
	}
	return m.numAlarms.Load()
}

// Budget returns the most recently computed budget and resident size in bytes.
func (m *Monitor) Budget() (budget, resident uint64) {
	if m == nil {
		return 0, 0
	}
	return m.budget.Load(), m.resident.Load()
}

// Stop halts the monitor goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m == nil || m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
