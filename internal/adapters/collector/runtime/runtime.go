// Package runtime samples resource usage of the bridge process and its host.
package runtime

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

const (
	Goroutines        = "goroutines"
	HeapAlloc         = "heap_alloc_bytes"
	GoSys             = "go_sys_bytes"
	NumGC             = "gc_runs"
	ProcessRSS        = "process_rss_bytes"
	ProcessCPU        = "process_cpu_percent"
	ProcessThreads    = "process_threads"
	HostMemoryTotal   = "host_memory_total_bytes"
	HostMemoryFree    = "host_memory_available_bytes"
	HostCPUPercent    = "host_cpu_percent"
	defaultSampleRate = 15 * time.Second
)

// Collector periodically samples the Go runtime, the bridge process and host memory/CPU.
type Collector struct {
	st     *stats
	proc   *process.Process
	now    func() time.Time
	logger *zap.Logger
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "collector"))

	proc, err := process.NewProcess(int32(os.Getpid())) // #nosec G115
	if err != nil {
		logger.Warn("process stats unavailable", zap.Error(err))
		proc = nil
	}
	return &Collector{
		st:     newStats(),
		proc:   proc,
		now:    time.Now,
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start takes one sample immediately and then one per interval until ctx ends or Stop is called.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSampleRate
	}
	c.Sample(ctx)

	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				c.Sample(ctx)
			}
		}
	}()
}

// Sample records one measurement. Sources that fail are left out of it.
func (c *Collector) Sample(ctx context.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	g := map[string]float64{
		Goroutines: float64(runtime.NumGoroutine()),
		HeapAlloc:  float64(ms.HeapAlloc),
		GoSys:      float64(ms.Sys),
		NumGC:      float64(ms.NumGC),
	}

	if c.proc != nil {
		if mi, err := c.proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			g[ProcessRSS] = float64(mi.RSS)
		}
		if pct, err := c.proc.PercentWithContext(ctx, 0); err == nil {
			g[ProcessCPU] = pct
		}
		if n, err := c.proc.NumThreadsWithContext(ctx); err == nil {
			g[ProcessThreads] = float64(n)
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		g[HostMemoryTotal] = float64(vm.Total)
		g[HostMemoryFree] = float64(vm.Available)
	} else if err != nil {
		c.logger.Debug("host memory sample failed", zap.Error(err))
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		g[HostCPUPercent] = pct[0]
	}

	c.st.record(c.now(), g)
}

// Stop halts the sampling goroutine and waits for it.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Snapshot returns a copy of the latest sample.
func (c *Collector) Snapshot() Stats {
	return c.st.snapshot()
}
