package crawlermodule

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	throttleSampleInterval = 10 * time.Second

	cpuHighWater = 85.0
	cpuMidWater  = 70.0
	memHighWater = 90.0
)

// LoadThrottler samples host CPU and memory usage in the background and
// stretches the politeness delay between site requests when the host is
// under pressure.
type LoadThrottler struct {
	mu         sync.RWMutex
	cpuPercent float64
	memPercent float64

	log  hclog.Logger
	stop chan struct{}
	once sync.Once
}

// NewLoadThrottler creates a throttler and starts its sampler.
func NewLoadThrottler(log hclog.Logger) *LoadThrottler {
	t := &LoadThrottler{
		log:  log,
		stop: make(chan struct{}),
	}
	t.sample()
	go t.run()
	return t
}

func (t *LoadThrottler) run() {
	ticker := time.NewTicker(throttleSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.sample()
		case <-t.stop:
			return
		}
	}
}

func (t *LoadThrottler) sample() {
	var cpuPct, memPct float64

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	} else if err != nil {
		t.log.Debug("cpu sample failed", "error", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	} else {
		t.log.Debug("memory sample failed", "error", err)
	}

	t.mu.Lock()
	t.cpuPercent = cpuPct
	t.memPercent = memPct
	t.mu.Unlock()
}

// Delay maps the base politeness delay to the current host load: tripled
// under heavy load, doubled under moderate load, unchanged otherwise.
func (t *LoadThrottler) Delay(base time.Duration) time.Duration {
	t.mu.RLock()
	cpuPct, memPct := t.cpuPercent, t.memPercent
	t.mu.RUnlock()

	switch {
	case cpuPct > cpuHighWater || memPct > memHighWater:
		return base * 3
	case cpuPct > cpuMidWater:
		return base * 2
	default:
		return base
	}
}

// Metrics returns the last sampled CPU and memory usage percentages.
func (t *LoadThrottler) Metrics() (cpuPercent, memPercent float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cpuPercent, t.memPercent
}

// Stop halts the background sampler.
func (t *LoadThrottler) Stop() {
	t.once.Do(func() { close(t.stop) })
}
