package core

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks sub-step throughput and memory statistics, logging a
// summary line once per update interval the way the engine's render-loop
// profiler reports FPS.
type Profiler struct {
	subStepCount   int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
}

// NewProfiler creates a Profiler with a 1 second update interval.
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per completed sub-step. Logs a summary line
// when the update interval has elapsed and reports whether it did.
func (p *Profiler) Tick(runID string) bool {
	p.subStepCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		rate := float64(p.subStepCount) / elapsed.Seconds()

		runtime.ReadMemStats(&p.memStats)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024

		log.Printf("[%s] sub-steps/s: %.2f | heap: %.2f MB", runID, rate, allocMB)

		p.subStepCount = 0
		p.lastTime = now
		return true
	}

	return false
}
