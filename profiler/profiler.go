// Package profiler - Operation timing for evaluation and inference runs.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// Profiler tracks named operation timings. It is safe for concurrent use.
type Profiler struct {
	mu         sync.Mutex
	maxSamples int
	operations map[string]*TimeTracker
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Timing summarizes one operation.
type Timing struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Mean  time.Duration `json:"mean_ns"`
	// P90 is computed over the retained samples.
	P90 time.Duration `json:"p90_ns"`
}

// New creates a profiler that retains at most maxSamples durations per operation
// for percentile estimates. 0 means 10000. Count, total, min and max cover every sample.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = 10000
	}
	return &Profiler{maxSamples: maxSamples, operations: make(map[string]*TimeTracker)}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one completed operation.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operations[name]
	if !exists {
		tracker = &TimeTracker{minTime: duration, maxTime: duration}
		p.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Timings returns a summary of every operation recorded so far.
func (p *Profiler) Timings() map[string]Timing {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Timing, len(p.operations))
	for name, tr := range p.operations {
		t := Timing{
			Count: tr.count,
			Total: tr.totalTime,
			Min:   tr.minTime,
			Max:   tr.maxTime,
			Mean:  tr.totalTime / time.Duration(tr.count),
		}
		samples := make([]float64, len(tr.durations))
		for i, d := range tr.durations {
			samples[i] = float64(d)
		}
		if p90, err := stats.Percentile(samples, 90); err == nil {
			t.P90 = time.Duration(p90)
		}
		out[name] = t
	}
	return out
}

// Names returns the recorded operation names in sorted order.
func (p *Profiler) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.operations))
	for name := range p.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
