// Package evaluation - Run reports and their summary statistics.
package evaluation

import (
	"encoding/json"
	"io"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/nvr-ai/go-daylight/profiler"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of one metric across the scored samples.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Skip records a sample that could not be scored.
type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report is the outcome of one Evaluate call.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration_ns"`
	// Edges are the bin edges in effect.
	Edges []float64 `json:"edges"`
	// Epsilon is the IoU denominator epsilon in effect.
	Epsilon float64 `json:"epsilon"`
	// IoU summarizes each query across samples, keyed by query label.
	IoU map[string]Summary `json:"iou"`
	// Accuracy summarizes each threshold across samples, keyed by threshold label.
	Accuracy map[string]Summary `json:"accuracy"`
	// Results holds the scored samples in input order.
	Results []SampleResult `json:"results"`
	// Skipped holds the samples that failed, in input order.
	Skipped []Skip `json:"skipped,omitempty"`
	// Timing summarizes the per-sample scoring time.
	Timing map[string]profiler.Timing `json:"timing"`
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	return nil
}

func (r *Report) summarize(queries, thresholds []string) {
	r.IoU = make(map[string]Summary, len(queries))
	for _, label := range queries {
		values := make([]float64, 0, len(r.Results))
		for _, res := range r.Results {
			values = append(values, res.IoU[label])
		}
		r.IoU[label] = Summarize(values)
	}

	r.Accuracy = make(map[string]Summary, len(thresholds))
	for _, label := range thresholds {
		values := make([]float64, 0, len(r.Results))
		for _, res := range r.Results {
			values = append(values, res.Accuracy[label])
		}
		r.Accuracy[label] = Summarize(values)
	}
}

// Summarize computes the distribution summary of values.
//
// Arguments:
//   - values: The per-sample metric values. Not modified.
//
// Returns:
//   - Summary: The summary; all zero when values is empty.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	// stats sorts a copy, so values keeps its order.
	if median, err := stats.Median(values); err == nil {
		s.Median = median
	}
	if p90, err := stats.Percentile(values, 90); err == nil {
		s.P90 = p90
	}
	return s
}
