// Package evaluation - Batch scoring of prediction/reference grid pairs.
package evaluation

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/nvr-ai/go-daylight/profiler"
	"github.com/pkg/errors"
)

// Sample is one prediction/reference pair to score.
type Sample struct {
	// ID identifies the sample in reports, typically the shared file name.
	ID string `json:"id"`
	// Prediction is the predicted grid.
	Prediction metrics.Grid `json:"-"`
	// Reference is the ground truth grid; IgnoreValue cells are excluded.
	Reference metrics.Grid `json:"-"`
}

// SampleResult holds the scores of one sample.
type SampleResult struct {
	// ID is the sample ID.
	ID string `json:"id"`
	// ValidCells is the number of reference cells that took part in the IoU.
	ValidCells int `json:"valid_cells"`
	// IoU maps each query label to its mean IoU.
	IoU map[string]float64 `json:"iou"`
	// Accuracy maps each threshold label to its percentage of passing cells.
	Accuracy map[string]float64 `json:"accuracy"`
	// Bins holds the per-bin scores. Nil when the reference is fully masked.
	Bins []metrics.BinScore `json:"bins,omitempty"`
}

// Options configures an Evaluator.
type Options struct {
	// Partition defines the bins.
	Partition metrics.PartitionSpec `json:"partition" yaml:"partition"`
	// Epsilon is added to every IoU denominator.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`
	// Thresholds are the ratio accuracy thresholds to report.
	Thresholds []float64 `json:"thresholds" yaml:"thresholds"`
	// Queries are the IoU range queries to report. Defaults to DefaultQueries.
	Queries []Query `json:"queries" yaml:"queries"`
	// Workers bounds the number of samples scored concurrently. Defaults to NumCPU.
	Workers int `json:"workers" yaml:"workers"`
	// FailFast aborts the run on the first failing sample instead of skipping it.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
	// KeepBins retains per-bin scores in every SampleResult.
	KeepBins bool `json:"keep_bins" yaml:"keep_bins"`
}

// Evaluator scores batches of samples with a fixed set of metrics.
type Evaluator struct {
	opts       Options
	iou        *metrics.QuantizedIoU
	queries    []Query
	ranges     []metrics.BinRange
	accuracies []*metrics.ThresholdAccuracy
}

// NewEvaluator validates the options and builds the metrics they describe.
//
// Arguments:
//   - opts: The evaluation options.
//
// Returns:
//   - *Evaluator: The evaluator.
//   - error: A wrapped metrics.ErrConfiguration.
func NewEvaluator(opts Options) (*Evaluator, error) {
	iou, err := metrics.NewQuantizedIoU(opts.Partition, opts.Epsilon)
	if err != nil {
		return nil, err
	}

	if len(opts.Queries) == 0 {
		opts.Queries = DefaultQueries()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	e := &Evaluator{opts: opts, iou: iou}

	seen := make(map[string]bool, len(opts.Queries))
	for _, q := range opts.Queries {
		label := q.Label()
		if seen[label] {
			return nil, errors.Wrapf(metrics.ErrConfiguration, "duplicate query name %q", label)
		}
		seen[label] = true

		r, err := q.Range(iou.Binner())
		if err != nil {
			return nil, err
		}
		e.queries = append(e.queries, q)
		e.ranges = append(e.ranges, r)
	}

	labels := make(map[string]bool, len(opts.Thresholds))
	for _, t := range opts.Thresholds {
		label := ThresholdLabel(t)
		if labels[label] {
			return nil, errors.Wrapf(metrics.ErrConfiguration, "duplicate threshold %q", label)
		}
		labels[label] = true

		a, err := metrics.NewThresholdAccuracy(t)
		if err != nil {
			return nil, err
		}
		e.accuracies = append(e.accuracies, a)
	}

	return e, nil
}

// Options returns the effective options, with defaults applied.
func (e *Evaluator) Options() Options {
	return e.opts
}

// ThresholdLabel names an accuracy threshold in reports.
func ThresholdLabel(threshold float64) string {
	return fmt.Sprintf("delta<%g", threshold)
}

// Score evaluates a single sample.
//
// Arguments:
//   - s: The sample.
//
// Returns:
//   - SampleResult: The scores of every query and threshold.
//   - error: A wrapped metrics.ErrShapeMismatch when the grids differ in shape.
func (e *Evaluator) Score(s Sample) (SampleResult, error) {
	bins, err := e.iou.PerBin(s.Prediction, s.Reference)
	if err != nil {
		return SampleResult{}, errors.Wrapf(err, "sample %q", s.ID)
	}
	_, valid := metrics.ValidMask(s.Reference)

	res := SampleResult{
		ID:         s.ID,
		ValidCells: valid,
		IoU:        make(map[string]float64, len(e.queries)),
		Accuracy:   make(map[string]float64, len(e.accuracies)),
	}
	for i, q := range e.queries {
		res.IoU[q.Label()] = metrics.RangeMean(bins, e.ranges[i])
	}
	for _, a := range e.accuracies {
		v, err := a.Evaluate(s.Prediction, s.Reference)
		if err != nil {
			return SampleResult{}, errors.Wrapf(err, "sample %q", s.ID)
		}
		res.Accuracy[ThresholdLabel(a.Threshold())] = v
	}
	if e.opts.KeepBins {
		res.Bins = bins
	}
	return res, nil
}

// Evaluate scores every sample with at most Options.Workers in flight.
//
// Failing samples are logged and skipped unless FailFast is set, in which case
// the first failure cancels the remaining work and is returned. Results are in
// sample order regardless of the worker count.
//
// Arguments:
//   - ctx: Cancels the run; samples not yet started are abandoned.
//   - samples: The samples to score.
//
// Returns:
//   - *Report: The per-sample results and their summaries.
//   - error: The context error, or the first sample error under FailFast.
//
// Example:
//
//	e, _ := evaluation.NewEvaluator(evaluation.Options{Partition: metrics.Uniform(10)})
//	report, err := e.Evaluate(ctx, samples)
//	if err != nil {
//	    log.Fatal(err)
//	}
func (e *Evaluator) Evaluate(parent context.Context, samples []Sample) (*Report, error) {
	runID := uuid.New()
	started := time.Now()
	log.Printf("📊 Run %s: scoring %d samples with %d workers", runID, len(samples), e.opts.Workers)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make([]*SampleResult, len(samples))
	errs := make([]error, len(samples))
	prof := profiler.New(len(samples))

	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup

	for i := range samples {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			done := prof.StartOperation("score")
			res, err := e.Score(samples[idx])
			done()
			if err != nil {
				errs[idx] = err
				if e.opts.FailFast {
					cancel()
				}
				return
			}
			results[idx] = &res
		}(i)
	}

	wg.Wait()

	if err := parent.Err(); err != nil {
		return nil, errors.Wrap(err, "evaluation cancelled")
	}
	if e.opts.FailFast {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}

	report := &Report{
		RunID:     runID.String(),
		StartedAt: started,
		Edges:     e.iou.Binner().Edges(),
		Epsilon:   e.iou.Epsilon(),
	}
	for i, res := range results {
		if res == nil {
			log.Printf("⚠️ Run %s: skipping sample %q: %v", runID, samples[i].ID, errs[i])
			report.Skipped = append(report.Skipped, Skip{ID: samples[i].ID, Reason: errs[i].Error()})
			continue
		}
		report.Results = append(report.Results, *res)
	}
	report.summarize(e.queryLabels(), e.thresholdLabels())
	report.Timing = prof.Timings()
	report.Duration = time.Since(started)

	log.Printf("✅ Run %s: %d scored, %d skipped in %s", runID, len(report.Results), len(report.Skipped), report.Duration)
	return report, nil
}

func (e *Evaluator) queryLabels() []string {
	labels := make([]string, len(e.queries))
	for i, q := range e.queries {
		labels[i] = q.Label()
	}
	return labels
}

func (e *Evaluator) thresholdLabels() []string {
	labels := make([]string, len(e.accuracies))
	for i, a := range e.accuracies {
		labels[i] = ThresholdLabel(a.Threshold())
	}
	return labels
}
