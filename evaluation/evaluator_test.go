package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSample(rng *rand.Rand, id string, h, w int) Sample {
	pred := make([]float32, h*w)
	ref := make([]float32, h*w)
	for i := range ref {
		pred[i] = rng.Float32()
		ref[i] = rng.Float32()
		if rng.Float64() < 0.1 {
			ref[i] = metrics.IgnoreValue
		}
	}
	return Sample{
		ID:         id,
		Prediction: metrics.MustGrid([]int{h, w}, pred),
		Reference:  metrics.MustGrid([]int{h, w}, ref),
	}
}

func defaultOptions() Options {
	return Options{
		Partition:  metrics.Uniform(10),
		Epsilon:    metrics.DefaultEpsilon,
		Thresholds: []float64{metrics.Delta1, metrics.Delta2, metrics.Delta3},
		Workers:    4,
	}
}

func TestNewEvaluatorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"no partition", func(o *Options) { o.Partition = metrics.PartitionSpec{} }},
		{"negative epsilon", func(o *Options) { o.Epsilon = -1 }},
		{"bad threshold", func(o *Options) { o.Thresholds = []float64{0} }},
		{"duplicate threshold", func(o *Options) { o.Thresholds = []float64{1.25, 1.5625, 1.25} }},
		{"unknown query kind", func(o *Options) { o.Queries = []Query{{Name: "x", Kind: "median"}} }},
		{"query out of range", func(o *Options) { o.Queries = []Query{{Kind: QueryAtMost, Max: 1.5}} }},
		{"duplicate query", func(o *Options) {
			o.Queries = []Query{{Name: "a", Kind: QueryAll}, {Name: "a", Kind: QueryAll}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(&opts)
			_, err := NewEvaluator(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, metrics.ErrConfiguration), "got %v", err)
		})
	}
}

func TestNewEvaluatorDefaults(t *testing.T) {
	opts := defaultOptions()
	opts.Workers = 0
	e, err := NewEvaluator(opts)
	require.NoError(t, err)
	assert.Positive(t, e.Options().Workers)
	assert.Equal(t, DefaultQueries(), e.Options().Queries)
}

func TestQueryLabel(t *testing.T) {
	assert.Equal(t, "custom", Query{Name: "custom", Kind: QueryAll}.Label())
	assert.Equal(t, "iou", Query{Kind: QueryAll}.Label())
	assert.Equal(t, "iou<=0.3", Query{Kind: QueryAtMost, Max: 0.3}.Label())
	assert.Equal(t, "iou>0.5", Query{Kind: QueryGreaterThan, Min: 0.5}.Label())
	assert.Equal(t, "iou[0.2,0.6]", Query{Kind: QueryBetween, Min: 0.2, Max: 0.6}.Label())
}

func TestScoreMatchesMetrics(t *testing.T) {
	e, err := NewEvaluator(defaultOptions())
	require.NoError(t, err)

	s := randomSample(rand.New(rand.NewSource(3)), "a", 16, 16)
	res, err := e.Score(s)
	require.NoError(t, err)

	q, err := metrics.NewQuantizedIoU(metrics.Uniform(10), metrics.DefaultEpsilon)
	require.NoError(t, err)
	mean, err := q.Mean(s.Prediction, s.Reference)
	require.NoError(t, err)
	low, err := q.MeanAtMost(s.Prediction, s.Reference, 0.5)
	require.NoError(t, err)
	high, err := q.MeanGreaterThan(s.Prediction, s.Reference, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, mean, res.IoU["iou"], 1e-12)
	assert.InDelta(t, low, res.IoU["iou_low"], 1e-12)
	assert.InDelta(t, high, res.IoU["iou_high"], 1e-12)

	a, err := metrics.NewThresholdAccuracy(metrics.Delta1)
	require.NoError(t, err)
	acc, err := a.Evaluate(s.Prediction, s.Reference)
	require.NoError(t, err)
	assert.InDelta(t, acc, res.Accuracy[ThresholdLabel(metrics.Delta1)], 1e-9)
	assert.Contains(t, res.Accuracy, "delta<1.5625")
	assert.Nil(t, res.Bins)
}

func TestScoreKeepBins(t *testing.T) {
	opts := defaultOptions()
	opts.KeepBins = true
	e, err := NewEvaluator(opts)
	require.NoError(t, err)

	res, err := e.Score(randomSample(rand.New(rand.NewSource(4)), "a", 8, 8))
	require.NoError(t, err)
	assert.Len(t, res.Bins, 10)
}

func TestEvaluateOrderIndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]Sample, 25)
	for i := range samples {
		samples[i] = randomSample(rng, string(rune('a'+i)), 12, 12)
	}

	var reports []*Report
	for _, workers := range []int{1, 3, 16} {
		opts := defaultOptions()
		opts.Workers = workers
		e, err := NewEvaluator(opts)
		require.NoError(t, err)
		r, err := e.Evaluate(context.Background(), samples)
		require.NoError(t, err)
		reports = append(reports, r)
	}

	for _, r := range reports[1:] {
		assert.Equal(t, reports[0].Results, r.Results)
		assert.Equal(t, reports[0].IoU, r.IoU)
		assert.Equal(t, reports[0].Accuracy, r.Accuracy)
		assert.NotEqual(t, reports[0].RunID, r.RunID)
	}
	for i, res := range reports[0].Results {
		assert.Equal(t, samples[i].ID, res.ID)
	}
	assert.Equal(t, len(samples), reports[0].IoU["iou"].Count)
	assert.Equal(t, int64(len(samples)), reports[0].Timing["score"].Count)
}

func TestEvaluateSkipsBadSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	good := randomSample(rng, "good", 4, 4)
	bad := Sample{
		ID:         "bad",
		Prediction: metrics.MustGrid([]int{2, 2}, make([]float32, 4)),
		Reference:  metrics.MustGrid([]int{4, 1}, make([]float32, 4)),
	}

	e, err := NewEvaluator(defaultOptions())
	require.NoError(t, err)
	report, err := e.Evaluate(context.Background(), []Sample{good, bad, good})
	require.NoError(t, err)

	assert.Len(t, report.Results, 2)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "bad", report.Skipped[0].ID)
	assert.Contains(t, report.Skipped[0].Reason, "shapes differ")
}

func TestEvaluateFailFast(t *testing.T) {
	bad := Sample{
		ID:         "bad",
		Prediction: metrics.MustGrid([]int{2, 2}, make([]float32, 4)),
		Reference:  metrics.MustGrid([]int{4, 1}, make([]float32, 4)),
	}
	opts := defaultOptions()
	opts.FailFast = true
	e, err := NewEvaluator(opts)
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), []Sample{bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, metrics.ErrShapeMismatch))
}

func TestEvaluateCancelled(t *testing.T) {
	e, err := NewEvaluator(defaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Evaluate(ctx, []Sample{randomSample(rand.New(rand.NewSource(1)), "a", 4, 4)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvaluateEmpty(t *testing.T) {
	e, err := NewEvaluator(defaultOptions())
	require.NoError(t, err)
	report, err := e.Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, Summary{}, report.IoU["iou"])
}

func TestSummarize(t *testing.T) {
	values := []float64{1.0, 0.9, 0.8, 0.7, 0.6, 0.5, 0.4, 0.3, 0.2, 0.1}
	s := Summarize(values)
	assert.Equal(t, 10, s.Count)
	assert.InDelta(t, 0.55, s.Mean, 1e-12)
	assert.InDelta(t, 0.55, s.Median, 1e-12)
	assert.InDelta(t, 0.9, s.P90, 1e-12)
	assert.Equal(t, 0.1, s.Min)
	assert.Equal(t, 1.0, s.Max)
	assert.Equal(t, 1.0, values[0], "input must not be reordered")

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestReportWriteJSON(t *testing.T) {
	e, err := NewEvaluator(defaultOptions())
	require.NoError(t, err)
	report, err := e.Evaluate(context.Background(), []Sample{randomSample(rand.New(rand.NewSource(2)), "a", 4, 4)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, report.RunID, decoded["run_id"])
	assert.Contains(t, decoded, "iou")
	assert.Len(t, decoded["edges"], 11)
}
