package main

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-daylight/config"
	"github.com/nvr-ai/go-daylight/images"
	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMap(t *testing.T, dir, name string, g metrics.Grid) {
	t.Helper()
	data, err := images.EncodeMap(g)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

type fakePredictor struct {
	out   metrics.Grid
	calls int
}

func (f *fakePredictor) Predict(context.Context, []byte) (metrics.Grid, error) {
	f.calls++
	return f.out, nil
}

func (f *fakePredictor) Close() error { return nil }

func TestRunWritesReport(t *testing.T) {
	predDir, refDir := t.TempDir(), t.TempDir()
	g := metrics.MustGrid([]int{2, 2}, []float32{0.05, 0.35, 0.65, 0.95})
	writeMap(t, predDir, "a.png", g)
	writeMap(t, refDir, "a.png", g)
	writeMap(t, refDir, "orphan.png", g)

	out := filepath.Join(t.TempDir(), "report.json")
	err := run(context.Background(), config.Default(), runArgs{
		predictionDir: predDir,
		referenceDir:  refDir,
		outputPath:    out,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var report struct {
		IoU map[string]struct {
			Count int     `json:"count"`
			Mean  float64 `json:"mean"`
		} `json:"iou"`
	}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.IoU["iou"].Count)
	assert.InDelta(t, 1.0, report.IoU["iou"].Mean, 1e-5, "identical maps agree in every bin")
}

func TestRunRequiresInputs(t *testing.T) {
	err := run(context.Background(), config.Default(), runArgs{})
	assert.Error(t, err)

	err = run(context.Background(), config.Default(), runArgs{referenceDir: t.TempDir()})
	assert.Error(t, err)
}

func TestLoadSamplesAlignsPredictions(t *testing.T) {
	predDir, refDir := t.TempDir(), t.TempDir()
	writeMap(t, predDir, "a.png", metrics.MustGrid([]int{1, 1}, []float32{0.5}))
	writeMap(t, refDir, "a.png", metrics.MustGrid([]int{2, 3}, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}))

	samples, err := loadSamples(config.Default(), predDir, refDir)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, []int{2, 3}, samples[0].Prediction.Shape)
	assert.Equal(t, "a", samples[0].ID)
}

func TestLoadSamplesSkipOrFail(t *testing.T) {
	predDir, refDir := t.TempDir(), t.TempDir()
	g := metrics.MustGrid([]int{1, 1}, []float32{0.5})
	writeMap(t, predDir, "good.png", g)
	writeMap(t, refDir, "good.png", g)
	require.NoError(t, os.WriteFile(filepath.Join(predDir, "bad.png"), []byte("not a png"), 0o600))
	writeMap(t, refDir, "bad.png", g)

	cfg := config.Default()
	_, err := loadSamples(cfg, predDir, refDir)
	assert.Error(t, err, "fail-fast is the default")

	cfg.Evaluation.FailFast = false
	samples, err := loadSamples(cfg, predDir, refDir)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "good", samples[0].ID)
}

func TestPredictSamplesSavesPredictions(t *testing.T) {
	inputDir, refDir, saveDir := t.TempDir(), t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeMap(t, inputDir, "frame.png", metrics.MustGrid([]int{3, 3}, make([]float32, 9)))
	writeMap(t, refDir, "frame.png", metrics.MustGrid([]int{2, 2}, []float32{0, 0.25, 0.5, 1}))

	nan := float32(math.NaN())
	fake := &fakePredictor{out: metrics.MustGrid([]int{4, 4}, []float32{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, nan, 0,
		0, 0, 0, 0,
	})}
	samples, err := predictSamples(context.Background(), fake, config.Default(), inputDir, refDir, saveDir)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, []int{2, 2}, samples[0].Prediction.Shape)

	saved, err := os.ReadFile(filepath.Join(saveDir, "frame.png"))
	require.NoError(t, err)
	g, err := images.DecodeMap(saved, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, g.Shape)

	saved, err = os.ReadFile(filepath.Join(saveDir, "frame_comparison.png"))
	require.NoError(t, err)
	img, err := images.NewImage(saved)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width, "four panels at the reference size")
	assert.Equal(t, 2, img.Height)
}
