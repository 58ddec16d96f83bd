package images

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparison(t *testing.T) {
	ref := metrics.MustGrid([]int{2, 2}, []float32{0, metrics.IgnoreValue, 1, 0.5})
	pred := metrics.MustGrid([]int{2, 2}, []float32{0, 0.3, 0.5, float32(math.NaN())})

	out, err := Comparison(getTestImage(), ref, pred)
	require.NoError(t, err)
	assert.Equal(t, 8, out.Bounds().Dx())
	assert.Equal(t, 2, out.Bounds().Dy())

	in := out.NRGBAAt(0, 0)
	assert.InDelta(t, 255, int(in.R), 1, "input panel keeps the input color")
	assert.InDelta(t, 0, int(in.G), 1)

	tests := []struct {
		name  string
		x, y  int
		value uint8
		alpha uint8
	}{
		{"reference", 2, 1, 255, 255},
		{"ignored reference", 3, 0, 0, 0},
		{"prediction", 4, 1, 128, 255},
		{"nan prediction", 5, 1, 0, 0},
		{"difference", 6, 1, 128, 255},
		{"matching cells", 6, 0, 0, 255},
		{"difference on ignored cell", 7, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := out.NRGBAAt(tt.x, tt.y)
			assert.Equal(t, tt.alpha, c.A)
			assert.Equal(t, tt.value, c.R)
		})
	}
}

func TestComparisonShapeMismatch(t *testing.T) {
	ref := metrics.MustGrid([]int{2, 2}, make([]float32, 4))
	pred := metrics.MustGrid([]int{1, 4}, make([]float32, 4))
	_, err := Comparison(getTestImage(), ref, pred)
	assert.True(t, errors.Is(err, metrics.ErrShapeMismatch))

	_, err = Comparison(getTestImage(), metrics.MustGrid([]int{4}, make([]float32, 4)), pred)
	assert.Error(t, err)
}
