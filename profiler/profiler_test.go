package profiler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSummarizes(t *testing.T) {
	p := New(0)
	for i := 1; i <= 10; i++ {
		p.Record("score", time.Duration(i)*time.Millisecond)
	}

	timings := p.Timings()
	require.Contains(t, timings, "score")
	s := timings["score"]
	assert.Equal(t, int64(10), s.Count)
	assert.Equal(t, 55*time.Millisecond, s.Total)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 10*time.Millisecond, s.Max)
	assert.Equal(t, 5500*time.Microsecond, s.Mean)
	assert.Equal(t, 9*time.Millisecond, s.P90)
}

func TestRecordRetainsLatestSamples(t *testing.T) {
	p := New(2)
	p.Record("op", time.Second)
	p.Record("op", 2*time.Millisecond)
	p.Record("op", 4*time.Millisecond)

	s := p.Timings()["op"]
	assert.Equal(t, int64(3), s.Count, "count covers every sample")
	assert.Equal(t, time.Second, s.Max)
	assert.Less(t, s.P90, time.Second, "percentile covers retained samples only")
}

func TestStartOperationConcurrent(t *testing.T) {
	p := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := p.StartOperation("predict")
			done()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(16), p.Timings()["predict"].Count)
	assert.Equal(t, []string{"predict"}, p.Names())
}
