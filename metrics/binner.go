// Package metrics - Interval binning of values in [0, 1].
package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// PartitionKind selects how the bin edges of a partition are derived.
type PartitionKind string

const (
	// PartitionUniform splits [0, 1] into Bins equal-width intervals.
	PartitionUniform PartitionKind = "uniform"
	// PartitionExplicit uses caller supplied, already sorted and unique edges.
	PartitionExplicit PartitionKind = "explicit"
)

// PartitionSpec describes a bin partition of [0, 1].
type PartitionSpec struct {
	// Kind selects between a uniform and an explicit partition.
	Kind PartitionKind `json:"kind" yaml:"kind"`
	// Bins is the number of equal-width bins. Only read for PartitionUniform.
	Bins int `json:"bins,omitempty" yaml:"bins,omitempty"`
	// Edges are the boundary values, edges[0] == 0 and edges[len-1] == 1.
	// Only read for PartitionExplicit.
	Edges []float64 `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// Uniform describes a partition with k equal-width bins.
func Uniform(k int) PartitionSpec {
	return PartitionSpec{Kind: PartitionUniform, Bins: k}
}

// Explicit describes a partition with the given boundary values.
func Explicit(edges ...float64) PartitionSpec {
	return PartitionSpec{Kind: PartitionExplicit, Edges: edges}
}

// Binner maps values in [0, 1] to bin indices under a fixed partition.
//
// Lookups compare at float32 precision, the precision of Grid cells, so that a
// threshold and a grid cell holding the same literal always share a bin. Bins are
// half-open intervals [edges[i], edges[i+1]) except the last one, which is closed
// so that 1.0 falls into bin k-1. A Binner is immutable and safe for concurrent use.
type Binner struct {
	kind  PartitionKind
	edges []float64
	// cuts holds the edges at grid precision; all index lookups compare against it.
	cuts []float32
}

// NewBinner builds a Binner from a partition spec.
//
// Arguments:
//   - spec: The partition to build.
//
// Returns:
//   - *Binner: The binner.
//   - error: A wrapped ErrConfiguration if the partition is malformed.
func NewBinner(spec PartitionSpec) (*Binner, error) {
	switch spec.Kind {
	case PartitionUniform:
		return NewUniformBinner(spec.Bins)
	case PartitionExplicit:
		return NewExplicitBinner(spec.Edges)
	case "":
		// An empty kind is accepted when exactly one of the two forms is populated.
		if len(spec.Edges) > 0 && spec.Bins == 0 {
			return NewExplicitBinner(spec.Edges)
		}
		if len(spec.Edges) == 0 {
			return NewUniformBinner(spec.Bins)
		}
		return nil, errors.Wrap(ErrConfiguration, "partition sets both bins and edges without a kind")
	default:
		return nil, errors.Wrapf(ErrConfiguration, "unknown partition kind %q", spec.Kind)
	}
}

// NewUniformBinner builds a partition of k equal-width bins with edges i/k.
func NewUniformBinner(k int) (*Binner, error) {
	if k <= 0 {
		return nil, errors.Wrapf(ErrConfiguration, "bin count must be a positive integer, got %d", k)
	}
	edges := make([]float64, k+1)
	for i := 0; i <= k; i++ {
		edges[i] = float64(i) / float64(k)
	}
	return newBinner(PartitionUniform, edges)
}

// NewExplicitBinner builds a partition from caller supplied edges.
//
// The edges are validated, never normalized: they must hold at least two finite
// values, start at 0.0, end at 1.0 and be strictly increasing.
//
// Arguments:
//   - edges: The boundary values. The slice is copied.
//
// Returns:
//   - *Binner: The binner with len(edges)-1 bins.
//   - error: A wrapped ErrConfiguration describing the first violated rule.
//
// Example:
//
// ```go
//
//	b, err := NewExplicitBinner([]float64{0.0, 0.1, 0.2, 0.6, 1.0})
//	idx, _ := b.BinIndex(0.2) // 2
//
// ```
func NewExplicitBinner(edges []float64) (*Binner, error) {
	if len(edges) < 2 {
		return nil, errors.Wrapf(ErrConfiguration, "need at least 2 edges, got %d", len(edges))
	}
	for i, e := range edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, errors.Wrapf(ErrConfiguration, "edge %d is not finite", i)
		}
	}
	if edges[0] != 0.0 {
		return nil, errors.Wrapf(ErrConfiguration, "first edge must be 0.0, got %v", edges[0])
	}
	if edges[len(edges)-1] != 1.0 {
		return nil, errors.Wrapf(ErrConfiguration, "last edge must be 1.0, got %v", edges[len(edges)-1])
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, errors.Wrapf(ErrConfiguration,
				"edges must be sorted and unique: edge %d (%v) does not exceed edge %d (%v)",
				i, edges[i], i-1, edges[i-1])
		}
	}
	return newBinner(PartitionExplicit, append([]float64(nil), edges...))
}

func newBinner(kind PartitionKind, edges []float64) (*Binner, error) {
	cuts := make([]float32, len(edges))
	for i, e := range edges {
		cuts[i] = float32(e)
		if i > 0 && cuts[i] <= cuts[i-1] {
			return nil, errors.Wrapf(ErrConfiguration,
				"edges %v and %v collapse at float32 precision", edges[i-1], e)
		}
	}
	return &Binner{kind: kind, edges: edges, cuts: cuts}, nil
}

// Kind returns the partition kind the binner was built from.
func (b *Binner) Kind() PartitionKind {
	return b.kind
}

// NumBins returns k, the number of bins.
func (b *Binner) NumBins() int {
	return len(b.edges) - 1
}

// Edges returns a copy of the k+1 boundary values.
func (b *Binner) Edges() []float64 {
	return append([]float64(nil), b.edges...)
}

// Bounds returns the lower and upper edge of bin i.
func (b *Binner) Bounds(i int) (float64, float64) {
	return b.edges[i], b.edges[i+1]
}

// BinIndex returns the index of the bin containing v.
//
// Arguments:
//   - v: The value to convert. Must lie in [0, 1].
//
// Returns:
//   - int: The index i with edges[i] <= v < edges[i+1]; 1.0 maps to the last bin.
//   - error: A wrapped ErrRange if v is outside [0, 1] or NaN.
func (b *Binner) BinIndex(v float64) (int, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, errors.Wrapf(ErrRange, "got %v", v)
	}
	return b.index(float32(v)), nil
}

// index finds the first edge strictly greater than v and steps back one bin,
// clamped to [0, k-1].
func (b *Binner) index(v float32) int {
	i := sort.Search(len(b.cuts), func(j int) bool { return b.cuts[j] > v }) - 1
	if i < 0 {
		return 0
	}
	if k := b.NumBins(); i >= k {
		return k - 1
	}
	return i
}

// Quantize reduces every valid cell of g to its bin index.
//
// Cells excluded by valid (when valid is non-nil) and NaN cells map to -1, which
// is a member of no bin. Values outside [0, 1] are clamped into the first or last
// bin so that floating point jitter around the edges never drops a cell.
//
// Arguments:
//   - g: The grid to quantize.
//   - valid: The ignore mask, one entry per cell, or nil to quantize every cell.
//
// Returns:
//   - []int: One bin index per cell.
func (b *Binner) Quantize(g Grid, valid []bool) []int {
	out := make([]int, len(g.Data))
	for i, v := range g.Data {
		if valid != nil && !valid[i] {
			out[i] = -1
			continue
		}
		if math32.IsNaN(v) {
			out[i] = -1
			continue
		}
		out[i] = b.index(v)
	}
	return out
}

// BinRange is an inclusive range of bin indices. A range with Lo > Hi is empty.
type BinRange struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Empty reports whether the range selects no bin.
func (r BinRange) Empty() bool {
	return r.Lo > r.Hi
}

// Len returns the number of bins selected by the range.
func (r BinRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.Hi - r.Lo + 1
}

func (r BinRange) String() string {
	if r.Empty() {
		return "[]"
	}
	return fmt.Sprintf("[%d, %d]", r.Lo, r.Hi)
}

// All selects every bin.
func (b *Binner) All() BinRange {
	return BinRange{Lo: 0, Hi: b.NumBins() - 1}
}

// AtMost selects the bins up to and including the bin containing maxValue.
func (b *Binner) AtMost(maxValue float64) (BinRange, error) {
	hi, err := b.BinIndex(maxValue)
	if err != nil {
		return BinRange{}, err
	}
	return BinRange{Lo: 0, Hi: hi}, nil
}

// GreaterThan selects the bins strictly after the bin containing minValue.
func (b *Binner) GreaterThan(minValue float64) (BinRange, error) {
	lo, err := b.BinIndex(minValue)
	if err != nil {
		return BinRange{}, err
	}
	return BinRange{Lo: lo + 1, Hi: b.NumBins() - 1}, nil
}

// Between selects the bins from the bin containing minValue to the bin containing
// maxValue, inclusive. A reversed pair yields an empty range, not an error.
func (b *Binner) Between(minValue, maxValue float64) (BinRange, error) {
	lo, err := b.BinIndex(minValue)
	if err != nil {
		return BinRange{}, err
	}
	hi, err := b.BinIndex(maxValue)
	if err != nil {
		return BinRange{}, err
	}
	return BinRange{Lo: lo, Hi: hi}, nil
}
