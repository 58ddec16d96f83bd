// Package evaluation - Named IoU range queries.
package evaluation

import (
	"fmt"

	"github.com/nvr-ai/go-daylight/metrics"
	"github.com/pkg/errors"
)

// QueryKind selects which contiguous range of bins a query aggregates.
type QueryKind string

const (
	// QueryAll aggregates every bin.
	QueryAll QueryKind = "all"
	// QueryAtMost aggregates the bins up to and including the bin containing Max.
	QueryAtMost QueryKind = "le"
	// QueryGreaterThan aggregates the bins strictly after the bin containing Min.
	QueryGreaterThan QueryKind = "gt"
	// QueryBetween aggregates the bins from the bin containing Min to the bin containing Max.
	QueryBetween QueryKind = "between"
)

// Query is a named mean-IoU range query.
type Query struct {
	// Name identifies the query in reports. Defaults to a name derived from Kind and bounds.
	Name string `json:"name" yaml:"name"`
	// Kind selects the range.
	Kind QueryKind `json:"kind" yaml:"kind"`
	// Min is the lower threshold for QueryGreaterThan and QueryBetween.
	Min float64 `json:"min,omitempty" yaml:"min,omitempty"`
	// Max is the upper threshold for QueryAtMost and QueryBetween.
	Max float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Label returns Name, or a name derived from the kind and thresholds.
func (q Query) Label() string {
	if q.Name != "" {
		return q.Name
	}
	switch q.Kind {
	case QueryAtMost:
		return fmt.Sprintf("iou<=%g", q.Max)
	case QueryGreaterThan:
		return fmt.Sprintf("iou>%g", q.Min)
	case QueryBetween:
		return fmt.Sprintf("iou[%g,%g]", q.Min, q.Max)
	default:
		return "iou"
	}
}

// Range resolves the query to a range of bins under the given binner.
//
// Returns:
//   - metrics.BinRange: The bins to aggregate; may be empty.
//   - error: A wrapped metrics.ErrConfiguration for an unknown kind or a threshold outside [0, 1].
func (q Query) Range(b *metrics.Binner) (metrics.BinRange, error) {
	var (
		r   metrics.BinRange
		err error
	)
	switch q.Kind {
	case QueryAll:
		r = b.All()
	case QueryAtMost:
		r, err = b.AtMost(q.Max)
	case QueryGreaterThan:
		r, err = b.GreaterThan(q.Min)
	case QueryBetween:
		r, err = b.Between(q.Min, q.Max)
	default:
		return r, errors.Wrapf(metrics.ErrConfiguration, "query %q: unknown kind %q", q.Label(), q.Kind)
	}
	if err != nil {
		return r, errors.Wrapf(metrics.ErrConfiguration, "query %q: %v", q.Label(), err)
	}
	return r, nil
}

// DefaultQueries returns the full-range query plus a low/high split at 0.5.
func DefaultQueries() []Query {
	return []Query{
		{Name: "iou", Kind: QueryAll},
		{Name: "iou_low", Kind: QueryAtMost, Max: 0.5},
		{Name: "iou_high", Kind: QueryGreaterThan, Min: 0.5},
	}
}
