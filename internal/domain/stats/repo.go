package stats

import "context"

// YearRange is the span of years the metrics tables cover.
type YearRange struct {
	MinYear int `json:"min_year"`
	MaxYear int `json:"max_year"`
}

// Aggregator executes parameterized aggregate queries against the
// disease-cost store. Errors are not retried here; they propagate to
// the caller as query failures.
type Aggregator interface {
	// Aggregate returns one row per disease code over the scope's
	// year range and demographic filter, ranked and truncated per
	// the scope. The scope must already be normalized.
	Aggregate(ctx context.Context, scope QueryScope) ([]DiseaseMetricRow, error)

	// YearRange reports the min and max data years available.
	YearRange(ctx context.Context) (YearRange, error)
}
