// Package stats aggregates disease cost metrics from the national
// disease-cost tables and derives the three correlated metrics the
// pamphlet charts are built from: annualized total cost, prevalence
// per 100k and cost per patient.
package stats

import (
	"fmt"
	"strings"
)

// Sex values in the metrics tables.
const (
	SexMale   = "M"
	SexFemale = "F"
)

// Age band labels as stored in the metrics tables.
const (
	AgeBand20s   = "20-29"
	AgeBand30s   = "30-39"
	AgeBand40s   = "40-49"
	AgeBand50s   = "50-59"
	AgeBand60s   = "60-69"
	AgeBand70s   = "70-79"
	AgeBand80Up  = "80+"
	DefaultLimit = 5
)

var ageBandOrder = []string{
	AgeBand20s, AgeBand30s, AgeBand40s, AgeBand50s,
	AgeBand60s, AgeBand70s, AgeBand80Up,
}

// ValidAgeBand reports whether label is a known age band.
func ValidAgeBand(label string) bool {
	for _, b := range ageBandOrder {
		if b == label {
			return true
		}
	}
	return false
}

// FutureAgeBands returns the bands strictly after the given band, in
// ascending order. The last band has no future bands.
func FutureAgeBands(current string) []string {
	for i, b := range ageBandOrder {
		if b == current {
			return append([]string(nil), ageBandOrder[i+1:]...)
		}
	}
	return nil
}

// SortBasis selects the metric a ranked result set is ordered by.
type SortBasis int

const (
	SortByTotalCost SortBasis = iota
	SortByPrevalence
	SortByCostPerPatient
)

// ParseSortBasis maps a request parameter to a SortBasis. Unknown
// values fall back to total cost; that is the documented default,
// not an error.
func ParseSortBasis(s string) SortBasis {
	switch strings.TrimSpace(s) {
	case "prevalence":
		return SortByPrevalence
	case "cost_per_patient":
		return SortByCostPerPatient
	default:
		return SortByTotalCost
	}
}

func (b SortBasis) String() string {
	switch b {
	case SortByPrevalence:
		return "prevalence"
	case SortByCostPerPatient:
		return "cost_per_patient"
	default:
		return "total_cost"
	}
}

// DiseaseMetricRow is one aggregated row per disease code for a query
// scope. The summed columns come from the store; the derived metrics
// are recomputed here so zero denominators yield 0, never NaN.
type DiseaseMetricRow struct {
	DiseaseCode           string  `json:"disease_code"`
	DiseaseName           string  `json:"disease_name"`
	TotalCostPeriodSum    float64 `json:"total_cost_period_sum"`
	PatientCountPeriodSum int64   `json:"patient_count_period_sum"`
	PopulationPeriodSum   int64   `json:"population_period_sum"`
	PrevalencePer100k     float64 `json:"prevalence_per_100k"`
	CostPerPatient        float64 `json:"cost_per_patient"`
}

// Derive fills the computed metrics and the display-name fallback.
func (r *DiseaseMetricRow) Derive() {
	if strings.TrimSpace(r.DiseaseName) == "" {
		r.DiseaseName = strings.TrimSpace(r.DiseaseCode)
	}
	if r.PopulationPeriodSum > 0 {
		r.PrevalencePer100k = float64(r.PatientCountPeriodSum) / float64(r.PopulationPeriodSum) * 100000
	} else {
		r.PrevalencePer100k = 0
	}
	if r.PatientCountPeriodSum > 0 {
		r.CostPerPatient = r.TotalCostPeriodSum / float64(r.PatientCountPeriodSum)
	} else {
		r.CostPerPatient = 0
	}
}

// MetricValue returns the row's value for the given basis.
func (r *DiseaseMetricRow) MetricValue(basis SortBasis) float64 {
	switch basis {
	case SortByPrevalence:
		return r.PrevalencePer100k
	case SortByCostPerPatient:
		return r.CostPerPatient
	default:
		return r.TotalCostPeriodSum
	}
}

// QueryScope is an immutable description of one aggregation request.
type QueryScope struct {
	YearStart               int       `json:"year_start"`
	YearEnd                 int       `json:"year_end"`
	AgeGroups               []string  `json:"age_groups"`
	Sex                     string    `json:"sex"`
	MinPrevalencePer100k    float64   `json:"min_prevalence_per_100k,omitempty"`
	MinCostPerPatientNative float64   `json:"min_cost_per_patient,omitempty"`
	SortBasis               SortBasis `json:"sort_basis"`
	Limit                   int       `json:"limit"`
}

// Normalize returns a copy with a reversed year range swapped and a
// positive limit. Idempotent: normalizing a normalized scope is a
// no-op.
func (s QueryScope) Normalize() QueryScope {
	if s.YearStart > s.YearEnd {
		s.YearStart, s.YearEnd = s.YearEnd, s.YearStart
	}
	if s.Limit <= 0 {
		s.Limit = DefaultLimit
	}
	return s
}

// Years returns the number of calendar years the scope spans, never
// less than 1.
func (s QueryScope) Years() int {
	n := s.YearEnd - s.YearStart + 1
	if n < 1 {
		return 1
	}
	return n
}

// CacheKey identifies the scope for memoization. Every field that
// can change the result participates.
func (s QueryScope) CacheKey() string {
	return fmt.Sprintf("stats:%d:%d:%s:%s:%g:%g:%s:%d",
		s.YearStart, s.YearEnd,
		strings.Join(s.AgeGroups, ","), s.Sex,
		s.MinPrevalencePer100k, s.MinCostPerPatientNative,
		s.SortBasis, s.Limit)
}

// PickEmergingRows returns the first limit rows of future whose
// trimmed disease code does not appear among current's codes. Order
// follows future's existing rank; no re-sorting.
func PickEmergingRows(current, future []DiseaseMetricRow, limit int) []DiseaseMetricRow {
	if limit <= 0 || len(future) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(current))
	for _, r := range current {
		seen[strings.TrimSpace(r.DiseaseCode)] = struct{}{}
	}
	var out []DiseaseMetricRow
	for _, r := range future {
		if _, ok := seen[strings.TrimSpace(r.DiseaseCode)]; ok {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}
