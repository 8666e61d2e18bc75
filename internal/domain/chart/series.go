package chart

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/covercheck/covercheck/internal/domain/stats"
)

// Display units for the three derived series.
const (
	largeUnitLabel      = "×100M"
	mediumUnitLabel     = "×10K"
	prevalenceUnitLabel = "/100k"
)

const maxNameRunes = 14

// series is one metric column across all rows, in display units.
type series struct {
	name   string
	unit   string
	values []float64
}

func (s series) max() float64 {
	m := 0.0
	for _, v := range s.values {
		if v > m {
			m = v
		}
	}
	return m
}

// combo is the fully derived chart input: one primary bar series and
// two auxiliary line series, ordered rank 1 first.
type combo struct {
	labels    []string
	primary   series
	auxTop    series
	auxBottom series
}

// deriveCombo computes the three display series and assigns them to
// primary/aux positions for the chosen basis:
//
//	basis            primary (bar)     aux top       aux bottom
//	total_cost       annualized cost   prevalence    cost-per-patient
//	prevalence       prevalence        ann. cost     cost-per-patient
//	cost_per_patient cost-per-patient  prevalence    annualized cost
func deriveCombo(rows []stats.DiseaseMetricRow, basis stats.SortBasis, years int) combo {
	if years < 1 {
		years = 1
	}

	cost := series{name: "Annual cost", unit: largeUnitLabel, values: make([]float64, len(rows))}
	prev := series{name: "Prevalence", unit: prevalenceUnitLabel, values: make([]float64, len(rows))}
	cpp := series{name: "Cost per patient", unit: mediumUnitLabel, values: make([]float64, len(rows))}

	labels := make([]string, len(rows))
	for i, r := range rows {
		cost.values[i] = stats.ToLargeCurrencyUnit(r.TotalCostPeriodSum / float64(years))
		prev.values[i] = r.PrevalencePer100k
		cpp.values[i] = stats.ToMediumCurrencyUnit(r.CostPerPatient)
		labels[i] = truncateName(r.DiseaseName)
	}

	c := combo{labels: labels}
	switch basis {
	case stats.SortByPrevalence:
		c.primary, c.auxTop, c.auxBottom = prev, cost, cpp
	case stats.SortByCostPerPatient:
		c.primary, c.auxTop, c.auxBottom = cpp, prev, cost
	default:
		c.primary, c.auxTop, c.auxBottom = cost, prev, cpp
	}
	return c
}

// annotation builds the per-row value label placed at the end of the
// bar: primary first, both auxiliaries in parentheses.
func (c combo) annotation(i int) string {
	return fmt.Sprintf("%s%s (%s%s · %s%s)",
		formatValue(c.primary.values[i]), c.primary.unit,
		formatValue(c.auxTop.values[i]), c.auxTop.unit,
		formatValue(c.auxBottom.values[i]), c.auxBottom.unit)
}

// axisMax pads a series maximum so markers and labels do not clip. A
// zero maximum falls back to 1 to avoid a degenerate axis.
func axisMax(max, pad float64) float64 {
	if max <= 0 {
		return 1
	}
	return max * pad
}

func formatValue(v float64) string {
	if v >= 100 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= maxNameRunes {
		return name
	}
	runes := []rune(name)
	return string(runes[:maxNameRunes-1]) + "…"
}
