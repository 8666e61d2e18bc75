package stats

import (
	"strings"
	"testing"
)

func TestBuildAggregateQueryNoThresholds(t *testing.T) {
	scope := QueryScope{
		YearStart: 2022, YearEnd: 2024,
		AgeGroups: []string{AgeBand40s},
		Sex:       SexFemale,
		Limit:     5,
	}
	query, args := buildAggregateQuery(scope)

	if strings.Contains(query, "HAVING") {
		t.Error("unset thresholds must not add a HAVING clause")
	}
	if len(args) != 5 {
		t.Fatalf("args = %d, want 5", len(args))
	}
	if args[0] != 2022 || args[1] != 2024 {
		t.Errorf("year args = %v, %v", args[0], args[1])
	}
	if args[4] != 5 {
		t.Errorf("limit arg = %v, want 5", args[4])
	}
	if !strings.Contains(query, totalCostExpr+" DESC") {
		t.Error("default basis must order by total cost descending")
	}
	if !strings.Contains(query, "m.disease_code ASC") {
		t.Error("ordering must tie-break on disease code")
	}
}

func TestBuildAggregateQueryConjunctiveThresholds(t *testing.T) {
	scope := QueryScope{
		YearStart: 2023, YearEnd: 2023,
		AgeGroups:               []string{AgeBand50s, AgeBand60s},
		Sex:                     SexMale,
		MinPrevalencePer100k:    100,
		MinCostPerPatientNative: 500,
		SortBasis:               SortByPrevalence,
		Limit:                   10,
	}
	query, args := buildAggregateQuery(scope)

	if !strings.Contains(query, "HAVING") {
		t.Fatal("positive thresholds must add a HAVING clause")
	}
	// Both filters appear in the same clause; a row must satisfy both.
	if strings.Count(query, ">=") != 2 {
		t.Errorf("expected two conjunctive threshold conditions, query:\n%s", query)
	}
	if len(args) != 7 {
		t.Fatalf("args = %d, want 7", len(args))
	}
	if args[4] != 100.0 || args[5] != 500.0 {
		t.Errorf("threshold args = %v, %v", args[4], args[5])
	}
	if !strings.Contains(query, prevalenceExpr+" DESC") {
		t.Error("prevalence basis must order by the prevalence expression")
	}
}

func TestBuildAggregateQueryZeroThresholdsIgnored(t *testing.T) {
	scope := QueryScope{
		YearStart: 2023, YearEnd: 2023,
		AgeGroups: []string{AgeBand30s},
		Sex:       SexMale,
		Limit:     5,
	}
	scope.MinPrevalencePer100k = 0
	scope.MinCostPerPatientNative = 0

	query, _ := buildAggregateQuery(scope)
	if strings.Contains(query, "HAVING") {
		t.Error("zero thresholds must be ignored, not applied as >= 0")
	}
}
