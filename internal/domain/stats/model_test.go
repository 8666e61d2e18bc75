package stats

import (
	"math"
	"reflect"
	"testing"
)

func TestDeriveMetrics(t *testing.T) {
	row := DiseaseMetricRow{
		DiseaseCode:           "E11",
		TotalCostPeriodSum:    1_000_000,
		PatientCountPeriodSum: 500,
		PopulationPeriodSum:   100_000,
	}
	row.Derive()

	if row.PrevalencePer100k != 500 {
		t.Errorf("prevalence = %v, want 500", row.PrevalencePer100k)
	}
	if row.CostPerPatient != 2000 {
		t.Errorf("cost per patient = %v, want 2000", row.CostPerPatient)
	}
	if row.DiseaseName != "E11" {
		t.Errorf("expected name fallback to code, got %q", row.DiseaseName)
	}
}

func TestDeriveZeroDenominators(t *testing.T) {
	row := DiseaseMetricRow{DiseaseCode: "X", TotalCostPeriodSum: 1000}
	row.Derive()

	if row.PrevalencePer100k != 0 || row.CostPerPatient != 0 {
		t.Errorf("zero denominators must derive to 0, got prevalence=%v cpp=%v",
			row.PrevalencePer100k, row.CostPerPatient)
	}
	if math.IsNaN(row.PrevalencePer100k) || math.IsInf(row.CostPerPatient, 0) {
		t.Error("derived metrics must never be NaN or Inf")
	}
}

func TestDeriveNameFallbackTrimsBlank(t *testing.T) {
	row := DiseaseMetricRow{DiseaseCode: "I10", DiseaseName: "   "}
	row.Derive()
	if row.DiseaseName != "I10" {
		t.Errorf("blank name should fall back to code, got %q", row.DiseaseName)
	}
}

func TestNormalizeSwapsReversedYears(t *testing.T) {
	scope := QueryScope{YearStart: 2024, YearEnd: 2021}
	n := scope.Normalize()
	if n.YearStart != 2021 || n.YearEnd != 2024 {
		t.Errorf("got %d..%d, want 2021..2024", n.YearStart, n.YearEnd)
	}

	// Idempotent: normalizing again changes nothing.
	again := n.Normalize()
	if !reflect.DeepEqual(again, n) {
		t.Error("normalize must be idempotent")
	}
}

func TestNormalizeDefaultsLimit(t *testing.T) {
	n := QueryScope{YearStart: 2023, YearEnd: 2023}.Normalize()
	if n.Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", n.Limit, DefaultLimit)
	}
}

func TestScopeYears(t *testing.T) {
	if got := (QueryScope{YearStart: 2023, YearEnd: 2024}).Years(); got != 2 {
		t.Errorf("years = %d, want 2", got)
	}
	if got := (QueryScope{YearStart: 2023, YearEnd: 2023}).Years(); got != 1 {
		t.Errorf("years = %d, want 1", got)
	}
}

func TestParseSortBasis(t *testing.T) {
	cases := map[string]SortBasis{
		"total_cost":       SortByTotalCost,
		"prevalence":       SortByPrevalence,
		"cost_per_patient": SortByCostPerPatient,
		"":                 SortByTotalCost,
		"patient_count":    SortByTotalCost,
	}
	for in, want := range cases {
		if got := ParseSortBasis(in); got != want {
			t.Errorf("ParseSortBasis(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFutureAgeBands(t *testing.T) {
	future := FutureAgeBands(AgeBand40s)
	want := []string{AgeBand50s, AgeBand60s, AgeBand70s, AgeBand80Up}
	if len(future) != len(want) {
		t.Fatalf("got %v, want %v", future, want)
	}
	for i := range want {
		if future[i] != want[i] {
			t.Fatalf("got %v, want %v", future, want)
		}
	}

	if got := FutureAgeBands(AgeBand80Up); len(got) != 0 {
		t.Errorf("last band should have no future bands, got %v", got)
	}
	if got := FutureAgeBands("unknown"); got != nil {
		t.Errorf("unknown band should yield nil, got %v", got)
	}
}

func TestPickEmergingRows(t *testing.T) {
	current := []DiseaseMetricRow{{DiseaseCode: "A"}, {DiseaseCode: "B"}}
	future := []DiseaseMetricRow{{DiseaseCode: "B"}, {DiseaseCode: "C"}, {DiseaseCode: "D"}}

	got := PickEmergingRows(current, future, 5)
	if len(got) != 2 || got[0].DiseaseCode != "C" || got[1].DiseaseCode != "D" {
		t.Errorf("emerging = %v, want [C D]", got)
	}
}

func TestPickEmergingRowsHonorsLimit(t *testing.T) {
	future := []DiseaseMetricRow{{DiseaseCode: "C"}, {DiseaseCode: "D"}, {DiseaseCode: "E"}}
	got := PickEmergingRows(nil, future, 2)
	if len(got) != 2 || got[0].DiseaseCode != "C" || got[1].DiseaseCode != "D" {
		t.Errorf("emerging = %v, want first two of future", got)
	}
}

func TestPickEmergingRowsTrimsCodes(t *testing.T) {
	current := []DiseaseMetricRow{{DiseaseCode: " B "}}
	future := []DiseaseMetricRow{{DiseaseCode: "B"}, {DiseaseCode: "C"}}
	got := PickEmergingRows(current, future, 5)
	if len(got) != 1 || got[0].DiseaseCode != "C" {
		t.Errorf("emerging = %v, want [C]", got)
	}
}

func TestPickEmergingRowsEmptyFuture(t *testing.T) {
	if got := PickEmergingRows([]DiseaseMetricRow{{DiseaseCode: "A"}}, nil, 5); len(got) != 0 {
		t.Errorf("empty future must yield empty output, got %v", got)
	}
}

func TestCacheKeyCoversFilters(t *testing.T) {
	base := QueryScope{YearStart: 2023, YearEnd: 2024, AgeGroups: []string{AgeBand40s}, Sex: SexMale, Limit: 5}
	withFilter := base
	withFilter.MinPrevalencePer100k = 100

	if base.CacheKey() == withFilter.CacheKey() {
		t.Error("cache key must distinguish scopes with different thresholds")
	}
}
