package stats

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns an Aggregator backed by the disease-cost tables.
func NewRepoPG(pool *pgxpool.Pool) Aggregator {
	return &repoPG{pool: pool}
}

// SQL expressions for the derived metrics, guarded so a zero
// denominator aggregates to 0 instead of a division error.
const (
	prevalenceExpr = `CASE WHEN COALESCE(SUM(m.population), 0) = 0 THEN 0
		ELSE SUM(m.patient_count)::float8 / SUM(m.population) * 100000 END`
	costPerPatientExpr = `CASE WHEN COALESCE(SUM(m.patient_count), 0) = 0 THEN 0
		ELSE COALESCE(SUM(m.total_cost), 0)::float8 / SUM(m.patient_count) END`
	totalCostExpr = `COALESCE(SUM(m.total_cost), 0)`
)

func basisExpr(b SortBasis) string {
	switch b {
	case SortByPrevalence:
		return prevalenceExpr
	case SortByCostPerPatient:
		return costPerPatientExpr
	default:
		return totalCostExpr
	}
}

// buildAggregateQuery assembles the grouped aggregate with optional
// conjunctive HAVING thresholds and the basis-selected ordering.
func buildAggregateQuery(scope QueryScope) (string, []interface{}) {
	query := `
		SELECT m.disease_code,
			COALESCE(NULLIF(TRIM(MAX(d.disease_name)), ''), m.disease_code) AS disease_name,
			` + totalCostExpr + ` AS total_cost_sum,
			COALESCE(SUM(m.patient_count), 0) AS patient_count_sum,
			COALESCE(SUM(m.population), 0) AS population_sum
		FROM disease_year_age_sex_metrics m
		LEFT JOIN disease d ON d.disease_code = m.disease_code
		WHERE m.year BETWEEN $1 AND $2 AND m.sex = $3 AND m.age_group = ANY($4)`
	args := []interface{}{scope.YearStart, scope.YearEnd, scope.Sex, scope.AgeGroups}
	idx := 5

	query += `
		GROUP BY m.disease_code`

	// Thresholds apply only when set and positive, and conjunctively.
	having := ""
	if scope.MinPrevalencePer100k > 0 {
		having += fmt.Sprintf(` AND %s >= $%d`, prevalenceExpr, idx)
		args = append(args, scope.MinPrevalencePer100k)
		idx++
	}
	if scope.MinCostPerPatientNative > 0 {
		having += fmt.Sprintf(` AND %s >= $%d`, costPerPatientExpr, idx)
		args = append(args, scope.MinCostPerPatientNative)
		idx++
	}
	if having != "" {
		query += `
		HAVING 1=1` + having
	}

	query += fmt.Sprintf(`
		ORDER BY %s DESC, m.disease_code ASC
		LIMIT $%d`, basisExpr(scope.SortBasis), idx)
	args = append(args, scope.Limit)
	return query, args
}

func (r *repoPG) Aggregate(ctx context.Context, scope QueryScope) ([]DiseaseMetricRow, error) {
	query, args := buildAggregateQuery(scope)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate disease metrics: %w", err)
	}
	defer rows.Close()

	var items []DiseaseMetricRow
	for rows.Next() {
		var row DiseaseMetricRow
		if err := rows.Scan(&row.DiseaseCode, &row.DiseaseName,
			&row.TotalCostPeriodSum, &row.PatientCountPeriodSum, &row.PopulationPeriodSum); err != nil {
			return nil, fmt.Errorf("scan disease metric row: %w", err)
		}
		row.Derive()
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate disease metrics: %w", err)
	}
	return items, nil
}

func (r *repoPG) YearRange(ctx context.Context) (YearRange, error) {
	var yr YearRange
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MIN(year), 0), COALESCE(MAX(year), 0)
		FROM disease_year_age_sex_metrics`).Scan(&yr.MinYear, &yr.MaxYear)
	if err != nil {
		return YearRange{}, fmt.Errorf("fetch data year range: %w", err)
	}
	return yr, nil
}
