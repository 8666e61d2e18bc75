package publication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

// NextDailySequence uses a single upsert so the increment happens
// inside the store; racing publishers each get a distinct value.
func (r *repoPG) NextDailySequence(ctx context.Context, day time.Time) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO report_issue_daily_seq (issue_day, seq)
		VALUES ($1, 1)
		ON CONFLICT (issue_day) DO UPDATE SET seq = report_issue_daily_seq.seq + 1
		RETURNING seq`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next daily sequence: %w", err)
	}
	return seq, nil
}

const recCols = `id, compliance_code, consultant_id, consultant_name,
	customer_name, customer_sex, customer_age_band,
	year_start, year_end, sort_basis,
	min_prevalence_per_100k, min_cost_per_patient,
	artifact_key, artifact_filename, content_version, created_at`

func (r *repoPG) scanRecord(row pgx.Row) (*PublicationRecord, error) {
	var rec PublicationRecord
	err := row.Scan(&rec.ID, &rec.ComplianceCode, &rec.ConsultantID, &rec.ConsultantName,
		&rec.CustomerName, &rec.CustomerSex, &rec.CustomerAgeBand,
		&rec.YearStart, &rec.YearEnd, &rec.SortBasis,
		&rec.MinPrevalencePer100k, &rec.MinCostPerPatient,
		&rec.ArtifactKey, &rec.ArtifactFilename, &rec.ContentVersion, &rec.CreatedAt)
	return &rec, err
}

func (r *repoPG) Insert(ctx context.Context, rec *PublicationRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO report_issue (id, compliance_code, consultant_id, consultant_name,
			customer_name, customer_sex, customer_age_band,
			year_start, year_end, sort_basis,
			min_prevalence_per_100k, min_cost_per_patient,
			artifact_key, artifact_filename, content_version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		rec.ID, rec.ComplianceCode, rec.ConsultantID, rec.ConsultantName,
		rec.CustomerName, rec.CustomerSex, rec.CustomerAgeBand,
		rec.YearStart, rec.YearEnd, rec.SortBasis,
		rec.MinPrevalencePer100k, rec.MinCostPerPatient,
		rec.ArtifactKey, rec.ArtifactFilename, rec.ContentVersion, rec.CreatedAt)
	return err
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*PublicationRecord, error) {
	rec, err := r.scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recCols+` FROM report_issue WHERE compliance_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repoPG) ListByConsultant(ctx context.Context, consultantID string, limit, offset int) ([]*PublicationRecord, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM report_issue WHERE consultant_id = $1`, consultantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+recCols+` FROM report_issue WHERE consultant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		consultantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PublicationRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *repoPG) InsertEvent(ctx context.Context, ev *AuditEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO report_issue_event (id, compliance_code, event_type, actor_type, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ev.ID, ev.ComplianceCode, ev.EventType, ev.ActorType, ev.ActorID, ev.CreatedAt)
	return err
}

func (r *repoPG) ListEvents(ctx context.Context, code string, limit, offset int) ([]*AuditEvent, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM report_issue_event WHERE compliance_code = $1`, code).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, compliance_code, event_type, actor_type, actor_id, created_at
		FROM report_issue_event WHERE compliance_code = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, code, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.ComplianceCode, &ev.EventType, &ev.ActorType, &ev.ActorID, &ev.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &ev)
	}
	return items, total, rows.Err()
}
