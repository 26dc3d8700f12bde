package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/smsinterview/internal/models"
)

// ReportRepository stores submitted reports and their delivery outbox.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report together with its pending deliveries so a report
// is never stored without its outbox rows.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report, deliveries []models.ReportDelivery) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertReport = `
		INSERT INTO reports (
			id, survey_id, phone, location_code, period_year, period_week, answers, comment, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, insertReport,
		report.ID,
		report.SurveyID,
		report.Phone,
		report.LocationCode,
		report.PeriodYear,
		report.PeriodWeek,
		report.Answers,
		report.Comment,
		report.SubmittedAt,
	); err != nil {
		return err
	}

	const insertDelivery = `
		INSERT INTO report_deliveries (
			report_id, target, payload, survey_id, attempt, is_delivered, created_at, next_retry_at
		) VALUES ($1, $2, $3, $4, 0, false, NOW(), $5)
		RETURNING id`
	for i := range deliveries {
		d := &deliveries[i]
		d.ReportID = report.ID
		if err := tx.QueryRowContext(ctx, insertDelivery,
			d.ReportID, d.Target, d.Payload, d.SurveyID, d.NextRetryAt,
		).Scan(&d.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySurvey returns a page of reports for a survey, newest first, with
// the total count.
func (r *ReportRepository) ListBySurvey(ctx context.Context, surveyID string, limit, offset int) ([]models.Report, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reports WHERE survey_id = $1`, surveyID); err != nil {
		return nil, 0, err
	}

	const q = `
		SELECT id, survey_id, phone, location_code, period_year, period_week, answers, comment, submitted_at
		FROM reports
		WHERE survey_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3`
	reports := []models.Report{}
	if err := r.db.SelectContext(ctx, &reports, q, surveyID, limit, offset); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListByPhone returns the latest reports sent from a phone.
func (r *ReportRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]models.Report, error) {
	const q = `
		SELECT id, survey_id, phone, location_code, period_year, period_week, answers, comment, submitted_at
		FROM reports
		WHERE phone = $1
		ORDER BY submitted_at DESC
		LIMIT $2`
	reports := []models.Report{}
	if err := r.db.SelectContext(ctx, &reports, q, phone, limit); err != nil {
		return nil, err
	}
	return reports, nil
}
