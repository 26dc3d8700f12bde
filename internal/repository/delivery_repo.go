package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/smsinterview/internal/models"
)

// MaxDeliveryAttempts bounds attempts of one report delivery: the first
// push plus five retries.
const MaxDeliveryAttempts = 6

// DeliveryRepository provides access to the report delivery outbox.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository creates a new DeliveryRepository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// ClaimPending locks up to limit deliveries that are due and passes them to
// fn inside one transaction. Uses SKIP LOCKED so concurrent workers never
// pick the same row. Rows fn updates are written in the same transaction.
func (r *DeliveryRepository) ClaimPending(ctx context.Context, limit int, fn func(d *models.ReportDelivery) error) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const q = `
		SELECT id, report_id, target, payload, survey_id, attempt, http_status, response_body,
		       is_delivered, created_at, next_retry_at
		FROM report_deliveries
		WHERE is_delivered = false
		  AND next_retry_at <= NOW()
		  AND attempt < $1
		ORDER BY next_retry_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`
	var pending []models.ReportDelivery
	if err := tx.SelectContext(ctx, &pending, q, MaxDeliveryAttempts, limit); err != nil {
		return 0, err
	}

	for i := range pending {
		d := &pending[i]
		if err := fn(d); err != nil {
			return 0, err
		}
		if err := updateDelivery(ctx, tx, d); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(pending), nil
}

func updateDelivery(ctx context.Context, tx *sqlx.Tx, d *models.ReportDelivery) error {
	const q = `
		UPDATE report_deliveries SET
			attempt = $2,
			http_status = $3,
			response_body = $4,
			is_delivered = $5,
			next_retry_at = $6
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q,
		d.ID,
		d.Attempt,
		d.HTTPStatus,
		d.ResponseBody,
		d.IsDelivered,
		d.NextRetryAt,
	)
	return err
}
