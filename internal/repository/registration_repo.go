package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// RegistrationRepository maps phone numbers to their ordered location codes.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get returns the phone's codes in registration order; empty when the phone
// never registered.
func (r *RegistrationRepository) Get(ctx context.Context, phone string) ([]string, error) {
	var codes []string
	err := r.db.QueryRowContext(ctx,
		`SELECT location_codes FROM registrations WHERE phone = $1`, phone,
	).Scan(pq.Array(&codes))
	if err == sql.ErrNoRows {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Put replaces the phone's codes. An empty list clears the registration.
func (r *RegistrationRepository) Put(ctx context.Context, phone string, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	const q = `
		INSERT INTO registrations (phone, location_codes)
		VALUES ($1, $2)
		ON CONFLICT (phone) DO UPDATE SET
			location_codes = EXCLUDED.location_codes,
			updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, q, phone, pq.Array(codes))
	return err
}
