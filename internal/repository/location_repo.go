package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/smsinterview/internal/models"
)

// LocationRepository handles database operations for the location gazetteer.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// ListAll returns every location ordered by code.
func (r *LocationRepository) ListAll(ctx context.Context) ([]models.Location, error) {
	query := `SELECT code, name, level, parent_code, lat, lng FROM locations ORDER BY code`

	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, err
	}
	return locations, nil
}

// Upsert inserts or updates locations in one transaction. Parents may
// follow their children in the slice; the foreign key is deferred.
func (r *LocationRepository) Upsert(ctx context.Context, locations []models.Location) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO locations (code, name, level, parent_code, lat, lng)
		VALUES (:code, :name, :level, :parent_code, :lat, :lng)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			level = EXCLUDED.level,
			parent_code = EXCLUDED.parent_code,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			updated_at = NOW()`
	stmt, err := tx.PrepareNamedContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range locations {
		if _, err := stmt.ExecContext(ctx, &locations[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}
