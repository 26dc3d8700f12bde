package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/smsinterview/internal/models"
)

// SurveyRepository stores survey schemas. Questions, message overrides and
// location levels are JSONB columns.
type SurveyRepository struct {
	db *sqlx.DB
}

// NewSurveyRepository creates a new SurveyRepository.
func NewSurveyRepository(db *sqlx.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

type surveyRow struct {
	ID             string          `db:"id"`
	Name           string          `db:"name"`
	Tag            string          `db:"tag"`
	Active         bool            `db:"active"`
	Questions      json.RawMessage `db:"questions"`
	MapID          *string         `db:"map_id"`
	TopicID        *string         `db:"topic_id"`
	ExternalAPIKey *string         `db:"external_api_key"`
	MessageSet     string          `db:"message_set"`
	Messages       json.RawMessage `db:"messages"`
	LocationLevels json.RawMessage `db:"location_levels"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const surveyColumns = `id, name, tag, active, questions, map_id, topic_id, external_api_key,
	message_set, messages, location_levels, created_at, updated_at`

func (row *surveyRow) toModel() (*models.Survey, error) {
	s := &models.Survey{
		ID:             row.ID,
		Name:           row.Name,
		Tag:            row.Tag,
		Active:         row.Active,
		MapID:          row.MapID,
		TopicID:        row.TopicID,
		ExternalAPIKey: row.ExternalAPIKey,
		MessageSet:     row.MessageSet,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Questions, &s.Questions); err != nil {
		return nil, fmt.Errorf("survey %s questions: %w", row.ID, err)
	}
	if len(row.Messages) > 0 {
		if err := json.Unmarshal(row.Messages, &s.Messages); err != nil {
			return nil, fmt.Errorf("survey %s messages: %w", row.ID, err)
		}
	}
	if len(row.LocationLevels) > 0 {
		if err := json.Unmarshal(row.LocationLevels, &s.LocationLevels); err != nil {
			return nil, fmt.Errorf("survey %s location levels: %w", row.ID, err)
		}
	}
	return s, nil
}

// GetByID returns a survey by ID, or sql.ErrNoRows.
func (r *SurveyRepository) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	var row surveyRow
	err := r.db.GetContext(ctx, &row, `SELECT `+surveyColumns+` FROM surveys WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return row.toModel()
}

// List returns all surveys ordered by ID.
func (r *SurveyRepository) List(ctx context.Context) ([]models.Survey, error) {
	var rows []surveyRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+surveyColumns+` FROM surveys ORDER BY id`); err != nil {
		return nil, err
	}
	surveys := make([]models.Survey, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, *s)
	}
	return surveys, nil
}

// Upsert inserts or replaces a survey definition.
func (r *SurveyRepository) Upsert(ctx context.Context, s *models.Survey) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return err
	}
	messages, err := json.Marshal(nonNilMap(s.Messages))
	if err != nil {
		return err
	}
	levels, err := json.Marshal(nonNilSlice(s.LocationLevels))
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO surveys (
			id, name, tag, active, questions, map_id, topic_id, external_api_key,
			message_set, messages, location_levels
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tag = EXCLUDED.tag,
			active = EXCLUDED.active,
			questions = EXCLUDED.questions,
			map_id = EXCLUDED.map_id,
			topic_id = EXCLUDED.topic_id,
			external_api_key = EXCLUDED.external_api_key,
			message_set = EXCLUDED.message_set,
			messages = EXCLUDED.messages,
			location_levels = EXCLUDED.location_levels,
			updated_at = NOW()
		RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		s.ID, s.Name, s.Tag, s.Active, questions, s.MapID, s.TopicID, s.ExternalAPIKey,
		s.MessageSet, messages, levels,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
