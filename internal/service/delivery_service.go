package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/pkg/crisismap"
)

// DeliveryStore hands due outbox rows to a callback inside a transaction;
// see repository.DeliveryRepository.
type DeliveryStore interface {
	ClaimPending(ctx context.Context, limit int, fn func(d *models.ReportDelivery) error) (int, error)
}

// ReportPoster pushes encoded reports to Crisis Map; see crisismap.Client.
type ReportPoster interface {
	PostReports(ctx context.Context, apiKey string, payload json.RawMessage) (*crisismap.Result, error)
}

// retryIntervals is the wait after each failed attempt: 30s, 1m, 5m, 30m, 2h.
var retryIntervals = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// DeliveryService pushes queued reports downstream and reschedules failures.
type DeliveryService struct {
	store   DeliveryStore
	surveys conversation.SurveySource
	poster  ReportPoster
	batch   int
	now     func() time.Time
}

// NewDeliveryService creates a DeliveryService processing up to batch rows
// per run.
func NewDeliveryService(store DeliveryStore, surveys conversation.SurveySource, poster ReportPoster, batch int) *DeliveryService {
	if batch <= 0 {
		batch = 50
	}
	return &DeliveryService{store: store, surveys: surveys, poster: poster, batch: batch, now: time.Now}
}

// RetryPending attempts every due delivery once and returns how many were
// processed.
func (s *DeliveryService) RetryPending(ctx context.Context) (int, error) {
	return s.store.ClaimPending(ctx, s.batch, func(d *models.ReportDelivery) error {
		s.attempt(ctx, d)
		return nil
	})
}

// nextRetryTime returns when to retry after the given number of attempts,
// or the zero time when retries are exhausted.
func (s *DeliveryService) nextRetryTime(attempt int) time.Time {
	if attempt < 1 || attempt > len(retryIntervals) {
		return time.Time{}
	}
	return s.now().Add(retryIntervals[attempt-1])
}

func (s *DeliveryService) attempt(ctx context.Context, d *models.ReportDelivery) {
	d.Attempt++
	logger := log.With().Int("delivery_id", d.ID).Str("report_id", d.ReportID).Int("attempt", d.Attempt).Logger()

	survey, err := s.surveys.GetSurvey(ctx, d.SurveyID)
	if err != nil && !errors.Is(err, conversation.ErrSurveyNotFound) {
		d.Attempt--
		next := s.now().Add(retryIntervals[0])
		d.NextRetryAt = &next
		logger.Error().Err(err).Str("survey_id", d.SurveyID).Msg("Failed to load survey, delivery postponed")
		return
	}
	if err != nil || !survey.HasCrisisMap() {
		logger.Warn().Err(err).Str("survey_id", d.SurveyID).Msg("Survey no longer linked to Crisis Map, dropping delivery")
		d.NextRetryAt = nil
		return
	}

	res, err := s.poster.PostReports(ctx, *survey.ExternalAPIKey, d.Payload)
	d.HTTPStatus = nil
	d.ResponseBody = nil
	if res != nil {
		sc := res.StatusCode
		d.HTTPStatus = &sc
		if res.Body != "" {
			body := res.Body
			d.ResponseBody = &body
		}
	}

	d.IsDelivered = err == nil && res.OK()
	if d.IsDelivered {
		d.NextRetryAt = nil
		logger.Info().Msg("Report delivered to Crisis Map")
		return
	}

	if next := s.nextRetryTime(d.Attempt); next.IsZero() {
		d.NextRetryAt = nil
		logger.Error().Err(err).Msg("Report delivery failed, no retries left")
	} else {
		d.NextRetryAt = &next
		logger.Warn().Err(err).Time("next_retry_at", next).Msg("Report delivery failed, retry scheduled")
	}
}
