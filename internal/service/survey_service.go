package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
)

// SurveyStore loads survey schemas; see repository.SurveyRepository.
type SurveyStore interface {
	GetByID(ctx context.Context, id string) (*models.Survey, error)
	List(ctx context.Context) ([]models.Survey, error)
}

type cachedSurvey struct {
	survey   *models.Survey
	loadedAt time.Time
}

// SurveyService serves survey schemas to the conversation engine, caching
// them in memory for ttl. Concurrent misses for one survey share a load.
type SurveyService struct {
	store SurveyStore
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSurvey
	group singleflight.Group
}

// NewSurveyService creates a SurveyService.
func NewSurveyService(store SurveyStore, ttl time.Duration) *SurveyService {
	return &SurveyService{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedSurvey),
	}
}

// GetSurvey returns conversation.ErrSurveyNotFound for unknown or inactive
// surveys.
func (s *SurveyService) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	survey, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !survey.Active {
		return nil, conversation.ErrSurveyNotFound
	}
	return survey, nil
}

func (s *SurveyService) load(ctx context.Context, id string) (*models.Survey, error) {
	if survey, ok := s.cached(id); ok {
		return survey, nil
	}

	v, err, _ := s.group.Do(id, func() (interface{}, error) {
		if survey, ok := s.cached(id); ok {
			return survey, nil
		}
		survey, err := s.store.GetByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrSurveyNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load survey %s: %w", id, err)
		}

		s.mu.Lock()
		s.cache[id] = cachedSurvey{survey: survey, loadedAt: s.now()}
		s.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Survey), nil
}

func (s *SurveyService) cached(id string) (*models.Survey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[id]
	if !ok || s.now().Sub(c.loadedAt) >= s.ttl {
		return nil, false
	}
	return c.survey, true
}

// List returns every survey, active or not, straight from the store.
func (s *SurveyService) List(ctx context.Context) ([]models.Survey, error) {
	return s.store.List(ctx)
}
