package conversation

import (
	"context"
	"sync"

	"github.com/GTDGit/smsinterview/internal/models"
)

// MemorySessionStore keeps sessions in process memory. Used by the local
// chat tool, tests, and deployments with SESSION_BACKEND=memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.Session)}
}

func (m *MemorySessionStore) Get(_ context.Context, phone, surveyID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[SessionKey(phone, surveyID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemorySessionStore) Put(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[SessionKey(s.Phone, s.SurveyID)] = cloneSession(s)
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.Choices = append([]string(nil), s.Choices...)
	if s.Draft != nil {
		d := *s.Draft
		d.Answers = append([]models.Answer(nil), s.Draft.Answers...)
		if s.Draft.Comment != nil {
			comment := *s.Draft.Comment
			d.Comment = &comment
		}
		c.Draft = &d
	}
	return &c
}

// MemoryRegistrationStore keeps registrations in process memory.
type MemoryRegistrationStore struct {
	mu    sync.RWMutex
	codes map[string][]string
}

func NewMemoryRegistrationStore() *MemoryRegistrationStore {
	return &MemoryRegistrationStore{codes: make(map[string][]string)}
}

func (m *MemoryRegistrationStore) Get(_ context.Context, phone string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.codes[phone]...), nil
}

func (m *MemoryRegistrationStore) Put(_ context.Context, phone string, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(codes) == 0 {
		delete(m.codes, phone)
		return nil
	}
	m.codes[phone] = append([]string(nil), codes...)
	return nil
}

// StaticSurveys serves a fixed set of surveys.
type StaticSurveys map[string]*models.Survey

func (s StaticSurveys) GetSurvey(_ context.Context, id string) (*models.Survey, error) {
	survey, ok := s[id]
	if !ok || !survey.Active {
		return nil, ErrSurveyNotFound
	}
	return survey, nil
}
