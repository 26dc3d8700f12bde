package conversation

import (
	"context"
	"time"

	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/period"
)

// Message is one inbound SMS after the provider envelope is removed.
type Message struct {
	Phone    string
	SurveyID string
	Text     string
}

// SessionStore persists conversation state between independent messages.
type SessionStore interface {
	// Get returns ErrSessionNotFound for a pair never seen before.
	Get(ctx context.Context, phone, surveyID string) (*models.Session, error)
	Put(ctx context.Context, session *models.Session) error
}

// RegistrationStore maps a phone number to its ordered location codes.
type RegistrationStore interface {
	// Get returns an empty slice for unregistered phones.
	Get(ctx context.Context, phone string) ([]string, error)
	Put(ctx context.Context, phone string, codes []string) error
}

// SurveySource provides read-only survey schemas.
type SurveySource interface {
	// GetSurvey returns ErrSurveyNotFound for unknown or inactive surveys.
	GetSurvey(ctx context.Context, id string) (*models.Survey, error)
}

// Resolver resolves location codes; see gazetteer.Gazetteer.
type Resolver interface {
	Resolve(code string) (*models.Location, error)
}

// Submission is a completed report handed to the sink.
type Submission struct {
	Phone        string
	SurveyID     string
	LocationCode string
	Period       period.Period
	Answers      []models.Answer
	Comment      string
	SubmittedAt  time.Time
}

// ReportSink accepts completed reports. A nil error is the acknowledgement.
type ReportSink interface {
	Submit(ctx context.Context, sub Submission) error
}

// Locker serializes turns of one (phone, survey) pair.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SessionKey is the lock and storage key of a (phone, survey) pair.
func SessionKey(phone, surveyID string) string {
	return surveyID + ":" + phone
}
