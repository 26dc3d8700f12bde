package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
)

// SessionCache stores conversation sessions in Redis as JSON.
// Key: session:{surveyId}:{phone}
type SessionCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewSessionCache creates a SessionCache. Sessions idle for longer than ttl
// expire; zero keeps them forever.
func NewSessionCache(redis *RedisClient, ttl time.Duration) *SessionCache {
	return &SessionCache{redis: redis, ttl: ttl}
}

func sessionKey(phone, surveyID string) string {
	return "session:" + conversation.SessionKey(phone, surveyID)
}

// Get returns conversation.ErrSessionNotFound for unknown or expired sessions.
func (c *SessionCache) Get(ctx context.Context, phone, surveyID string) (*models.Session, error) {
	raw, err := c.redis.Get(ctx, sessionKey(phone, surveyID))
	if errors.Is(err, ErrCacheMiss) {
		return nil, conversation.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(raw)
}

// Put stores the session and refreshes its TTL.
func (c *SessionCache) Put(ctx context.Context, s *models.Session) error {
	raw, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, sessionKey(s.Phone, s.SurveyID), raw, c.ttl); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func encodeSession(s *models.Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	return string(b), nil
}

func decodeSession(raw string) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}
