package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/config"
	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/period"
)

// testRedis connects to the Redis named by TEST_REDIS_HOST or skips.
func testRedis(t *testing.T) *RedisClient {
	t.Helper()
	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		t.Skip("TEST_REDIS_HOST not set")
	}
	port := os.Getenv("TEST_REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	r, err := NewRedisClient(&config.RedisConfig{Host: host, Port: port, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "session:disease:+2348012345678", sessionKey("+2348012345678", "disease"))
}

func TestSessionEncoding(t *testing.T) {
	comment := "none"
	s := &models.Session{
		Phone:           "+2348012345678",
		SurveyID:        "disease",
		State:           models.StateConfirming,
		LockedForReport: true,
		Draft: &models.ReportDraft{
			LocationCode: "so.22.8",
			LocationName: "ACHIDA",
			Period:       period.Period{Year: 2014, Week: 25},
			Answers: []models.Answer{
				{Kind: models.AnswerNumber, Number: 0},
				{Kind: models.AnswerUnknown},
			},
			Comment: &comment,
		},
	}

	raw, err := encodeSession(s)
	require.NoError(t, err)
	got, err := decodeSession(raw)
	require.NoError(t, err)

	assert.Equal(t, s.State, got.State)
	assert.Equal(t, s.Draft.Period, got.Draft.Period)
	assert.Equal(t, models.AnswerNumber, got.Draft.Answers[0].Kind)
	assert.Equal(t, "0", got.Draft.Answers[0].Display())
	assert.Equal(t, "unknown", got.Draft.Answers[1].Display())

	_, err = decodeSession("{not json")
	assert.Error(t, err)
}

func TestSessionCacheRedis(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	c := NewSessionCache(r, time.Minute)
	phone := "+234" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = r.Delete(ctx, sessionKey(phone, "disease")) })

	_, err := c.Get(ctx, phone, "disease")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)

	s := models.NewSession(phone, "disease")
	s.State = models.StateSelectingLocation
	s.Choices = []string{"so.22.8", "kb.1.5"}
	require.NoError(t, c.Put(ctx, s))

	got, err := c.Get(ctx, phone, "disease")
	require.NoError(t, err)
	assert.Equal(t, s.Choices, got.Choices)
}

func TestSessionLockRedis(t *testing.T) {
	r := testRedis(t)
	l := NewSessionLock(r, 5*time.Second, 0)
	key := "disease:+234" + time.Now().Format("150405.000000")

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	bounded := NewSessionLock(r, 5*time.Second, 50*time.Millisecond)
	start := time.Now()
	_, err = bounded.Lock(context.Background(), key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	unlock()
}
