package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/config"
	"github.com/GTDGit/smsinterview/internal/database"
)

// testDB connects to the PostgreSQL named by TEST_DB_HOST or skips.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set")
	}
	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	db, err := database.Connect(&config.DatabaseConfig{
		Host:     host,
		Port:     getenv("TEST_DB_PORT", "5432"),
		User:     getenv("TEST_DB_USER", "postgres"),
		Password: getenv("TEST_DB_PASSWORD", "postgres"),
		Name:     getenv("TEST_DB_NAME", "smsinterview_test"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionAdvisoryLock(t *testing.T) {
	db := testDB(t)
	// Two repositories stand in for two API instances sharing the database.
	a := NewSessionRepository(db, 0)
	b := NewSessionRepository(db, 0)
	key := "disease:+234" + time.Now().Format("150405.000000")

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		repo := a
		if i%2 == 1 {
			repo = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := repo.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)

	unlock, err := a.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	bounded := NewSessionRepository(db, 50*time.Millisecond)
	_, err = bounded.Lock(context.Background(), key)
	assert.Error(t, err)

	other, err := bounded.Lock(context.Background(), key+":other")
	require.NoError(t, err)
	other()
}
