package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/smsinterview/internal/models"
)

type recordingWriter struct {
	locations []models.Location
	err       error
}

func (w *recordingWriter) Upsert(_ context.Context, locations []models.Location) error {
	w.locations = append(w.locations, locations...)
	return w.err
}

type recordingSurveyWriter struct {
	ids []string
}

func (w *recordingSurveyWriter) Upsert(_ context.Context, s *models.Survey) error {
	w.ids = append(w.ids, s.ID)
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportLocations(t *testing.T) {
	path := writeFile(t, "locations.json", `{
		"childAdminLevel": "state",
		"children": {
			"SOKOTO": {
				"code": "SO",
				"childAdminLevel": "district",
				"children": {"WURNO": {"code": "22", "centroidLat": 13.2, "centroidLng": 5.4}}
			}
		}
	}`)

	locations := &recordingWriter{}
	svc := NewImportService(locations, &recordingSurveyWriter{})

	n, err := svc.ImportLocations(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, locations.locations, 2)
	assert.Equal(t, "so", locations.locations[0].Code)
	assert.Equal(t, "so.22", locations.locations[1].Code)
	assert.Equal(t, "district", locations.locations[1].Level)

	locations.err = errors.New("db down")
	_, err = svc.ImportLocations(context.Background(), path)
	assert.ErrorContains(t, err, "upsert locations")

	_, err = svc.ImportLocations(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestImportSurveys(t *testing.T) {
	surveys := &recordingSurveyWriter{}
	svc := NewImportService(&recordingWriter{}, surveys)

	path := writeFile(t, "surveys.yaml", "surveys:\n  - id: disease\n    questions:\n      - text: Cases\n  - id: names\n")
	got, err := svc.ImportSurveys(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"disease", "names"}, surveys.ids)

	bad := writeFile(t, "bad.yaml", "surveys:\n  - id: ok\n  - id: ok\n")
	_, err = svc.ImportSurveys(context.Background(), bad)
	assert.ErrorContains(t, err, "duplicate id")
	assert.Equal(t, []string{"disease", "names"}, surveys.ids)
}
