package service

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/gazetteer"
	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/surveyfile"
)

// LocationWriter stores gazetteer entries; see repository.LocationRepository.
type LocationWriter interface {
	Upsert(ctx context.Context, locations []models.Location) error
}

// SurveyWriter stores survey definitions; see repository.SurveyRepository.
type SurveyWriter interface {
	Upsert(ctx context.Context, s *models.Survey) error
}

// ImportService loads reference data files into the database.
type ImportService struct {
	locations LocationWriter
	surveys   SurveyWriter
}

// NewImportService creates an ImportService.
func NewImportService(locations LocationWriter, surveys SurveyWriter) *ImportService {
	return &ImportService{locations: locations, surveys: surveys}
}

// ImportLocations upserts every location of a nested location file.
func (s *ImportService) ImportLocations(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	locations, err := gazetteer.LoadTree(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := s.locations.Upsert(ctx, locations); err != nil {
		return 0, fmt.Errorf("upsert locations: %w", err)
	}

	log.Info().Str("file", path).Int("count", len(locations)).Msg("Locations imported")
	return len(locations), nil
}

// ImportSurveys upserts every survey of a YAML survey file. The file is
// validated as a whole before anything is written.
func (s *ImportService) ImportSurveys(ctx context.Context, path string) ([]models.Survey, error) {
	surveys, err := surveyfile.Load(path)
	if err != nil {
		return nil, err
	}
	for i := range surveys {
		if err := s.surveys.Upsert(ctx, &surveys[i]); err != nil {
			return nil, fmt.Errorf("upsert survey %q: %w", surveys[i].ID, err)
		}
	}

	log.Info().Str("file", path).Int("count", len(surveys)).Msg("Surveys imported")
	return surveys, nil
}
