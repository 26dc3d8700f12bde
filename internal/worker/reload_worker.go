package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/models"
)

// LocationSource lists every known location; see repository.LocationRepository.
type LocationSource interface {
	ListAll(ctx context.Context) ([]models.Location, error)
}

// LocationIndex is the in-memory gazetteer being refreshed.
type LocationIndex interface {
	Replace(locations []models.Location)
}

// ReloadWorker periodically rebuilds the gazetteer from the database so
// imports made with surveyctl take effect without a restart.
type ReloadWorker struct {
	source   LocationSource
	index    LocationIndex
	interval time.Duration
}

// NewReloadWorker constructs a ReloadWorker.
func NewReloadWorker(source LocationSource, index LocationIndex, interval time.Duration) *ReloadWorker {
	return &ReloadWorker{
		source:   source,
		index:    index,
		interval: interval,
	}
}

// Reload replaces the index with the current locations. An empty result
// keeps the previous index.
func (w *ReloadWorker) Reload(ctx context.Context) (int, error) {
	locations, err := w.source.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list locations: %w", err)
	}
	if len(locations) == 0 {
		return 0, nil
	}
	w.index.Replace(locations)
	return len(locations), nil
}

// Start runs the reload loop until ctx is cancelled.
func (w *ReloadWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting gazetteer reload worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := w.Reload(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to reload gazetteer")
				continue
			}
			if n == 0 {
				log.Warn().Msg("No locations found, keeping current gazetteer")
			}
		case <-ctx.Done():
			log.Info().Msg("Gazetteer reload worker stopped")
			return
		}
	}
}
