package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Retrier processes due report deliveries; see service.DeliveryService.
type Retrier interface {
	RetryPending(ctx context.Context) (int, error)
}

// DeliveryWorker pushes queued reports downstream on a fixed interval.
type DeliveryWorker struct {
	retrier  Retrier
	interval time.Duration
}

// NewDeliveryWorker constructs a DeliveryWorker.
func NewDeliveryWorker(retrier Retrier, interval time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		retrier:  retrier,
		interval: interval,
	}
}

// Start runs the delivery loop until ctx is cancelled.
func (w *DeliveryWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting delivery worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Delivery worker stopped")
			return
		}
	}
}

func (w *DeliveryWorker) run(ctx context.Context) {
	n, err := w.retrier.RetryPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to process pending deliveries")
		return
	}
	if n > 0 {
		log.Debug().Int("processed", n).Msg("Processed report deliveries")
	}
}
