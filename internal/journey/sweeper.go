package journey

import (
	"context"
	"log"
	"time"
)

// Sweeper drives deadline-based expiry on a fixed interval. Expiry is
// never user-facing: it only produces logged transitions.
type Sweeper struct {
	service  Service
	interval time.Duration
}

func NewSweeper(service Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.service.SweepDeadlines(ctx); err != nil {
				log.Printf("Deadline sweep failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
