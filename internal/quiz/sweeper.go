package quiz

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically evicts idle sessions from a Manager.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewSweeper(manager *Manager, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		manager:  manager,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "quiz_session_sweeper").Logger(),
	}
}

// Run blocks until context cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.manager == nil {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug().Dur("interval", s.interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.manager.Sweep(s.now())
		}
	}
}
