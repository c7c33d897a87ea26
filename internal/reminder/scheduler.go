package reminder

import (
	"context"
	"time"

	"github.com/testme/testme-backend/pkg/logger"
)

const defaultInterval = 24 * time.Hour

// Scheduler runs reminder scans periodically
type Scheduler struct {
	scanner    *Scanner
	interval   time.Duration
	runOnStart bool
	now        func() time.Time
	logger     *logger.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewScheduler creates a new reminder scheduler
func NewScheduler(scanner *Scanner, interval time.Duration, runOnStart bool, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scanner:    scanner,
		interval:   interval,
		runOnStart: runOnStart,
		now:        time.Now,
		logger:     log.WithComponent("reminder-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Info().Dur("interval", s.interval).Bool("run_on_start", s.runOnStart).Msg("reminder scheduler started")

		if s.runOnStart {
			s.runScan(ctx)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("reminder scheduler stopped")
				return
			case <-ticker.C:
				s.runScan(ctx)
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running scan to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) runScan(ctx context.Context) {
	start := time.Now()

	summary, err := s.scanner.Scan(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("reminder scan failed")
		return
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Str("target", summary.Target).
		Int("total", len(summary.Results)).
		Int("sent", summary.Sent()).
		Msg("reminder scan cycle completed")
}
