package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"stageportal/internal/domain/application"
)

type SweeperConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	StaleAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

const stalledReason = "scoring stalled"

// Sweeper periodically re-enqueues applications whose scoring never ran,
// stalled, or failed with attempts left. Stalled claims with no attempts
// left are marked failed.
type Sweeper struct {
	repo    application.ScoringRepository
	queue   Queue
	logger  Logger
	metrics Recorder
	cfg     SweeperConfig
	cron    *cron.Cron
	now     func() time.Time
}

func NewSweeper(repo application.ScoringRepository, queue Queue, logger Logger, metrics Recorder, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = cfg.Interval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Sweeper{repo: repo, queue: queue, logger: logger, metrics: metrics, cfg: cfg, cron: cron.New(), now: time.Now}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("scoring sweep failed: %v", err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule scoring sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling; the returned context is done once a running sweep ends.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	stalled, err := s.repo.FailStalledScoring(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.MaxAttempts, stalledReason)
	if err != nil {
		return 0, err
	}
	if stalled > 0 {
		for i := int64(0); i < stalled; i++ {
			s.metrics.ObserveScoring(OutcomeFailed, 0)
		}
		s.logger.Error(fmt.Sprintf("marked %d stalled scoring jobs as failed", stalled))
	}
	ids, err := s.repo.ListScoringBacklog(ctx, now.Add(-s.cfg.Grace), now.Add(-s.cfg.StaleAfter), s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, id := range ids {
		if err := s.queue.Enqueue(ctx, id); err != nil {
			s.metrics.EnqueueFailed()
			return enqueued, fmt.Errorf("requeue application %d: %w", id, err)
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info(fmt.Sprintf("requeued %d applications for scoring", enqueued))
	}
	return enqueued, nil
}
