package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
)

const (
	OutcomeDone        = "done"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
	OutcomeError       = "error"
	OutcomeInterrupted = "interrupted"
)

type Logger interface {
	Info(msg string)
	Error(msg string)
}

// Recorder receives scoring metrics.
type Recorder interface {
	ObserveScoring(outcome string, duration time.Duration)
	EnqueueFailed()
}

// Documents resolves stored CV references to paths the scorer can read.
type Documents interface {
	Path(ref string) (string, error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveScoring(string, time.Duration) {}
func (nopRecorder) EnqueueFailed()                      {}

type WorkerConfig struct {
	Concurrency int
	StaleAfter  time.Duration
}

type Worker struct {
	queue   Queue
	repo    application.ScoringRepository
	invoker Invoker
	docs    Documents
	logger  Logger
	metrics Recorder
	cfg     WorkerConfig
	now     func() time.Time
}

func NewWorker(queue Queue, repo application.ScoringRepository, invoker Invoker, docs Documents, logger Logger, metrics Recorder, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Worker{queue: queue, repo: repo, invoker: invoker, docs: docs, logger: logger, metrics: metrics, cfg: cfg, now: time.Now}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error(fmt.Sprintf("scoring dequeue failed: %v", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := w.Process(ctx, id); err != nil {
			w.logger.Error(fmt.Sprintf("scoring application %d: %v", id, err))
		}
		if err := w.queue.Ack(context.WithoutCancel(ctx), id); err != nil {
			w.logger.Error(err.Error())
		}
	}
}

// Process claims one application, runs the scorer and stores the outcome.
// Scorer failures are recorded on the application and not returned.
func (w *Worker) Process(ctx context.Context, id int64) error {
	started := w.now()
	job, err := w.repo.ClaimScoring(ctx, id, started.Add(-w.cfg.StaleAfter))
	if err != nil {
		if common.Is(err, common.CodeConflict) || common.Is(err, common.CodeNotFound) {
			w.metrics.ObserveScoring(OutcomeSkipped, 0)
			return nil
		}
		w.metrics.ObserveScoring(OutcomeError, 0)
		return err
	}

	result, scoreErr := w.score(ctx, job)
	// outcomes are stored even after shutdown cancelled ctx
	storeCtx := context.WithoutCancel(ctx)
	if scoreErr != nil && errors.Is(ctx.Err(), context.Canceled) {
		w.metrics.ObserveScoring(OutcomeInterrupted, w.now().Sub(started))
		w.logger.Info(fmt.Sprintf("scoring application %d interrupted, claim released", id))
		return w.repo.ReleaseScoring(storeCtx, id)
	}
	if scoreErr != nil {
		w.metrics.ObserveScoring(OutcomeFailed, w.now().Sub(started))
		w.logger.Error(fmt.Sprintf("scoring application %d attempt %d failed: %v", id, job.Attempts, scoreErr))
		return w.repo.FailScoring(storeCtx, id, scoreErr.Error())
	}
	if err := w.repo.CompleteScoring(storeCtx, id, result); err != nil {
		w.metrics.ObserveScoring(OutcomeError, w.now().Sub(started))
		return err
	}
	w.metrics.ObserveScoring(OutcomeDone, w.now().Sub(started))
	w.logger.Info(fmt.Sprintf("scored application %d: %.3f", id, result.Score))
	return nil
}

func (w *Worker) score(ctx context.Context, job *application.ScoringJob) (application.ScoringResult, error) {
	path, err := w.docs.Path(job.CVRef)
	if err != nil {
		return application.ScoringResult{}, errors.New("cv document reference is invalid")
	}
	return w.invoker.Score(ctx, job.Domaine, path)
}
