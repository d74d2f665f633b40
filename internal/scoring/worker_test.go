package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stageportal/internal/common"
	"stageportal/internal/domain/application"
)

type fakeScoringRepo struct {
	mu         sync.Mutex
	status     map[int64]application.ScoringStatus
	attempts   map[int64]int
	results    map[int64]application.ScoringResult
	failures   map[int64]string
	backlog    []int64
	stalled    int64
	stalledMax int
	claimErr   error
	lastStale  time.Time
}

func newFakeScoringRepo(ids ...int64) *fakeScoringRepo {
	repo := &fakeScoringRepo{
		status:   map[int64]application.ScoringStatus{},
		attempts: map[int64]int{},
		results:  map[int64]application.ScoringResult{},
		failures: map[int64]string{},
	}
	for _, id := range ids {
		repo.status[id] = application.ScoringNotStarted
	}
	return repo
}

func (r *fakeScoringRepo) ClaimScoring(_ context.Context, id int64, staleBefore time.Time) (*application.ScoringJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastStale = staleBefore
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	status, ok := r.status[id]
	if !ok {
		return nil, common.NewError(common.CodeNotFound, "application not found", nil)
	}
	if status == application.ScoringDone || status == application.ScoringPending {
		return nil, common.NewError(common.CodeConflict, "scoring already "+string(status), nil)
	}
	r.status[id] = application.ScoringPending
	r.attempts[id]++
	return &application.ScoringJob{ApplicationID: id, Domaine: "Informatique", CVRef: "cv.pdf", Attempts: r.attempts[id]}, nil
}

func (r *fakeScoringRepo) CompleteScoring(_ context.Context, id int64, result application.ScoringResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[id] = application.ScoringDone
	r.results[id] = result
	return nil
}

func (r *fakeScoringRepo) FailScoring(_ context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[id] = application.ScoringFailed
	r.failures[id] = reason
	return nil
}

func (r *fakeScoringRepo) ReleaseScoring(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status[id] != application.ScoringPending {
		return common.NewError(common.CodeNotFound, "application not found", nil)
	}
	r.status[id] = application.ScoringNotStarted
	r.attempts[id]--
	return nil
}

func (r *fakeScoringRepo) FailStalledScoring(_ context.Context, _ time.Time, maxAttempts int, _ string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stalledMax = maxAttempts
	return r.stalled, nil
}

func (r *fakeScoringRepo) ListScoringBacklog(context.Context, time.Time, time.Time, int, int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.backlog...), nil
}

func (r *fakeScoringRepo) statusOf(id int64) application.ScoringStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[id]
}

type fakeInvoker struct {
	err   error
	calls int
	paths []string
	mu    sync.Mutex
}

func (f *fakeInvoker) Score(_ context.Context, _ string, cvPath string) (application.ScoringResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.paths = append(f.paths, cvPath)
	if f.err != nil {
		return application.ScoringResult{}, f.err
	}
	return application.ScoringResult{Score: 0.5, Experience: 1, Skills: []string{"go"}}, nil
}

type fakeDocs struct{}

func (fakeDocs) Path(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("bad ref")
	}
	return "/uploads/" + ref, nil
}

type fakeLogger struct{}

func (fakeLogger) Info(string)  {}
func (fakeLogger) Error(string) {}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	enqueue  int
}

func (r *countingRecorder) ObserveScoring(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) EnqueueFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueue++
}

func TestWorkerProcessStoresResult(t *testing.T) {
	repo := newFakeScoringRepo(1)
	invoker := &fakeInvoker{}
	metrics := &countingRecorder{}
	worker := NewWorker(NewMemoryQueue(1), repo, invoker, fakeDocs{}, fakeLogger{}, metrics, WorkerConfig{StaleAfter: time.Minute})

	require.NoError(t, worker.Process(context.Background(), 1))
	require.Equal(t, application.ScoringDone, repo.statusOf(1))
	require.Equal(t, []string{"/uploads/cv.pdf"}, invoker.paths)
	require.Equal(t, 1, metrics.outcomes[OutcomeDone])
}

func TestWorkerProcessRecordsFailure(t *testing.T) {
	repo := newFakeScoringRepo(2)
	worker := NewWorker(NewMemoryQueue(1), repo, &fakeInvoker{err: errors.New("scorer timed out after 2m0s")}, fakeDocs{}, fakeLogger{}, nil, WorkerConfig{})

	require.NoError(t, worker.Process(context.Background(), 2))
	require.Equal(t, application.ScoringFailed, repo.statusOf(2))
	require.Equal(t, "scorer timed out after 2m0s", repo.failures[2])
}

func TestWorkerReleasesClaimOnShutdown(t *testing.T) {
	repo := newFakeScoringRepo(7)
	metrics := &countingRecorder{}
	worker := NewWorker(NewMemoryQueue(1), repo, &fakeInvoker{err: fmt.Errorf("scorer interrupted: %w", context.Canceled)}, fakeDocs{}, fakeLogger{}, metrics, WorkerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, worker.Process(ctx, 7))
	require.Equal(t, application.ScoringNotStarted, repo.statusOf(7))
	require.Equal(t, 0, repo.attempts[7])
	require.Empty(t, repo.failures)
	require.Equal(t, 1, metrics.outcomes[OutcomeInterrupted])
}

func TestWorkerSkipsCompletedAndUnknown(t *testing.T) {
	repo := newFakeScoringRepo(3)
	invoker := &fakeInvoker{}
	metrics := &countingRecorder{}
	worker := NewWorker(NewMemoryQueue(1), repo, invoker, fakeDocs{}, fakeLogger{}, metrics, WorkerConfig{})

	require.NoError(t, worker.Process(context.Background(), 3))
	require.NoError(t, worker.Process(context.Background(), 3))
	require.NoError(t, worker.Process(context.Background(), 404))
	require.Equal(t, 1, invoker.calls)
	require.Equal(t, 2, metrics.outcomes[OutcomeSkipped])
}

func TestWorkerSurfacesRepositoryErrors(t *testing.T) {
	repo := newFakeScoringRepo(4)
	repo.claimErr = common.NewError(common.CodeInternal, "failed to claim scoring", errors.New("conn reset"))
	worker := NewWorker(NewMemoryQueue(1), repo, &fakeInvoker{}, fakeDocs{}, fakeLogger{}, nil, WorkerConfig{})
	require.Error(t, worker.Process(context.Background(), 4))
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	repo := newFakeScoringRepo(10, 11, 12)
	queue := NewMemoryQueue(8)
	for _, id := range []int64{10, 11, 12} {
		require.NoError(t, queue.Enqueue(context.Background(), id))
	}
	worker := NewWorker(queue, repo, &fakeInvoker{}, fakeDocs{}, fakeLogger{}, nil, WorkerConfig{Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return repo.statusOf(10) == application.ScoringDone &&
			repo.statusOf(11) == application.ScoringDone &&
			repo.statusOf(12) == application.ScoringDone
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestSweepRequeuesBacklog(t *testing.T) {
	repo := newFakeScoringRepo()
	repo.backlog = []int64{5, 6}
	queue := NewMemoryQueue(4)
	sweeper := NewSweeper(repo, queue, fakeLogger{}, nil, SweeperConfig{Interval: time.Minute})

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, queue.Len())
}

func TestSweepFailsStalledClaims(t *testing.T) {
	repo := newFakeScoringRepo()
	repo.stalled = 2
	metrics := &countingRecorder{}
	sweeper := NewSweeper(repo, NewMemoryQueue(1), fakeLogger{}, metrics, SweeperConfig{MaxAttempts: 3})

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, 3, repo.stalledMax)
	require.Equal(t, 2, metrics.outcomes[OutcomeFailed])
}

func TestSweepStopsWhenQueueIsFull(t *testing.T) {
	repo := newFakeScoringRepo()
	repo.backlog = []int64{1, 2, 3}
	metrics := &countingRecorder{}
	sweeper := NewSweeper(repo, NewMemoryQueue(1), fakeLogger{}, metrics, SweeperConfig{})

	n, err := sweeper.Sweep(context.Background())
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, 1, n)
	require.Equal(t, 1, metrics.enqueue)
}

func TestSweeperStartAndStop(t *testing.T) {
	sweeper := NewSweeper(newFakeScoringRepo(), NewMemoryQueue(1), fakeLogger{}, nil, SweeperConfig{Interval: time.Hour})
	require.NoError(t, sweeper.Start())
	<-sweeper.Stop().Done()
}
