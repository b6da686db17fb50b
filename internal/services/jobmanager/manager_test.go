package jobmanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

type stubStatements struct {
	mu          sync.Mutex
	symbols     []string
	err         error
	block       chan struct{} // when set, AnalyzeStock waits until closed
	panicSymbol string        // AnalyzeStock panics for this symbol
}

func (s *stubStatements) AnalyzeStock(_ context.Context, symbol string, _ interfaces.AnalyzeOptions) (*models.AnalysisOutcome, error) {
	if s.block != nil {
		<-s.block
	}
	if s.panicSymbol != "" && symbol == s.panicSymbol {
		panic("pipeline blew up")
	}
	s.mu.Lock()
	s.symbols = append(s.symbols, symbol)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &models.AnalysisOutcome{Symbol: symbol, Status: models.OutcomeAnalyzed}, nil
}

func (s *stubStatements) CheckLatestReport(_ context.Context, symbol string, _ interfaces.AnalyzeOptions) (*models.AnalysisOutcome, error) {
	return &models.AnalysisOutcome{Symbol: symbol, Status: models.OutcomeNoReport}, nil
}

func (s *stubStatements) processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func waitForStatus(t *testing.T, jm *JobManager, id, status string) *models.AnalysisJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := jm.Get(id); ok && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", id, status)
	return nil
}

func TestSubmitAndProcess(t *testing.T) {
	statements := &stubStatements{}
	jm := NewJobManager(statements, nil, common.JobsConfig{})
	jm.Start(context.Background())
	defer jm.Stop()

	job := &models.AnalysisJob{Symbol: "HBL"}
	require.NoError(t, jm.Submit(job))
	require.NotEmpty(t, job.ID)

	done := waitForStatus(t, jm, job.ID, models.JobStatusComplete)
	assert.Empty(t, done.Error)
	assert.False(t, done.SubmittedAt.IsZero())
	assert.False(t, done.StartedAt.IsZero())
	assert.False(t, done.FinishedAt.IsZero())
	assert.Equal(t, []string{"HBL"}, statements.processed())
}

func TestFailedJobRecordsError(t *testing.T) {
	statements := &stubStatements{err: errors.New("portal unreachable")}
	jm := NewJobManager(statements, nil, common.JobsConfig{})
	jm.Start(context.Background())
	defer jm.Stop()

	job := &models.AnalysisJob{Symbol: "ENGRO"}
	require.NoError(t, jm.Submit(job))

	failed := waitForStatus(t, jm, job.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "portal unreachable")
}

func TestSubmitFailsWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	statements := &stubStatements{block: block}
	jm := NewJobManager(statements, nil, common.JobsConfig{MaxConcurrent: 1, QueueSize: 1})
	jm.Start(context.Background())
	defer func() {
		close(block)
		jm.Stop()
	}()

	// First job occupies the worker, second fills the queue.
	first := &models.AnalysisJob{Symbol: "A"}
	require.NoError(t, jm.Submit(first))
	waitForRunning(t, jm, first.ID)
	require.NoError(t, jm.Submit(&models.AnalysisJob{Symbol: "B"}))

	overflow := &models.AnalysisJob{Symbol: "C"}
	err := jm.Submit(overflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")

	// A rejected job is not tracked.
	_, ok := jm.Get(overflow.ID)
	assert.False(t, ok)
}

func waitForRunning(t *testing.T, jm *JobManager, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := jm.Get(id); ok && job.Status == models.JobStatusRunning {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never entered running state")
}

func TestGetReturnsSnapshot(t *testing.T) {
	jm := NewJobManager(&stubStatements{}, nil, common.JobsConfig{})

	job := &models.AnalysisJob{Symbol: "HBL"}
	require.NoError(t, jm.Submit(job))

	// Submit detaches the caller's value from the tracked job.
	first, ok := jm.Get(job.ID)
	require.True(t, ok)
	assert.NotSame(t, job, first)

	// Each Get is an independent copy; mutating one is invisible to the next.
	first.Status = models.JobStatusFailed
	second, ok := jm.Get(job.ID)
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Equal(t, models.JobStatusPending, second.Status)
}

func TestCallerJobDetachedFromWorker(t *testing.T) {
	statements := &stubStatements{}
	jm := NewJobManager(statements, nil, common.JobsConfig{})
	jm.Start(context.Background())
	defer jm.Stop()

	job := &models.AnalysisJob{Symbol: "HBL"}
	require.NoError(t, jm.Submit(job))
	waitForStatus(t, jm, job.ID, models.JobStatusComplete)

	// The value handed to Submit stays a submission-time snapshot, so it can
	// be serialized without racing the worker.
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestWorkerSurvivesPanickingJob(t *testing.T) {
	statements := &stubStatements{panicSymbol: "BOOM"}
	jm := NewJobManager(statements, nil, common.JobsConfig{MaxConcurrent: 1})
	jm.Start(context.Background())
	defer jm.Stop()

	bad := &models.AnalysisJob{Symbol: "BOOM"}
	require.NoError(t, jm.Submit(bad))

	failed := waitForStatus(t, jm, bad.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "panicked")
	assert.False(t, failed.FinishedAt.IsZero())

	// The single worker is still alive to take the next job.
	good := &models.AnalysisJob{Symbol: "HBL"}
	require.NoError(t, jm.Submit(good))
	waitForStatus(t, jm, good.ID, models.JobStatusComplete)
	assert.Equal(t, []string{"HBL"}, statements.processed())
}

func TestGetUnknownJob(t *testing.T) {
	jm := NewJobManager(&stubStatements{}, nil, common.JobsConfig{})

	_, ok := jm.Get("missing")
	assert.False(t, ok)
}

func TestStopDrainsWorkers(t *testing.T) {
	statements := &stubStatements{}
	jm := NewJobManager(statements, nil, common.JobsConfig{MaxConcurrent: 2})
	jm.Start(context.Background())

	job := &models.AnalysisJob{Symbol: "LUCK"}
	require.NoError(t, jm.Submit(job))
	waitForStatus(t, jm, job.ID, models.JobStatusComplete)

	jm.Stop()
}
