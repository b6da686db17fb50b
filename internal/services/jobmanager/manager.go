// Package jobmanager runs statement analyses on a bounded background worker
// pool. Submitting returns immediately; callers poll job status by id.
package jobmanager

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

// JobManager dispatches queued analysis jobs to a fixed pool of processor
// goroutines. The queue is bounded: Submit fails fast when it is full rather
// than letting requests pile up behind long pipeline runs.
type JobManager struct {
	statements interfaces.StatementService
	logger     *common.Logger
	config     common.JobsConfig

	queue chan *models.AnalysisJob

	mu   sync.RWMutex
	jobs map[string]*models.AnalysisJob

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobManager creates a job manager over the statement service.
func NewJobManager(statements interfaces.StatementService, logger *common.Logger, config common.JobsConfig) *JobManager {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &JobManager{
		statements: statements,
		logger:     logger,
		config:     config,
		queue:      make(chan *models.AnalysisJob, config.GetQueueSize()),
		jobs:       make(map[string]*models.AnalysisJob),
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (jm *JobManager) safeGo(name string, fn func()) {
	jm.wg.Add(1)
	go func() {
		defer jm.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				jm.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in job manager goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the processor pool. Safe to call multiple times — stops any
// existing pool before starting.
func (jm *JobManager) Start(ctx context.Context) {
	if jm.cancel != nil {
		jm.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	jm.cancel = cancel

	maxConcurrent := jm.config.GetMaxConcurrent()
	for i := 0; i < maxConcurrent; i++ {
		name := fmt.Sprintf("processor-%d", i)
		jm.safeGo(name, func() { jm.processLoop(ctx) })
	}

	jm.logger.Info().
		Int("max_concurrent", maxConcurrent).
		Int("queue_size", cap(jm.queue)).
		Msg("Job manager started")
}

// Stop cancels the processor pool and waits for in-flight jobs to finish.
func (jm *JobManager) Stop() {
	if jm.cancel != nil {
		jm.cancel()
		jm.cancel = nil
	}
	jm.wg.Wait()
	jm.logger.Info().Msg("Job manager stopped")
}

// Submit queues a job for processing, assigning its id and submission time.
// Fails when the queue is full. The manager tracks its own copy of the job;
// the caller's value stays a snapshot of the submission and is safe to
// serialize while workers run.
func (jm *JobManager) Submit(job *models.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusPending
	job.SubmittedAt = time.Now().UTC()

	tracked := *job

	jm.mu.Lock()
	jm.jobs[tracked.ID] = &tracked
	jm.mu.Unlock()

	select {
	case jm.queue <- &tracked:
		jm.logger.Info().Str("job_id", tracked.ID).Str("symbol", tracked.Symbol).Msg("Job queued")
		return nil
	default:
		jm.mu.Lock()
		delete(jm.jobs, tracked.ID)
		jm.mu.Unlock()
		return fmt.Errorf("job queue is full (%d pending)", cap(jm.queue))
	}
}

// Get returns a point-in-time copy of the tracked job for an id. Workers keep
// mutating the tracked job under the lock, so the live struct never escapes.
func (jm *JobManager) Get(id string) (*models.AnalysisJob, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// processLoop continuously dequeues and executes jobs until the context is
// cancelled.
func (jm *JobManager) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jm.queue:
			jm.execute(ctx, job)
		}
	}
}

func (jm *JobManager) execute(ctx context.Context, job *models.AnalysisJob) {
	jm.mu.Lock()
	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now().UTC()
	jm.mu.Unlock()

	start := time.Now()
	outcome, err := jm.runAnalysis(ctx, job)
	durationMS := time.Since(start).Milliseconds()

	jm.mu.Lock()
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.Status = models.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = models.JobStatusComplete
	}
	jm.mu.Unlock()

	if err != nil {
		jm.logger.Warn().
			Str("job_id", job.ID).
			Str("symbol", job.Symbol).
			Int64("duration_ms", durationMS).
			Err(err).
			Msg("Job failed")
		return
	}

	jm.logger.Debug().
		Str("job_id", job.ID).
		Str("symbol", job.Symbol).
		Str("status", outcome.Status).
		Int64("duration_ms", durationMS).
		Msg("Job completed")
}

// runAnalysis invokes the pipeline with panic containment. A panicking run
// fails its job; the processor goroutine survives to take the next one.
func (jm *JobManager) runAnalysis(ctx context.Context, job *models.AnalysisJob) (outcome *models.AnalysisOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			jm.logger.Error().
				Str("job_id", job.ID).
				Str("symbol", job.Symbol).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in analysis job")
			outcome = nil
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()

	return jm.statements.AnalyzeStock(ctx, job.Symbol, interfaces.AnalyzeOptions{
		ExtractionModel: job.ExtractionModel,
		AnalysisModel:   job.AnalysisModel,
		UserProfile:     job.UserProfile,
	})
}

var _ interfaces.JobManager = (*JobManager)(nil)
