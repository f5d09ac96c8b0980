package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gifcut/gifcut/internal/logging"
	"github.com/gifcut/gifcut/internal/metrics"
	"github.com/gifcut/gifcut/internal/pipeline"
)

// Converter is the part of pipeline.Converter the runner needs.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Runner drains the pending queue one job at a time. There is never more
// than one conversion in flight.
type Runner struct {
	repo         Repository
	converter    Converter
	logger       *slog.Logger
	pollInterval time.Duration
	wake         chan struct{}
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, converter Converter, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		converter:    converter,
		logger:       logger,
		pollInterval: 5 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

// Start polls the queue until ctx is cancelled. It returns only after the
// job in flight, if any, has had its result written.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if r.paused.Load() {
			continue
		}
		for r.processNextJob(ctx) {
			if ctx.Err() != nil || r.paused.Load() {
				break
			}
		}
	}
}

// Wake asks the runner to look at the queue now instead of at the next tick.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Wake()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob converts the oldest pending job. It reports whether a job
// was taken.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	metrics.QueueDepth.Set(float64(len(jobs)))

	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	logger := logging.WithJobID(r.logger, job.ID)
	logger.Info("processing job", "input", job.Input, "output", job.Output)

	if err := r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return false
	}

	result, convErr := r.converter.Convert(ctx, job.Request())
	applyResult(job, result, convErr)

	if err := r.repo.UpdateJobResult(context.WithoutCancel(ctx), job); err != nil {
		logger.Error("failed to store job result", "error", err)
	}

	metrics.QueueDepth.Set(float64(len(jobs) - 1))

	if job.Status == JobStatusCompleted {
		logger.Info("job completed", "bytes", job.OutputSize)
	} else {
		logger.Warn("job failed", "error", job.Error)
	}
	return true
}
