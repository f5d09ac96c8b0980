// Package catalog keeps the conversion job history and the queue that the
// HTTP service drains.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gifcut/gifcut/internal/pipeline"
)

type CatalogService interface {
	Submit(ctx context.Context, req pipeline.Request) (*Job, error)
	SubmitWithID(ctx context.Context, id string, req pipeline.Request) (*Job, error)
	Record(ctx context.Context, req pipeline.Request, result *pipeline.Result, convErr error) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	CountJobsByStatus(ctx context.Context) (map[string]int, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Submit validates the request and queues it. Requests with a missing field
// or an invalid timestamp are rejected and nothing is stored.
func (s *Service) Submit(ctx context.Context, req pipeline.Request) (*Job, error) {
	return s.SubmitWithID(ctx, NewID(), req)
}

// SubmitWithID is Submit with a caller-chosen job ID, for callers that name
// the output after the job.
func (s *Service) SubmitWithID(ctx context.Context, id string, req pipeline.Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	seg, err := req.Plan()
	if err != nil {
		return nil, err
	}

	job := newJob(req, JobStatusPending)
	job.ID = id
	job.Duration = seg.Duration

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("conversion queued", "job_id", job.ID, "input", req.Input, "duration", seg.Duration)
	}
	return job, nil
}

// Record stores a conversion that already ran in this process.
func (s *Service) Record(ctx context.Context, req pipeline.Request, result *pipeline.Result, convErr error) (*Job, error) {
	job := newJob(req, JobStatusRunning)
	applyResult(job, result, convErr)

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJob(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	return s.repo.ListJobs(ctx, limit)
}

func (s *Service) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountJobsByStatus(ctx)
}

// applyResult moves a job to its final status. Non-zero ffmpeg exits fail
// the job with the stderr tail of the first failing pass.
func applyResult(job *Job, result *pipeline.Result, convErr error) {
	if result != nil {
		job.Duration = result.Duration
		if result.Palette.Pass != "" {
			code := result.Palette.ExitCode
			job.PaletteExit = &code
		}
		if result.Encode.Pass != "" {
			code := result.Encode.ExitCode
			job.EncodeExit = &code
		}
		job.OutputSize = result.OutputSize
	}

	switch {
	case convErr != nil:
		job.Status = JobStatusFailed
		job.Error = convErr.Error()
	case result == nil:
		job.Status = JobStatusFailed
		job.Error = "conversion produced no result"
	case !result.OK():
		job.Status = JobStatusFailed
		job.Error = result.FailureSummary()
	default:
		job.Status = JobStatusCompleted
		job.Error = ""
	}
}
