package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gifcut/gifcut/internal/catalog"
	"github.com/gifcut/gifcut/internal/metrics"
	"github.com/gifcut/gifcut/internal/naming"
	"github.com/gifcut/gifcut/internal/pipeline"
	"github.com/gifcut/gifcut/internal/timecode"
	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/conversions", createConversionHandler(cfg))
		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/output", jobOutputHandler(cfg))
		r.Post("/queue/pause", pauseQueueHandler(cfg))
		r.Post("/queue/resume", resumeQueueHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := cfg.Service.CountJobsByStatus(ctx)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to count jobs", "INTERNAL_ERROR")
			return
		}
		jobs, _ := cfg.Service.ListJobs(ctx, 10)

		resp := StatusResponse{
			State: "idle",
			Queue: QueueResponse{
				Pending:   counts[catalog.JobStatusPending],
				Running:   counts[catalog.JobStatusRunning],
				Completed: counts[catalog.JobStatusCompleted],
				Failed:    counts[catalog.JobStatusFailed],
			},
		}

		for _, j := range jobs {
			if j.Status == catalog.JobStatusRunning && resp.ActiveJob == nil {
				active := JobToResponse(j)
				resp.ActiveJob = &active
				resp.State = "converting"
			}
			if j.Status == catalog.JobStatusFailed && resp.LastError == "" {
				resp.LastError = j.Error
			}
		}

		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			resp.Queue.Paused = true
			if resp.State == "idle" {
				resp.State = "paused"
			}
		}
		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		if cfg.Doctor != nil {
			caps, err := cfg.Doctor.Get(ctx)
			if err == nil && caps != nil {
				ff := &FFmpegStatusResponse{
					Path:          caps.Path,
					Version:       caps.Version,
					HasPalettegen: caps.HasPalettegen,
					HasPaletteuse: caps.HasPaletteuse,
					CanConvert:    caps.CanConvert(),
				}
				if !caps.ProbedAt.IsZero() {
					ff.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
				resp.FFmpeg = ff
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func createConversionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ConversionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		req := body.pipelineRequest()
		id := catalog.NewID()

		if req.Output == "" {
			dir := cfg.OutputDir
			if body.OutputDir != "" {
				if err := naming.ValidateOutputDir(body.OutputDir); err != nil {
					WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
					return
				}
				dir = body.OutputDir
			}
			if dir == "" {
				WriteError(w, http.StatusBadRequest, "output is required", "BAD_REQUEST")
				return
			}
			req.Output = naming.OutputPath(dir, body.Name, req.Input, id)
		}

		job, err := cfg.Service.SubmitWithID(r.Context(), id, req)
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		if cfg.Runner != nil {
			cfg.Runner.Wake()
		}

		WriteJSON(w, http.StatusAccepted, ConversionResponse{
			JobID:    job.ID,
			Output:   job.Output,
			Duration: job.Duration,
		})
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var tsErr *timecode.InvalidTimestampError
	switch {
	case errors.As(err, &tsErr):
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusInvalidRequest).Inc()
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TIMESTAMP")
	case errors.Is(err, pipeline.ErrInvalidRequest):
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusInvalidRequest).Inc()
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, "failed to queue conversion", "INTERNAL_ERROR")
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Service.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func jobOutputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		if job.Status != catalog.JobStatusCompleted {
			WriteError(w, http.StatusConflict, "job is "+job.Status, "JOB_NOT_COMPLETED")
			return
		}

		f, err := os.Open(job.Output)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				WriteError(w, http.StatusNotFound, "output file no longer exists", "OUTPUT_MISSING")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to open output", "INTERNAL_ERROR")
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to stat output", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "image/gif")
		http.ServeContent(w, r, filepath.Base(job.Output), info.ModTime(), f)
	}
}

// lookupJob writes the error response itself when it returns false.
func lookupJob(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*catalog.Job, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
		return nil, false
	}

	job, err := cfg.Service.GetJob(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
		return nil, false
	}
	return job, true
}

func pauseQueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "queue runner not available", "UNAVAILABLE")
			return
		}
		cfg.Runner.Pause()
		WriteJSON(w, http.StatusOK, QueueStateResponse{Paused: true})
	}
}

func resumeQueueHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "queue runner not available", "UNAVAILABLE")
			return
		}
		cfg.Runner.Resume()
		WriteJSON(w, http.StatusOK, QueueStateResponse{Paused: false})
	}
}
