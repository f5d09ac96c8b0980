package api

import (
	"time"

	"github.com/gifcut/gifcut/internal/catalog"
	"github.com/gifcut/gifcut/internal/pipeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State     string                `json:"state"`
	LastError string                `json:"last_error,omitempty"`
	Queue     QueueResponse         `json:"queue"`
	ActiveJob *JobResponse          `json:"active_job,omitempty"`
	FFmpeg    *FFmpegStatusResponse `json:"ffmpeg,omitempty"`
}

type QueueResponse struct {
	Pending   int  `json:"pending"`
	Running   int  `json:"running"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Paused    bool `json:"paused"`
}

type FFmpegStatusResponse struct {
	Path          string `json:"path"`
	Version       string `json:"version"`
	HasPalettegen bool   `json:"has_palettegen"`
	HasPaletteuse bool   `json:"has_paletteuse"`
	CanConvert    bool   `json:"can_convert"`
	LastProbeAt   string `json:"last_probe_at,omitempty"`
}

// ConversionRequest is the POST /conversions body. When Output is empty the
// server picks a file under OutputDir (or its default output directory)
// named after Name or the input file.
type ConversionRequest struct {
	Input     string `json:"input"`
	MarkIn    string `json:"markin"`
	MarkOut   string `json:"markout"`
	Scale     string `json:"scale,omitempty"`
	Crop      string `json:"crop,omitempty"`
	Filter    string `json:"filter,omitempty"`
	Output    string `json:"output,omitempty"`
	Name      string `json:"name,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
}

func (c ConversionRequest) pipelineRequest() pipeline.Request {
	return pipeline.Request{
		Input:   c.Input,
		MarkIn:  c.MarkIn,
		MarkOut: c.MarkOut,
		Scale:   c.Scale,
		Crop:    c.Crop,
		Filter:  c.Filter,
		Output:  c.Output,
	}
}

type ConversionResponse struct {
	JobID    string `json:"job_id"`
	Output   string `json:"output"`
	Duration string `json:"duration"`
}

type JobResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Input       string `json:"input"`
	MarkIn      string `json:"markin"`
	MarkOut     string `json:"markout"`
	Scale       string `json:"scale,omitempty"`
	Crop        string `json:"crop,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Output      string `json:"output"`
	Duration    string `json:"duration,omitempty"`
	PaletteExit *int   `json:"palette_exit,omitempty"`
	EncodeExit  *int   `json:"encode_exit,omitempty"`
	OutputSize  int64  `json:"output_size"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type QueueStateResponse struct {
	Paused bool `json:"paused"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Status:      j.Status,
		Input:       j.Input,
		MarkIn:      j.MarkIn,
		MarkOut:     j.MarkOut,
		Scale:       j.Scale,
		Crop:        j.Crop,
		Filter:      j.Filter,
		Output:      j.Output,
		Duration:    j.Duration,
		PaletteExit: j.PaletteExit,
		EncodeExit:  j.EncodeExit,
		OutputSize:  j.OutputSize,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}
