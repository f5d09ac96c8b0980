package catalog

import (
	"time"

	"github.com/gifcut/gifcut/internal/pipeline"
	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job is one conversion, either recorded after a CLI run or queued by the
// HTTP service.
type Job struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Input       string    `json:"input"`
	MarkIn      string    `json:"markin"`
	MarkOut     string    `json:"markout"`
	Scale       string    `json:"scale,omitempty"`
	Crop        string    `json:"crop,omitempty"`
	Filter      string    `json:"filter,omitempty"`
	Output      string    `json:"output"`
	Duration    string    `json:"duration,omitempty"`
	PaletteExit *int      `json:"palette_exit,omitempty"`
	EncodeExit  *int      `json:"encode_exit,omitempty"`
	OutputSize  int64     `json:"output_size"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Request rebuilds the conversion request the job was created from.
func (j *Job) Request() pipeline.Request {
	return pipeline.Request{
		Input:   j.Input,
		MarkIn:  j.MarkIn,
		MarkOut: j.MarkOut,
		Scale:   j.Scale,
		Crop:    j.Crop,
		Filter:  j.Filter,
		Output:  j.Output,
	}
}

func (j *Job) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func newJob(req pipeline.Request, status string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        NewID(),
		Status:    status,
		Input:     req.Input,
		MarkIn:    req.MarkIn,
		MarkOut:   req.MarkOut,
		Scale:     req.Scale,
		Crop:      req.Crop,
		Filter:    req.Filter,
		Output:    req.Output,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewID returns a random UUIDv4.
func NewID() string {
	return uuid.NewString()
}
