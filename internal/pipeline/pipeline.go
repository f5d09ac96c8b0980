// Package pipeline drives one conversion: parse the marks, generate the
// palette, encode the GIF, release the palette.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gifcut/gifcut/internal/ffmpeg"
	"github.com/gifcut/gifcut/internal/filters"
	"github.com/gifcut/gifcut/internal/logging"
	"github.com/gifcut/gifcut/internal/metrics"
	"github.com/gifcut/gifcut/internal/timecode"
)

// ErrInvalidRequest wraps every missing-field error from Request.Validate.
var ErrInvalidRequest = errors.New("invalid request")

// Request is everything the user supplies for one conversion.
type Request struct {
	Input   string `json:"input"`
	MarkIn  string `json:"markin"`
	MarkOut string `json:"markout"`
	Scale   string `json:"scale,omitempty"`
	Crop    string `json:"crop,omitempty"`
	Filter  string `json:"filter,omitempty"`
	Output  string `json:"output"`
}

// Validate checks required fields only. Timestamps are checked by Plan.
func (r Request) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"input", r.Input},
		{"markin", r.MarkIn},
		{"markout", r.MarkOut},
		{"output", r.Output},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidRequest, f.name)
		}
	}
	return nil
}

// Plan computes the duration and filter chain. It fails with a
// *timecode.InvalidTimestampError when either mark is malformed.
func (r Request) Plan() (ffmpeg.Segment, error) {
	duration, err := timecode.Duration(r.MarkIn, r.MarkOut)
	if err != nil {
		return ffmpeg.Segment{}, err
	}
	return ffmpeg.Segment{
		Input:    r.Input,
		MarkIn:   r.MarkIn,
		Duration: duration,
		Filters:  filters.Build(filters.Options{Crop: r.Crop, Scale: r.Scale, Extra: r.Filter}),
		Output:   r.Output,
	}, nil
}

// Options tune a Converter.
type Options struct {
	TempDir     string // palette directory; empty = os.TempDir()
	KeepPalette bool
	DryRun      bool // build both commands, run neither
}

// Result reports both passes. Exit codes are reported, not enforced.
type Result struct {
	Duration    string           `json:"duration"`
	Filters     filters.Chain    `json:"filters"`
	PalettePath string           `json:"palette_path"`
	Palette     ffmpeg.RunResult `json:"palette"`
	Encode      ffmpeg.RunResult `json:"encode"`
	OutputSize  int64            `json:"output_size"`
	DryRun      bool             `json:"dry_run,omitempty"`
}

// OK reports whether both passes exited 0.
func (r *Result) OK() bool {
	return r != nil && r.Palette.IsSuccess() && r.Encode.IsSuccess()
}

// FailureSummary describes the first failed pass, or "" when OK.
func (r *Result) FailureSummary() string {
	for _, p := range []ffmpeg.RunResult{r.Palette, r.Encode} {
		if !p.IsSuccess() {
			return fmt.Sprintf("%s pass exited %d: %s", p.Pass, p.ExitCode, tail(p.StderrTail, 512))
		}
	}
	return ""
}

type Converter struct {
	runner ffmpeg.Runner
	opts   Options
	logger *slog.Logger
}

func NewConverter(runner ffmpeg.Runner, opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Converter{runner: runner, opts: opts, logger: logger}
}

// Convert runs Parse -> Generate-Palette -> Encode. The encode pass runs
// after the palette pass returns, whatever its exit code. The palette file
// is removed on every return path unless KeepPalette is set.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusInvalidRequest).Inc()
		return nil, err
	}
	seg, err := req.Plan()
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusInvalidRequest).Inc()
		return nil, err
	}

	palette, err := newPaletteFile(c.opts.TempDir, c.opts.KeepPalette)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := palette.Release(); err != nil {
			c.logger.Warn("failed to remove palette file", "path", palette.Path(), "error", err)
		}
	}()

	result := &Result{
		Duration:    seg.Duration,
		Filters:     seg.Filters,
		PalettePath: palette.Path(),
		DryRun:      c.opts.DryRun,
	}

	c.logger.Info("conversion planned",
		"input", req.Input,
		"markin", req.MarkIn,
		"duration", seg.Duration,
		"filters", seg.Filters.String(),
	)

	if c.opts.DryRun {
		binary := c.runner.Binary()
		result.Palette = ffmpeg.RunResult{Pass: ffmpeg.PassPalette, Binary: binary, Args: ffmpeg.PaletteArgs(seg, palette.Path()), OutputPath: palette.Path()}
		result.Encode = ffmpeg.RunResult{Pass: ffmpeg.PassEncode, Binary: binary, Args: ffmpeg.EncodeArgs(seg, palette.Path()), OutputPath: seg.Output}
		return result, nil
	}

	result.Palette, err = c.runner.GeneratePalette(ctx, seg, palette.Path())
	metrics.PassDuration.WithLabelValues(ffmpeg.PassPalette).Observe(result.Palette.Duration.Seconds())
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return result, err
	}

	result.Encode, err = c.runner.Encode(ctx, seg, palette.Path())
	metrics.PassDuration.WithLabelValues(ffmpeg.PassEncode).Observe(result.Encode.Duration.Seconds())
	if err != nil {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return result, err
	}

	if info, statErr := os.Stat(seg.Output); statErr == nil {
		result.OutputSize = info.Size()
	}

	if result.OK() {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusCompleted).Inc()
		c.logger.Info("conversion finished", "output", seg.Output, "bytes", result.OutputSize)
	} else {
		metrics.ConversionsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		c.logger.Warn("conversion finished with ffmpeg errors",
			"palette_exit", result.Palette.ExitCode,
			"encode_exit", result.Encode.ExitCode,
		)
	}

	return result, nil
}

func tail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}
