// Package ffmpeg runs the ffmpeg binary as a subprocess for the palette and
// encode passes, and probes the installed build for the filters both need.
package ffmpeg

import (
	"time"

	"github.com/gifcut/gifcut/internal/filters"
	"github.com/kballard/go-shellquote"
)

const (
	PassPalette = "palette"
	PassEncode  = "encode"
)

// Segment describes the slice of the source video both passes read.
type Segment struct {
	Input    string
	MarkIn   string // passed to -ss exactly as the user typed it
	Duration string // seconds, three decimals
	Filters  filters.Chain
	Output   string
}

// Capabilities is what a doctor probe found out about the ffmpeg binary.
type Capabilities struct {
	Path          string    `json:"path"`
	Version       string    `json:"version"`
	HasPalettegen bool      `json:"has_palettegen"`
	HasPaletteuse bool      `json:"has_paletteuse"`
	ProbedAt      time.Time `json:"probed_at"`
}

// CanConvert reports whether both palette filters are compiled in.
func (c *Capabilities) CanConvert() bool {
	return c != nil && c.HasPalettegen && c.HasPaletteuse
}

// RunResult is the structured outcome of one ffmpeg invocation.
type RunResult struct {
	Pass       string        `json:"pass"`
	Binary     string        `json:"binary"`
	Args       []string      `json:"args"`
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool {
	return r.ExitCode == 0
}

// CommandLine renders the invocation as a shell-pasteable string.
func (r RunResult) CommandLine() string {
	return CommandLine(r.Binary, r.Args)
}

func CommandLine(binary string, args []string) string {
	return shellquote.Join(append([]string{binary}, args...)...)
}
