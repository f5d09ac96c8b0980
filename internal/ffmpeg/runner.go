package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gifcut/gifcut/internal/logging"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Runner executes ffmpeg. It is the single implementation of the two-pass
// contract used by the converter, the job runner and the doctor.
type Runner interface {
	// RunDoctor executes `ffmpeg -version` and `ffmpeg -filters` and reports
	// what the binary supports.
	RunDoctor(ctx context.Context) (*Capabilities, error)

	// GeneratePalette runs the palette pass, writing palettePath.
	GeneratePalette(ctx context.Context, seg Segment, palettePath string) (RunResult, error)

	// Encode runs the encode pass, reading palettePath and writing seg.Output.
	Encode(ctx context.Context, seg Segment, palettePath string) (RunResult, error)

	// Binary returns the resolved ffmpeg path.
	Binary() string
}

// Config holds the runner's configuration.
type Config struct {
	Binary        string        // path to ffmpeg; empty = look up on PATH
	Timeout       time.Duration // per pass; zero = no limit
	DoctorTimeout time.Duration
	Stdout        io.Writer // where ffmpeg's stdout goes; nil = discarded
	Stderr        io.Writer // where ffmpeg's stderr goes in addition to the tail buffer
	Logger        *slog.Logger
	DebugPaths    bool // if true, log full file paths; otherwise sanitise
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		Binary:        "", // auto-detect
		Timeout:       0,  // passes run to completion
		DoctorTimeout: 15 * time.Second,
		Logger:        logger,
	}
}

// SubprocessRunner is the production implementation of Runner.
type SubprocessRunner struct {
	cfg    Config
	binary string
}

// NewRunner creates a SubprocessRunner, resolving the ffmpeg binary path.
func NewRunner(cfg Config) (*SubprocessRunner, error) {
	binary, err := resolveBinary(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	cfg.Logger.Debug("ffmpeg runner initialised", "binary", binary, "timeout", cfg.Timeout)

	return &SubprocessRunner{cfg: cfg, binary: binary}, nil
}

func (r *SubprocessRunner) Binary() string {
	return r.binary
}

// RunDoctor probes the installed ffmpeg.
func (r *SubprocessRunner) RunDoctor(ctx context.Context) (*Capabilities, error) {
	if r.cfg.DoctorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.DoctorTimeout)
		defer cancel()
	}

	versionOut, err := exec.CommandContext(ctx, r.binary, "-hide_banner", "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -version: %w", err)
	}
	filtersOut, err := exec.CommandContext(ctx, r.binary, "-hide_banner", "-filters").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -filters: %w", err)
	}

	caps := &Capabilities{
		Path:          r.binary,
		Version:       parseVersion(versionOut),
		HasPalettegen: hasFilter(filtersOut, "palettegen"),
		HasPaletteuse: hasFilter(filtersOut, "paletteuse"),
		ProbedAt:      time.Now(),
	}

	r.cfg.Logger.Info("doctor probe complete",
		"version", caps.Version,
		"palettegen", caps.HasPalettegen,
		"paletteuse", caps.HasPaletteuse,
	)

	return caps, nil
}

// GeneratePalette runs the first pass.
func (r *SubprocessRunner) GeneratePalette(ctx context.Context, seg Segment, palettePath string) (RunResult, error) {
	return r.run(ctx, PassPalette, palettePath, PaletteArgs(seg, palettePath))
}

// Encode runs the second pass.
func (r *SubprocessRunner) Encode(ctx context.Context, seg Segment, palettePath string) (RunResult, error) {
	return r.run(ctx, PassEncode, seg.Output, EncodeArgs(seg, palettePath))
}

func (r *SubprocessRunner) run(ctx context.Context, pass, outPath string, args []string) (RunResult, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	result := r.exec(ctx, pass, outPath, args)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%s pass: %w", pass, err)
	}
	return result, nil
}

// exec is the core subprocess execution helper. A non-zero exit is reported
// through RunResult only.
func (r *SubprocessRunner) exec(ctx context.Context, pass, outPath string, args []string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.binary, args...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	var stderr io.Writer = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if r.cfg.Stderr != nil {
		stderr = io.MultiWriter(r.cfg.Stderr, stderr)
	}
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard
	if r.cfg.Stdout != nil {
		cmd.Stdout = r.cfg.Stdout
	}

	r.cfg.Logger.Info("executing ffmpeg",
		"pass", pass,
		"args", args,
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrBuf.WriteString(err.Error())
		}
	}

	stderrTail := stderrBuf.String()

	if exitCode != 0 {
		r.cfg.Logger.Warn("ffmpeg pass failed",
			"pass", pass,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.cfg.Logger.Info("ffmpeg pass succeeded",
			"pass", pass,
			"duration_ms", elapsed.Milliseconds(),
			"output", r.safePath(outPath),
		)
	}

	return RunResult{
		Pass:       pass,
		Binary:     r.binary,
		Args:       args,
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (r *SubprocessRunner) safePath(path string) string {
	if r.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

// resolveBinary finds a usable ffmpeg binary.
func resolveBinary(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	p, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("no ffmpeg binary found on PATH")
	}
	return p, nil
}

// parseVersion pulls "6.1.1" out of "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[1] == "version" {
		return fields[2]
	}
	return strings.TrimSpace(line)
}

// hasFilter scans `ffmpeg -filters` output, whose rows look like
// " ... palettegen         V->V       Find the optimal palette ...".
func hasFilter(out []byte, name string) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
