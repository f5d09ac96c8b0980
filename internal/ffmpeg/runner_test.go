package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gifcut/gifcut/internal/filters"
)

const fakeFFmpegScript = `#!/bin/sh
case "$2" in
  -version)
    echo "ffmpeg version 6.1.1-test Copyright (c) 2000-2023 the FFmpeg developers"
    echo "built with gcc"
    exit 0 ;;
  -filters)
    echo "Filters:"
    echo " ... palettegen         V->V       Find the optimal palette for a given stream."
    echo " ... paletteuse         VV->V      Use a palette to downsample an input video stream."
    exit 0 ;;
esac
printf '%s\n' "$@" > "$FAKE_FFMPEG_ARGS"
echo "fake ffmpeg stderr" >&2
exit ${FAKE_FFMPEG_EXIT:-0}
`

func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake ffmpeg needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(fakeFFmpegScript), 0755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func testSegment() Segment {
	return Segment{
		Input:    "in.mp4",
		MarkIn:   "00:00:01.000",
		Duration: "3.500",
		Filters:  filters.Build(filters.Options{Crop: "100:100:0:0", Scale: "320:240"}),
		Output:   "out.gif",
	}
}

func TestDefaultConfig_PassesUnbounded(t *testing.T) {
	cfg := DefaultConfig(nil)
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 so passes run to completion", cfg.Timeout)
	}
	if cfg.DoctorTimeout <= 0 {
		t.Errorf("DoctorTimeout = %v, want a bound", cfg.DoctorTimeout)
	}
}

func TestRunResult_IsSuccess(t *testing.T) {
	tests := []struct {
		exitCode int
		want     bool
	}{
		{0, true},
		{1, false},
		{-1, false},
		{127, false},
	}
	for _, tt := range tests {
		r := RunResult{ExitCode: tt.exitCode}
		if got := r.IsSuccess(); got != tt.want {
			t.Errorf("RunResult{ExitCode: %d}.IsSuccess() = %v, want %v", tt.exitCode, got, tt.want)
		}
	}
}

func TestPaletteArgs(t *testing.T) {
	got := PaletteArgs(testSegment(), "/tmp/palette-1.png")
	want := []string{
		"-ss", "00:00:01.000", "-t", "3.500", "-i", "in.mp4",
		"-vf", "crop=100:100:0:0,scale=320:240,palettegen",
		"-y", "/tmp/palette-1.png",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("PaletteArgs() = %q, want %q", got, want)
	}
}

func TestEncodeArgs(t *testing.T) {
	got := EncodeArgs(testSegment(), "/tmp/palette-1.png")
	want := []string{
		"-ss", "00:00:01.000", "-t", "3.500", "-i", "in.mp4",
		"-i", "/tmp/palette-1.png",
		"-lavfi", "crop=100:100:0:0,scale=320:240 [x]; [x][1:v] paletteuse",
		"-gifflags", "+transdiff",
		"-y", "out.gif",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("EncodeArgs() = %q, want %q", got, want)
	}
}

func TestCommandLine_QuotesGraphs(t *testing.T) {
	got := CommandLine("ffmpeg", []string{"-lavfi", "scale=0:0 [x]; [x][1:v] paletteuse", "-y", "out.gif"})
	want := "ffmpeg -lavfi 'scale=0:0 [x]; [x][1:v] paletteuse' -y out.gif"
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestLimitedWriter_KeepsOnlyTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 10}

	lw.Write([]byte("hello"))
	if buf.String() != "hello" {
		t.Errorf("after short write got %q, want %q", buf.String(), "hello")
	}

	lw.Write([]byte(" world of test data"))
	got := buf.String()
	if len(got) > 10 {
		t.Errorf("buffer length %d exceeds limit 10", len(got))
	}

	want := " test data"
	if got != want {
		t.Errorf("after overflow got %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "...world"},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.maxLen)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestResolveBinary_PreferredNotFound(t *testing.T) {
	_, err := resolveBinary("/nonexistent/ffmpeg999")
	if err == nil {
		t.Fatal("expected error for nonexistent ffmpeg")
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with", "6.1.1-3ubuntu5"},
		{"ffmpeg version n7.0\n", "n7.0"},
		{"something else\n", "something else"},
	}
	for _, tt := range tests {
		if got := parseVersion([]byte(tt.out)); got != tt.want {
			t.Errorf("parseVersion(%q) = %q, want %q", tt.out, got, tt.want)
		}
	}
}

func TestHasFilter(t *testing.T) {
	out := []byte("Filters:\n ... palettegen  V->V  Find the optimal palette\n T.C overlay VV->V Overlay\n")
	if !hasFilter(out, "palettegen") {
		t.Error("palettegen should be found")
	}
	if !hasFilter(out, "overlay") {
		t.Error("overlay should be found")
	}
	if hasFilter(out, "paletteuse") {
		t.Error("paletteuse should not be found")
	}
}

func TestSubprocessRunner_GeneratePalette(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	t.Setenv("FAKE_FFMPEG_ARGS", argsFile)
	t.Setenv("FAKE_FFMPEG_EXIT", "0")

	var stderr bytes.Buffer
	r, err := NewRunner(Config{Binary: bin, Timeout: 10 * time.Second, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := r.GeneratePalette(context.Background(), testSegment(), "/tmp/palette-x.png")
	if err != nil {
		t.Fatalf("GeneratePalette() error = %v", err)
	}
	if !result.IsSuccess() {
		t.Fatalf("exit code = %d, want 0", result.ExitCode)
	}
	if result.Pass != PassPalette {
		t.Errorf("Pass = %q, want %q", result.Pass, PassPalette)
	}
	if result.OutputPath != "/tmp/palette-x.png" {
		t.Errorf("OutputPath = %q", result.OutputPath)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("fake ffmpeg did not record args: %v", err)
	}
	gotArgs := strings.Split(strings.TrimSpace(string(data)), "\n")
	wantArgs := PaletteArgs(testSegment(), "/tmp/palette-x.png")
	if strings.Join(gotArgs, "|") != strings.Join(wantArgs, "|") {
		t.Errorf("ffmpeg saw %q, want %q", gotArgs, wantArgs)
	}

	if !strings.Contains(stderr.String(), "fake ffmpeg stderr") {
		t.Errorf("stderr not forwarded, got %q", stderr.String())
	}
	if !strings.Contains(result.StderrTail, "fake ffmpeg stderr") {
		t.Errorf("StderrTail = %q", result.StderrTail)
	}
}

func TestSubprocessRunner_NonZeroExitIsNotAnError(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	t.Setenv("FAKE_FFMPEG_ARGS", filepath.Join(t.TempDir(), "args.txt"))
	t.Setenv("FAKE_FFMPEG_EXIT", "3")

	r, err := NewRunner(Config{Binary: bin})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	result, err := r.Encode(context.Background(), testSegment(), "/tmp/palette-x.png")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.OutputPath != "out.gif" {
		t.Errorf("OutputPath = %q, want out.gif", result.OutputPath)
	}
}

func TestSubprocessRunner_CancelledContext(t *testing.T) {
	bin := writeFakeFFmpeg(t)
	t.Setenv("FAKE_FFMPEG_ARGS", filepath.Join(t.TempDir(), "args.txt"))

	r, err := NewRunner(Config{Binary: bin})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.GeneratePalette(ctx, testSegment(), "/tmp/palette-x.png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result.IsSuccess() {
		t.Error("cancelled run should not report success")
	}
}

func TestSubprocessRunner_RunDoctor(t *testing.T) {
	bin := writeFakeFFmpeg(t)

	r, err := NewRunner(Config{Binary: bin, DoctorTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	caps, err := r.RunDoctor(context.Background())
	if err != nil {
		t.Fatalf("RunDoctor() error = %v", err)
	}
	if caps.Version != "6.1.1-test" {
		t.Errorf("Version = %q, want 6.1.1-test", caps.Version)
	}
	if !caps.CanConvert() {
		t.Errorf("CanConvert() = false, caps = %+v", caps)
	}
	if caps.Path != bin {
		t.Errorf("Path = %q, want %q", caps.Path, bin)
	}
}

func TestCachedDoctor_TTL(t *testing.T) {
	calls := 0
	fake := &fakeRunner{
		doctorFn: func(ctx context.Context) (*Capabilities, error) {
			calls++
			return &Capabilities{
				Version:       "6.1",
				HasPalettegen: true,
				HasPaletteuse: true,
				ProbedAt:      time.Now(),
			}, nil
		},
	}

	doc := NewCachedDoctor(fake, nil)
	doc.ttl = 100 * time.Millisecond
	ctx := context.Background()

	caps1, err := doc.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if !caps1.CanConvert() {
		t.Error("expected CanConvert=true")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}

	caps2, err := doc.Get(ctx)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if caps2.ProbedAt != caps1.ProbedAt {
		t.Error("expected cached result on second call")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (cached), got %d", calls)
	}

	time.Sleep(150 * time.Millisecond)

	_, err = doc.Get(ctx)
	if err != nil {
		t.Fatalf("third Get (after TTL): %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after TTL expiry, got %d", calls)
	}
}

func TestCachedDoctor_StaleOnFailure(t *testing.T) {
	fail := false
	fake := &fakeRunner{
		doctorFn: func(ctx context.Context) (*Capabilities, error) {
			if fail {
				return nil, errors.New("probe failed")
			}
			return &Capabilities{Version: "6.1", ProbedAt: time.Now()}, nil
		},
	}

	doc := NewCachedDoctor(fake, nil)
	ctx := context.Background()

	if _, err := doc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	fail = true
	caps, err := doc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh with stale cache should not fail: %v", err)
	}
	if caps.Version != "6.1" {
		t.Errorf("Version = %q, want stale 6.1", caps.Version)
	}

	doc.Invalidate()
	if _, err := doc.Refresh(ctx); err == nil {
		t.Error("Refresh without cache should surface the probe error")
	}
	if doc.Peek() != nil {
		t.Error("Peek() should be nil after failed refresh on empty cache")
	}
}

func TestSafePath_ProductionMode(t *testing.T) {
	r := &SubprocessRunner{
		cfg: Config{DebugPaths: false},
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	path := filepath.Join(home, ".gifcut", "output", "clip.gif")
	if got := r.safePath(path); got != "~/.gifcut/output/clip.gif" {
		t.Errorf("safePath() = %q, want %q", got, "~/.gifcut/output/clip.gif")
	}

	r.cfg.DebugPaths = true
	if got := r.safePath(path); got != path {
		t.Errorf("debug mode: safePath(%q) = %q, want full path", path, got)
	}
}

type fakeRunner struct {
	doctorFn func(ctx context.Context) (*Capabilities, error)
}

func (f *fakeRunner) RunDoctor(ctx context.Context) (*Capabilities, error) {
	return f.doctorFn(ctx)
}

func (f *fakeRunner) GeneratePalette(ctx context.Context, seg Segment, palettePath string) (RunResult, error) {
	return RunResult{Pass: PassPalette, OutputPath: palettePath}, nil
}

func (f *fakeRunner) Encode(ctx context.Context, seg Segment, palettePath string) (RunResult, error) {
	return RunResult{Pass: PassEncode, OutputPath: seg.Output}, nil
}

func (f *fakeRunner) Binary() string {
	return "ffmpeg"
}
