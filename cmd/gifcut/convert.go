package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gifcut/gifcut/internal/catalog"
	"github.com/gifcut/gifcut/internal/config"
	"github.com/gifcut/gifcut/internal/db"
	"github.com/gifcut/gifcut/internal/ffmpeg"
	"github.com/gifcut/gifcut/internal/logging"
	"github.com/gifcut/gifcut/internal/pipeline"
	"github.com/spf13/cobra"
)

type convertFlags struct {
	input       string
	markIn      string
	markOut     string
	scale       string
	crop        string
	filter      string
	output      string
	strict      bool
	dryRun      bool
	keepPalette bool
	noHistory   bool
}

func (f convertFlags) request() pipeline.Request {
	return pipeline.Request{
		Input:   f.input,
		MarkIn:  f.markIn,
		MarkOut: f.markOut,
		Scale:   f.scale,
		Crop:    f.crop,
		Filter:  f.filter,
		Output:  f.output,
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "gifcut -i INPUT -s MARKIN -e MARKOUT -o OUTPUT",
		Short: "Cut a segment out of a video and encode it as a GIF",
		Long: `gifcut cuts the segment between two timestamps out of a video and
encodes it as an optimised GIF with ffmpeg, using a generated palette.

Timestamps are HH:MM:SS.sss. Hours and minutes are integers; minutes and
seconds must be below 60.`,
		Example: `  gifcut -i talk.mp4 -s 0:01:05 -e 0:01:09.5 --scale 480:-1 -o talk.gif
  gifcut -i clip.mov -s 0:0:2 -e 0:0:4 -vf "fps=12" -o clip.gif`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, cfg, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "source video")
	flags.StringVarP(&f.markIn, "markin", "s", "", "in-point, HH:MM:SS.sss")
	flags.StringVarP(&f.markOut, "markout", "e", "", "out-point, HH:MM:SS.sss")
	flags.StringVar(&f.scale, "scale", "", "output size as width:height")
	flags.StringVar(&f.crop, "crop", "", "crop rectangle as width:height:x:y")
	flags.StringVar(&f.filter, "filter", "", "extra filter clause appended to the chain (also -vf)")
	flags.StringVarP(&f.output, "output", "o", "", "destination GIF")
	flags.BoolVar(&f.strict, "strict", false, "exit 1 when ffmpeg exits non-zero")
	flags.BoolVar(&f.dryRun, "dry-run", false, "print both ffmpeg command lines and run nothing")
	flags.BoolVar(&f.keepPalette, "keep-palette", false, "leave the generated palette on disk")
	flags.BoolVar(&f.noHistory, "no-history", false, "do not record this run in the job history")

	for _, name := range []string{"input", "markin", "markout", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}

	cmd.AddCommand(
		newServeCmd(cfg),
		newHistoryCmd(cfg),
		newDoctorCmd(cfg),
		newVersionCmd(),
	)
	return cmd
}

func runConvert(cmd *cobra.Command, cfg config.Config, f convertFlags) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	logger := logging.WithComponent(logging.New(stderr, cfg.LogLevel(), false), "convert")

	req := f.request()

	// Bad input is reported before ffmpeg is looked up.
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := req.Plan(); err != nil {
		return err
	}

	var runner ffmpeg.Runner
	sp, err := newFFmpegRunner(cfg, cfg.FFmpegTimeout(), logger, stdout, stderr)
	switch {
	case err == nil:
		runner = sp
	case f.dryRun:
		runner = unresolvedRunner{binary: unresolvedBinary(cfg)}
	default:
		return err
	}

	conv := pipeline.NewConverter(runner, pipeline.Options{
		TempDir:     cfg.TempDir(),
		KeepPalette: f.keepPalette,
		DryRun:      f.dryRun,
	}, logger)

	result, convErr := conv.Convert(ctx, req)

	if f.dryRun {
		if convErr != nil {
			return convErr
		}
		fmt.Fprintln(stdout, result.Palette.CommandLine())
		fmt.Fprintln(stdout, result.Encode.CommandLine())
		return nil
	}

	if !f.noHistory {
		recordHistory(context.WithoutCancel(ctx), cfg, logger, req, result, convErr)
	}

	if convErr != nil {
		return convErr
	}

	printSummary(stdout, stderr, req, result)

	if !result.OK() && f.strict {
		return errors.New(result.FailureSummary())
	}
	return nil
}

func printSummary(stdout, stderr io.Writer, req pipeline.Request, result *pipeline.Result) {
	for _, p := range []ffmpeg.RunResult{result.Palette, result.Encode} {
		if !p.IsSuccess() {
			fmt.Fprintf(stderr, "warning: %s pass exited %d\n", p.Pass, p.ExitCode)
		}
	}

	elapsed := (result.Palette.Duration + result.Encode.Duration).Round(10 * time.Millisecond)
	fmt.Fprintf(stdout, "%s: %ss clip, %s, %s\n",
		req.Output, result.Duration, humanize.Bytes(uint64(result.OutputSize)), elapsed)
}

// recordHistory stores the run in the job database. Failing to record is
// logged and never changes the exit status.
func recordHistory(ctx context.Context, cfg config.Config, logger *slog.Logger, req pipeline.Request, result *pipeline.Result, convErr error) {
	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		logger.Warn("job history unavailable", "error", err)
		return
	}
	defer database.Close()

	svc := catalog.NewService(catalog.NewRepository(database.Conn()), logger)
	job, err := svc.Record(ctx, req, result, convErr)
	if err != nil {
		logger.Warn("failed to record job", "error", err)
		return
	}
	logger.Debug("job recorded", "job_id", job.ID, "status", job.Status)
}

func newFFmpegRunner(cfg config.Config, timeout time.Duration, logger *slog.Logger, stdout, stderr io.Writer) (*ffmpeg.SubprocessRunner, error) {
	rc := ffmpeg.DefaultConfig(logger)
	rc.Binary = cfg.FFmpegBinary()
	rc.Timeout = timeout
	rc.DoctorTimeout = cfg.DoctorTimeout()
	rc.Stdout = stdout
	rc.Stderr = stderr
	rc.DebugPaths = logging.ParseLevel(cfg.LogLevel()) == slog.LevelDebug
	return ffmpeg.NewRunner(rc)
}

var errNoFFmpeg = errors.New("ffmpeg not available")

// unresolvedRunner lets --dry-run print commands on machines without ffmpeg.
type unresolvedRunner struct {
	binary string
}

func unresolvedBinary(cfg config.Config) string {
	if b := cfg.FFmpegBinary(); b != "" {
		return b
	}
	return "ffmpeg"
}

func (u unresolvedRunner) Binary() string { return u.binary }

func (u unresolvedRunner) RunDoctor(context.Context) (*ffmpeg.Capabilities, error) {
	return nil, errNoFFmpeg
}

func (u unresolvedRunner) GeneratePalette(context.Context, ffmpeg.Segment, string) (ffmpeg.RunResult, error) {
	return ffmpeg.RunResult{}, errNoFFmpeg
}

func (u unresolvedRunner) Encode(context.Context, ffmpeg.Segment, string) (ffmpeg.RunResult, error) {
	return ffmpeg.RunResult{}, errNoFFmpeg
}
