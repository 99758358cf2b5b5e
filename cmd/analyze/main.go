// Command analyze runs one sales-call analysis from the terminal, either on an
// audio file or on a microphone recording, and prints the result as JSON.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-coach-go/internal/aggregator"
	"sales-coach-go/internal/app"
	"sales-coach-go/internal/config"
	"sales-coach-go/internal/failure"
	"sales-coach-go/internal/logger"
	"sales-coach-go/internal/report"
	"sales-coach-go/internal/source"
	"sales-coach-go/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(c.run(ctx, os.Args[1:]))
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// capturer replaces ffmpeg when set.
	capturer source.Capturer
}

type options struct {
	file       string
	record     bool
	duration   time.Duration
	xlsxPath   string
	outPath    string
	reportPath string
	configPath string
}

// output is what gets printed: the final snapshot plus derived figures.
type output struct {
	types.Snapshot
	Stats *aggregator.Stats `json:"stats,omitempty"`
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "", "audio file to analyze")
	fs.BoolVar(&o.record, "record", false, "record from the microphone instead of reading a file")
	fs.DurationVar(&o.duration, "duration", 0, "stop recording after this long (default: stop on Enter)")
	fs.StringVar(&o.xlsxPath, "xlsx", "", "also write the result as an Excel workbook")
	fs.StringVar(&o.outPath, "out", "", "write JSON here instead of stdout")
	fs.StringVar(&o.reportPath, "report", "", "print the result stored in an existing workbook and exit")
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	modes := 0
	for _, on := range []bool{o.file != "", o.record, o.reportPath != ""} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		return o, errors.New("exactly one of -file, -record or -report is required")
	}
	if o.duration < 0 {
		return o, errors.New("-duration must not be negative")
	}
	return o, nil
}

func (c *cli) run(ctx context.Context, args []string) int {
	opts, err := parseFlags(args, c.stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(c.stderr, err)
		}
		return 2
	}

	if opts.reportPath != "" {
		in, err := report.Load(opts.reportPath)
		if err != nil {
			fmt.Fprintf(c.stderr, "read report: %v\n", err)
			return 1
		}
		snap := types.Snapshot{State: types.StateComplete, DisplayName: in.DisplayName, Result: &in.Result, FinishedAt: in.AnalyzedAt}
		if err := c.emit(opts.outPath, snap); err != nil {
			fmt.Fprintln(c.stderr, err)
			return 1
		}
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(c.stderr, "load configuration: %v\n", err)
		return 1
	}
	log := logger.NewWithOptions(logger.Options{
		Environment: cfg.Logging.Environment,
		Level:       cfg.Logging.Level,
		Output:      c.stderr,
	})

	a, err := app.Build(ctx, cfg, log, app.Options{Capturer: c.capturer})
	if err != nil {
		fmt.Fprintf(c.stderr, "build pipeline: %v\n", err)
		return 1
	}
	defer a.Close()

	var payload types.AudioPayload
	if opts.record {
		payload, err = c.record(ctx, a.Recorder, opts.duration)
	} else {
		payload, err = openFile(opts.file)
	}
	if err != nil {
		fmt.Fprintln(c.stderr, describe(err))
		return 1
	}

	snap, err := a.Machine.Submit(ctx, payload)
	if err != nil {
		fmt.Fprintf(c.stderr, "analysis interrupted: %v\n", err)
		return 1
	}
	if err := c.emit(opts.outPath, snap); err != nil {
		fmt.Fprintln(c.stderr, err)
		return 1
	}
	if snap.State != types.StateComplete {
		fmt.Fprintln(c.stderr, snap.Error)
		return 1
	}

	if opts.xlsxPath != "" {
		in, err := report.FromSnapshot(snap)
		if err == nil {
			err = report.WriteFile(opts.xlsxPath, in)
		}
		if err != nil {
			fmt.Fprintf(c.stderr, "write workbook: %v\n", err)
			return 1
		}
		log.WithField("path", opts.xlsxPath).Info("workbook written")
	}
	return 0
}

func openFile(path string) (types.AudioPayload, error) {
	f, err := source.OpenLocalFile(path)
	if err != nil {
		return types.AudioPayload{}, err
	}
	return source.Validate(f)
}

// record captures until Enter is pressed, the duration elapses or ctx ends.
func (c *cli) record(ctx context.Context, rec *source.Recorder, d time.Duration) (types.AudioPayload, error) {
	if err := rec.Start(ctx); err != nil {
		return types.AudioPayload{}, err
	}
	if d > 0 {
		fmt.Fprintf(c.stderr, "Recording for %s (press Enter to stop early)...\n", d)
	} else {
		fmt.Fprintln(c.stderr, "Recording... press Enter to stop.")
	}

	enter := make(chan struct{}, 1)
	go func() {
		bufio.NewReader(c.stdin).ReadString('\n')
		enter <- struct{}{}
	}()

	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-enter:
	case <-timeout:
	case <-ctx.Done():
		rec.Reset()
		return types.AudioPayload{}, ctx.Err()
	}

	if err := rec.Stop(); err != nil {
		return types.AudioPayload{}, err
	}
	st := rec.Status()
	fmt.Fprintf(c.stderr, "Captured %s (%d bytes).\n", st.Elapsed, st.CapturedBytes)
	return rec.Submit()
}

func (c *cli) emit(path string, snap types.Snapshot) error {
	out := output{Snapshot: snap}
	if snap.State == types.StateComplete && snap.Result != nil {
		st := aggregator.Summarize(*snap.Result)
		out.Stats = &st
	}

	w := c.stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// describe prefers the user-facing text for classified failures.
func describe(err error) string {
	if kind := failure.KindOf(err); kind != "" {
		return failure.UserMessage(kind)
	}
	return err.Error()
}
