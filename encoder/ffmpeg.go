package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vcompress/config"
)

// State is a job's position in its lifecycle.
type State int32

const (
	StatePending State = iota
	StateProbing
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateProbing:
		return "probing"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	maxTailLines = 100
	// ffmpeg can print very long metadata lines; the default 64KB scanner limit is too small
	maxScannerBuffer = 1024 * 1024
	sampleBuffer     = 16
)

// Request names the input, output and preset for one encode.
type Request struct {
	InputPath  string
	OutputPath string
	Preset     config.Preset
}

// Runner launches encodes. The zero value is not usable; set at least Prober.
type Runner struct {
	FFmpegPath string
	Prober     Prober
	// Command defaults to exec.CommandContext
	Command CommandFunc
	// Matcher defaults to StatusLineMatcher
	Matcher PositionMatcher
	Log     *zap.Logger

	now func() time.Time
}

// NewRunner returns a runner using the given binaries.
func NewRunner(ffmpegPath string, prober Prober, log *zap.Logger) *Runner {
	return &Runner{FFmpegPath: ffmpegPath, Prober: prober, Log: log}
}

// Job is one running encode. Samples must be drained until closed; Wait
// returns once the process has exited and the sample stream has ended.
type Job struct {
	ID      string
	Plan    EncodeJob
	Command Command

	state   atomic.Int32
	samples chan ProgressSample
	done    chan struct{}
	err     error
}

// Samples returns the live progress stream. After a successful exit the
// last sample always has Percent == 100.
func (j *Job) Samples() <-chan ProgressSample {
	return j.samples
}

// Wait blocks until the job reaches a terminal state.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	return State(j.state.Load())
}

func (j *Job) setState(s State) {
	j.state.Store(int32(s))
}

// Start probes the input, builds the command and launches the encoder. The
// returned error covers failures before the process is running; exit status
// is reported by Job.Wait.
func (r *Runner) Start(ctx context.Context, req Request) (*Job, error) {
	job := &Job{
		ID:      uuid.NewString(),
		samples: make(chan ProgressSample, sampleBuffer),
		done:    make(chan struct{}),
	}
	log := r.logger().With(zap.String("job_id", job.ID), zap.String("input", req.InputPath))

	fail := func(err error) (*Job, error) {
		job.err = err
		job.setState(StateFailed)
		close(job.samples)
		close(job.done)
		return job, err
	}

	job.setState(StateProbing)
	if err := checkInput(req.InputPath); err != nil {
		return fail(err)
	}

	info := r.Prober.Probe(ctx, req.InputPath)
	log.Debug("probed input",
		zap.Duration("duration", info.Duration),
		zap.Bool("has_audio", info.HasAudio))

	job.Plan = EncodeJob{
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Preset:     req.Preset,
		Media:      info,
	}
	job.Command = BuildCommand(job.Plan)

	command := r.Command
	if command == nil {
		command = exec.CommandContext
	}
	binary := r.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := command(ctx, binary, job.Command.Args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(fmt.Errorf("%w: stderr pipe: %v", ErrLaunch, err))
	}

	log.Info("starting encode",
		zap.String("output", req.OutputPath),
		zap.String("preset", string(req.Preset.Name)),
		zap.String("command", binary+" "+strings.Join(job.Command.Args, " ")))

	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("%w %s: %v", ErrLaunch, binary, err))
	}
	job.setState(StateRunning)

	parser := NewProgressParser(info.Duration, r.Matcher)
	go r.watch(ctx, job, cmd, stderr, parser, log)

	return job, nil
}

// watch reads the diagnostic stream until EOF, then resolves the job.
func (r *Runner) watch(ctx context.Context, job *Job, cmd *exec.Cmd, stderr io.Reader, parser *ProgressParser, log *zap.Logger) {
	defer close(job.done)

	now := r.now
	if now == nil {
		now = time.Now
	}
	start := now()
	tail := newLineRing(maxTailLines)

	emit := func(s ProgressSample) {
		select {
		case job.samples <- s:
		case <-ctx.Done():
		}
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxScannerBuffer)
	scanner.Split(scanStatusLines)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reading, ok := parser.Parse(line)
		if !ok {
			tail.add(line)
			log.Debug("encoder output", zap.String("line", line))
			continue
		}
		emit(sampleFrom(reading, now().Sub(start)))
	}
	if err := scanner.Err(); err != nil {
		log.Warn("diagnostic stream reader error", zap.Error(err))
		// Keep draining so the encoder never blocks on a full pipe
		_, _ = io.Copy(io.Discard, stderr)
	}

	waitErr := cmd.Wait()
	elapsed := now().Sub(start)

	if waitErr == nil {
		// Not dropped on cancellation: a clean exit always ends at 100%
		job.samples <- finalSample(elapsed)
		close(job.samples)
		job.setState(StateSucceeded)
		log.Info("encode finished", zap.Duration("elapsed", elapsed))
		return
	}

	close(job.samples)
	job.setState(StateFailed)
	encErr := &EncodeError{ExitCode: exitCode(waitErr), Tail: tail.snapshot(), Err: waitErr}
	if ctxErr := ctx.Err(); ctxErr != nil {
		job.err = fmt.Errorf("encode interrupted: %w", errors.Join(ctxErr, encErr))
	} else {
		job.err = encErr
	}
	log.Error("encode failed",
		zap.Int("exit_code", encErr.ExitCode),
		zap.Duration("elapsed", elapsed),
		zap.Error(job.err))
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s: is a directory", path)
	}
	return nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// scanStatusLines splits on either \r or \n. ffmpeg rewrites its status
// line in place with carriage returns.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
