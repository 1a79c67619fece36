// Package batch runs a queue of encodes one at a time on a background
// worker and reports progress to the caller over a channel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vcompress/config"
	"vcompress/encoder"
)

var (
	// ErrBatchAborted matches every pre-flight failure; nothing ran.
	ErrBatchAborted = errors.New("batch aborted")
	ErrNoInputs     = fmt.Errorf("%w: no input files", ErrBatchAborted)
	ErrNoOutputDir  = fmt.Errorf("%w: no output directory", ErrBatchAborted)
	ErrBatchRunning = fmt.Errorf("%w: another batch is already running", ErrBatchAborted)
)

const eventBuffer = 64

// Starter launches a single encode. *encoder.Runner implements it.
type Starter interface {
	Start(ctx context.Context, req encoder.Request) (*encoder.Job, error)
}

// Request is everything the caller supplies for one batch.
type Request struct {
	Inputs    []string
	Preset    config.Preset
	OutputDir string
}

// Scheduler runs batches. Jobs within a batch execute strictly one after
// another; concurrent encodes would contend for the same CPU and codec.
type Scheduler struct {
	Runner Starter
	// Prefix is prepended to each input's base name; defaults to config.DefaultOutputPrefix
	Prefix string
	// LockPath, when set, is flocked for the batch's lifetime
	LockPath string
	Log      *zap.Logger
}

// Batch is a running batch. Read Events until the channel is closed, or
// stop reading and call Wait; the last event is always EventBatchComplete.
type Batch struct {
	ID     string
	events chan Event
	done   chan struct{}
	result Result
}

// Events returns the progress stream, in submission order.
func (b *Batch) Events() <-chan Event {
	return b.events
}

// Wait blocks until the batch completes and returns its result. Events not
// yet received are discarded, so a caller that stopped reading Events can
// still collect the result after cancelling.
func (b *Batch) Wait() Result {
	for range b.events {
	}
	<-b.done
	return b.result
}

// OutputPath derives the output file for input inside dir. Existing files
// are overwritten by the encoder.
func OutputPath(dir, prefix, input string) string {
	return filepath.Join(dir, prefix+filepath.Base(input))
}

// Start validates req and launches the background worker. Pre-flight
// errors wrap ErrBatchAborted and mean no job was started.
func (s *Scheduler) Start(ctx context.Context, req Request) (*Batch, error) {
	if len(req.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	dir := strings.TrimSpace(req.OutputDir)
	if dir == "" {
		return nil, ErrNoOutputDir
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: output directory: %w", ErrBatchAborted, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: output directory %s is not a directory", ErrBatchAborted, dir)
	}

	unlock, err := acquireLock(s.LockPath)
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ID:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	inputs := append([]string(nil), req.Inputs...)
	go func() {
		defer close(b.done)
		defer unlock()
		b.result = s.work(ctx, b, inputs, req.Preset, dir)
	}()
	return b, nil
}

// Run starts a batch and delivers every event to fn on the calling goroutine.
func (s *Scheduler) Run(ctx context.Context, req Request, fn func(Event)) (Result, error) {
	b, err := s.Start(ctx, req)
	if err != nil {
		return Result{}, err
	}
	for ev := range b.Events() {
		if fn != nil {
			fn(ev)
		}
	}
	return b.Wait(), nil
}

func (s *Scheduler) work(ctx context.Context, b *Batch, inputs []string, preset config.Preset, dir string) Result {
	defer close(b.events)

	log := s.logger().With(zap.String("batch_id", b.ID))
	prefix := s.Prefix
	if prefix == "" {
		prefix = config.DefaultOutputPrefix
	}

	started := time.Now()
	result := Result{ID: b.ID, Files: make([]FileResult, 0, len(inputs))}
	total := len(inputs)
	log.Info("batch started",
		zap.Int("files", total),
		zap.String("preset", string(preset.Name)),
		zap.String("output_dir", dir))

	for i, input := range inputs {
		output := OutputPath(dir, prefix, input)

		if err := ctx.Err(); err != nil {
			fr := FileResult{Index: i, InputPath: input, OutputPath: output, Outcome: OutcomeSkipped, Err: err}
			result.Files = append(result.Files, fr)
			b.events <- Event{Kind: EventJobFinished, Index: i, Total: total, Input: input, Output: output, File: &fr}
			continue
		}

		b.events <- Event{Kind: EventJobStarted, Index: i, Total: total, Input: input, Output: output}
		fr := s.runOne(ctx, b, log, i, total, input, output, preset)
		result.Files = append(result.Files, fr)
		b.events <- Event{Kind: EventJobFinished, Index: i, Total: total, Input: input, Output: output, File: &fr}
	}

	result.Elapsed = time.Since(started)
	log.Info("batch complete",
		zap.Int("succeeded", result.Succeeded()),
		zap.Int("failed", result.Failed()),
		zap.Int("skipped", result.Skipped()),
		zap.Duration("elapsed", result.Elapsed))

	final := result
	b.events <- Event{Kind: EventBatchComplete, Total: total, Result: &final}
	return result
}

func (s *Scheduler) runOne(ctx context.Context, b *Batch, log *zap.Logger, index, total int, input, output string, preset config.Preset) FileResult {
	fr := FileResult{Index: index, InputPath: input, OutputPath: output}
	log = log.With(zap.Int("index", index), zap.String("input", input))
	start := time.Now()

	job, err := s.Runner.Start(ctx, encoder.Request{InputPath: input, OutputPath: output, Preset: preset})
	if err != nil {
		fr.Outcome = OutcomeFailed
		fr.Err = err
		fr.Elapsed = time.Since(start)
		log.Error("job not started", zap.Error(err))
		return fr
	}

	for sample := range job.Samples() {
		b.events <- Event{Kind: EventProgress, Index: index, Total: total, Input: input, Output: output, Sample: sample}
	}

	err = job.Wait()
	fr.Elapsed = time.Since(start)
	if err != nil {
		fr.Outcome = OutcomeFailed
		fr.Err = err
		return fr
	}

	fr.Outcome = OutcomeSucceeded
	fr.InputSize = fileSize(input)
	fr.OutputSize = fileSize(output)
	if ratio, ok := fr.SizeRatio(); ok {
		log.Info("file compressed", zap.Float64("size_percent", ratio))
	}
	return fr
}

func (s *Scheduler) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
