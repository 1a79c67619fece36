package batch

import (
	"fmt"
	"time"

	"vcompress/encoder"
)

// Outcome is the terminal status of one file in a batch.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	// OutcomeSkipped marks files never started because the batch was cancelled
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Index      int
	InputPath  string
	OutputPath string
	Outcome    Outcome
	// Err is the failure reason; nil unless Outcome is OutcomeFailed or OutcomeSkipped
	Err     error
	Elapsed time.Duration
	// Sizes are filled in for succeeded files when the filesystem reports them
	InputSize  int64
	OutputSize int64
}

// SizeRatio returns output size as a percentage of input size.
func (f FileResult) SizeRatio() (float64, bool) {
	if f.InputSize <= 0 || f.OutputSize <= 0 {
		return 0, false
	}
	return float64(f.OutputSize) / float64(f.InputSize) * 100, true
}

// Result is the ordered per-file outcome of a batch, in submission order.
type Result struct {
	ID      string
	Files   []FileResult
	Elapsed time.Duration
}

func (r Result) count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Succeeded returns the number of files that encoded successfully.
func (r Result) Succeeded() int { return r.count(OutcomeSucceeded) }

// Failed returns the number of files whose encode failed.
func (r Result) Failed() int { return r.count(OutcomeFailed) }

// Skipped returns the number of files that never ran.
func (r Result) Skipped() int { return r.count(OutcomeSkipped) }

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventJobStarted EventKind = iota
	EventProgress
	EventJobFinished
	EventBatchComplete
)

func (k EventKind) String() string {
	switch k {
	case EventJobStarted:
		return "job-started"
	case EventProgress:
		return "progress"
	case EventJobFinished:
		return "job-finished"
	case EventBatchComplete:
		return "batch-complete"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is sent from the batch worker to the caller.
type Event struct {
	Kind  EventKind
	Index int
	Total int
	// Input and Output are set for per-file events
	Input  string
	Output string
	// Sample is set for EventProgress
	Sample encoder.ProgressSample
	// File is set for EventJobFinished
	File *FileResult
	// Result is set for EventBatchComplete
	Result *Result
}
