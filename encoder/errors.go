package encoder

import (
	"errors"
	"fmt"
)

// ErrLaunch marks failures to spawn the encoder (missing or unexecutable binary).
var ErrLaunch = errors.New("launch encoder")

// EncodeError reports an encoder that exited unsuccessfully.
type EncodeError struct {
	// ExitCode is -1 when the process was killed by a signal
	ExitCode int
	// Tail holds the last diagnostic lines, oldest first
	Tail []string
	Err  error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encoder exited with status %d", e.ExitCode)
	if n := len(e.Tail); n > 0 {
		msg += ": " + e.Tail[n-1]
	}
	return msg
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// lineRing keeps the most recent diagnostic lines.
type lineRing struct {
	max   int
	lines []string
}

func newLineRing(max int) *lineRing {
	return &lineRing{max: max, lines: make([]string, 0, max)}
}

func (r *lineRing) add(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
}

func (r *lineRing) snapshot() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
