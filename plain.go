package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"vcompress/batch"
	"vcompress/encoder"
	"vcompress/tui"
)

const (
	// progressStep is the percent granularity of plain progress lines
	progressStep = 10.0
	// indeterminateEvery spaces out lines when the duration is unknown
	indeterminateEvery = 30 * time.Second
)

// plainRenderer prints batch events as throttled log lines for pipes and CI.
type plainRenderer struct {
	w        io.Writer
	lastStep int
	lastTick int
}

func newPlainRenderer(w io.Writer) *plainRenderer {
	return &plainRenderer{w: w, lastStep: -1, lastTick: -1}
}

func (r *plainRenderer) handle(ev batch.Event) {
	switch ev.Kind {
	case batch.EventJobStarted:
		r.lastStep, r.lastTick = -1, -1
		fmt.Fprintf(r.w, "[%d/%d] %s -> %s\n", ev.Index+1, ev.Total, ev.Input, ev.Output)

	case batch.EventProgress:
		if line, ok := r.progressLine(ev.Sample); ok {
			fmt.Fprintf(r.w, "[%d/%d] %s\n", ev.Index+1, ev.Total, line)
		}

	case batch.EventJobFinished:
		if ev.File == nil {
			return
		}
		fmt.Fprintf(r.w, "[%d/%d] %s\n", ev.Index+1, ev.Total, finishedLine(*ev.File))

	case batch.EventBatchComplete:
		if ev.Result != nil {
			fmt.Fprintf(r.w, "Batch complete: %d succeeded, %d failed, %d skipped\n",
				ev.Result.Succeeded(), ev.Result.Failed(), ev.Result.Skipped())
		}
	}
}

// progressLine returns a line when the sample crosses the next step.
func (r *plainRenderer) progressLine(s encoder.ProgressSample) (string, bool) {
	if s.Indeterminate {
		tick := int(s.Elapsed / indeterminateEvery)
		if tick <= r.lastTick {
			return "", false
		}
		r.lastTick = tick
		return fmt.Sprintf("encoding... elapsed %s", tui.FormatDuration(s.Elapsed)), true
	}

	step := int(s.Percent / progressStep)
	if step <= r.lastStep {
		return "", false
	}
	r.lastStep = step
	eta := "unknown"
	if s.ETAAvailable {
		eta = tui.FormatDuration(s.ETA)
	}
	return fmt.Sprintf("%5.1f%%  elapsed %s  eta %s", s.Percent, tui.FormatDuration(s.Elapsed), eta), true
}

func finishedLine(f batch.FileResult) string {
	switch f.Outcome {
	case batch.OutcomeSucceeded:
		line := fmt.Sprintf("done %s in %s", filepath.Base(f.OutputPath), tui.FormatDuration(f.Elapsed))
		if ratio, ok := f.SizeRatio(); ok {
			line += fmt.Sprintf(" (%s -> %s, %.1f%%)",
				humanize.IBytes(uint64(f.InputSize)), humanize.IBytes(uint64(f.OutputSize)), ratio)
		}
		return line
	case batch.OutcomeFailed:
		return fmt.Sprintf("FAILED %s: %v", filepath.Base(f.InputPath), f.Err)
	default:
		return fmt.Sprintf("skipped %s", filepath.Base(f.InputPath))
	}
}

func runPlain(ctx context.Context, w io.Writer, sched *batch.Scheduler, req batch.Request) (batch.Result, error) {
	r := newPlainRenderer(w)
	res, err := sched.Run(ctx, req, r.handle)
	if err != nil {
		return res, err
	}
	fmt.Fprintln(w, renderSummary(res))
	return res, nil
}

// renderSummary renders the per-file outcome table.
func renderSummary(res batch.Result) string {
	rows := make([][]string, 0, len(res.Files))
	for _, f := range res.Files {
		in, out, ratio := "-", "-", "-"
		if f.InputSize > 0 {
			in = humanize.IBytes(uint64(f.InputSize))
		}
		if f.OutputSize > 0 {
			out = humanize.IBytes(uint64(f.OutputSize))
		}
		if r, ok := f.SizeRatio(); ok {
			ratio = fmt.Sprintf("%.1f%%", r)
		}
		status := f.Outcome.String()
		if f.Outcome == batch.OutcomeFailed && f.Err != nil {
			status += ": " + firstLine(f.Err.Error(), 60)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Index+1),
			filepath.Base(f.InputPath),
			status,
			in,
			out,
			ratio,
			tui.FormatDuration(f.Elapsed),
		})
	}
	return renderTable(
		[]string{"#", "File", "Result", "Input", "Output", "Ratio", "Time"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func firstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > limit {
		s = s[:limit-3] + "..."
	}
	return s
}
