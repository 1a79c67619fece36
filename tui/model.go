package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"vcompress/batch"
	"vcompress/encoder"
)

// State represents the current application state
type State int

const (
	StateIdle State = iota
	StateEncoding
	StateDone
	StateError
)

const maxLogLines = 100

// BatchStartedMsg is sent when the scheduler accepted the batch
type BatchStartedMsg struct {
	Batch *batch.Batch
}

// BatchErrorMsg is sent when the batch was rejected before any job ran
type BatchErrorMsg struct {
	Err error
}

// EventMsg wraps one event from the batch worker
type EventMsg struct {
	Event batch.Event
}

// EventsClosedMsg is sent once the event channel has been drained
type EventsClosedMsg struct{}

// Model is the Bubble Tea model for the TUI
type Model struct {
	Scheduler *batch.Scheduler
	Request   batch.Request

	ctx    context.Context
	cancel context.CancelFunc
	batch  *batch.Batch
	handle *batchHandle

	State       State
	Progress    progress.Model
	Spinner     spinner.Model
	LogViewport viewport.Model
	ShowLogs    bool
	Width       int
	Height      int

	// Index and Total describe the file currently encoding (Index is 0-based)
	Index      int
	Total      int
	InputFile  string
	OutputFile string
	Sample     encoder.ProgressSample
	HasSample  bool
	StartTime  time.Time
	FileStart  time.Time

	Finished     []batch.FileResult
	Result       *batch.Result
	ErrorMessage string
	Quitting     bool

	err  error
	logs []string
}

// batchHandle hands the started batch to Wait even when the program quit
// before BatchStartedMsg was delivered. Shared by every copy of the Model.
type batchHandle struct {
	mu      sync.Mutex
	started bool // startBatch is calling the scheduler
	closed  bool // Wait ran first; no batch may start
	ready   chan struct{}
	b       *batch.Batch
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// NewModel creates a new TUI model. Cancelling ctx, or quitting the UI,
// stops the batch.
func NewModel(ctx context.Context, sched *batch.Scheduler, req batch.Request) Model {
	// Custom gradient: violet -> cyan -> emerald (matches our color scheme)
	prog := progress.New(
		progress.WithGradient("#7C3AED", "#10B981"),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = percentMidStyle

	vp := viewport.New(80, 12)
	vp.SetContent("")

	ctx, cancel := context.WithCancel(ctx)
	return Model{
		Scheduler:   sched,
		Request:     req,
		ctx:         ctx,
		cancel:      cancel,
		handle:      &batchHandle{ready: make(chan struct{})},
		State:       StateIdle,
		Progress:    prog,
		Spinner:     spin,
		LogViewport: vp,
		Total:       len(req.Inputs),
	}
}

// Init initializes the Bubble Tea program
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.Spinner.Tick,
		m.startBatch(),
	)
}

// Wait blocks until the batch worker has exited and returns its result.
// ok is false when no batch was ever started; after Wait none will be.
func (m Model) Wait() (res batch.Result, ok bool) {
	h := m.handle
	h.mu.Lock()
	if !h.started {
		h.closed = true
		h.mu.Unlock()
		return batch.Result{}, false
	}
	h.mu.Unlock()

	<-h.ready
	if h.b == nil {
		return batch.Result{}, false
	}
	return h.b.Wait(), true
}

// Err returns the pre-flight error, if the batch never started.
func (m Model) Err() error {
	return m.err
}

func (m Model) startBatch() tea.Cmd {
	ctx, sched, req, h := m.ctx, m.Scheduler, m.Request, m.handle
	return func() tea.Msg {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return BatchErrorMsg{Err: context.Canceled}
		}
		h.started = true
		h.mu.Unlock()

		b, err := sched.Start(ctx, req)
		h.b = b
		close(h.ready)
		if err != nil {
			return BatchErrorMsg{Err: err}
		}
		return BatchStartedMsg{Batch: b}
	}
}

func waitForEvent(events <-chan batch.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// First press while encoding stops ffmpeg and waits for the
			// worker to drain; a second press leaves immediately.
			if m.State == StateEncoding && !m.Quitting {
				m.Quitting = true
				m.cancel()
				m.appendLog("Cancelling batch...")
				return m, nil
			}
			m.cancel()
			return m, tea.Quit
		case "l":
			m.ShowLogs = !m.ShowLogs
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 20
		m.LogViewport.Width = msg.Width - 4

		// Ensure viewport height doesn't go negative
		logHeight := msg.Height - 22
		if logHeight < 0 {
			logHeight = 0
		}
		m.LogViewport.Height = logHeight

	case BatchStartedMsg:
		m.batch = msg.Batch
		m.State = StateEncoding
		m.StartTime = time.Now()
		m.appendLog(fmt.Sprintf("Batch %s: %d file(s), preset %s", shortID(msg.Batch.ID), m.Total, m.Request.Preset.Title))
		cmds = append(cmds, waitForEvent(msg.Batch.Events()), tickCmd())

	case BatchErrorMsg:
		m.State = StateError
		m.err = msg.Err
		m.ErrorMessage = msg.Err.Error()
		return m, nil

	case EventMsg:
		m.handleEvent(msg.Event)
		if m.batch != nil {
			cmds = append(cmds, waitForEvent(m.batch.Events()))
		}

	case EventsClosedMsg:
		if m.Quitting {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.State == StateIdle || m.State == StateEncoding {
			var cmd tea.Cmd
			m.Spinner, cmd = m.Spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case TickMsg:
		// Only keeps elapsed counters moving; all state arrives as events
		if m.State == StateEncoding {
			cmds = append(cmds, tickCmd())
		}

	case error:
		m.State = StateError
		m.ErrorMessage = msg.Error()
		return m, nil
	}

	// Update viewport if showing logs
	if m.ShowLogs {
		var cmd tea.Cmd
		m.LogViewport, cmd = m.LogViewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev batch.Event) {
	switch ev.Kind {
	case batch.EventJobStarted:
		m.Index = ev.Index
		m.Total = ev.Total
		m.InputFile = ev.Input
		m.OutputFile = ev.Output
		m.Sample = encoder.ProgressSample{}
		m.HasSample = false
		m.FileStart = time.Now()
		m.appendLog(fmt.Sprintf("[%d/%d] Encoding %s", ev.Index+1, ev.Total, filepath.Base(ev.Input)))

	case batch.EventProgress:
		m.Sample = ev.Sample
		m.HasSample = true

	case batch.EventJobFinished:
		if ev.File == nil {
			return
		}
		m.Finished = append(m.Finished, *ev.File)
		line := fmt.Sprintf("[%d/%d] %s %s", ev.Index+1, ev.Total, outcomeIcon(ev.File.Outcome), filepath.Base(ev.Input))
		if ev.File.Outcome == batch.OutcomeFailed && ev.File.Err != nil {
			line += ": " + ev.File.Err.Error()
		}
		m.appendLog(line)

	case batch.EventBatchComplete:
		m.Result = ev.Result
		m.State = StateDone
		if ev.Result != nil {
			m.appendLog(fmt.Sprintf("Done: %d succeeded, %d failed, %d skipped",
				ev.Result.Succeeded(), ev.Result.Failed(), ev.Result.Skipped()))
		}
	}
}

// appendLog keeps the activity log bounded, like a ring buffer
func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = append([]string(nil), m.logs[len(m.logs)-maxLogLines:]...)
	}
	m.LogViewport.SetContent(strings.Join(m.logs, "\n"))
	m.LogViewport.GotoBottom()
}

func outcomeIcon(o batch.Outcome) string {
	switch o {
	case batch.OutcomeSucceeded:
		return "✓"
	case batch.OutcomeFailed:
		return "✗"
	default:
		return "⊘"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
