package encoder

import (
	"context"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandFunc creates the process for an external binary. exec.CommandContext
// is the default; tests substitute a fake.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// MediaInfo is the probe result for one input file.
type MediaInfo struct {
	// Duration is zero when the container duration could not be read.
	Duration time.Duration
	HasAudio bool
}

// DurationKnown reports whether the probe recovered a usable duration.
func (m MediaInfo) DurationKnown() bool {
	return m.Duration > 0
}

// Prober queries source media without decoding it.
type Prober interface {
	Probe(ctx context.Context, path string) MediaInfo
}

const defaultProbeTimeout = 10 * time.Second

// FFProbe probes media with the ffprobe binary. Each property is a single
// attempt; failures degrade to "unknown duration" and "no audio".
type FFProbe struct {
	Binary  string
	Command CommandFunc
	Timeout time.Duration
	Log     *zap.Logger
}

// NewFFProbe returns a prober for the given binary.
func NewFFProbe(binary string, log *zap.Logger) *FFProbe {
	return &FFProbe{Binary: binary, Log: log}
}

// Probe reads container duration and audio presence.
func (p *FFProbe) Probe(ctx context.Context, path string) MediaInfo {
	return MediaInfo{
		Duration: p.duration(ctx, path),
		HasAudio: p.hasAudio(ctx, path),
	}
}

func (p *FFProbe) duration(ctx context.Context, path string) time.Duration {
	out, err := p.run(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		p.logger().Warn("duration probe failed, progress will be indeterminate",
			zap.String("input", path), zap.Error(err))
		return 0
	}

	seconds, ok := parseDurationSeconds(out)
	if !ok {
		p.logger().Warn("duration probe returned no usable value",
			zap.String("input", path), zap.String("output", strings.TrimSpace(out)))
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func (p *FFProbe) hasAudio(ctx context.Context, path string) bool {
	out, err := p.run(ctx,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		p.logger().Warn("audio probe failed, encoding video only",
			zap.String("input", path), zap.Error(err))
		return false
	}
	return strings.TrimSpace(out) != ""
}

func (p *FFProbe) run(ctx context.Context, args ...string) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := p.Command
	if command == nil {
		command = exec.CommandContext
	}
	binary := p.Binary
	if binary == "" {
		binary = "ffprobe"
	}

	out, err := command(ctx, binary, args...).Output()
	return string(out), err
}

func (p *FFProbe) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// parseDurationSeconds accepts ffprobe's bare numeric duration output.
// "N/A", non-positive and non-finite values are rejected.
func parseDurationSeconds(out string) (float64, bool) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, false
	}
	// Some containers print one value per program; the first line is the format duration.
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
