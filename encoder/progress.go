package encoder

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ProgressSample is one observation of a running encode.
type ProgressSample struct {
	// Percent is in [0, 100]; meaningless when Indeterminate is set
	Percent float64
	// Indeterminate is set when the source duration is unknown
	Indeterminate bool
	// Elapsed is wall-clock time since the encoder was launched
	Elapsed time.Duration
	// ETA is meaningful only when ETAAvailable is set
	ETA          time.Duration
	ETAAvailable bool
}

// PositionMatcher recovers the encoded media position from one diagnostic line.
type PositionMatcher interface {
	MatchPosition(line string) (time.Duration, bool)
}

// StatusLineMatcher matches ffmpeg's stderr status lines, e.g.
// "frame=  120 fps= 24 ... time=00:00:05.00 bitrate= ..."
type StatusLineMatcher struct{}

var statusTimeRe = regexp.MustCompile(`time=\s*(\d+:\d{1,2}:\d{1,2}(?:\.\d+)?)`)

// MatchPosition implements PositionMatcher.
func (StatusLineMatcher) MatchPosition(line string) (time.Duration, bool) {
	m := statusTimeRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0, false
	}
	us := parseTimestamp(m[1])
	if us < 0 {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// Reading is the parser's view of one matched line.
type Reading struct {
	Position      time.Duration
	Percent       float64
	Indeterminate bool
}

// ProgressParser converts diagnostic lines into completion percentages
// against a known (or unknown) total duration.
type ProgressParser struct {
	matcher PositionMatcher
	total   time.Duration
}

// NewProgressParser returns a parser for a source of the given duration.
// A non-positive total yields indeterminate readings. A nil matcher uses
// StatusLineMatcher.
func NewProgressParser(total time.Duration, matcher PositionMatcher) *ProgressParser {
	if matcher == nil {
		matcher = StatusLineMatcher{}
	}
	return &ProgressParser{matcher: matcher, total: total}
}

// Parse returns a reading for lines that carry a position, and false otherwise.
func (p *ProgressParser) Parse(line string) (Reading, bool) {
	pos, ok := p.matcher.MatchPosition(line)
	if !ok {
		return Reading{}, false
	}
	if p.total <= 0 {
		return Reading{Position: pos, Indeterminate: true}, true
	}
	pct := math.Min(100, 100*pos.Seconds()/p.total.Seconds())
	return Reading{Position: pos, Percent: clampPercentage(pct)}, true
}

// EstimateETA extrapolates remaining wall-clock time linearly from the
// percent complete. Each call is independent; no smoothing across samples.
// At or below 0% the ETA is unavailable.
func EstimateETA(percent float64, elapsed time.Duration) (time.Duration, bool) {
	if math.IsNaN(percent) || percent <= 0 {
		return 0, false
	}
	if elapsed < 0 {
		elapsed = 0
	}
	total := float64(elapsed) / (percent / 100)
	remaining := total - float64(elapsed)
	if remaining < 0 {
		return 0, true
	}
	if remaining >= math.MaxInt64 {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(remaining), true
}

// sampleFrom combines a parser reading with wall-clock elapsed time.
func sampleFrom(r Reading, elapsed time.Duration) ProgressSample {
	s := ProgressSample{Elapsed: elapsed}
	if r.Indeterminate {
		s.Indeterminate = true
		return s
	}
	s.Percent = r.Percent
	s.ETA, s.ETAAvailable = EstimateETA(r.Percent, elapsed)
	return s
}

// finalSample is emitted after a successful exit.
func finalSample(elapsed time.Duration) ProgressSample {
	return ProgressSample{Percent: 100, Elapsed: elapsed, ETA: 0, ETAAvailable: true}
}

// clampPercentage ensures percentage is within 0-100 range
func clampPercentage(pct float64) float64 {
	if pct < 0 || math.IsNaN(pct) {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// parseTimestamp parses "HH:MM:SS.fraction" into microseconds, or -1.
func parseTimestamp(ts string) int64 {
	ts = strings.TrimSpace(ts)
	if ts == "" || ts == "N/A" {
		return -1
	}

	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return -1
	}

	hours, err1 := strconv.ParseInt(parts[0], 10, 64)
	mins, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || hours < 0 || mins < 0 {
		return -1
	}

	whole, frac, _ := strings.Cut(parts[2], ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || secs < 0 {
		return -1
	}

	var micros int64
	if frac != "" {
		// Pad or truncate to 6 digits
		for len(frac) < 6 {
			frac += "0"
		}
		micros, err = strconv.ParseInt(frac[:6], 10, 64)
		if err != nil {
			return -1
		}
	}

	return hours*3600*1_000_000 + mins*60*1_000_000 + secs*1_000_000 + micros
}
