package encoder

import (
	"math"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressParser_HalfWay(t *testing.T) {
	p := NewProgressParser(180*time.Second, nil)

	r, ok := p.Parse("frame= 2250 fps= 25 q=28.0 size=    4096kB time=00:01:30.00 bitrate= 372.8kbits/s speed=1.5x")
	require.True(t, ok)
	assert.False(t, r.Indeterminate)
	assert.Equal(t, 90*time.Second, r.Position)
	assert.Equal(t, 50.0, r.Percent)
}

func TestProgressParser_IgnoresLinesWithoutTime(t *testing.T) {
	p := NewProgressParser(time.Minute, nil)

	for _, line := range []string{
		"",
		"Input #0, matroska,webm, from 'in.mkv':",
		"  Duration: 00:03:00.00, start: 0.000000, bitrate: 1000 kb/s",
		"frame=    0 fps=0.0 q=0.0 size=       0kB time=N/A bitrate=N/A speed=N/A",
		"frame=    0 fps=0.0 q=0.0 size=       0kB time=-00:00:00.04 bitrate=N/A",
	} {
		_, ok := p.Parse(line)
		assert.False(t, ok, line)
	}
}

func TestProgressParser_CapsAtHundred(t *testing.T) {
	p := NewProgressParser(10*time.Second, nil)

	r, ok := p.Parse("time=00:00:12.50")
	require.True(t, ok)
	assert.Equal(t, 100.0, r.Percent)
}

func TestProgressParser_UnknownDurationIsIndeterminate(t *testing.T) {
	p := NewProgressParser(0, nil)

	r, ok := p.Parse("size=1kB time=00:00:05.00 bitrate=1k")
	require.True(t, ok)
	assert.True(t, r.Indeterminate)
	assert.Equal(t, 5*time.Second, r.Position)
	assert.Zero(t, r.Percent)
}

func TestStatusLineMatcher(t *testing.T) {
	var m PositionMatcher = StatusLineMatcher{}

	pos, ok := m.MatchPosition("frame=  120 fps= 24 q=28.0 size=     256kB time=00:00:05.00 bitrate= 419.4kbits/s")
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, pos)

	_, ok = m.MatchPosition("out_time_us=5000000")
	assert.False(t, ok)
}

type fixedMatcher struct{ pos time.Duration }

func (m fixedMatcher) MatchPosition(string) (time.Duration, bool) { return m.pos, true }

func TestProgressParser_CustomMatcher(t *testing.T) {
	p := NewProgressParser(40*time.Second, fixedMatcher{pos: 10 * time.Second})

	r, ok := p.Parse("out_time_us=10000000")
	require.True(t, ok)
	assert.Equal(t, 25.0, r.Percent)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"00:00:00.00", 0},
		{"00:01:30.00", 90_000_000},
		{"01:02:03.5", 3_723_500_000},
		{"00:00:01.1234567", 1_123_456},
		{"10:00:00", 36_000_000_000},
		{"N/A", -1},
		{"", -1},
		{"01:02", -1},
		{"aa:00:00.00", -1},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, parseTimestamp(tc.input), tc.input)
	}
}

func TestEstimateETA(t *testing.T) {
	eta, ok := EstimateETA(50, 60*time.Second)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, eta)

	eta, ok = EstimateETA(100, 90*time.Second)
	require.True(t, ok)
	assert.Zero(t, eta)

	eta, ok = EstimateETA(25, 30*time.Second)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, eta)
}

func TestEstimateETA_ZeroPercentIsUnknown(t *testing.T) {
	eta, ok := EstimateETA(0, 10*time.Second)
	assert.False(t, ok)
	assert.Zero(t, eta)

	_, ok = EstimateETA(math.NaN(), 10*time.Second)
	assert.False(t, ok)
}

// For any percent and elapsed time the estimate is never negative.
func TestEstimateETA_NonNegative_Property(t *testing.T) {
	f := func(pct float64, elapsedMs uint32) bool {
		if math.IsNaN(pct) || math.IsInf(pct, 0) {
			return true
		}
		eta, ok := EstimateETA(math.Mod(math.Abs(pct), 150), time.Duration(elapsedMs)*time.Millisecond)
		return !ok || eta >= 0
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 1000}))
}

func TestClampPercentage_Property(t *testing.T) {
	f := func(pct float64) bool {
		result := clampPercentage(pct)
		return result >= 0 && result <= 100
	}
	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 1000}))
}

func TestSampleFrom(t *testing.T) {
	s := sampleFrom(Reading{Percent: 50}, time.Minute)
	assert.Equal(t, 50.0, s.Percent)
	assert.True(t, s.ETAAvailable)
	assert.Equal(t, time.Minute, s.ETA)

	s = sampleFrom(Reading{Indeterminate: true}, time.Minute)
	assert.True(t, s.Indeterminate)
	assert.False(t, s.ETAAvailable)
	assert.Equal(t, time.Minute, s.Elapsed)
}

func TestScanStatusLines(t *testing.T) {
	data := []byte("a\rb\nc\r\nd")
	var tokens []string
	for len(data) > 0 {
		adv, tok, err := scanStatusLines(data, true)
		require.NoError(t, err)
		require.Positive(t, adv)
		tokens = append(tokens, string(tok))
		data = data[adv:]
	}
	assert.Equal(t, []string{"a", "b", "c", "", "d"}, tokens)

	adv, tok, err := scanStatusLines([]byte("partial"), false)
	require.NoError(t, err)
	assert.Zero(t, adv)
	assert.Nil(t, tok)
}
