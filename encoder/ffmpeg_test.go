package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcompress/config"
)

type stubProber struct{ info MediaInfo }

func (s stubProber) Probe(context.Context, string) MediaInfo { return s.info }

func newTestRunner(info MediaInfo) *Runner {
	return &Runner{
		FFmpegPath: "ffmpeg",
		Prober:     stubProber{info: info},
		Command:    fakeCommand(),
	}
}

func newRequest(t *testing.T, inputName string) Request {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, inputName)
	require.NoError(t, os.WriteFile(input, []byte("source"), 0o644))
	return Request{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "compressed_"+inputName),
		Preset:     config.GetPreset(config.PresetBalanced),
	}
}

func collect(j *Job) []ProgressSample {
	var out []ProgressSample
	for s := range j.Samples() {
		out = append(out, s)
	}
	return out
}

func TestRunner_ProgressThenFinalSample(t *testing.T) {
	r := newTestRunner(MediaInfo{Duration: 180 * time.Second, HasAudio: true})
	req := newRequest(t, "movie.mp4")

	j, err := r.Start(context.Background(), req)
	require.NoError(t, err)

	samples := collect(j)
	require.NoError(t, j.Wait())
	assert.Equal(t, StateSucceeded, j.State())

	require.Len(t, samples, 4)
	assert.InDelta(t, 25.0, samples[0].Percent, 1e-9)
	assert.InDelta(t, 50.0, samples[1].Percent, 1e-9)
	assert.InDelta(t, 75.0, samples[2].Percent, 1e-9)

	last := samples[len(samples)-1]
	assert.Equal(t, 100.0, last.Percent)
	assert.True(t, last.ETAAvailable)
	assert.Zero(t, last.ETA)

	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].Elapsed, samples[i-1].Elapsed)
	}

	assert.FileExists(t, req.OutputPath)
	assert.Equal(t, req.OutputPath, j.Command.Args[len(j.Command.Args)-1])
	assert.Contains(t, j.Command.Args, "0:a:0")
}

func TestRunner_SilentSuccessStillEndsAtHundred(t *testing.T) {
	r := newTestRunner(MediaInfo{Duration: 2 * time.Second})
	j, err := r.Start(context.Background(), newRequest(t, "silent.mp4"))
	require.NoError(t, err)

	samples := collect(j)
	require.NoError(t, j.Wait())
	require.Len(t, samples, 1)
	assert.Equal(t, 100.0, samples[0].Percent)
}

func TestRunner_UnknownDurationIsIndeterminate(t *testing.T) {
	r := newTestRunner(MediaInfo{})
	j, err := r.Start(context.Background(), newRequest(t, "clip.mkv"))
	require.NoError(t, err)

	samples := collect(j)
	require.NoError(t, j.Wait())
	require.Len(t, samples, 4)
	for _, s := range samples[:3] {
		assert.True(t, s.Indeterminate)
		assert.False(t, s.ETAAvailable)
	}
	assert.False(t, samples[3].Indeterminate)
	assert.Equal(t, 100.0, samples[3].Percent)
	assert.Contains(t, j.Command.Args, "-an")
}

func TestRunner_NonZeroExit(t *testing.T) {
	r := newTestRunner(MediaInfo{Duration: 10 * time.Second})
	j, err := r.Start(context.Background(), newRequest(t, "fail.mp4"))
	require.NoError(t, err)

	samples := collect(j)
	err = j.Wait()
	require.Error(t, err)
	assert.Equal(t, StateFailed, j.State())

	for _, s := range samples {
		assert.Less(t, s.Percent, 100.0)
	}

	var encErr *EncodeError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 1, encErr.ExitCode)
	assert.Contains(t, encErr.Tail, "Conversion failed!")
	assert.Contains(t, err.Error(), "Conversion failed!")
}

func TestRunner_LaunchFailure(t *testing.T) {
	r := &Runner{
		FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		Prober:     stubProber{},
	}
	j, err := r.Start(context.Background(), newRequest(t, "movie.mp4"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunch))
	assert.Equal(t, StateFailed, j.State())

	_, open := <-j.Samples()
	assert.False(t, open)
	assert.ErrorIs(t, j.Wait(), ErrLaunch)
}

func TestRunner_MissingInput(t *testing.T) {
	r := newTestRunner(MediaInfo{})
	req := Request{
		InputPath:  filepath.Join(t.TempDir(), "missing.mp4"),
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		Preset:     config.GetPreset(config.PresetLowSize),
	}

	j, err := r.Start(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, StateFailed, j.State())
}

func TestRunner_CancelKillsEncoder(t *testing.T) {
	r := newTestRunner(MediaInfo{Duration: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := r.Start(ctx, newRequest(t, "slow.mp4"))
	require.NoError(t, err)

	first, ok := <-j.Samples()
	require.True(t, ok)
	assert.Less(t, first.Percent, 100.0)

	cancel()

	done := make(chan error, 1)
	go func() {
		for range j.Samples() {
		}
		done <- j.Wait()
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, StateFailed, j.State())
	case <-time.After(10 * time.Second):
		t.Fatal("encoder was not terminated on cancel")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "probing", StateProbing.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "succeeded", StateSucceeded.String())
	assert.Equal(t, "failed", StateFailed.String())
}

func TestLineRing(t *testing.T) {
	r := newLineRing(2)
	r.add("a")
	r.add("b")
	r.add("c")
	assert.Equal(t, []string{"b", "c"}, r.snapshot())
}
