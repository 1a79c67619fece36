package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeCommand re-executes the test binary as a stand-in for ffmpeg/ffprobe.
// The helper picks its behaviour from the arguments it receives.
func fakeCommand(env ...string) CommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
		return cmd
	}
}

// TestHelperProcess is not a real test. It plays ffmpeg or ffprobe.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	args = args[2:] // drop "--" and the binary name

	if strings.Contains(strings.Join(args, " "), "-show_entries") {
		os.Exit(fakeProbe(args))
	}
	os.Exit(fakeEncode(args))
}

func fakeProbe(args []string) int {
	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "format=duration"):
		if os.Getenv("FAKE_PROBE_FAIL") == "1" {
			fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
			return 1
		}
		fmt.Println(os.Getenv("FAKE_DURATION"))
	case strings.Contains(joined, "stream=index"):
		if os.Getenv("FAKE_PROBE_FAIL") == "1" {
			return 1
		}
		fmt.Println(os.Getenv("FAKE_AUDIO"))
	}
	return 0
}

func fakeEncode(args []string) int {
	var input string
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			input = filepath.Base(args[i+1])
		}
	}
	output := args[len(args)-1]

	switch {
	case strings.Contains(input, "fail"):
		fmt.Fprint(os.Stderr, "frame=   10 fps=0.0 q=0.0 size=       0kB time=00:00:01.00 bitrate=N/A speed=2x\r")
		fmt.Fprintln(os.Stderr, "[libx265 @ 0x1] Error initializing output stream")
		fmt.Fprintln(os.Stderr, "Conversion failed!")
		return 1
	case strings.Contains(input, "slow"):
		fmt.Fprint(os.Stderr, "frame=    1 fps=0.0 q=0.0 size=       0kB time=00:00:00.50 bitrate=N/A speed=1x\r")
		time.Sleep(30 * time.Second)
		return 0
	case strings.Contains(input, "silent"):
		// Exits without a single status line
	default:
		fmt.Fprintln(os.Stderr, "Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':")
		fmt.Fprintln(os.Stderr, "  Duration: 00:03:00.00, start: 0.000000, bitrate: 1000 kb/s")
		fmt.Fprint(os.Stderr, "frame=  100 fps= 25 q=28.0 size=     256kB time=00:00:45.00 bitrate= 46.6kbits/s speed=1.5x\r")
		fmt.Fprint(os.Stderr, "frame=  200 fps= 25 q=28.0 size=     512kB time=00:01:30.00 bitrate= 46.6kbits/s speed=1.5x\r")
		fmt.Fprint(os.Stderr, "frame=  300 fps= 25 q=28.0 size=     768kB time=00:02:15.00 bitrate= 46.6kbits/s speed=1.5x\r")
		fmt.Fprintln(os.Stderr, "")
	}
	_ = os.WriteFile(output, []byte("encoded"), 0o644)
	return 0
}
