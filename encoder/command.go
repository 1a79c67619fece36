package encoder

import (
	"path/filepath"
	"strconv"
	"strings"

	"vcompress/config"
)

// Fixed encode settings shared by every preset; only bitrate, scale and fps vary.
const (
	VideoCodec   = "libx265"
	VideoCRF     = 28
	VideoSpeed   = "medium"
	AudioCodec   = "aac"
	AudioBitrate = "96k"
)

// EncodeJob is the unit of work for one input file.
type EncodeJob struct {
	InputPath  string
	OutputPath string
	Preset     config.Preset
	Media      MediaInfo
}

// Command is a fully resolved encoder invocation, minus the binary.
type Command struct {
	Args       []string
	OutputPath string
}

// pixelFormatContainers need an explicit 4:2:0 pixel format for broad player support.
var pixelFormatContainers = map[string]bool{
	".mov": true,
}

// BuildCommand turns a job into encoder arguments. It is a pure function of
// the job: identical jobs always yield identical argument lists.
func BuildCommand(job EncodeJob) Command {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y", // Output naming is deterministic; overwrite is the defined behaviour
		"-i", job.InputPath,
		"-map", "0:v:0",
	}

	if job.Media.HasAudio {
		args = append(args, "-map", "0:a:0")
	} else {
		args = append(args, "-an")
	}

	// Strip global metadata and chapters
	args = append(args,
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-metadata", "title=",
		"-metadata", "artist=",
		"-metadata", "album=",
		"-metadata", "comment=",
	)

	args = append(args,
		"-c:v", VideoCodec,
		"-crf", strconv.Itoa(VideoCRF),
		"-preset", VideoSpeed,
		"-b:v", job.Preset.TargetBitrate,
	)

	if job.Media.HasAudio {
		args = append(args, "-c:a", AudioCodec, "-b:a", AudioBitrate)
	}

	if job.Preset.HasScale() {
		args = append(args, "-vf", scaleFilter(*job.Preset.Scale))
	}

	if job.Preset.HasFPS() {
		args = append(args, "-r", strconv.Itoa(job.Preset.FPS))
	}

	args = append(args, "-movflags", "+faststart")

	if pixelFormatContainers[strings.ToLower(filepath.Ext(job.OutputPath))] {
		args = append(args, "-pix_fmt", "yuv420p")
	}

	// Output must be last
	args = append(args, job.OutputPath)

	return Command{Args: args, OutputPath: job.OutputPath}
}

func scaleFilter(r config.Resolution) string {
	return "scale=" + strconv.Itoa(r.Width) + ":" + strconv.Itoa(r.Height)
}
