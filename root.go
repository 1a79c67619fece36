package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vcompress/batch"
	"vcompress/config"
	"vcompress/encoder"
	"vcompress/logging"
	"vcompress/tui"
)

type options struct {
	preset      string
	output      string
	configPath  string
	ffmpeg      string
	ffprobe     string
	prefix      string
	logLevel    string
	logFile     string
	plain       bool
	listPresets bool
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "vcompress [flags] <input>...",
		Short: "Compress videos to H.265/AAC with ffmpeg",
		Long: `Compresses each input video with ffmpeg (libx265 + AAC), one file at a time,
writing <prefix><name> into the output directory.`,
		Example: `  vcompress -o out/ movie.mkv
  vcompress -p low-size -o out/ *.mp4
  vcompress --plain -p "High Quality" -o out/ clip.mov`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.listPresets {
				printPresets(cmd.OutOrStdout())
				return nil
			}
			return runCompress(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.preset, "preset", "p", "", "Quality preset: high-quality, balanced, low-size (default from config)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory (must exist)")
	flags.StringVar(&opts.configPath, "config", "", "Configuration file path")
	flags.StringVar(&opts.ffmpeg, "ffmpeg", "", "ffmpeg binary")
	flags.StringVar(&opts.ffprobe, "ffprobe", "", "ffprobe binary")
	flags.StringVar(&opts.prefix, "prefix", "", "Output file name prefix")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFile, "log-file", "", "Append JSON logs to this file")
	flags.BoolVar(&opts.plain, "plain", false, "Plain line output instead of the interactive UI")
	flags.BoolVar(&opts.listPresets, "list-presets", false, "List quality presets and exit")

	return cmd
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings(cmd *cobra.Command, opts options) (config.Settings, error) {
	path, explicit := opts.configPath, opts.configPath != ""
	if !explicit {
		def, err := config.DefaultPath()
		if err == nil {
			path = def
		}
	}

	settings, err := config.Load(path, explicit)
	if err != nil {
		return settings, err
	}

	flags := cmd.Flags()
	if flags.Changed("ffmpeg") {
		settings.FFmpegPath = opts.ffmpeg
	}
	if flags.Changed("ffprobe") {
		settings.FFprobePath = opts.ffprobe
	}
	if flags.Changed("prefix") {
		settings.OutputPrefix = opts.prefix
	}
	if flags.Changed("preset") {
		settings.DefaultPreset = opts.preset
	}
	if flags.Changed("log-level") {
		settings.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-file") {
		settings.Logging.File = opts.logFile
	}

	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

func runCompress(cmd *cobra.Command, opts options, inputs []string) error {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	preset, err := config.Lookup(settings.DefaultPreset)
	if err != nil {
		return err
	}

	interactive := !opts.plain && isTerminal(os.Stdout)
	logger, closeLog, err := logging.New(logging.Options{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		File:   settings.Logging.File,
		// The TUI owns the terminal; logs go to the file sink only
		Console: !interactive,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober := encoder.NewFFProbe(settings.FFprobePath, logger.Named("probe"))
	runner := encoder.NewRunner(settings.FFmpegPath, prober, logger.Named("ffmpeg"))
	sched := &batch.Scheduler{
		Runner:   runner,
		Prefix:   settings.OutputPrefix,
		LockPath: settings.LockPath,
		Log:      logger.Named("batch"),
	}
	req := batch.Request{Inputs: inputs, Preset: preset, OutputDir: opts.output}

	var res batch.Result
	if interactive {
		res, err = runInteractive(ctx, sched, req, logger)
	} else {
		res, err = runPlain(ctx, cmd.OutOrStdout(), sched, req)
	}
	if err != nil {
		return err
	}

	if interactive {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(res))
	}
	return resultError(res)
}

func runInteractive(ctx context.Context, sched *batch.Scheduler, req batch.Request, logger *zap.Logger) (batch.Result, error) {
	model := tui.NewModel(ctx, sched, req)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return batch.Result{}, err
	}
	fm, ok := final.(tui.Model)
	if !ok {
		return batch.Result{}, ctx.Err()
	}
	if perr := fm.Err(); perr != nil {
		return batch.Result{}, perr
	}
	res, started := fm.Wait()
	if !started {
		// Quit before the scheduler answered
		logger.Info("exited before the batch started")
		return batch.Result{}, context.Canceled
	}
	return res, nil
}

// resultError maps a finished batch onto the process exit status.
func resultError(res batch.Result) error {
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d file(s) failed", n, len(res.Files))
	}
	if res.Skipped() > 0 {
		return fmt.Errorf("batch cancelled: %w", context.Canceled)
	}
	return nil
}

func printPresets(w io.Writer) {
	rows := make([][]string, 0, len(config.AvailablePresets()))
	for _, name := range config.AvailablePresets() {
		p := config.GetPreset(name)
		scale := "source"
		if p.HasScale() {
			scale = p.Scale.String()
		}
		fps := "source"
		if p.HasFPS() {
			fps = fmt.Sprintf("%d", p.FPS)
		}
		rows = append(rows, []string{string(p.Name), p.Title, p.TargetBitrate, scale, fps})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Preset", "Name", "Bitrate", "Resolution", "FPS"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
