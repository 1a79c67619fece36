package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultOutputPrefix is prepended to the input base name to form the output file name.
const DefaultOutputPrefix = "compressed_"

// Logging holds logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Settings is the on-disk configuration. Command-line flags override it.
type Settings struct {
	FFmpegPath    string  `toml:"ffmpeg_path"`
	FFprobePath   string  `toml:"ffprobe_path"`
	OutputPrefix  string  `toml:"output_prefix"`
	DefaultPreset string  `toml:"default_preset"`
	LockPath      string  `toml:"lock_path"`
	Logging       Logging `toml:"logging"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		OutputPrefix:  DefaultOutputPrefix,
		DefaultPreset: string(PresetBalanced),
		LockPath:      filepath.Join(os.TempDir(), "vcompress.lock"),
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "vcompress", "config.toml"), nil
}

// Load reads settings from path on top of the defaults. A missing file is
// not an error when the path was not set explicitly.
func Load(path string, explicit bool) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return s, nil
		}
		return s, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse config %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

// normalize fills blanks left by a partial config file.
func (s *Settings) normalize() {
	d := DefaultSettings()
	s.FFmpegPath = strings.TrimSpace(s.FFmpegPath)
	if s.FFmpegPath == "" {
		s.FFmpegPath = d.FFmpegPath
	}
	s.FFprobePath = strings.TrimSpace(s.FFprobePath)
	if s.FFprobePath == "" {
		s.FFprobePath = d.FFprobePath
	}
	s.DefaultPreset = strings.TrimSpace(s.DefaultPreset)
	if s.DefaultPreset == "" {
		s.DefaultPreset = d.DefaultPreset
	}
	if strings.TrimSpace(s.LockPath) == "" {
		s.LockPath = d.LockPath
	}
	if s.Logging.Level == "" {
		s.Logging.Level = d.Logging.Level
	}
	if s.Logging.Format == "" {
		s.Logging.Format = d.Logging.Format
	}
}

// Validate checks settings for values that would break a batch.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.FFmpegPath) == "" {
		return errors.New("ffmpeg_path must not be empty")
	}
	if strings.TrimSpace(s.FFprobePath) == "" {
		return errors.New("ffprobe_path must not be empty")
	}
	if s.OutputPrefix == "" {
		return errors.New("output_prefix must not be empty")
	}
	if strings.ContainsAny(s.OutputPrefix, `/\`) {
		return fmt.Errorf("output_prefix %q must not contain a path separator", s.OutputPrefix)
	}
	if _, err := Lookup(s.DefaultPreset); err != nil {
		return fmt.Errorf("default_preset: %w", err)
	}
	switch strings.ToLower(s.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", s.Logging.Format)
	}
	return nil
}
