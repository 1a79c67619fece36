package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownPreset is returned by Lookup for names outside the registry.
var ErrUnknownPreset = errors.New("unknown preset")

// PresetName identifies one of the fixed quality presets
type PresetName string

const (
	PresetHighQuality PresetName = "high-quality" // 3000k, source resolution and frame rate
	PresetBalanced    PresetName = "balanced"     // 1500k, 720p, 30 fps
	PresetLowSize     PresetName = "low-size"     // 800k, 480p, 24 fps
)

// Resolution is an explicit output frame size.
type Resolution struct {
	Width  int
	Height int
}

// String renders the resolution as "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a "WxH" string such as "1280x720".
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q: expected WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: invalid width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: invalid height", s)
	}
	return Resolution{Width: width, Height: height}, nil
}

// Preset holds the encode settings that vary between quality presets.
// Everything else about the encode (codec, CRF, speed preset) is fixed.
type Preset struct {
	Name PresetName
	// Title is the human-facing name, e.g. "High Quality"
	Title string
	// TargetBitrate is passed to the encoder verbatim, e.g. "1500k"
	TargetBitrate string
	// Scale is nil to keep the source resolution
	Scale *Resolution
	// FPS is 0 to keep the source frame rate
	FPS int
}

// HasScale reports whether the preset resizes the video.
func (p Preset) HasScale() bool {
	return p.Scale != nil
}

// HasFPS reports whether the preset overrides the frame rate.
func (p Preset) HasFPS() bool {
	return p.FPS > 0
}

// Description returns a one-line human-readable summary of a preset
func (p Preset) Description() string {
	scale := "source resolution"
	if p.HasScale() {
		scale = p.Scale.String()
	}
	fps := "source fps"
	if p.HasFPS() {
		fps = fmt.Sprintf("%d fps", p.FPS)
	}
	return fmt.Sprintf("%s - %s, %s, %s", p.Title, p.TargetBitrate, scale, fps)
}

// AvailablePresets returns all preset names in display order
func AvailablePresets() []PresetName {
	return []PresetName{PresetHighQuality, PresetBalanced, PresetLowSize}
}

// GetPreset returns the configuration for a registered preset name.
// It panics on names outside the registry; use Lookup for user input.
func GetPreset(name PresetName) Preset {
	switch name {
	case PresetHighQuality:
		return Preset{
			Name:          PresetHighQuality,
			Title:         "High Quality",
			TargetBitrate: "3000k",
		}

	case PresetBalanced:
		return Preset{
			Name:          PresetBalanced,
			Title:         "Balanced",
			TargetBitrate: "1500k",
			Scale:         &Resolution{Width: 1280, Height: 720},
			FPS:           30,
		}

	case PresetLowSize:
		return Preset{
			Name:          PresetLowSize,
			Title:         "Low Size",
			TargetBitrate: "800k",
			Scale:         &Resolution{Width: 854, Height: 480},
			FPS:           24,
		}
	}
	panic(fmt.Sprintf("config: preset %q is not registered", name))
}

// Lookup resolves a user-supplied preset name. Both the slug ("low-size")
// and the title ("Low Size") are accepted, case-insensitively.
func Lookup(name string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, n := range AvailablePresets() {
		p := GetPreset(n)
		if key == string(n) || key == strings.ToLower(p.Title) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownPreset, name, presetList())
}

func presetList() string {
	names := make([]string, 0, len(AvailablePresets()))
	for _, n := range AvailablePresets() {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}
