package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/clipcraft/internal/types"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CLIPCRAFT_"

// Config holds the tool settings shared by every subcommand.
type Config struct {
	OutDir      string `yaml:"out_dir"`
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Whisper   WhisperConfig   `yaml:"whisper"`
	Source    SourceConfig    `yaml:"source"`
	Log       LogConfig       `yaml:"log"`

	// Captions maps preset names to caption styles.
	Captions map[string]types.CaptionStyleOptions `yaml:"captions"`
}

type FFmpegConfig struct {
	BinaryPath   string `yaml:"binary_path"`
	ProbePath    string `yaml:"probe_path"`
	VideoCodec   string `yaml:"video_codec"`
	AudioCodec   string `yaml:"audio_codec"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

type ThumbnailConfig struct {
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
	Quality   int `yaml:"quality"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
}

type SourceConfig struct {
	Proxies      []string `yaml:"proxies"`
	AllowedHosts []string `yaml:"allowed_hosts"`
	MaxBytes     int64    `yaml:"max_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from path, falling back to defaults, and applies
// CLIPCRAFT_* environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	enc := types.DefaultEncoding()
	return &Config{
		OutDir:      "out",
		TempDir:     os.TempDir(),
		Concurrency: 2,
		FFmpeg: FFmpegConfig{
			BinaryPath:   "ffmpeg",
			ProbePath:    "ffprobe",
			VideoCodec:   enc.VideoCodec,
			AudioCodec:   enc.AudioCodec,
			Preset:       enc.Preset,
			CRF:          enc.CRF,
			AudioBitrate: enc.AudioBitrate,
		},
		Thumbnail: ThumbnailConfig{MaxWidth: 540, MaxHeight: 960, Quality: 80},
		Whisper: WhisperConfig{
			BinaryPath: ".cache/bin/whisper.cpp",
			ModelPath:  ".cache/models/ggml-base.bin",
		},
		Log:      LogConfig{Level: "info", Format: "console"},
		Captions: map[string]types.CaptionStyleOptions{},
	}
}

func (c *Config) Encoding() types.Encoding {
	return types.Encoding{
		VideoCodec:   c.FFmpeg.VideoCodec,
		AudioCodec:   c.FFmpeg.AudioCodec,
		Preset:       c.FFmpeg.Preset,
		CRF:          c.FFmpeg.CRF,
		AudioBitrate: c.FFmpeg.AudioBitrate,
	}
}

// Preset returns the named caption style.
func (c *Config) Preset(name string) (types.CaptionStyleOptions, error) {
	s, ok := c.Captions[name]
	if !ok {
		return types.CaptionStyleOptions{}, fmt.Errorf("unknown caption preset %q", name)
	}
	return s, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}
	list := func(key string, dst *[]string) {
		v, ok := lookup(envPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		var out []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}

	str("OUT_DIR", &c.OutDir)
	str("TEMP_DIR", &c.TempDir)
	str("FFMPEG_PATH", &c.FFmpeg.BinaryPath)
	str("FFPROBE_PATH", &c.FFmpeg.ProbePath)
	str("PRESET", &c.FFmpeg.Preset)
	str("WHISPER_BIN", &c.Whisper.BinaryPath)
	str("WHISPER_MODEL", &c.Whisper.ModelPath)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	list("PROXIES", &c.Source.Proxies)
	list("ALLOWED_HOSTS", &c.Source.AllowedHosts)
	if err := num("CONCURRENCY", &c.Concurrency); err != nil {
		return err
	}
	return num("CRF", &c.FFmpeg.CRF)
}

func findConfigFile() string {
	candidates := []string{
		"./clipcraft.yaml",
		"./clipcraft.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".clipcraft", "config.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
