// Package config loads and stores the host configuration file.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/thelolagemann/gbcore/internal/apu"
	"github.com/thelolagemann/gbcore/internal/cpu"
	"github.com/thelolagemann/gbcore/internal/gameboy"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
)

const (
	// DefaultFileMode is used for every directory the host creates.
	DefaultFileMode = os.FileMode(0o755)

	dirName  = "gbcore"
	fileName = "config.toml"
)

// Compression codecs accepted by the storage section.
const (
	CompressionNone   = "none"
	CompressionBrotli = "brotli"
	CompressionZstd   = "zstd"
)

type Config struct {
	Emulation EmulationConfig `toml:"emulation"`
	Storage   StorageConfig   `toml:"storage"`
	Log       LogConfig       `toml:"log"`
	Web       WebConfig       `toml:"web"`
}

type EmulationConfig struct {
	Model          string `toml:"model"` // auto, dmg or cgb
	HaltBug        string `toml:"halt_bug"`
	SpritePriority string `toml:"sprite_priority"`
	Palette        string `toml:"palette"`
	SampleRate     int    `toml:"sample_rate"`
}

type StorageConfig struct {
	Dir         string `toml:"dir"`
	Compression string `toml:"compression"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type WebConfig struct {
	Addr     string `toml:"addr"`
	Compress bool   `toml:"compress"`
	Quality  int    `toml:"quality"` // brotli quality, 0-11
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Emulation: EmulationConfig{
			Model:          types.Unset.String(),
			HaltBug:        cpu.HaltBugEmulate.String(),
			SpritePriority: ppu.SpritePriorityAuto.String(),
			Palette:        "grey",
			SampleRate:     apu.DefaultSampleRate,
		},
		Storage: StorageConfig{
			Dir:         filepath.Join(Dir(), "saves"),
			Compression: CompressionBrotli,
		},
		Log: LogConfig{Level: "info"},
		Web: WebConfig{Addr: "localhost:8090", Compress: true, Quality: 4},
	}
}

// Dir returns the directory holding the configuration file and, by
// default, the save store.
func Dir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, dirName)
}

// Path returns the default configuration file location.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// LoadOrDefault loads the configuration at path, or the default
// location when path is empty. A missing file yields the defaults;
// keys absent from the file keep their default values.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Default(), errors.Wrapf(err, "decode %s", path)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path, or the default location when path is empty.
func Save(cfg Config, path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultFileMode); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result error
	if _, err := c.model(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.haltBug(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, ok := ppu.ParseSpritePriority(c.Emulation.SpritePriority); !ok {
		result = multierror.Append(result, errors.Errorf("emulation.sprite_priority: unknown policy %q", c.Emulation.SpritePriority))
	}
	if _, ok := ppu.Palettes[c.Emulation.Palette]; !ok {
		result = multierror.Append(result, errors.Errorf("emulation.palette: unknown palette %q", c.Emulation.Palette))
	}
	if c.Emulation.SampleRate <= 0 {
		result = multierror.Append(result, errors.Errorf("emulation.sample_rate: %d is not positive", c.Emulation.SampleRate))
	}
	switch c.Storage.Compression {
	case CompressionNone, CompressionBrotli, CompressionZstd:
	default:
		result = multierror.Append(result, errors.Errorf("storage.compression: unknown codec %q", c.Storage.Compression))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log.level"))
	}
	if c.Web.Quality < 0 || c.Web.Quality > 11 {
		result = multierror.Append(result, errors.Errorf("web.quality: %d out of range 0-11", c.Web.Quality))
	}
	return result
}

func (c Config) model() (types.Model, error) {
	switch strings.ToLower(c.Emulation.Model) {
	case "", "auto":
		return types.Unset, nil
	}
	m := types.StringToModel(c.Emulation.Model)
	if m == types.Unset {
		return m, errors.Errorf("emulation.model: unknown model %q", c.Emulation.Model)
	}
	return m, nil
}

func (c Config) haltBug() (cpu.HaltBugPolicy, error) {
	for _, p := range []cpu.HaltBugPolicy{cpu.HaltBugEmulate, cpu.HaltBugSkip} {
		if strings.EqualFold(p.String(), c.Emulation.HaltBug) {
			return p, nil
		}
	}
	return cpu.HaltBugEmulate, errors.Errorf("emulation.halt_bug: unknown policy %q", c.Emulation.HaltBug)
}

// Logger builds the logger described by the log section.
func (c Config) Logger() log.Logger {
	return log.New(c.Log.Level)
}

// Options converts the emulation section into engine options. Invalid
// settings fall back to their defaults; call Validate to report them.
func (c Config) Options() []gameboy.Opt {
	model, _ := c.model()
	haltBug, _ := c.haltBug()
	priority, _ := ppu.ParseSpritePriority(c.Emulation.SpritePriority)
	palette, ok := ppu.Palettes[c.Emulation.Palette]
	if !ok {
		palette = ppu.DefaultPalette
	}
	opts := []gameboy.Opt{
		gameboy.WithModel(model),
		gameboy.WithHaltBug(haltBug),
		gameboy.WithSpritePriority(priority),
		gameboy.WithPalette(palette),
	}
	if c.Emulation.SampleRate > 0 {
		opts = append(opts, gameboy.WithSampleRate(c.Emulation.SampleRate))
	}
	return opts
}
