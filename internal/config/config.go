// Package config loads modem and service settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeongseonghan/ofdm-modem/internal/modem"
)

// Config is the top-level configuration file.
type Config struct {
	Modem  ModemConfig  `yaml:"modem"`
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
}

// ModemConfig describes the OFDM symbol layout and its collaborators.
type ModemConfig struct {
	NumSubcarriers     int    `yaml:"num_subcarriers"`
	CyclicPrefixLength int    `yaml:"cyclic_prefix_length"`
	PilotInterval      int    `yaml:"pilot_interval"`
	Modulation         string `yaml:"modulation"`
	Transform          string `yaml:"transform"` // gonum, godsp or radix2

	Pilots struct {
		Mode  string  `yaml:"mode"` // constant or bpsk
		Value float64 `yaml:"value"`
		Seed  int64   `yaml:"seed"`
	} `yaml:"pilots"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	Workers         int    `yaml:"workers"`
	MaxRequestBytes int64  `yaml:"max_request_bytes"`
	Compress        bool   `yaml:"compress"`
}

// AudioConfig configures PortAudio playback.
type AudioConfig struct {
	Enabled      bool    `yaml:"enabled"`
	SampleRate   float64 `yaml:"sample_rate"`
	FramesPerBuf int     `yaml:"frames_per_buffer"`
	Amplitude    float64 `yaml:"amplitude"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		Modem: ModemConfig{
			NumSubcarriers:     modem.DefaultNumSubcarriers,
			CyclicPrefixLength: modem.DefaultCyclicPrefixLength,
			PilotInterval:      modem.DefaultPilotInterval,
			Modulation:         modem.Mod16QAM.String(),
			Transform:          modem.EngineGonum,
		},
		Server: ServerConfig{
			Addr:            "0.0.0.0:8080",
			Workers:         4,
			MaxRequestBytes: 10 << 20,
		},
		Audio: AudioConfig{
			Enabled:      false,
			SampleRate:   44100,
			FramesPerBuf: 576,
			Amplitude:    0.8,
		},
	}
	c.Modem.Pilots.Mode = "constant"
	c.Modem.Pilots.Value = 1
	c.Modem.Pilots.Seed = 42
	return c
}

// Load reads a YAML file on top of the defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	mc, err := c.Modem.Layout()
	if err != nil {
		return err
	}
	if err := mc.Validate(); err != nil {
		return fmt.Errorf("modem: %w", err)
	}
	if _, err := modem.NewTransform(c.Modem.Transform, mc.TransformLen()); err != nil {
		return fmt.Errorf("modem.transform: %w", err)
	}
	switch strings.ToLower(c.Modem.Pilots.Mode) {
	case "", "constant", "bpsk":
	default:
		return fmt.Errorf("modem.pilots.mode: unknown mode %q", c.Modem.Pilots.Mode)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers: %d must be >= 1", c.Server.Workers)
	}
	if c.Server.MaxRequestBytes <= 0 {
		return fmt.Errorf("server.max_request_bytes: %d must be > 0", c.Server.MaxRequestBytes)
	}
	if c.Audio.Enabled {
		if c.Audio.SampleRate <= 0 || c.Audio.FramesPerBuf <= 0 {
			return fmt.Errorf("audio: sample rate %v and frames per buffer %d must be positive", c.Audio.SampleRate, c.Audio.FramesPerBuf)
		}
		if c.Audio.Amplitude <= 0 || c.Audio.Amplitude > 1 {
			return fmt.Errorf("audio.amplitude: %v must be in (0, 1]", c.Audio.Amplitude)
		}
	}
	return nil
}

// Layout converts the modem section into a modem.Config.
func (m ModemConfig) Layout() (modem.Config, error) {
	mod, err := modem.ParseModulation(m.Modulation)
	if err != nil {
		return modem.Config{}, fmt.Errorf("modem.modulation: %w", err)
	}
	return modem.Config{
		NumSubcarriers:     m.NumSubcarriers,
		CyclicPrefixLength: m.CyclicPrefixLength,
		PilotInterval:      m.PilotInterval,
		Modulation:         mod,
	}, nil
}

// Options builds the modulator/demodulator options for one instance. Each
// call plans a fresh transform, so instances never share one.
func (m ModemConfig) Options() ([]modem.Option, error) {
	mc, err := m.Layout()
	if err != nil {
		return nil, err
	}
	fft, err := modem.NewTransform(m.Transform, mc.TransformLen())
	if err != nil {
		return nil, err
	}

	opts := []modem.Option{modem.WithTransform(fft)}
	switch strings.ToLower(m.Pilots.Mode) {
	case "bpsk":
		opts = append(opts, modem.WithPilots(modem.NewBPSKPilots(m.Pilots.Seed, mc.NumSubcarriers)))
	default:
		opts = append(opts, modem.WithPilots(modem.ConstantPilot{Value: complex(m.Pilots.Value, 0)}))
	}
	return opts, nil
}

// NewModulator builds a modulator with its own transform.
func (m ModemConfig) NewModulator() (*modem.Modulator, error) {
	mc, err := m.Layout()
	if err != nil {
		return nil, err
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	return modem.NewModulator(mc, opts...)
}

// NewDemodulator builds a demodulator with its own transform.
func (m ModemConfig) NewDemodulator() (*modem.Demodulator, error) {
	mc, err := m.Layout()
	if err != nil {
		return nil, err
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	return modem.NewDemodulator(mc, opts...)
}
