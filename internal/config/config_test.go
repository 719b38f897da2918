package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeongseonghan/ofdm-modem/internal/modem"
)

func TestDefault_Valid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	mc, err := c.Modem.Layout()
	if err != nil {
		t.Fatalf("ModemConfig: %v", err)
	}
	if mc != modem.DefaultConfig() {
		t.Errorf("modem config %+v != %+v", mc, modem.DefaultConfig())
	}
}

func TestParse_OverridesDefaults(t *testing.T) {
	data := []byte(`
modem:
  num_subcarriers: 6
  cyclic_prefix_length: 2
  pilot_interval: 4
  transform: godsp
  pilots:
    mode: bpsk
    seed: 7
server:
  addr: 127.0.0.1:9000
  workers: 2
`)

	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Modem.NumSubcarriers != 6 || c.Modem.CyclicPrefixLength != 2 || c.Modem.PilotInterval != 4 {
		t.Errorf("modem section not applied: %+v", c.Modem)
	}
	if c.Modem.Modulation != "QAM-16" {
		t.Errorf("modulation default lost: %q", c.Modem.Modulation)
	}
	if c.Server.Addr != "127.0.0.1:9000" || c.Server.Workers != 2 {
		t.Errorf("server section not applied: %+v", c.Server)
	}
	if c.Server.MaxRequestBytes != 10<<20 {
		t.Errorf("max request bytes default lost: %d", c.Server.MaxRequestBytes)
	}

	mod, err := c.Modem.NewModulator()
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	demod, err := c.Modem.NewDemodulator()
	if err != nil {
		t.Fatalf("NewDemodulator: %v", err)
	}
	samples, err := mod.ModulateSymbol([]byte("Hi"))
	if err != nil {
		t.Fatalf("ModulateSymbol: %v", err)
	}
	payload, err := demod.DemodulateSymbol(samples)
	if err != nil {
		t.Fatalf("DemodulateSymbol: %v", err)
	}
	if string(payload) != "Hi" {
		t.Errorf("payload %q, want %q", payload, "Hi")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unaligned capacity", "modem: {num_subcarriers: 8, cyclic_prefix_length: 2, pilot_interval: 3}"},
		{"odd subcarriers", "modem: {num_subcarriers: 63}"},
		{"unknown modulation", "modem: {modulation: QPSK}"},
		{"unknown transform", "modem: {transform: fftw}"},
		{"radix2 with non power of two", "modem: {num_subcarriers: 6, cyclic_prefix_length: 2, pilot_interval: 4, transform: radix2}"},
		{"unknown pilot mode", "modem: {pilots: {mode: zadoff-chu}}"},
		{"no workers", "server: {workers: 0}"},
		{"bad amplitude", "audio: {enabled: true, amplitude: 1.5}"},
		{"malformed yaml", "modem: [1, 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParse_UnalignedIsModemError(t *testing.T) {
	// Data bins 1, 2, 4, 5, 7 carry 20 bits.
	_, err := Parse([]byte("modem: {num_subcarriers: 8, cyclic_prefix_length: 2, pilot_interval: 3}"))
	if !errors.Is(err, modem.ErrInvalidConfig) {
		t.Errorf("expected modem.ErrInvalidConfig, got %v", err)
	}
}

func TestParse_ReferenceLayout(t *testing.T) {
	c, err := Parse([]byte("modem: {num_subcarriers: 64, cyclic_prefix_length: 4, pilot_interval: 4}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mod, err := c.Modem.NewModulator()
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	if mod.PayloadCapacity() != 24 || mod.SymbolLength() != 132 {
		t.Errorf("capacity %d, symbol length %d", mod.PayloadCapacity(), mod.SymbolLength())
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ofdm.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: :9999\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9999" {
		t.Errorf("addr %q", c.Server.Addr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOptions_SeparateTransforms(t *testing.T) {
	m := Default().Modem
	a, err := m.NewModulator()
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	b, err := m.NewModulator()
	if err != nil {
		t.Fatalf("NewModulator: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct modulators")
	}
	if a.PayloadCapacity() != 28 || b.SymbolLength() != 144 {
		t.Errorf("capacity %d, symbol length %d", a.PayloadCapacity(), b.SymbolLength())
	}
}
