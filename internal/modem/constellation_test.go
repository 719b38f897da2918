package modem

import (
	"errors"
	"testing"
)

func Test16QAM_MapDemap(t *testing.T) {
	c, err := NewConstellation(Mod16QAM)
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}

	// Test all 16 points
	for i := 0; i < 16; i++ {
		symbol := c.Map(byte(i))
		if got := c.Demap(symbol); got != byte(i) {
			t.Errorf("16QAM point %d: demapped to %d", i, got)
		}
	}
}

func Test16QAM_Table(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	tests := []struct {
		nibble byte
		want   complex128
	}{
		{0x0, complex(1, 1)},
		{0x1, complex(1, 3)},
		{0x2, complex(3, 1)},
		{0x3, complex(3, 3)},
		{0x4, complex(1, -1)},
		{0x7, complex(3, -3)},
		{0x8, complex(-1, 1)},
		{0xA, complex(-3, 1)},
		{0xD, complex(-1, -3)},
		{0xF, complex(-3, -3)},
	}

	for _, tt := range tests {
		if got := c.Map(tt.nibble); got != tt.want {
			t.Errorf("Map(%04b) = %v, want %v", tt.nibble, got, tt.want)
		}
	}

	// Only the low nibble is significant.
	if c.Map(0xF3) != c.Map(0x03) {
		t.Error("Map should ignore the high nibble")
	}
}

func TestDemap_NearestPoint(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	tests := []struct {
		name   string
		symbol complex128
		want   byte
	}{
		{"slightly off 0011", complex(2.6, 3.4), 0x3},
		{"far out 1111", complex(-10, -10), 0xF},
		{"near 0110", complex(2.9, -0.8), 0x6},
		{"near 1001", complex(-1.2, 2.7), 0x9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Demap(tt.symbol); got != tt.want {
				t.Errorf("Demap(%v) = %04b, want %04b", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestDemap_TieBreakLowestIndex(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	tests := []struct {
		name   string
		symbol complex128
		want   byte
	}{
		// Origin is equidistant from 0000, 0100, 1000 and 1100.
		{"origin", 0, 0x0},
		// Midway between 1+1i (0000) and 3+1i (0010).
		{"between 0000 and 0010", complex(2, 1), 0x0},
		// Midway between -1-1i (1100) and -3-1i (1110).
		{"between 1100 and 1110", complex(-2, -1), 0xC},
		// Midway between 1-1i (0100) and -1-1i (1100).
		{"between 0100 and 1100", complex(0, -1), 0x4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Demap(tt.symbol); got != tt.want {
				t.Errorf("Demap(%v) = %04b, want %04b", tt.symbol, got, tt.want)
			}
		})
	}
}

func TestConstellation_MapBytes_DemapSymbols(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	data := []byte("Hello, world!")
	symbols := c.MapBytes(data)
	if len(symbols) != 2*len(data) {
		t.Fatalf("symbol count: %d, expected %d", len(symbols), 2*len(data))
	}

	// 'H' = 0x48: high nibble first.
	if symbols[0] != c.Map(0x4) || symbols[1] != c.Map(0x8) {
		t.Errorf("nibble order wrong: %v %v", symbols[0], symbols[1])
	}

	recovered, err := c.DemapSymbols(symbols)
	if err != nil {
		t.Fatalf("DemapSymbols: %v", err)
	}
	if string(recovered) != string(data) {
		t.Errorf("recovered %q, want %q", recovered, data)
	}
}

func TestDemapSymbols_OddCount(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	_, err := c.DemapSymbols([]complex128{1, 1, 1})
	if !errors.Is(err, ErrInvalidPointCount) {
		t.Errorf("expected ErrInvalidPointCount, got %v", err)
	}
}

func TestDemapInto_BufferLength(t *testing.T) {
	c, _ := NewConstellation(Mod16QAM)

	err := c.DemapInto(make([]byte, 3), c.MapBytes([]byte{1, 2}))
	if !errors.Is(err, ErrInvalidBufferLength) {
		t.Errorf("expected ErrInvalidBufferLength, got %v", err)
	}
}

func TestNewConstellation_Unsupported(t *testing.T) {
	if _, err := NewConstellation(Modulation(6)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestParseModulation(t *testing.T) {
	for _, s := range []string{"QAM-16", "qam16", "16-QAM", " 16qam "} {
		m, err := ParseModulation(s)
		if err != nil || m != Mod16QAM {
			t.Errorf("ParseModulation(%q) = %v, %v", s, m, err)
		}
	}
	if _, err := ParseModulation("QPSK"); err == nil {
		t.Error("expected error for QPSK")
	}
	if Mod16QAM.String() != "QAM-16" {
		t.Errorf("String() = %q", Mod16QAM.String())
	}
}
