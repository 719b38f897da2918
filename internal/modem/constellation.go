package modem

import (
	"fmt"
	"math"
	"strings"
)

// Modulation represents a QAM modulation scheme.
type Modulation int

const (
	Mod16QAM Modulation = 4 // 4 bits per symbol
)

// BitsPerSymbol returns the number of bits per constellation symbol.
func (m Modulation) BitsPerSymbol() int {
	return int(m)
}

// String returns the modulation name.
func (m Modulation) String() string {
	switch m {
	case Mod16QAM:
		return "QAM-16"
	default:
		return "Unknown"
	}
}

// ParseModulation parses a modulation name such as "QAM-16" or "16qam".
func ParseModulation(s string) (Modulation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QAM-16", "QAM16", "16-QAM", "16QAM":
		return Mod16QAM, nil
	}
	return 0, fmt.Errorf("%w: unknown modulation %q", ErrInvalidConfig, s)
}

// qam16Points maps a 4-bit pattern b3 b2 b1 b0 to its constellation point.
// b3 selects the in-phase sign, b2 the quadrature sign, b1 the in-phase
// magnitude and b0 the quadrature magnitude.
var qam16Points = [16]complex128{
	complex(1, 1),   // 0000
	complex(1, 3),   // 0001
	complex(3, 1),   // 0010
	complex(3, 3),   // 0011
	complex(1, -1),  // 0100
	complex(1, -3),  // 0101
	complex(3, -1),  // 0110
	complex(3, -3),  // 0111
	complex(-1, 1),  // 1000
	complex(-1, 3),  // 1001
	complex(-3, 1),  // 1010
	complex(-3, 3),  // 1011
	complex(-1, -1), // 1100
	complex(-1, -3), // 1101
	complex(-3, -1), // 1110
	complex(-3, -3), // 1111
}

// Constellation maps nibbles to QAM points and back.
// It holds no mutable state and is safe for concurrent use.
type Constellation struct {
	Mod    Modulation
	points []complex128
}

// NewConstellation creates a constellation for the given modulation.
func NewConstellation(mod Modulation) (*Constellation, error) {
	switch mod {
	case Mod16QAM:
		return &Constellation{Mod: mod, points: qam16Points[:]}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported modulation %d", ErrInvalidConfig, int(mod))
	}
}

// Points returns a copy of the constellation table in index order.
func (c *Constellation) Points() []complex128 {
	out := make([]complex128, len(c.points))
	copy(out, c.points)
	return out
}

// Map maps the low four bits of nibble to a constellation point.
func (c *Constellation) Map(nibble byte) complex128 {
	return c.points[nibble&0x0f]
}

// Demap finds the closest constellation point and returns its nibble.
// Equidistant candidates resolve to the lowest table index.
func (c *Constellation) Demap(symbol complex128) byte {
	minDist := math.Inf(1)
	minIdx := 0

	for i, p := range c.points {
		d := real(symbol-p)*real(symbol-p) + imag(symbol-p)*imag(symbol-p)
		if d < minDist {
			minDist = d
			minIdx = i
		}
	}

	return byte(minIdx)
}

// MapBytes maps each byte to two constellation points, high nibble first.
func (c *Constellation) MapBytes(data []byte) []complex128 {
	symbols := make([]complex128, 2*len(data))
	c.mapInto(symbols, data)
	return symbols
}

func (c *Constellation) mapInto(dst []complex128, data []byte) {
	for i, b := range data {
		dst[2*i] = c.Map(b >> 4)
		dst[2*i+1] = c.Map(b)
	}
}

// DemapSymbols demaps constellation points back to bytes.
// An odd number of points cannot form whole bytes.
func (c *Constellation) DemapSymbols(symbols []complex128) ([]byte, error) {
	if len(symbols)%2 != 0 {
		return nil, fmt.Errorf("%w: %d points do not pair into bytes", ErrInvalidPointCount, len(symbols))
	}
	out := make([]byte, len(symbols)/2)
	if err := c.DemapInto(out, symbols); err != nil {
		return nil, err
	}
	return out, nil
}

// DemapInto demaps symbols into dst, which must hold exactly len(symbols)/2 bytes.
func (c *Constellation) DemapInto(dst []byte, symbols []complex128) error {
	if len(symbols)%2 != 0 {
		return fmt.Errorf("%w: %d points do not pair into bytes", ErrInvalidPointCount, len(symbols))
	}
	if len(dst) != len(symbols)/2 {
		return fmt.Errorf("%w: output has %d bytes, need %d", ErrInvalidBufferLength, len(dst), len(symbols)/2)
	}
	for i := range dst {
		dst[i] = c.Demap(symbols[2*i])<<4 | c.Demap(symbols[2*i+1])
	}
	return nil
}
