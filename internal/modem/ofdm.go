package modem

import (
	"errors"
	"fmt"
)

// Default OFDM parameters: 64 bins (128-point transform), 56 of them data.
const (
	DefaultNumSubcarriers     = 64
	DefaultCyclicPrefixLength = 16
	DefaultPilotInterval      = 8
)

// Config describes one OFDM symbol layout. A Config is a value; modulators
// and demodulators copy it at construction.
type Config struct {
	NumSubcarriers     int        // N; the spectrum has N+1 bins and the block 2N samples
	CyclicPrefixLength int        // samples copied from the block tail to its front
	PilotInterval      int        // bins whose index is a multiple of this are pilots
	Modulation         Modulation // only Mod16QAM is supported
}

// DefaultConfig returns the default symbol layout.
func DefaultConfig() Config {
	return Config{
		NumSubcarriers:     DefaultNumSubcarriers,
		CyclicPrefixLength: DefaultCyclicPrefixLength,
		PilotInterval:      DefaultPilotInterval,
		Modulation:         Mod16QAM,
	}
}

// TransformLen returns the number of real samples per transform block (2N).
func (c Config) TransformLen() int { return 2 * c.NumSubcarriers }

// SymbolLength returns the number of samples in one prefixed symbol.
func (c Config) SymbolLength() int { return c.TransformLen() + c.CyclicPrefixLength }

// BitsPerOFDMSymbol returns the data bits carried by one symbol, or 0 when
// the layout has no valid allocation.
func (c Config) BitsPerOFDMSymbol() int {
	if c.NumSubcarriers < 1 || c.PilotInterval < 2 {
		return 0
	}
	return NewAllocation(c).NumData() * c.Modulation.BitsPerSymbol()
}

// Validate checks the configuration, including that the symbol capacity is
// a whole number of bytes.
func (c Config) Validate() error {
	if c.NumSubcarriers < 4 || c.NumSubcarriers%2 != 0 {
		return fmt.Errorf("%w: num subcarriers %d must be even and >= 4", ErrInvalidConfig, c.NumSubcarriers)
	}
	if c.CyclicPrefixLength < 0 || c.CyclicPrefixLength > c.TransformLen() {
		return fmt.Errorf("%w: cyclic prefix %d must be in [0, %d]", ErrInvalidConfig, c.CyclicPrefixLength, c.TransformLen())
	}
	if c.PilotInterval < 2 {
		return fmt.Errorf("%w: pilot interval %d must be >= 2", ErrInvalidConfig, c.PilotInterval)
	}
	if c.Modulation != Mod16QAM {
		return fmt.Errorf("%w: unsupported modulation %d", ErrInvalidConfig, int(c.Modulation))
	}
	if bits := c.BitsPerOFDMSymbol(); bits%8 != 0 {
		return fmt.Errorf("%w: %d data bits per symbol is not a whole number of bytes", ErrInvalidConfig, bits)
	}
	return nil
}

// Option customizes a Modulator or Demodulator.
type Option func(*options)

type options struct {
	transform Transform
	pilots    PilotSequenceGenerator
}

// WithTransform supplies a pre-planned transform of 2N samples. By default
// each instance plans its own gonum transform.
func WithTransform(t Transform) Option {
	return func(o *options) { o.transform = t }
}

// WithPilots sets the generator for pilot bin values. The default writes
// PilotValue on every pilot.
func WithPilots(p PilotSequenceGenerator) Option {
	return func(o *options) { o.pilots = p }
}

// core is the state shared by both directions.
type core struct {
	cfg           Config
	alloc         *Allocation
	constellation *Constellation
	fft           Transform
	pilots        PilotSequenceGenerator
	capacity      int
}

func newCore(cfg Config, opts []Option) (*core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{pilots: ConstantPilot{Value: PilotValue}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transform == nil {
		o.transform = NewFourierTransform(cfg.TransformLen())
	}
	if o.transform.Len() != cfg.TransformLen() {
		return nil, fmt.Errorf("%w: transform length %d, symbol needs %d", ErrTransform, o.transform.Len(), cfg.TransformLen())
	}

	constellation, err := NewConstellation(cfg.Modulation)
	if err != nil {
		return nil, err
	}

	alloc := NewAllocation(cfg)
	return &core{
		cfg:           cfg,
		alloc:         alloc,
		constellation: constellation,
		fft:           o.transform,
		pilots:        o.pilots,
		capacity:      alloc.NumData() * cfg.Modulation.BitsPerSymbol() / 8,
	}, nil
}

// Config returns the configuration the instance was built with.
func (c *core) Config() Config { return c.cfg }

// Allocation returns the shared allocation table.
func (c *core) Allocation() *Allocation { return c.alloc }

// SymbolLength returns the number of samples in one prefixed symbol.
func (c *core) SymbolLength() int { return c.cfg.SymbolLength() }

// PayloadCapacity returns the number of payload bytes per symbol.
func (c *core) PayloadCapacity() int { return c.capacity }

func transformError(op string, err error) error {
	if errors.Is(err, ErrTransform) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransform, err)
}

// Modulator handles OFDM modulation (bytes → samples).
type Modulator struct {
	*core
}

// NewModulator creates an OFDM modulator for cfg.
func NewModulator(cfg Config, opts ...Option) (*Modulator, error) {
	c, err := newCore(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Modulator{core: c}, nil
}

// Modulate converts exactly PayloadCapacity() bytes into one OFDM symbol of
// SymbolLength() samples written to out.
func (m *Modulator) Modulate(payload []byte, out []float64) error {
	if len(payload) != m.capacity {
		return fmt.Errorf("%w: got %d bytes, symbol carries %d", ErrInvalidPayloadLength, len(payload), m.capacity)
	}
	if len(out) != m.SymbolLength() {
		return fmt.Errorf("%w: output has %d samples, symbol needs %d", ErrInvalidBufferLength, len(out), m.SymbolLength())
	}

	// Map bytes to constellation symbols
	dataSymbols := m.constellation.MapBytes(payload)

	// Insert data and pilot symbols into the half spectrum; DC and Nyquist stay zero
	spectrum := make([]complex128, m.cfg.NumSubcarriers+1)
	m.alloc.insertSymbols(spectrum, dataSymbols, m.pilots)

	// IFFT to time domain
	timeDomain := make([]float64, m.cfg.TransformLen())
	if err := m.fft.Inverse(timeDomain, spectrum); err != nil {
		return transformError("modulate", err)
	}

	// Add cyclic prefix
	addCyclicPrefix(out, timeDomain, m.cfg.CyclicPrefixLength)
	return nil
}

// ModulateSymbol is Modulate with a freshly allocated output buffer.
func (m *Modulator) ModulateSymbol(payload []byte) ([]float64, error) {
	out := make([]float64, m.SymbolLength())
	if err := m.Modulate(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Demodulator handles OFDM demodulation (samples → bytes).
type Demodulator struct {
	*core
}

// NewDemodulator creates an OFDM demodulator for cfg.
func NewDemodulator(cfg Config, opts ...Option) (*Demodulator, error) {
	c, err := newCore(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &Demodulator{core: c}, nil
}

// Demodulate recovers PayloadCapacity() bytes from one symbol. in must start
// exactly at the symbol boundary, cyclic prefix included.
func (d *Demodulator) Demodulate(in []float64, out []byte) error {
	if len(in) != d.SymbolLength() {
		return fmt.Errorf("%w: input has %d samples, symbol is %d", ErrInvalidBufferLength, len(in), d.SymbolLength())
	}
	if len(out) != d.capacity {
		return fmt.Errorf("%w: output has %d bytes, symbol carries %d", ErrInvalidBufferLength, len(out), d.capacity)
	}

	// Remove cyclic prefix
	withoutCP := removeCyclicPrefix(in, d.cfg.CyclicPrefixLength)

	// FFT to frequency domain
	spectrum := make([]complex128, d.cfg.NumSubcarriers+1)
	if err := d.fft.Forward(spectrum, withoutCP); err != nil {
		return transformError("demodulate", err)
	}

	// Extract data symbols; pilot bins are skipped
	dataSymbols := make([]complex128, d.alloc.NumData())
	d.alloc.extractData(dataSymbols, spectrum)

	// Demap to bytes
	return d.constellation.DemapInto(out, dataSymbols)
}

// DemodulateSymbol is Demodulate with a freshly allocated output buffer.
func (d *Demodulator) DemodulateSymbol(in []float64) ([]byte, error) {
	out := make([]byte, d.capacity)
	if err := d.Demodulate(in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// addCyclicPrefix writes the last cpLen samples of block followed by the
// whole block into dst, which must hold cpLen+len(block) samples.
func addCyclicPrefix(dst, block []float64, cpLen int) {
	n := len(block)
	copy(dst, block[n-cpLen:])
	copy(dst[cpLen:], block)
}

func removeCyclicPrefix(samples []float64, cpLen int) []float64 {
	return samples[cpLen:]
}
