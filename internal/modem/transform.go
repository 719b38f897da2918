package modem

import (
	"fmt"
	"math/cmplx"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform is a real-input/real-output transform pair over Len() real
// samples and Len()/2+1 complex bins (the non-negative half of a Hermitian
// spectrum). The pair is normalized so that Forward(Inverse(X)) == X for any
// X whose first and last bins are real.
//
// Implementations are not required to be safe for concurrent use. A
// Modulator or Demodulator is safe for concurrent use only if its Transform
// is; otherwise give each worker its own instance.
type Transform interface {
	// Len returns the number of real samples in one block.
	Len() int
	// Forward computes Len()/2+1 bins of src into dst.
	Forward(dst []complex128, src []float64) error
	// Inverse synthesizes Len() real samples from the half spectrum src.
	Inverse(dst []float64, src []complex128) error
}

// Transform engine names accepted by NewTransform.
const (
	EngineGonum  = "gonum"
	EngineGoDSP  = "godsp"
	EngineRadix2 = "radix2"
)

// NewTransform creates a transform of n real samples using the named engine.
// An empty name selects gonum.
func NewTransform(engine string, n int) (Transform, error) {
	if n < 2 || n%2 != 0 {
		return nil, fmt.Errorf("%w: block length %d must be even and >= 2", ErrTransform, n)
	}
	switch strings.ToLower(engine) {
	case "", EngineGonum:
		return NewFourierTransform(n), nil
	case EngineGoDSP:
		return NewDSPTransform(n), nil
	case EngineRadix2:
		return NewRadix2Transform(n)
	default:
		return nil, fmt.Errorf("%w: unknown transform engine %q", ErrTransform, engine)
	}
}

func checkLengths(n int, bins []complex128, samples []float64) error {
	if len(samples) != n {
		return fmt.Errorf("%w: %d samples, plan expects %d", ErrTransform, len(samples), n)
	}
	if len(bins) != n/2+1 {
		return fmt.Errorf("%w: %d bins, plan expects %d", ErrTransform, len(bins), n/2+1)
	}
	return nil
}

// hermitianExtend expands the half spectrum into a full spectrum of length
// 2*(len(half)-1) so that its inverse transform is real-valued.
func hermitianExtend(full, half []complex128) {
	n := len(full)
	for k := 1; k < n/2; k++ {
		full[k] = half[k]
		full[n-k] = cmplx.Conj(half[k])
	}
	full[0] = complex(real(half[0]), 0)
	full[n/2] = complex(real(half[n/2]), 0)
}

// FourierTransform wraps gonum's real FFT. It keeps internal work buffers
// and is not safe for concurrent use.
type FourierTransform struct {
	fft   *fourier.FFT
	n     int
	scale float64
}

// NewFourierTransform plans a gonum real FFT of n samples.
func NewFourierTransform(n int) *FourierTransform {
	return &FourierTransform{
		fft:   fourier.NewFFT(n),
		n:     n,
		scale: 1.0 / float64(n),
	}
}

// Len implements Transform.
func (t *FourierTransform) Len() int { return t.n }

// Forward implements Transform.
func (t *FourierTransform) Forward(dst []complex128, src []float64) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	t.fft.Coefficients(dst, src)
	return nil
}

// Inverse implements Transform. gonum's Sequence is unnormalized, so the
// output is scaled by 1/n.
func (t *FourierTransform) Inverse(dst []float64, src []complex128) error {
	if err := checkLengths(t.n, src, dst); err != nil {
		return err
	}
	t.fft.Sequence(dst, src)
	for i := range dst {
		dst[i] *= t.scale
	}
	return nil
}

// DSPTransform uses github.com/mjibson/go-dsp/fft, which handles any length
// and is safe for concurrent use.
type DSPTransform struct {
	n int
}

// NewDSPTransform creates a go-dsp backed transform of n samples.
func NewDSPTransform(n int) *DSPTransform {
	return &DSPTransform{n: n}
}

// Len implements Transform.
func (t *DSPTransform) Len() int { return t.n }

// Forward implements Transform.
func (t *DSPTransform) Forward(dst []complex128, src []float64) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	spectrum := dspfft.FFTReal(src)
	copy(dst, spectrum[:len(dst)])
	return nil
}

// Inverse implements Transform.
func (t *DSPTransform) Inverse(dst []float64, src []complex128) error {
	if err := checkLengths(t.n, src, dst); err != nil {
		return err
	}
	full := make([]complex128, t.n)
	hermitianExtend(full, src)
	timeDomain := dspfft.IFFT(full)
	for i, v := range timeDomain {
		dst[i] = real(v)
	}
	return nil
}
