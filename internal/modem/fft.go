package modem

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Radix2Transform is an iterative Cooley-Tukey transform with no external
// dependencies. The block length must be a power of 2. It reuses a work
// buffer and is not safe for concurrent use.
type Radix2Transform struct {
	n    int
	bits int
	work []complex128
}

// NewRadix2Transform plans a radix-2 transform of n samples.
func NewRadix2Transform(n int) (*Radix2Transform, error) {
	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: radix-2 length %d is not a power of 2", ErrTransform, n)
	}
	bits := 0
	for tmp := n; tmp > 1; tmp >>= 1 {
		bits++
	}
	return &Radix2Transform{
		n:    n,
		bits: bits,
		work: make([]complex128, n),
	}, nil
}

// Len implements Transform.
func (t *Radix2Transform) Len() int { return t.n }

// Forward implements Transform.
func (t *Radix2Transform) Forward(dst []complex128, src []float64) error {
	if err := checkLengths(t.n, dst, src); err != nil {
		return err
	}
	for i, v := range src {
		t.work[i] = complex(v, 0)
	}
	t.bitReverse()
	t.butterflies(false)
	copy(dst, t.work[:len(dst)])
	return nil
}

// Inverse implements Transform.
func (t *Radix2Transform) Inverse(dst []float64, src []complex128) error {
	if err := checkLengths(t.n, src, dst); err != nil {
		return err
	}
	hermitianExtend(t.work, src)
	t.bitReverse()
	t.butterflies(true)

	// Scale by 1/N
	scale := 1.0 / float64(t.n)
	for i := range dst {
		dst[i] = real(t.work[i]) * scale
	}
	return nil
}

func (t *Radix2Transform) butterflies(inverse bool) {
	x := t.work
	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for size := 2; size <= t.n; size <<= 1 {
		halfSize := size >> 1
		wn := cmplx.Exp(complex(0, sign*2*math.Pi/float64(size)))
		for start := 0; start < t.n; start += size {
			w := complex(1, 0)
			for j := 0; j < halfSize; j++ {
				u := x[start+j]
				v := w * x[start+j+halfSize]
				x[start+j] = u + v
				x[start+j+halfSize] = u - v
				w *= wn
			}
		}
	}
}

func (t *Radix2Transform) bitReverse() {
	for i := 0; i < t.n; i++ {
		j := reverseBits(i, t.bits)
		if i < j {
			t.work[i], t.work[j] = t.work[j], t.work[i]
		}
	}
}

func reverseBits(x, bits int) int {
	result := 0
	for i := 0; i < bits; i++ {
		result = (result << 1) | (x & 1)
		x >>= 1
	}
	return result
}
