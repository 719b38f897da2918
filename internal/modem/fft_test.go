package modem

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

var engines = []string{EngineGonum, EngineGoDSP, EngineRadix2}

func TestTransform_KnownValues(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			tr, err := NewTransform(engine, 4)
			if err != nil {
				t.Fatalf("NewTransform: %v", err)
			}

			// FFT of [1, 1, 1, 1] should be [4, 0, 0]
			bins := make([]complex128, 3)
			if err := tr.Forward(bins, []float64{1, 1, 1, 1}); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			if cmplx.Abs(bins[0]-4) > 1e-10 {
				t.Errorf("bin 0 = %v, want 4", bins[0])
			}
			for i := 1; i < len(bins); i++ {
				if cmplx.Abs(bins[i]) > 1e-10 {
					t.Errorf("bin %d = %v, want 0", i, bins[i])
				}
			}
		})
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	n := 128
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2*math.Pi*3*float64(i)/float64(n)) + float64(i)/float64(n)
	}

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			tr, err := NewTransform(engine, n)
			if err != nil {
				t.Fatalf("NewTransform: %v", err)
			}
			bins := make([]complex128, n/2+1)
			if err := tr.Forward(bins, x); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			y := make([]float64, n)
			if err := tr.Inverse(y, bins); err != nil {
				t.Fatalf("Inverse: %v", err)
			}
			for i := range x {
				if math.Abs(x[i]-y[i]) > 1e-9 {
					t.Fatalf("Inverse(Forward(x))[%d] = %v, want %v", i, y[i], x[i])
				}
			}
		})
	}
}

func TestTransform_InverseThenForward(t *testing.T) {
	n := 64
	bins := make([]complex128, n/2+1)
	for k := 1; k < n/2; k++ {
		bins[k] = complex(float64(k%4)-1.5, float64(k%3)-1)
	}

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			tr, _ := NewTransform(engine, n)
			samples := make([]float64, n)
			if err := tr.Inverse(samples, bins); err != nil {
				t.Fatalf("Inverse: %v", err)
			}
			got := make([]complex128, n/2+1)
			if err := tr.Forward(got, samples); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			for k := range bins {
				if cmplx.Abs(got[k]-bins[k]) > 1e-9 {
					t.Errorf("bin %d = %v, want %v", k, got[k], bins[k])
				}
			}
		})
	}
}

func TestTransform_EnginesAgree(t *testing.T) {
	n := 256
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Cos(2*math.Pi*17*float64(i)/float64(n)) * math.Exp(-float64(i)/100)
	}

	ref := make([]complex128, n/2+1)
	gonum, _ := NewTransform(EngineGonum, n)
	if err := gonum.Forward(ref, x); err != nil {
		t.Fatalf("gonum Forward: %v", err)
	}

	for _, engine := range engines[1:] {
		tr, _ := NewTransform(engine, n)
		got := make([]complex128, n/2+1)
		if err := tr.Forward(got, x); err != nil {
			t.Fatalf("%s Forward: %v", engine, err)
		}
		for k := range ref {
			if cmplx.Abs(got[k]-ref[k]) > 1e-8 {
				t.Errorf("%s bin %d = %v, gonum %v", engine, k, got[k], ref[k])
				break
			}
		}
	}
}

func TestTransform_SinePeak(t *testing.T) {
	n := 512
	freq := 10.0 // 10 cycles
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(n))
	}

	tr, _ := NewTransform(EngineRadix2, n)
	y := make([]complex128, n/2+1)
	if err := tr.Forward(y, x); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	maxMag := 0.0
	maxIdx := 0
	for i := 1; i < len(y); i++ {
		if mag := cmplx.Abs(y[i]); mag > maxMag {
			maxMag = mag
			maxIdx = i
		}
	}
	if maxIdx != int(freq) {
		t.Errorf("Peak at index %d, expected %d", maxIdx, int(freq))
	}
}

func TestTransform_LengthMismatch(t *testing.T) {
	for _, engine := range engines {
		tr, _ := NewTransform(engine, 16)
		if err := tr.Forward(make([]complex128, 8), make([]float64, 16)); !errors.Is(err, ErrTransform) {
			t.Errorf("%s Forward with short dst: got %v", engine, err)
		}
		if err := tr.Inverse(make([]float64, 15), make([]complex128, 9)); !errors.Is(err, ErrTransform) {
			t.Errorf("%s Inverse with short dst: got %v", engine, err)
		}
	}
}

func TestNewTransform_Errors(t *testing.T) {
	tests := []struct {
		name   string
		engine string
		n      int
	}{
		{"odd length", EngineGonum, 7},
		{"radix2 non power of two", EngineRadix2, 12},
		{"unknown engine", "fftw", 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTransform(tt.engine, tt.n); !errors.Is(err, ErrTransform) {
				t.Errorf("expected ErrTransform, got %v", err)
			}
		})
	}
}
