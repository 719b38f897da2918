package modem

import (
	"math/rand"
)

// PilotSequenceGenerator supplies the value transmitted on a pilot bin.
// The demodulator does not use pilot values; they are reserved for channel
// estimation. Implementations must be safe for concurrent use.
type PilotSequenceGenerator interface {
	Pilot(bin int) complex128
}

// PilotValue is the default placeholder pilot symbol (BPSK +1).
const PilotValue = 1 + 0i

// ConstantPilot writes the same value on every pilot bin.
type ConstantPilot struct {
	Value complex128
}

// Pilot implements PilotSequenceGenerator.
func (p ConstantPilot) Pilot(int) complex128 {
	return p.Value
}

// BPSKPilots assigns a pseudo-random ±1 to every bin, reproducible from a seed.
type BPSKPilots struct {
	values []complex128
}

// NewBPSKPilots precomputes pilot values for bins [0, numSubcarriers].
func NewBPSKPilots(seed int64, numSubcarriers int) *BPSKPilots {
	rng := rand.New(rand.NewSource(seed))
	values := make([]complex128, numSubcarriers+1)
	for k := range values {
		if rng.Intn(2) == 0 {
			values[k] = complex(1, 0)
		} else {
			values[k] = complex(-1, 0)
		}
	}
	return &BPSKPilots{values: values}
}

// Pilot implements PilotSequenceGenerator. Bins outside the precomputed
// range get +1.
func (p *BPSKPilots) Pilot(bin int) complex128 {
	if bin < 0 || bin >= len(p.values) {
		return PilotValue
	}
	return p.values[bin]
}
