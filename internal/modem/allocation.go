package modem

// Subcarrier allocation for OFDM.
// Bin 0 (DC) and bin N (Nyquist) stay zero for a real-valued output; every
// bin in between is either a pilot or carries data.

// Allocation partitions the usable bins [1, N) into pilot and data bins.
// It is immutable once built and safe to share.
type Allocation struct {
	numSubcarriers int
	pilotInterval  int
	data           []int
	pilots         []int
}

// NewAllocation builds the allocation table for cfg. Bins whose index is a
// multiple of the pilot interval are pilots, the rest carry data, both in
// ascending order. The caller guarantees NumSubcarriers >= 4 and
// PilotInterval >= 2.
func NewAllocation(cfg Config) *Allocation {
	a := &Allocation{
		numSubcarriers: cfg.NumSubcarriers,
		pilotInterval:  cfg.PilotInterval,
	}
	for i := 1; i < cfg.NumSubcarriers; i++ {
		if i%cfg.PilotInterval == 0 {
			a.pilots = append(a.pilots, i)
		} else {
			a.data = append(a.data, i)
		}
	}
	return a
}

// NumSubcarriers returns N; the spectrum spans bins [0, N].
func (a *Allocation) NumSubcarriers() int { return a.numSubcarriers }

// NumData returns the number of data subcarriers.
func (a *Allocation) NumData() int { return len(a.data) }

// NumPilots returns the number of pilot subcarriers.
func (a *Allocation) NumPilots() int { return len(a.pilots) }

// DataIndices returns the data bins in ascending order.
func (a *Allocation) DataIndices() []int {
	out := make([]int, len(a.data))
	copy(out, a.data)
	return out
}

// PilotIndices returns the pilot bins in ascending order.
func (a *Allocation) PilotIndices() []int {
	out := make([]int, len(a.pilots))
	copy(out, a.pilots)
	return out
}

// IsPilot returns true if the given bin is a pilot.
func (a *Allocation) IsPilot(bin int) bool {
	return bin > 0 && bin < a.numSubcarriers && bin%a.pilotInterval == 0
}

// IsData returns true if the given bin carries data.
func (a *Allocation) IsData(bin int) bool {
	return bin > 0 && bin < a.numSubcarriers && bin%a.pilotInterval != 0
}

// insertSymbols writes data points and pilot values into spectrum,
// which must hold N+1 bins. len(dataSymbols) must equal NumData.
func (a *Allocation) insertSymbols(spectrum, dataSymbols []complex128, pilots PilotSequenceGenerator) {
	for i, idx := range a.data {
		spectrum[idx] = dataSymbols[i]
	}
	for _, idx := range a.pilots {
		spectrum[idx] = pilots.Pilot(idx)
	}
}

// extractData copies the data bins of spectrum into dst in allocation order.
func (a *Allocation) extractData(dst, spectrum []complex128) {
	for i, idx := range a.data {
		dst[i] = spectrum[idx]
	}
}
