package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jeongseonghan/ofdm-modem/internal/config"
	"github.com/jeongseonghan/ofdm-modem/internal/modem"
)

// slot is one modulator/demodulator pair. A Transform keeps scratch state,
// so a slot serves a single request at a time.
type slot struct {
	mod   *modem.Modulator
	demod *modem.Demodulator
}

// modemPool hands out slots to concurrent requests.
type modemPool struct {
	cfg     modem.Config
	engine  string
	slots   chan *slot
	metrics *Metrics
}

func newModemPool(mc config.ModemConfig, workers int, metrics *Metrics) (*modemPool, error) {
	cfg, err := mc.Layout()
	if err != nil {
		return nil, err
	}

	p := &modemPool{
		cfg:     cfg,
		engine:  mc.Transform,
		slots:   make(chan *slot, workers),
		metrics: metrics,
	}
	for i := 0; i < workers; i++ {
		mod, err := mc.NewModulator()
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		demod, err := mc.NewDemodulator()
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		p.slots <- &slot{mod: mod, demod: demod}
	}
	return p, nil
}

// acquire blocks until a slot is free or ctx is done.
func (p *modemPool) acquire(ctx context.Context) (*slot, error) {
	start := time.Now()
	select {
	case s := <-p.slots:
		p.metrics.poolWait.Observe(time.Since(start).Seconds())
		p.metrics.slotsInUse.Inc()
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *modemPool) release(s *slot) {
	p.metrics.slotsInUse.Dec()
	p.slots <- s
}

// modulate runs one modulation on a pooled slot.
func (p *modemPool) modulate(ctx context.Context, payload []byte) ([]float64, error) {
	s, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(s)

	start := time.Now()
	out, err := s.mod.ModulateSymbol(payload)
	p.metrics.requestDuration.WithLabelValues("modulate").Observe(time.Since(start).Seconds())
	return out, err
}

// demodulate runs one demodulation on a pooled slot.
func (p *modemPool) demodulate(ctx context.Context, in []float64) ([]byte, error) {
	s, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(s)

	start := time.Now()
	out, err := s.demod.DemodulateSymbol(in)
	p.metrics.requestDuration.WithLabelValues("demodulate").Observe(time.Since(start).Seconds())
	return out, err
}
