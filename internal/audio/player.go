package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/jeongseonghan/ofdm-modem/internal/samples"
)

const NumChannels = 1

// Init initializes PortAudio.
func Init() error {
	return portaudio.Initialize()
}

// Terminate cleans up PortAudio.
func Terminate() error {
	return portaudio.Terminate()
}

// Player writes modulated symbols to the default output device. Only the
// transmit direction is supported: receiving needs symbol synchronization.
type Player struct {
	sampleRate   float64
	framesPerBuf int
	amplitude    float64

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32
}

// NewPlayer creates a player. Samples are scaled so their peak equals
// amplitude.
func NewPlayer(sampleRate float64, framesPerBuf int, amplitude float64) *Player {
	return &Player{
		sampleRate:   sampleRate,
		framesPerBuf: framesPerBuf,
		amplitude:    amplitude,
		buf:          make([]float32, framesPerBuf),
	}
}

// Open opens and starts the default output stream.
func (p *Player) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}
	stream, err := portaudio.OpenDefaultStream(
		0,           // input channels
		NumChannels, // output channels
		p.sampleRate,
		p.framesPerBuf,
		p.buf,
	)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}
	p.stream = stream
	return nil
}

// Play normalizes samples and writes them in framesPerBuf chunks, padding
// the last chunk with silence. Play blocks until the data is queued.
func (p *Player) Play(symbol []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return fmt.Errorf("output stream not opened")
	}

	out := samples.SamplesToFloat32(normalizeAmplitude(symbol, p.amplitude))
	for i := 0; i < len(out); i += p.framesPerBuf {
		n := copy(p.buf, out[i:])
		for j := n; j < len(p.buf); j++ {
			p.buf[j] = 0
		}
		if err := p.stream.Write(); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}

// Close stops and closes the stream.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	var errs []error
	if err := p.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := p.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	p.stream = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// normalizeAmplitude returns a copy of samples scaled so the largest
// magnitude equals peak.
func normalizeAmplitude(in []float64, peak float64) []float64 {
	maxAbs := 0.0
	for _, s := range in {
		if abs := math.Abs(s); abs > maxAbs {
			maxAbs = abs
		}
	}
	out := make([]float64, len(in))
	if maxAbs == 0 {
		return out
	}
	scale := peak / maxAbs
	for i, s := range in {
		out[i] = s * scale
	}
	return out
}
