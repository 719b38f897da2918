// Package samples serializes modulated sample buffers for storage and
// transport.
package samples

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/jeongseonghan/ofdm-modem/internal/modem"
)

// Container layout (little-endian):
// [Magic "OFDM"(4B)][Version(1B)][Flags(1B)][N(2B)][CP(2B)][PilotInterval(2B)]
// [BitsPerSymbol(1B)][Reserved(3B)][SampleCount(4B)][CRC-32(4B)][Samples]
// Samples are float32 values, zstd-compressed when FlagZstd is set. The
// CRC covers the uncompressed sample block.
const (
	Magic      = "OFDM"
	Version    = 1
	HeaderSize = 24

	FlagZstd byte = 0x01

	maxSamples = 1 << 24
)

var (
	ErrBadMagic    = errors.New("not a sample container")
	ErrVersion     = errors.New("unsupported container version")
	ErrTruncated   = errors.New("container truncated")
	ErrChecksum    = errors.New("sample checksum mismatch")
	ErrCompression = errors.New("zstd codec failure")
)

// Header describes a container.
type Header struct {
	Config      modem.Config
	Compressed  bool
	SampleCount int
	CRC         uint32
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// codecs returns the shared zstd encoder and decoder. EncodeAll and
// DecodeAll are safe for concurrent use.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(4*maxSamples))
	})
	return zstdEnc, zstdDec, zstdErr
}

// Marshal encodes samples produced with cfg into a container.
func Marshal(cfg modem.Config, samples []float64, compress bool) ([]byte, error) {
	if len(samples) > maxSamples {
		return nil, fmt.Errorf("too many samples: %d > %d", len(samples), maxSamples)
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"num subcarriers", cfg.NumSubcarriers},
		{"cyclic prefix", cfg.CyclicPrefixLength},
		{"pilot interval", cfg.PilotInterval},
	} {
		if f.value < 0 || f.value > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s %d does not fit the container header", modem.ErrInvalidConfig, f.name, f.value)
		}
	}

	pcm := encodePCM(samples)
	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], Magic)
	hdr[4] = Version
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(cfg.NumSubcarriers))
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(cfg.CyclicPrefixLength))
	binary.LittleEndian.PutUint16(hdr[10:12], uint16(cfg.PilotInterval))
	hdr[12] = byte(cfg.Modulation.BitsPerSymbol())
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(samples)))
	binary.LittleEndian.PutUint32(hdr[20:24], checksumPCM(pcm))

	body := pcm
	if compress {
		enc, _, err := codecs()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		hdr[5] |= FlagZstd
		body = enc.EncodeAll(pcm, nil)
	}

	out := make([]byte, 0, len(hdr)+len(body))
	out = append(out, hdr...)
	return append(out, body...), nil
}

// ParseHeader decodes the fixed-size header at the start of data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), HeaderSize)
	}
	if string(data[0:4]) != Magic {
		return nil, ErrBadMagic
	}
	if data[4] != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, data[4])
	}

	h := &Header{
		Config: modem.Config{
			NumSubcarriers:     int(binary.LittleEndian.Uint16(data[6:8])),
			CyclicPrefixLength: int(binary.LittleEndian.Uint16(data[8:10])),
			PilotInterval:      int(binary.LittleEndian.Uint16(data[10:12])),
			Modulation:         modem.Modulation(data[12]),
		},
		Compressed:  data[5]&FlagZstd != 0,
		SampleCount: int(binary.LittleEndian.Uint32(data[16:20])),
		CRC:         binary.LittleEndian.Uint32(data[20:24]),
	}
	if h.SampleCount > maxSamples {
		return nil, fmt.Errorf("too many samples: %d > %d", h.SampleCount, maxSamples)
	}
	return h, nil
}

// Unmarshal decodes a container, verifying its checksum.
func Unmarshal(data []byte) (*Header, []float64, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, nil, err
	}

	pcm := data[HeaderSize:]
	if h.Compressed {
		_, dec, err := codecs()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		pcm, err = dec.DecodeAll(pcm, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: decompress: %v", ErrCompression, err)
		}
	}

	want := 4 * h.SampleCount
	if len(pcm) < want {
		return nil, nil, fmt.Errorf("%w: have %d sample bytes, need %d", ErrTruncated, len(pcm), want)
	}
	pcm = pcm[:want]

	if actual := checksumPCM(pcm); actual != h.CRC {
		return nil, nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, h.CRC, actual)
	}

	return h, decodePCM(pcm), nil
}

// Write marshals samples into w.
func Write(w io.Writer, cfg modem.Config, samples []float64, compress bool) error {
	data, err := Marshal(cfg, samples, compress)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read reads a whole container from r.
func Read(r io.Reader) (*Header, []float64, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, nil, fmt.Errorf("read container: %w", err)
	}
	return Unmarshal(buf.Bytes())
}
