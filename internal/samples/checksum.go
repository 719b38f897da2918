package samples

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// checksumPCM computes the CRC-32 (IEEE) of an encoded sample block.
func checksumPCM(pcm []byte) uint32 {
	return crc32.ChecksumIEEE(pcm)
}

// encodePCM converts samples to float32 little-endian bytes.
func encodePCM(samples []float64) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(s)))
	}
	return buf
}

// decodePCM converts float32 little-endian bytes back to samples.
func decodePCM(buf []byte) []float64 {
	out := make([]float64, len(buf)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return out
}

// SamplesToFloat32 converts float64 samples to float32 for audio output.
func SamplesToFloat32(samples []float64) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s)
	}
	return out
}
