package wav

import (
	"bytes"
	"encoding/binary"
	"math"
)

// headerSize is the size of the canonical RIFF/WAVE header with a single
// fmt chunk and a single data chunk, no metadata.
const headerSize = 44

// formatIEEEFloat is the WAVE format code for 32-bit IEEE float samples,
// as opposed to integer PCM (format 1).
const formatIEEEFloat = 3

const bytesPerSample = 4

// header mirrors the 44-byte canonical WAV layout. All multi-byte fields
// are little-endian on the wire.
type header struct {
	RiffID     [4]byte
	RiffSize   uint32
	WaveID     [4]byte
	FmtID      [4]byte
	FmtSize    uint32
	Format     uint16
	Channels   uint16
	SampleRate uint32
	ByteRate   uint32
	BlockAlign uint16
	BitDepth   uint16
	DataID     [4]byte
	DataSize   uint32
}

// Encode serializes interleaved float32 samples into a complete WAV byte
// buffer: 44-byte header followed by the samples as consecutive
// little-endian IEEE floats. Samples must already be interleaved by
// channel. The output is byte-for-byte deterministic for identical inputs.
//
// No bounds checking is done on sampleRate or channels; callers are
// responsible for passing coherent values.
func Encode(samples []float32, sampleRate, channels int) []byte {
	dataSize := uint32(len(samples) * bytesPerSample)

	h := header{
		RiffID:     [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:   headerSize + dataSize - 8,
		WaveID:     [4]byte{'W', 'A', 'V', 'E'},
		FmtID:      [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     formatIEEEFloat,
		Channels:   uint16(channels),
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * channels * bytesPerSample),
		BlockAlign: uint16(channels * bytesPerSample),
		BitDepth:   8 * bytesPerSample,
		DataID:     [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+int(dataSize)))
	binary.Write(buf, binary.LittleEndian, &h)

	var scratch [bytesPerSample]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(s))
		buf.Write(scratch[:])
	}

	return buf.Bytes()
}

// Duration returns the play time in seconds of an interleaved sample
// sequence at the given rate and channel count.
func Duration(sampleCount, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate*channels)
}
