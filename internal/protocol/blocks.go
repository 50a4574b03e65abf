// Package protocol implements the Overbridge wire format: framed audio
// blocks of big-endian int32 samples and 4-byte USB-MIDI events.
//
// The codec functions are pure: no allocation, no I/O, no locking. The one
// exception is the DumpBlocks debug helper, which writes to an io.Writer.
package protocol

import (
	"encoding/binary"
	"math"
)

const (
	// SampleRate is the fixed device sample rate in Hz.
	SampleRate = 48000

	// FramesPerBlock is the number of frames carried by one wire block.
	FramesPerBlock = 7

	// BytesPerSample is the wire size of one sample (int32).
	BytesPerSample = 4

	// BlockHeaderSize covers the magic and frame counter fields.
	BlockHeaderSize = 4

	// MagicBlockHeader is the constant header of every outbound block.
	MagicBlockHeader = 0x07ff

	// SampleTimeNS is the duration of one frame in nanoseconds.
	SampleTimeNS = 1_000_000_000 / SampleRate
)

// BlockSize returns the wire size in bytes of one block carrying the given
// channel count.
func BlockSize(channels int) int {
	return BlockHeaderSize + BytesPerSample*FramesPerBlock*channels
}

// TransferSize returns the wire size in bytes of a whole transfer.
func TransferSize(blocks, channels int) int {
	return blocks * BlockSize(channels)
}

// InitBlockHeaders writes the magic header into every block of an outbound
// wire buffer. The frame counter fields are left for EncodeBlocks.
func InitBlockHeaders(wire []byte, blocks, channels int) {
	blkLen := BlockSize(channels)
	for i := 0; i < blocks; i++ {
		binary.BigEndian.PutUint16(wire[i*blkLen:], MagicBlockHeader)
	}
}

// DecodeBlocks unpacks a whole inbound transfer into dst, interleaved, one
// normalized float per sample, applying the per-track scale to each channel.
// A full-scale wire sample with a 1.0 scale decodes to ±1.0. dst must hold
// blocks*FramesPerBlock*channels floats and scales must hold one entry per
// channel.
func DecodeBlocks(wire []byte, blocks, channels int, scales []float32, dst []float32) {
	blkLen := BlockSize(channels)
	f := 0
	for i := 0; i < blocks; i++ {
		s := wire[i*blkLen+BlockHeaderSize:]
		off := 0
		for j := 0; j < FramesPerBlock; j++ {
			for k := 0; k < channels; k++ {
				v := int32(binary.BigEndian.Uint32(s[off:]))
				dst[f] = float32(float64(v) / math.MaxInt32 * float64(scales[k]))
				f++
				off += BytesPerSample
			}
		}
	}
}

// EncodeBlocks packs src into a whole outbound transfer. Each block gets the
// running frame counter, which advances by FramesPerBlock per block and
// wraps modulo 2^16. Samples are clamped to [-1, 1] before conversion, so
// +1.0 encodes as 0x7FFFFFFF and -1.0 as 0x80000001. Returns the advanced
// counter.
func EncodeBlocks(wire []byte, blocks, channels int, src []float32, counter uint16) uint16 {
	blkLen := BlockSize(channels)
	f := 0
	for i := 0; i < blocks; i++ {
		blk := wire[i*blkLen:]
		binary.BigEndian.PutUint16(blk, MagicBlockHeader)
		binary.BigEndian.PutUint16(blk[2:], counter)
		counter += FramesPerBlock
		off := BlockHeaderSize
		for j := 0; j < FramesPerBlock; j++ {
			for k := 0; k < channels; k++ {
				v := float64(src[f])
				if v > 1 {
					v = 1
				} else if v < -1 {
					v = -1
				}
				binary.BigEndian.PutUint32(blk[off:], uint32(int32(v*math.MaxInt32)))
				f++
				off += BytesPerSample
			}
		}
	}
	return counter
}

// BytesToFrameBytes rounds a byte count down to a whole number of frames.
func BytesToFrameBytes(bytes, frameSize int) int {
	return bytes / frameSize * frameSize
}

// FloatsToBytes serializes samples as little-endian float32, the layout the
// host rings carry. dst must hold 4*len(src) bytes.
func FloatsToBytes(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// BytesToFloats deserializes little-endian float32 samples. dst must hold
// len(src)/4 floats.
func BytesToFloats(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}
