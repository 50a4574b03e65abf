package protocol

import (
	"encoding/binary"
	"math"
)

const (
	// MIDIEventSize is the wire size of one USB-MIDI event.
	MIDIEventSize = 4

	// MIDIBufSize is the fixed size of a MIDI bulk transfer.
	MIDIBufSize = 512

	// MIDIEventRingSize is the serialized size of a timestamped event on
	// the host rings: a float64 timestamp followed by the raw event.
	MIDIEventRingSize = 8 + MIDIEventSize
)

// MIDIEvent is one USB-MIDI event with the host-clock timestamp attached
// when it crossed the engine boundary.
type MIDIEvent struct {
	Time float64
	Data [MIDIEventSize]byte
}

// Valid reports whether the event's code index number marks a standard
// voice message or single byte: note-off, note-on, poly key pressure,
// control change, program change, channel pressure, pitch bend, single byte.
func (e *MIDIEvent) Valid() bool {
	return e.Data[0] >= 0x08 && e.Data[0] <= 0x0f
}

// PutMIDIEvent serializes ev into dst, which must hold MIDIEventRingSize
// bytes.
func PutMIDIEvent(dst []byte, ev *MIDIEvent) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(ev.Time))
	copy(dst[8:], ev.Data[:])
}

// GetMIDIEvent deserializes an event from src, which must hold
// MIDIEventRingSize bytes.
func GetMIDIEvent(ev *MIDIEvent, src []byte) {
	ev.Time = math.Float64frombits(binary.LittleEndian.Uint64(src))
	copy(ev.Data[:], src[8:MIDIEventRingSize])
}
