package protocol_test

import (
	"testing"

	"github.com/quimgil/overwitch/internal/protocol"
)

func TestMIDIEventValid(t *testing.T) {
	tests := []struct {
		first byte
		want  bool
	}{
		{0x00, false},
		{0x07, false}, // below the voice-message CIN range
		{0x08, true},  // note-off
		{0x09, true},  // note-on
		{0x0b, true},  // control change
		{0x0e, true},  // pitch bend
		{0x0f, true},  // single byte
		{0x10, false},
		{0xff, false},
	}
	for _, tc := range tests {
		ev := protocol.MIDIEvent{Data: [4]byte{tc.first, 0x90, 0x40, 0x7f}}
		if got := ev.Valid(); got != tc.want {
			t.Errorf("Valid() with first byte %#02x = %v, want %v", tc.first, got, tc.want)
		}
	}
}

func TestMIDIEventRingRoundTrip(t *testing.T) {
	in := protocol.MIDIEvent{Time: 123.456789, Data: [4]byte{0x09, 0x90, 0x3c, 0x64}}
	buf := make([]byte, protocol.MIDIEventRingSize)
	protocol.PutMIDIEvent(buf, &in)

	var out protocol.MIDIEvent
	protocol.GetMIDIEvent(&out, buf)
	if out != in {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}
