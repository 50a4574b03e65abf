package engine

import "github.com/quimgil/overwitch/internal/owerr"

// Option selects which of the four streams the engine drives and whether a
// DLL is attached.
type Option uint32

const (
	OptionO2PAudio Option = 1 << iota
	OptionP2OAudio
	OptionO2PMIDI
	OptionP2OMIDI
	OptionDLL
)

// Ring is the engine's view of a host-owned lock-free SPSC byte buffer.
// All four methods are non-blocking: the accessors report available space
// and the movers react, they never wait. A nil dst on Read discards bytes.
type Ring interface {
	ReadSpace() int
	WriteSpace() int
	Read(dst []byte, n int) int
	Write(src []byte) int
}

// ClockRecovery is the engine's view of the host's delay-locked loop. The
// engine calls Init once per boot and Increment once per inbound transfer,
// both under its own lock; the state itself is opaque.
type ClockRecovery interface {
	Init(sampleRate, framesPerTransfer int, now float64)
	Increment(framesPerTransfer int, now float64)
}

// HostContext carries everything the host side hands to Activate. Required
// fields depend on Options; Activate validates each enabled option and
// returns the matching owerr code for the first missing field.
type HostContext struct {
	Options Option

	P2OAudio Ring
	O2PAudio Ring
	P2OMIDI  Ring
	O2PMIDI  Ring

	// GetTime returns the host clock in seconds. Required for MIDI and
	// DLL options.
	GetTime func() float64

	// SetRTPriority is called from inside each worker goroutine after it
	// has locked its OS thread. Left nil, a SCHED_FIFO default is used.
	SetRTPriority func(priority int) error
	Priority      int

	DLL ClockRecovery
}

func (hc *HostContext) validate() error {
	if hc.Options == 0 {
		return owerr.New(owerr.Generic)
	}
	if hc.Options&OptionO2PAudio != 0 && hc.O2PAudio == nil {
		return owerr.New(owerr.NoO2PAudioBuf)
	}
	if hc.Options&OptionP2OAudio != 0 && hc.P2OAudio == nil {
		return owerr.New(owerr.NoP2OAudioBuf)
	}
	if hc.Options&OptionO2PMIDI != 0 {
		if hc.GetTime == nil {
			return owerr.New(owerr.NoGetTime)
		}
		if hc.O2PMIDI == nil {
			return owerr.New(owerr.NoO2PMIDIBuf)
		}
	}
	if hc.Options&OptionP2OMIDI != 0 {
		if hc.GetTime == nil {
			return owerr.New(owerr.NoGetTime)
		}
		if hc.P2OMIDI == nil {
			return owerr.New(owerr.NoP2OMIDIBuf)
		}
	}
	if hc.Options&OptionDLL != 0 {
		if hc.GetTime == nil {
			return owerr.New(owerr.NoGetTime)
		}
		if hc.DLL == nil {
			return owerr.New(owerr.NoDLL)
		}
	}
	return nil
}
