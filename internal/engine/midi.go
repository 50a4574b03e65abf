package engine

import (
	"errors"
	"runtime"
	"time"

	"github.com/quimgil/overwitch/internal/protocol"
	"github.com/quimgil/overwitch/internal/usb"
)

// minTick is roughly the average wait for a 32-sample buffer to fill at the
// device sample rate, so outbound MIDI never adds more than half a short
// buffer of scheduling jitter.
const minTick = time.Duration(protocol.SampleTimeNS) * 32 / 2

// moveInboundMIDI walks a completed MIDI-in transfer of n bytes. All events
// in one packet share the timestamp taken at entry.
func (e *Engine) moveInboundMIDI(n int) {
	if e.Status() < StatusRun {
		return
	}

	ring := e.host.O2PMIDI
	var ev protocol.MIDIEvent
	ev.Time = e.host.GetTime()

	var buf [protocol.MIDIEventRingSize]byte
	for off := 0; off+protocol.MIDIEventSize <= n; off += protocol.MIDIEventSize {
		copy(ev.Data[:], e.o2pMIDIData[off:])
		if !ev.Valid() {
			continue
		}
		e.log.Debug("o2p MIDI event",
			"data", ev.Data[:], "time", ev.Time)
		if ring.WriteSpace() >= protocol.MIDIEventRingSize {
			protocol.PutMIDIEvent(buf[:], &ev)
			ring.Write(buf[:])
		} else if e.overflowLog.Allow() {
			e.log.Error("o2p: MIDI ring buffer overflow, discarding data")
		}
	}
}

// runOutboundMIDI paces host MIDI onto the wire. Events with the same
// timestamp batch into one transfer; a later timestamp flushes the batch
// and the thread sleeps out the gap so the device receives events against
// the sample clock rather than in bursts.
func (e *Engine) runOutboundMIDI() {
	defer e.wg.Done()
	runtime.LockOSThread()
	e.applyRTPriority()

	ring := e.host.P2OMIDI
	pos := 0
	diff := 0.0
	eventRead := false
	var ev protocol.MIDIEvent
	var buf [protocol.MIDIEventRingSize]byte
	lastTime := e.host.GetTime()
	e.setP2OMIDIReady(true)

	for {
		for (eventRead || ring.ReadSpace() >= protocol.MIDIEventRingSize) && pos < protocol.MIDIBufSize {
			if pos == 0 {
				clear(e.p2oMIDIData)
				diff = 0
			}
			if !eventRead {
				ring.Read(buf[:], protocol.MIDIEventRingSize)
				protocol.GetMIDIEvent(&ev, buf[:])
				eventRead = true
			}
			if ev.Time > lastTime {
				// Future event: flush what we have and hold it
				// for the next batch.
				diff = ev.Time - lastTime
				lastTime = ev.Time
				break
			}
			copy(e.p2oMIDIData[pos:], ev.Data[:])
			pos += protocol.MIDIEventSize
			eventRead = false
		}

		if pos > 0 {
			e.log.Debug("p2o MIDI flush", "time", ev.Time, "diff", diff)
			e.setP2OMIDIReady(false)
			e.submitOutboundMIDI()
			pos = 0
		}

		if diff > 0 {
			time.Sleep(time.Duration(diff * float64(time.Second)))
		} else {
			time.Sleep(minTick)
		}

		for !e.isP2OMIDIReady() && e.Status() > StatusStop {
			time.Sleep(minTick)
		}

		if e.Status() <= StatusStop {
			return
		}
	}
}

// submitOutboundMIDI hands the packed buffer to the out endpoint. The pacer
// does not touch the buffer again until the completion flips p2oMIDIReady.
func (e *Engine) submitOutboundMIDI() {
	go func() {
		_, err := e.transport.MIDIOut(e.runCtx, e.p2oMIDIData)
		e.setP2OMIDIReady(true)
		if err == nil || e.runCtx.Err() != nil {
			return
		}
		if errors.Is(err, usb.ErrGone) {
			e.log.Error("p2o: error on USB MIDI out transfer", "err", err)
			e.SetStatus(StatusError)
			return
		}
		if e.faultLog.Allow() {
			e.log.Error("p2o: error on USB MIDI out transfer", "err", err)
		}
	}()
}

func (e *Engine) setP2OMIDIReady(v bool) {
	e.midiMu.Lock()
	e.p2oMIDIReady = v
	e.midiMu.Unlock()
}

func (e *Engine) isP2OMIDIReady() bool {
	e.midiMu.Lock()
	defer e.midiMu.Unlock()
	return e.p2oMIDIReady
}
