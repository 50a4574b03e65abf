package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/quimgil/overwitch/internal/protocol"
	"github.com/quimgil/overwitch/internal/usb"
)

// midiInTimeout bounds a single MIDI-in cycle. The device NAKs while it has
// nothing to say; the runner just resubmits.
const midiInTimeout = time.Second

// runAudio is the audio and inbound-MIDI worker. It parks on READY, then
// boots the cycle runners and keeps them running until the engine leaves
// the WAIT/RUN band; re-boots restart the DLL warmup from scratch.
func (e *Engine) runAudio() {
	defer e.wg.Done()
	runtime.LockOSThread()
	e.applyRTPriority()

	for e.Status() == StatusReady {
		runtime.Gosched()
	}

	for {
		e.mu.Lock()
		e.p2oLatency, e.p2oMaxLatency = 0, 0
		e.o2pLatency, e.o2pMaxLatency = 0, 0
		e.readingAtP2OEnd = false
		if e.opts.dll {
			e.host.DLL.Init(protocol.SampleRate, e.framesPerTransfer, e.host.GetTime())
			e.status = StatusWait
		} else {
			e.status = StatusRun
		}
		e.mu.Unlock()

		var wg sync.WaitGroup
		wg.Add(2)
		go e.runAudioInCycles(&wg)
		go e.runAudioOutCycles(&wg)
		if e.opts.o2pMIDI {
			wg.Add(1)
			go e.runMIDIInCycles(&wg)
		}
		wg.Wait()

		// Drop whatever the host queued while we were not consuming it
		// and silence the transfer buffer, so a restart does not replay
		// a stale tail.
		if e.host.P2OAudio != nil {
			rs := e.host.P2OAudio.ReadSpace()
			e.host.P2OAudio.Read(nil, protocol.BytesToFrameBytes(rs, e.p2oFrameSize))
		}
		clear(e.p2oTransferBuf)

		if e.Status() <= StatusStop {
			return
		}
	}
}

// runAudioInCycles keeps exactly one audio-in transfer in flight.
func (e *Engine) runAudioInCycles(wg *sync.WaitGroup) {
	defer wg.Done()
	for e.Status() >= StatusWait {
		_, err := e.transport.AudioIn(e.runCtx, e.dataIn)
		if err != nil {
			if !e.transferFault("o2p: error on USB audio transfer", err) {
				return
			}
			continue
		}
		e.moveInbound()
	}
}

// runAudioOutCycles keeps exactly one audio-out transfer in flight. The
// next buffer is packed only after the previous transfer completed.
func (e *Engine) runAudioOutCycles(wg *sync.WaitGroup) {
	defer wg.Done()
	for e.Status() >= StatusWait {
		_, err := e.transport.AudioOut(e.runCtx, e.dataOut)
		if err != nil && !e.transferFault("p2o: error on USB audio transfer", err) {
			return
		}
		e.moveOutbound()
	}
}

// runMIDIInCycles keeps one MIDI-in transfer in flight. Timeouts are how a
// quiet device looks; they are not logged.
func (e *Engine) runMIDIInCycles(wg *sync.WaitGroup) {
	defer wg.Done()
	for e.Status() >= StatusWait {
		ctx, cancel := context.WithTimeout(e.runCtx, midiInTimeout)
		n, err := e.transport.MIDIIn(ctx, e.o2pMIDIData)
		cancel()
		if err != nil {
			if errors.Is(err, usb.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if !e.transferFault("o2p: error on USB MIDI in transfer", err) {
				return
			}
			continue
		}
		e.moveInboundMIDI(n)
	}
}

// transferFault classifies a cycle error: shutdown cancellations end the
// runner silently, a vanished device moves the engine to ERROR, anything
// else is logged and the cycle self-heals by resubmitting. Returns false
// when the runner must stop.
func (e *Engine) transferFault(msg string, err error) bool {
	if e.runCtx.Err() != nil {
		return false
	}
	if errors.Is(err, usb.ErrGone) {
		e.log.Error(msg, "err", err)
		e.SetStatus(StatusError)
		return false
	}
	if e.faultLog.Allow() {
		e.log.Error(msg, "err", err)
	}
	return true
}

func (e *Engine) applyRTPriority() {
	if e.host == nil || e.host.SetRTPriority == nil {
		return
	}
	if err := e.host.SetRTPriority(e.host.Priority); err != nil {
		e.log.Warn("could not set realtime priority",
			"priority", e.host.Priority, "err", err)
	}
}
