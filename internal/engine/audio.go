package engine

import "github.com/quimgil/overwitch/internal/protocol"

// moveInbound runs after every completed audio-in transfer. The decode
// always happens, even before RUN, so the wire and host buffers stay
// aligned; publishing to the host ring starts only in RUN.
func (e *Engine) moveInbound() {
	e.mu.Lock()
	if e.opts.dll {
		e.host.DLL.Increment(e.framesPerTransfer, e.host.GetTime())
	}
	status := e.status
	e.mu.Unlock()

	protocol.DecodeBlocks(e.dataIn, e.blocksPerTransfer, e.desc.Outputs,
		e.desc.OutputTrackScales, e.o2pTransferBuf)

	if status < StatusRun || !e.opts.o2pAudio {
		return
	}

	ring := e.host.O2PAudio
	e.mu.Lock()
	e.o2pLatency = ring.ReadSpace()
	if e.o2pLatency > e.o2pMaxLatency {
		e.o2pMaxLatency = e.o2pLatency
	}
	e.mu.Unlock()

	if ring.WriteSpace() >= e.o2pTransferSize {
		protocol.FloatsToBytes(e.o2pRingBytes, e.o2pTransferBuf)
		ring.Write(e.o2pRingBytes)
	} else if e.overflowLog.Allow() {
		e.log.Error("o2p: audio ring buffer overflow, discarding data")
	}
}

// moveOutbound runs after every completed audio-out transfer and packs the
// next one. On ring underflow the available frames are stretched to a whole
// transfer; with p2o audio disabled it packs silence.
func (e *Engine) moveOutbound() {
	if e.IsP2OAudioEnabled() {
		e.moveOutboundEnabled()
	} else {
		e.readingAtP2OEnd = false
		clear(e.p2oTransferBuf)
	}

	e.frames = protocol.EncodeBlocks(e.dataOut, e.blocksPerTransfer,
		e.desc.Inputs, e.p2oTransferBuf, e.frames)
}

func (e *Engine) moveOutboundEnabled() {
	ring := e.host.P2OAudio
	rs := ring.ReadSpace()

	if !e.readingAtP2OEnd {
		// The ring has to fill once before the engine starts draining
		// it; until then the device gets whatever the buffer holds
		// (silence after boot).
		if rs >= e.p2oTransferSize {
			e.log.Debug("p2o: emptying buffer and running")
			ring.Read(nil, protocol.BytesToFrameBytes(rs, e.p2oFrameSize))
			e.readingAtP2OEnd = true
		}
		return
	}

	e.mu.Lock()
	e.p2oLatency = rs
	if e.p2oLatency > e.p2oMaxLatency {
		e.p2oMaxLatency = e.p2oLatency
	}
	e.mu.Unlock()

	if rs >= e.p2oTransferSize {
		ring.Read(e.p2oRingBytes, e.p2oTransferSize)
		protocol.BytesToFloats(e.p2oTransferBuf, e.p2oRingBytes)
		return
	}

	frames := rs / e.p2oFrameSize
	if frames == 0 {
		e.log.Debug("p2o: audio ring buffer empty")
		return
	}
	bytes := frames * e.p2oFrameSize
	ring.Read(e.p2oRingBytes[:bytes], bytes)
	samples := frames * e.desc.Inputs
	protocol.BytesToFloats(e.p2oResamplerBuf[:samples], e.p2oRingBytes[:bytes])

	ratio := float64(e.framesPerTransfer) / float64(frames)
	e.log.Debug("p2o: audio ring buffer underflow, resampling",
		"available", rs, "needed", e.p2oTransferSize, "ratio", ratio)
	err := e.resampler.Stretch(e.p2oResamplerBuf[:samples], frames,
		e.p2oTransferBuf, e.framesPerTransfer, e.desc.Inputs)
	if err != nil {
		e.log.Debug("p2o: error while resampling", "err", err)
	}
}
