// Package engine implements the Overbridge transport engine: it keeps the
// four USB endpoints of a supported device saturated with overlapping
// transfers, converts framed big-endian blocks to the host's float format
// and back, multiplexes MIDI against the sample clock, and feeds the
// host-owned ring buffers.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quimgil/overwitch/internal/device"
	"github.com/quimgil/overwitch/internal/protocol"
	"github.com/quimgil/overwitch/internal/resample"
)

// DefaultBlocksPerTransfer is the transfer size the CLI uses when the host
// does not choose one. Larger transfers lower CPU load, smaller ones lower
// latency.
const DefaultBlocksPerTransfer = 24

// Transport is the engine's view of the opened USB device. Each method
// performs one whole transfer on its endpoint and blocks until completion
// or ctx is done. internal/usb provides the real implementation.
type Transport interface {
	AudioIn(ctx context.Context, buf []byte) (int, error)
	AudioOut(ctx context.Context, buf []byte) (int, error)
	MIDIIn(ctx context.Context, buf []byte) (int, error)
	MIDIOut(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// Latency is a snapshot of the ring fill levels sampled per cycle, in
// bytes, with their running maxima since the last boot.
type Latency struct {
	O2P    int
	O2PMax int
	P2O    int
	P2OMax int
}

// Engine bridges one Overbridge device to a pair of host audio rings and a
// pair of host MIDI rings.
type Engine struct {
	name      string
	sessionID string
	log       *slog.Logger

	transport Transport
	desc      *device.Descriptor
	host      *HostContext

	blocksPerTransfer int
	framesPerTransfer int
	p2oFrameSize      int
	o2pFrameSize      int
	p2oTransferSize   int
	o2pTransferSize   int

	// Wire buffers, one transfer each, laid out as consecutive blocks.
	dataIn  []byte
	dataOut []byte

	// Host-domain sample buffers.
	o2pTransferBuf  []float32
	p2oTransferBuf  []float32
	p2oResamplerBuf []float32
	o2pRingBytes    []byte
	p2oRingBytes    []byte

	// MIDI transfer buffers.
	o2pMIDIData []byte
	p2oMIDIData []byte

	frames          uint16 // running outbound frame counter, wraps by design
	readingAtP2OEnd bool
	resampler       resample.Stretcher

	opts struct {
		o2pAudio bool
		p2oAudio bool
		o2pMIDI  bool
		p2oMIDI  bool
		dll      bool
	}

	// mu protects status, the latency stats, the p2oAudio toggle and all
	// DLL calls. Critical sections are scalar updates; it is never held
	// across a transfer, a ring read/write or a sleep.
	mu            sync.Mutex
	status        Status
	o2pLatency    int
	o2pMaxLatency int
	p2oLatency    int
	p2oMaxLatency int

	// midiMu protects only p2oMIDIReady.
	midiMu       sync.Mutex
	p2oMIDIReady bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	overflowLog *rate.Limiter
	faultLog    *rate.Limiter
}

// New builds an engine around an opened transport. The factories in this
// package are the usual entry points; New is exported so hosts and tests
// can supply their own Transport.
func New(t Transport, desc *device.Descriptor, name string, blocksPerTransfer int) *Engine {
	if blocksPerTransfer <= 0 {
		blocksPerTransfer = DefaultBlocksPerTransfer
	}
	e := &Engine{
		name:              name,
		sessionID:         uuid.NewString(),
		transport:         t,
		desc:              desc,
		blocksPerTransfer: blocksPerTransfer,
		framesPerTransfer: protocol.FramesPerBlock * blocksPerTransfer,
		status:            StatusReady,
		resampler:         resample.Sinc{},
		overflowLog:       rate.NewLimiter(rate.Every(time.Second), 3),
		faultLog:          rate.NewLimiter(rate.Every(time.Second), 3),
	}
	e.log = slog.With("engine", name, "session", e.sessionID)

	e.p2oFrameSize = protocol.BytesPerSample * desc.Inputs
	e.o2pFrameSize = protocol.BytesPerSample * desc.Outputs
	e.p2oTransferSize = e.framesPerTransfer * e.p2oFrameSize
	e.o2pTransferSize = e.framesPerTransfer * e.o2pFrameSize

	e.dataIn = make([]byte, protocol.TransferSize(blocksPerTransfer, desc.Outputs))
	e.dataOut = make([]byte, protocol.TransferSize(blocksPerTransfer, desc.Inputs))
	protocol.InitBlockHeaders(e.dataOut, blocksPerTransfer, desc.Inputs)

	e.o2pTransferBuf = make([]float32, e.framesPerTransfer*desc.Outputs)
	e.p2oTransferBuf = make([]float32, e.framesPerTransfer*desc.Inputs)
	e.p2oResamplerBuf = make([]float32, e.framesPerTransfer*desc.Inputs)
	e.o2pRingBytes = make([]byte, e.o2pTransferSize)
	e.p2oRingBytes = make([]byte, e.p2oTransferSize)

	e.o2pMIDIData = make([]byte, protocol.MIDIBufSize)
	e.p2oMIDIData = make([]byte, protocol.MIDIBufSize)

	e.runCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Activate validates the host context, records the enabled options and
// starts the worker goroutines. With a DLL configured the engine parks in
// READY until Start; otherwise it boots immediately.
func (e *Engine) Activate(hc *HostContext) error {
	if err := hc.validate(); err != nil {
		return err
	}
	if hc.SetRTPriority == nil {
		hc.SetRTPriority = setThreadRTPriority
		if hc.Priority == 0 {
			hc.Priority = DefaultRTPriority
		}
	}

	e.host = hc
	e.opts.o2pAudio = hc.Options&OptionO2PAudio != 0
	e.opts.p2oAudio = hc.Options&OptionP2OAudio != 0
	e.opts.o2pMIDI = hc.Options&OptionO2PMIDI != 0
	e.opts.p2oMIDI = hc.Options&OptionP2OMIDI != 0
	e.opts.dll = hc.Options&OptionDLL != 0

	e.mu.Lock()
	if e.opts.dll {
		e.status = StatusReady
	} else {
		e.status = StatusBoot
	}
	e.mu.Unlock()

	if e.opts.p2oMIDI {
		e.log.Debug("starting p2o MIDI thread")
		e.wg.Add(1)
		go e.runOutboundMIDI()
	}
	if e.opts.o2pMIDI || e.opts.o2pAudio || e.opts.p2oAudio {
		e.log.Debug("starting audio and o2p MIDI thread")
		e.wg.Add(1)
		go e.runAudio()
	}
	return nil
}

// Wait blocks until all worker goroutines have returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Destroy cancels any in-flight transfer and releases the device. It is
// meant to run after Stop and Wait.
func (e *Engine) Destroy() error {
	e.cancel()
	return e.transport.Close()
}

// Name returns "<model>@<bus>,<address>".
func (e *Engine) Name() string { return e.name }

// DeviceDescriptor returns the model descriptor the engine was opened with.
func (e *Engine) DeviceDescriptor() *device.Descriptor { return e.desc }

// FramesPerTransfer returns the number of frames moved per USB transfer.
func (e *Engine) FramesPerTransfer() int { return e.framesPerTransfer }

// Latencies returns the current ring fill snapshot.
func (e *Engine) Latencies() Latency {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Latency{
		O2P:    e.o2pLatency,
		O2PMax: e.o2pMaxLatency,
		P2O:    e.p2oLatency,
		P2OMax: e.p2oMaxLatency,
	}
}

// IsP2OAudioEnabled reports whether host→device audio is currently enabled.
func (e *Engine) IsP2OAudioEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.p2oAudio
}

// SetP2OAudioEnabled toggles host→device audio at runtime. Disabling packs
// silence; re-enabling resynchronizes against the ring first.
func (e *Engine) SetP2OAudioEnabled(enabled bool) {
	e.mu.Lock()
	changed := e.opts.p2oAudio != enabled
	e.opts.p2oAudio = enabled
	e.mu.Unlock()
	if changed {
		e.log.Debug("setting p2o audio", "enabled", enabled)
	}
}

// SetResampler replaces the fallback stretcher used on outbound underflow.
// Constrained hosts swap in resample.Linear.
func (e *Engine) SetResampler(r resample.Stretcher) { e.resampler = r }
