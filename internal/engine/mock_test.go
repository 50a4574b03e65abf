package engine

import (
	"context"
	"sync"

	"github.com/quimgil/overwitch/internal/device"
)

// mockTransport simulates the four endpoints with channels. AudioIn and
// MIDIIn deliver whatever the test feeds; AudioOut and MIDIOut capture
// copies of every transmitted transfer.
type mockTransport struct {
	audioIn  chan []byte
	midiIn   chan []byte
	audioOut chan []byte
	midiOut  chan []byte

	// errAudioIn, when set before Activate, is returned by every AudioIn
	// call to simulate a failing endpoint.
	errAudioIn error

	mu     sync.Mutex
	closed bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		audioIn:  make(chan []byte, 64),
		midiIn:   make(chan []byte, 64),
		audioOut: make(chan []byte, 64),
		midiOut:  make(chan []byte, 64),
	}
}

func (m *mockTransport) AudioIn(ctx context.Context, buf []byte) (int, error) {
	if m.errAudioIn != nil {
		return 0, m.errAudioIn
	}
	select {
	case data := <-m.audioIn:
		return copy(buf, data), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (m *mockTransport) MIDIIn(ctx context.Context, buf []byte) (int, error) {
	select {
	case data := <-m.midiIn:
		return copy(buf, data), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (m *mockTransport) AudioOut(ctx context.Context, buf []byte) (int, error) {
	out := make([]byte, len(buf))
	copy(out, buf)
	select {
	case m.audioOut <- out:
		return len(buf), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (m *mockTransport) MIDIOut(ctx context.Context, buf []byte) (int, error) {
	out := make([]byte, len(buf))
	copy(out, buf)
	select {
	case m.midiOut <- out:
		return len(buf), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// stubRing lets tests pin the reported spaces while recording every read
// and write.
type stubRing struct {
	readSpace  int
	writeSpace int
	readData   []byte

	written  [][]byte
	reads    []int
	discards []int
}

func (r *stubRing) ReadSpace() int  { return r.readSpace }
func (r *stubRing) WriteSpace() int { return r.writeSpace }

func (r *stubRing) Read(dst []byte, n int) int {
	if dst == nil {
		r.discards = append(r.discards, n)
		return n
	}
	r.reads = append(r.reads, n)
	if r.readData != nil {
		copy(dst, r.readData)
	}
	return n
}

func (r *stubRing) Write(src []byte) int {
	cp := make([]byte, len(src))
	copy(cp, src)
	r.written = append(r.written, cp)
	return len(src)
}

// stubStretcher records the geometry of the last call and fills dst with a
// marker value.
type stubStretcher struct {
	called    bool
	srcFrames int
	dstFrames int
	channels  int
}

func (s *stubStretcher) Stretch(src []float32, srcFrames int, dst []float32, dstFrames, channels int) error {
	s.called = true
	s.srcFrames = srcFrames
	s.dstFrames = dstFrames
	s.channels = channels
	for i := range dst[:dstFrames*channels] {
		dst[i] = 0.5
	}
	return nil
}

// stubDLL records Init and Increment calls.
type stubDLL struct {
	inits      int
	increments int
	lastNow    float64
}

func (d *stubDLL) Init(sampleRate, framesPerTransfer int, now float64) {
	d.inits++
	d.lastNow = now
}

func (d *stubDLL) Increment(framesPerTransfer int, now float64) {
	d.increments++
	d.lastNow = now
}

func testDesc(inputs, outputs int) *device.Descriptor {
	scales := make([]float32, outputs)
	for i := range scales {
		scales[i] = 1.0
	}
	return &device.Descriptor{
		Name:              "Test Device",
		Inputs:            inputs,
		Outputs:           outputs,
		OutputTrackScales: scales,
	}
}

// testEngine builds an engine wired to stub rings without starting any
// worker goroutine, so mover behavior can be driven cycle by cycle.
func testEngine(blocks int, desc *device.Descriptor, hc *HostContext) *Engine {
	e := New(newMockTransport(), desc, "test@000,000", blocks)
	e.host = hc
	e.opts.o2pAudio = hc.Options&OptionO2PAudio != 0
	e.opts.p2oAudio = hc.Options&OptionP2OAudio != 0
	e.opts.o2pMIDI = hc.Options&OptionO2PMIDI != 0
	e.opts.p2oMIDI = hc.Options&OptionP2OMIDI != 0
	e.opts.dll = hc.Options&OptionDLL != 0
	return e
}
