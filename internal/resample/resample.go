// Package resample provides the one-shot sample-rate conversion used when
// the host underruns the outbound audio ring: the frames that did arrive are
// stretched to fill a whole transfer. It runs rarely, mostly at startup, so
// the quality/latency trade-off leans toward simplicity.
package resample

import (
	"fmt"
	"math"
)

// Stretcher converts srcFrames interleaved frames from src into exactly
// dstFrames interleaved frames in dst. Implementations must not allocate on
// the happy path; the engine calls this from a transfer completion cycle.
type Stretcher interface {
	Stretch(src []float32, srcFrames int, dst []float32, dstFrames, channels int) error
}

// taps is the one-sided kernel width of the sinc stretcher.
const taps = 8

// Sinc is a windowed-sinc Stretcher. It is the default.
type Sinc struct{}

// Stretch implements Stretcher with a Blackman-windowed sinc kernel.
func (Sinc) Stretch(src []float32, srcFrames int, dst []float32, dstFrames, channels int) error {
	if err := checkArgs(src, srcFrames, dst, dstFrames, channels); err != nil {
		return err
	}
	step := float64(srcFrames) / float64(dstFrames)
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		n0 := int(math.Floor(pos))
		for c := 0; c < channels; c++ {
			var acc, wsum float64
			for n := n0 - taps + 1; n <= n0+taps; n++ {
				if n < 0 || n >= srcFrames {
					continue
				}
				w := windowedSinc(pos - float64(n))
				acc += w * float64(src[n*channels+c])
				wsum += w
			}
			if wsum != 0 {
				acc /= wsum
			}
			dst[i*channels+c] = float32(acc)
		}
	}
	return nil
}

func windowedSinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	if x <= -taps || x >= taps {
		return 0
	}
	px := math.Pi * x
	s := math.Sin(px) / px
	// Blackman window over [-taps, taps].
	u := (x + taps) / (2 * taps)
	w := 0.42 - 0.5*math.Cos(2*math.Pi*u) + 0.08*math.Cos(4*math.Pi*u)
	return s * w
}

// Linear is a first-order Stretcher for constrained builds.
type Linear struct{}

// Stretch implements Stretcher with linear interpolation.
func (Linear) Stretch(src []float32, srcFrames int, dst []float32, dstFrames, channels int) error {
	if err := checkArgs(src, srcFrames, dst, dstFrames, channels); err != nil {
		return err
	}
	step := float64(srcFrames-1) / float64(dstFrames-1)
	if dstFrames == 1 {
		step = 0
	}
	for i := 0; i < dstFrames; i++ {
		pos := float64(i) * step
		n0 := int(pos)
		if n0 >= srcFrames-1 {
			n0 = srcFrames - 1
		}
		frac := float32(pos - float64(n0))
		for c := 0; c < channels; c++ {
			a := src[n0*channels+c]
			b := a
			if n0+1 < srcFrames {
				b = src[(n0+1)*channels+c]
			}
			dst[i*channels+c] = a + (b-a)*frac
		}
	}
	return nil
}

func checkArgs(src []float32, srcFrames int, dst []float32, dstFrames, channels int) error {
	if srcFrames <= 0 || dstFrames <= 0 || channels <= 0 {
		return fmt.Errorf("resample: bad geometry (src %d, dst %d, channels %d)", srcFrames, dstFrames, channels)
	}
	if len(src) < srcFrames*channels {
		return fmt.Errorf("resample: src holds %d samples, need %d", len(src), srcFrames*channels)
	}
	if len(dst) < dstFrames*channels {
		return fmt.Errorf("resample: dst holds %d samples, need %d", len(dst), dstFrames*channels)
	}
	return nil
}
