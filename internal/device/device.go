// Package device holds the table of supported Overbridge-mode devices and
// their per-model audio topology.
package device

// Descriptor describes one supported device model. Inputs counts host→device
// channels, Outputs device→host channels. OutputTrackScales holds one gain
// per output channel, applied while decoding device audio.
type Descriptor struct {
	Name              string
	Inputs            int
	Outputs           int
	OutputTrackScales []float32
}

// ElektronVID is the vendor id shared by all supported devices.
const ElektronVID = 0x1935

var descriptors = map[uint16]*Descriptor{
	0x0004: {Name: "Analog Four", Inputs: 4, Outputs: 8, OutputTrackScales: unit(8)},
	0x0006: {Name: "Analog Keys", Inputs: 4, Outputs: 8, OutputTrackScales: unit(8)},
	0x0008: {Name: "Analog Rytm", Inputs: 12, Outputs: 12, OutputTrackScales: unit(12)},
	0x000a: {Name: "Analog Heat", Inputs: 4, Outputs: 4, OutputTrackScales: unit(4)},
	0x000c: {Name: "Analog Four MKII", Inputs: 6, Outputs: 8, OutputTrackScales: unit(8)},
	0x000e: {Name: "Analog Rytm MKII", Inputs: 12, Outputs: 12, OutputTrackScales: unit(12)},
	0x0010: {Name: "Digitakt", Inputs: 2, Outputs: 12, OutputTrackScales: unit(12)},
	0x0014: {Name: "Digitone", Inputs: 2, Outputs: 12, OutputTrackScales: unit(12)},
	0x0016: {Name: "Digitone Keys", Inputs: 2, Outputs: 12, OutputTrackScales: unit(12)},
	0x0019: {Name: "Analog Heat MKII", Inputs: 4, Outputs: 4, OutputTrackScales: unit(4)},
	0x001c: {Name: "Syntakt", Inputs: 2, Outputs: 12, OutputTrackScales: unit(12)},
}

func unit(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1.0
	}
	return s
}

// Lookup returns the descriptor for a vendor/product pair, or false when the
// device is not a supported Overbridge device.
func Lookup(vid, pid uint16) (*Descriptor, bool) {
	if vid != ElektronVID {
		return nil, false
	}
	d, ok := descriptors[pid]
	return d, ok
}

// Supported reports whether a vendor/product pair is in the table.
func Supported(vid, pid uint16) bool {
	_, ok := Lookup(vid, pid)
	return ok
}
