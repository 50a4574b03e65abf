package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DumpBlocks writes a human-readable dump of a wire buffer to w, one line
// per sample. Debug helper, not used on the realtime path.
func DumpBlocks(w io.Writer, wire []byte, blocks, channels int) {
	blkLen := BlockSize(channels)
	for i := 0; i < blocks; i++ {
		blk := wire[i*blkLen:]
		fmt.Fprintf(w, "Block %d\n", i)
		fmt.Fprintf(w, "0x%04x | 0x%04x\n",
			binary.BigEndian.Uint16(blk), binary.BigEndian.Uint16(blk[2:]))
		off := BlockHeaderSize
		for j := 0; j < FramesPerBlock; j++ {
			for k := 0; k < channels; k++ {
				v := int32(binary.BigEndian.Uint32(blk[off:]))
				fmt.Fprintf(w, "Frame %2d, track %2d: %d\n", j, k, v)
				off += BytesPerSample
			}
		}
	}
}
