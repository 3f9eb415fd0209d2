package renderer

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// maxBatchVertices is the largest vertex index a 16-bit index can address.
const maxBatchVertices = 0xFFFF

// indexCount returns how many indices mode emits for vertexCount vertices.
func indexCount(mode metadata.IndexMode, vertexCount int) int {
	switch mode {
	case metadata.IndexModeQuads:
		return vertexCount / 4 * 6
	case metadata.IndexModeFan:
		return max(0, vertexCount-2) * 3
	}
	return 0
}

// fillIndices writes the 16-bit indices for count vertices starting at
// vertex base into dst.
func fillIndices(mode metadata.IndexMode, base, count int, dst []byte) {
	put := func(i int, v int) {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
	switch mode {
	case metadata.IndexModeQuads:
		// 0---3
		// | \ |
		// 1---2
		n := 0
		for q := 0; q < count/4; q++ {
			b := base + q*4
			put(n+0, b+0)
			put(n+1, b+1)
			put(n+2, b+2)
			put(n+3, b+0)
			put(n+4, b+2)
			put(n+5, b+3)
			n += 6
		}
	case metadata.IndexModeFan:
		n := 0
		for i := 1; i < count-1; i++ {
			put(n+0, base)
			put(n+1, base+i)
			put(n+2, base+i+1)
			n += 3
		}
	}
}
