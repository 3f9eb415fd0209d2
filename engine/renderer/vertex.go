package renderer

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// positionFormat picks XYZ only when the transform can move points off the
// z=0 plane.
func positionFormat(is2D bool) metadata.CommonFormat {
	if is2D {
		return metadata.CommonFormatXYf
	}
	return metadata.CommonFormatXYZf
}

func putFloat(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math32.Float32bits(v))
}

// writePositions transforms coords by t and writes them tightly packed.
func writePositions(dst []byte, t math.Mat4, is2D bool, coords []math.Vec2) {
	off := 0
	for _, c := range coords {
		if is2D {
			x, y := t.TransformXY(c.X, c.Y)
			putFloat(dst[off:], x)
			putFloat(dst[off+4:], y)
			off += 8
			continue
		}
		x, y, z := t.TransformXYZ(c.X, c.Y, 0)
		putFloat(dst[off:], x)
		putFloat(dst[off+4:], y)
		putFloat(dst[off+8:], z)
		off += 12
	}
}

func writeColors(dst []byte, c [4]uint8, n int) {
	for i := 0; i < n; i++ {
		copy(dst[i*4:i*4+4], c[:])
	}
}
