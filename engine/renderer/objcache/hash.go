package objcache

import (
	"encoding/binary"
	"math"

	"github.com/OneOfOne/xxhash"
)

// encoder writes key fields in a fixed order and width so the hash never
// depends on struct padding.
type encoder struct {
	buf []byte
}

func newEncoder(capacity int) *encoder {
	return &encoder{buf: make([]byte, 0, capacity)}
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) u16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *encoder) u32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) f32(v float32) {
	e.u32(math.Float32bits(v))
}

func (e *encoder) sum() uint32 {
	return xxhash.Checksum32(e.buf)
}
