package renderer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

// ReadbackCallback receives the bytes of a completed readback.
type ReadbackCallback func(data []byte, err error)

type pendingReadback struct {
	name     string
	readback metadata.Readback
	callback ReadbackCallback
}

func (g *Graphics) addReadback(rb metadata.Readback, cb ReadbackCallback) {
	g.pendingReadbacks = append(g.pendingReadbacks, &pendingReadback{
		name:     uuid.NewString(),
		readback: rb,
		callback: cb,
	})
}

// ReadbackBuffer asynchronously copies a buffer range to the CPU. The
// callback runs on the frame goroutine once the copy has completed.
func (g *Graphics) ReadbackBuffer(src metadata.Buffer, offset, size int, cb ReadbackCallback) (metadata.Readback, error) {
	if offset < 0 || size <= 0 || offset+size > src.Size() {
		return nil, fmt.Errorf("%w: range [%d, %d) of %d bytes", core.ErrBufferTooSmall, offset, offset+size, src.Size())
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return nil, err
	}
	rb, err := g.backend.ReadbackBuffer(src, offset, size)
	if err != nil {
		return nil, err
	}
	g.addReadback(rb, cb)
	return rb, nil
}

func (g *Graphics) ReadbackTexture(src metadata.Texture, slice, mip int, rect metadata.Rect, cb ReadbackCallback) (metadata.Readback, error) {
	if src.Format().IsDepthStencil() {
		return nil, fmt.Errorf("%w: depth/stencil textures cannot be read back", core.ErrInvalidCopy)
	}
	if err := g.validateTextureRegion(src, slice, mip, rect); err != nil {
		return nil, err
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return nil, err
	}
	rb, err := g.backend.ReadbackTexture(src, slice, mip, rect)
	if err != nil {
		return nil, err
	}
	g.addReadback(rb, cb)
	return rb, nil
}

// PendingReadbacks returns the number of readbacks still in flight.
func (g *Graphics) PendingReadbacks() int {
	return len(g.pendingReadbacks)
}

// updatePendingReadbacks polls every readback once and drops the completed
// ones after running their callbacks.
func (g *Graphics) updatePendingReadbacks() {
	for i := len(g.pendingReadbacks) - 1; i >= 0; i-- {
		p := g.pendingReadbacks[i]
		p.readback.Update()
		if !p.readback.IsComplete() {
			continue
		}
		if p.callback != nil {
			p.callback(p.readback.Data(), p.readback.Err())
		}
		core.LogDebug("readback %s completed", p.name)
		last := len(g.pendingReadbacks) - 1
		g.pendingReadbacks[i] = g.pendingReadbacks[last]
		g.pendingReadbacks[last] = nil
		g.pendingReadbacks = g.pendingReadbacks[:last]
	}
}
