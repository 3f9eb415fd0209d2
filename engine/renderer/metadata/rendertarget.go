package metadata

// RenderTarget addresses one mip level of one slice of a texture.
type RenderTarget struct {
	Texture Texture
	Slice   int
	MipMap  int
}

func NewRenderTarget(texture Texture) RenderTarget {
	return RenderTarget{Texture: texture}
}

func (rt RenderTarget) Equal(o RenderTarget) bool {
	return rt.Texture == o.Texture && rt.Slice == o.Slice && rt.MipMap == o.MipMap
}

type TemporaryRTFlags uint8

const (
	TemporaryRTDepth TemporaryRTFlags = 1 << iota
	TemporaryRTStencil
)

// RenderTargets is the full attachment set of a render pass. An empty color
// list means the backbuffer.
type RenderTargets struct {
	Colors         []RenderTarget
	DepthStencil   RenderTarget
	TemporaryFlags TemporaryRTFlags
}

// First returns the first color target, or the depth/stencil target when
// there are no color targets.
func (rts RenderTargets) First() RenderTarget {
	if len(rts.Colors) == 0 {
		return rts.DepthStencil
	}
	return rts.Colors[0]
}

// Empty reports whether the set addresses the backbuffer.
func (rts RenderTargets) Empty() bool {
	return len(rts.Colors) == 0 && rts.DepthStencil.Texture == nil
}

// Equal compares count, every (texture, slice, mip) in order, the
// depth/stencil target and the temporary target flags.
func (rts RenderTargets) Equal(o RenderTargets) bool {
	if len(rts.Colors) != len(o.Colors) {
		return false
	}
	for i := range rts.Colors {
		if !rts.Colors[i].Equal(o.Colors[i]) {
			return false
		}
	}
	return rts.DepthStencil.Equal(o.DepthStencil) && rts.TemporaryFlags == o.TemporaryFlags
}

// Clone returns a copy that does not share the color slice.
func (rts RenderTargets) Clone() RenderTargets {
	out := rts
	if rts.Colors != nil {
		out.Colors = append([]RenderTarget(nil), rts.Colors...)
	}
	return out
}
