package objcache

import (
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

const MaxColorAttachments = metadata.LimitRenderTargetsMax

type RenderPassAttachment struct {
	Format  metadata.PixelFormat
	Discard bool
	MSAA    uint8
}

func (a RenderPassAttachment) encode(e *encoder) {
	e.u8(uint8(a.Format))
	e.bool(a.Discard)
	e.u8(a.MSAA)
}

type RenderPassConfiguration struct {
	ColorAttachments     [MaxColorAttachments]RenderPassAttachment
	ColorAttachmentCount uint8
	DepthAttachment      RenderPassAttachment
	HasDepth             bool
	// Resolve adds single-sample resolve attachments for MSAA color targets.
	Resolve bool
}

func (c RenderPassConfiguration) Hash() uint32 {
	e := newEncoder(64)
	e.u8(c.ColorAttachmentCount)
	for i := uint8(0); i < c.ColorAttachmentCount && int(i) < MaxColorAttachments; i++ {
		c.ColorAttachments[i].encode(e)
	}
	e.bool(c.HasDepth)
	c.DepthAttachment.encode(e)
	e.bool(c.Resolve)
	return e.sum()
}

type FramebufferConfiguration struct {
	ColorViews     [MaxColorAttachments]core.ObjectID
	ColorViewCount uint8
	DepthView      core.ObjectID
	ResolveView    core.ObjectID
	Width          uint32
	Height         uint32
	RenderPass     core.ObjectID
}

func (c FramebufferConfiguration) Hash() uint32 {
	e := newEncoder(128)
	e.u8(c.ColorViewCount)
	for i := uint8(0); i < c.ColorViewCount && int(i) < MaxColorAttachments; i++ {
		e.u64(uint64(c.ColorViews[i]))
	}
	e.u64(uint64(c.DepthView))
	e.u64(uint64(c.ResolveView))
	e.u32(c.Width)
	e.u32(c.Height)
	e.u64(uint64(c.RenderPass))
	return e.sum()
}

// DynamicState is the part of a pipeline that changes often between draws.
type DynamicState struct {
	Cull           metadata.CullMode
	Winding        metadata.Winding
	StencilAction  metadata.StencilAction
	StencilCompare metadata.CompareMode
	Depth          metadata.DepthState
}

func (d DynamicState) encode(e *encoder) {
	e.u8(uint8(d.Cull))
	e.u8(uint8(d.Winding))
	e.u8(uint8(d.StencilAction))
	e.u8(uint8(d.StencilCompare))
	e.u8(uint8(d.Depth.Compare))
	e.bool(d.Depth.Write)
}

type GraphicsPipelineConfiguration struct {
	RenderPass           core.ObjectID
	VertexAttributes     metadata.VertexAttributes
	Shader               core.ObjectID
	Wireframe            bool
	Blend                metadata.BlendState
	ColorMask            metadata.ColorChannelMask
	MSAA                 uint8
	ColorAttachmentCount uint8
	Primitive            metadata.PrimitiveType
	Dynamic              DynamicState
}

func (c GraphicsPipelineConfiguration) Hash() uint32 {
	e := newEncoder(96)
	e.u64(uint64(c.RenderPass))
	va := c.VertexAttributes
	e.u32(va.EnableBits)
	for _, a := range va.Attribs {
		e.u8(uint8(a.Format))
		e.u8(a.BufferIndex)
		e.u16(a.Offset)
	}
	for _, s := range va.Strides {
		e.u16(s)
	}
	e.u64(uint64(c.Shader))
	e.bool(c.Wireframe)
	b := c.Blend
	e.bool(b.Enable)
	e.u8(uint8(b.OperationRGB))
	e.u8(uint8(b.OperationA))
	e.u8(uint8(b.SrcFactorRGB))
	e.u8(uint8(b.SrcFactorA))
	e.u8(uint8(b.DstFactorRGB))
	e.u8(uint8(b.DstFactorA))
	e.bool(c.ColorMask.R)
	e.bool(c.ColorMask.G)
	e.bool(c.ColorMask.B)
	e.bool(c.ColorMask.A)
	e.u8(c.MSAA)
	e.u8(c.ColorAttachmentCount)
	e.u8(uint8(c.Primitive))
	c.Dynamic.encode(e)
	return e.sum()
}

type SamplerConfiguration struct {
	State metadata.SamplerState
}

func (c SamplerConfiguration) Hash() uint32 {
	s := c.State
	e := newEncoder(24)
	e.u8(uint8(s.MinFilter))
	e.u8(uint8(s.MagFilter))
	e.u8(uint8(s.MipmapFilter))
	e.u8(uint8(s.WrapU))
	e.u8(uint8(s.WrapV))
	e.u8(uint8(s.WrapW))
	e.f32(s.LodBias)
	e.u8(s.MaxAnisotropy)
	e.u8(s.MinLod)
	e.u8(s.MaxLod)
	e.bool(s.DepthCompare)
	e.u8(uint8(s.CompareMode))
	return e.sum()
}
