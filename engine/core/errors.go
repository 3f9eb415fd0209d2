package core

import (
	"errors"
)

var (
	ErrStackOverflow  = errors.New("display state stack overflow (too many pushes without a pop)")
	ErrStackUnderflow = errors.New("display state stack underflow (pop without a matching push)")

	ErrInvalidMipmap          = errors.New("invalid mipmap level for render target")
	ErrInvalidSlice           = errors.New("invalid slice index for render target")
	ErrRenderTargetDimensions = errors.New("all render targets must have the same pixel dimensions")
	ErrRenderTargetMSAA       = errors.New("all render targets must have the same MSAA count")
	ErrRenderTargetFormat     = errors.New("render targets with different pixel formats are not supported")
	ErrDepthStencilAsColor    = errors.New("depth/stencil format textures must be used as the depth/stencil target")
	ErrNotRenderTarget        = errors.New("texture was not created as a render target")
	ErrNotDepthStencil        = errors.New("depth/stencil target must use a depth/stencil pixel format")
	ErrTooManyRenderTargets   = errors.New("too many simultaneous render targets")
	ErrRenderTargetActive     = errors.New("operation not allowed while the texture is an active render target")

	ErrFeatureUnsupported  = errors.New("feature is not supported by the active graphics backend")
	ErrNotComputeShader    = errors.New("shader has no compute stage")
	ErrInvalidThreadgroups = errors.New("invalid threadgroup count")
	ErrInvalidProjection   = errors.New("invalid projection parameters")
	ErrInvalidCopy         = errors.New("invalid copy operation")
	ErrBufferTooSmall      = errors.New("buffer is too small for the requested range")
	ErrBatchTooLarge       = errors.New("batched draw exceeds the 16-bit index range")
	ErrInvalidShader       = errors.New("shader cannot be used for this operation")

	ErrObjectCreation = errors.New("failed to create GPU object")
	ErrFenceTimeout   = errors.New("timed out waiting for fence")
	ErrDeviceLost     = errors.New("graphics device lost")
	ErrClosed         = errors.New("graphics context already shut down")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknown        = errors.New("unknown")
)
