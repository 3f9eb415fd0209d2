package metadata

type Feature uint8

const (
	FeatureMultiRenderTargetFormats Feature = iota
	FeatureClampZero
	FeatureClampOne
	FeatureBlendMinMax
	FeatureFullNPOT
	FeatureShaderDerivatives
	FeatureInstancing
	FeatureTexelBuffer
	FeatureIndexBuffer32
	FeatureCopyBuffer
	FeatureCopyBufferToTexture
	FeatureCopyTextureToBuffer
	FeatureCopyRenderTargetToBuffer
	FeatureMipmapRange
	FeatureIndirectDraw
	FeatureMax
)

var featureNames = [FeatureMax]string{
	"multi-render-target formats", "clamp zero", "clamp one", "blend min/max", "full NPOT",
	"shader derivatives", "instancing", "texel buffer", "32-bit index buffer", "copy buffer",
	"copy buffer to texture", "copy texture to buffer", "copy render target to buffer",
	"mipmap range", "indirect draw",
}

func (f Feature) String() string {
	if f < FeatureMax {
		return featureNames[f]
	}
	return "unknown feature"
}

type Limit uint8

const (
	LimitPointSize Limit = iota
	LimitTextureSize
	LimitVolumeTextureSize
	LimitCubeTextureSize
	LimitTextureLayers
	LimitTexelBufferSize
	LimitShaderStorageBufferSize
	LimitThreadgroupsX
	LimitThreadgroupsY
	LimitThreadgroupsZ
	LimitRenderTargets
	LimitTextureMSAA
	LimitAnisotropy
	LimitMax
)

const LimitRenderTargetsMax = 8

type Capabilities struct {
	Features [FeatureMax]bool
	Limits   [LimitMax]float64
	// RenderTargetFormats lists the formats usable as attachments.
	RenderTargetFormats map[PixelFormat]bool
}

func (c *Capabilities) Supports(f Feature) bool {
	return c.Features[f]
}

func (c *Capabilities) Limit(l Limit) float64 {
	return c.Limits[l]
}

func (c *Capabilities) IsRenderTargetFormatSupported(f PixelFormat) bool {
	return c.RenderTargetFormats[f]
}
