package metadata

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
)

// ToBytes converts to 8-bit unsigned normalized channels.
func (c Color) ToBytes() [4]uint8 {
	conv := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint8(v*255 + 0.5)
	}
	return [4]uint8{conv(c.R), conv(c.G), conv(c.B), conv(c.A)}
}

// Mul multiplies channel by channel.
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B, c.A * o.A}
}

type Rect struct {
	X, Y, W, H int
}

// Intersect returns the overlap of two rectangles, empty when disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.W, o.X+o.W)
	y2 := min(r.Y+r.H, o.Y+o.H)
	return Rect{X: x1, Y: y1, W: max(0, x2-x1), H: max(0, y2-y1)}
}

type BlendOperation uint8

const (
	BlendOperationAdd BlendOperation = iota
	BlendOperationSubtract
	BlendOperationReverseSubtract
	BlendOperationMin
	BlendOperationMax
)

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorSrcAlphaSaturated
)

type BlendState struct {
	Enable       bool
	OperationRGB BlendOperation
	OperationA   BlendOperation
	SrcFactorRGB BlendFactor
	SrcFactorA   BlendFactor
	DstFactorRGB BlendFactor
	DstFactorA   BlendFactor
}

type BlendMode uint8

const (
	BlendModeAlpha BlendMode = iota
	BlendModeAdd
	BlendModeSubtract
	BlendModeMultiply
	BlendModeLighten
	BlendModeDarken
	BlendModeScreen
	BlendModeReplace
	BlendModeNone
	BlendModeCustom
)

type BlendAlpha uint8

const (
	BlendAlphaMultiply BlendAlpha = iota
	BlendAlphaPremultiplied
)

// ComputeBlendState expands a named blend mode into explicit factors.
func ComputeBlendState(mode BlendMode, alphaMode BlendAlpha) BlendState {
	s := BlendState{Enable: true}
	switch mode {
	case BlendModeAlpha:
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorOne, BlendFactorOne
		s.DstFactorRGB, s.DstFactorA = BlendFactorOneMinusSrcAlpha, BlendFactorOneMinusSrcAlpha
	case BlendModeMultiply:
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorDstColor, BlendFactorDstColor
		s.DstFactorRGB, s.DstFactorA = BlendFactorZero, BlendFactorZero
	case BlendModeSubtract, BlendModeAdd:
		if mode == BlendModeSubtract {
			s.OperationRGB, s.OperationA = BlendOperationReverseSubtract, BlendOperationReverseSubtract
		}
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorOne, BlendFactorZero
		s.DstFactorRGB, s.DstFactorA = BlendFactorOne, BlendFactorOne
	case BlendModeLighten, BlendModeDarken:
		op := BlendOperationMax
		if mode == BlendModeDarken {
			op = BlendOperationMin
		}
		s.OperationRGB, s.OperationA = op, op
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorOne, BlendFactorOne
		s.DstFactorRGB, s.DstFactorA = BlendFactorOne, BlendFactorOne
	case BlendModeScreen:
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorOne, BlendFactorOne
		s.DstFactorRGB, s.DstFactorA = BlendFactorOneMinusSrcColor, BlendFactorOneMinusSrcColor
	case BlendModeReplace:
		s.SrcFactorRGB, s.SrcFactorA = BlendFactorOne, BlendFactorOne
		s.DstFactorRGB, s.DstFactorA = BlendFactorZero, BlendFactorZero
	default:
		return BlendState{}
	}

	// Colors are not premultiplied, so scale the source by its alpha.
	if alphaMode == BlendAlphaMultiply && s.SrcFactorRGB == BlendFactorOne {
		s.SrcFactorRGB = BlendFactorSrcAlpha
	}
	return s
}

type CompareMode uint8

const (
	CompareAlways CompareMode = iota
	CompareNever
	CompareLess
	CompareLEqual
	CompareEqual
	CompareGEqual
	CompareGreater
	CompareNotEqual
)

type StencilAction uint8

const (
	StencilKeep StencilAction = iota
	StencilZero
	StencilReplace
	StencilIncrement
	StencilDecrement
	StencilIncrementWrap
	StencilDecrementWrap
	StencilInvert
)

type StencilState struct {
	Action    StencilAction
	Compare   CompareMode
	Value     int32
	ReadMask  uint32
	WriteMask uint32
}

func DefaultStencilState() StencilState {
	return StencilState{
		Action:    StencilKeep,
		Compare:   CompareAlways,
		ReadMask:  0xFFFFFFFF,
		WriteMask: 0xFFFFFFFF,
	}
}

type DepthState struct {
	Compare CompareMode
	Write   bool
}

type CullMode uint8

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type Winding uint8

const (
	WindingCCW Winding = iota
	WindingCW
)

type ColorChannelMask struct {
	R, G, B, A bool
}

var ColorMaskAll = ColorChannelMask{true, true, true, true}

type LineStyle uint8

const (
	LineStyleSmooth LineStyle = iota
	LineStyleRough
)

type LineJoin uint8

const (
	LineJoinMiter LineJoin = iota
	LineJoinBevel
	LineJoinNone
)

type FilterMode uint8

const (
	FilterLinear FilterMode = iota
	FilterNearest
	FilterNone
)

type WrapMode uint8

const (
	WrapClamp WrapMode = iota
	WrapClampZero
	WrapClampOne
	WrapRepeat
	WrapMirroredRepeat
)

// SamplerState is a comparable value so it can be used as a cache key.
type SamplerState struct {
	MinFilter     FilterMode
	MagFilter     FilterMode
	MipmapFilter  FilterMode
	WrapU         WrapMode
	WrapV         WrapMode
	WrapW         WrapMode
	LodBias       float32
	MaxAnisotropy uint8
	MinLod        uint8
	MaxLod        uint8
	DepthCompare  bool
	CompareMode   CompareMode
}

func DefaultSamplerState() SamplerState {
	return SamplerState{
		MinFilter:     FilterLinear,
		MagFilter:     FilterLinear,
		MipmapFilter:  FilterNone,
		MaxAnisotropy: 1,
		MaxLod:        255,
	}
}
