package renderer

import (
	"github.com/spaghettifunk/anima2d/engine/math"
)

// Transform returns the current transform.
func (g *Graphics) Transform() math.Mat4 {
	return g.transforms[len(g.transforms)-1]
}

func (g *Graphics) top() *math.Mat4 {
	return &g.transforms[len(g.transforms)-1]
}

// PixelScale approximates how many pixels a unit of the current transform
// covers. Shapes use it to pick their tessellation density.
func (g *Graphics) PixelScale() float64 {
	return g.pixelScales[len(g.pixelScales)-1]
}

func (g *Graphics) setPixelScale(s float64) {
	g.pixelScales[len(g.pixelScales)-1] = s
}

func (g *Graphics) PushTransform() {
	g.transforms = append(g.transforms, g.Transform())
}

// PushIdentityTransform pushes an identity matrix. Flushed batches use it so
// their already transformed vertices are not transformed again.
func (g *Graphics) PushIdentityTransform() {
	g.transforms = append(g.transforms, math.NewMat4Identity())
}

func (g *Graphics) PopTransform() {
	if len(g.transforms) > 1 {
		g.transforms = g.transforms[:len(g.transforms)-1]
	}
}

func (g *Graphics) Translate(x, y float32) {
	t := g.top()
	*t = t.Apply(math.NewMat4Translation(math.NewVec3(x, y, 0)))
}

func (g *Graphics) Rotate(angle float32) {
	t := g.top()
	*t = t.Apply(math.NewMat4EulerZ(angle))
}

func (g *Graphics) Scale(x, y float32) {
	t := g.top()
	*t = t.Apply(math.NewMat4Scale(math.NewVec3(x, y, 1)))
	g.setPixelScale(g.PixelScale() * float64(math.Abs(x)+math.Abs(y)) / 2)
}

func (g *Graphics) Shear(kx, ky float32) {
	t := g.top()
	*t = t.Apply(math.NewMat4Shear(kx, ky))
}

// Origin resets the current transform to identity.
func (g *Graphics) Origin() {
	*g.top() = math.NewMat4Identity()
	g.setPixelScale(1)
}

// ApplyTransform composes m into the current transform, m applied first.
func (g *Graphics) ApplyTransform(m math.Mat4) {
	t := g.top()
	*t = t.Apply(m)
	sx, sy := t.ApproximateScale()
	g.setPixelScale(float64(sx+sy) / 2)
}

func (g *Graphics) ReplaceTransform(m math.Mat4) {
	*g.top() = m
	sx, sy := m.ApproximateScale()
	g.setPixelScale(float64(sx+sy) / 2)
}

// TransformPoint maps a point from local to global coordinates.
func (g *Graphics) TransformPoint(x, y float32) (float32, float32) {
	return g.Transform().TransformXY(x, y)
}

// InverseTransformPoint maps a point from global to local coordinates.
func (g *Graphics) InverseTransformPoint(x, y float32) (float32, float32) {
	return g.Transform().Inverse().TransformXY(x, y)
}
