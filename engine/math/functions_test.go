package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func TestMulAppliesReceiverFirst(t *testing.T) {
	translate := NewMat4Translation(NewVec3(10, 0, 0))
	scale := NewMat4Scale(NewVec3(2, 2, 1))

	x, y := translate.Mul(scale).TransformXY(1, 1)
	assert.InDelta(t, 22, x, tolerance)
	assert.InDelta(t, 2, y, tolerance)

	x, y = scale.Apply(translate).TransformXY(1, 1)
	assert.InDelta(t, 22, x, tolerance)
	assert.InDelta(t, 2, y, tolerance)
}

func TestInverse(t *testing.T) {
	m := NewTransform2D(30, -12, 0.7, 2, 3, 4, 5, 0.1, 0.2).ToMat4()
	inv := m.Inverse()
	assert.True(t, m.Mul(inv).Compare(NewMat4Identity(), 1e-4))

	x, y := m.TransformXY(7, 9)
	x, y = inv.TransformXY(x, y)
	assert.InDelta(t, 7, x, 1e-3)
	assert.InDelta(t, 9, y, 1e-3)

	assert.Equal(t, NewMat4Identity(), Mat4{}.Inverse())
}

func TestOrthographicYDown(t *testing.T) {
	p := NewMat4Orthographic(0, 800, 600, 0, -10, 10)
	x, y := p.TransformXY(0, 0)
	assert.InDelta(t, -1, x, tolerance)
	assert.InDelta(t, 1, y, tolerance)
	x, y = p.TransformXY(800, 600)
	assert.InDelta(t, 1, x, tolerance)
	assert.InDelta(t, -1, y, tolerance)
}

func TestRowRoundTrip(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3))
	assert.Equal(t, NewVec4(0, 1, 0, 2), m.Row(1))

	m.SetRow(1, m.Row(1).MulScalar(-1))
	_, y := m.TransformXY(0, 5)
	assert.InDelta(t, -7, y, tolerance)
}

func TestApproximateScale(t *testing.T) {
	m := NewTransform2D(5, 5, 1.2, 3, 4, 0, 0, 0, 0).ToMat4()
	sx, sy := m.ApproximateScale()
	assert.InDelta(t, 3, sx, tolerance)
	assert.InDelta(t, 4, sy, tolerance)
	assert.True(t, m.IsAffine2D())
	assert.False(t, NewMat4Perspective(1, 1, 0.1, 10).IsAffine2D())
}

func TestTransform2DMatchesComposition(t *testing.T) {
	tr := NewTransform2D(10, 20, K_HALF_PI, 2, 1, 1, 0, 0, 0)
	want := NewMat4Translation(NewVec3(10, 20, 0)).
		Apply(NewMat4EulerZ(K_HALF_PI)).
		Apply(NewMat4Scale(NewVec3(2, 1, 1))).
		Apply(NewMat4Translation(NewVec3(-1, 0, 0)))
	assert.True(t, tr.ToMat4().Compare(want, tolerance))

	x, y := tr.ToMat4().TransformXY(2, 0)
	assert.InDelta(t, 10, x, tolerance)
	assert.InDelta(t, 22, y, tolerance)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(-1), Clamp(float32(-4), -1, 1))
	assert.Equal(t, 2, Max(1, 2))
	assert.Equal(t, 1, Min(1, 2))
	assert.Equal(t, float32(2), Abs(float32(-2)))
}
