package math

import "github.com/chewxy/math32"

func NewTransform2D(x, y, angle, sx, sy, ox, oy, kx, ky float32) Transform2D {
	return Transform2D{X: x, Y: y, Angle: angle, SX: sx, SY: sy, OX: ox, OY: oy, KX: kx, KY: ky}
}

// TransformFromPosition returns a translation with unit scale.
func TransformFromPosition(x, y float32) Transform2D {
	return Transform2D{X: x, Y: y, SX: 1, SY: 1}
}

func (t Transform2D) SetPosition(x, y float32) Transform2D {
	t.X, t.Y = x, y
	return t
}

func (t Transform2D) Translate(dx, dy float32) Transform2D {
	t.X += dx
	t.Y += dy
	return t
}

func (t Transform2D) Rotate(angle float32) Transform2D {
	t.Angle += angle
	return t
}

func (t Transform2D) ScaleIt(sx, sy float32) Transform2D {
	t.SX *= sx
	t.SY *= sy
	return t
}

// ToMat4 composes origin offset, shear, scale, rotation and translation, in
// that order of application.
func (t Transform2D) ToMat4() Mat4 {
	c := math32.Cos(t.Angle)
	s := math32.Sin(t.Angle)

	out_matrix := NewMat4Identity()
	e := &out_matrix.Data
	e[0] = c*t.SX - t.KY*s*t.SY
	e[1] = s*t.SX + t.KY*c*t.SY
	e[4] = t.KX*c*t.SX - s*t.SY
	e[5] = t.KX*s*t.SX + c*t.SY
	e[12] = t.X - t.OX*e[0] - t.OY*e[4]
	e[13] = t.Y - t.OX*e[1] - t.OY*e[5]
	return out_matrix
}
