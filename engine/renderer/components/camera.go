package components

import (
	"github.com/spaghettifunk/anima2d/engine/math"
)

// Camera is a 2D view onto the world. The point at Position is shown at
// the center of the viewport, rotated by Rotation and scaled by Zoom.
// Apply its view with Graphics.ApplyTransform inside a pushed transform.
type Camera struct {
	position math.Vec2
	rotation float32
	zoom     float32
	viewport math.Vec2

	isDirty    bool
	viewMatrix math.Mat4
}

func NewCamera(viewportWidth, viewportHeight float32) *Camera {
	camera := &Camera{}
	camera.Reset()
	camera.SetViewport(viewportWidth, viewportHeight)
	return camera
}

func (c *Camera) Reset() {
	c.position = math.Vec2{}
	c.rotation = 0
	c.zoom = 1
	c.isDirty = true
}

func (c *Camera) Position() math.Vec2 {
	return c.position
}

func (c *Camera) SetPosition(position math.Vec2) {
	c.position = position
	c.isDirty = true
}

// Move shifts the camera by delta in world units.
func (c *Camera) Move(delta math.Vec2) {
	c.SetPosition(c.position.Add(delta))
}

func (c *Camera) Rotation() float32 {
	return c.rotation
}

func (c *Camera) SetRotation(radians float32) {
	c.rotation = radians
	c.isDirty = true
}

func (c *Camera) Zoom() float32 {
	return c.zoom
}

// SetZoom clamps the zoom to [0.001, 1000] so the view stays
// invertible.
func (c *Camera) SetZoom(zoom float32) {
	c.zoom = math.Clamp(zoom, 0.001, 1000)
	c.isDirty = true
}

// SetViewport updates the size the camera centers on, usually on resize.
func (c *Camera) SetViewport(width, height float32) {
	c.viewport = math.NewVec2(width, height)
	c.isDirty = true
}

// View returns the world to screen matrix.
func (c *Camera) View() math.Mat4 {
	if c.isDirty {
		c.viewMatrix = math.NewMat4Translation(math.NewVec3(-c.position.X, -c.position.Y, 0)).
			Mul(math.NewMat4EulerZ(-c.rotation)).
			Mul(math.NewMat4Scale(math.NewVec3(c.zoom, c.zoom, 1))).
			Mul(math.NewMat4Translation(math.NewVec3(c.viewport.X/2, c.viewport.Y/2, 0)))
		c.isDirty = false
	}
	return c.viewMatrix
}

// ScreenToWorld maps a viewport pixel back into world coordinates.
func (c *Camera) ScreenToWorld(x, y float32) math.Vec2 {
	wx, wy := c.View().Inverse().TransformXY(x, y)
	return math.NewVec2(wx, wy)
}

func (c *Camera) WorldToScreen(x, y float32) math.Vec2 {
	sx, sy := c.View().TransformXY(x, y)
	return math.NewVec2(sx, sy)
}
