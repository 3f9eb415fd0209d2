package components

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/stretchr/testify/assert"
)

func assertVec2(t *testing.T, want, got math.Vec2) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-3)
	assert.InDelta(t, want.Y, got.Y, 1e-3)
}

func TestCameraCentersPosition(t *testing.T) {
	c := NewCamera(800, 600)
	assertVec2(t, math.NewVec2(400, 300), c.WorldToScreen(0, 0))

	c.SetPosition(math.NewVec2(100, 50))
	assertVec2(t, math.NewVec2(400, 300), c.WorldToScreen(100, 50))
	assertVec2(t, math.NewVec2(410, 300), c.WorldToScreen(110, 50))

	c.Move(math.NewVec2(-100, -50))
	assertVec2(t, math.Vec2{}, c.Position())
}

func TestCameraZoomAndRotation(t *testing.T) {
	c := NewCamera(200, 200)
	c.SetZoom(2)
	assertVec2(t, math.NewVec2(120, 100), c.WorldToScreen(10, 0))

	c.SetZoom(1)
	c.SetRotation(math32.Pi / 2)
	// Turning the camera a quarter turn moves world +X onto screen -Y.
	assertVec2(t, math.NewVec2(100, 90), c.WorldToScreen(10, 0))

	c.SetZoom(-5)
	assert.Greater(t, c.Zoom(), float32(0))
}

func TestCameraScreenToWorldRoundTrip(t *testing.T) {
	c := NewCamera(640, 480)
	c.SetPosition(math.NewVec2(-30, 12))
	c.SetRotation(0.7)
	c.SetZoom(1.5)

	for _, p := range []math.Vec2{{X: 0, Y: 0}, {X: 17, Y: -4}, {X: 320, Y: 240}} {
		s := c.WorldToScreen(p.X, p.Y)
		assertVec2(t, p, c.ScreenToWorld(s.X, s.Y))
	}

	c.Reset()
	assertVec2(t, math.NewVec2(320, 240), c.WorldToScreen(0, 0))
}
