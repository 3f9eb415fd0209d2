package renderer

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type DrawMode uint8

const (
	DrawModeFill DrawMode = iota
	DrawModeLine
)

type ArcMode uint8

const (
	ArcPie ArcMode = iota
	ArcOpen
	ArcClosed
)

// CalculateEllipsePoints returns the segment count used to approximate an
// ellipse with the given radii at the current pixel scale.
func (g *Graphics) CalculateEllipsePoints(rx, ry float32) int {
	points := int(math32.Sqrt(((rx + ry) / 2) * 20 * float32(g.PixelScale())))
	return max(points, 8)
}

// Points draws one point per position. When colors is not nil it holds one
// color per point, multiplied by the current color.
func (g *Graphics) Points(positions []math.Vec2, colors []metadata.Color) error {
	if len(positions) == 0 {
		return nil
	}
	if colors != nil && len(colors) < len(positions) {
		return fmt.Errorf("%w: %d colors for %d points", core.ErrBufferTooSmall, len(colors), len(positions))
	}
	t := g.Transform()
	is2D := t.IsAffine2D()

	data, err := g.RequestBatchedDraw(BatchedDrawCommand{
		Primitive:      metadata.PrimitivePoints,
		Formats:        [metadata.MaxVertexBuffers]metadata.CommonFormat{positionFormat(is2D), metadata.CommonFormatRGBAub},
		VertexCount:    len(positions),
		StandardShader: metadata.StandardShaderPoints,
	})
	if err != nil {
		return err
	}
	writePositions(data.Stream[0], t, is2D, positions)

	current := g.Color()
	if colors == nil {
		writeColors(data.Stream[1], current.ToBytes(), len(positions))
		return nil
	}
	for i := range positions {
		c := current.Mul(colors[i]).ToBytes()
		copy(data.Stream[1][i*4:], c[:])
	}
	return nil
}

func (g *Graphics) Rectangle(mode DrawMode, x, y, w, h float32) error {
	coords := []math.Vec2{{X: x, Y: y}, {X: x, Y: y + h}, {X: x + w, Y: y + h}, {X: x + w, Y: y}, {X: x, Y: y}}
	return g.polygon(mode, coords, true)
}

// RoundedRectangle draws a rectangle with elliptic corners of radii rx, ry.
// points is the segment count for the whole outline; zero picks one from the
// corner size.
func (g *Graphics) RoundedRectangle(mode DrawMode, x, y, w, h, rx, ry float32, points int) error {
	if rx <= 0 || ry <= 0 {
		return g.Rectangle(mode, x, y, w, h)
	}
	if points <= 0 {
		points = g.CalculateEllipsePoints(min(rx, math.Abs(w/2)), min(ry, math.Abs(h/2)))
	}
	if w >= 0.02 {
		rx = min(rx, w/2-0.01)
	}
	if h >= 0.02 {
		ry = min(ry, h/2-0.01)
	}

	points = max(points/4, 1)
	shift := math.K_HALF_PI / (float32(points) + 1)
	n := (points + 2) * 4
	coords := make([]math.Vec2, n+1)

	corners := [4]math.Vec2{
		{X: x + rx, Y: y + ry},
		{X: x + w - rx, Y: y + ry},
		{X: x + w - rx, Y: y + h - ry},
		{X: x + rx, Y: y + h - ry},
	}
	for q := 0; q < 4; q++ {
		phi := float32(q) * math.K_HALF_PI
		c := corners[q]
		for i := q * (points + 2); i <= (q+1)*(points+2); i++ {
			coords[i] = math.Vec2{
				X: c.X - rx*math32.Cos(phi),
				Y: c.Y - ry*math32.Sin(phi),
			}
			phi += shift
		}
	}
	coords[n] = coords[0]
	return g.polygon(mode, coords, true)
}

func (g *Graphics) Circle(mode DrawMode, x, y, radius float32, points int) error {
	return g.Ellipse(mode, x, y, radius, radius, points)
}

// Ellipse draws an ellipse with radii a and b. Zero points picks a segment
// count from the radii.
func (g *Graphics) Ellipse(mode DrawMode, x, y, a, b float32, points int) error {
	if points <= 0 {
		points = g.CalculateEllipsePoints(a, b)
	}
	shift := math.K_PI_2 / float32(points)

	coords := make([]math.Vec2, 0, points+2)
	if mode == DrawModeFill {
		coords = append(coords, math.Vec2{X: x, Y: y})
	}
	start := len(coords)
	phi := float32(0)
	for i := 0; i < points; i++ {
		coords = append(coords, math.Vec2{X: x + a*math32.Cos(phi), Y: y + b*math32.Sin(phi)})
		phi += shift
	}
	coords = append(coords, coords[start])
	return g.polygon(mode, coords, false)
}

// Arc draws part of a circle between angle1 and angle2, in radians. Zero
// points scales the circle's segment count by the covered fraction.
func (g *Graphics) Arc(drawMode DrawMode, arcMode ArcMode, x, y, radius, angle1, angle2 float32, points int) error {
	angle := math.Abs(angle1 - angle2)
	if points <= 0 {
		p := float32(g.CalculateEllipsePoints(radius, radius))
		if angle < math.K_PI_2 {
			p *= angle / math.K_PI_2
		}
		points = int(p + 0.5)
	}
	if points <= 0 || angle1 == angle2 {
		return nil
	}
	if angle >= math.K_PI_2 {
		return g.Circle(drawMode, x, y, radius, points)
	}

	shift := (angle2 - angle1) / float32(points)
	if shift == 0 {
		return nil
	}
	if drawMode == DrawModeLine && arcMode == ArcClosed && angle < math.DegToRad(4) {
		arcMode = ArcOpen
	}
	if drawMode == DrawModeFill && arcMode == ArcOpen {
		arcMode = ArcClosed
	}

	arcPoints := func(coords []math.Vec2) {
		phi := angle1
		for i := 0; i <= points; i++ {
			coords[i] = math.Vec2{X: x + radius*math32.Cos(phi), Y: y + radius*math32.Sin(phi)}
			phi += shift
		}
	}

	var coords []math.Vec2
	switch arcMode {
	case ArcPie:
		coords = make([]math.Vec2, points+3)
		coords[0] = math.Vec2{X: x, Y: y}
		coords[len(coords)-1] = coords[0]
		arcPoints(coords[1:])
	case ArcOpen:
		coords = make([]math.Vec2, points+1)
		arcPoints(coords)
	default:
		coords = make([]math.Vec2, points+2)
		arcPoints(coords)
		coords[len(coords)-1] = coords[0]
	}
	return g.polygon(drawMode, coords, true)
}

// Polygon draws a closed polygon. The first vertex is repeated at the end
// when the caller did not close the loop.
func (g *Graphics) Polygon(mode DrawMode, coords []math.Vec2) error {
	if len(coords) < 3 {
		return fmt.Errorf("%w: a polygon needs at least 3 vertices", core.ErrInvalidConfig)
	}
	if coords[0] != coords[len(coords)-1] {
		coords = append(coords[:len(coords):len(coords)], coords[0])
	}
	return g.polygon(mode, coords, true)
}

// polygon takes a closed loop where the last vertex repeats the first. Fill
// mode triangulates it as a fan around the first vertex.
func (g *Graphics) polygon(mode DrawMode, coords []math.Vec2, skipLastFilledVertex bool) error {
	if mode == DrawModeLine {
		return g.Polyline(coords)
	}
	count := len(coords)
	if skipLastFilledVertex {
		count--
	}
	if count < 3 {
		return nil
	}

	t := g.Transform()
	is2D := t.IsAffine2D()
	data, err := g.RequestBatchedDraw(BatchedDrawCommand{
		Primitive:   metadata.PrimitiveTriangles,
		Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{positionFormat(is2D), metadata.CommonFormatRGBAub},
		IndexMode:   metadata.IndexModeFan,
		VertexCount: count,
	})
	if err != nil {
		return err
	}
	writePositions(data.Stream[0], t, is2D, coords[:count])
	writeColors(data.Stream[1], g.Color().ToBytes(), count)
	return nil
}

func (g *Graphics) Line(x1, y1, x2, y2 float32) error {
	return g.Polyline([]math.Vec2{{X: x1, Y: y1}, {X: x2, Y: y2}})
}

// Polyline strokes connected segments with the current line width and
// join. Every segment becomes one quad. Miter joins move the shared edge
// of adjacent quads to the miter point; bevel joins fill the outer gap with
// an extra degenerate quad.
func (g *Graphics) Polyline(coords []math.Vec2) error {
	if len(coords) < 2 {
		return nil
	}
	st := g.state()
	pixelSize := 1 / max(float32(g.PixelScale()), 1e-6)
	halfWidth := max(st.LineWidth*0.5, pixelSize*0.5)

	quads := tessellatePolyline(coords, halfWidth, st.LineJoin)
	if len(quads) == 0 {
		return nil
	}

	t := g.Transform()
	is2D := t.IsAffine2D()
	data, err := g.RequestBatchedDraw(BatchedDrawCommand{
		Primitive:   metadata.PrimitiveTriangles,
		Formats:     [metadata.MaxVertexBuffers]metadata.CommonFormat{positionFormat(is2D), metadata.CommonFormatRGBAub},
		IndexMode:   metadata.IndexModeQuads,
		VertexCount: len(quads),
	})
	if err != nil {
		return err
	}
	writePositions(data.Stream[0], t, is2D, quads)
	writeColors(data.Stream[1], g.Color().ToBytes(), len(quads))
	return nil
}

// tessellatePolyline returns four vertices per quad. Zero length segments
// are skipped.
func tessellatePolyline(coords []math.Vec2, halfWidth float32, join metadata.LineJoin) []math.Vec2 {
	pts := make([]math.Vec2, 0, len(coords))
	for _, c := range coords {
		if len(pts) > 0 && pts[len(pts)-1].Compare(c, 0) {
			continue
		}
		pts = append(pts, c)
	}
	if len(pts) < 2 {
		return nil
	}
	segments := len(pts) - 1
	closed := len(pts) > 2 && pts[0].Compare(pts[segments], 0)

	normals := make([]math.Vec2, segments)
	for i := 0; i < segments; i++ {
		normals[i] = pts[i+1].Sub(pts[i]).Normalized().Perpendicular().MulScalar(halfWidth)
	}

	// start[i] and end[i] are the side offsets at both ends of segment i.
	start := make([]math.Vec2, segments)
	end := make([]math.Vec2, segments)
	copy(start, normals)
	copy(end, normals)

	if join == metadata.LineJoinMiter {
		miter := func(a, b math.Vec2) (math.Vec2, bool) {
			sum := a.Add(b)
			l := sum.Length()
			if l < 1e-6 {
				return math.Vec2{}, false
			}
			dir := sum.MulScalar(1 / l)
			cos := (dir.X*a.X + dir.Y*a.Y) / halfWidth
			// Very sharp angles would produce unbounded spikes.
			if cos < 0.25 {
				return math.Vec2{}, false
			}
			return dir.MulScalar(halfWidth / cos), true
		}
		for i := 0; i < segments-1; i++ {
			if m, ok := miter(normals[i], normals[i+1]); ok {
				end[i], start[i+1] = m, m
			}
		}
		if closed {
			if m, ok := miter(normals[segments-1], normals[0]); ok {
				end[segments-1], start[0] = m, m
			}
		}
	}

	quads := make([]math.Vec2, 0, segments*8)
	for i := 0; i < segments; i++ {
		a, b := pts[i], pts[i+1]
		quads = append(quads, a.Add(start[i]), a.Sub(start[i]), b.Sub(end[i]), b.Add(end[i]))
	}

	if join == metadata.LineJoinBevel {
		joins := segments - 1
		if closed {
			joins = segments
		}
		for i := 0; i < joins; i++ {
			n0, n1 := normals[i], normals[(i+1)%segments]
			p := pts[i+1]
			// Both sides get a triangle; the one on the inner bend is hidden
			// under the segment quads.
			quads = append(quads, p, p.Add(n0), p.Add(n1), p, p, p.Sub(n1), p.Sub(n0), p)
		}
	}
	return quads
}
