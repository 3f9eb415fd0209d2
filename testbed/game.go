package testbed

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/spaghettifunk/anima2d/engine"
	"github.com/spaghettifunk/anima2d/engine/assets"
	"github.com/spaghettifunk/anima2d/engine/assets/loaders"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/math"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/components"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
	"github.com/spaghettifunk/anima2d/engine/systems"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	time   float64
	width  uint32
	height uint32

	camera     *components.Camera
	font       *renderer.Font
	readbacks  int
	lastSample [4]byte
}

func NewTestGame(cfg *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.Graphics == nil {
		return fmt.Errorf("the engine did not set up graphics before initializing the game")
	}

	// Standard shaders are optional on the headless backend, which draws
	// without them.
	for kind, name := range map[metadata.StandardShader]string{
		metadata.StandardShaderDefault: "sprite",
		metadata.StandardShaderPoints:  "points",
	} {
		if _, err := g.Shaders.LoadStandard(kind, name); err != nil {
			if g.Graphics.Backend().Name() == "headless" {
				core.LogWarn("standard shader %s not loaded: %s", name, err)
				continue
			}
			return err
		}
	}

	g.state().camera = components.NewCamera(1, 1)

	// Rasterizing runs on a worker; the atlas upload happens in the
	// completion callback on the frame goroutine.
	if err := g.Jobs.Submit(systems.JobTask{
		Name: "font default",
		Run: func() (interface{}, error) {
			return g.Assets.LoadFontData("default", nil)
		},
		OnComplete: func(result interface{}) {
			font, err := assets.NewFont(g.Graphics, "default", result.(*loaders.FontData))
			if err != nil {
				core.LogWarn("failed to upload the default font: %s", err)
				return
			}
			g.state().font = font
			g.Graphics.SetFont(font)
		},
		OnFailure: func(err error) {
			core.LogWarn("no default font, text is disabled: %s", err)
		},
	}); err != nil {
		return err
	}

	g.Graphics.SetBackgroundColor(metadata.Color{R: 0.08, G: 0.09, B: 0.12, A: 1})
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	g.state().time += deltaTime
	return nil
}

func (g *TestGame) Render(gfx *renderer.Graphics, deltaTime float64) error {
	st := g.state()
	t := float32(st.time)

	if err := g.renderOffscreen(gfx, t); err != nil {
		return err
	}

	if err := gfx.Push(renderer.StackAll); err != nil {
		return err
	}
	defer gfx.Pop()

	// A ring of rotating squares around the world origin, seen through a
	// slowly breathing camera.
	st.camera.SetZoom(1 + 0.15*math32.Sin(0.5*t))
	gfx.ApplyTransform(st.camera.View())
	for i := 0; i < 12; i++ {
		angle := t + float32(i)*2*math32.Pi/12
		gfx.PushTransform()
		pulse := 1 + 0.25*math32.Sin(3*t+float32(i))
		gfx.ApplyTransform(math.TransformFromPosition(160*math32.Cos(angle), 160*math32.Sin(angle)).
			Rotate(angle).
			ScaleIt(pulse, pulse).
			ToMat4())
		gfx.SetColor(metadata.Color{R: 0.5 + 0.5*math32.Sin(angle), G: 0.4, B: 0.9, A: 1})
		if err := gfx.Rectangle(renderer.DrawModeFill, -12, -12, 24, 24); err != nil {
			gfx.PopTransform()
			return err
		}
		gfx.PopTransform()
	}

	gfx.SetColor(metadata.Color{R: 1, G: 1, B: 1, A: 1})
	gfx.SetLineWidth(2)
	if err := gfx.Circle(renderer.DrawModeLine, 0, 0, 100+10*math32.Sin(2*t), 0); err != nil {
		return err
	}
	if err := gfx.Arc(renderer.DrawModeFill, renderer.ArcPie, 0, 0, 60, 0, 0.1+math32.Mod(t, 2*math32.Pi-0.1), 0); err != nil {
		return err
	}

	if st.font != nil {
		gfx.Origin()
		fps := 0.0
		if deltaTime > 0 {
			fps = 1 / deltaTime
		}
		s := gfx.LastFrameStats()
		text := fmt.Sprintf("%.0f fps\n%d draw calls (%d batched)\ncenter pixel %v", fps, s.DrawCalls, s.DrawCallsBatched, st.lastSample)
		if err := gfx.Print(nil, text, 16, 16); err != nil {
			return err
		}
	}
	return nil
}

// renderOffscreen draws a gradient bar into a temporary target, composites
// it back and samples its center pixel asynchronously.
func (g *TestGame) renderOffscreen(gfx *renderer.Graphics, t float32) error {
	st := g.state()
	const size = 128

	tex, err := gfx.GetTemporaryTexture(metadata.PixelFormatRGBA8, size, size, 1)
	if err != nil {
		return err
	}
	defer gfx.ReleaseTemporaryTexture(tex)

	if err := gfx.SetRenderTarget(metadata.NewRenderTarget(tex), 0); err != nil {
		return err
	}
	bg := metadata.Color{A: 1}
	if err := gfx.Clear(&bg, nil, nil); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		gfx.SetColor(metadata.Color{R: float32(i) / 7, G: 0.5 + 0.5*math32.Cos(t), B: 1 - float32(i)/7, A: 1})
		if err := gfx.Rectangle(renderer.DrawModeFill, float32(i)*size/8, 0, size/8, size); err != nil {
			return err
		}
	}
	if err := gfx.SetRenderTargets(metadata.RenderTargets{}); err != nil {
		return err
	}

	if st.readbacks == 0 {
		st.readbacks++
		rect := metadata.Rect{X: size / 2, Y: size / 2, W: 1, H: 1}
		if _, err := gfx.ReadbackTexture(tex, 0, 0, rect, func(data []byte, err error) {
			st.readbacks--
			if err != nil {
				core.LogWarn("readback failed: %s", err)
				return
			}
			copy(st.lastSample[:], data)
		}); err != nil {
			st.readbacks--
			if !errors.Is(err, core.ErrFeatureUnsupported) {
				return err
			}
		}
	}

	gfx.SetColor(metadata.Color{R: 1, G: 1, B: 1, A: 1})
	return gfx.DrawTexture(tex, float32(st.width)-size-16, 16, size, size)
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	st := g.state()
	st.width, st.height = width, height
	st.camera.SetViewport(float32(width), float32(height))
	return nil
}

func (g *TestGame) Shutdown() error {
	if st := g.state(); st.font != nil {
		st.font.Release()
		st.font = nil
	}
	return nil
}
