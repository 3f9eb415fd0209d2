package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
)

type StackType uint8

const (
	// StackAll saves the transform and the whole display state.
	StackAll StackType = iota
	// StackTransform saves only the transform.
	StackTransform
)

// StackDepth returns the number of user pushes that have not been popped.
func (g *Graphics) StackDepth() int {
	return len(g.stackTypes)
}

func (g *Graphics) Push(kind StackType) error {
	if len(g.stackTypes) >= g.cfg.MaxStackDepth {
		return fmt.Errorf("%w: maximum depth %d reached (more pushes than pops?)", core.ErrStackOverflow, g.cfg.MaxStackDepth)
	}

	g.PushTransform()
	g.pixelScales = append(g.pixelScales, g.pixelScales[len(g.pixelScales)-1])

	if kind == StackAll {
		top := *g.state()
		top.RenderTargets = top.RenderTargets.Clone()
		g.states = append(g.states, top)
	}
	g.stackTypes = append(g.stackTypes, kind)
	return nil
}

func (g *Graphics) Pop() error {
	if len(g.stackTypes) < 1 {
		return fmt.Errorf("%w: minimum depth reached (more pops than pushes?)", core.ErrStackUnderflow)
	}

	g.PopTransform()
	g.pixelScales = g.pixelScales[:len(g.pixelScales)-1]

	kind := g.stackTypes[len(g.stackTypes)-1]
	g.stackTypes = g.stackTypes[:len(g.stackTypes)-1]

	if kind == StackAll {
		next := g.states[len(g.states)-2]
		err := g.restoreStateChecked(next)
		// The two top states are equal now, unless restoring failed midway.
		g.states = g.states[:len(g.states)-1]
		if err != nil {
			return err
		}
	}
	return nil
}
