package engine

import (
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/assets"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type shaderEntry struct {
	name     string
	compute  bool
	standard metadata.StandardShader
	sources  [metadata.ShaderStageMax]string
	shader   metadata.Shader
}

func (e *shaderEntry) stages() []metadata.ShaderStageType {
	if e.compute {
		return []metadata.ShaderStageType{metadata.ShaderStageCompute}
	}
	return []metadata.ShaderStageType{metadata.ShaderStageVertex, metadata.ShaderStagePixel}
}

// ShaderLibrary links shaders from compiled stages in the shader directory
// and relinks them when a stage changes on disk. Everything runs on the
// frame goroutine.
type ShaderLibrary struct {
	graphics *renderer.Graphics
	assets   *assets.AssetManager
	entries  map[string]*shaderEntry
}

func NewShaderLibrary(g *renderer.Graphics, am *assets.AssetManager) *ShaderLibrary {
	return &ShaderLibrary{
		graphics: g,
		assets:   am,
		entries:  make(map[string]*shaderEntry),
	}
}

// Load links <name>.vert.spv and <name>.frag.spv.
func (l *ShaderLibrary) Load(name string) (metadata.Shader, error) {
	return l.load(&shaderEntry{name: name})
}

// LoadCompute links <name>.comp.spv.
func (l *ShaderLibrary) LoadCompute(name string) (metadata.Shader, error) {
	return l.load(&shaderEntry{name: name, compute: true})
}

// LoadStandard links name and installs it as the standard shader kind.
func (l *ShaderLibrary) LoadStandard(kind metadata.StandardShader, name string) (metadata.Shader, error) {
	sh, err := l.load(&shaderEntry{name: name, standard: kind})
	if err != nil {
		return nil, err
	}
	if err := l.graphics.SetStandardShader(kind, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Get returns the linked shader, or nil when name was never loaded.
func (l *ShaderLibrary) Get(name string) metadata.Shader {
	if e, ok := l.entries[name]; ok {
		return e.shader
	}
	return nil
}

func (l *ShaderLibrary) load(e *shaderEntry) (metadata.Shader, error) {
	if _, ok := l.entries[e.name]; ok {
		return nil, fmt.Errorf("shader %q already loaded", e.name)
	}
	if err := l.link(e); err != nil {
		return nil, err
	}
	l.entries[e.name] = e
	core.LogDebug("shader %s loaded", e.name)
	return e.shader, nil
}

func (l *ShaderLibrary) link(e *shaderEntry) error {
	var sources [metadata.ShaderStageMax]string
	for _, stage := range e.stages() {
		src, err := l.assets.ShaderSource(e.name, stage)
		if err != nil {
			return fmt.Errorf("shader %s: %w", e.name, err)
		}
		sources[stage] = src
	}

	var sh metadata.Shader
	var err error
	if e.compute {
		sh, err = l.graphics.NewComputeShader(sources[metadata.ShaderStageCompute])
	} else {
		sh, err = l.graphics.NewShader(sources[metadata.ShaderStageVertex], sources[metadata.ShaderStagePixel])
	}
	if err != nil {
		return fmt.Errorf("shader %s: %w", e.name, err)
	}
	e.sources = sources
	e.shader = sh
	return nil
}

// Reload relinks the shader owning the stage file at path. It reports
// whether a shader was relinked. On failure the previous shader stays in
// use.
func (l *ShaderLibrary) Reload(path string) (bool, error) {
	name, stage, ok := assets.ShaderStageOf(path)
	if !ok {
		return false, nil
	}
	e, ok := l.entries[name]
	if !ok || e.sources[stage] == "" {
		return false, nil
	}

	old := e.shader
	oldSources := e.sources
	l.graphics.InvalidateShaderStage(stage, oldSources[stage])
	if err := l.link(e); err != nil {
		return false, err
	}

	switch {
	case e.standard != metadata.StandardShaderNone:
		// SetStandardShader releases the replaced shader itself.
		if err := l.graphics.SetStandardShader(e.standard, e.shader); err != nil {
			return false, err
		}
	default:
		if !e.compute && l.graphics.Shader() == old {
			if err := l.graphics.SetShader(e.shader); err != nil {
				return false, err
			}
		}
		l.graphics.ReleaseLater(old)
	}
	core.LogInfo("shader %s reloaded (%s stage changed)", name, stage)
	return true, nil
}

// Release frees every shader the library linked.
func (l *ShaderLibrary) Release() {
	for name, e := range l.entries {
		if e.standard == metadata.StandardShaderNone {
			e.shader.Release()
		}
		delete(l.entries, name)
	}
}
