package renderer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

func stageCacheKey(source string) string {
	sum := sha1.Sum([]byte(source))
	return hex.EncodeToString(sum[:])
}

// NewShaderStage compiles a stage, reusing an earlier stage compiled from
// the same source.
func (g *Graphics) NewShaderStage(stage metadata.ShaderStageType, source string) (metadata.ShaderStage, error) {
	if stage >= metadata.ShaderStageMax {
		return nil, fmt.Errorf("%w: unknown shader stage %d", core.ErrObjectCreation, stage)
	}
	key := stageCacheKey(source)
	if cached, ok := g.shaderStages[stage][key]; ok {
		return cached, nil
	}
	s, err := g.backend.NewShaderStage(stage, source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s stage: %w", stage, err)
	}
	g.shaderStages[stage][key] = s
	return s, nil
}

// InvalidateShaderStage drops the cached stage compiled from source, so
// the next request compiles it again. Shaders already linked keep working.
func (g *Graphics) InvalidateShaderStage(stage metadata.ShaderStageType, source string) bool {
	if stage >= metadata.ShaderStageMax {
		return false
	}
	key := stageCacheKey(source)
	s, ok := g.shaderStages[stage][key]
	if !ok {
		return false
	}
	delete(g.shaderStages[stage], key)
	g.lifecycle.QueueCleanup(s.Release)
	core.LogDebug("%s shader stage %s invalidated", stage, key)
	return true
}

// NewShader links a graphics shader from vertex and pixel sources.
func (g *Graphics) NewShader(vertexSource, pixelSource string) (metadata.Shader, error) {
	vs, err := g.NewShaderStage(metadata.ShaderStageVertex, vertexSource)
	if err != nil {
		return nil, err
	}
	ps, err := g.NewShaderStage(metadata.ShaderStagePixel, pixelSource)
	if err != nil {
		return nil, err
	}
	return g.backend.NewShader([]metadata.ShaderStage{vs, ps})
}

func (g *Graphics) NewComputeShader(source string) (metadata.Shader, error) {
	cs, err := g.NewShaderStage(metadata.ShaderStageCompute, source)
	if err != nil {
		return nil, err
	}
	return g.backend.NewShader([]metadata.ShaderStage{cs})
}

// SetStandardShader installs the shader used for one class of batched
// geometry while no user shader is active. The replaced shader is released
// once the current frame retires.
func (g *Graphics) SetStandardShader(kind metadata.StandardShader, shader metadata.Shader) error {
	if kind == metadata.StandardShaderNone || kind >= metadata.StandardShaderMax {
		return fmt.Errorf("%w: invalid standard shader %d", core.ErrInvalidShader, kind)
	}
	if shader != nil && shader.HasStage(metadata.ShaderStageCompute) {
		return fmt.Errorf("%w: standard shaders cannot be compute shaders", core.ErrInvalidShader)
	}
	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}
	old := g.standardShaders[kind]
	g.standardShaders[kind] = shader
	if old != nil && old != shader {
		if g.currentShader == old {
			g.attachShader(shader)
		}
		g.lifecycle.QueueCleanup(old.Release)
	}
	return nil
}

func (g *Graphics) StandardShader(kind metadata.StandardShader) metadata.Shader {
	if kind >= metadata.StandardShaderMax {
		return nil
	}
	return g.standardShaders[kind]
}

// attachStandardShader binds the standard shader for kind, falling back to
// the default one.
func (g *Graphics) attachStandardShader(kind metadata.StandardShader) {
	sh := g.standardShaders[kind]
	if sh == nil {
		sh = g.standardShaders[metadata.StandardShaderDefault]
	}
	g.attachShader(sh)
}

func (g *Graphics) attachShader(sh metadata.Shader) {
	if sh == g.currentShader {
		return
	}
	g.currentShader = sh
	g.shaderSwitches++
	g.backend.SetShader(sh)
}

// DispatchThreadgroups runs a compute shader. The previously attached
// shader is restored afterwards.
func (g *Graphics) DispatchThreadgroups(shader metadata.Shader, x, y, z int) error {
	if shader == nil || !shader.HasStage(metadata.ShaderStageCompute) {
		return core.ErrNotComputeShader
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return fmt.Errorf("%w: dispatch size must be positive (%d, %d, %d)", core.ErrInvalidThreadgroups, x, y, z)
	}
	if float64(x) > g.caps.Limit(metadata.LimitThreadgroupsX) ||
		float64(y) > g.caps.Limit(metadata.LimitThreadgroupsY) ||
		float64(z) > g.caps.Limit(metadata.LimitThreadgroupsZ) {
		return fmt.Errorf("%w: too many threadgroups (%d, %d, %d)", core.ErrInvalidThreadgroups, x, y, z)
	}

	if err := g.FlushBatchedDraws(); err != nil {
		return err
	}

	prev := g.currentShader
	g.attachShader(shader)
	err := g.backend.Dispatch(shader, x, y, z)
	if prev != nil {
		g.attachShader(prev)
	}
	return err
}
