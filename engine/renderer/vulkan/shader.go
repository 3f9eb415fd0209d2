package vulkan

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

const (
	spirvMagic             = 0x07230203
	spirvOpExecutionMode   = 16
	spirvModeLocalSize     = 17
	spirvHeaderWords       = 5
	shaderEntryPoint       = "main"
	defaultThreadgroupSize = 1
)

// ShaderStage holds validated SPIR-V. Linked shaders build their own
// modules from the code, so a stage may be released while shaders made
// from it are still in use.
type ShaderStage struct {
	id    core.ObjectID
	stage metadata.ShaderStageType
	key   string
	code  []uint32
	// localSize is the compute threadgroup size declared by the module.
	localSize [3]int
}

func (b *Backend) NewShaderStage(stage metadata.ShaderStageType, source string) (metadata.ShaderStage, error) {
	code, err := decodeSPIRV([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", stage, err)
	}
	sum := sha1.Sum([]byte(source))
	s := &ShaderStage{
		id:    core.NewObjectID(),
		stage: stage,
		key:   stage.String() + ":" + hex.EncodeToString(sum[:]),
		code:  code,
	}
	if stage == metadata.ShaderStageCompute {
		size, ok := spirvLocalSize(code)
		if !ok {
			size = [3]int{defaultThreadgroupSize, defaultThreadgroupSize, defaultThreadgroupSize}
		}
		s.localSize = size
	}
	return s, nil
}

func (s *ShaderStage) ID() core.ObjectID               { return s.id }
func (s *ShaderStage) Stage() metadata.ShaderStageType { return s.stage }
func (s *ShaderStage) Key() string                     { return s.key }
func (s *ShaderStage) Release()                        { s.code = nil }

// decodeSPIRV checks the module header and converts the little endian byte
// stream into words.
func decodeSPIRV(data []byte) ([]uint32, error) {
	if len(data) < spirvHeaderWords*4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a SPIR-V module", core.ErrInvalidShader, len(data))
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	if code[0] != spirvMagic {
		return nil, fmt.Errorf("%w: bad SPIR-V magic %#08x", core.ErrInvalidShader, code[0])
	}
	return code, nil
}

// spirvLocalSize finds the LocalSize execution mode of the module.
func spirvLocalSize(code []uint32) ([3]int, bool) {
	for i := spirvHeaderWords; i < len(code); {
		wordCount := int(code[i] >> 16)
		opcode := code[i] & 0xffff
		if wordCount == 0 || i+wordCount > len(code) {
			break
		}
		if opcode == spirvOpExecutionMode && wordCount >= 6 && code[i+2] == spirvModeLocalSize {
			return [3]int{int(code[i+3]), int(code[i+4]), int(code[i+5])}, true
		}
		i += wordCount
	}
	return [3]int{}, false
}

type shaderModule struct {
	stage  metadata.ShaderStageType
	Handle vk.ShaderModule
}

// Shader owns one module per stage. Graphics pipelines are created for it
// on demand by the pipeline cache; the compute pipeline is created with the
// shader.
type Shader struct {
	id        core.ObjectID
	backend   *Backend
	modules   []shaderModule
	has       [metadata.ShaderStageMax]bool
	localSize [3]int
	name      string

	computePipeline vk.Pipeline
}

func (b *Backend) NewShader(stages []metadata.ShaderStage) (metadata.Shader, error) {
	sh := &Shader{id: core.NewObjectID(), backend: b}
	for _, st := range stages {
		vs, ok := st.(*ShaderStage)
		if !ok || vs.code == nil {
			sh.destroy()
			return nil, fmt.Errorf("%w: foreign or released shader stage %T", core.ErrObjectCreation, st)
		}
		module, err := newShaderModule(b.context, vs.code)
		if err != nil {
			sh.destroy()
			return nil, err
		}
		sh.modules = append(sh.modules, shaderModule{stage: vs.stage, Handle: module})
		sh.has[vs.stage] = true
		if vs.stage == metadata.ShaderStageCompute {
			sh.localSize = vs.localSize
		}
		sh.name += vs.stage.String() + " "
	}

	if sh.has[metadata.ShaderStageCompute] {
		if sh.has[metadata.ShaderStageVertex] || sh.has[metadata.ShaderStagePixel] {
			sh.destroy()
			return nil, fmt.Errorf("%w: compute stage mixed with graphics stages", core.ErrObjectCreation)
		}
		pipeline, err := ComputePipelineCreate(b.context, sh, b.pipelineLayout)
		if err != nil {
			sh.destroy()
			return nil, err
		}
		sh.computePipeline = pipeline
	} else if !sh.has[metadata.ShaderStageVertex] {
		sh.destroy()
		return nil, fmt.Errorf("%w: graphics shader without a vertex stage", core.ErrObjectCreation)
	}
	return sh, nil
}

func newShaderModule(context *Context, code []uint32) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module); res != vk.Success {
		return vk.NullShaderModule, vkError("vkCreateShaderModule", res)
	}
	return module, nil
}

func (sh *Shader) ID() core.ObjectID       { return sh.id }
func (sh *Shader) DebugName() string       { return sh.name }
func (sh *Shader) ThreadgroupSize() [3]int { return sh.localSize }

func (sh *Shader) HasStage(stage metadata.ShaderStageType) bool {
	return stage < metadata.ShaderStageMax && sh.has[stage]
}

// stageInfos describes the modules for pipeline creation.
func (sh *Shader) stageInfos() []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, 0, len(sh.modules))
	for _, m := range sh.modules {
		infos = append(infos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vkShaderStage(m.stage),
			Module: m.Handle,
			PName:  VulkanSafeString(shaderEntryPoint),
		})
	}
	return infos
}

// Release evicts every pipeline built for the shader and destroys the
// modules after in-flight frames complete.
func (sh *Shader) Release() {
	if sh.modules == nil {
		return
	}
	sh.backend.forgetShader(sh)
	modules, compute := sh.modules, sh.computePipeline
	sh.modules, sh.computePipeline = nil, vk.NullPipeline
	context := sh.backend.context
	sh.backend.deferDestroy(func() {
		if compute != vk.NullPipeline {
			vk.DestroyPipeline(context.Device.LogicalDevice, compute, context.Allocator)
		}
		for _, m := range modules {
			vk.DestroyShaderModule(context.Device.LogicalDevice, m.Handle, context.Allocator)
		}
	})
}

func (sh *Shader) destroy() {
	context := sh.backend.context
	if sh.computePipeline != vk.NullPipeline {
		vk.DestroyPipeline(context.Device.LogicalDevice, sh.computePipeline, context.Allocator)
		sh.computePipeline = vk.NullPipeline
	}
	for _, m := range sh.modules {
		vk.DestroyShaderModule(context.Device.LogicalDevice, m.Handle, context.Allocator)
	}
	sh.modules = nil
}
