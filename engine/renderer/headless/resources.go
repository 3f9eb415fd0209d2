package headless

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/engine/renderer/metadata"
)

type Texture struct {
	id       core.ObjectID
	settings metadata.TextureSettings
	Released bool
}

func (t *Texture) ID() core.ObjectID                  { return t.id }
func (t *Texture) Release()                           { t.Released = true }
func (t *Texture) Type() metadata.TextureType         { return t.settings.Type }
func (t *Texture) Format() metadata.PixelFormat       { return t.settings.Format }
func (t *Texture) MipmapCount() int                   { return max(1, t.settings.MipmapCount) }
func (t *Texture) MSAA() int                          { return max(1, t.settings.MSAA) }
func (t *Texture) IsRenderTarget() bool               { return t.settings.RenderTarget }
func (t *Texture) IsComputeWritable() bool            { return t.settings.ComputeWrite }
func (t *Texture) DebugName() string                  { return t.settings.DebugName }
func (t *Texture) Settings() metadata.TextureSettings { return t.settings }

func (t *Texture) PixelWidth(mip int) int {
	return max(1, t.settings.Width>>mip)
}

func (t *Texture) PixelHeight(mip int) int {
	return max(1, t.settings.Height>>mip)
}

func (t *Texture) SliceCount(mip int) int {
	switch t.settings.Type {
	case metadata.TextureType2DArray:
		return max(1, t.settings.Layers)
	case metadata.TextureTypeCube:
		return 6
	case metadata.TextureTypeVolume:
		return max(1, t.settings.Layers>>mip)
	}
	return 1
}

type Buffer struct {
	id       core.ObjectID
	settings metadata.BufferSettings
	Data     []byte
	Released bool
}

func (b *Buffer) ID() core.ObjectID             { return b.id }
func (b *Buffer) Release()                      { b.Released = true }
func (b *Buffer) Size() int                     { return len(b.Data) }
func (b *Buffer) Usage() metadata.BufferUsage   { return b.settings.Usage }
func (b *Buffer) DataUsage() metadata.DataUsage { return b.settings.DataUsage }
func (b *Buffer) Immutable() bool               { return b.settings.Immutable }

func (b *Buffer) Fill(offset int, data []byte) error {
	if b.settings.Immutable {
		return fmt.Errorf("%w: buffer is immutable", core.ErrInvalidCopy)
	}
	if offset < 0 || offset+len(data) > len(b.Data) {
		return core.ErrBufferTooSmall
	}
	copy(b.Data[offset:], data)
	return nil
}

// StreamBuffer keeps one region per frame. Writes land at the frame offset.
type StreamBuffer struct {
	id       core.ObjectID
	usage    metadata.BufferUsage
	Data     []byte
	offset   int
	mapped   bool
	Released bool
}

func (s *StreamBuffer) ID() core.ObjectID           { return s.id }
func (s *StreamBuffer) Release()                    { s.Released = true }
func (s *StreamBuffer) Usage() metadata.BufferUsage { return s.usage }
func (s *StreamBuffer) Size() int                   { return len(s.Data) }
func (s *StreamBuffer) UsableSize() int             { return len(s.Data) - s.offset }

func (s *StreamBuffer) Map(minSize int) []byte {
	s.mapped = true
	return s.Data[s.offset:]
}

func (s *StreamBuffer) Unmap(usedSize int) int {
	s.mapped = false
	return s.offset
}

func (s *StreamBuffer) MarkUsed(usedSize int) {
	s.offset += usedSize
}

func (s *StreamBuffer) NextFrame() {
	s.offset = 0
}

type ShaderStage struct {
	id       core.ObjectID
	stage    metadata.ShaderStageType
	key      string
	Source   string
	Released bool
}

func (s *ShaderStage) ID() core.ObjectID               { return s.id }
func (s *ShaderStage) Release()                        { s.Released = true }
func (s *ShaderStage) Stage() metadata.ShaderStageType { return s.stage }
func (s *ShaderStage) Key() string                     { return s.key }

func stageKey(stage metadata.ShaderStageType, source string) string {
	sum := sha1.Sum([]byte(source))
	return stage.String() + ":" + hex.EncodeToString(sum[:])
}

type Shader struct {
	id       core.ObjectID
	stages   [metadata.ShaderStageMax]*ShaderStage
	name     string
	Released bool
}

func (s *Shader) ID() core.ObjectID { return s.id }
func (s *Shader) Release()          { s.Released = true }
func (s *Shader) DebugName() string { return s.name }

func (s *Shader) HasStage(stage metadata.ShaderStageType) bool {
	return s.stages[stage] != nil
}

func (s *Shader) ThreadgroupSize() [3]int {
	if s.stages[metadata.ShaderStageCompute] == nil {
		return [3]int{}
	}
	return [3]int{1, 1, 1}
}

// Fence stands in for device completion: a submitted fence signals when it
// is waited on, or immediately when the backend completes work eagerly.
type Fence struct {
	id        core.ObjectID
	signaled  bool
	submitted bool
	Waits     int
	Released  bool
}

func (f *Fence) ID() core.ObjectID { return f.id }
func (f *Fence) Release()          { f.Released = true }
func (f *Fence) Signaled() bool    { return f.signaled }

func (f *Fence) Wait(timeoutNs uint64) error {
	f.Waits++
	if f.submitted {
		f.signaled = true
	}
	return nil
}

func (f *Fence) Reset() error {
	f.signaled = false
	f.submitted = false
	return nil
}

type Readback struct {
	data     []byte
	complete bool
	err      error
}

func (r *Readback) Update() bool     { return r.complete }
func (r *Readback) IsComplete() bool { return r.complete }
func (r *Readback) Data() []byte     { return r.data }
func (r *Readback) Err() error       { return r.err }
