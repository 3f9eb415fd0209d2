package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima2d/engine/core"
)

const descriptorPoolSets = 256

// descriptorKey names the texture and sampler a set binds.
type descriptorKey struct {
	texture core.ObjectID
	sampler core.ObjectID
}

type descriptorSet struct {
	Handle vk.DescriptorSet
	pool   vk.DescriptorPool
}

// DescriptorAllocator hands out combined image sampler sets, one per
// texture and sampler pair, growing by whole pools when one runs out.
type DescriptorAllocator struct {
	context *Context
	layout  vk.DescriptorSetLayout
	pools   []vk.DescriptorPool
	sets    map[descriptorKey]descriptorSet
}

func NewDescriptorAllocator(context *Context, layout vk.DescriptorSetLayout) *DescriptorAllocator {
	return &DescriptorAllocator{
		context: context,
		layout:  layout,
		sets:    make(map[descriptorKey]descriptorSet),
	}
}

func (da *DescriptorAllocator) newPool() (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: descriptorPoolSets,
	}}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(da.context.Device.LogicalDevice, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       descriptorPoolSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, da.context.Allocator, &pool); res != vk.Success {
		return pool, vkError("vkCreateDescriptorPool", res)
	}
	da.pools = append(da.pools, pool)
	core.LogDebug("descriptor pool %d created", len(da.pools))
	return pool, nil
}

func (da *DescriptorAllocator) allocate() (descriptorSet, error) {
	for i := len(da.pools) - 1; i >= 0; i-- {
		var set vk.DescriptorSet
		res := vk.AllocateDescriptorSets(da.context.Device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     da.pools[i],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{da.layout},
		}, &set)
		if res == vk.Success {
			return descriptorSet{Handle: set, pool: da.pools[i]}, nil
		}
		if res != vk.ErrorOutOfPoolMemory && res != vk.ErrorFragmentedPool {
			return descriptorSet{}, vkError("vkAllocateDescriptorSets", res)
		}
	}
	pool, err := da.newPool()
	if err != nil {
		return descriptorSet{}, err
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(da.context.Device.LogicalDevice, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{da.layout},
	}, &set); res != vk.Success {
		return descriptorSet{}, vkError("vkAllocateDescriptorSets", res)
	}
	return descriptorSet{Handle: set, pool: pool}, nil
}

// Get returns the set binding view with sampler, writing it on first use.
func (da *DescriptorAllocator) Get(key descriptorKey, view vk.ImageView, sampler vk.Sampler) (vk.DescriptorSet, error) {
	if s, ok := da.sets[key]; ok {
		return s.Handle, nil
	}
	var s descriptorSet
	err := da.context.Locks.SafeCall(DescriptorManagement, func() error {
		var err error
		s, err = da.allocate()
		return err
	})
	if err != nil {
		return s.Handle, err
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.Handle,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(da.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	da.sets[key] = s
	return s.Handle, nil
}

// Forget drops every set that binds the texture. The sets are returned to
// their pools by the returned function, which must run once no frame in
// flight uses them.
func (da *DescriptorAllocator) Forget(texture core.ObjectID) func() {
	var stale []descriptorSet
	for key, s := range da.sets {
		if key.texture == texture {
			stale = append(stale, s)
			delete(da.sets, key)
		}
	}
	return func() {
		for _, s := range stale {
			vk.FreeDescriptorSets(da.context.Device.LogicalDevice, s.pool, 1, &s.Handle)
		}
	}
}

func (da *DescriptorAllocator) Len() int {
	return len(da.sets)
}

// Destroy releases every pool and with it every set.
func (da *DescriptorAllocator) Destroy() {
	for _, pool := range da.pools {
		vk.DestroyDescriptorPool(da.context.Device.LogicalDevice, pool, da.context.Allocator)
	}
	da.pools = nil
	da.sets = make(map[descriptorKey]descriptorSet)
}
