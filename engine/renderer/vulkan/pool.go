package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement      LockGroup = "resource_management"
	CommandBufferManagement LockGroup = "command_buffer_management"
	PipelineManagement      LockGroup = "pipeline_management"
	DescriptorManagement    LockGroup = "descriptor_management"
)

// LockPool serializes the calls Vulkan requires to be externally
// synchronized. Queue submission is guarded per queue family.
type LockPool struct {
	mu    sync.Mutex // Protects access to the locks map
	locks map[LockGroup]*sync.Mutex

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (lp *LockPool) lock(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, exists := lp.locks[group]
	if !exists {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()

	l.Lock()
	return l
}

func (lp *LockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lp.lock(group)
	defer l.Unlock()
	return fn()
}

func (lp *LockPool) SetQueueFamily(index uint32) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if _, exists := lp.queueMutexes[index]; !exists {
		lp.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn holding the lock of the queue family. The family
// must have been registered with SetQueueFamily.
func (lp *LockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	lp.mu.Lock()
	l, ok := lp.queueMutexes[queueFamilyIndex]
	lp.mu.Unlock()
	if !ok {
		lp.SetQueueFamily(queueFamilyIndex)
		return lp.SafeQueueCall(queueFamilyIndex, fn)
	}

	l.Lock()
	defer l.Unlock()
	return fn()
}
