package vulkan

// Readback copies into a host visible staging buffer recorded in the
// current frame. The bytes are taken out once the frame's fence signals.
type Readback struct {
	staging  *deviceBuffer
	size     int
	data     []byte
	complete bool
}

// finish runs on the frame scheduler after the copy executed.
func (r *Readback) finish(b *Backend) {
	if r.staging == nil {
		return
	}
	r.data = make([]byte, r.size)
	copy(r.data, r.staging.data[:r.size])
	r.staging.destroy(b.context)
	r.staging = nil
	r.complete = true
}

func (r *Readback) Update() bool     { return r.complete }
func (r *Readback) IsComplete() bool { return r.complete }
func (r *Readback) Data() []byte     { return r.data }

// Err is always nil: a failed copy surfaces as a device error on submit.
func (r *Readback) Err() error { return nil }
