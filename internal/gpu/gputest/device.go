// Package gputest provides a recording gpu.Device for tests.
//
// The fake enforces the rules a real explicit-API device would: commands
// outside Begin/End fail, attachment transitions must name the current usage,
// render graphs must start with attachments in their declared initial usage,
// and static buffers accept exactly one upload.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Faultbox/newengine/internal/gpu"
)

// Call is one recorded device call.
type Call struct {
	Op     string
	Handle uint32
	Args   []any
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%d)", c.Op, c.Handle)
}

type vertexBuffer struct {
	info          gpu.VertexBufferCreateInfo
	vertexData    []byte
	indices       []uint32
	vertexUploads int
	indexUploads  int
}

type framebuffer struct {
	graph  gpu.RenderGraph
	extent gpu.Extent
	usage  []gpu.AttachmentUsage
	color  []gpu.Texture
}

type commandBuffer struct {
	swapchain gpu.Swapchain
	recording bool
	inGraph   bool
	graphFB   gpu.Framebuffer
	graph     gpu.RenderGraph
	err       error
	ops       []Call
}

type resourceSet struct {
	info     gpu.ResourceSetCreateInfo
	textures map[int]gpu.Texture
	uniforms map[int][]byte
}

// Device is a recording fake implementing gpu.Device.
type Device struct {
	mu sync.Mutex

	// Caps is returned by Capabilities.
	Caps gpu.Capabilities

	next  uint32
	calls []Call
	fail  map[string][]error

	surfaces   map[gpu.Surface]gpu.SurfaceTarget
	swapchains map[gpu.Swapchain]gpu.Extent
	commands   map[gpu.CommandBuffer]*commandBuffer
	shaders    map[gpu.Shader]gpu.ShaderCreateInfo
	layouts    map[gpu.ResourceLayout]gpu.ResourceLayoutCreateInfo
	sets       map[gpu.ResourceSet]*resourceSet
	pipelines  map[gpu.Pipeline]gpu.PipelineCreateInfo
	graphs     map[gpu.RenderGraph]gpu.RenderGraphCreateInfo
	fbs        map[gpu.Framebuffer]*framebuffer
	vbs        map[gpu.VertexBuffer]*vertexBuffer
	textures   map[gpu.Texture]gpu.TextureCreateInfo

	frames int
}

var _ gpu.Device = (*Device)(nil)

// NewDevice returns an empty fake device.
func NewDevice() *Device {
	return &Device{
		Caps:       gpu.Capabilities{Name: "fake"},
		fail:       make(map[string][]error),
		surfaces:   make(map[gpu.Surface]gpu.SurfaceTarget),
		swapchains: make(map[gpu.Swapchain]gpu.Extent),
		commands:   make(map[gpu.CommandBuffer]*commandBuffer),
		shaders:    make(map[gpu.Shader]gpu.ShaderCreateInfo),
		layouts:    make(map[gpu.ResourceLayout]gpu.ResourceLayoutCreateInfo),
		sets:       make(map[gpu.ResourceSet]*resourceSet),
		pipelines:  make(map[gpu.Pipeline]gpu.PipelineCreateInfo),
		graphs:     make(map[gpu.RenderGraph]gpu.RenderGraphCreateInfo),
		fbs:        make(map[gpu.Framebuffer]*framebuffer),
		vbs:        make(map[gpu.VertexBuffer]*vertexBuffer),
		textures:   make(map[gpu.Texture]gpu.TextureCreateInfo),
	}
}

// FailNext makes the next call to op return err. Multiple calls queue.
func (d *Device) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = append(d.fail[op], err)
}

// Calls returns a copy of every recorded call in order.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Ops returns the op names of every recorded call in order.
func (d *Device) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Op
	}
	return out
}

// ClearCalls forgets recorded calls.
func (d *Device) ClearCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Recorded returns the commands recorded into cb since its last Reset.
func (d *Device) Recorded(cb gpu.CommandBuffer) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commands[cb]
	if !ok {
		return nil
	}
	out := make([]string, len(c.ops))
	for i, op := range c.ops {
		out[i] = op.Op
	}
	return out
}

// Frames returns the number of presented frames.
func (d *Device) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Live returns the number of resources not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surfaces) + len(d.swapchains) + len(d.commands) + len(d.shaders) +
		len(d.layouts) + len(d.sets) + len(d.pipelines) + len(d.graphs) +
		len(d.fbs) + len(d.vbs) + len(d.textures)
}

// VertexData returns the uploaded vertex bytes and indices of vb.
func (d *Device) VertexData(vb gpu.VertexBuffer) ([]byte, []uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.vbs[vb]
	if !ok {
		return nil, nil, false
	}
	return b.vertexData, b.indices, true
}

// Uniform returns the last bytes written to a uniform slot of set.
func (d *Device) Uniform(set gpu.ResourceSet, slot int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[set]
	if !ok {
		return nil
	}
	return s.uniforms[slot]
}

// SetTexture returns the texture bound at a sampled slot of set.
func (d *Device) SetTexture(set gpu.ResourceSet, slot int) gpu.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[set]
	if !ok {
		return 0
	}
	return s.textures[slot]
}

// AttachmentUsage returns the current usage of a framebuffer color attachment.
func (d *Device) AttachmentUsage(fb gpu.Framebuffer, index int) gpu.AttachmentUsage {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fbs[fb]
	if !ok || index < 0 || index >= len(f.usage) {
		return gpu.UsageUndefined
	}
	return f.usage[index]
}

// ResourceSetInfo returns the create info of set.
func (d *Device) ResourceSetInfo(set gpu.ResourceSet) (gpu.ResourceSetCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[set]
	if !ok {
		return gpu.ResourceSetCreateInfo{}, false
	}
	return s.info, true
}

// record appends a call and pops an injected failure for op. Callers hold mu.
func (d *Device) record(op string, handle uint32, args ...any) error {
	d.calls = append(d.calls, Call{Op: op, Handle: handle, Args: args})
	if q := d.fail[op]; len(q) > 0 {
		d.fail[op] = q[1:]
		return q[0]
	}
	return nil
}

func (d *Device) alloc() uint32 {
	d.next++
	return d.next
}
