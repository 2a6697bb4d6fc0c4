// Package glbackend implements gpu.Device on OpenGL 4.1 core.
//
// The surface is the window's GL context and the swapchain is the default
// framebuffer. Command buffers record closures that run on Submit. Attachment
// transitions are tracked and validated but need no GL work.
package glbackend

import (
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
)

type program struct {
	id uint32
}

type layout struct {
	bindings []gpu.Binding
}

type resourceSet struct {
	layout    gpu.ResourceLayout
	swapchain gpu.Swapchain
	ubos      map[int]uint32 // slot -> GL buffer
	textures  map[int]gpu.Texture
}

type pipeline struct {
	info    gpu.PipelineCreateInfo
	program uint32
}

type framebuffer struct {
	graph  gpu.RenderGraph
	fbo    uint32
	depth  uint32
	color  []gpu.Texture
	usage  []gpu.AttachmentUsage
	extent gpu.Extent
}

type vertexBuffer struct {
	info          gpu.VertexBufferCreateInfo
	vao           uint32
	vbo           uint32
	ebo           uint32
	vertexUploads int
	indexUploads  int
}

type texture struct {
	id      uint32
	info    gpu.TextureCreateInfo
	mipmaps bool
	owned   bool // false for framebuffer attachments
}

type surface struct {
	target gpu.SurfaceTarget
}

type swapchain struct {
	surface gpu.Surface
	extent  gpu.Extent
}

type commandBuffer struct {
	swapchain gpu.Swapchain
	recording bool
	err       error
	ops       []func(*frameState) error
}

// frameState is the GL state a command buffer carries while executing.
type frameState struct {
	pipeline *pipeline
	graph    gpu.RenderGraph
	fb       *framebuffer
	inGraph  bool
}

// Device is an OpenGL gpu.Device. All methods must be called on the thread
// owning the GL context.
type Device struct {
	log     *zap.Logger
	shaders fs.FS

	mu   sync.Mutex
	next uint32

	surfaces   map[gpu.Surface]*surface
	swapchains map[gpu.Swapchain]*swapchain
	commands   map[gpu.CommandBuffer]*commandBuffer
	programs   map[gpu.Shader]*program
	layouts    map[gpu.ResourceLayout]*layout
	sets       map[gpu.ResourceSet]*resourceSet
	pipelines  map[gpu.Pipeline]*pipeline
	graphs     map[gpu.RenderGraph]gpu.RenderGraphCreateInfo
	fbs        map[gpu.Framebuffer]*framebuffer
	vbs        map[gpu.VertexBuffer]*vertexBuffer
	textures   map[gpu.Texture]*texture

	initialized bool
}

var _ gpu.Device = (*Device)(nil)

// New creates a device loading shader sources from shaders (see ShaderFS).
func New(log *zap.Logger, shaders fs.FS) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{
		log:        log,
		shaders:    shaders,
		surfaces:   make(map[gpu.Surface]*surface),
		swapchains: make(map[gpu.Swapchain]*swapchain),
		commands:   make(map[gpu.CommandBuffer]*commandBuffer),
		programs:   make(map[gpu.Shader]*program),
		layouts:    make(map[gpu.ResourceLayout]*layout),
		sets:       make(map[gpu.ResourceSet]*resourceSet),
		pipelines:  make(map[gpu.Pipeline]*pipeline),
		graphs:     make(map[gpu.RenderGraph]gpu.RenderGraphCreateInfo),
		fbs:        make(map[gpu.Framebuffer]*framebuffer),
		vbs:        make(map[gpu.VertexBuffer]*vertexBuffer),
		textures:   make(map[gpu.Texture]*texture),
	}
}

// Capabilities reports GL behavior. Resource sets are plain GL buffers and
// survive default-framebuffer resizes.
func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{Name: "opengl-4.1"}
}

func (d *Device) alloc() uint32 {
	d.next++
	return d.next
}
