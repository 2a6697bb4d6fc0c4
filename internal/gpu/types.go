// Package gpu defines the graphics-device capability the renderer is written against.
//
// Every resource is an opaque handle; the zero value of each handle type means
// "none". Creation is synchronous. Command recording follows the explicit-API
// model: commands are recorded into a CommandBuffer between Begin and End and
// executed when the buffer is submitted against a swapchain.
package gpu

import (
	"errors"
	"fmt"
)

// Opaque resource handles.
type (
	Surface        uint32
	Swapchain      uint32
	CommandBuffer  uint32
	Shader         uint32
	Pipeline       uint32
	ResourceLayout uint32
	ResourceSet    uint32
	RenderGraph    uint32
	Framebuffer    uint32
	VertexBuffer   uint32
	Texture        uint32
)

var (
	// ErrSwapchainOutOfDate means the swapchain no longer matches the surface; recreate and retry next frame.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrDeviceLost is unrecoverable.
	ErrDeviceLost = errors.New("device lost")
	// ErrInvalidHandle is returned for unknown or destroyed handles.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrInvalidTransition is returned when an attachment is not in the expected usage.
	ErrInvalidTransition = errors.New("invalid attachment transition")
	// ErrNotRecording is returned when commands are recorded outside Begin/End.
	ErrNotRecording = errors.New("command buffer not recording")
	// ErrAlreadyUploaded is returned when static buffer data is uploaded twice.
	ErrAlreadyUploaded = errors.New("static buffer already uploaded")
)

// Extent is a size in pixels.
type Extent struct {
	Width  int
	Height int
}

// Empty reports whether the extent has no area (e.g. a minimized window).
func (e Extent) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

// Aspect returns width / height, or 1 for an empty extent.
func (e Extent) Aspect() float32 {
	if e.Empty() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// AttachmentUsage is how an attachment may currently be accessed.
type AttachmentUsage int

const (
	UsageUndefined AttachmentUsage = iota
	UsageColorAttachment
	UsageDepthStencilAttachment
	UsageShaderRead
	UsagePresent
)

func (u AttachmentUsage) String() string {
	switch u {
	case UsageColorAttachment:
		return "color-attachment"
	case UsageDepthStencilAttachment:
		return "depth-stencil-attachment"
	case UsageShaderRead:
		return "shader-read"
	case UsagePresent:
		return "present"
	default:
		return "undefined"
	}
}

// Format is a texel format.
type Format int

const (
	FormatRGBA8 Format = iota + 1
	FormatDepth24Stencil8
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat int

const (
	Float2 VertexFormat = iota + 1
	Float3
	Float4
)

// Components returns the number of float components.
func (f VertexFormat) Components() int {
	switch f {
	case Float2:
		return 2
	case Float3:
		return 3
	case Float4:
		return 4
	default:
		return 0
	}
}

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() int {
	return f.Components() * 4
}

// VertexAttribute describes one attribute within an interleaved vertex.
type VertexAttribute struct {
	Format VertexFormat
	Offset int
}

// BufferUsage is the update frequency of a buffer.
type BufferUsage int

const (
	// BufferStatic data is uploaded exactly once.
	BufferStatic BufferUsage = iota
	BufferDynamic
)

// ShaderStage is a bitmask of pipeline stages.
type ShaderStage uint8

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

// BindingKind is the resource type bound at a slot.
type BindingKind int

const (
	BindingUniformBuffer BindingKind = iota
	BindingSampledTexture
)

// Binding is one slot of a resource layout.
type Binding struct {
	Slot   int
	Name   string // uniform block or sampler name in the shader
	Kind   BindingKind
	Stages ShaderStage
	Size   int // uniform buffer size in bytes
}

// ClearKind selects which ClearValue fields apply.
type ClearKind int

const (
	ClearFloat ClearKind = iota
	ClearDepthStencil
)

// ClearValue is the clear applied to one attachment when a render graph begins.
type ClearValue struct {
	Kind    ClearKind
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ClearColor returns a color clear value.
func ClearColor(r, g, b, a float32) ClearValue {
	return ClearValue{Kind: ClearFloat, Color: [4]float32{r, g, b, a}}
}

// ClearDepth returns a depth-stencil clear value.
func ClearDepth(depth float32) ClearValue {
	return ClearValue{Kind: ClearDepthStencil, Depth: depth}
}

// Capabilities describes backend behavior the renderer must adapt to.
type Capabilities struct {
	Name string
	// SwapchainScopedResourceSets is true when resource sets created against a
	// swapchain must be rebuilt whenever that swapchain is recreated.
	SwapchainScopedResourceSets bool
}

// ShaderCreateInfo names shader sources by virtual path, e.g. /Shaders/Forward.vert.
type ShaderCreateInfo struct {
	VertexPath   string
	FragmentPath string
}

// ResourceLayoutCreateInfo describes the bindable slots of a layout.
type ResourceLayoutCreateInfo struct {
	Bindings []Binding
}

// ResourceSetCreateInfo creates a concrete set for a layout.
type ResourceSetCreateInfo struct {
	Layout ResourceLayout
	// Swapchain scopes the set to a swapchain; zero for an unscoped set.
	Swapchain Swapchain
}

// BlendSettings configures blending for one color attachment.
type BlendSettings struct {
	Enabled bool
}

// PipelineCreateInfo describes a graphics pipeline.
type PipelineCreateInfo struct {
	Shader           Shader
	Layout           ResourceLayout
	VertexAttributes []VertexAttribute
	VertexStride     int
	DepthTest        bool
	DepthWrite       bool
	Blend            []BlendSettings

	// Exactly one of RenderGraph or CompatibleSwapchain names the target the pipeline renders into.
	RenderGraph         RenderGraph
	CompatibleSwapchain Swapchain
}

// AttachmentDesc describes one render graph attachment.
type AttachmentDesc struct {
	Format       Format
	InitialUsage AttachmentUsage
	FinalUsage   AttachmentUsage
}

// RenderGraphCreateInfo describes the attachments a render graph clears and writes.
type RenderGraphCreateInfo struct {
	Color []AttachmentDesc
	Depth *AttachmentDesc
}

// FramebufferCreateInfo creates attachments matching a render graph.
type FramebufferCreateInfo struct {
	Graph  RenderGraph
	Width  int
	Height int
}

// VertexBufferCreateInfo describes a vertex buffer with an optional index region.
type VertexBufferCreateInfo struct {
	VertexSize        int
	IndexSize         int
	CreateIndexBuffer bool
	Usage             BufferUsage
}

// TextureCreateInfo describes a sampled 2D texture.
type TextureCreateInfo struct {
	Width  int
	Height int
	Format Format
}
