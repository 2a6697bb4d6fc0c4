package render

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/camera"
	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/scene"
)

// Forward pass resource slots.
const (
	slotViewData  = 0
	slotLightData = 1
)

// ForwardPass shades every scene mesh into an offscreen color and depth framebuffer.
type ForwardPass struct {
	device gpu.Device
	log    *zap.Logger

	lighting bool
	lightDir [3]float32

	shader   gpu.Shader
	layout   gpu.ResourceLayout
	set      gpu.ResourceSet
	graph    gpu.RenderGraph
	fb       gpu.Framebuffer
	pipeline gpu.Pipeline

	swapchain gpu.Swapchain
	extent    gpu.Extent
}

// NewForwardPass returns an uninitialized forward pass.
func NewForwardPass(device gpu.Device, lighting bool, lightDir [3]float32, log *zap.Logger) *ForwardPass {
	if log == nil {
		log = zap.NewNop()
	}
	return &ForwardPass{device: device, lighting: lighting, lightDir: lightDir, log: log}
}

// Init creates the pass resources sized to extent.
func (p *ForwardPass) Init(sc gpu.Swapchain, extent gpu.Extent) error {
	p.swapchain = sc
	var err error

	p.graph, err = p.device.CreateRenderGraph(gpu.RenderGraphCreateInfo{
		Color: []gpu.AttachmentDesc{{
			Format:       gpu.FormatRGBA8,
			InitialUsage: gpu.UsageColorAttachment,
			FinalUsage:   gpu.UsageShaderRead,
		}},
		Depth: &gpu.AttachmentDesc{
			Format:       gpu.FormatDepth24Stencil8,
			InitialUsage: gpu.UsageDepthStencilAttachment,
			FinalUsage:   gpu.UsageDepthStencilAttachment,
		},
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating forward render graph: %w", err)
	}

	if err := p.createFramebuffer(extent); err != nil {
		p.Destroy()
		return err
	}

	p.shader, err = p.device.CreateShader(gpu.ShaderCreateInfo{
		VertexPath:   "/Shaders/Forward.vert",
		FragmentPath: "/Shaders/Forward.frag",
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating forward shader: %w", err)
	}

	p.layout, err = p.device.CreateResourceLayout(gpu.ResourceLayoutCreateInfo{
		Bindings: []gpu.Binding{
			{Slot: slotViewData, Name: "ViewData", Kind: gpu.BindingUniformBuffer, Stages: gpu.StageVertex, Size: viewDataSize},
			{Slot: slotLightData, Name: "LightData", Kind: gpu.BindingUniformBuffer, Stages: gpu.StageFragment, Size: lightDataSize},
		},
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating forward resource layout: %w", err)
	}

	if err := p.createResourceSet(); err != nil {
		p.Destroy()
		return err
	}

	p.pipeline, err = p.device.CreatePipeline(gpu.PipelineCreateInfo{
		Shader:           p.shader,
		Layout:           p.layout,
		VertexAttributes: scene.VertexAttributes,
		VertexStride:     scene.VertexStride,
		DepthTest:        true,
		DepthWrite:       true,
		Blend:            []gpu.BlendSettings{{Enabled: false}},
		RenderGraph:      p.graph,
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating forward pipeline: %w", err)
	}

	p.log.Debug("forward pass ready", zap.Stringer("extent", p.extent))
	return nil
}

func (p *ForwardPass) createFramebuffer(extent gpu.Extent) error {
	fb, err := p.device.CreateFramebuffer(gpu.FramebufferCreateInfo{
		Graph:  p.graph,
		Width:  extent.Width,
		Height: extent.Height,
	})
	if err != nil {
		return fmt.Errorf("creating forward framebuffer %s: %w", extent, err)
	}
	p.fb = fb
	p.extent = extent
	return nil
}

func (p *ForwardPass) createResourceSet() error {
	set, err := p.device.CreateResourceSet(gpu.ResourceSetCreateInfo{Layout: p.layout, Swapchain: p.swapchain})
	if err != nil {
		return fmt.Errorf("creating forward resource set: %w", err)
	}
	p.set = set
	return nil
}

// OnSwapchainRecreated rebuilds the framebuffer at the new extent, and the
// resource set when the backend scopes sets to the swapchain.
func (p *ForwardPass) OnSwapchainRecreated(sc gpu.Swapchain, extent gpu.Extent) error {
	p.swapchain = sc
	if extent != p.extent {
		old := p.fb
		if err := p.createFramebuffer(extent); err != nil {
			return err
		}
		p.device.DestroyFramebuffer(old)
	}

	if p.device.Capabilities().SwapchainScopedResourceSets {
		old := p.set
		if err := p.createResourceSet(); err != nil {
			return err
		}
		p.device.DestroyResourceSet(old)
	}
	return nil
}

// Framebuffer returns the offscreen framebuffer.
func (p *ForwardPass) Framebuffer() gpu.Framebuffer {
	return p.fb
}

// ResourceSet returns the set holding the view and light uniforms.
func (p *ForwardPass) ResourceSet() gpu.ResourceSet {
	return p.set
}

// ColorAttachment returns the texture the composite pass samples.
func (p *ForwardPass) ColorAttachment() (gpu.Texture, error) {
	return p.device.FramebufferColorAttachment(p.fb, 0)
}

// Record draws every mesh of scn into the offscreen framebuffer. The color
// attachment enters shader-readable and leaves shader-readable.
func (p *ForwardPass) Record(cb gpu.CommandBuffer, cam *camera.Camera, scn *scene.Scene, extent gpu.Extent) {
	d := p.device

	d.TransitionAttachment(cb, p.fb, 0, gpu.UsageShaderRead, gpu.UsageColorAttachment)
	d.BeginRenderGraph(cb, p.graph, p.fb, []gpu.ClearValue{
		gpu.ClearColor(0, 0, 0, 1),
		gpu.ClearDepth(1),
	})

	vp := cam.UniformViewProjection()
	d.UpdateUniform(cb, p.set, slotViewData, 0, putFloats(vp[:]...))

	var enabled float32
	if p.lighting {
		enabled = 1
	}
	eye := cam.Position
	d.UpdateUniform(cb, p.set, slotLightData, 0, putFloats(
		eye.X, eye.Y, eye.Z, 1,
		p.lightDir[0], p.lightDir[1], p.lightDir[2], enabled,
	))

	d.BindPipeline(cb, p.pipeline)
	d.BindResources(cb, p.set)
	d.SetViewport(cb, 0, 0, extent.Width, extent.Height)
	d.SetScissor(cb, 0, 0, extent.Width, extent.Height)

	if scn != nil {
		for _, m := range scn.Meshes {
			d.DrawIndexed(cb, m.Buffer, m.IndexCount)
		}
	}

	d.EndRenderGraph(cb)
}

// Destroy releases every resource the pass created. It is safe to call on a
// partially initialized pass.
func (p *ForwardPass) Destroy() {
	d := p.device
	if p.pipeline != 0 {
		d.DestroyPipeline(p.pipeline)
		p.pipeline = 0
	}
	if p.set != 0 {
		d.DestroyResourceSet(p.set)
		p.set = 0
	}
	if p.layout != 0 {
		d.DestroyResourceLayout(p.layout)
		p.layout = 0
	}
	if p.shader != 0 {
		d.DestroyShader(p.shader)
		p.shader = 0
	}
	if p.fb != 0 {
		d.DestroyFramebuffer(p.fb)
		p.fb = 0
	}
	if p.graph != 0 {
		d.DestroyRenderGraph(p.graph)
		p.graph = 0
	}
}
