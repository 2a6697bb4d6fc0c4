package render

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/scene"
)

const slotSceneColor = 0

// CompositePass draws a fullscreen quad sampling the forward color attachment
// into the swapchain image.
type CompositePass struct {
	device gpu.Device
	log    *zap.Logger
	quad   QuadLayout

	shader   gpu.Shader
	layout   gpu.ResourceLayout
	set      gpu.ResourceSet
	pipeline gpu.Pipeline
	mesh     scene.Mesh

	swapchain gpu.Swapchain
}

// NewCompositePass returns an uninitialized composite pass drawing a quad in layout quad.
func NewCompositePass(device gpu.Device, quad QuadLayout, log *zap.Logger) *CompositePass {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompositePass{device: device, quad: quad, log: log}
}

// Init creates the pass resources against the swapchain's render graph.
func (p *CompositePass) Init(sc gpu.Swapchain) error {
	p.swapchain = sc
	var err error

	p.shader, err = p.device.CreateShader(gpu.ShaderCreateInfo{
		VertexPath:   p.quad.VertexShader(),
		FragmentPath: "/Shaders/FinalPass.frag",
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating composite shader: %w", err)
	}

	p.layout, err = p.device.CreateResourceLayout(gpu.ResourceLayoutCreateInfo{
		Bindings: []gpu.Binding{
			{Slot: slotSceneColor, Name: "SceneColor", Kind: gpu.BindingSampledTexture, Stages: gpu.StageFragment},
		},
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating composite resource layout: %w", err)
	}

	if err := p.createResourceSet(); err != nil {
		p.Destroy()
		return err
	}

	p.pipeline, err = p.device.CreatePipeline(gpu.PipelineCreateInfo{
		Shader:              p.shader,
		Layout:              p.layout,
		VertexAttributes:    p.quad.Attributes(),
		VertexStride:        p.quad.Stride(),
		Blend:               []gpu.BlendSettings{{Enabled: false}},
		CompatibleSwapchain: sc,
	})
	if err != nil {
		p.Destroy()
		return fmt.Errorf("creating composite pipeline: %w", err)
	}

	p.mesh, err = BuildQuad(p.device, p.quad)
	if err != nil {
		p.Destroy()
		return err
	}

	p.log.Debug("composite pass ready", zap.String("quad", p.quad.Name))
	return nil
}

func (p *CompositePass) createResourceSet() error {
	set, err := p.device.CreateResourceSet(gpu.ResourceSetCreateInfo{Layout: p.layout, Swapchain: p.swapchain})
	if err != nil {
		return fmt.Errorf("creating composite resource set: %w", err)
	}
	p.set = set
	return nil
}

// OnSwapchainRecreated rebuilds the swapchain-scoped resource set when the
// backend requires it. The sampled texture is rebound every frame.
func (p *CompositePass) OnSwapchainRecreated(sc gpu.Swapchain, _ gpu.Extent) error {
	p.swapchain = sc
	if !p.device.Capabilities().SwapchainScopedResourceSets {
		return nil
	}
	old := p.set
	if err := p.createResourceSet(); err != nil {
		return err
	}
	p.device.DestroyResourceSet(old)
	return nil
}

// ResourceSet returns the set holding the sampled scene color.
func (p *CompositePass) ResourceSet() gpu.ResourceSet {
	return p.set
}

// Quad returns the uploaded fullscreen quad.
func (p *CompositePass) Quad() scene.Mesh {
	return p.mesh
}

// Record points the sampled slot at source and draws the quad into the
// swapchain image. source must already be shader-readable.
func (p *CompositePass) Record(cb gpu.CommandBuffer, source gpu.Texture, extent gpu.Extent) error {
	d := p.device
	if err := d.UpdateResourceSetTexture(p.set, slotSceneColor, source); err != nil {
		return fmt.Errorf("binding scene color: %w", err)
	}

	d.BeginSwapchainRenderGraph(cb, p.swapchain, []gpu.ClearValue{gpu.ClearColor(0, 0, 0, 1)})
	d.BindPipeline(cb, p.pipeline)
	d.BindResources(cb, p.set)
	d.SetViewport(cb, 0, 0, extent.Width, extent.Height)
	d.SetScissor(cb, 0, 0, extent.Width, extent.Height)
	d.DrawIndexed(cb, p.mesh.Buffer, p.mesh.IndexCount)
	d.EndRenderGraph(cb)
	return nil
}

// Destroy releases every resource the pass created.
func (p *CompositePass) Destroy() {
	d := p.device
	if p.mesh.Buffer != 0 {
		d.DestroyVertexBuffer(p.mesh.Buffer)
		p.mesh = scene.Mesh{}
	}
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
}
