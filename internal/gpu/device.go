package gpu

// SurfaceTarget is what a window provides to host a rendering surface.
type SurfaceTarget interface {
	Size() (width, height int)
	MakeCurrent() error
	SwapBuffers()
}

// Factory creates and destroys GPU resources.
type Factory interface {
	CreateShader(info ShaderCreateInfo) (Shader, error)
	DestroyShader(s Shader)

	CreateResourceLayout(info ResourceLayoutCreateInfo) (ResourceLayout, error)
	DestroyResourceLayout(l ResourceLayout)
	CreateResourceSet(info ResourceSetCreateInfo) (ResourceSet, error)
	DestroyResourceSet(s ResourceSet)
	// UpdateResourceSetTexture points a sampled-texture slot at tex.
	UpdateResourceSetTexture(set ResourceSet, slot int, tex Texture) error

	CreatePipeline(info PipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CreateRenderGraph(info RenderGraphCreateInfo) (RenderGraph, error)
	DestroyRenderGraph(g RenderGraph)

	CreateFramebuffer(info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)
	FramebufferColorAttachment(fb Framebuffer, index int) (Texture, error)
	FramebufferExtent(fb Framebuffer) (Extent, error)

	CreateVertexBuffer(info VertexBufferCreateInfo) (VertexBuffer, error)
	UploadVertexData(vb VertexBuffer, data []byte) error
	UploadIndexData(vb VertexBuffer, indices []uint32) error
	DestroyVertexBuffer(vb VertexBuffer)

	CreateTexture(info TextureCreateInfo) (Texture, error)
	UploadTextureData(tex Texture, pixels []byte) error
	DestroyTexture(tex Texture)
}

// Commands records work into a command buffer. Recording calls do not return
// errors; the first recording error is reported by End.
type Commands interface {
	Reset(cb CommandBuffer) error
	Begin(cb CommandBuffer) error
	End(cb CommandBuffer) error

	BeginRenderGraph(cb CommandBuffer, graph RenderGraph, fb Framebuffer, clears []ClearValue)
	BeginSwapchainRenderGraph(cb CommandBuffer, sc Swapchain, clears []ClearValue)
	EndRenderGraph(cb CommandBuffer)

	BindPipeline(cb CommandBuffer, p Pipeline)
	BindResources(cb CommandBuffer, set ResourceSet)
	SetViewport(cb CommandBuffer, x, y, width, height int)
	SetScissor(cb CommandBuffer, x, y, width, height int)
	DrawIndexed(cb CommandBuffer, vb VertexBuffer, indexCount uint32)

	// UpdateUniform writes data into a uniform-buffer slot of set at offset.
	UpdateUniform(cb CommandBuffer, set ResourceSet, slot, offset int, data []byte)
	// TransitionAttachment changes how a framebuffer attachment may be accessed.
	TransitionAttachment(cb CommandBuffer, fb Framebuffer, index int, from, to AttachmentUsage)
}

// Presenter owns surfaces, swapchains and frame pacing.
type Presenter interface {
	Capabilities() Capabilities

	CreateSurface(target SurfaceTarget) (Surface, error)
	// InitializeForSurface completes device initialization against a surface.
	InitializeForSurface(s Surface) error
	DestroySurface(s Surface)

	CreateSwapchain(s Surface, width, height int) (Swapchain, error)
	RecreateSwapchain(sc Swapchain, s Surface, width, height int) error
	SwapchainExtent(sc Swapchain) (Extent, error)
	DestroySwapchain(sc Swapchain)

	CreateCommandBuffer(sc Swapchain) (CommandBuffer, error)
	DestroyCommandBuffer(cb CommandBuffer)

	// BeginFrame acquires the next presentable image.
	BeginFrame(sc Swapchain, s Surface) error
	// Submit executes cb for the swapchain's current frame.
	Submit(sc Swapchain, cb CommandBuffer) error
	// EndFrame presents the current image.
	EndFrame(sc Swapchain, s Surface) error
}

// Device is the full capability the renderer consumes.
type Device interface {
	Factory
	Commands
	Presenter
}
