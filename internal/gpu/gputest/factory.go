package gputest

import (
	"fmt"

	"github.com/Faultbox/newengine/internal/gpu"
)

func (d *Device) CreateShader(info gpu.ShaderCreateInfo) (gpu.Shader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateShader", 0, info); err != nil {
		return 0, err
	}
	if info.VertexPath == "" || info.FragmentPath == "" {
		return 0, fmt.Errorf("shader: missing stage path")
	}
	h := gpu.Shader(d.alloc())
	d.shaders[h] = info
	return h, nil
}

func (d *Device) DestroyShader(s gpu.Shader) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyShader", uint32(s))
	delete(d.shaders, s)
}

func (d *Device) CreateResourceLayout(info gpu.ResourceLayoutCreateInfo) (gpu.ResourceLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateResourceLayout", 0, info); err != nil {
		return 0, err
	}
	h := gpu.ResourceLayout(d.alloc())
	d.layouts[h] = info
	return h, nil
}

func (d *Device) DestroyResourceLayout(l gpu.ResourceLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyResourceLayout", uint32(l))
	delete(d.layouts, l)
}

func (d *Device) CreateResourceSet(info gpu.ResourceSetCreateInfo) (gpu.ResourceSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateResourceSet", 0, info); err != nil {
		return 0, err
	}
	if _, ok := d.layouts[info.Layout]; !ok {
		return 0, fmt.Errorf("resource set layout %d: %w", info.Layout, gpu.ErrInvalidHandle)
	}
	if info.Swapchain != 0 {
		if _, ok := d.swapchains[info.Swapchain]; !ok {
			return 0, fmt.Errorf("resource set swapchain %d: %w", info.Swapchain, gpu.ErrInvalidHandle)
		}
	}
	h := gpu.ResourceSet(d.alloc())
	d.sets[h] = &resourceSet{
		info:     info,
		textures: make(map[int]gpu.Texture),
		uniforms: make(map[int][]byte),
	}
	return h, nil
}

func (d *Device) DestroyResourceSet(s gpu.ResourceSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyResourceSet", uint32(s))
	delete(d.sets, s)
}

func (d *Device) UpdateResourceSetTexture(set gpu.ResourceSet, slot int, tex gpu.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("UpdateResourceSetTexture", uint32(set), slot, tex); err != nil {
		return err
	}
	s, ok := d.sets[set]
	if !ok {
		return fmt.Errorf("resource set %d: %w", set, gpu.ErrInvalidHandle)
	}
	if _, ok := d.textures[tex]; !ok {
		return fmt.Errorf("texture %d: %w", tex, gpu.ErrInvalidHandle)
	}
	s.textures[slot] = tex
	return nil
}

func (d *Device) CreatePipeline(info gpu.PipelineCreateInfo) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreatePipeline", 0, info); err != nil {
		return 0, err
	}
	if _, ok := d.shaders[info.Shader]; !ok {
		return 0, fmt.Errorf("pipeline shader %d: %w", info.Shader, gpu.ErrInvalidHandle)
	}
	if (info.RenderGraph == 0) == (info.CompatibleSwapchain == 0) {
		return 0, fmt.Errorf("pipeline needs exactly one render target")
	}
	h := gpu.Pipeline(d.alloc())
	d.pipelines[h] = info
	return h, nil
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyPipeline", uint32(p))
	delete(d.pipelines, p)
}

func (d *Device) CreateRenderGraph(info gpu.RenderGraphCreateInfo) (gpu.RenderGraph, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateRenderGraph", 0, info); err != nil {
		return 0, err
	}
	h := gpu.RenderGraph(d.alloc())
	d.graphs[h] = info
	return h, nil
}

func (d *Device) DestroyRenderGraph(g gpu.RenderGraph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyRenderGraph", uint32(g))
	delete(d.graphs, g)
}

// CreateFramebuffer creates attachments in their graph's final usage.
func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateFramebuffer", 0, info); err != nil {
		return 0, err
	}
	g, ok := d.graphs[info.Graph]
	if !ok {
		return 0, fmt.Errorf("framebuffer graph %d: %w", info.Graph, gpu.ErrInvalidHandle)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return 0, fmt.Errorf("framebuffer size %dx%d", info.Width, info.Height)
	}
	fb := &framebuffer{
		graph:  info.Graph,
		extent: gpu.Extent{Width: info.Width, Height: info.Height},
	}
	for _, c := range g.Color {
		tex := gpu.Texture(d.alloc())
		d.textures[tex] = gpu.TextureCreateInfo{Width: info.Width, Height: info.Height, Format: c.Format}
		fb.color = append(fb.color, tex)
		fb.usage = append(fb.usage, c.FinalUsage)
	}
	h := gpu.Framebuffer(d.alloc())
	d.fbs[h] = fb
	return h, nil
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyFramebuffer", uint32(fb))
	if f, ok := d.fbs[fb]; ok {
		for _, tex := range f.color {
			delete(d.textures, tex)
		}
	}
	delete(d.fbs, fb)
}

func (d *Device) FramebufferColorAttachment(fb gpu.Framebuffer, index int) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fbs[fb]
	if !ok {
		return 0, fmt.Errorf("framebuffer %d: %w", fb, gpu.ErrInvalidHandle)
	}
	if index < 0 || index >= len(f.color) {
		return 0, fmt.Errorf("framebuffer %d attachment %d: %w", fb, index, gpu.ErrInvalidHandle)
	}
	return f.color[index], nil
}

func (d *Device) FramebufferExtent(fb gpu.Framebuffer) (gpu.Extent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fbs[fb]
	if !ok {
		return gpu.Extent{}, fmt.Errorf("framebuffer %d: %w", fb, gpu.ErrInvalidHandle)
	}
	return f.extent, nil
}

func (d *Device) CreateVertexBuffer(info gpu.VertexBufferCreateInfo) (gpu.VertexBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateVertexBuffer", 0, info); err != nil {
		return 0, err
	}
	h := gpu.VertexBuffer(d.alloc())
	d.vbs[h] = &vertexBuffer{info: info}
	return h, nil
}

func (d *Device) UploadVertexData(vb gpu.VertexBuffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("UploadVertexData", uint32(vb), len(data)); err != nil {
		return err
	}
	b, ok := d.vbs[vb]
	if !ok {
		return fmt.Errorf("vertex buffer %d: %w", vb, gpu.ErrInvalidHandle)
	}
	if b.info.Usage == gpu.BufferStatic && b.vertexUploads > 0 {
		return fmt.Errorf("vertex buffer %d: %w", vb, gpu.ErrAlreadyUploaded)
	}
	if len(data) > b.info.VertexSize {
		return fmt.Errorf("vertex buffer %d: %d bytes exceeds size %d", vb, len(data), b.info.VertexSize)
	}
	b.vertexUploads++
	b.vertexData = append([]byte(nil), data...)
	return nil
}

func (d *Device) UploadIndexData(vb gpu.VertexBuffer, indices []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("UploadIndexData", uint32(vb), len(indices)); err != nil {
		return err
	}
	b, ok := d.vbs[vb]
	if !ok {
		return fmt.Errorf("vertex buffer %d: %w", vb, gpu.ErrInvalidHandle)
	}
	if !b.info.CreateIndexBuffer {
		return fmt.Errorf("vertex buffer %d has no index region", vb)
	}
	if b.info.Usage == gpu.BufferStatic && b.indexUploads > 0 {
		return fmt.Errorf("index buffer %d: %w", vb, gpu.ErrAlreadyUploaded)
	}
	if len(indices)*4 > b.info.IndexSize {
		return fmt.Errorf("index buffer %d: %d bytes exceeds size %d", vb, len(indices)*4, b.info.IndexSize)
	}
	b.indexUploads++
	b.indices = append([]uint32(nil), indices...)
	return nil
}

func (d *Device) DestroyVertexBuffer(vb gpu.VertexBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyVertexBuffer", uint32(vb))
	delete(d.vbs, vb)
}

func (d *Device) CreateTexture(info gpu.TextureCreateInfo) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateTexture", 0, info); err != nil {
		return 0, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return 0, fmt.Errorf("texture size %dx%d", info.Width, info.Height)
	}
	h := gpu.Texture(d.alloc())
	d.textures[h] = info
	return h, nil
}

func (d *Device) UploadTextureData(tex gpu.Texture, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("UploadTextureData", uint32(tex), len(pixels)); err != nil {
		return err
	}
	info, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("texture %d: %w", tex, gpu.ErrInvalidHandle)
	}
	if want := info.Width * info.Height * 4; len(pixels) != want {
		return fmt.Errorf("texture %d: got %d bytes, want %d", tex, len(pixels), want)
	}
	return nil
}

func (d *Device) DestroyTexture(tex gpu.Texture) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyTexture", uint32(tex))
	delete(d.textures, tex)
}
