package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/newengine/internal/gpu"
)

func (d *Device) CreateRenderGraph(info gpu.RenderGraphCreateInfo) (gpu.RenderGraph, error) {
	if len(info.Color) == 0 {
		return 0, fmt.Errorf("render graph has no color attachments")
	}
	for i, c := range info.Color {
		if c.Format != gpu.FormatRGBA8 {
			return 0, fmt.Errorf("render graph color %d: unsupported format %d", i, c.Format)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.RenderGraph(d.alloc())
	d.graphs[h] = info
	return h, nil
}

func (d *Device) DestroyRenderGraph(g gpu.RenderGraph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.graphs, g)
}

// CreateFramebuffer creates color textures and a depth-stencil renderbuffer
// for the graph. Attachments start in their final usage.
func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.graphs[info.Graph]
	if !ok {
		return 0, fmt.Errorf("render graph %d: %w", info.Graph, gpu.ErrInvalidHandle)
	}
	width, height := int32(info.Width), int32(info.Height)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	fb := &framebuffer{
		graph:  info.Graph,
		extent: gpu.Extent{Width: int(width), Height: int(height)},
	}

	gl.GenFramebuffers(1, &fb.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)

	drawBuffers := make([]uint32, 0, len(g.Color))
	for i, c := range g.Color {
		var tex uint32
		gl.GenTextures(1, &tex)
		gl.BindTexture(gl.TEXTURE_2D, tex)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, width, height, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
		attachment := uint32(gl.COLOR_ATTACHMENT0 + i)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attachment, gl.TEXTURE_2D, tex, 0)
		drawBuffers = append(drawBuffers, attachment)

		h := gpu.Texture(d.alloc())
		d.textures[h] = &texture{
			id:   tex,
			info: gpu.TextureCreateInfo{Width: int(width), Height: int(height), Format: c.Format},
		}
		fb.color = append(fb.color, h)
		fb.usage = append(fb.usage, c.FinalUsage)
	}
	gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])

	if g.Depth != nil {
		gl.GenRenderbuffers(1, &fb.depth)
		gl.BindRenderbuffer(gl.RENDERBUFFER, fb.depth)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH24_STENCIL8, width, height)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, gl.RENDERBUFFER, fb.depth)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		d.releaseFramebuffer(fb)
		return 0, fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}

	h := gpu.Framebuffer(d.alloc())
	d.fbs[h] = fb
	return h, nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fb, ok := d.fbs[h]; ok {
		d.releaseFramebuffer(fb)
		delete(d.fbs, h)
	}
}

// releaseFramebuffer deletes GL objects of fb. Callers hold mu.
func (d *Device) releaseFramebuffer(fb *framebuffer) {
	for _, h := range fb.color {
		if t, ok := d.textures[h]; ok {
			gl.DeleteTextures(1, &t.id)
			delete(d.textures, h)
		}
	}
	if fb.depth != 0 {
		gl.DeleteRenderbuffers(1, &fb.depth)
		fb.depth = 0
	}
	if fb.fbo != 0 {
		gl.DeleteFramebuffers(1, &fb.fbo)
		fb.fbo = 0
	}
}

func (d *Device) FramebufferColorAttachment(h gpu.Framebuffer, index int) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb, ok := d.fbs[h]
	if !ok || index < 0 || index >= len(fb.color) {
		return 0, fmt.Errorf("framebuffer %d attachment %d: %w", h, index, gpu.ErrInvalidHandle)
	}
	return fb.color[index], nil
}

func (d *Device) FramebufferExtent(h gpu.Framebuffer) (gpu.Extent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb, ok := d.fbs[h]
	if !ok {
		return gpu.Extent{}, fmt.Errorf("framebuffer %d: %w", h, gpu.ErrInvalidHandle)
	}
	return fb.extent, nil
}
