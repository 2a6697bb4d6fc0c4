package glbackend

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/newengine/internal/gpu"
)

var errGraphOpen = errors.New("render graph still open")

// record appends op to cb when it is recording.
func (d *Device) record(cb gpu.CommandBuffer, name string, op func(*frameState) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commands[cb]
	if !ok {
		return
	}
	if !c.recording {
		if c.err == nil {
			c.err = fmt.Errorf("%s: %w", name, gpu.ErrNotRecording)
		}
		return
	}
	c.ops = append(c.ops, op)
}

func (d *Device) Reset(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	c.recording = false
	c.err = nil
	c.ops = c.ops[:0]
	return nil
}

func (d *Device) Begin(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	if c.recording {
		return fmt.Errorf("command buffer %d already recording", cb)
	}
	c.recording = true
	return nil
}

func (d *Device) End(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	if !c.recording {
		return fmt.Errorf("end: %w", gpu.ErrNotRecording)
	}
	c.recording = false
	return c.err
}

// clearTargets clears the whole bound framebuffer. A scissor left on by an
// earlier SetScissor would otherwise clip the clear.
func clearTargets(clears []gpu.ClearValue) {
	gl.Disable(gl.SCISSOR_TEST)
	gl.DepthMask(true)
	color := int32(0)
	for _, cv := range clears {
		switch cv.Kind {
		case gpu.ClearFloat:
			gl.ClearBufferfv(gl.COLOR, color, &cv.Color[0])
			color++
		case gpu.ClearDepthStencil:
			gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, cv.Depth, int32(cv.Stencil))
		}
	}
}

func (d *Device) BeginRenderGraph(cb gpu.CommandBuffer, graph gpu.RenderGraph, fb gpu.Framebuffer, clears []gpu.ClearValue) {
	clears = append([]gpu.ClearValue(nil), clears...)
	d.record(cb, "BeginRenderGraph", func(st *frameState) error {
		if st.inGraph {
			return errGraphOpen
		}
		d.mu.Lock()
		g, gok := d.graphs[graph]
		f, fok := d.fbs[fb]
		d.mu.Unlock()
		if !gok || !fok || f.graph != graph {
			return fmt.Errorf("render graph %d with framebuffer %d: %w", graph, fb, gpu.ErrInvalidHandle)
		}
		for i, a := range g.Color {
			if a.InitialUsage != gpu.UsageUndefined && f.usage[i] != a.InitialUsage {
				return fmt.Errorf("attachment %d is %s, graph expects %s: %w",
					i, f.usage[i], a.InitialUsage, gpu.ErrInvalidTransition)
			}
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, f.fbo)
		gl.Viewport(0, 0, int32(f.extent.Width), int32(f.extent.Height))
		clearTargets(clears)
		st.inGraph = true
		st.graph = graph
		st.fb = f
		return nil
	})
}

func (d *Device) BeginSwapchainRenderGraph(cb gpu.CommandBuffer, sc gpu.Swapchain, clears []gpu.ClearValue) {
	clears = append([]gpu.ClearValue(nil), clears...)
	d.record(cb, "BeginSwapchainRenderGraph", func(st *frameState) error {
		if st.inGraph {
			return errGraphOpen
		}
		d.mu.Lock()
		s, ok := d.swapchains[sc]
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.Viewport(0, 0, int32(s.extent.Width), int32(s.extent.Height))
		gl.ClearColor(0, 0, 0, 1)
		for _, cv := range clears {
			if cv.Kind == gpu.ClearFloat {
				gl.ClearColor(cv.Color[0], cv.Color[1], cv.Color[2], cv.Color[3])
				break
			}
		}
		gl.Disable(gl.SCISSOR_TEST)
		gl.DepthMask(true)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		st.inGraph = true
		st.graph = 0
		st.fb = nil
		return nil
	})
}

func (d *Device) EndRenderGraph(cb gpu.CommandBuffer) {
	d.record(cb, "EndRenderGraph", func(st *frameState) error {
		if !st.inGraph {
			return fmt.Errorf("end render graph: no graph open")
		}
		if st.fb != nil {
			d.mu.Lock()
			g := d.graphs[st.graph]
			d.mu.Unlock()
			for i, a := range g.Color {
				st.fb.usage[i] = a.FinalUsage
			}
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		st.inGraph = false
		st.fb = nil
		return nil
	})
}

func (d *Device) BindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	d.record(cb, "BindPipeline", func(st *frameState) error {
		d.mu.Lock()
		pl, ok := d.pipelines[p]
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("pipeline %d: %w", p, gpu.ErrInvalidHandle)
		}
		pl.apply()
		st.pipeline = pl
		return nil
	})
}

// BindResources binds uniform buffers by slot and sampled textures to the
// texture unit matching their slot.
func (d *Device) BindResources(cb gpu.CommandBuffer, s gpu.ResourceSet) {
	d.record(cb, "BindResources", func(st *frameState) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		set, ok := d.sets[s]
		if !ok {
			return fmt.Errorf("resource set %d: %w", s, gpu.ErrInvalidHandle)
		}
		for slot, ubo := range set.ubos {
			gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(slot), ubo)
		}
		for slot, h := range set.textures {
			t, ok := d.textures[h]
			if !ok {
				return fmt.Errorf("texture %d: %w", h, gpu.ErrInvalidHandle)
			}
			gl.ActiveTexture(uint32(gl.TEXTURE0 + slot))
			gl.BindTexture(gl.TEXTURE_2D, t.id)
		}
		gl.ActiveTexture(gl.TEXTURE0)
		return nil
	})
}

func (d *Device) SetViewport(cb gpu.CommandBuffer, x, y, width, height int) {
	d.record(cb, "SetViewport", func(*frameState) error {
		gl.Viewport(int32(x), int32(y), int32(width), int32(height))
		return nil
	})
}

func (d *Device) SetScissor(cb gpu.CommandBuffer, x, y, width, height int) {
	d.record(cb, "SetScissor", func(*frameState) error {
		gl.Enable(gl.SCISSOR_TEST)
		gl.Scissor(int32(x), int32(y), int32(width), int32(height))
		return nil
	})
}

func (d *Device) DrawIndexed(cb gpu.CommandBuffer, h gpu.VertexBuffer, indexCount uint32) {
	d.record(cb, "DrawIndexed", func(st *frameState) error {
		if !st.inGraph {
			return fmt.Errorf("draw outside render graph")
		}
		if st.pipeline == nil {
			return fmt.Errorf("draw without pipeline")
		}
		d.mu.Lock()
		vb, ok := d.vbs[h]
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("vertex buffer %d: %w", h, gpu.ErrInvalidHandle)
		}
		if indexCount == 0 {
			return nil
		}
		vb.bindVertexLayout(st.pipeline)
		gl.DrawElements(gl.TRIANGLES, int32(indexCount), gl.UNSIGNED_INT, nil)
		gl.BindVertexArray(0)
		return nil
	})
}

func (d *Device) UpdateUniform(cb gpu.CommandBuffer, s gpu.ResourceSet, slot, offset int, data []byte) {
	data = append([]byte(nil), data...)
	d.record(cb, "UpdateUniform", func(*frameState) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		set, ok := d.sets[s]
		if !ok {
			return fmt.Errorf("resource set %d: %w", s, gpu.ErrInvalidHandle)
		}
		b, ok := d.binding(set.layout, slot)
		ubo, hasUBO := set.ubos[slot]
		if !ok || !hasUBO {
			return fmt.Errorf("resource set %d has no uniform slot %d", s, slot)
		}
		if offset < 0 || offset+len(data) > b.Size {
			return fmt.Errorf("uniform write [%d,%d) exceeds slot size %d", offset, offset+len(data), b.Size)
		}
		if len(data) == 0 {
			return nil
		}
		gl.BindBuffer(gl.UNIFORM_BUFFER, ubo)
		gl.BufferSubData(gl.UNIFORM_BUFFER, offset, len(data), gl.Ptr(&data[0]))
		gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
		return nil
	})
}

// TransitionAttachment validates and records the new usage. GL orders
// framebuffer writes before later texture reads on its own.
func (d *Device) TransitionAttachment(cb gpu.CommandBuffer, fb gpu.Framebuffer, index int, from, to gpu.AttachmentUsage) {
	d.record(cb, "TransitionAttachment", func(st *frameState) error {
		if st.inGraph {
			return fmt.Errorf("transition inside render graph: %w", gpu.ErrInvalidTransition)
		}
		d.mu.Lock()
		f, ok := d.fbs[fb]
		d.mu.Unlock()
		if !ok || index < 0 || index >= len(f.usage) {
			return fmt.Errorf("framebuffer %d attachment %d: %w", fb, index, gpu.ErrInvalidHandle)
		}
		if f.usage[index] != from {
			return fmt.Errorf("attachment %d is %s, not %s: %w", index, f.usage[index], from, gpu.ErrInvalidTransition)
		}
		f.usage[index] = to
		return nil
	})
}
