package gputest

import (
	"errors"
	"fmt"

	"github.com/Faultbox/newengine/internal/gpu"
)

var errGraphOpen = errors.New("render graph still open")

func (c *commandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// cmd records op into cb. It returns nil when cb is unknown or not recording.
// Callers hold mu.
func (d *Device) cmd(cb gpu.CommandBuffer, op string, args ...any) *commandBuffer {
	_ = d.record(op, uint32(cb), args...)
	c, ok := d.commands[cb]
	if !ok {
		return nil
	}
	if !c.recording {
		c.fail(fmt.Errorf("%s: %w", op, gpu.ErrNotRecording))
		return nil
	}
	c.ops = append(c.ops, Call{Op: op, Handle: uint32(cb), Args: args})
	return c
}

func (d *Device) Reset(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("Reset", uint32(cb)); err != nil {
		return err
	}
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	*c = commandBuffer{swapchain: c.swapchain}
	return nil
}

func (d *Device) Begin(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("Begin", uint32(cb)); err != nil {
		return err
	}
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
	if err := d.record("End", uint32(cb)); err != nil {
		return err
	}
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	if !c.recording {
		return fmt.Errorf("end: %w", gpu.ErrNotRecording)
	}
	if c.inGraph {
		c.fail(errGraphOpen)
	}
	c.recording = false
	return c.err
}

func (d *Device) BeginRenderGraph(cb gpu.CommandBuffer, graph gpu.RenderGraph, fb gpu.Framebuffer, clears []gpu.ClearValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "BeginRenderGraph", graph, fb, clears)
	if c == nil {
		return
	}
	if c.inGraph {
		c.fail(errGraphOpen)
		return
	}
	g, ok := d.graphs[graph]
	if !ok {
		c.fail(fmt.Errorf("render graph %d: %w", graph, gpu.ErrInvalidHandle))
		return
	}
	f, ok := d.fbs[fb]
	if !ok || f.graph != graph {
		c.fail(fmt.Errorf("framebuffer %d for graph %d: %w", fb, graph, gpu.ErrInvalidHandle))
		return
	}
	want := len(g.Color)
	if g.Depth != nil {
		want++
	}
	if len(clears) != want {
		c.fail(fmt.Errorf("render graph %d: %d clear values, want %d", graph, len(clears), want))
		return
	}
	for i, a := range g.Color {
		if a.InitialUsage != gpu.UsageUndefined && f.usage[i] != a.InitialUsage {
			c.fail(fmt.Errorf("attachment %d is %s, graph expects %s: %w",
				i, f.usage[i], a.InitialUsage, gpu.ErrInvalidTransition))
			return
		}
	}
	c.inGraph = true
	c.graph = graph
	c.graphFB = fb
}

func (d *Device) BeginSwapchainRenderGraph(cb gpu.CommandBuffer, sc gpu.Swapchain, clears []gpu.ClearValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "BeginSwapchainRenderGraph", sc, clears)
	if c == nil {
		return
	}
	if c.inGraph {
		c.fail(errGraphOpen)
		return
	}
	if _, ok := d.swapchains[sc]; !ok {
		c.fail(fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle))
		return
	}
	if len(clears) == 0 {
		c.fail(fmt.Errorf("swapchain render graph needs a clear value"))
		return
	}
	c.inGraph = true
	c.graph = 0
	c.graphFB = 0
}

func (d *Device) EndRenderGraph(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "EndRenderGraph")
	if c == nil {
		return
	}
	if !c.inGraph {
		c.fail(fmt.Errorf("end render graph: no graph open"))
		return
	}
	if c.graphFB != 0 {
		f := d.fbs[c.graphFB]
		for i, a := range d.graphs[c.graph].Color {
			f.usage[i] = a.FinalUsage
		}
	}
	c.inGraph = false
}

func (d *Device) BindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "BindPipeline", p)
	if c == nil {
		return
	}
	if _, ok := d.pipelines[p]; !ok {
		c.fail(fmt.Errorf("pipeline %d: %w", p, gpu.ErrInvalidHandle))
	}
}

func (d *Device) BindResources(cb gpu.CommandBuffer, set gpu.ResourceSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "BindResources", set)
	if c == nil {
		return
	}
	if _, ok := d.sets[set]; !ok {
		c.fail(fmt.Errorf("resource set %d: %w", set, gpu.ErrInvalidHandle))
	}
}

func (d *Device) SetViewport(cb gpu.CommandBuffer, x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd(cb, "SetViewport", x, y, width, height)
}

func (d *Device) SetScissor(cb gpu.CommandBuffer, x, y, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmd(cb, "SetScissor", x, y, width, height)
}

func (d *Device) DrawIndexed(cb gpu.CommandBuffer, vb gpu.VertexBuffer, indexCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "DrawIndexed", vb, indexCount)
	if c == nil {
		return
	}
	if !c.inGraph {
		c.fail(fmt.Errorf("draw outside render graph"))
		return
	}
	b, ok := d.vbs[vb]
	if !ok {
		c.fail(fmt.Errorf("vertex buffer %d: %w", vb, gpu.ErrInvalidHandle))
		return
	}
	if int(indexCount) > len(b.indices) {
		c.fail(fmt.Errorf("draw %d indices from buffer holding %d", indexCount, len(b.indices)))
	}
}

func (d *Device) UpdateUniform(cb gpu.CommandBuffer, set gpu.ResourceSet, slot, offset int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "UpdateUniform", set, slot, offset, len(data))
	if c == nil {
		return
	}
	s, ok := d.sets[set]
	if !ok {
		c.fail(fmt.Errorf("resource set %d: %w", set, gpu.ErrInvalidHandle))
		return
	}
	size := -1
	for _, b := range d.layouts[s.info.Layout].Bindings {
		if b.Slot == slot && b.Kind == gpu.BindingUniformBuffer {
			size = b.Size
		}
	}
	if size < 0 {
		c.fail(fmt.Errorf("resource set %d has no uniform slot %d", set, slot))
		return
	}
	if offset < 0 || offset+len(data) > size {
		c.fail(fmt.Errorf("uniform write [%d,%d) exceeds slot size %d", offset, offset+len(data), size))
		return
	}
	buf := s.uniforms[slot]
	if len(buf) < size {
		buf = append(buf, make([]byte, size-len(buf))...)
	}
	copy(buf[offset:], data)
	s.uniforms[slot] = buf
}

func (d *Device) TransitionAttachment(cb gpu.CommandBuffer, fb gpu.Framebuffer, index int, from, to gpu.AttachmentUsage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.cmd(cb, "TransitionAttachment", fb, index, from, to)
	if c == nil {
		return
	}
	if c.inGraph {
		c.fail(fmt.Errorf("transition inside render graph: %w", gpu.ErrInvalidTransition))
		return
	}
	f, ok := d.fbs[fb]
	if !ok || index < 0 || index >= len(f.usage) {
		c.fail(fmt.Errorf("framebuffer %d attachment %d: %w", fb, index, gpu.ErrInvalidHandle))
		return
	}
	if f.usage[index] != from {
		c.fail(fmt.Errorf("attachment %d is %s, not %s: %w", index, f.usage[index], from, gpu.ErrInvalidTransition))
		return
	}
	f.usage[index] = to
}
