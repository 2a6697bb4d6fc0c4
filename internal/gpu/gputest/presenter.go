package gputest

import (
	"fmt"

	"github.com/Faultbox/newengine/internal/gpu"
)

func (d *Device) Capabilities() gpu.Capabilities {
	return d.Caps
}

func (d *Device) CreateSurface(target gpu.SurfaceTarget) (gpu.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateSurface", 0); err != nil {
		return 0, err
	}
	h := gpu.Surface(d.alloc())
	d.surfaces[h] = target
	return h, nil
}

func (d *Device) InitializeForSurface(s gpu.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("InitializeForSurface", uint32(s)); err != nil {
		return err
	}
	if _, ok := d.surfaces[s]; !ok {
		return fmt.Errorf("surface %d: %w", s, gpu.ErrInvalidHandle)
	}
	return nil
}

func (d *Device) DestroySurface(s gpu.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroySurface", uint32(s))
	delete(d.surfaces, s)
}

func (d *Device) CreateSwapchain(s gpu.Surface, width, height int) (gpu.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateSwapchain", uint32(s), width, height); err != nil {
		return 0, err
	}
	if _, ok := d.surfaces[s]; !ok {
		return 0, fmt.Errorf("surface %d: %w", s, gpu.ErrInvalidHandle)
	}
	h := gpu.Swapchain(d.alloc())
	d.swapchains[h] = gpu.Extent{Width: width, Height: height}
	return h, nil
}

func (d *Device) RecreateSwapchain(sc gpu.Swapchain, s gpu.Surface, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("RecreateSwapchain", uint32(sc), width, height); err != nil {
		return err
	}
	if _, ok := d.swapchains[sc]; !ok {
		return fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	d.swapchains[sc] = gpu.Extent{Width: width, Height: height}
	return nil
}

func (d *Device) SwapchainExtent(sc gpu.Swapchain) (gpu.Extent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.swapchains[sc]
	if !ok {
		return gpu.Extent{}, fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	return e, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroySwapchain", uint32(sc))
	delete(d.swapchains, sc)
}

func (d *Device) CreateCommandBuffer(sc gpu.Swapchain) (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("CreateCommandBuffer", uint32(sc)); err != nil {
		return 0, err
	}
	if _, ok := d.swapchains[sc]; !ok {
		return 0, fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	h := gpu.CommandBuffer(d.alloc())
	d.commands[h] = &commandBuffer{swapchain: sc}
	return h, nil
}

func (d *Device) DestroyCommandBuffer(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.record("DestroyCommandBuffer", uint32(cb))
	delete(d.commands, cb)
}

func (d *Device) BeginFrame(sc gpu.Swapchain, s gpu.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("BeginFrame", uint32(sc)); err != nil {
		return err
	}
	if _, ok := d.swapchains[sc]; !ok {
		return fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	return nil
}

func (d *Device) Submit(sc gpu.Swapchain, cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("Submit", uint32(cb)); err != nil {
		return err
	}
	c, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	if c.recording {
		return fmt.Errorf("submit while recording")
	}
	return c.err
}

func (d *Device) EndFrame(sc gpu.Swapchain, s gpu.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.record("EndFrame", uint32(sc)); err != nil {
		return err
	}
	if t := d.surfaces[s]; t != nil {
		t.SwapBuffers()
	}
	d.frames++
	return nil
}

// Target is a fixed-size SurfaceTarget.
type Target struct {
	Width, Height int
	Swaps         int
}

func (t *Target) Size() (int, int)   { return t.Width, t.Height }
func (t *Target) MakeCurrent() error { return nil }
func (t *Target) SwapBuffers()       { t.Swaps++ }
