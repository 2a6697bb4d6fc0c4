package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
)

// CreateSurface makes the target's GL context current.
func (d *Device) CreateSurface(target gpu.SurfaceTarget) (gpu.Surface, error) {
	if err := target.MakeCurrent(); err != nil {
		return 0, fmt.Errorf("making context current: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := gpu.Surface(d.alloc())
	d.surfaces[h] = &surface{target: target}
	return h, nil
}

// InitializeForSurface loads GL entry points and sets default state.
// It must run after the surface's context is current.
func (d *Device) InitializeForSurface(s gpu.Surface) error {
	d.mu.Lock()
	_, ok := d.surfaces[s]
	initialized := d.initialized
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("surface %d: %w", s, gpu.ErrInvalidHandle)
	}
	if initialized {
		return nil
	}

	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	d.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.String("glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.FrontFace(gl.CCW)

	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()
	return nil
}

func (d *Device) DestroySurface(s gpu.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.surfaces, s)
}

// CreateSwapchain tracks the default framebuffer at the given size.
func (d *Device) CreateSwapchain(s gpu.Surface, width, height int) (gpu.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.surfaces[s]; !ok {
		return 0, fmt.Errorf("surface %d: %w", s, gpu.ErrInvalidHandle)
	}
	h := gpu.Swapchain(d.alloc())
	d.swapchains[h] = &swapchain{surface: s, extent: gpu.Extent{Width: width, Height: height}}
	return h, nil
}

func (d *Device) RecreateSwapchain(sc gpu.Swapchain, s gpu.Surface, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		return fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	chain.surface = s
	chain.extent = gpu.Extent{Width: width, Height: height}
	return nil
}

func (d *Device) SwapchainExtent(sc gpu.Swapchain) (gpu.Extent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	chain, ok := d.swapchains[sc]
	if !ok {
		return gpu.Extent{}, fmt.Errorf("swapchain %d: %w", sc, gpu.ErrInvalidHandle)
	}
	return chain.extent, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.swapchains, sc)
}

func (d *Device) CreateCommandBuffer(sc gpu.Swapchain) (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
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
	delete(d.commands, cb)
}

// BeginFrame reports ErrSwapchainOutOfDate when the drawable size no longer
// matches the swapchain extent.
func (d *Device) BeginFrame(sc gpu.Swapchain, s gpu.Surface) error {
	d.mu.Lock()
	chain, cok := d.swapchains[sc]
	surf, sok := d.surfaces[s]
	d.mu.Unlock()
	if !cok || !sok {
		return fmt.Errorf("swapchain %d on surface %d: %w", sc, s, gpu.ErrInvalidHandle)
	}
	w, h := surf.target.Size()
	if w != chain.extent.Width || h != chain.extent.Height {
		return gpu.ErrSwapchainOutOfDate
	}
	return nil
}

// Submit runs the recorded commands in order and stops at the first failure.
func (d *Device) Submit(sc gpu.Swapchain, cb gpu.CommandBuffer) error {
	d.mu.Lock()
	c, ok := d.commands[cb]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cb, gpu.ErrInvalidHandle)
	}
	if c.recording {
		return fmt.Errorf("submit while recording")
	}
	if c.err != nil {
		return c.err
	}

	st := &frameState{}
	for _, op := range c.ops {
		if err := op(st); err != nil {
			return err
		}
	}
	if st.inGraph {
		return errGraphOpen
	}
	return checkError()
}

// EndFrame swaps the surface's buffers.
func (d *Device) EndFrame(sc gpu.Swapchain, s gpu.Surface) error {
	d.mu.Lock()
	surf, ok := d.surfaces[s]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("surface %d: %w", s, gpu.ErrInvalidHandle)
	}
	surf.target.SwapBuffers()
	return nil
}

// glContextLost is GL_CONTEXT_LOST, which the 4.1 core bindings do not define.
const glContextLost = 0x0507

// checkError drains the GL error queue.
func checkError() error {
	var first uint32
	for code := gl.GetError(); code != gl.NO_ERROR; code = gl.GetError() {
		if code == glContextLost {
			return gpu.ErrDeviceLost
		}
		if first == 0 {
			first = code
		}
	}
	if first != 0 {
		return fmt.Errorf("gl error 0x%x", first)
	}
	return nil
}
