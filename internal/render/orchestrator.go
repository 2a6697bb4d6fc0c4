// Package render drives the two-pass frame: an offscreen forward pass and a
// composite pass that presents its color output.
package render

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/camera"
	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/metrics"
	"github.com/Faultbox/newengine/internal/scene"
)

// FrameCategory is the metrics category timing each presented frame.
const FrameCategory = "Frame"

// ErrNotInitialized is returned by frame operations before Initialize succeeds.
var ErrNotInitialized = errors.New("renderer not initialized")

// Window is the surface target the orchestrator renders into and tears down.
type Window interface {
	gpu.SurfaceTarget
	Destroy()
}

// SwapchainListener owns resources that must follow swapchain recreation.
type SwapchainListener interface {
	OnSwapchainRecreated(sc gpu.Swapchain, extent gpu.Extent) error
}

// Overlay records debug UI after the composite pass.
type Overlay interface {
	BeginFrame()
	Record(cb gpu.CommandBuffer, extent gpu.Extent)
	EndFrame()
}

// Options configures the passes.
type Options struct {
	Quad           QuadLayout
	Lighting       bool
	LightDirection [3]float32
}

// DefaultOptions returns the options the default config produces.
func DefaultOptions() Options {
	return Options{
		Quad:           QuadPos3,
		Lighting:       true,
		LightDirection: [3]float32{-0.4, -1, -0.6},
	}
}

// Orchestrator owns the surface, swapchain and per-frame command buffer and
// records the forward and composite passes every frame.
type Orchestrator struct {
	log     *zap.Logger
	camera  *camera.Camera
	metrics *metrics.Recorder
	opts    Options

	device    gpu.Device
	window    Window
	surface   gpu.Surface
	swapchain gpu.Swapchain
	cb        gpu.CommandBuffer
	extent    gpu.Extent
	suspended bool
	// stale is set while a swapchain recreation has not reached every listener.
	stale bool

	forward   *ForwardPass
	composite *CompositePass
	listeners []SwapchainListener
	overlay   Overlay
}

// New returns an orchestrator that renders from cam and publishes frame timings to rec.
func New(cam *camera.Camera, rec *metrics.Recorder, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{log: log, camera: cam, metrics: rec, opts: opts}
}

// Initialize creates the surface for window, completes device initialization,
// creates the swapchain at the window size and the frame command buffer, then
// builds both passes. Any failure releases what was acquired.
func (o *Orchestrator) Initialize(window Window, device gpu.Device) error {
	o.window = window
	o.device = device

	if err := o.initialize(); err != nil {
		o.release()
		o.window = nil
		return err
	}

	o.log.Info("renderer initialized",
		zap.String("backend", device.Capabilities().Name),
		zap.Stringer("extent", o.extent),
		zap.String("quad", o.opts.Quad.Name))
	return nil
}

func (o *Orchestrator) initialize() error {
	d := o.device
	var err error

	o.surface, err = d.CreateSurface(o.window)
	if err != nil {
		return fmt.Errorf("creating surface: %w", err)
	}
	if err := d.InitializeForSurface(o.surface); err != nil {
		return fmt.Errorf("initializing device: %w", err)
	}

	w, h := o.window.Size()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("window has no drawable area (%dx%d)", w, h)
	}
	o.swapchain, err = d.CreateSwapchain(o.surface, w, h)
	if err != nil {
		return fmt.Errorf("creating swapchain: %w", err)
	}
	o.extent, err = d.SwapchainExtent(o.swapchain)
	if err != nil {
		return err
	}

	o.cb, err = d.CreateCommandBuffer(o.swapchain)
	if err != nil {
		return fmt.Errorf("creating command buffer: %w", err)
	}

	o.forward = NewForwardPass(d, o.opts.Lighting, o.opts.LightDirection, o.log)
	if err := o.forward.Init(o.swapchain, o.extent); err != nil {
		o.forward = nil
		return err
	}
	o.composite = NewCompositePass(d, o.opts.Quad, o.log)
	if err := o.composite.Init(o.swapchain); err != nil {
		o.composite = nil
		return err
	}

	o.listeners = append([]SwapchainListener{o.forward, o.composite, o.camera}, o.listeners...)
	o.camera.SetAspect(o.extent.Aspect())
	return nil
}

// AddSwapchainListener registers l to be notified, after the passes and the
// camera, whenever the swapchain is recreated.
func (o *Orchestrator) AddSwapchainListener(l SwapchainListener) {
	o.listeners = append(o.listeners, l)
}

// SetOverlay installs the debug UI recorded after the composite pass.
func (o *Orchestrator) SetOverlay(ov Overlay) {
	o.overlay = ov
}

// Extent returns the current swapchain extent.
func (o *Orchestrator) Extent() gpu.Extent {
	return o.extent
}

// Suspended reports whether frames are skipped because the window has no area.
func (o *Orchestrator) Suspended() bool {
	return o.suspended
}

// Forward returns the forward pass.
func (o *Orchestrator) Forward() *ForwardPass {
	return o.forward
}

// Composite returns the composite pass.
func (o *Orchestrator) Composite() *CompositePass {
	return o.composite
}

// CommandBuffer returns the per-frame command buffer.
func (o *Orchestrator) CommandBuffer() gpu.CommandBuffer {
	return o.cb
}

// OnResize recreates the swapchain at the new size and notifies every
// listener before returning. A zero-area size suspends rendering until the
// next non-zero resize; the current size is a no-op.
func (o *Orchestrator) OnResize(width, height int) error {
	return o.resize(width, height, false)
}

func (o *Orchestrator) resize(width, height int, force bool) error {
	if o.swapchain == 0 {
		return ErrNotInitialized
	}
	if width <= 0 || height <= 0 {
		if !o.suspended {
			o.log.Debug("window minimized, suspending frames")
		}
		o.suspended = true
		return nil
	}

	next := gpu.Extent{Width: width, Height: height}
	if next == o.extent && !o.suspended && !o.stale && !force {
		return nil
	}

	o.stale = true
	if err := o.device.RecreateSwapchain(o.swapchain, o.surface, width, height); err != nil {
		return fmt.Errorf("recreating swapchain %s: %w", next, err)
	}
	extent, err := o.device.SwapchainExtent(o.swapchain)
	if err != nil {
		return err
	}
	for _, l := range o.listeners {
		if err := l.OnSwapchainRecreated(o.swapchain, extent); err != nil {
			return fmt.Errorf("swapchain listener: %w", err)
		}
	}
	o.extent = extent
	o.suspended = false
	o.stale = false

	o.log.Debug("swapchain recreated", zap.Stringer("extent", extent))
	return nil
}

// RunFrame records and presents one frame of scn. An out-of-date swapchain
// triggers a resize to the window's current size and skips the frame.
func (o *Orchestrator) RunFrame(scn *scene.Scene) error {
	if o.cb == 0 {
		return ErrNotInitialized
	}
	if o.suspended {
		return nil
	}

	start := time.Now()
	d := o.device

	if err := d.BeginFrame(o.swapchain, o.surface); err != nil {
		return o.frameError("begin frame", err)
	}
	if o.overlay != nil {
		o.overlay.BeginFrame()
	}

	if err := d.Reset(o.cb); err != nil {
		return fmt.Errorf("resetting command buffer: %w", err)
	}
	if err := d.Begin(o.cb); err != nil {
		return fmt.Errorf("beginning command buffer: %w", err)
	}

	o.forward.Record(o.cb, o.camera, scn, o.extent)

	color, err := o.forward.ColorAttachment()
	if err != nil {
		_ = d.End(o.cb)
		return fmt.Errorf("forward color attachment: %w", err)
	}
	if err := o.composite.Record(o.cb, color, o.extent); err != nil {
		_ = d.End(o.cb)
		return err
	}

	if o.overlay != nil {
		o.overlay.Record(o.cb, o.extent)
	}

	if err := d.End(o.cb); err != nil {
		return fmt.Errorf("recording frame: %w", err)
	}
	if err := d.Submit(o.swapchain, o.cb); err != nil {
		return o.frameError("submit", err)
	}
	if err := d.EndFrame(o.swapchain, o.surface); err != nil {
		return o.frameError("present", err)
	}

	if o.metrics != nil {
		o.metrics.PublishDuration(FrameCategory, time.Since(start))
	}
	if o.overlay != nil {
		o.overlay.EndFrame()
	}
	return nil
}

// frameError recovers from an out-of-date swapchain and wraps anything else.
func (o *Orchestrator) frameError(stage string, err error) error {
	if !errors.Is(err, gpu.ErrSwapchainOutOfDate) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	w, h := o.window.Size()
	o.log.Debug("swapchain out of date",
		zap.String("stage", stage),
		zap.Int("width", w),
		zap.Int("height", h))
	return o.resize(w, h, true)
}

// Shutdown releases pass resources, the command buffer, the swapchain, the
// surface and the window, in that order.
func (o *Orchestrator) Shutdown() {
	if o.device == nil {
		return
	}
	o.release()
	if o.window != nil {
		o.window.Destroy()
		o.window = nil
	}
	o.log.Info("renderer shut down")
}

func (o *Orchestrator) release() {
	d := o.device
	if o.composite != nil {
		o.composite.Destroy()
		o.composite = nil
	}
	if o.forward != nil {
		o.forward.Destroy()
		o.forward = nil
	}
	o.listeners = nil
	if o.cb != 0 {
		d.DestroyCommandBuffer(o.cb)
		o.cb = 0
	}
	if o.swapchain != 0 {
		d.DestroySwapchain(o.swapchain)
		o.swapchain = 0
	}
	if o.surface != 0 {
		d.DestroySurface(o.surface)
		o.surface = 0
	}
	o.extent = gpu.Extent{}
	o.stale = false
}
