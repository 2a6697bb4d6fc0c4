package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/newengine/internal/camera"
	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/gpu/gputest"
	"github.com/Faultbox/newengine/internal/metrics"
	"github.com/Faultbox/newengine/internal/scene"
	"github.com/Faultbox/newengine/pkg/math"
)

type testWindow struct {
	gputest.Target
	dev *gputest.Device

	destroyed    bool
	opsAtDestroy int
}

func (w *testWindow) Destroy() {
	w.destroyed = true
	w.opsAtDestroy = len(w.dev.Ops())
}

type fixture struct {
	dev  *gputest.Device
	win  *testWindow
	cam  *camera.Camera
	rec  *metrics.Recorder
	orch *Orchestrator
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	win := &testWindow{Target: gputest.Target{Width: 800, Height: 450}, dev: dev}
	cam := camera.New(math.Vec3{Z: 5}, 1, 0.1, 100)
	rec := metrics.NewRecorder(0)
	orch := New(cam, rec, opts, nil)
	require.NoError(t, orch.Initialize(win, dev))
	return &fixture{dev: dev, win: win, cam: cam, rec: rec, orch: orch}
}

// withMeshes gives the fixture a scene of n quads.
func (f *fixture) withMeshes(t *testing.T, n int) *scene.Scene {
	t.Helper()
	s := &scene.Scene{}
	for i := 0; i < n; i++ {
		m, err := BuildQuad(f.dev, QuadPos3)
		require.NoError(t, err)
		s.Meshes = append(s.Meshes, m)
	}
	return s
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestInitialize(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	ops := f.dev.Ops()
	require.GreaterOrEqual(t, len(ops), 4)
	assert.Equal(t, []string{"CreateSurface", "InitializeForSurface", "CreateSwapchain", "CreateCommandBuffer"}, ops[:4])
	assert.Equal(t, gpu.Extent{Width: 800, Height: 450}, f.orch.Extent())
	assert.InDelta(t, 800.0/450.0, f.cam.Aspect(), 1e-5)

	fbExtent, err := f.dev.FramebufferExtent(f.orch.Forward().Framebuffer())
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 450}, fbExtent)
}

func TestInitializeFailureReleasesEverything(t *testing.T) {
	for _, op := range []string{"InitializeForSurface", "CreateSwapchain", "CreateCommandBuffer", "CreateFramebuffer", "CreatePipeline", "UploadVertexData"} {
		t.Run(op, func(t *testing.T) {
			dev := gputest.NewDevice()
			dev.FailNext(op, errors.New("boom"))
			win := &testWindow{Target: gputest.Target{Width: 800, Height: 450}, dev: dev}
			orch := New(camera.New(math.Vec3{}, 1, 0.1, 100), nil, DefaultOptions(), nil)

			err := orch.Initialize(win, dev)
			assert.Error(t, err)
			assert.Zero(t, dev.Live())
			assert.ErrorIs(t, orch.RunFrame(nil), ErrNotInitialized)
		})
	}
}

func TestInitializeRejectsEmptyWindow(t *testing.T) {
	dev := gputest.NewDevice()
	win := &testWindow{dev: dev}
	orch := New(camera.New(math.Vec3{}, 1, 0.1, 100), nil, DefaultOptions(), nil)
	assert.Error(t, orch.Initialize(win, dev))
	assert.Zero(t, dev.Live())
}

func TestRunFrameRecordsPassesInOrder(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	scn := f.withMeshes(t, 2)
	f.dev.ClearCalls()

	require.NoError(t, f.orch.RunFrame(scn))

	want := []string{
		"TransitionAttachment",
		"BeginRenderGraph",
		"UpdateUniform", "UpdateUniform",
		"BindPipeline", "BindResources",
		"SetViewport", "SetScissor",
		"DrawIndexed", "DrawIndexed",
		"EndRenderGraph",
		"BeginSwapchainRenderGraph",
		"BindPipeline", "BindResources",
		"SetViewport", "SetScissor",
		"DrawIndexed",
		"EndRenderGraph",
	}
	assert.Equal(t, want, f.dev.Recorded(f.orch.CommandBuffer()))

	ops := f.dev.Ops()
	order := []string{"BeginFrame", "Reset", "Begin", "TransitionAttachment", "UpdateResourceSetTexture",
		"BeginSwapchainRenderGraph", "End", "Submit", "EndFrame"}
	last := -1
	for _, op := range order {
		i := indexOf(ops, op)
		require.GreaterOrEqual(t, i, 0, op)
		assert.Greater(t, i, last, "%s out of order in %v", op, ops)
		last = i
	}
	// The sampled slot is rebound only after the forward graph ends.
	assert.Greater(t, indexOf(ops, "UpdateResourceSetTexture"), indexOf(ops, "EndRenderGraph"))

	assert.Equal(t, 1, f.dev.Frames())
	assert.Equal(t, 1, f.win.Swaps)
}

func TestRunFrameLeavesColorShaderReadable(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	scn := f.withMeshes(t, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.orch.RunFrame(scn), "frame %d", i)
		assert.Equal(t, gpu.UsageShaderRead, f.dev.AttachmentUsage(f.orch.Forward().Framebuffer(), 0))
	}

	color, err := f.orch.Forward().ColorAttachment()
	require.NoError(t, err)
	assert.Equal(t, color, f.dev.SetTexture(f.orch.Composite().ResourceSet(), 0))
	assert.Equal(t, 3, f.dev.Frames())
}

func TestRunFrameWithoutScene(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	require.NoError(t, f.orch.RunFrame(nil))
	assert.Equal(t, 1, f.dev.Frames())
}

func TestRunFrameUploadsUniforms(t *testing.T) {
	opts := DefaultOptions()
	opts.LightDirection = [3]float32{0, -1, 0}
	f := newFixture(t, opts)
	f.cam.SetEuler(0.2, 0.4)

	require.NoError(t, f.orch.RunFrame(nil))

	set := f.orch.Forward().ResourceSet()
	vp := f.cam.UniformViewProjection()
	assert.Equal(t, putFloats(vp[:]...), f.dev.Uniform(set, slotViewData))
	assert.Equal(t, putFloats(0, 0, 5, 1, 0, -1, 0, 1), f.dev.Uniform(set, slotLightData))
}

func TestRunFrameLightingDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.Lighting = false
	f := newFixture(t, opts)

	require.NoError(t, f.orch.RunFrame(nil))
	light := f.dev.Uniform(f.orch.Forward().ResourceSet(), slotLightData)
	require.Len(t, light, lightDataSize)
	assert.Equal(t, putFloats(0), light[28:32])
}

func TestRunFramePublishesFrameMetric(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	for i := 0; i < 4; i++ {
		require.NoError(t, f.orch.RunFrame(nil))
	}
	c, ok := f.rec.Category(FrameCategory)
	require.True(t, ok)
	assert.Equal(t, 4, c.NumPublishes)
}

func TestRunFrameWarmupHidesFirstFrames(t *testing.T) {
	dev := gputest.NewDevice()
	win := &testWindow{Target: gputest.Target{Width: 64, Height: 64}, dev: dev}
	rec := metrics.NewRecorder(metrics.DefaultWarmupSamples)
	orch := New(camera.New(math.Vec3{}, 1, 0.1, 100), rec, DefaultOptions(), nil)
	require.NoError(t, orch.Initialize(win, dev))

	for i := 0; i < 3; i++ {
		require.NoError(t, orch.RunFrame(nil))
	}
	_, err := rec.GetAvg(FrameCategory)
	assert.ErrorIs(t, err, metrics.ErrNoSamples)
}

func TestResizeUpdatesAspectAndFramebuffer(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	scn := f.withMeshes(t, 1)
	require.NoError(t, f.orch.RunFrame(scn))
	live := f.dev.Live()
	oldFB := f.orch.Forward().Framebuffer()

	require.NoError(t, f.orch.OnResize(1920, 1080))

	assert.InDelta(t, 1920.0/1080.0, f.cam.Aspect(), 1e-5)
	assert.Equal(t, gpu.Extent{Width: 1920, Height: 1080}, f.orch.Extent())
	fbExtent, err := f.dev.FramebufferExtent(f.orch.Forward().Framebuffer())
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent{Width: 1920, Height: 1080}, fbExtent)
	assert.NotEqual(t, oldFB, f.orch.Forward().Framebuffer())
	assert.Equal(t, live, f.dev.Live(), "old framebuffer must be released")

	f.dev.ClearCalls()
	require.NoError(t, f.orch.RunFrame(scn))
	calls := f.dev.Calls()
	for _, c := range calls {
		if c.Op == "SetViewport" {
			assert.Equal(t, []any{0, 0, 1920, 1080}, c.Args)
		}
	}
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	require.NoError(t, f.orch.OnResize(1280, 720))
	fb := f.orch.Forward().Framebuffer()
	aspect := f.cam.Aspect()

	f.dev.ClearCalls()
	require.NoError(t, f.orch.OnResize(1280, 720))

	assert.Empty(t, f.dev.Ops())
	assert.Equal(t, gpu.Extent{Width: 1280, Height: 720}, f.orch.Extent())
	assert.Equal(t, aspect, f.cam.Aspect())
	assert.Equal(t, fb, f.orch.Forward().Framebuffer())
}

func TestResizeToZeroSuspends(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	require.NoError(t, f.orch.OnResize(0, 0))
	assert.True(t, f.orch.Suspended())

	f.dev.ClearCalls()
	require.NoError(t, f.orch.RunFrame(nil))
	assert.Empty(t, f.dev.Ops())
	assert.InDelta(t, 800.0/450.0, f.cam.Aspect(), 1e-5)

	// Restoring the previous size still recreates the swapchain.
	require.NoError(t, f.orch.OnResize(800, 450))
	assert.False(t, f.orch.Suspended())
	assert.Contains(t, f.dev.Ops(), "RecreateSwapchain")
	require.NoError(t, f.orch.RunFrame(nil))
	assert.Equal(t, 1, f.dev.Frames())
}

func TestResizeRebuildsSwapchainScopedSets(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.dev.Caps.SwapchainScopedResourceSets = true
	fwdSet := f.orch.Forward().ResourceSet()
	compSet := f.orch.Composite().ResourceSet()
	live := f.dev.Live()

	require.NoError(t, f.orch.OnResize(1024, 768))

	assert.NotEqual(t, fwdSet, f.orch.Forward().ResourceSet())
	assert.NotEqual(t, compSet, f.orch.Composite().ResourceSet())
	assert.Equal(t, live, f.dev.Live())
	require.NoError(t, f.orch.RunFrame(nil))
}

type extentListener struct {
	seen []gpu.Extent
}

func (l *extentListener) OnSwapchainRecreated(_ gpu.Swapchain, e gpu.Extent) error {
	l.seen = append(l.seen, e)
	return nil
}

func TestSwapchainListenersNotified(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	l := &extentListener{}
	f.orch.AddSwapchainListener(l)

	require.NoError(t, f.orch.OnResize(640, 480))
	require.NoError(t, f.orch.OnResize(640, 480))
	require.NoError(t, f.orch.OnResize(320, 240))

	assert.Equal(t, []gpu.Extent{{Width: 640, Height: 480}, {Width: 320, Height: 240}}, l.seen)
}

func TestOutOfDateTriggersResize(t *testing.T) {
	for _, op := range []string{"BeginFrame", "Submit", "EndFrame"} {
		t.Run(op, func(t *testing.T) {
			f := newFixture(t, DefaultOptions())
			f.win.Width, f.win.Height = 1024, 768
			f.dev.FailNext(op, gpu.ErrSwapchainOutOfDate)

			require.NoError(t, f.orch.RunFrame(nil))
			assert.Equal(t, gpu.Extent{Width: 1024, Height: 768}, f.orch.Extent())
			assert.InDelta(t, 1024.0/768.0, f.cam.Aspect(), 1e-5)

			_, ok := f.rec.Category(FrameCategory)
			assert.False(t, ok, "skipped frame must not be timed")

			require.NoError(t, f.orch.RunFrame(nil))
		})
	}
}

func TestDeviceLostIsFatal(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.dev.FailNext("Submit", gpu.ErrDeviceLost)
	assert.ErrorIs(t, f.orch.RunFrame(nil), gpu.ErrDeviceLost)
}

func TestShutdownOrder(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	require.NoError(t, f.orch.RunFrame(nil))
	f.dev.ClearCalls()

	f.orch.Shutdown()

	ops := f.dev.Ops()
	require.GreaterOrEqual(t, len(ops), 3)
	assert.Equal(t, []string{"DestroyCommandBuffer", "DestroySwapchain", "DestroySurface"}, ops[len(ops)-3:])
	assert.True(t, f.win.destroyed)
	assert.Equal(t, len(ops), f.win.opsAtDestroy, "window destroyed after the surface")
	assert.Zero(t, f.dev.Live())

	// Second shutdown is harmless.
	f.orch.Shutdown()
	assert.ErrorIs(t, f.orch.RunFrame(nil), ErrNotInitialized)
	assert.ErrorIs(t, f.orch.OnResize(10, 10), ErrNotInitialized)
}

type recordingOverlay struct {
	dev      *gputest.Device
	begins   int
	ends     int
	recorded []string
}

func (o *recordingOverlay) BeginFrame() { o.begins++ }
func (o *recordingOverlay) EndFrame()   { o.ends++ }
func (o *recordingOverlay) Record(cb gpu.CommandBuffer, _ gpu.Extent) {
	o.recorded = o.dev.Recorded(cb)
}

func TestOverlayRecordsAfterComposite(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ov := &recordingOverlay{dev: f.dev}
	f.orch.SetOverlay(ov)

	require.NoError(t, f.orch.RunFrame(nil))

	assert.Equal(t, 1, ov.begins)
	assert.Equal(t, 1, ov.ends)
	require.NotEmpty(t, ov.recorded)
	assert.Equal(t, "EndRenderGraph", ov.recorded[len(ov.recorded)-1])
	assert.Contains(t, ov.recorded, "BeginSwapchainRenderGraph")
}

func TestOverlaySkipsFailedFrames(t *testing.T) {
	tests := []struct {
		op     string
		begins int
	}{
		{"BeginFrame", 0},
		{"Submit", 1},
		{"EndFrame", 1},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			f := newFixture(t, DefaultOptions())
			ov := &recordingOverlay{dev: f.dev}
			f.orch.SetOverlay(ov)
			f.dev.FailNext(tt.op, gpu.ErrSwapchainOutOfDate)

			require.NoError(t, f.orch.RunFrame(nil))
			assert.Equal(t, tt.begins, ov.begins)
			assert.Zero(t, ov.ends)
		})
	}
}

func TestResizeRetriesAfterListenerFailure(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.dev.FailNext("CreateFramebuffer", errors.New("out of memory"))

	require.Error(t, f.orch.OnResize(1920, 1080))
	assert.Equal(t, gpu.Extent{Width: 800, Height: 450}, f.orch.Extent())

	require.NoError(t, f.orch.OnResize(1920, 1080))
	want := gpu.Extent{Width: 1920, Height: 1080}
	assert.Equal(t, want, f.orch.Extent())
	fbExtent, err := f.dev.FramebufferExtent(f.orch.Forward().Framebuffer())
	require.NoError(t, err)
	assert.Equal(t, want, fbExtent)
	assert.InDelta(t, 1920.0/1080.0, f.cam.Aspect(), 1e-5)
}

func TestResizeBackAfterListenerFailure(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	f.dev.FailNext("CreateFramebuffer", errors.New("out of memory"))
	require.Error(t, f.orch.OnResize(1920, 1080))

	f.dev.ClearCalls()
	require.NoError(t, f.orch.OnResize(800, 450))
	assert.Contains(t, f.dev.Ops(), "RecreateSwapchain")
	sc, err := f.dev.SwapchainExtent(f.orch.swapchain)
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent{Width: 800, Height: 450}, sc)
	require.NoError(t, f.orch.RunFrame(nil))
}
