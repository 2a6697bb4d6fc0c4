// Package app wires the window, renderer and scene importer into the main loop.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/camera"
	"github.com/Faultbox/newengine/internal/config"
	"github.com/Faultbox/newengine/internal/gpu/glbackend"
	"github.com/Faultbox/newengine/internal/logger"
	"github.com/Faultbox/newengine/internal/metrics"
	"github.com/Faultbox/newengine/internal/overlay"
	"github.com/Faultbox/newengine/internal/render"
	"github.com/Faultbox/newengine/internal/scene"
	"github.com/Faultbox/newengine/internal/window"
)

// App is the running viewer.
type App struct {
	cfg *config.Config
	log *zap.Logger

	window   *window.Window
	device   *glbackend.Device
	camera   *camera.Camera
	metrics  *metrics.Recorder
	renderer *render.Orchestrator
	stats    *overlay.Stats

	bounds   *scene.Bounds
	importer *scene.Importer
	scene    *scene.Scene
	watcher  *modelWatcher

	looking bool
	err     error // first error raised from an event callback
}

// New creates the window, initializes the renderer and imports the configured model.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		cfg:     cfg,
		log:     logger.Named("app"),
		metrics: metrics.NewRecorder(cfg.Metrics.WarmupSamples),
		bounds:  scene.NewBounds(),
	}

	opts, err := renderOptions(cfg.Render)
	if err != nil {
		return nil, err
	}

	a.window, err = window.New(window.Config{
		Title:  cfg.Graphics.Title,
		Width:  cfg.Graphics.Width,
		Height: cfg.Graphics.Height,
		VSync:  cfg.Graphics.VSync,
	}, logger.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}

	a.device = glbackend.New(logger.Named("gl"), glbackend.ShaderFS(cfg.Shaders.Root))
	a.camera = newCamera(cfg.Camera, cfg.Graphics.Width, cfg.Graphics.Height)
	a.renderer = render.New(a.camera, a.metrics, opts, logger.Named("render"))
	if err := a.renderer.Initialize(a.window, a.device); err != nil {
		a.window.Destroy()
		return nil, fmt.Errorf("initializing renderer: %w", err)
	}

	a.stats = overlay.NewStats(a.metrics, render.FrameCategory, cfg.Metrics.ReportInterval, logger.Named("stats"))
	a.renderer.SetOverlay(a.stats)

	a.importer = scene.NewImporter(a.device, a.bounds, importOptions(cfg.Scene), logger.Named("scene"))
	a.bindInput()

	if path := cfg.Scene.ModelPath; path != "" {
		if err := a.loadScene(path); err != nil {
			a.Close()
			return nil, err
		}
		if cfg.Camera.FitToScene {
			a.fitCamera()
		}
		if cfg.Scene.Watch {
			a.watcher, err = watchModel(path, a.log)
			if err != nil {
				a.log.Warn("scene reload disabled", zap.Error(err))
			}
		}
	}

	return a, nil
}

func (a *App) bindInput() {
	a.window.OnResize(func(width, height int) {
		if err := a.renderer.OnResize(width, height); err != nil && a.err == nil {
			a.err = fmt.Errorf("resize to %dx%d: %w", width, height, err)
		}
	})
	a.window.OnKey(func(key sdl.Scancode, down bool) {
		if !down {
			return
		}
		switch key {
		case sdl.SCANCODE_ESCAPE:
			a.window.RequestClose()
		case sdl.SCANCODE_F:
			a.fitCamera()
		case sdl.SCANCODE_R:
			a.reload()
		}
	})
	a.window.OnMouseButton(func(button uint8, down bool, _, _ int) {
		if button == sdl.BUTTON_RIGHT {
			a.looking = down
		}
	})
	a.window.OnMouseMove(func(_, _, dx, dy int) {
		if a.looking {
			a.camera.HandleLook(float32(dx), float32(dy))
		}
	})
}

// loadScene imports path and replaces the current scene. The old scene is
// released only after the new one imported.
func (a *App) loadScene(path string) error {
	start := time.Now()
	s, err := a.importer.ImportScene(path)
	if err != nil {
		return err
	}
	a.metrics.PublishDuration("Import", time.Since(start))

	old := a.scene
	a.scene = s
	old.Destroy(a.device)
	return nil
}

func (a *App) reload() {
	path := a.cfg.Scene.ModelPath
	if path == "" {
		return
	}
	if err := a.loadScene(path); err != nil {
		if errors.Is(err, scene.ErrImport) {
			a.log.Warn("reload failed, keeping previous scene", zap.Error(err))
			return
		}
		a.log.Error("reload failed", zap.Error(err))
		return
	}
	a.log.Info("scene reloaded", zap.String("path", path))
}

func (a *App) fitCamera() {
	if a.bounds.Empty() {
		return
	}
	a.camera.FitToBounds(a.bounds.Min, a.bounds.Max)
}

// Run drives the loop until the window closes or a frame fails.
func (a *App) Run() error {
	a.log.Info("starting main loop")
	last := time.Now()

	for !a.window.PollEvents() {
		if a.err != nil {
			return a.err
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		a.update(dt)

		if a.watcher != nil {
			select {
			case <-a.watcher.Changed():
				a.reload()
			default:
			}
		}

		if err := a.renderer.RunFrame(a.scene); err != nil {
			return fmt.Errorf("render frame: %w", err)
		}
	}
	return nil
}

func (a *App) update(dt float32) {
	axis := func(pos, neg sdl.Scancode) float32 {
		var v float32
		if a.window.KeyDown(pos) {
			v++
		}
		if a.window.KeyDown(neg) {
			v--
		}
		return v
	}
	forward := axis(sdl.SCANCODE_W, sdl.SCANCODE_S)
	right := axis(sdl.SCANCODE_D, sdl.SCANCODE_A)
	up := axis(sdl.SCANCODE_E, sdl.SCANCODE_Q)
	if forward != 0 || right != 0 || up != 0 {
		a.camera.HandleMovement(forward, right, up, dt)
	}
}

// Close releases the scene, then the renderer, which tears down the window.
func (a *App) Close() {
	a.log.Info("closing")
	if a.watcher != nil {
		a.watcher.Close()
		a.watcher = nil
	}
	if a.scene != nil {
		a.scene.Destroy(a.device)
		a.scene = nil
	}
	a.renderer.Shutdown()

	for _, name := range a.metrics.Names() {
		if avg, err := a.metrics.GetAvg(name); err == nil {
			a.log.Info("timing", zap.String("category", name), zap.Float64("avg_ms", avg))
		}
	}
}
