package window

import "github.com/veandco/go-sdl2/sdl"

// OnResize registers the drawable-size callback. A minimized window reports 0x0.
func (w *Window) OnResize(fn func(width, height int)) {
	w.onResize = fn
}

// OnKey registers the key callback.
func (w *Window) OnKey(fn func(key sdl.Scancode, down bool)) {
	w.onKey = fn
}

// OnMouseButton registers the mouse button callback.
func (w *Window) OnMouseButton(fn func(button uint8, down bool, x, y int)) {
	w.onMouseButton = fn
}

// OnMouseMove registers the mouse motion callback.
func (w *Window) OnMouseMove(fn func(x, y, dx, dy int)) {
	w.onMouseMove = fn
}

// KeyDown reports whether key is held.
func (w *Window) KeyDown(key sdl.Scancode) bool {
	return w.keys[key]
}

// PollEvents drains the SDL event queue and dispatches every event.
// Returns true once a quit was requested.
func (w *Window) PollEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.dispatch(event)
	}
	return w.closeRequested
}

func (w *Window) dispatch(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closeRequested = true

	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_RESTORED:
			width, height := int(e.Data1), int(e.Data2)
			if w.sdlWindow != nil {
				width, height = w.Size()
			}
			w.resized(width, height)
		case sdl.WINDOWEVENT_MINIMIZED:
			w.resized(0, 0)
		case sdl.WINDOWEVENT_CLOSE:
			w.closeRequested = true
		}

	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			return
		}
		down := e.Type == sdl.KEYDOWN
		w.keys[e.Keysym.Scancode] = down
		if w.onKey != nil {
			w.onKey(e.Keysym.Scancode, down)
		}

	case *sdl.MouseMotionEvent:
		w.mouseX, w.mouseY = int(e.X), int(e.Y)
		if w.onMouseMove != nil {
			w.onMouseMove(int(e.X), int(e.Y), int(e.XRel), int(e.YRel))
		}

	case *sdl.MouseButtonEvent:
		w.mouseX, w.mouseY = int(e.X), int(e.Y)
		if w.onMouseButton != nil {
			w.onMouseButton(e.Button, e.Type == sdl.MOUSEBUTTONDOWN, int(e.X), int(e.Y))
		}
	}
}

func (w *Window) resized(width, height int) {
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
