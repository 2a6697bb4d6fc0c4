package window

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"
)

func TestDispatchResize(t *testing.T) {
	tests := []struct {
		name  string
		event uint8
		data  [2]int32
		want  [2]int
	}{
		{"size changed", sdl.WINDOWEVENT_SIZE_CHANGED, [2]int32{1920, 1080}, [2]int{1920, 1080}},
		{"restored", sdl.WINDOWEVENT_RESTORED, [2]int32{800, 450}, [2]int{800, 450}},
		{"minimized", sdl.WINDOWEVENT_MINIMIZED, [2]int32{800, 450}, [2]int{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWindow(Config{}, zap.NewNop())
			var got [2]int
			calls := 0
			w.OnResize(func(width, height int) {
				got = [2]int{width, height}
				calls++
			})
			w.dispatch(&sdl.WindowEvent{Event: tt.event, Data1: tt.data[0], Data2: tt.data[1]})
			if calls != 1 {
				t.Fatalf("resize callback called %d times, want 1", calls)
			}
			if got != tt.want {
				t.Errorf("resize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchQuit(t *testing.T) {
	w := newWindow(Config{}, zap.NewNop())
	if w.ShouldClose() {
		t.Fatal("new window should not be closing")
	}
	w.dispatch(&sdl.QuitEvent{Type: sdl.QUIT})
	if !w.ShouldClose() {
		t.Error("quit event should request close")
	}

	w = newWindow(Config{}, zap.NewNop())
	w.dispatch(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_CLOSE})
	if !w.ShouldClose() {
		t.Error("window close event should request close")
	}
}

func TestDispatchKeys(t *testing.T) {
	w := newWindow(Config{}, zap.NewNop())
	var events []bool
	w.OnKey(func(key sdl.Scancode, down bool) {
		if key == sdl.SCANCODE_W {
			events = append(events, down)
		}
	})

	w.dispatch(&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_W}})
	if !w.KeyDown(sdl.SCANCODE_W) {
		t.Error("W should be held")
	}
	w.dispatch(&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Repeat: 1, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_W}})
	w.dispatch(&sdl.KeyboardEvent{Type: sdl.KEYUP, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_W}})
	if w.KeyDown(sdl.SCANCODE_W) {
		t.Error("W should be released")
	}

	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("key events = %v, want [true false]", events)
	}
}

func TestDispatchMouse(t *testing.T) {
	w := newWindow(Config{}, zap.NewNop())
	var moved [4]int
	var button uint8
	var pressed bool
	w.OnMouseMove(func(x, y, dx, dy int) { moved = [4]int{x, y, dx, dy} })
	w.OnMouseButton(func(b uint8, down bool, x, y int) { button, pressed = b, down })

	w.dispatch(&sdl.MouseMotionEvent{X: 10, Y: 20, XRel: 3, YRel: -4})
	w.dispatch(&sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONDOWN, Button: sdl.BUTTON_RIGHT, X: 10, Y: 20})

	if moved != [4]int{10, 20, 3, -4} {
		t.Errorf("mouse move = %v", moved)
	}
	if button != sdl.BUTTON_RIGHT || !pressed {
		t.Errorf("mouse button = %d pressed=%v", button, pressed)
	}
}
