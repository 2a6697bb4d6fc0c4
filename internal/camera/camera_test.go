package camera

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/pkg/math"
)

const eps = 1e-4

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < eps
}

func TestViewIsInverseOfWorldTransform(t *testing.T) {
	c := New(math.Vec3{X: 1, Y: 2, Z: 3}, 1, 0.1, 100)
	c.SetEuler(0.3, 0.7)

	p := c.View().TransformPoint(c.Position.Array())
	for i, v := range p {
		if !near(v, 0) {
			t.Errorf("camera position in view space [%d] = %f, want 0", i, v)
		}
	}

	// A point ahead of the camera lands on -Z in view space.
	ahead := c.Position.Add(c.Forward().Scale(5))
	v := c.View().TransformPoint(ahead.Array())
	if !near(v[0], 0) || !near(v[1], 0) || !near(v[2], -5) {
		t.Errorf("point ahead in view space = %v, want (0,0,-5)", v)
	}
}

func TestUniformViewProjectionIsTransposed(t *testing.T) {
	c := New(math.Vec3{Z: 5}, gomath.Pi/3, 0.1, 100)
	vp := c.ViewProjection()
	u := c.UniformViewProjection()
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			if u[row*4+col] != vp[col*4+row] {
				t.Fatalf("uniform[%d][%d] = %f, want %f", row, col, u[row*4+col], vp[col*4+row])
			}
		}
	}
}

func TestOnSwapchainRecreated(t *testing.T) {
	c := New(math.Vec3{}, 1, 0.1, 100)

	if err := c.OnSwapchainRecreated(1, gpu.Extent{Width: 800, Height: 450}); err != nil {
		t.Fatal(err)
	}
	if !near(c.Aspect(), 800.0/450.0) {
		t.Errorf("aspect = %f, want %f", c.Aspect(), 800.0/450.0)
	}

	if err := c.OnSwapchainRecreated(1, gpu.Extent{Width: 1920, Height: 1080}); err != nil {
		t.Fatal(err)
	}
	if !near(c.Aspect(), 1920.0/1080.0) {
		t.Errorf("aspect = %f, want %f", c.Aspect(), 1920.0/1080.0)
	}

	// A minimized window keeps the last aspect.
	_ = c.OnSwapchainRecreated(1, gpu.Extent{})
	if !near(c.Aspect(), 1920.0/1080.0) {
		t.Errorf("aspect changed on empty extent: %f", c.Aspect())
	}
}

func TestSetEulerClampsPitch(t *testing.T) {
	c := New(math.Vec3{}, 1, 0.1, 100)
	c.SetEuler(3, 0)
	if pitch, _ := c.Euler(); pitch != c.MaxPitch {
		t.Errorf("pitch = %f, want %f", pitch, c.MaxPitch)
	}
	c.SetEuler(-3, 0)
	if pitch, _ := c.Euler(); pitch != -c.MaxPitch {
		t.Errorf("pitch = %f, want %f", pitch, -c.MaxPitch)
	}
}

func TestYawTurnsForward(t *testing.T) {
	c := New(math.Vec3{}, 1, 0.1, 100)
	c.SetEuler(0, gomath.Pi/2)
	f := c.Forward()
	if !near(f.X, -1) || !near(f.Y, 0) || !near(f.Z, 0) {
		t.Errorf("forward after 90 degree yaw = %v, want (-1,0,0)", f)
	}
}

func TestHandleMovement(t *testing.T) {
	c := New(math.Vec3{}, 1, 0.1, 100)
	c.MoveSpeed = 2
	c.HandleMovement(1, 0, 0, 0.5)
	if !near(c.Position.Z, -1) {
		t.Errorf("position after moving forward = %v", c.Position)
	}
	c.HandleMovement(0, 1, 1, 1)
	if !near(c.Position.X, 2) || !near(c.Position.Y, 2) {
		t.Errorf("position after strafing = %v", c.Position)
	}
}

func TestFitToBounds(t *testing.T) {
	c := New(math.Vec3{}, gomath.Pi/2, 0.1, 1)
	c.FitToBounds([3]float32{-1, -1, -1}, [3]float32{1, 1, 1})

	radius := float32(gomath.Sqrt(3))
	want := radius / float32(gomath.Sin(gomath.Pi/4))
	if !near(c.Position.Z, want) || !near(c.Position.X, 0) {
		t.Errorf("position = %v, want (0,0,%f)", c.Position, want)
	}
	if c.Far < want+radius {
		t.Errorf("far = %f does not contain the box", c.Far)
	}

	before := c.Position
	c.FitToBounds([3]float32{1, 1, 1}, [3]float32{-1, -1, -1})
	if c.Position != before {
		t.Error("empty bounds should not move the camera")
	}
}
