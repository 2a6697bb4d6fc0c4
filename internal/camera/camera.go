// Package camera provides the perspective camera used by the forward pass.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/pkg/math"
)

// Camera is a perspective camera with a quaternion orientation.
type Camera struct {
	Position math.Vec3
	Near     float32
	Far      float32
	FOVY     float32 // radians

	orientation math.Quat
	pitch       float32
	yaw         float32
	aspect      float32

	// Input tuning
	MoveSpeed       float32 // world units per second
	LookSensitivity float32 // radians per pixel
	MaxPitch        float32
}

// New creates a camera at position looking down -Z.
func New(position math.Vec3, fovY, near, far float32) *Camera {
	return &Camera{
		Position:        position,
		Near:            near,
		Far:             far,
		FOVY:            fovY,
		orientation:     math.QuatIdentity(),
		aspect:          16.0 / 9.0,
		MoveSpeed:       5,
		LookSensitivity: 0.005,
		MaxPitch:        1.5,
	}
}

// SetEuler sets the orientation from pitch (X) and yaw (Y) in radians.
func (c *Camera) SetEuler(pitch, yaw float32) {
	if pitch > c.MaxPitch {
		pitch = c.MaxPitch
	}
	if pitch < -c.MaxPitch {
		pitch = -c.MaxPitch
	}
	c.pitch = pitch
	c.yaw = yaw
	c.orientation = math.QuatFromEuler(pitch, yaw, 0)
}

// Euler returns the pitch and yaw last set.
func (c *Camera) Euler() (pitch, yaw float32) {
	return c.pitch, c.yaw
}

// Orientation returns the unit orientation quaternion.
func (c *Camera) Orientation() math.Quat {
	return c.orientation
}

// Aspect returns width / height.
func (c *Camera) Aspect() float32 {
	return c.aspect
}

// SetAspect sets width / height. Non-positive values are ignored.
func (c *Camera) SetAspect(aspect float32) {
	if aspect > 0 {
		c.aspect = aspect
	}
}

// OnSwapchainRecreated keeps the aspect in step with the swap extent.
func (c *Camera) OnSwapchainRecreated(_ gpu.Swapchain, extent gpu.Extent) error {
	if !extent.Empty() {
		c.SetAspect(extent.Aspect())
	}
	return nil
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math.Vec3 {
	return c.orientation.Rotate(math.Vec3{Z: -1})
}

// Right returns the unit right direction.
func (c *Camera) Right() math.Vec3 {
	return c.orientation.Rotate(math.Vec3{X: 1})
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() math.Mat4 {
	return math.Perspective(c.FOVY, c.aspect, c.Near, c.Far)
}

// View returns the inverse of the camera's world transform.
func (c *Camera) View() math.Mat4 {
	world := math.TranslateVec3(c.Position).Mul(c.orientation.ToMat4())
	return world.Inverse()
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.Projection().Mul(c.View())
}

// UniformViewProjection returns the view-projection in the layout the
// forward shaders read: the transpose of ViewProjection.
func (c *Camera) UniformViewProjection() math.Mat4 {
	return c.ViewProjection().Transpose()
}

// HandleMovement moves the camera along its own axes. Arguments are -1..1
// inputs; dt is in seconds.
func (c *Camera) HandleMovement(forward, right, up, dt float32) {
	step := c.MoveSpeed * dt
	move := c.Forward().Scale(forward * step).
		Add(c.Right().Scale(right * step)).
		Add(math.Vec3{Y: up * step})
	c.Position = c.Position.Add(move)
}

// HandleLook turns the camera by a mouse delta in pixels.
func (c *Camera) HandleLook(deltaX, deltaY float32) {
	c.SetEuler(c.pitch-deltaY*c.LookSensitivity, c.yaw-deltaX*c.LookSensitivity)
}

// FitToBounds moves the camera back along its view direction until the box
// fits the vertical field of view, and pushes Far out to contain it.
func (c *Camera) FitToBounds(min, max [3]float32) {
	lo := math.Vec3FromArray(min)
	hi := math.Vec3FromArray(max)
	if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
		return
	}
	center := lo.Add(hi).Scale(0.5)
	radius := lo.Distance(hi) / 2
	if radius == 0 {
		radius = 1
	}

	dist := radius / math32.Sin(c.FOVY/2)
	c.Position = center.Sub(c.Forward().Scale(dist))
	if need := dist + radius*2; c.Far < need {
		c.Far = need
	}
	c.MoveSpeed = radius
}
