package scene

import (
	"math"

	nemath "github.com/Faultbox/newengine/pkg/math"
)

// Bounds is a running axis-aligned bounding box over every vertex position
// built into a GPU mesh. It is never reset by scene replacement.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// NewBounds returns an empty box.
func NewBounds() *Bounds {
	b := &Bounds{}
	b.Reset()
	return b
}

// Reset empties the box.
func (b *Bounds) Reset() {
	inf := float32(math.Inf(1))
	b.Min = [3]float32{inf, inf, inf}
	b.Max = [3]float32{-inf, -inf, -inf}
}

// Add grows the box to contain p.
func (b *Bounds) Add(p [3]float32) {
	v := nemath.Vec3FromArray(p)
	b.Min = nemath.Vec3FromArray(b.Min).Min(v).Array()
	b.Max = nemath.Vec3FromArray(b.Max).Max(v).Array()
}

// Merge grows the box to contain other. An empty other changes nothing.
func (b *Bounds) Merge(other *Bounds) {
	if other.Empty() {
		return
	}
	b.Add(other.Min)
	b.Add(other.Max)
}

// Empty reports whether no point has been added.
func (b *Bounds) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Center returns the midpoint of the box.
func (b *Bounds) Center() nemath.Vec3 {
	return nemath.Vec3FromArray(b.Min).Add(nemath.Vec3FromArray(b.Max)).Scale(0.5)
}

// Size returns the extent of the box along each axis.
func (b *Bounds) Size() nemath.Vec3 {
	return nemath.Vec3FromArray(b.Max).Sub(nemath.Vec3FromArray(b.Min))
}
