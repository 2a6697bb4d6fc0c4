package render

import (
	"fmt"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/scene"
)

// QuadLayout selects the vertex layout of the fullscreen quad.
type QuadLayout struct {
	Name string
	// PositionComponents is 2 or 3.
	PositionComponents int
	// HasUV appends a float2 texture coordinate with V growing downward.
	HasUV bool
}

// Supported quad layouts.
var (
	QuadPos3   = QuadLayout{Name: "pos3", PositionComponents: 3}
	QuadPos2   = QuadLayout{Name: "pos2", PositionComponents: 2}
	QuadPos2UV = QuadLayout{Name: "pos2uv", PositionComponents: 2, HasUV: true}
)

// QuadIndices draws the quad as two triangles.
var QuadIndices = []uint32{0, 2, 1, 0, 3, 2}

var (
	quadCorners = [4][2]float32{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}}
	quadUVs     = [4][2]float32{{0, 1}, {0, 0}, {1, 0}, {1, 1}}
)

// ParseQuadLayout returns the layout with the given config name.
func ParseQuadLayout(name string) (QuadLayout, error) {
	for _, l := range []QuadLayout{QuadPos3, QuadPos2, QuadPos2UV} {
		if l.Name == name {
			return l, nil
		}
	}
	return QuadLayout{}, fmt.Errorf("unknown quad layout %q (want pos3, pos2 or pos2uv)", name)
}

// Stride returns the size of one vertex in bytes.
func (l QuadLayout) Stride() int {
	n := l.PositionComponents
	if l.HasUV {
		n += 2
	}
	return n * 4
}

// Attributes returns the vertex attributes in shader location order.
func (l QuadLayout) Attributes() []gpu.VertexAttribute {
	pos := gpu.Float2
	if l.PositionComponents == 3 {
		pos = gpu.Float3
	}
	attrs := []gpu.VertexAttribute{{Format: pos, Offset: 0}}
	if l.HasUV {
		attrs = append(attrs, gpu.VertexAttribute{Format: gpu.Float2, Offset: l.PositionComponents * 4})
	}
	return attrs
}

// VertexShader returns the virtual path of the vertex shader matching the layout.
func (l QuadLayout) VertexShader() string {
	if l.HasUV {
		return "/Shaders/FinalPassUV.vert"
	}
	return "/Shaders/FinalPass.vert"
}

// Vertices returns the four corner vertices as float32 values.
func (l QuadLayout) Vertices() []float32 {
	out := make([]float32, 0, 4*l.Stride()/4)
	for i, c := range quadCorners {
		out = append(out, c[0], c[1])
		if l.PositionComponents == 3 {
			out = append(out, 0)
		}
		if l.HasUV {
			out = append(out, quadUVs[i][0], quadUVs[i][1])
		}
	}
	return out
}

// BuildQuad uploads a static fullscreen quad in layout l.
func BuildQuad(f gpu.Factory, l QuadLayout) (scene.Mesh, error) {
	if l.PositionComponents != 2 && l.PositionComponents != 3 {
		return scene.Mesh{}, fmt.Errorf("quad layout %q: %d position components", l.Name, l.PositionComponents)
	}

	data := putFloats(l.Vertices()...)

	vb, err := f.CreateVertexBuffer(gpu.VertexBufferCreateInfo{
		VertexSize:        len(data),
		IndexSize:         len(QuadIndices) * 4,
		CreateIndexBuffer: true,
		Usage:             gpu.BufferStatic,
	})
	if err != nil {
		return scene.Mesh{}, fmt.Errorf("creating quad buffer: %w", err)
	}
	if err := f.UploadVertexData(vb, data); err != nil {
		f.DestroyVertexBuffer(vb)
		return scene.Mesh{}, fmt.Errorf("uploading quad vertices: %w", err)
	}
	if err := f.UploadIndexData(vb, QuadIndices); err != nil {
		f.DestroyVertexBuffer(vb)
		return scene.Mesh{}, fmt.Errorf("uploading quad indices: %w", err)
	}

	return scene.Mesh{
		Name:        "quad-" + l.Name,
		Buffer:      vb,
		VertexCount: 4,
		IndexCount:  uint32(len(QuadIndices)),
	}, nil
}
