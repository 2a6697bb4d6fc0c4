package scene

import (
	"encoding/binary"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/gpu/gputest"
)

func triangleMesh() *RawMesh {
	return &RawMesh{
		Positions: [][3]float32{{-1, 0, 2}, {3, -5, 0}, {0, 4, -1}},
		Normals:   [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}},
		Faces:     [][]uint32{{0, 1, 2}},
	}
}

func TestBuildMeshUploadsInterleavedVertices(t *testing.T) {
	dev := gputest.NewDevice()
	bounds := NewBounds()
	b := NewBuilder(dev, bounds, 0, nil)

	mesh, err := b.BuildMesh(triangleMesh())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), mesh.VertexCount)
	assert.Equal(t, uint32(3), mesh.IndexCount)

	data, indices, ok := dev.VertexData(mesh.Buffer)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2}, indices)
	require.Len(t, data, 3*VertexStride)

	// Second vertex: position (3,-5,0), normal (0,1,0)
	at := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	assert.Equal(t, []float32{3, -5, 0, 0, 1, 0}, []float32{at(6), at(7), at(8), at(9), at(10), at(11)})
}

func TestBuildMeshAccumulatesBounds(t *testing.T) {
	dev := gputest.NewDevice()
	bounds := NewBounds()
	b := NewBuilder(dev, bounds, 0, nil)
	assert.True(t, bounds.Empty())

	_, err := b.BuildMesh(triangleMesh())
	require.NoError(t, err)
	assert.Equal(t, [3]float32{-1, -5, -1}, bounds.Min)
	assert.Equal(t, [3]float32{3, 4, 2}, bounds.Max)

	second := triangleMesh()
	second.Positions[0] = [3]float32{10, 0, 0}
	_, err = b.BuildMesh(second)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{-1, -5, -1}, bounds.Min)
	assert.Equal(t, [3]float32{10, 4, 2}, bounds.Max)

	for i := 0; i < 3; i++ {
		assert.LessOrEqual(t, bounds.Min[i], bounds.Max[i])
	}
}

func TestBuildMeshRejectsInvalidInput(t *testing.T) {
	dev := gputest.NewDevice()
	b := NewBuilder(dev, NewBounds(), 0, nil)

	m := triangleMesh()
	m.Faces = [][]uint32{{0, 1, 2, 0}}
	_, err := b.BuildMesh(m)
	assert.ErrorIs(t, err, ErrNonTriangularFace)

	m = triangleMesh()
	m.Normals = nil
	_, err = b.BuildMesh(m)
	assert.ErrorIs(t, err, ErrMissingNormals)

	assert.Zero(t, dev.Live())
}

func TestBuildMeshUploadFailureReleasesBuffer(t *testing.T) {
	dev := gputest.NewDevice()
	bounds := NewBounds()
	b := NewBuilder(dev, bounds, 0, nil)
	dev.FailNext("UploadIndexData", gpu.ErrDeviceLost)

	_, err := b.BuildMesh(triangleMesh())
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.Zero(t, dev.Live())
	assert.True(t, bounds.Empty())
}

func TestBuildMaterialColorFallback(t *testing.T) {
	red := [3]float32{0.8, 0.2, 0.2}
	blue := [3]float32{0, 0, 1}

	tests := []struct {
		name string
		raw  RawMaterial
		want [3]float32
	}{
		{"no color", RawMaterial{}, White},
		{"diffuse only", RawMaterial{DiffuseColor: &red}, red},
		{"base color only", RawMaterial{BaseColor: &blue}, blue},
		{"base wins over diffuse", RawMaterial{BaseColor: &blue, DiffuseColor: &red}, blue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(gputest.NewDevice(), NewBounds(), 0, nil)
			mat := b.BuildMaterial(&tt.raw, t.TempDir())
			assert.Equal(t, tt.want, mat.AlbedoColor)
			assert.False(t, mat.UsesAlbedoTexture)
			assert.Zero(t, mat.AlbedoTexture)
		})
	}
}

func TestBuildMaterialMissingTexture(t *testing.T) {
	dev := gputest.NewDevice()
	b := NewBuilder(dev, NewBounds(), 0, nil)

	mat := b.BuildMaterial(&RawMaterial{DiffuseTexture: "missing.png"}, t.TempDir())
	assert.False(t, mat.UsesAlbedoTexture)
	assert.Zero(t, mat.AlbedoTexture)
	assert.Equal(t, White, mat.AlbedoColor)
	assert.Zero(t, dev.Live())
}

func TestBuildMaterialCorruptTexture(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.png": "garbage"})
	b := NewBuilder(gputest.NewDevice(), NewBounds(), 0, nil)

	mat := b.BuildMaterial(&RawMaterial{BaseColorTexture: "bad.png"}, dir)
	assert.False(t, mat.UsesAlbedoTexture)
}

func TestBuildMaterialLoadsRelativeTexture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0755))
	f, err := os.Create(filepath.Join(dir, "textures", "albedo.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, f.Close())

	dev := gputest.NewDevice()
	b := NewBuilder(dev, NewBounds(), 0, nil)

	// Base color texture is absent, so the diffuse path is used.
	mat := b.BuildMaterial(&RawMaterial{DiffuseTexture: `textures\albedo.png`}, dir)
	assert.True(t, mat.UsesAlbedoTexture)
	assert.NotZero(t, mat.AlbedoTexture)

	sc := &Scene{Materials: []Material{mat}}
	sc.Destroy(dev)
	assert.Zero(t, dev.Live())
}

func TestResolveAssetPath(t *testing.T) {
	dir := filepath.Join("models", "house")
	assert.Equal(t, filepath.Join(dir, "tex", "a.png"), ResolveAssetPath(`tex\a.png`, dir))
	assert.Equal(t, filepath.Join(dir, "b.png"), ResolveAssetPath("b.png", dir))

	abs, err := filepath.Abs("c.png")
	require.NoError(t, err)
	assert.Equal(t, abs, ResolveAssetPath(abs, dir))
}
