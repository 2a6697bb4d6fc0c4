package scene

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
	"github.com/Faultbox/newengine/internal/texture"
)

// VertexStride is the size of one uploaded vertex: position then normal, 3 floats each.
const VertexStride = 6 * 4

// VertexAttributes describes the uploaded vertex layout.
var VertexAttributes = []gpu.VertexAttribute{
	{Format: gpu.Float3, Offset: 0},
	{Format: gpu.Float3, Offset: 12},
}

// White is the albedo of materials without a base or diffuse color.
var White = [3]float32{1, 1, 1}

// Mesh is an uploaded triangle list.
type Mesh struct {
	Name        string
	Buffer      gpu.VertexBuffer
	VertexCount uint32
	IndexCount  uint32
}

// Material is a flat albedo color with an optional albedo texture.
type Material struct {
	Name              string
	AlbedoColor       [3]float32
	AlbedoTexture     gpu.Texture
	UsesAlbedoTexture bool
}

// Scene owns the meshes and materials of one imported file.
type Scene struct {
	Meshes    []Mesh
	Materials []Material
}

// Destroy releases every GPU resource the scene owns.
func (s *Scene) Destroy(f gpu.Factory) {
	if s == nil {
		return
	}
	for _, m := range s.Meshes {
		f.DestroyVertexBuffer(m.Buffer)
	}
	for _, m := range s.Materials {
		if m.UsesAlbedoTexture {
			f.DestroyTexture(m.AlbedoTexture)
		}
	}
	s.Meshes = nil
	s.Materials = nil
}

// Builder turns post-processed raw meshes and materials into GPU resources.
type Builder struct {
	factory        gpu.Factory
	bounds         *Bounds
	log            *zap.Logger
	maxTextureSize int
}

// NewBuilder returns a builder that grows bounds with every mesh it builds.
func NewBuilder(f gpu.Factory, bounds *Bounds, maxTextureSize int, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{factory: f, bounds: bounds, log: log, maxTextureSize: maxTextureSize}
}

// BuildMesh uploads m as one static buffer holding the vertex region followed
// by the index region. m must already be a valid triangle list.
func (b *Builder) BuildMesh(m *RawMesh) (Mesh, error) {
	return b.buildMesh(m, b.bounds)
}

// buildMesh grows bounds only once the upload has succeeded.
func (b *Builder) buildMesh(m *RawMesh, bounds *Bounds) (Mesh, error) {
	if len(m.Normals) != len(m.Positions) {
		return Mesh{}, ErrMissingNormals
	}

	indices := make([]uint32, 0, len(m.Faces)*3)
	for i, f := range m.Faces {
		if len(f) != 3 {
			return Mesh{}, fmt.Errorf("face %d: %w", i, ErrNonTriangularFace)
		}
		for _, idx := range f {
			if int(idx) >= len(m.Positions) {
				return Mesh{}, fmt.Errorf("face %d: %w", i, ErrIndexOutOfRange)
			}
		}
		indices = append(indices, f...)
	}

	vertices := encodeVertices(m.Positions, m.Normals)
	vb, err := b.factory.CreateVertexBuffer(gpu.VertexBufferCreateInfo{
		VertexSize:        max(len(vertices), VertexStride),
		IndexSize:         max(len(indices)*4, 4),
		CreateIndexBuffer: true,
		Usage:             gpu.BufferStatic,
	})
	if err != nil {
		return Mesh{}, fmt.Errorf("creating vertex buffer: %w", err)
	}
	if err := b.factory.UploadVertexData(vb, vertices); err != nil {
		b.factory.DestroyVertexBuffer(vb)
		return Mesh{}, fmt.Errorf("uploading vertices: %w", err)
	}
	if err := b.factory.UploadIndexData(vb, indices); err != nil {
		b.factory.DestroyVertexBuffer(vb)
		return Mesh{}, fmt.Errorf("uploading indices: %w", err)
	}

	for _, p := range m.Positions {
		bounds.Add(p)
	}

	return Mesh{
		Name:        m.Name,
		Buffer:      vb,
		VertexCount: uint32(len(m.Positions)),
		IndexCount:  uint32(len(indices)),
	}, nil
}

// encodeVertices interleaves positions and normals as little-endian float32.
func encodeVertices(positions, normals [][3]float32) []byte {
	buf := make([]byte, len(positions)*VertexStride)
	off := 0
	put := func(v [3]float32) {
		for _, c := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
			off += 4
		}
	}
	for i := range positions {
		put(positions[i])
		put(normals[i])
	}
	return buf
}

// BuildMaterial resolves albedo color and texture. Base color wins over
// diffuse color, which wins over White. A texture that fails to load leaves
// the material untextured.
func (b *Builder) BuildMaterial(m *RawMaterial, modelDir string) Material {
	mat := Material{Name: m.Name, AlbedoColor: White}
	switch {
	case m.BaseColor != nil:
		mat.AlbedoColor = *m.BaseColor
	case m.DiffuseColor != nil:
		mat.AlbedoColor = *m.DiffuseColor
	}

	texPath := m.BaseColorTexture
	if texPath == "" {
		texPath = m.DiffuseTexture
	}
	if texPath == "" {
		return mat
	}
	texPath = ResolveAssetPath(texPath, modelDir)

	img, err := texture.Load(texPath, b.maxTextureSize)
	if err != nil {
		b.log.Warn("albedo texture unavailable",
			zap.String("material", m.Name),
			zap.String("path", texPath),
			zap.Error(err))
		return mat
	}
	tex, err := texture.Upload(b.factory, img)
	if err != nil {
		b.log.Warn("albedo texture upload failed",
			zap.String("material", m.Name),
			zap.String("path", texPath),
			zap.Error(err))
		return mat
	}

	mat.AlbedoTexture = tex
	mat.UsesAlbedoTexture = true
	return mat
}

// ResolveAssetPath normalizes separators and resolves relative paths against modelDir.
func ResolveAssetPath(path, modelDir string) string {
	path = filepath.FromSlash(strings.ReplaceAll(path, "\\", "/"))
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(modelDir, path)
}
