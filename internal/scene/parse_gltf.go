package scene

import (
	"fmt"
	"net/url"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ParseGLTF reads a .gltf or .glb file. Each triangle, point or line
// primitive becomes one mesh; strips and fans are rejected.
func ParseGLTF(path string) (*RawScene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoding gltf: %w", err)
	}

	raw := &RawScene{}
	for i, mat := range doc.Materials {
		raw.Materials = append(raw.Materials, gltfMaterial(doc, i, mat))
	}

	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			m, err := gltfPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			m.Name = mesh.Name
			if len(mesh.Primitives) > 1 {
				m.Name = fmt.Sprintf("%s.%d", mesh.Name, pi)
			}
			raw.Meshes = append(raw.Meshes, m)
		}
	}
	return raw, nil
}

func gltfPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*RawMesh, error) {
	m := &RawMesh{MaterialIndex: -1}
	if prim.Material != nil {
		m.MaterialIndex = int(*prim.Material)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("primitive has no positions")
	}
	acc, err := gltfAccessor(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	positions, err := modeler.ReadPosition(doc, acc, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	m.Positions = positions

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acc, err := gltfAccessor(doc, idx)
		if err == nil {
			m.Normals, err = modeler.ReadNormal(doc, acc, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acc, err := gltfAccessor(doc, idx)
		if err == nil {
			m.UVs, err = modeler.ReadTextureCoord(doc, acc, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("reading uvs: %w", err)
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		acc, err := gltfAccessor(doc, *prim.Indices)
		if err == nil {
			indices, err = modeler.ReadIndices(doc, acc, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	width := 0
	switch prim.Mode {
	case gltf.PrimitiveTriangles:
		width = 3
	case gltf.PrimitiveLines:
		width = 2
	case gltf.PrimitivePoints:
		width = 1
	default:
		return nil, fmt.Errorf("primitive mode %v unsupported", prim.Mode)
	}
	for i := 0; i+width <= len(indices); i += width {
		m.Faces = append(m.Faces, append([]uint32(nil), indices[i:i+width]...))
	}
	return m, nil
}

func gltfAccessor(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d of %d: %w", idx, len(doc.Accessors), ErrIndexOutOfRange)
	}
	return doc.Accessors[idx], nil
}

func gltfMaterial(doc *gltf.Document, i int, mat *gltf.Material) *RawMaterial {
	rm := &RawMaterial{Name: mat.Name}
	if rm.Name == "" {
		rm.Name = fmt.Sprintf("material%d", i)
	}
	pbr := mat.PBRMetallicRoughness
	if pbr == nil {
		return rm
	}
	if c := pbr.BaseColorFactor; c != nil {
		rm.BaseColor = &[3]float32{float32(c[0]), float32(c[1]), float32(c[2])}
	}
	if ti := pbr.BaseColorTexture; ti != nil && int(ti.Index) < len(doc.Textures) {
		if src := doc.Textures[ti.Index].Source; src != nil && int(*src) < len(doc.Images) {
			img := doc.Images[*src]
			if !img.IsEmbeddedResource() && img.URI != "" {
				if uri, err := url.PathUnescape(img.URI); err == nil {
					rm.BaseColorTexture = uri
				}
			}
		}
	}
	return rm
}
