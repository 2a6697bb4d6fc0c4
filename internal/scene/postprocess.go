package scene

import (
	"errors"
	"fmt"

	nemath "github.com/Faultbox/newengine/pkg/math"
)

var (
	// ErrImport wraps every failure to produce a scene from a file.
	ErrImport = errors.New("scene import failed")
	// ErrUnsupportedFormat is returned for files no parser is registered for.
	ErrUnsupportedFormat = errors.New("unsupported model format")
	// ErrMissingNormals is returned for meshes without per-vertex normals.
	ErrMissingNormals = errors.New("mesh has no normals")
	// ErrNonTriangularFace is returned when a face is not a triangle after post-processing.
	ErrNonTriangularFace = errors.New("non-triangular face")
	// ErrIndexOutOfRange is returned when a face references a missing vertex.
	ErrIndexOutOfRange = errors.New("vertex index out of range")
)

// PostProcess selects the steps applied to parsed meshes.
type PostProcess uint8

const (
	// Triangulate splits polygons into triangle fans.
	Triangulate PostProcess = 1 << iota
	// JoinIdenticalVertices merges vertices with equal position, normal and UV.
	JoinIdenticalVertices
	// SortByPType removes point and line primitives.
	SortByPType
	// CalcTangentSpace computes per-vertex tangents from UVs.
	CalcTangentSpace

	DefaultPostProcess = Triangulate | JoinIdenticalVertices | SortByPType | CalcTangentSpace
)

// Has reports whether step is enabled.
func (p PostProcess) Has(step PostProcess) bool {
	return p&step != 0
}

// Report counts what post-processing changed.
type Report struct {
	Triangulated      int // polygons split
	RemovedPrimitives int // points and lines dropped
	WeldedVertices    int // vertices merged away
}

// Add accumulates r2 into r.
func (r *Report) Add(r2 Report) {
	r.Triangulated += r2.Triangulated
	r.RemovedPrimitives += r2.RemovedPrimitives
	r.WeldedVertices += r2.WeldedVertices
}

// Process validates m, applies the enabled steps and checks the result is a
// triangle list.
func Process(m *RawMesh, steps PostProcess) (Report, error) {
	var rep Report
	if err := checkNormals(m); err != nil {
		return rep, err
	}
	if err := checkIndices(m); err != nil {
		return rep, err
	}
	if steps.Has(Triangulate) {
		rep.Triangulated = triangulate(m)
	}
	if steps.Has(SortByPType) {
		rep.RemovedPrimitives = removeNonTriangles(m)
	}
	if steps.Has(JoinIdenticalVertices) {
		rep.WeldedVertices = joinIdenticalVertices(m)
	}
	if steps.Has(CalcTangentSpace) {
		calcTangents(m)
	}
	for i, f := range m.Faces {
		if len(f) != 3 {
			return rep, fmt.Errorf("face %d has %d indices: %w", i, len(f), ErrNonTriangularFace)
		}
	}
	return rep, nil
}

func checkNormals(m *RawMesh) error {
	if len(m.Normals) == 0 && len(m.Positions) > 0 {
		return ErrMissingNormals
	}
	if len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("%d normals for %d positions: %w", len(m.Normals), len(m.Positions), ErrMissingNormals)
	}
	return nil
}

func checkIndices(m *RawMesh) error {
	n := uint32(len(m.Positions))
	for i, f := range m.Faces {
		for _, idx := range f {
			if idx >= n {
				return fmt.Errorf("face %d index %d, %d vertices: %w", i, idx, n, ErrIndexOutOfRange)
			}
		}
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Positions) {
		return fmt.Errorf("%d uvs for %d positions: %w", len(m.UVs), len(m.Positions), ErrIndexOutOfRange)
	}
	return nil
}

// triangulate replaces polygons with triangle fans around their first vertex.
func triangulate(m *RawMesh) int {
	split := 0
	out := make([][]uint32, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f) <= 3 {
			out = append(out, f)
			continue
		}
		split++
		for i := 2; i < len(f); i++ {
			out = append(out, []uint32{f[0], f[i-1], f[i]})
		}
	}
	m.Faces = out
	return split
}

// removeNonTriangles drops point and line faces.
func removeNonTriangles(m *RawMesh) int {
	kept := m.Faces[:0]
	removed := 0
	for _, f := range m.Faces {
		if len(f) < 3 {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	m.Faces = kept
	return removed
}

type vertexKey struct {
	pos    [3]float32
	normal [3]float32
	uv     [2]float32
}

// joinIdenticalVertices merges vertices with identical attributes and drops
// vertices no face references.
func joinIdenticalVertices(m *RawMesh) int {
	before := len(m.Positions)
	remap := make(map[uint32]uint32, before)
	unique := make(map[vertexKey]uint32, before)

	var positions, normals [][3]float32
	var uvs [][2]float32
	for _, f := range m.Faces {
		for j, idx := range f {
			if n, ok := remap[idx]; ok {
				f[j] = n
				continue
			}
			key := vertexKey{pos: m.Positions[idx], normal: m.Normals[idx]}
			if m.UVs != nil {
				key.uv = m.UVs[idx]
			}
			n, ok := unique[key]
			if !ok {
				n = uint32(len(positions))
				unique[key] = n
				positions = append(positions, key.pos)
				normals = append(normals, key.normal)
				if m.UVs != nil {
					uvs = append(uvs, key.uv)
				}
			}
			remap[idx] = n
			f[j] = n
		}
	}

	m.Positions = positions
	m.Normals = normals
	if m.UVs != nil {
		m.UVs = uvs
	}
	m.Tangents = nil
	return before - len(positions)
}

// calcTangents computes per-vertex tangents by accumulating triangle tangents
// and orthogonalizing them against the normal.
func calcTangents(m *RawMesh) {
	if len(m.UVs) != len(m.Positions) || len(m.Positions) == 0 {
		return
	}
	acc := make([]nemath.Vec3, len(m.Positions))
	for _, f := range m.Faces {
		if len(f) != 3 {
			continue
		}
		p0 := nemath.Vec3FromArray(m.Positions[f[0]])
		e1 := nemath.Vec3FromArray(m.Positions[f[1]]).Sub(p0)
		e2 := nemath.Vec3FromArray(m.Positions[f[2]]).Sub(p0)
		uv0, uv1, uv2 := m.UVs[f[0]], m.UVs[f[1]], m.UVs[f[2]]
		du1, dv1 := uv1[0]-uv0[0], uv1[1]-uv0[1]
		du2, dv2 := uv2[0]-uv0[0], uv2[1]-uv0[1]
		det := du1*dv2 - du2*dv1
		if det == 0 {
			continue
		}
		t := e1.Scale(dv2).Sub(e2.Scale(dv1)).Scale(1 / det)
		for _, idx := range f {
			acc[idx] = acc[idx].Add(t)
		}
	}

	m.Tangents = make([][3]float32, len(m.Positions))
	for i, t := range acc {
		n := nemath.Vec3FromArray(m.Normals[i])
		t = t.Sub(n.Scale(n.Dot(t))).Normalize()
		m.Tangents[i] = t.Array()
	}
}
