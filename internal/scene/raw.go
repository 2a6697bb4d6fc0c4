package scene

// RawMesh is parsed geometry before post-processing and upload.
// Faces index into the per-vertex slices.
type RawMesh struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32 // nil when the source has none
	UVs       [][2]float32 // optional
	Tangents  [][3]float32 // filled by CalcTangentSpace when UVs exist
	Faces     [][]uint32

	MaterialIndex int // -1 when unassigned
}

// VertexCount returns the number of vertices.
func (m *RawMesh) VertexCount() int {
	return len(m.Positions)
}

// RawMaterial holds the material properties a parser found. Nil colors and
// empty paths mean the property is absent.
type RawMaterial struct {
	Name             string
	BaseColor        *[3]float32
	DiffuseColor     *[3]float32
	BaseColorTexture string
	DiffuseTexture   string
}

// RawScene is the output of a format parser.
type RawScene struct {
	Meshes    []*RawMesh
	Materials []*RawMaterial
}
