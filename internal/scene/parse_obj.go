package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/g3n/engine/loader/obj"
)

// ParseOBJ reads a Wavefront OBJ file and its material library. Each object
// becomes one mesh; vertices are unique per position/normal/uv index triple.
func ParseOBJ(path string) (*RawScene, error) {
	objFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer objFile.Close()

	mtlPath := findMaterialLib(path)
	var mtl io.Reader = strings.NewReader("")
	declared := map[string]map[string]bool{}
	if mtlPath != "" {
		f, err := os.Open(mtlPath)
		if err != nil {
			return nil, fmt.Errorf("opening material library: %w", err)
		}
		defer f.Close()
		declared, err = scanMaterialStatements(f)
		if err != nil {
			return nil, fmt.Errorf("reading material library: %w", err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		mtl = f
	}

	dec, err := obj.DecodeReader(objFile, mtl)
	if err != nil {
		return nil, fmt.Errorf("decoding obj: %w", err)
	}

	raw := &RawScene{}
	names := make([]string, 0, len(dec.Materials))
	for name := range dec.Materials {
		names = append(names, name)
	}
	sort.Strings(names)
	matIndex := make(map[string]int, len(names))
	for i, name := range names {
		matIndex[name] = i
		raw.Materials = append(raw.Materials, objMaterial(name, dec.Materials[name], declared[name]))
	}

	for i := range dec.Objects {
		o := &dec.Objects[i]
		if len(o.Faces) == 0 {
			continue
		}
		m, err := objMesh(dec, o, matIndex)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
		raw.Meshes = append(raw.Meshes, m)
	}
	return raw, nil
}

// objMaterial keeps only the properties the material library declared.
func objMaterial(name string, m *obj.Material, declared map[string]bool) *RawMaterial {
	rm := &RawMaterial{Name: name}
	if m == nil {
		return rm
	}
	if declared["kd"] {
		rm.DiffuseColor = &[3]float32{m.Diffuse.R, m.Diffuse.G, m.Diffuse.B}
	}
	if declared["map_kd"] {
		rm.DiffuseTexture = m.MapKd
	}
	return rm
}

type cornerKey struct {
	v, vn, vt int
}

func objMesh(dec *obj.Decoder, o *obj.Object, matIndex map[string]int) (*RawMesh, error) {
	m := &RawMesh{Name: o.Name, MaterialIndex: -1}
	if idx, ok := matIndex[o.Faces[0].Material]; ok {
		m.MaterialIndex = idx
	}

	corners := make(map[cornerKey]uint32)
	hasNormals, hasUVs := true, false
	for _, f := range o.Faces {
		for j := range f.Vertices {
			if objIndex(f.Uvs, j, len(dec.Uvs), 2) >= 0 {
				hasUVs = true
			}
		}
	}

	vertexCount := len(dec.Vertices) / 3
	for fi, f := range o.Faces {
		face := make([]uint32, 0, len(f.Vertices))
		for j, v := range f.Vertices {
			if v < 0 || v >= vertexCount {
				return nil, fmt.Errorf("face %d vertex %d of %d: %w", fi, v+1, vertexCount, ErrIndexOutOfRange)
			}
			key := cornerKey{
				v:  v,
				vn: objIndex(f.Normals, j, len(dec.Normals), 3),
				vt: objIndex(f.Uvs, j, len(dec.Uvs), 2),
			}
			idx, ok := corners[key]
			if !ok {
				idx = uint32(len(m.Positions))
				corners[key] = idx
				m.Positions = append(m.Positions, [3]float32{
					dec.Vertices[v*3], dec.Vertices[v*3+1], dec.Vertices[v*3+2],
				})
				if key.vn >= 0 {
					m.Normals = append(m.Normals, [3]float32{
						dec.Normals[key.vn*3], dec.Normals[key.vn*3+1], dec.Normals[key.vn*3+2],
					})
				} else {
					hasNormals = false
				}
				if hasUVs {
					var uv [2]float32
					if key.vt >= 0 {
						uv = [2]float32{dec.Uvs[key.vt*2], dec.Uvs[key.vt*2+1]}
					}
					m.UVs = append(m.UVs, uv)
				}
			}
			face = append(face, idx)
		}
		m.Faces = append(m.Faces, face)
	}

	if !hasNormals {
		m.Normals = nil
	}
	return m, nil
}

// objIndex returns the attribute index of corner j, or -1 when the corner has
// none or it points past the attribute array.
func objIndex(indices []int, j, arrayLen, width int) int {
	if j >= len(indices) {
		return -1
	}
	idx := indices[j]
	if idx < 0 || (idx+1)*width > arrayLen {
		return -1
	}
	return idx
}

// findMaterialLib returns the material library named by the first mtllib
// statement, resolved next to the OBJ file, or the OBJ's sibling .mtl file.
func findMaterialLib(objPath string) string {
	dir := filepath.Dir(objPath)
	if f, err := os.Open(objPath); err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			fields := strings.Fields(sc.Text())
			if len(fields) >= 2 && fields[0] == "mtllib" {
				p := ResolveAssetPath(strings.Join(fields[1:], " "), dir)
				if _, err := os.Stat(p); err == nil {
					return p
				}
				break
			}
		}
	}
	sibling := strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".mtl"
	if _, err := os.Stat(sibling); err == nil {
		return sibling
	}
	return ""
}

// scanMaterialStatements records which statements each newmtl block declares,
// keyed by lowercase statement name.
func scanMaterialStatements(r io.Reader) (map[string]map[string]bool, error) {
	out := map[string]map[string]bool{}
	var current map[string]bool
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		key := strings.ToLower(fields[0])
		if key == "newmtl" && len(fields) >= 2 {
			current = map[string]bool{}
			out[strings.Join(fields[1:], " ")] = current
			continue
		}
		if current != nil {
			current[key] = true
		}
	}
	return out, sc.Err()
}
