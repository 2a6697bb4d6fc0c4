package scene

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/newengine/internal/gpu/gputest"
)

func TestImportSceneOBJ(t *testing.T) {
	dir := writeFiles(t, map[string]string{"quad.obj": quadOBJ, "quad.mtl": redMTL})
	dev := gputest.NewDevice()
	bounds := NewBounds()
	im := NewImporter(dev, bounds, DefaultOptions(), nil)

	sc, err := im.ImportScene(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)

	require.Len(t, sc.Meshes, 1)
	assert.Equal(t, uint32(6), sc.Meshes[0].IndexCount)
	assert.Equal(t, uint32(4), sc.Meshes[0].VertexCount)

	require.Len(t, sc.Materials, 1)
	assert.False(t, sc.Materials[0].UsesAlbedoTexture)
	assert.InDeltaSlice(t, []float32{0.8, 0.2, 0.2}, sc.Materials[0].AlbedoColor[:], 1e-6)

	assert.Equal(t, [3]float32{-1, -1, 0}, bounds.Min)
	assert.Equal(t, [3]float32{1, 1, 0}, bounds.Max)

	sc.Destroy(dev)
	assert.Zero(t, dev.Live())
}

func TestImportSceneOBJWithoutDiffuse(t *testing.T) {
	mtl := "newmtl plain\nNs 10\n"
	obj := "mtllib quad.mtl\no quad\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nusemtl plain\nf 1//1 2//1 3//1\n"
	dir := writeFiles(t, map[string]string{"quad.obj": obj, "quad.mtl": mtl})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)

	sc, err := im.ImportScene(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	require.Len(t, sc.Materials, 1)
	assert.Equal(t, White, sc.Materials[0].AlbedoColor)
	assert.False(t, sc.Materials[0].UsesAlbedoTexture)
}

func TestImportSceneOBJMissingTexture(t *testing.T) {
	mtl := "newmtl red\nKd 0.8 0.2 0.2\nmap_Kd textures\\missing.png\n"
	dir := writeFiles(t, map[string]string{"quad.obj": quadOBJ, "quad.mtl": mtl})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)

	sc, err := im.ImportScene(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	require.Len(t, sc.Materials, 1)
	assert.False(t, sc.Materials[0].UsesAlbedoTexture)
	assert.Zero(t, sc.Materials[0].AlbedoTexture)
}

func TestImportSceneOBJPolygon(t *testing.T) {
	obj := "o pent\nv 0 0 0\nv 1 0 0\nv 1.5 1 0\nv 0.5 2 0\nv -0.5 1 0\nvn 0 0 1\nf 1//1 2//1 3//1 4//1 5//1\n"
	dir := writeFiles(t, map[string]string{"pent.obj": obj})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)

	sc, err := im.ImportScene(filepath.Join(dir, "pent.obj"))
	require.NoError(t, err)
	require.Len(t, sc.Meshes, 1)
	assert.Equal(t, uint32(9), sc.Meshes[0].IndexCount)
	assert.Zero(t, sc.Meshes[0].IndexCount%3)
}

func TestImportSceneOBJMissingNormals(t *testing.T) {
	obj := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	dir := writeFiles(t, map[string]string{"tri.obj": obj})
	dev := gputest.NewDevice()
	im := NewImporter(dev, NewBounds(), DefaultOptions(), nil)

	_, err := im.ImportScene(filepath.Join(dir, "tri.obj"))
	assert.ErrorIs(t, err, ErrImport)
	assert.ErrorIs(t, err, ErrMissingNormals)
	assert.Zero(t, dev.Live())
}

func TestImportSceneErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{"model.fbx": "binary"})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)

	_, err := im.ImportScene(filepath.Join(dir, "missing.obj"))
	assert.ErrorIs(t, err, ErrImport)

	_, err = im.ImportScene(filepath.Join(dir, "model.fbx"))
	assert.ErrorIs(t, err, ErrImport)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportSceneCorruptFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "obj face past vertices",
			file:    "bad.obj",
			content: "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvn 0 0 1\nf 1//1 2//1 9//1\n",
		},
		{
			name:    "gltf position accessor missing",
			file:    "bad.gltf",
			content: `{"asset":{"version":"2.0"},"meshes":[{"primitives":[{"attributes":{"POSITION":7}}]}]}`,
		},
		{
			name:    "gltf index accessor missing",
			file:    "badidx.gltf",
			content: `{"asset":{"version":"2.0"},"meshes":[{"primitives":[{"attributes":{"POSITION":0},"indices":3}]}],"accessors":[{"componentType":5126,"count":0,"type":"VEC3"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{tt.file: tt.content})
			dev := gputest.NewDevice()
			im := NewImporter(dev, NewBounds(), DefaultOptions(), nil)

			_, err := im.ImportScene(filepath.Join(dir, tt.file))
			assert.ErrorIs(t, err, ErrImport)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
			assert.Zero(t, dev.Live())
		})
	}
}

func TestImportSceneCustomParser(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.tri": ""})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)
	im.Register(".TRI", func(string) (*RawScene, error) {
		return &RawScene{Meshes: []*RawMesh{triangleMesh()}}, nil
	})
	assert.Contains(t, im.Formats(), ".tri")

	sc, err := im.ImportScene(filepath.Join(dir, "a.tri"))
	require.NoError(t, err)
	assert.Len(t, sc.Meshes, 1)
	assert.Empty(t, sc.Materials)
}

func TestImportSceneNilParserResult(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.nil": ""})
	im := NewImporter(gputest.NewDevice(), NewBounds(), DefaultOptions(), nil)
	im.Register(".nil", func(string) (*RawScene, error) { return nil, nil })

	_, err := im.ImportScene(filepath.Join(dir, "a.nil"))
	assert.ErrorIs(t, err, ErrImport)
}

func TestBoundsPersistAcrossImports(t *testing.T) {
	dir := writeFiles(t, map[string]string{"quad.obj": quadOBJ, "quad.mtl": redMTL})
	bounds := NewBounds()
	bounds.Add([3]float32{-10, 0, 0})
	im := NewImporter(gputest.NewDevice(), bounds, DefaultOptions(), nil)

	_, err := im.ImportScene(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	assert.Equal(t, [3]float32{-10, -1, 0}, bounds.Min)
	assert.Equal(t, [3]float32{1, 1, 0}, bounds.Max)
}

func TestImportSceneGLB(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 3, 0}, {2, 3, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 2, 1, 3})
	doc.Meshes = []*gltf.Mesh{{
		Name: "panel",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idx),
			Attributes: gltf.Attribute{gltf.POSITION: pos, gltf.NORMAL: nrm},
			Material:   gltf.Index(0),
		}},
	}}
	doc.Materials = []*gltf.Material{{
		Name: "paint",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{0.1, 0.2, 0.3, 1},
		},
	}}
	path := filepath.Join(t.TempDir(), "panel.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))

	dev := gputest.NewDevice()
	bounds := NewBounds()
	im := NewImporter(dev, bounds, DefaultOptions(), nil)
	sc, err := im.ImportScene(path)
	require.NoError(t, err)

	require.Len(t, sc.Meshes, 1)
	assert.Equal(t, uint32(6), sc.Meshes[0].IndexCount)
	require.Len(t, sc.Materials, 1)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, sc.Materials[0].AlbedoColor[:], 1e-6)
	assert.Equal(t, [3]float32{2, 3, 0}, bounds.Max)
}

func TestImportSceneFailureLeavesBoundsUntouched(t *testing.T) {
	dir := writeFiles(t, map[string]string{"two.tri": ""})
	dev := gputest.NewDevice()
	bounds := NewBounds()
	bounds.Add([3]float32{0, 0, 0})
	im := NewImporter(dev, bounds, DefaultOptions(), nil)
	im.Register(".tri", func(string) (*RawScene, error) {
		far := triangleMesh()
		far.Positions = [][3]float32{{100, 0, 0}, {0, 100, 0}, {0, 0, 100}}
		return &RawScene{Meshes: []*RawMesh{far, triangleMesh()}}, nil
	})
	dev.FailNext("UploadVertexData", nil)
	dev.FailNext("UploadVertexData", errors.New("out of memory"))

	_, err := im.ImportScene(filepath.Join(dir, "two.tri"))
	require.ErrorIs(t, err, ErrImport)
	assert.Equal(t, [3]float32{0, 0, 0}, bounds.Min)
	assert.Equal(t, [3]float32{0, 0, 0}, bounds.Max)
	assert.Zero(t, dev.Live())
}
