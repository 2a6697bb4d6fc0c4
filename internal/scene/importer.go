// Package scene imports model files into GPU meshes and materials.
package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/newengine/internal/gpu"
)

// Parser reads a model file into raw meshes and materials.
type Parser func(path string) (*RawScene, error)

// Options controls import.
type Options struct {
	PostProcess    PostProcess
	MaxTextureSize int // 0 keeps source resolution
}

// DefaultOptions enables every post-processing step.
func DefaultOptions() Options {
	return Options{PostProcess: DefaultPostProcess}
}

// Importer drives a format parser and the Builder to produce scenes.
type Importer struct {
	builder *Builder
	opts    Options
	parsers map[string]Parser
	log     *zap.Logger
}

// NewImporter returns an importer with the OBJ and glTF parsers registered.
func NewImporter(f gpu.Factory, bounds *Bounds, opts Options, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	im := &Importer{
		builder: NewBuilder(f, bounds, opts.MaxTextureSize, log),
		opts:    opts,
		parsers: make(map[string]Parser),
		log:     log,
	}
	im.Register(".obj", ParseOBJ)
	im.Register(".gltf", ParseGLTF)
	im.Register(".glb", ParseGLTF)
	return im
}

// Register sets the parser for a file extension such as ".obj".
func (im *Importer) Register(ext string, p Parser) {
	im.parsers[strings.ToLower(ext)] = p
}

// Formats returns the registered extensions in sorted order.
func (im *Importer) Formats() []string {
	exts := make([]string, 0, len(im.parsers))
	for ext := range im.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse reads path and post-processes every mesh without touching the GPU.
// Meshes left without faces are dropped.
func (im *Importer) Parse(path string) (*RawScene, Report, error) {
	var rep Report
	if _, err := os.Stat(path); err != nil {
		return nil, rep, fmt.Errorf("%w: %w", ErrImport, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	parse, ok := im.parsers[ext]
	if !ok {
		return nil, rep, fmt.Errorf("%w: %w %q", ErrImport, ErrUnsupportedFormat, ext)
	}

	raw, err := parse(path)
	if err != nil {
		return nil, rep, fmt.Errorf("%w: %s: %w", ErrImport, path, err)
	}
	if raw == nil {
		return nil, rep, fmt.Errorf("%w: %s: parser returned no scene", ErrImport, path)
	}

	meshes := raw.Meshes[:0]
	for _, m := range raw.Meshes {
		r, err := Process(m, im.opts.PostProcess)
		if err != nil {
			return nil, rep, fmt.Errorf("%w: mesh %q: %w", ErrImport, m.Name, err)
		}
		rep.Add(r)
		if len(m.Faces) == 0 {
			im.log.Debug("dropping mesh without triangles", zap.String("mesh", m.Name))
			continue
		}
		meshes = append(meshes, m)
	}
	raw.Meshes = meshes
	return raw, rep, nil
}

// ImportScene parses path and uploads its meshes and materials. On failure
// nothing stays allocated and the error wraps ErrImport.
func (im *Importer) ImportScene(path string) (*Scene, error) {
	raw, rep, err := im.Parse(path)
	if err != nil {
		return nil, err
	}

	sc := &Scene{}
	local := NewBounds()
	for _, m := range raw.Meshes {
		mesh, err := im.builder.buildMesh(m, local)
		if err != nil {
			sc.Destroy(im.builder.factory)
			return nil, fmt.Errorf("%w: mesh %q: %w", ErrImport, m.Name, err)
		}
		sc.Meshes = append(sc.Meshes, mesh)
	}
	im.builder.bounds.Merge(local)

	modelDir := filepath.Dir(path)
	for _, m := range raw.Materials {
		sc.Materials = append(sc.Materials, im.builder.BuildMaterial(m, modelDir))
	}

	textured := 0
	for _, m := range sc.Materials {
		if m.UsesAlbedoTexture {
			textured++
		}
	}
	im.log.Info("scene imported",
		zap.String("path", path),
		zap.Int("meshes", len(sc.Meshes)),
		zap.Int("materials", len(sc.Materials)),
		zap.Int("textured", textured),
		zap.Int("triangulated", rep.Triangulated),
		zap.Int("removed_primitives", rep.RemovedPrimitives),
		zap.Int("welded", rep.WeldedVertices))
	return sc, nil
}
