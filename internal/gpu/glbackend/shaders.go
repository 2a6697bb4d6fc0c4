package glbackend

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// ShaderPrefix is the virtual directory shader paths are resolved under.
const ShaderPrefix = "/Shaders/"

//go:embed shaders/*.vert shaders/*.frag
var embedded embed.FS

// overlayFS serves files from upper, falling back to lower when absent.
type overlayFS struct {
	upper fs.FS
	lower fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.upper.Open(name)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return o.lower.Open(name)
}

// ShaderFS returns the built-in shader tree, overlaid by root when it is set.
func ShaderFS(root string) fs.FS {
	base, err := fs.Sub(embedded, "shaders")
	if err != nil {
		panic(err) // embedded tree is fixed at build time
	}
	if root == "" {
		return base
	}
	return overlayFS{upper: os.DirFS(root), lower: base}
}

// readShader loads a shader by virtual path such as /Shaders/Forward.vert.
func readShader(fsys fs.FS, virtual string) (string, error) {
	if !strings.HasPrefix(virtual, ShaderPrefix) {
		return "", fmt.Errorf("shader path %q outside %s", virtual, ShaderPrefix)
	}
	name := path.Clean(strings.TrimPrefix(virtual, ShaderPrefix))
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("shader path %q is invalid", virtual)
	}
	src, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", fmt.Errorf("reading shader %s: %w", virtual, err)
	}
	return string(src), nil
}
