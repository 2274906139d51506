// Package formats reads source meshes (Wavefront OBJ, glTF 2.0) and reads
// and writes the MLT meshlet asset container.
package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/tessera/pkg/mesh"
)

// IsSourceMesh reports whether path has a source mesh extension.
func IsSourceMesh(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj", ".gltf", ".glb":
		return true
	}
	return false
}

// LoadMesh loads a source mesh, picking the importer by extension.
func LoadMesh(path string) (*mesh.Mesh, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path)
	case ".gltf", ".glb":
		return LoadGLTF(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
	}
}
