package formats

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// glTF attribute semantics read by the importer.
const (
	gltfPosition = "POSITION"
	gltfNormal   = "NORMAL"
	gltfTexCoord = "TEXCOORD_0"
)

// LoadGLTF opens a .gltf or .glb file and merges the triangle primitives of
// every mesh into one mesh. Node transforms are not applied.
func LoadGLTF(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF file: %w", err)
	}
	return GLTFMesh(doc)
}

// GLTFMesh converts the primitives of doc into one mesh.
func GLTFMesh(doc *gltf.Document) (*mesh.Mesh, error) {
	m := &mesh.Mesh{}
	for mi, gm := range doc.Meshes {
		for pi, p := range gm.Primitives {
			if err := appendPrimitive(m, doc, p); err != nil {
				return nil, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
		}
	}
	if len(m.Vertices) == 0 {
		return nil, ErrMissingPositions
	}
	if len(m.Indices) == 0 {
		return nil, mesh.ErrNoTriangles
	}
	return m, nil
}

func appendPrimitive(m *mesh.Mesh, doc *gltf.Document, p *gltf.Primitive) error {
	if p.Mode != gltf.PrimitiveTriangles {
		return fmt.Errorf("%w: mode %v", ErrUnsupportedPrimitive, p.Mode)
	}

	posIdx, ok := p.Attributes[gltfPosition]
	if !ok {
		return ErrMissingPositions
	}
	uvIdx, ok := p.Attributes[gltfTexCoord]
	if !ok {
		return ErrMissingTexCoords
	}
	nrmIdx, ok := p.Attributes[gltfNormal]
	if !ok {
		return ErrMissingNormals
	}

	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("reading positions: %w", err)
	}
	texCoords, err := modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
	if err != nil {
		return fmt.Errorf("reading texture coordinates: %w", err)
	}
	normals, err := modeler.ReadNormal(doc, doc.Accessors[nrmIdx], nil)
	if err != nil {
		return fmt.Errorf("reading normals: %w", err)
	}
	if len(texCoords) != len(positions) || len(normals) != len(positions) {
		return fmt.Errorf("attribute counts differ: %d positions, %d texcoords, %d normals",
			len(positions), len(texCoords), len(normals))
	}

	var indices []uint32
	if p.Indices != nil {
		if indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil); err != nil {
			return fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", mesh.ErrIndexCount, len(indices))
	}

	base := uint32(len(m.Vertices))
	for i, pos := range positions {
		m.Vertices = append(m.Vertices, mesh.Vertex{
			Position: math.Vec3{X: pos[0], Y: pos[1], Z: pos[2]},
			TexCoord: math.Vec2{X: texCoords[i][0], Y: texCoords[i][1]},
			Normal:   math.Vec3{X: normals[i][0], Y: normals[i][1], Z: normals[i][2]},
		})
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return fmt.Errorf("%w: index %d of %d", mesh.ErrIndexOutOfRange, idx, len(positions))
		}
		m.Indices = append(m.Indices, base+idx)
	}
	return nil
}
