package formats

import (
	"errors"
	"fmt"
	"io"
	stdmath "math"
	"os"
	"strings"

	"github.com/g3n/engine/loader/obj"

	"github.com/Faultbox/tessera/pkg/math"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// Source mesh errors.
var (
	ErrMissingPositions     = errors.New("mesh has no vertex positions")
	ErrMissingTexCoords     = errors.New("mesh vertex has no texture coordinate")
	ErrMissingNormals       = errors.New("mesh vertex has no normal")
	ErrInvalidFace          = errors.New("invalid face")
	ErrUnsupportedPrimitive = errors.New("unsupported primitive")
	ErrUnsupportedSource    = errors.New("unsupported source format")
)

// ErrMalformedOBJ wraps syntax errors reported by the OBJ decoder.
var ErrMalformedOBJ = errors.New("malformed OBJ")

// OBJ is a parsed Wavefront OBJ file. Attribute pools keep file order;
// faces are triangulated as fans and hold resolved zero-based indices.
type OBJ struct {
	Positions []math.Vec3
	TexCoords []math.Vec2
	Normals   []math.Vec3
	Triangles []OBJTriangle
	// Objects is the number of o/g blocks faces were grouped into.
	Objects int
	// Warnings are the decoder's notes on lines it skipped.
	Warnings []string
}

// OBJCorner references one attribute of each pool. -1 means absent.
type OBJCorner struct {
	Position int
	TexCoord int
	Normal   int
}

// OBJTriangle is three face corners.
type OBJTriangle [3]OBJCorner

// ParseOBJ parses OBJ text. Material libraries are not read.
func ParseOBJ(r io.Reader) (*OBJ, error) {
	dec, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOBJ, err)
	}

	o := &OBJ{
		Positions: make([]math.Vec3, len(dec.Vertices)/3),
		TexCoords: make([]math.Vec2, len(dec.Uvs)/2),
		Normals:   make([]math.Vec3, len(dec.Normals)/3),
		Objects:   len(dec.Objects),
		Warnings:  dec.Warnings,
	}
	for i := range o.Positions {
		o.Positions[i] = math.Vec3{X: dec.Vertices[3*i], Y: dec.Vertices[3*i+1], Z: dec.Vertices[3*i+2]}
	}
	for i := range o.TexCoords {
		o.TexCoords[i] = math.Vec2{X: dec.Uvs[2*i], Y: dec.Uvs[2*i+1]}
	}
	for i := range o.Normals {
		o.Normals[i] = math.Vec3{X: dec.Normals[3*i], Y: dec.Normals[3*i+1], Z: dec.Normals[3*i+2]}
	}

	for oi := range dec.Objects {
		for fi, f := range dec.Objects[oi].Faces {
			if err := o.addFace(&f); err != nil {
				return nil, fmt.Errorf("obj object %d face %d: %w", oi, fi, err)
			}
		}
	}
	return o, nil
}

// ParseOBJFile parses the OBJ file at path.
func ParseOBJFile(path string) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()
	return ParseOBJ(f)
}

// addFace checks the decoder's zero-based indices against the pools and
// fans the face into triangles.
func (o *OBJ) addFace(f *obj.Face) error {
	if len(f.Vertices) < 3 {
		return fmt.Errorf("%w: %d corners", ErrInvalidFace, len(f.Vertices))
	}

	corners := make([]OBJCorner, len(f.Vertices))
	for i, p := range f.Vertices {
		c := OBJCorner{TexCoord: -1, Normal: -1}
		var err error
		if c.Position, err = checkIndex(p, len(o.Positions), "position"); err != nil {
			return err
		}
		if i < len(f.Uvs) && !absentIndex(f.Uvs[i]) {
			if c.TexCoord, err = checkIndex(f.Uvs[i], len(o.TexCoords), "texcoord"); err != nil {
				return err
			}
		}
		if i < len(f.Normals) && !absentIndex(f.Normals[i]) {
			if c.Normal, err = checkIndex(f.Normals[i], len(o.Normals), "normal"); err != nil {
				return err
			}
		}
		corners[i] = c
	}

	for i := 1; i+1 < len(corners); i++ {
		o.Triangles = append(o.Triangles, OBJTriangle{corners[0], corners[i], corners[i+1]})
	}
	return nil
}

// absentIndex reports the decoder's marker for a corner without vt or vn.
// Parsed indices fit in 32-bit signed integers, the marker does not.
func absentIndex(i int) bool {
	return int64(i) > stdmath.MaxInt32
}

func checkIndex(i, n int, pool string) (int, error) {
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %s index %d outside %d elements", ErrInvalidFace, pool, i, n)
	}
	return i, nil
}

// Mesh de-indexes the face-varying corners into one vertex per corner.
// Every corner must carry a position, texture coordinate and normal.
// Duplicates are left for mesh.Deduplicate.
func (o *OBJ) Mesh() (*mesh.Mesh, error) {
	if len(o.Positions) == 0 {
		return nil, ErrMissingPositions
	}
	if len(o.Triangles) == 0 {
		return nil, mesh.ErrNoTriangles
	}

	m := &mesh.Mesh{
		Vertices: make([]mesh.Vertex, 0, 3*len(o.Triangles)),
		Indices:  make([]uint32, 0, 3*len(o.Triangles)),
	}
	for t, tri := range o.Triangles {
		for _, c := range tri {
			if c.TexCoord < 0 {
				return nil, fmt.Errorf("%w: triangle %d", ErrMissingTexCoords, t)
			}
			if c.Normal < 0 {
				return nil, fmt.Errorf("%w: triangle %d", ErrMissingNormals, t)
			}
			m.Indices = append(m.Indices, uint32(len(m.Vertices)))
			m.Vertices = append(m.Vertices, mesh.Vertex{
				Position: o.Positions[c.Position],
				TexCoord: o.TexCoords[c.TexCoord],
				Normal:   o.Normals[c.Normal],
			})
		}
	}
	return m, nil
}

// LoadOBJ parses the OBJ file at path into a mesh.
func LoadOBJ(path string) (*mesh.Mesh, error) {
	o, err := ParseOBJFile(path)
	if err != nil {
		return nil, err
	}
	return o.Mesh()
}
