package mesh

import "github.com/chewxy/math32"

// vertexKey identifies a vertex by the exact bits of its attributes, so
// -0 and +0 stay distinct and NaN payloads compare equal.
type vertexKey [8]uint32

func keyOf(v Vertex) vertexKey {
	return vertexKey{
		math32.Float32bits(v.Position.X), math32.Float32bits(v.Position.Y), math32.Float32bits(v.Position.Z),
		math32.Float32bits(v.TexCoord.X), math32.Float32bits(v.TexCoord.Y),
		math32.Float32bits(v.Normal.X), math32.Float32bits(v.Normal.Y), math32.Float32bits(v.Normal.Z),
	}
}

// VertexRemap builds a remap table that maps every vertex to the first
// occurrence of a bitwise-identical vertex. It returns the number of unique
// vertices and the table; unique vertices are numbered in first-seen order
// while walking indices, so the result does not depend on unreferenced
// vertices.
func VertexRemap(vertices []Vertex, indices []uint32) (int, []uint32) {
	const unset = ^uint32(0)

	remap := make([]uint32, len(vertices))
	for i := range remap {
		remap[i] = unset
	}

	seen := make(map[vertexKey]uint32, len(vertices))
	next := uint32(0)
	for _, idx := range indices {
		if remap[idx] != unset {
			continue
		}
		k := keyOf(vertices[idx])
		if id, ok := seen[k]; ok {
			remap[idx] = id
			continue
		}
		seen[k] = next
		remap[idx] = next
		next++
	}
	return int(next), remap
}

// Deduplicate returns a copy of m with identical vertices merged and indices
// rewritten. Face-varying sources (one vertex per face corner) collapse back
// to shared vertices here.
func Deduplicate(m *Mesh) *Mesh {
	count, remap := VertexRemap(m.Vertices, m.Indices)

	vertices := make([]Vertex, count)
	for i, v := range m.Vertices {
		if r := remap[i]; r != ^uint32(0) {
			vertices[r] = v
		}
	}

	indices := make([]uint32, len(m.Indices))
	for i, idx := range m.Indices {
		indices[i] = remap[idx]
	}

	return &Mesh{Vertices: vertices, Indices: indices}
}
