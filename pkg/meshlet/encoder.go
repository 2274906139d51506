package meshlet

import (
	"fmt"
	stdmath "math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/mesh"
)

// DefaultErrorTolerance keeps positions close to full precision while
// letting flat or small meshlets drop bits.
const DefaultErrorTolerance = 0.0001

// Settings controls encoding.
type Settings struct {
	// ErrorTolerance bounds the diagonal-relative position error per axis.
	ErrorTolerance float32
	// Workers caps the goroutines packing meshlets. 0 means GOMAXPROCS.
	Workers int
}

// DefaultSettings returns the asset builder defaults.
func DefaultSettings() Settings {
	return Settings{ErrorTolerance: DefaultErrorTolerance}
}

// Result is an encoded buffer plus what went into it.
type Result struct {
	// Data is the packed buffer, a multiple of 4 bytes.
	Data    []byte
	Headers []Header
	Stats   Stats
}

// Words returns Data as little-endian words.
func (r *Result) Words() []uint32 {
	words, _ := WordsFromBytes(r.Data)
	return words
}

type packed struct {
	header  Header
	payload BitWriter
}

// Encode packs meshlets of m into one buffer. Each meshlet's Bounds must be
// set, as cluster.Build does; it is used for both the width search and the
// header without being recomputed.
//
// Meshlets are packed independently on up to Settings.Workers goroutines and
// stitched together in order, so the output does not depend on the worker
// count.
func Encode(m *mesh.Mesh, meshlets []cluster.Meshlet, s Settings) (*Result, error) {
	if s.ErrorTolerance < 0 || stdmath.IsNaN(float64(s.ErrorTolerance)) {
		return nil, fmt.Errorf("meshlet: invalid error tolerance %v", s.ErrorTolerance)
	}

	parts := make([]packed, len(meshlets))

	var g errgroup.Group
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range meshlets {
		g.Go(func() error {
			return packMeshlet(m, &meshlets[i], s.ErrorTolerance, &parts[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	offset := uint64(len(parts)) * HeaderBits
	for i := range parts {
		if offset > stdmath.MaxUint32 {
			return nil, fmt.Errorf("%w: meshlet %d payload at bit %d", ErrBufferTooLarge, i, offset)
		}
		parts[i].header.DataOffset = uint32(offset)
		offset += parts[i].payload.Len()
	}
	if offset > stdmath.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bits", ErrBufferTooLarge, offset)
	}

	res := &Result{Headers: make([]Header, len(parts))}
	var w BitWriter
	for i := range parts {
		parts[i].header.write(&w)
		res.Headers[i] = parts[i].header
		res.Stats.add(&parts[i].header)
	}
	for i := range parts {
		w.Append(&parts[i].payload)
	}
	res.Data = w.Bytes()
	res.Stats.Bytes = len(res.Data)
	return res, nil
}

// packMeshlet checks capacity, selects widths and writes the payload. The
// data offset is filled in later.
func packMeshlet(m *mesh.Mesh, ml *cluster.Meshlet, tolerance float32, out *packed) error {
	nv, nt := len(ml.Vertices), ml.TriangleCount()
	switch {
	case nv > MaxVertices:
		return fmt.Errorf("%w: %d vertices", ErrTooManyVertices, nv)
	case nt > MaxTriangles:
		return fmt.Errorf("%w: %d triangles", ErrTooManyTriangles, nt)
	case nv == 0 || nt == 0 || len(ml.Triangles)%3 != 0:
		return ErrEmptyMeshlet
	}
	for _, v := range ml.Vertices {
		if int(v) >= len(m.Vertices) {
			return fmt.Errorf("%w: vertex %d of %d", mesh.ErrIndexOutOfRange, v, len(m.Vertices))
		}
	}

	h := Header{
		Bounds:        ml.Bounds,
		Size:          SelectVertexSize(m, ml.Vertices, ml.Bounds, tolerance),
		IndexBits:     IndexBits(nv),
		VertexCount:   uint32(nv),
		TriangleCount: uint32(nt),
	}

	w := &out.payload
	for _, v := range ml.Vertices {
		vert := &m.Vertices[v]
		for axis := 0; axis < 3; axis++ {
			b := h.Size.Axis(axis)
			w.Write(b, quantizePosition(vert.Position.Axis(axis), h.Bounds.Min.Axis(axis), h.Bounds.Max.Axis(axis), b))
		}
		w.Write(TexCoordBits, Quantize(vert.TexCoord.X, TexCoordBits))
		w.Write(TexCoordBits, Quantize(vert.TexCoord.Y, TexCoordBits))
		w.Write(NormalBits, encodeNormal(vert.Normal.X))
		w.Write(NormalBits, encodeNormal(vert.Normal.Y))
		w.Write(NormalBits, encodeNormal(vert.Normal.Z))
	}
	for _, l := range ml.Triangles {
		if int(l) >= nv {
			return fmt.Errorf("%w: local index %d of %d", cluster.ErrLocalIndexInvalid, l, nv)
		}
		w.Write(h.IndexBits, uint32(l))
	}

	out.header = h
	return nil
}
