package meshlet

import "fmt"

// Stats summarizes an encoded buffer.
type Stats struct {
	Meshlets    int
	Vertices    int
	Triangles   int
	HeaderBits  uint64
	PayloadBits uint64
	// Bytes is the padded buffer size.
	Bytes int
	// Widths counts chosen position widths over all meshlet axes.
	Widths [FullBits + 1]int
}

// BitsPerVertex returns the average encoded size per vertex, headers and
// triangle records included.
func (s *Stats) BitsPerVertex() float64 {
	if s.Vertices == 0 {
		return 0
	}
	return float64(s.HeaderBits+s.PayloadBits) / float64(s.Vertices)
}

// AveragePositionBits returns the mean chosen width per axis.
func (s *Stats) AveragePositionBits() float64 {
	var sum, n int
	for w, c := range s.Widths {
		sum += w * c
		n += c
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func (s *Stats) add(h *Header) {
	s.Meshlets++
	s.Vertices += int(h.VertexCount)
	s.Triangles += int(h.TriangleCount)
	s.HeaderBits += HeaderBits
	s.PayloadBits += h.PayloadBits()
	s.Widths[h.Size.X]++
	s.Widths[h.Size.Y]++
	s.Widths[h.Size.Z]++
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d meshlets, %d vertices, %d triangles, %d bytes, %.1f bits/vertex",
		s.Meshlets, s.Vertices, s.Triangles, s.Bytes, s.BitsPerVertex())
}

// StatsOf summarizes parsed headers of a buffer of the given size.
func StatsOf(headers []Header, bytes int) Stats {
	s := Stats{Bytes: bytes}
	for i := range headers {
		s.add(&headers[i])
	}
	return s
}
