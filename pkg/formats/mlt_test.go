package formats

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Faultbox/tessera/pkg/math"
)

func createTestMLT() *MLT {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i / 64)
	}
	return &MLT{
		Version:        MLTVersion,
		MeshletCount:   12,
		VertexCount:    500,
		TriangleCount:  900,
		ErrorTolerance: 0.0001,
		Bounds:         math.AABB{Min: math.Vec3{X: -1, Y: -2, Z: -3}, Max: math.Vec3{X: 1, Y: 2, Z: 3}},
		Data:           data,
	}
}

func TestMLT_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts MLTWriteOptions
	}{
		{"raw", MLTWriteOptions{}},
		{"zstd default", MLTWriteOptions{Compress: true}},
		{"zstd fastest", MLTWriteOptions{Compress: true, Level: 1}},
		{"zstd best", MLTWriteOptions{Compress: true, Level: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := createTestMLT()
			data, err := src.Marshal(tt.opts)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if tt.opts.Compress && len(data) >= mltHeaderSize+len(src.Data) {
				t.Errorf("compressed container is %d bytes, raw payload %d", len(data), len(src.Data))
			}

			got, err := ParseMLT(data)
			if err != nil {
				t.Fatalf("ParseMLT failed: %v", err)
			}
			if got.Compressed != tt.opts.Compress {
				t.Errorf("expected compressed=%v, got %v", tt.opts.Compress, got.Compressed)
			}
			if got.MeshletCount != src.MeshletCount || got.VertexCount != src.VertexCount ||
				got.TriangleCount != src.TriangleCount || got.ErrorTolerance != src.ErrorTolerance {
				t.Errorf("header mismatch: %+v", got)
			}
			if got.Bounds != src.Bounds {
				t.Errorf("expected bounds %v, got %v", src.Bounds, got.Bounds)
			}
			if !bytes.Equal(got.Data, src.Data) {
				t.Error("payload mismatch")
			}
		})
	}
}

func TestMLT_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.mlt")
	src := createTestMLT()
	if err := src.WriteFile(path, MLTWriteOptions{Compress: true}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ParseMLTFile(path)
	if err != nil {
		t.Fatalf("ParseMLTFile failed: %v", err)
	}
	if !bytes.Equal(got.Data, src.Data) {
		t.Error("payload mismatch")
	}
}

func TestParseMLT_Errors(t *testing.T) {
	valid, err := createTestMLT().Marshal(MLTWriteOptions{})
	if err != nil {
		t.Fatal(err)
	}

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "XMLT")

	badVersion := append([]byte(nil), valid...)
	badVersion[4] = 9

	badRawLength := append([]byte(nil), valid...)
	badRawLength[48] ^= 0x04 // raw length field, low byte

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", valid[:20], ErrTruncatedMLTData},
		{"magic", badMagic, ErrInvalidMLTMagic},
		{"version", badVersion, ErrUnsupportedMLTVersion},
		{"truncated payload", valid[:len(valid)-10], ErrTruncatedMLTData},
		{"raw length", badRawLength, ErrMLTSizeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMLT(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMLT_MarshalRejectsUnaligned(t *testing.T) {
	m := createTestMLT()
	m.Data = m.Data[:10]
	if _, err := m.Marshal(MLTWriteOptions{}); !errors.Is(err, ErrMLTSizeMismatch) {
		t.Errorf("expected ErrMLTSizeMismatch, got %v", err)
	}
	if _, err := createTestMLT().Marshal(MLTWriteOptions{Compress: true, Level: 7}); err == nil {
		t.Error("expected error for compression level 7")
	}
}
