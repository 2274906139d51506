package meshlet

import "errors"

// Codec errors.
var (
	ErrTooManyVertices  = errors.New("meshlet vertex count exceeds 64")
	ErrTooManyTriangles = errors.New("meshlet triangle count exceeds 124")
	ErrEmptyMeshlet     = errors.New("meshlet has no vertices or triangles")
	ErrBufferTooLarge   = errors.New("encoded buffer exceeds 32-bit bit offsets")
	ErrOutOfBounds      = errors.New("bit read past end of buffer")
	ErrUnalignedBuffer  = errors.New("buffer length is not a multiple of 4")
	ErrInvalidHeader    = errors.New("invalid meshlet header")
	ErrMismatch         = errors.New("decoded meshlet does not match source")
)
