// Package gpu decodes packed meshlet buffers with a WGSL compute kernel and
// provides a CPU mirror that produces the same output layout.
package gpu

import _ "embed"

//go:embed shaders/meshlet_decode.wgsl
var meshletDecodeShaderSource string

// Sizes of the kernel's output records in bytes.
const (
	paramsSize      = 80
	vertexStride    = 48
	triangleStride  = 16
	meshletStride   = 32
	maxDispatchSize = 65535
)
