//go:build nogpu

package gpu

import "github.com/Faultbox/tessera/pkg/math"

// Decoder is unavailable in nogpu builds.
type Decoder struct{}

// New always fails in nogpu builds.
func New() (*Decoder, error) { return nil, ErrUnavailable }

// Decode always fails in nogpu builds.
func (*Decoder) Decode([]uint32, int, math.Mat4) (*Output, error) { return nil, ErrUnavailable }

// Close is a no-op.
func (*Decoder) Close() {}
