// Package renderer draws decoded meshlets with their debug colors.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/tessera/internal/engine/shader"
	"github.com/Faultbox/tessera/internal/gpu"
	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/math"
)

const vertexShader = `#version 410 core

layout (location = 0) in vec4 aPos;
layout (location = 1) in vec3 aColor;

uniform mat4 uViewProj;

out vec3 vColor;

void main() {
	gl_Position = uViewProj * aPos;
	vColor = aColor;
}
`

const fragmentShader = `#version 410 core

in vec3 vColor;
out vec4 FragColor;

void main() {
	FragColor = vec4(vColor, 1.0);
}
`

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer draws one uploaded triangle list.
type Renderer struct {
	config  Config
	program *shader.Program
	log     *zap.Logger

	vao, vbo    uint32
	vertexCount int32
	wireframe   bool

	lineVAO, lineVBO uint32
	lineCount        int32
	showBounds       bool
}

// New creates a renderer. Must be called after the GL context exists.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{config: cfg, log: logger.Named("renderer")}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height)) //nolint:gosec // window sizes fit int32

	var err error
	if r.program, err = shader.New(vertexShader, fragmentShader); err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	r.vao, r.vbo = newVertexArray()
	r.lineVAO, r.lineVBO = newVertexArray()
	return r, nil
}

// newVertexArray creates a VAO over one buffer of position (vec4) and
// color (vec3) vertices. Triangles and bounds lines share the layout.
func newVertexArray() (vao, vbo uint32) {
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	stride := int32(gpu.TriangleListStride * 4)
	gl.VertexAttribPointerWithOffset(0, 4, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 4*4)
	gl.EnableVertexAttribArray(1)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return vao, vbo
}

func upload(vbo uint32, data []float32) int32 {
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.STATIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return int32(len(data) / gpu.TriangleListStride) //nolint:gosec // bounded by buffer size
}

// Upload replaces the drawn geometry with a decoded output.
func (r *Renderer) Upload(out *gpu.Output) {
	r.vertexCount = upload(r.vbo, out.TriangleList())
	r.log.Debug("uploaded meshlets",
		zap.Int("meshlets", len(out.Meshlets)),
		zap.Int32("vertices", r.vertexCount),
	)
}

// SetBoundsLines replaces the meshlet bounds wireframe, in the layout of
// debug.MeshletBoundsLines.
func (r *Renderer) SetBoundsLines(data []float32) {
	r.lineCount = upload(r.lineVBO, data)
}

// ToggleBounds shows or hides the meshlet bounds.
func (r *Renderer) ToggleBounds() {
	r.showBounds = !r.showBounds
}

// ToggleWireframe switches between filled and line polygons.
func (r *Renderer) ToggleWireframe() {
	r.wireframe = !r.wireframe
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height)) //nolint:gosec // window sizes fit int32
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Draw clears the frame and draws the uploaded geometry.
func (r *Renderer) Draw(viewProj math.Mat4) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	if r.vertexCount == 0 {
		return
	}

	mode := uint32(gl.FILL)
	if r.wireframe {
		mode = gl.LINE
	}
	gl.PolygonMode(gl.FRONT_AND_BACK, mode)

	r.program.Use()
	r.program.SetMat4("uViewProj", viewProj)
	gl.BindVertexArray(r.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, r.vertexCount)
	if r.showBounds && r.lineCount > 0 {
		gl.BindVertexArray(r.lineVAO)
		gl.DrawArrays(gl.LINES, 0, r.lineCount)
	}
	gl.BindVertexArray(0)
}

// ReadPixels returns the current framebuffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return pixels, w, h
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0])) //nolint:gosec // window sizes fit int32
	return pixels, w, h
}

// Close releases GL resources.
func (r *Renderer) Close() {
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.vbo != 0 {
		gl.DeleteBuffers(1, &r.vbo)
	}
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
	}
	if r.lineVBO != 0 {
		gl.DeleteBuffers(1, &r.lineVBO)
	}
	if r.program != nil {
		r.program.Delete()
	}
}
