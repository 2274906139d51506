// meshview displays a meshlet asset with one debug color per meshlet.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/tessera/internal/assets"
	"github.com/Faultbox/tessera/internal/config"
	"github.com/Faultbox/tessera/internal/engine/camera"
	"github.com/Faultbox/tessera/internal/engine/debug"
	"github.com/Faultbox/tessera/internal/engine/input"
	"github.com/Faultbox/tessera/internal/engine/picking"
	"github.com/Faultbox/tessera/internal/engine/renderer"
	"github.com/Faultbox/tessera/internal/engine/window"
	"github.com/Faultbox/tessera/internal/gpu"
	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/math"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: meshview [flags] <file.mlt>")
		os.Exit(1)
	}

	v, err := newViewer(cfg, args[0])
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	v.Run()
	logger.Info("viewer closed normally")
}

type viewer struct {
	path     string
	registry *assets.Registry
	asset    *assets.Asset
	decoder  gpu.MeshletDecoder

	win    *window.Window
	rend   *renderer.Renderer
	input  *input.Input
	camera *camera.OrbitCamera
	shots  *debug.ScreenshotCapture
	log    *zap.Logger
}

func newViewer(cfg *config.Config, path string) (*viewer, error) {
	v := &viewer{
		path:     path,
		registry: assets.NewRegistry(),
		input:    input.New(),
		camera:   camera.NewOrbitCamera(cfg.Viewer.FOVDegrees),
		shots:    debug.NewScreenshotCapture("screenshots", "meshview"),
		log:      logger.Named("viewer"),
	}

	var err error
	v.win, err = window.New(window.Config{
		Title:      "meshview - " + path,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	})
	if err != nil {
		return nil, err
	}

	w, h := v.win.Size()
	v.rend, err = renderer.New(renderer.Config{Width: w, Height: h})
	if err != nil {
		v.win.Close()
		return nil, err
	}

	v.decoder = v.openDecoder(cfg.Viewer.UseGPUDecoder)
	if err := v.load(); err != nil {
		v.Close()
		return nil, err
	}
	v.camera.FitToBounds(v.asset.Container.Bounds)
	return v, nil
}

func (v *viewer) openDecoder(useGPU bool) gpu.MeshletDecoder {
	if useGPU {
		d, err := gpu.New()
		if err == nil {
			return d
		}
		v.log.Warn("GPU decoder unavailable, decoding on the CPU", zap.Error(err))
	}
	return gpu.CPUDecoder{}
}

// load (re)reads the asset and decodes it into object space; the camera
// transform is applied by the vertex shader.
func (v *viewer) load() error {
	v.registry.Invalidate(v.path)
	a, err := v.registry.Load(v.path)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := v.decoder.Decode(a.Words, len(a.Headers), math.Identity())
	if err != nil {
		return fmt.Errorf("decoding %s: %w", v.path, err)
	}
	v.asset = a
	v.rend.Upload(out)
	v.rend.SetBoundsLines(debug.MeshletBoundsLines(a.Headers))
	v.log.Info("asset decoded",
		zap.String("path", a.Path),
		zap.Int("meshlets", len(out.Meshlets)),
		zap.Int("triangles", out.TriangleCount()),
		zap.Duration("decode", time.Since(start)),
	)
	return nil
}

// Run drives the frame loop until the window is closed or Escape is hit.
func (v *viewer) Run() {
	frames := 0
	last := time.Now()

	for {
		shot := false
		if v.input.Update() {
			return
		}
		for _, e := range v.input.Events() {
			switch e.Type {
			case input.EventWindowResize:
				w, h := v.win.Size()
				v.rend.Resize(w, h)
			case input.EventMouseMove:
				if v.input.IsButtonHeld(sdl.BUTTON_LEFT) {
					v.camera.HandleDrag(float32(e.DeltaX), float32(e.DeltaY))
				}
			case input.EventMouseDown:
				if e.Button == sdl.BUTTON_RIGHT {
					v.pick(e.MouseX, e.MouseY)
				}
			case input.EventMouseWheel:
				v.camera.HandleZoom(e.Wheel)
			case input.EventKeyDown:
				switch e.Key {
				case sdl.K_ESCAPE:
					return
				case sdl.K_f:
					v.rend.ToggleWireframe()
				case sdl.K_b:
					v.rend.ToggleBounds()
				case sdl.K_F12:
					shot = true
				case sdl.K_r:
					if err := v.load(); err != nil {
						v.log.Error("reload failed", zap.Error(err))
					}
				case sdl.K_HOME:
					v.camera.FitToBounds(v.asset.Container.Bounds)
				}
			}
		}

		v.rend.Draw(v.camera.ViewProj(v.rend.Aspect()))
		if shot {
			v.screenshot()
		}
		v.win.SwapBuffers()

		frames++
		if elapsed := time.Since(last); elapsed >= time.Second {
			v.win.SetTitle(fmt.Sprintf("meshview - %s (%d meshlets, %.0f fps)",
				v.path, len(v.asset.Headers), float64(frames)/elapsed.Seconds()))
			frames = 0
			last = time.Now()
		}
	}
}

// pick logs the header of the meshlet under the cursor.
func (v *viewer) pick(x, y int) {
	ww, wh := v.win.WindowSize()
	inv := v.camera.ViewProj(v.rend.Aspect()).Inverse()
	ray := picking.ScreenToRay(float32(x), float32(y), float32(ww), float32(wh), inv)

	k, dist, ok := picking.PickMeshlet(ray, v.asset.Headers)
	if !ok {
		return
	}
	h := v.asset.Headers[k]
	v.log.Info("picked meshlet",
		zap.Int("index", k),
		zap.Float32("distance", dist),
		zap.Uint32("vertices", h.VertexCount),
		zap.Uint32("triangles", h.TriangleCount),
		zap.Uint32s("bits", []uint32{h.Size.X, h.Size.Y, h.Size.Z}),
		zap.Uint32("data_offset", h.DataOffset),
	)
}

func (v *viewer) screenshot() {
	pixels, w, h := v.rend.ReadPixels()
	path, err := v.shots.CaptureFromPixels(pixels, w, h)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

func (v *viewer) Close() {
	if v.decoder != nil {
		v.decoder.Close()
	}
	if v.rend != nil {
		v.rend.Close()
	}
	if v.win != nil {
		v.win.Close()
	}
	v.registry.Close()
}
