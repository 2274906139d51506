package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/tessera/internal/config"
	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/formats"
	"github.com/Faultbox/tessera/pkg/mesh"
)

func init() {
	logger.InitNop()
}

// gridOBJ returns an n x n quad grid as OBJ text with one vt/vn per corner.
func gridOBJ(n int) string {
	var sb strings.Builder
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			fmt.Fprintf(&sb, "v %d %d %g\n", x, y, float64(x*y)/float64(n*n))
			fmt.Fprintf(&sb, "vt %g %g\n", float64(x)/float64(n), float64(y)/float64(n))
		}
	}
	sb.WriteString("vn 0 0 1\n")
	stride := n + 1
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a := y*stride + x + 1
			b, c, d := a+1, a+stride+1, a+stride
			fmt.Fprintf(&sb, "f %d/%d/1 %d/%d/1 %d/%d/1 %d/%d/1\n", a, a, b, b, c, c, d, d)
		}
	}
	return sb.String()
}

func writeOBJ(t *testing.T, dir, name string, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(gridOBJ(n)), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func loadGrid(t *testing.T, n int) *mesh.Mesh {
	t.Helper()
	obj, err := formats.ParseOBJ(strings.NewReader(gridOBJ(n)))
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	m, err := obj.Mesh()
	if err != nil {
		t.Fatalf("Mesh failed: %v", err)
	}
	return m
}

func TestBuildMesh(t *testing.T) {
	opts := DefaultOptions()
	opts.Verify = true
	b := New(opts)

	asset, err := b.BuildMesh(loadGrid(t, 16))
	if err != nil {
		t.Fatalf("BuildMesh failed: %v", err)
	}
	if got, want := len(asset.Mesh.Vertices), 17*17; got != want {
		t.Errorf("expected %d deduplicated vertices, got %d", want, got)
	}
	if asset.MLT.TriangleCount != 16*16*2 {
		t.Errorf("expected %d triangles, got %d", 16*16*2, asset.MLT.TriangleCount)
	}
	if int(asset.MLT.MeshletCount) != len(asset.Meshlets) {
		t.Errorf("expected meshlet count %d, got %d", len(asset.Meshlets), asset.MLT.MeshletCount)
	}
	if len(asset.Meshlets) < 2 {
		t.Errorf("expected the grid to need several meshlets, got %d", len(asset.Meshlets))
	}
	if !bytes.Equal(asset.MLT.Data, asset.Encoded.Data) {
		t.Error("container payload differs from encoded buffer")
	}
	if asset.OutOfRangeUVs != 0 {
		t.Errorf("expected no out-of-range texcoords, got %d", asset.OutOfRangeUVs)
	}
}

func TestBuildMeshInvalid(t *testing.T) {
	b := New(DefaultOptions())
	_, err := b.BuildMesh(&mesh.Mesh{Vertices: []mesh.Vertex{{}}})
	if !errors.Is(err, mesh.ErrNoTriangles) {
		t.Errorf("expected ErrNoTriangles, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name      string
		outputDir string
		src       string
		want      string
	}{
		{"next to source", "", filepath.Join("models", "bunny.obj"), filepath.Join("models", "bunny.mlt")},
		{"output dir", "out", filepath.Join("models", "scene.glb"), filepath.Join("out", "scene.mlt")},
		{"dotted name", "", "a.b.gltf", "a.b.mlt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.OutputDir = tt.outputDir
			if got := New(opts).OutputPath(tt.src); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildFile(t *testing.T) {
	dir := t.TempDir()
	src := writeOBJ(t, dir, "grid.obj", 8)

	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(dir, "out")
	b := New(opts)

	rep, err := b.BuildFile(context.Background(), src)
	if err != nil {
		t.Fatalf("BuildFile failed: %v", err)
	}
	if rep.Output != filepath.Join(dir, "out", "grid.mlt") {
		t.Errorf("unexpected output path %q", rep.Output)
	}

	mlt, err := formats.ParseMLTFile(rep.Output)
	if err != nil {
		t.Fatalf("ParseMLTFile failed: %v", err)
	}
	if !mlt.Compressed {
		t.Error("expected compressed payload by default")
	}
	if int(mlt.MeshletCount) != rep.Stats.Meshlets {
		t.Errorf("expected %d meshlets, got %d", rep.Stats.Meshlets, mlt.MeshletCount)
	}
	if len(mlt.Data) != rep.Stats.Bytes {
		t.Errorf("expected %d payload bytes, got %d", rep.Stats.Bytes, len(mlt.Data))
	}
	if mlt.ErrorTolerance != opts.Encode.ErrorTolerance {
		t.Errorf("expected tolerance %v, got %v", opts.Encode.ErrorTolerance, mlt.ErrorTolerance)
	}
}

func TestBuildFileErrors(t *testing.T) {
	dir := t.TempDir()
	b := New(DefaultOptions())

	if _, err := b.BuildFile(context.Background(), filepath.Join(dir, "model.fbx")); !errors.Is(err, formats.ErrUnsupportedSource) {
		t.Errorf("expected ErrUnsupportedSource, got %v", err)
	}

	noNormals := filepath.Join(dir, "flat.obj")
	if err := os.WriteFile(noNormals, []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nf 1/1 2/1 3/1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := b.BuildFile(context.Background(), noNormals); !errors.Is(err, formats.ErrMissingNormals) {
		t.Errorf("expected ErrMissingNormals, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.BuildFile(ctx, writeOBJ(t, dir, "grid.obj", 2)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuildFiles(t *testing.T) {
	dir := t.TempDir()
	srcs := []string{
		writeOBJ(t, dir, "a.obj", 4),
		writeOBJ(t, dir, "b.obj", 10),
		writeOBJ(t, dir, "c.obj", 1),
	}

	opts := DefaultOptions()
	opts.Files = 2
	reports, err := New(opts).BuildFiles(context.Background(), srcs)
	if err != nil {
		t.Fatalf("BuildFiles failed: %v", err)
	}
	for i, rep := range reports {
		if rep.Source != srcs[i] {
			t.Errorf("report %d: expected source %q, got %q", i, srcs[i], rep.Source)
		}
	}
	if reports[2].Stats.Triangles != 2 {
		t.Errorf("expected 2 triangles in c.obj, got %d", reports[2].Stats.Triangles)
	}

	_, err = New(opts).BuildFiles(context.Background(), append(srcs, filepath.Join(dir, "missing.obj")))
	if err == nil {
		t.Error("expected error for missing source")
	}
}

func TestFindSources(t *testing.T) {
	dir := t.TempDir()
	writeOBJ(t, dir, "b.obj", 1)
	writeOBJ(t, dir, "a.obj", 1)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.obj"), 0o755); err != nil {
		t.Fatal(err)
	}

	srcs, err := FindSources(dir)
	if err != nil {
		t.Fatalf("FindSources failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.obj"), filepath.Join(dir, "b.obj")}
	if len(srcs) != len(want) {
		t.Fatalf("expected %v, got %v", want, srcs)
	}
	for i := range want {
		if srcs[i] != want[i] {
			t.Errorf("expected %q, got %q", want[i], srcs[i])
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Build
	cfg.ErrorTolerance = 0.01
	cfg.Workers = 3
	cfg.Compress = false
	cfg.OutputDir = "assets"

	opts := OptionsFromConfig(cfg)
	if opts.Encode.ErrorTolerance != 0.01 {
		t.Errorf("expected tolerance 0.01, got %v", opts.Encode.ErrorTolerance)
	}
	if opts.Encode.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", opts.Encode.Workers)
	}
	if opts.Container.Compress {
		t.Error("expected compression disabled")
	}
	if opts.OutputDir != "assets" {
		t.Errorf("expected output dir assets, got %q", opts.OutputDir)
	}
	if opts.Cluster.MaxVertices != 64 || opts.Cluster.MaxTriangles != 124 {
		t.Errorf("expected caps 64/124, got %d/%d", opts.Cluster.MaxVertices, opts.Cluster.MaxTriangles)
	}
}

func TestWatcherRebuilds(t *testing.T) {
	dir := t.TempDir()
	b := New(DefaultOptions())

	w, err := b.NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	reports := make(chan *Report, 4)
	go func() {
		done <- w.Run(ctx, func(rep *Report, err error) {
			if err == nil {
				reports <- rep
			}
		})
	}()

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := writeOBJ(t, dir, "live.obj", 3)

	select {
	case rep := <-reports:
		if rep.Source != src {
			t.Errorf("expected rebuild of %q, got %q", src, rep.Source)
		}
		if _, err := os.Stat(filepath.Join(dir, "live.mlt")); err != nil {
			t.Errorf("expected asset to be written: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestWatcherRename(t *testing.T) {
	dir := t.TempDir()
	old := writeOBJ(t, dir, "draft.obj", 2)
	b := New(DefaultOptions())

	w, err := b.NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	reports := make(chan *Report, 4)
	failures := make(chan error, 4)
	go func() {
		done <- w.Run(ctx, func(rep *Report, err error) {
			if err != nil {
				failures <- err
				return
			}
			reports <- rep
		})
	}()

	renamed := filepath.Join(dir, "final.obj")
	if err := os.Rename(old, renamed); err != nil {
		t.Fatal(err)
	}

	select {
	case rep := <-reports:
		if rep.Source != renamed {
			t.Errorf("expected rebuild of %q, got %q", renamed, rep.Source)
		}
	case err := <-failures:
		t.Fatalf("rebuild failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	select {
	case err := <-failures:
		t.Errorf("unexpected rebuild failure after rename: %v", err)
	case <-time.After(10 * w.Debounce):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	b := New(DefaultOptions())
	if _, err := b.NewWatcher(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error watching a missing directory")
	}
}
