// Package builder turns source meshes into MLT meshlet assets: load,
// deduplicate, partition, encode and write the container.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/tessera/internal/config"
	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/cluster"
	"github.com/Faultbox/tessera/pkg/formats"
	"github.com/Faultbox/tessera/pkg/mesh"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

// AssetExt is the extension of built assets.
const AssetExt = ".mlt"

// Options controls a build.
type Options struct {
	Encode    meshlet.Settings
	Cluster   cluster.Options
	Container formats.MLTWriteOptions
	// OutputDir receives assets. Empty writes next to the source.
	OutputDir string
	// Verify decodes every meshlet after encoding and compares it to the
	// source within the quantization bound.
	Verify bool
	// Files caps how many sources BuildFiles processes at once. 0 means one
	// per source.
	Files int
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		Encode:    meshlet.DefaultSettings(),
		Cluster:   cluster.DefaultOptions(),
		Container: formats.MLTWriteOptions{Compress: true, Level: 2},
	}
}

// OptionsFromConfig maps the build section of the config file.
func OptionsFromConfig(cfg config.BuildConfig) Options {
	opts := DefaultOptions()
	opts.Encode.ErrorTolerance = cfg.ErrorTolerance
	opts.Encode.Workers = cfg.Workers
	opts.Container.Compress = cfg.Compress
	opts.Container.Level = cfg.CompressionLevel
	opts.OutputDir = cfg.OutputDir
	return opts
}

// Asset is the in-memory result of building one mesh.
type Asset struct {
	Mesh     *mesh.Mesh
	Meshlets []cluster.Meshlet
	Encoded  *meshlet.Result
	MLT      *formats.MLT
	// OutOfRangeUVs counts vertices whose texture coordinate lies outside
	// [0, 1] and was clamped.
	OutOfRangeUVs int
}

// Report describes one built file.
type Report struct {
	Source string
	Output string
	Stats  meshlet.Stats
	// Written is the container size on disk.
	Written int64
}

// Builder runs the asset pipeline.
type Builder struct {
	opts Options
	log  *zap.Logger
}

// New creates a Builder.
func New(opts Options) *Builder {
	return &Builder{opts: opts, log: logger.Named("builder")}
}

// Options returns the build options.
func (b *Builder) Options() Options {
	return b.opts
}

// BuildMesh runs the pipeline on a mesh already in memory.
func (b *Builder) BuildMesh(src *mesh.Mesh) (*Asset, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	m := mesh.Deduplicate(src)

	meshlets, err := cluster.Build(m, b.opts.Cluster)
	if err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}
	res, err := meshlet.Encode(m, meshlets, b.opts.Encode)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if b.opts.Verify {
		if err := meshlet.Verify(m, meshlets, res.Words()); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
	}

	if logger.DebugEnabled() {
		for i, h := range res.Headers {
			b.log.Debug("meshlet",
				zap.Int("index", i),
				zap.Uint32("vertices", h.VertexCount),
				zap.Uint32("triangles", h.TriangleCount),
				zap.Uint32("bits_x", h.Size.X),
				zap.Uint32("bits_y", h.Size.Y),
				zap.Uint32("bits_z", h.Size.Z),
				zap.Uint32("data_offset", h.DataOffset),
			)
		}
	}

	return &Asset{
		Mesh:     m,
		Meshlets: meshlets,
		Encoded:  res,
		MLT: &formats.MLT{
			MeshletCount:   uint32(len(meshlets)),     //nolint:gosec // bounded by triangle count
			VertexCount:    uint32(len(m.Vertices)),   //nolint:gosec // indices are uint32
			TriangleCount:  uint32(m.TriangleCount()), //nolint:gosec // indices are uint32
			ErrorTolerance: b.opts.Encode.ErrorTolerance,
			Bounds:         m.Bounds(),
			Data:           res.Data,
		},
		OutOfRangeUVs: m.OutOfRangeTexCoords(),
	}, nil
}

// OutputPath returns where the asset for src is written.
func (b *Builder) OutputPath(src string) string {
	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)) + AssetExt
	if b.opts.OutputDir != "" {
		return filepath.Join(b.opts.OutputDir, name)
	}
	return filepath.Join(filepath.Dir(src), name)
}

// BuildFile loads src, builds it and writes the container.
func (b *Builder) BuildFile(ctx context.Context, src string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := formats.LoadMesh(src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src, err)
	}
	asset, err := b.BuildMesh(m)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", src, err)
	}
	if asset.OutOfRangeUVs > 0 {
		b.log.Warn("texture coordinates outside [0, 1] were clamped",
			zap.String("source", src),
			zap.Int("vertices", asset.OutOfRangeUVs),
		)
	}

	out := b.OutputPath(src)
	if b.opts.OutputDir != "" {
		if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := asset.MLT.WriteFile(out, b.opts.Container); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	info, err := os.Stat(out)
	if err != nil {
		return nil, err
	}

	rep := &Report{Source: src, Output: out, Stats: asset.Encoded.Stats, Written: info.Size()}
	b.log.Info("built asset",
		zap.String("source", src),
		zap.String("output", out),
		zap.Int("meshlets", rep.Stats.Meshlets),
		zap.Int("triangles", rep.Stats.Triangles),
		zap.Int("bytes", rep.Stats.Bytes),
		zap.Int64("written", rep.Written),
		zap.Float64("bits_per_vertex", rep.Stats.BitsPerVertex()),
	)
	return rep, nil
}

// BuildFiles builds every source concurrently. Reports are returned in the
// order of srcs; the first error cancels the remaining builds.
func (b *Builder) BuildFiles(ctx context.Context, srcs []string) ([]*Report, error) {
	reports := make([]*Report, len(srcs))
	g, ctx := errgroup.WithContext(ctx)
	if b.opts.Files > 0 {
		g.SetLimit(b.opts.Files)
	}
	for i, src := range srcs {
		g.Go(func() error {
			rep, err := b.BuildFile(ctx, src)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// FindSources returns the source meshes directly inside dir, sorted.
func FindSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var srcs []string
	for _, e := range entries {
		if !e.IsDir() && formats.IsSourceMesh(e.Name()) {
			srcs = append(srcs, filepath.Join(dir, e.Name()))
		}
	}
	return srcs, nil
}
