// meshletc builds and inspects meshlet assets.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/tessera/internal/assets"
	"github.com/Faultbox/tessera/internal/builder"
	"github.com/Faultbox/tessera/internal/config"
	"github.com/Faultbox/tessera/internal/logger"
	"github.com/Faultbox/tessera/pkg/formats"
	"github.com/Faultbox/tessera/pkg/meshlet"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

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

	command := args[0]
	args = args[1:]

	switch command {
	case "build", "b":
		cmdBuild(cfg, args)
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "verify":
		cmdVerify(args)
	case "watch", "w":
		cmdWatch(cfg, args)
	case "config":
		cmdConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshletc - meshlet asset compiler

Usage:
  meshletc [global flags] <command> [options]

Commands:
  build <src...> [-o dir] [-verify]  Build .mlt assets from OBJ/glTF sources
  info <file.mlt>                    Show asset summary and width histogram
  dump <file.mlt> [-n count]         Print meshlet headers
  verify <src> <file.mlt>            Rebuild src and check the asset against it
  watch <dir>                        Rebuild sources in dir when they change
  config [-save] [-o file]           Print or save the effective configuration

Global flags:
  -config, -debug, -tolerance, -workers, -no-compress

Examples:
  meshletc build bunny.obj
  meshletc -tolerance 0.001 build -o assets models/*.glb
  meshletc dump -n 4 assets/bunny.mlt
  meshletc verify bunny.obj bunny.mlt`)
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func cmdBuild(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("o", cfg.Build.OutputDir, "Output directory (default: next to source)")
	verify := fs.Bool("verify", false, "Decode and check every meshlet after encoding")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: meshletc build <src...> [-o dir] [-verify]")
	}

	opts := builder.OptionsFromConfig(cfg.Build)
	opts.OutputDir = *outDir
	opts.Verify = *verify
	b := builder.New(opts)

	reports, err := b.BuildFiles(context.Background(), fs.Args())
	if err != nil {
		fatal("Error: %v", err)
	}
	for _, rep := range reports {
		fmt.Printf("%s -> %s: %s, %d bytes written\n", rep.Source, rep.Output, rep.Stats.String(), rep.Written)
	}
}

func cmdConfig(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	save := fs.Bool("save", false, "Write to the user config directory")
	out := fs.String("o", "", "Write to this file")
	fs.Parse(args)

	switch {
	case *out != "":
		if err := cfg.SaveTo(*out); err != nil {
			fatal("Error: %v", err)
		}
		fmt.Printf("Wrote %s\n", *out)
	case *save:
		if err := cfg.Save(); err != nil {
			fatal("Error: %v", err)
		}
		fmt.Printf("Wrote %s\n", filepath.Join(config.ConfigDir(), config.FileName))
	default:
		data, err := cfg.Marshal()
		if err != nil {
			fatal("Error: %v", err)
		}
		os.Stdout.Write(data)
	}
}

func loadAsset(path string) *assets.Asset {
	reg := assets.NewRegistry()
	defer reg.Close()
	a, err := reg.Load(path)
	if err != nil {
		fatal("Error: %v", err)
	}
	return a
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fatal("Usage: meshletc info <file.mlt>")
	}
	a := loadAsset(args[0])
	c := a.Container
	stats := meshlet.StatsOf(a.Headers, len(c.Data))

	fmt.Printf("Asset:      %s\n", a.Path)
	fmt.Printf("Handle:     %s\n", a.Handle)
	fmt.Printf("Version:    %d\n", c.Version)
	fmt.Printf("Compressed: %v\n", c.Compressed)
	fmt.Printf("Tolerance:  %g\n", c.ErrorTolerance)
	fmt.Printf("Bounds:     (%g, %g, %g) - (%g, %g, %g)\n",
		c.Bounds.Min.X, c.Bounds.Min.Y, c.Bounds.Min.Z,
		c.Bounds.Max.X, c.Bounds.Max.Y, c.Bounds.Max.Z)
	fmt.Printf("Source:     %d vertices, %d triangles\n", c.VertexCount, c.TriangleCount)
	fmt.Printf("Encoded:    %s\n", stats.String())
	fmt.Printf("Positions:  %.2f bits/axis average\n", stats.AveragePositionBits())
	fmt.Println()
	fmt.Println("Position widths:")
	for w, n := range stats.Widths {
		if n > 0 {
			fmt.Printf("  %2d bits  %d\n", w, n)
		}
	}
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N meshlets (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: meshletc dump <file.mlt> [-n count]")
	}
	a := loadAsset(fs.Arg(0))

	fmt.Printf("%5s %4s %4s %8s %5s %10s  %s\n", "#", "vert", "tri", "xyz", "index", "offset", "bounds")
	for k, h := range a.Headers {
		if *limit > 0 && k >= *limit {
			break
		}
		fmt.Printf("%5d %4d %4d %2d/%2d/%2d %5d %10d  (%g, %g, %g) - (%g, %g, %g)\n",
			k, h.VertexCount, h.TriangleCount,
			h.Size.X, h.Size.Y, h.Size.Z, h.IndexBits, h.DataOffset,
			h.Bounds.Min.X, h.Bounds.Min.Y, h.Bounds.Min.Z,
			h.Bounds.Max.X, h.Bounds.Max.Y, h.Bounds.Max.Z)
	}
}

func cmdVerify(args []string) {
	if len(args) < 2 {
		fatal("Usage: meshletc verify <src> <file.mlt>")
	}
	m, err := formats.LoadMesh(args[0])
	if err != nil {
		fatal("Error: %v", err)
	}
	a := loadAsset(args[1])

	opts := builder.DefaultOptions()
	opts.Encode.ErrorTolerance = a.Container.ErrorTolerance
	asset, err := builder.New(opts).BuildMesh(m)
	if err != nil {
		fatal("Error: %v", err)
	}
	if len(asset.Meshlets) != len(a.Headers) {
		fatal("FAIL: source partitions into %d meshlets, asset has %d", len(asset.Meshlets), len(a.Headers))
	}
	if err := meshlet.Verify(asset.Mesh, asset.Meshlets, a.Words); err != nil {
		fatal("FAIL: %v", err)
	}
	if !bytes.Equal(asset.Encoded.Data, a.Container.Data) {
		fmt.Println("OK (within tolerance, bytes differ from a fresh build)")
		return
	}
	fmt.Printf("OK: %d meshlets match %s\n", len(a.Headers), args[0])
}

func cmdWatch(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: meshletc watch <dir>")
	}
	dir := args[0]
	b := builder.New(builder.OptionsFromConfig(cfg.Build))

	srcs, err := builder.FindSources(dir)
	if err != nil {
		fatal("Error: %v", err)
	}
	if len(srcs) > 0 {
		if _, err := b.BuildFiles(context.Background(), srcs); err != nil {
			logger.Error("initial build failed", zap.Error(err))
		}
	}

	w, err := b.NewWatcher(dir)
	if err != nil {
		fatal("Error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching for changes", zap.String("dir", dir))
	if err := w.Run(ctx, nil); err != nil {
		logger.Error("watch failed", zap.Error(err))
		os.Exit(1)
	}
}
