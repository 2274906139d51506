package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagTolerance  = flag.Float64("tolerance", -1, "Position error tolerance (overrides build.error_tolerance)")
	flagWorkers    = flag.Int("workers", -1, "Encode workers, 0 = all CPUs")
	flagNoCompress = flag.Bool("no-compress", false, "Store meshlet payloads uncompressed")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagGPU        = flag.Bool("gpu", false, "Decode meshlets on the GPU")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagTolerance >= 0 {
		cfg.Build.ErrorTolerance = float32(*flagTolerance)
	}
	if *flagWorkers >= 0 {
		cfg.Build.Workers = *flagWorkers
	}
	if *flagNoCompress {
		cfg.Build.Compress = false
	}
	if *flagWindowed {
		cfg.Viewer.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Viewer.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
	if *flagGPU {
		cfg.Viewer.UseGPUDecoder = true
	}
}
