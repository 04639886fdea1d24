package config

import (
	"flag"
	"strings"
)

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagDebug        = flag.Bool("debug", false, "Enable debug logging")
	flagRes          = flag.String("res", "", "Comma-separated resource roots (replaces configured roots)")
	flagMaterials    = flag.String("materials", "", "Path to material kinds file")
	flagCollideHoles = flag.Bool("collide-holes", false, "Let rays collide with terrain inside holes")
	flagNoDedupe     = flag.Bool("no-dedupe", false, "Allow concurrent duplicate block loads")
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
	if *flagRes != "" {
		cfg.Resources.Roots = strings.Split(*flagRes, ",")
	}
	if *flagMaterials != "" {
		cfg.Materials.Path = *flagMaterials
	}
	if *flagCollideHoles {
		cfg.Collision.CollideHoles = true
	}
	if *flagNoDedupe {
		cfg.Cache.DedupeLoads = false
	}
}
