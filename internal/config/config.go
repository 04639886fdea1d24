// Package config handles terrain tool configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Resources ResourcesConfig `yaml:"resources"`
	Materials MaterialsConfig `yaml:"materials"`
	Cache     CacheConfig     `yaml:"cache"`
	Collision CollisionConfig `yaml:"collision"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ResourcesConfig holds resource root locations.
type ResourcesConfig struct {
	Roots          []string `yaml:"roots"`           // Directories or .zip/.cdata archives, searched last to first
	MissingTexture string   `yaml:"missing_texture"` // Substituted for layer textures that cannot be found
}

// MaterialsConfig points at the material-kind registry.
type MaterialsConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig holds terrain block cache settings.
type CacheConfig struct {
	DedupeLoads bool `yaml:"dedupe_loads"` // Concurrent loads of one path share a single read
}

// CollisionConfig holds collision query defaults.
type CollisionConfig struct {
	CollideHoles          bool `yaml:"collide_holes"`           // Editor escape hatch: rays ignore holes
	DominantMapResolution int  `yaml:"dominant_map_resolution"` // 0 keeps the blend resolution
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Resources: ResourcesConfig{
			Roots:          []string{"res"},
			MissingTexture: "helpers/maps/aid_missing.dds",
		},
		Materials: MaterialsConfig{
			Path: "",
		},
		Cache: CacheConfig{
			DedupeLoads: true,
		},
		Collision: CollisionConfig{
			CollideHoles:          false,
			DominantMapResolution: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
