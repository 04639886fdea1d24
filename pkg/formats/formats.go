// Package formats provides codecs for terrain block resources.
package formats

// Note: the legacy single-file block ("terrain") is implemented in terrain.go
// Note: current-format sections ("terrain2/heights", "holes", "layer N") are in terrain2.go
