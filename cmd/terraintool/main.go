// terraintool is a CLI utility for inspecting and converting terrain blocks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/assets"
	"github.com/Faultbox/midgard-terrain/internal/config"
	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/internal/materials"
	"github.com/Faultbox/midgard-terrain/internal/space"
	"github.com/Faultbox/midgard-terrain/internal/terrain"
	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// tool holds what every command needs.
type tool struct {
	cfg   *config.Config
	res   *assets.Manager
	mats  *materials.Registry
	cache *terrain.Cache
}

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	if command == "help" || command == "-h" || command == "--help" {
		printUsage()
		return
	}

	t, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer t.res.Close()

	switch command {
	case "info":
		err = t.cmdInfo(args)
	case "height", "h":
		err = t.cmdHeight(args)
	case "normal", "n":
		err = t.cmdNormal(args)
	case "ray":
		err = t.cmdRay(args)
	case "holes":
		err = t.cmdHoles(args)
	case "version", "v":
		err = t.cmdVersion(args)
	case "convert":
		err = t.cmdConvert(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`terraintool - terrain block utility

Usage:
  terraintool [global options] <command> [options]

Global options:
  -config <file>       Config file (default ./terrain.yaml)
  -res <dir,...>       Resource roots, searched last to first
  -materials <file>    Material kinds file
  -collide-holes       Let rays hit terrain inside holes
  -no-dedupe           Allow concurrent duplicate block loads
  -debug               Enable debug logging

Commands:
  info <block>                          Show block information
  height <block> <x> <z>                Terrain height at a point
  normal <block> <x> <z>                Terrain normal at a point
  ray [-all] <block> <x,y,z> <x,y,z>    Cast a ray through the block
  holes <block>                         Print the hole mask
  version <block>                       Detect the block format
  convert <block> <dir>                 Write a block as current-format sections

Examples:
  terraintool -res ./res info spaces/arena/0000ffff/terrain
  terraintool height spaces/arena/0000ffff/terrain 50 50
  terraintool ray -all spaces/arena/0000ffff/terrain 50,100,50 50,-100,50
  terraintool convert spaces/arena/0000ffff/terrain ./out/0000ffff/terrain2`)
}

func setup() (*tool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	res := assets.NewManager()
	for _, root := range cfg.Resources.Roots {
		if err := res.AddRoot(root); err != nil {
			logger.Warn("skipping resource root", zap.String("root", root), zap.Error(err))
		}
	}

	var mats *materials.Registry
	if cfg.Materials.Path != "" {
		mats, err = materials.Load(cfg.Materials.Path)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("loading materials: %w", err)
		}
	}

	opts := terrain.LoadOptions{
		Materials:          mats,
		MissingTexture:     cfg.Resources.MissingTexture,
		DominantResolution: cfg.Collision.DominantMapResolution,
	}
	cache := terrain.NewCache(func(path string) (terrain.Block, error) {
		return terrain.LoadBlock(res, path, opts)
	}, terrain.WithDedupe(cfg.Cache.DedupeLoads), terrain.WithOnEvict(res.Invalidate))

	return &tool{cfg: cfg, res: res, mats: mats, cache: cache}, nil
}

// withSpace loads path into grid cell (0,0) of a fresh space, so world and
// block coordinates coincide.
func (t *tool) withSpace(path string, fn func(s *space.Space) error) error {
	s := space.New("terraintool", t.cache, space.Options{CollideHoles: t.cfg.Collision.CollideHoles})
	defer s.Close()
	if err := s.LoadBlocks(context.Background(), []space.BlockSpec{{Path: path}}, math.Vec3{}); err != nil {
		return err
	}
	return fn(s)
}

func (t *tool) cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: terraintool info <block>")
	}
	h, err := t.cache.FindOrLoad(args[0])
	if err != nil {
		return err
	}
	defer h.Release()

	b := h.Block()
	hf := b.HeightField()
	sx, sz := hf.Size()
	bb := b.BoundingBox()

	fmt.Printf("Block:    %s\n", b.ResourcePath())
	fmt.Printf("Version:  %s\n", b.Version())
	fmt.Printf("Samples:  %d x %d (%d x %d cells)\n", hf.Width(), hf.Height(), hf.CellsX(), hf.CellsZ())
	fmt.Printf("Spacing:  %.3f m\n", hf.Spacing())
	fmt.Printf("Size:     %.1f x %.1f m\n", sx, sz)
	fmt.Printf("Heights:  %.3f .. %.3f\n", hf.MinHeight(), hf.MaxHeight())
	fmt.Printf("Bounds:   (%.1f, %.1f, %.1f) - (%.1f, %.1f, %.1f)\n",
		bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)

	holes := b.HoleMask()
	switch {
	case holes.NoHoles():
		fmt.Printf("Holes:    none (%d x %d)\n", holes.Width(), holes.Height())
	case holes.AllHoles():
		fmt.Printf("Holes:    all (%d x %d)\n", holes.Width(), holes.Height())
	default:
		n := 0
		for _, h := range holes.Cells() {
			if h {
				n++
			}
		}
		fmt.Printf("Holes:    %d of %d cells\n", n, holes.Width()*holes.Height())
	}

	fmt.Printf("Textures: %d\n", len(b.Textures()))
	var layers []terrain.Layer
	if mm := b.MaterialMap(); mm != nil {
		layers = mm.Layers()
		fmt.Printf("Dominant: %d x %d\n", mm.Width(), mm.Height())
	}
	for i, l := range layers {
		fmt.Printf("  %2d  %-40s  kind=%-10s weight=%.2f\n", i, l.TextureName, t.kindName(l.Kind), l.Weight)
	}
	return nil
}

func (t *tool) cmdHeight(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: terraintool height <block> <x> <z>")
	}
	x, z, err := parseXZ(args[1], args[2])
	if err != nil {
		return err
	}
	return t.withSpace(args[0], func(s *space.Space) error {
		height := s.HeightAt(x, z)
		if height == terrain.NoTerrain {
			fmt.Printf("(%.2f, %.2f): no terrain\n", x, z)
			return nil
		}
		fmt.Printf("(%.2f, %.2f): %.4f\n", x, z, height)
		return nil
	})
}

func (t *tool) cmdNormal(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: terraintool normal <block> <x> <z>")
	}
	x, z, err := parseXZ(args[1], args[2])
	if err != nil {
		return err
	}
	return t.withSpace(args[0], func(s *space.Space) error {
		n, ok := s.NormalAt(x, z)
		if !ok {
			fmt.Printf("(%.2f, %.2f): no terrain\n", x, z)
			return nil
		}
		fmt.Printf("(%.2f, %.2f): (%.4f, %.4f, %.4f)\n", x, z, n.X, n.Y, n.Z)
		return nil
	})
}

func (t *tool) cmdRay(args []string) error {
	fs := flag.NewFlagSet("ray", flag.ExitOnError)
	all := fs.Bool("all", false, "Report every hit instead of the nearest")
	fs.Parse(args)

	if fs.NArg() < 3 {
		return fmt.Errorf("usage: terraintool ray [-all] <block> <x,y,z> <x,y,z>")
	}
	start, err := parseVec3(fs.Arg(1))
	if err != nil {
		return err
	}
	end, err := parseVec3(fs.Arg(2))
	if err != nil {
		return err
	}

	return t.withSpace(fs.Arg(0), func(s *space.Space) error {
		var hits []terrain.Hit
		state := s.Collide(start, end, func(hit terrain.Hit) terrain.Continuation {
			hits = append(hits, hit)
			if *all {
				return terrain.ContinueBoth
			}
			return terrain.ContinueNearerOnly
		})

		if len(hits) == 0 {
			fmt.Println("No hit")
			return nil
		}
		if !*all {
			hits = hits[len(hits)-1:]
		}
		for _, hit := range hits {
			p := hit.WorldImpact()
			fmt.Printf("dist=%.4f  impact=(%.3f, %.3f, %.3f)  material=%s\n",
				hit.Dist, p.X, p.Y, p.Z, t.kindName(hit.Triangle.Flags.MaterialKind()))
		}
		fmt.Printf("Nearest: %.4f (%d callbacks)\n", state.Dist, state.Hits)
		return nil
	})
}

func (t *tool) cmdHoles(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: terraintool holes <block>")
	}
	h, err := t.cache.FindOrLoad(args[0])
	if err != nil {
		return err
	}
	defer h.Release()

	m := h.Block().HoleMask()
	fmt.Printf("%d x %d\n", m.Width(), m.Height())
	var sb strings.Builder
	for z := m.Height() - 1; z >= 0; z-- {
		sb.Reset()
		for x := 0; x < m.Width(); x++ {
			if m.HoleAtCell(x, z) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		fmt.Println(sb.String())
	}
	return nil
}

func (t *tool) cmdVersion(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: terraintool version <block>")
	}
	v, p := terrain.TerrainVersion(t.res, args[0])
	fmt.Printf("%s: %s (%s)\n", args[0], v, p)
	return nil
}

func (t *tool) cmdConvert(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: terraintool convert <block> <dir>")
	}
	h, err := t.cache.FindOrLoad(args[0])
	if err != nil {
		return err
	}
	defer h.Release()

	if err := terrain.SaveCurrent(h.Block(), args[1]); err != nil {
		return err
	}
	fmt.Printf("Wrote %s block %s to %s\n", h.Block().Version(), args[0], args[1])
	return nil
}

func (t *tool) kindName(id uint8) string {
	if k, ok := t.mats.Kind(id); ok && k.Name != "" {
		return k.Name
	}
	return strconv.Itoa(int(id))
}

func parseXZ(xs, zs string) (x, z float32, err error) {
	fx, err := strconv.ParseFloat(xs, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x %q: %w", xs, err)
	}
	fz, err := strconv.ParseFloat(zs, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid z %q: %w", zs, err)
	}
	return float32(fx), float32(fz), nil
}

func parseVec3(s string) (math.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return math.Vec3{}, fmt.Errorf("invalid point %q: want x,y,z", s)
	}
	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return math.Vec3{}, fmt.Errorf("invalid point %q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}
