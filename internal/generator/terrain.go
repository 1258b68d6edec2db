package generator

import (
	"context"

	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"golang.org/x/sync/errgroup"
)

// Каналы шума рельефа
const (
	octaveLarge  = 100
	octaveMedium = 200
	octaveSmall  = 300

	subsurfaceDepth = 5 // поверхность + 4 тайла подпочвы
	columnBatch     = 64
)

// FlattenMarker подсказка рельефу от постройки: в пределах Plateau
// от якоря высота равна Anchor.Y, дальше на Radius тайлов плавно
// возвращается к естественной с весом 1 - (d/Radius)^2.
type FlattenMarker struct {
	Anchor  vec.Vec2
	Plateau int
	Radius  int
}

// weight вес маркера для столбца x (0 - вне зоны)
func (m FlattenMarker) weight(x int) float32 {
	d := abs(world.WrappedDelta(x, m.Anchor.X, world.WorldWidth)) - m.Plateau
	if d <= 0 {
		return 1
	}
	if d >= m.Radius {
		return 0
	}
	r := float32(d) / float32(m.Radius)
	return 1 - float32(r*r)
}

// TerrainHeight естественная высота столбца: три октавы шума вокруг уровня моря
func (g *Generator) TerrainHeight(x int, def *biome.Definition) float32 {
	f := def.TerrainFrequency
	a := def.TerrainAmplitude
	fx := float32(x)
	// явные float32 не дают слить умножение со сложением (FMA)
	h := float32(world.SeaLevel)
	h += float32(g.terrain.Sample1D(fx*f, octaveLarge) * a)
	h += float32(g.terrain.Sample1D(fx*f*2.5, octaveMedium) * (a * 0.5))
	h += float32(g.terrain.Sample1D(fx*f*5, octaveSmall) * (a * 0.25))
	return h
}

// flatten смешивает высоту с сильнейшим маркером столбца
func flatten(x int, h float32, markers []FlattenMarker) float32 {
	best := float32(0)
	target := h
	for _, m := range markers {
		if w := m.weight(x); w > best {
			best = w
			target = float32(m.Anchor.Y)
		}
	}
	return h + float32((target-h)*best)
}

// columnHeights считает верх рельефа всех столбцов параллельно
func (g *Generator) columnHeights(ctx context.Context) ([]int, error) {
	heights := make([]int, world.WorldWidth)
	eg, ctx := errgroup.WithContext(ctx)
	if g.opts.Workers > 0 {
		eg.SetLimit(g.opts.Workers)
	}
	for start := 0; start < world.WorldWidth; start += columnBatch {
		start := start // per-iteration copy (go 1.21 loop semantics)
		end := min(start+columnBatch, world.WorldWidth)
		eg.Go(func() error {
			for x := start; x < end; x++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				h := g.TerrainHeight(x, g.biomes.DefinitionAt(x))
				heights[x] = int(flatten(x, h, g.markers))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return heights, nil
}

// generateTerrain заполняет столбцы полосы. Маркеры выравнивания
// расходуются этим этапом.
func (g *Generator) generateTerrain(ctx context.Context) error {
	heights, err := g.columnHeights(ctx)
	if err != nil {
		return err
	}
	g.heights = heights
	g.stats.Markers = len(g.markers)
	g.markers = nil

	for x := 0; x < world.WorldWidth; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.fillColumn(x, heights[x], g.biomes.DefinitionAt(x))
	}
	return nil
}

// ColumnBlock материал столбца на высоте y при верхе рельефа top
func ColumnBlock(y, top int, def *biome.Definition) block.BlockID {
	switch {
	case y > top:
		return block.AirBlockID
	case y == top:
		return def.SurfaceBlock
	case y > top-subsurfaceDepth:
		return def.SubsurfaceBlock
	default:
		return def.StoneBlock
	}
}

func (g *Generator) fillColumn(x, top int, def *biome.Definition) {
	for y := g.opts.MinY; y < g.opts.MaxY; y++ {
		tile := vec.Vec2{X: x, Y: y}
		if g.Protected(tile) {
			continue
		}
		id := ColumnBlock(y, top, def)
		if id == block.AirBlockID {
			// воздух пишем только поверх существующего содержимого
			if c, ok := g.manager.Get(tile, world.Foreground); !ok || c.IsEmpty() {
				continue
			}
		}
		g.set(tile, id)
	}
}

// generateBackground зеркалит передний слой в задний для блоков,
// допускающих фон. Вырезанные пещеры получают стену из пещерного камня биома.
func (g *Generator) generateBackground() {
	for x := 0; x < world.WorldWidth; x++ {
		for y := g.opts.MinY; y < g.opts.MaxY; y++ {
			tile := vec.Vec2{X: x, Y: y}
			c, ok := g.manager.Get(tile, world.Foreground)
			if !ok || c.IsEmpty() {
				continue
			}
			def, ok := g.registry.Get(c.ID)
			if !ok || !def.CanBeBackground {
				continue
			}
			id := c.ID
			if def.BackgroundVariantID != block.AirBlockID {
				id = def.BackgroundVariantID
			}
			g.setBackground(tile, id)
		}
	}
	for _, tile := range g.carved {
		if !g.fg(tile).IsEmpty() {
			continue
		}
		def := g.biomes.DefinitionAt(tile.X)
		if def.CaveStoneBlock != block.AirBlockID {
			g.setBackground(tile, def.CaveStoneBlock)
		}
	}
}

func (g *Generator) setBackground(tile vec.Vec2, id block.BlockID) {
	bg := g.registry.Cell(id)
	bg.Flags = bg.Flags.With(block.FlagBackground, true)
	g.manager.Set(tile, world.Background, bg)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
