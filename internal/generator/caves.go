package generator

import (
	"context"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"golang.org/x/sync/errgroup"
)

const (
	caveScale     = 0.05
	caveThreshold = 0.3
)

// IsCave порог на двумерном шуме пещер
func (g *Generator) IsCave(x, y int) bool {
	return g.caves.Sample2D(float32(x)*caveScale, float32(y)*caveScale, 0) > caveThreshold
}

// caveMask маска пещер для строк [lo, hi] включительно, индекс (y-lo)*W + x
type caveMask struct {
	lo, hi int
	cells  []bool
}

func (m *caveMask) at(x, y int) bool {
	if y < m.lo || y > m.hi {
		return false
	}
	return m.cells[(y-m.lo)*world.WorldWidth+world.WrapX(x)]
}

// buildMask считает маску параллельно по столбцам
func (g *Generator) buildMask(ctx context.Context, lo, hi int) (*caveMask, error) {
	m := &caveMask{lo: lo, hi: hi, cells: make([]bool, (hi-lo+1)*world.WorldWidth)}
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
				for y := lo; y <= hi; y++ {
					m.cells[(y-lo)*world.WorldWidth+x] = g.IsCave(x, y)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// IsCaveEdge true, если хотя бы один кардинальный сосед не пещера
func (g *Generator) IsCaveEdge(x, y int) bool {
	return !g.IsCave(x+1, y) || !g.IsCave(x-1, y) || !g.IsCave(x, y+1) || !g.IsCave(x, y-1)
}

// carveCaves вырезает пещеры ниже уровня моря. Край пещеры остаётся стеной,
// камень биома внутри становится пещерным камнем, прочий материал - воздухом.
// Руды и тайлы построек не трогаются.
func (g *Generator) carveCaves(ctx context.Context) error {
	top := min(g.opts.MaxY, world.SeaLevel) - 1
	if top < g.opts.MinY {
		return nil
	}
	// строка сверху и снизу нужна для проверки края
	mask, err := g.buildMask(ctx, g.opts.MinY-1, top+1)
	if err != nil {
		return err
	}

	for x := 0; x < world.WorldWidth; x++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		def := g.biomes.DefinitionAt(x)
		for y := g.opts.MinY; y <= top; y++ {
			if !mask.at(x, y) {
				continue
			}
			if !mask.at(x+1, y) || !mask.at(x-1, y) || !mask.at(x, y+1) || !mask.at(x, y-1) {
				continue
			}
			tile := vec.Vec2{X: x, Y: y}
			if g.Protected(tile) {
				continue
			}
			c, ok := g.manager.Get(tile, world.Foreground)
			if !ok {
				continue
			}
			if bd, known := g.registry.Get(c.ID); known && (bd.IsOre || bd.IsStructureBlock) {
				continue
			}
			switch {
			case c.ID == def.StoneBlock:
				g.set(tile, def.CaveStoneBlock)
			case !c.IsEmpty():
				g.set(tile, block.AirBlockID)
			}
			g.carved = append(g.carved, tile)
			g.stats.CaveCells++
		}
	}
	return nil
}
