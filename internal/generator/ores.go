package generator

import (
	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
)

// Vein центр и размер рудной жилы столбца
type Vein struct {
	Center vec.Vec2
	Size   int
}

// OreVein решает, есть ли в столбце жила руды ore, и где она лежит.
// Глубины руды отсчитываются вниз от уровня моря.
func (g *Generator) OreVein(x int, ore biome.Ore) (Vein, bool) {
	fx := float32(x)
	id := float32(ore.ID)

	roll := g.terrain.Sample1D(fx*0.1, id*1000)
	if (roll+1)*0.5 > ore.Rarity {
		return Vein{}, false
	}

	minY := world.SeaLevel - ore.MaxDepth
	maxY := world.SeaLevel - ore.MinDepth
	span := float32(maxY - minY)
	// явные float32 не дают слить умножение со сложением (FMA)
	veinY := minY + int(float32(g.terrain.Sample1D(fx*0.05, float32(id*500)+123)*span*0.5)+span*0.5)

	sizeSpan := float32(ore.VeinMax - ore.VeinMin)
	size := ore.VeinMin + int(float32(g.terrain.Sample1D(fx*0.03, id*777)*sizeSpan*0.5)+sizeSpan*0.5)

	return Vein{Center: vec.Vec2{X: x, Y: veinY}, Size: size}, true
}

// veinOffset смещение i-го тайла жилы от центра, не больше трёх тайлов
func (g *Generator) veinOffset(i int, ore biome.Ore) (int, int) {
	fi := float32(i)
	id := float32(ore.ID)
	ox := int(g.terrain.Sample1D(fi*123, id*456) * 3)
	oy := int(g.terrain.Sample1D(fi*456, id*789) * 3)
	return ox, oy
}

// placeOres кладёт жилы; руда заменяет только камень биома столбца
func (g *Generator) placeOres() {
	for x := 0; x < world.WorldWidth; x++ {
		def := g.biomes.DefinitionAt(x)
		for _, ore := range def.Ores {
			vein, ok := g.OreVein(x, ore)
			if !ok {
				continue
			}
			for i := 0; i < vein.Size; i++ {
				ox, oy := g.veinOffset(i, ore)
				tile := vein.Center.Offset(ox, oy)
				if g.Protected(tile) {
					continue
				}
				if c, ok := g.manager.Get(tile, world.Foreground); ok && c.ID == def.StoneBlock {
					g.set(tile, ore.ID)
					g.stats.OreTiles++
				}
			}
		}
	}
}
