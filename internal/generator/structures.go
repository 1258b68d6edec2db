package generator

import (
	"fmt"
	"math"

	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
)

// Phase этап размещения постройки
type Phase uint8

const (
	PreCave  Phase = iota // до рельефа, выравнивает землю
	PostCave              // после пещер, расчищает место
)

func (p Phase) String() string {
	if p == PostCave {
		return "post_cave"
	}
	return "pre_cave"
}

// Keep в шаблоне оставляет тайл как есть
const Keep block.BlockID = math.MaxUint16

const (
	placementAttempts = 100
	surfaceSpread     = 200 // кандидаты по Y: уровень моря -100..+100
	flattenFalloff    = 12
	doorwaySearch     = 48
)

// Template шаблон постройки
type Template struct {
	Name            string
	Size            vec.Vec2
	Phase           Phase
	Layer           world.WorldLayer // пояс, в котором стоит основание
	Allowed         []biome.Type
	MinSpacing      int
	SpawnChance     float32
	NeedsFlatGround bool
	HasDoorway      bool
	// Blocks[row][col], строка 0 - нижняя
	Blocks [][]block.BlockID
}

// allows проверяет биом по списку разрешённых
func (t *Template) allows(b biome.Type) bool {
	for _, a := range t.Allowed {
		if a == b {
			return true
		}
	}
	return false
}

// TargetCount сколько экземпляров пытаться разместить
func (t *Template) TargetCount() int {
	if t.MinSpacing <= 0 {
		return 0
	}
	return int(float32(world.WorldWidth/t.MinSpacing) * t.SpawnChance)
}

// ParseLayout собирает блоки шаблона из строк (первая строка - верхняя).
// Пробел означает Keep, символы вне легенды - ошибка.
func ParseLayout(rows []string, legend map[rune]block.BlockID) ([][]block.BlockID, error) {
	out := make([][]block.BlockID, len(rows))
	width := -1
	for i, row := range rows {
		cells := []rune(row)
		if width >= 0 && len(cells) != width {
			return nil, fmt.Errorf("строка %d: ширина %d, ожидалось %d", i, len(cells), width)
		}
		width = len(cells)
		line := make([]block.BlockID, width)
		for j, r := range cells {
			if r == ' ' {
				line[j] = Keep
				continue
			}
			id, ok := legend[r]
			if !ok {
				return nil, fmt.Errorf("строка %d: неизвестный символ %q", i, r)
			}
			line[j] = id
		}
		out[len(rows)-1-i] = line
	}
	return out, nil
}

var defaultLegend = map[rune]block.BlockID{
	'.': block.AirBlockID,
	'P': block.PlanksBlockID,
	'B': block.BrickBlockID,
	't': block.TorchBlockID,
	'S': block.StoneBlockID,
}

func mustLayout(rows ...string) [][]block.BlockID {
	blocks, err := ParseLayout(rows, defaultLegend)
	if err != nil {
		panic(err)
	}
	return blocks
}

// DefaultTemplates стандартный набор построек
func DefaultTemplates() []Template {
	return []Template{
		{
			Name:            "cabin",
			Phase:           PreCave,
			Layer:           world.LayerSurface,
			Allowed:         []biome.Type{biome.Plains, biome.Forest, biome.Swamp},
			MinSpacing:      120,
			SpawnChance:     0.6,
			NeedsFlatGround: true,
			Blocks: mustLayout(
				"PPPPPPP",
				"P.....P",
				"P..t..P",
				"P......",
				"BBBBBBB",
			),
		},
		{
			Name:            "desert_shrine",
			Phase:           PreCave,
			Layer:           world.LayerSurface,
			Allowed:         []biome.Type{biome.Desert},
			MinSpacing:      200,
			SpawnChance:     0.5,
			NeedsFlatGround: true,
			Blocks: mustLayout(
				".B.B.",
				"BB.BB",
				"B.t.B",
				"BBBBB",
			),
		},
		{
			Name:        "mine_entrance",
			Phase:       PostCave,
			Layer:       world.LayerSurface,
			Allowed:     []biome.Type{biome.Plains, biome.Forest, biome.Mountains, biome.Snow},
			MinSpacing:  160,
			SpawnChance: 0.5,
			HasDoorway:  true,
			Blocks: mustLayout(
				"B...B",
				"P...P",
				"P.t.P",
				"P...P",
				"P...P",
				"PS.SP",
			),
		},
	}
}

// size размер шаблона; явный Size важнее размеров Blocks
func (t *Template) size() vec.Vec2 {
	if t.Size.X > 0 && t.Size.Y > 0 {
		return t.Size
	}
	s := vec.Vec2{Y: len(t.Blocks)}
	if len(t.Blocks) > 0 {
		s.X = len(t.Blocks[0])
	}
	return s
}

// Placement размещённая постройка
type Placement struct {
	Template string
	Phase    Phase
	Pos      vec.Vec2
	Size     vec.Vec2
}

// Doorway запрос прохода от постройки к ближайшей пещере
type Doorway struct {
	Structure string
	Origin    vec.Vec2
	Size      vec.Vec2
	Target    vec.Vec2 // ближайшая вырезанная клетка пещеры
	Found     bool
}

// DoorwayHook получает запросы проходов; прокладка остаётся за ним
type DoorwayHook interface {
	RequestDoorway(d Doorway)
}

// DoorwayFunc адаптер функции к DoorwayHook
type DoorwayFunc func(d Doorway)

func (f DoorwayFunc) RequestDoorway(d Doorway) { f(d) }

// lcg линейный конгруэнтный генератор размещения построек
type lcg struct {
	state uint64
}

func newLCG(seed uint64) lcg {
	return lcg{state: seed}
}

// Float возвращает число в [0, 1]
func (r *lcg) Float() float32 {
	r.state = (r.state*1103515245 + 12345) & 0x7fffffff
	return float32(r.state) / float32(0x7fffffff)
}

// placeStructures размещает шаблоны указанного этапа.
// Не найденная за 100 попыток позиция пропускается.
func (g *Generator) placeStructures(phase Phase) {
	for i := range g.templates {
		t := &g.templates[i]
		if t.Phase != phase {
			continue
		}
		target := t.TargetCount()
		placed := 0
		for n := 0; n < target; n++ {
			pos, ok := g.findPosition(t)
			if !ok {
				continue
			}
			g.placeStructure(t, pos)
			placed++
		}
		if placed < target {
			log.Debug("Постройка %s: размещено %d из %d", t.Name, placed, target)
		}
	}
}

func (g *Generator) findPosition(t *Template) (vec.Vec2, bool) {
	for attempt := 0; attempt < placementAttempts; attempt++ {
		x := world.WrapX(int(g.rng.Float() * world.WorldWidth))
		y := world.SeaLevel - surfaceSpread/2 + int(g.rng.Float()*surfaceSpread)
		pos := vec.Vec2{X: x, Y: y}
		if g.canPlace(t, pos) {
			return pos, true
		}
	}
	return vec.Vec2{}, false
}

// canPlace проверяет высотный пояс, дистанцию до всех построек
// (с замыканием по X), биом и попадание в полосу генерации
func (g *Generator) canPlace(t *Template, pos vec.Vec2) bool {
	if world.LayerAt(pos.Y) != t.Layer {
		return false
	}
	for _, other := range g.placed {
		dx := abs(world.WrappedDelta(pos.X, other.X, world.WorldWidth))
		dy := pos.Y - other.Y
		if int(math.Sqrt(float64(dx*dx+dy*dy))) < t.MinSpacing {
			return false
		}
	}
	if !t.allows(g.biomes.BiomeAt(pos.X)) {
		return false
	}
	size := t.size()
	return g.inBand(pos.Y-1) && g.inBand(pos.Y+size.Y-1)
}

func (g *Generator) placeStructure(t *Template, pos vec.Vec2) {
	size := t.size()
	if t.Phase == PostCave {
		for dy := 0; dy < size.Y; dy++ {
			for dx := 0; dx < size.X; dx++ {
				g.set(pos.Offset(dx, dy), block.AirBlockID)
			}
		}
	}

	for dy, row := range t.Blocks {
		for dx, id := range row {
			if id == Keep {
				continue
			}
			tile := world.WrapTile(pos.Offset(dx, dy))
			g.set(tile, id)
			g.protected[world.KeyOf(tile)] = struct{}{}
		}
	}

	if t.NeedsFlatGround && t.Phase == PreCave {
		half := size.X / 2
		g.markers = append(g.markers, FlattenMarker{
			Anchor:  vec.Vec2{X: world.WrapX(pos.X + half), Y: pos.Y - 1},
			Plateau: size.X - half,
			Radius:  flattenFalloff,
		})
	}

	if t.HasDoorway && t.Phase == PostCave {
		d := Doorway{Structure: t.Name, Origin: pos, Size: size}
		d.Target, d.Found = g.nearestCave(pos)
		g.doorways = append(g.doorways, d)
		if g.opts.Doorways != nil {
			g.opts.Doorways.RequestDoorway(d)
		}
	}

	g.placed = append(g.placed, pos)
	g.placements = append(g.placements, Placement{Template: t.Name, Phase: t.Phase, Pos: pos, Size: size})
	g.stats.Structures[t.Name]++
	g.opts.Metrics.StructurePlaced(t.Name)
	log.Trace("Постройка %s в (%d, %d)", t.Name, pos.X, pos.Y)
}

// nearestCave ближайшая вырезанная клетка пещеры в радиусе поиска
func (g *Generator) nearestCave(from vec.Vec2) (vec.Vec2, bool) {
	best := vec.Vec2{}
	bestDist := math.MaxFloat64
	for _, c := range g.carved {
		dx := float64(world.WrappedDelta(c.X, from.X, world.WorldWidth))
		dy := float64(c.Y - from.Y)
		d := math.Sqrt(dx*dx + dy*dy)
		if d <= doorwaySearch && d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist <= doorwaySearch
}
