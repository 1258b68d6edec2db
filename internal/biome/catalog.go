package biome

import (
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
)

// Type идентификатор биома
type Type uint8

const (
	Plains Type = iota
	Forest
	Desert
	Snow
	Jungle
	Swamp
	Ocean
	Beach
	Mountains
	Volcano
	Mushroom
	Corruption
	Hallow
	Cave
	CrystalCavern
)

var typeNames = [...]string{
	"plains", "forest", "desert", "snow", "jungle", "swamp", "ocean", "beach",
	"mountains", "volcano", "mushroom", "corruption", "hallow", "cave", "crystal_cavern",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Ore запись таблицы руд: глубины считаются вниз от уровня моря
type Ore struct {
	ID       block.BlockID
	Rarity   float32 // порог появления в [0, 1]
	MinDepth int
	MaxDepth int
	VeinMin  int
	VeinMax  int
}

// Definition описание биома
type Definition struct {
	Type        Type
	Name        string
	Temperature float32
	Humidity    float32
	MinHeight   int
	MaxHeight   int

	SurfaceBlock    block.BlockID
	SubsurfaceBlock block.BlockID
	StoneBlock      block.BlockID
	CaveStoneBlock  block.BlockID
	BackgroundBlock block.BlockID

	TerrainFrequency float32
	TerrainAmplitude float32
	CaveFrequency    float32
	EvaporationRate  float32
	RainFrequency    float32
	AmbientLight     block.Color

	Ores         []Ore
	CannotBorder []Type
	PrefersNear  []Type
}

// AllowsHeight проверяет, попадает ли высота в пояс биома
func (d *Definition) AllowsHeight(y int) bool {
	return y >= d.MinHeight && y <= d.MaxHeight
}

func newDefinition(t Type, name string) Definition {
	return Definition{
		Type:             t,
		Name:             name,
		Temperature:      0.5,
		Humidity:         0.5,
		MinHeight:        world.SurfaceBottom,
		MaxHeight:        world.SurfaceTop,
		SurfaceBlock:     block.GrassBlockID,
		SubsurfaceBlock:  block.DirtBlockID,
		StoneBlock:       block.StoneBlockID,
		CaveStoneBlock:   block.CaveStoneBlockID,
		TerrainFrequency: 0.01,
		TerrainAmplitude: 50,
		CaveFrequency:    0.05,
		EvaporationRate:  1,
		RainFrequency:    0.1,
		AmbientLight:     block.Color{R: 1, G: 1, B: 1},
	}
}

// DefaultCatalog стандартный набор биомов
func DefaultCatalog() []Definition {
	plains := newDefinition(Plains, "Plains")
	plains.TerrainAmplitude = 30
	plains.Ores = []Ore{
		{ID: block.CopperOreBlockID, Rarity: 0.7, MinDepth: 0, MaxDepth: 2000, VeinMin: 3, VeinMax: 8},
		{ID: block.IronOreBlockID, Rarity: 0.4, MinDepth: 1000, MaxDepth: 3000, VeinMin: 3, VeinMax: 6},
	}

	forest := newDefinition(Forest, "Forest")
	forest.Humidity = 0.7
	forest.TerrainAmplitude = 40
	forest.RainFrequency = 0.3
	forest.Ores = []Ore{
		{ID: block.CopperOreBlockID, Rarity: 0.6, MinDepth: 0, MaxDepth: 2000, VeinMin: 3, VeinMax: 8},
		{ID: block.IronOreBlockID, Rarity: 0.5, MinDepth: 1000, MaxDepth: 3000, VeinMin: 4, VeinMax: 7},
	}

	desert := newDefinition(Desert, "Desert")
	desert.Temperature = 0.9
	desert.Humidity = 0.1
	desert.SurfaceBlock = block.SandBlockID
	desert.SubsurfaceBlock = block.SandBlockID
	desert.TerrainAmplitude = 20
	desert.EvaporationRate = 3
	desert.RainFrequency = 0.01
	desert.CannotBorder = []Type{Snow, Swamp}
	desert.Ores = []Ore{
		{ID: block.CopperOreBlockID, Rarity: 0.5, MinDepth: 0, MaxDepth: 2000, VeinMin: 2, VeinMax: 5},
		{ID: block.GoldOreBlockID, Rarity: 0.2, MinDepth: 1500, MaxDepth: 3500, VeinMin: 2, VeinMax: 4},
	}

	// блока снега в каталоге нет, поверхность - песок.
	// Верхняя граница пояса снега и гор ниже нижней, оба биома не
	// выбираются. Карты биомов старых миров держатся на этом.
	snow := newDefinition(Snow, "Snow")
	snow.Temperature = 0.1
	snow.Humidity = 0.3
	snow.MaxHeight = world.SkyBottom
	snow.SurfaceBlock = block.SandBlockID
	snow.TerrainAmplitude = 60
	snow.CannotBorder = []Type{Desert, Jungle}
	snow.Ores = []Ore{
		{ID: block.IronOreBlockID, Rarity: 0.6, MinDepth: 500, MaxDepth: 2500, VeinMin: 4, VeinMax: 8},
	}

	mountains := newDefinition(Mountains, "Mountains")
	mountains.Temperature = 0.3
	mountains.Humidity = 0.4
	mountains.MinHeight = world.SurfaceTop - 200
	mountains.MaxHeight = world.SkyBottom
	mountains.SurfaceBlock = block.StoneBlockID
	mountains.SubsurfaceBlock = block.StoneBlockID
	mountains.TerrainAmplitude = 150
	mountains.Ores = []Ore{
		{ID: block.CopperOreBlockID, Rarity: 0.4, MinDepth: 0, MaxDepth: 1500, VeinMin: 3, VeinMax: 6},
		{ID: block.IronOreBlockID, Rarity: 0.7, MinDepth: 500, MaxDepth: 2500, VeinMin: 5, VeinMax: 10},
		{ID: block.GoldOreBlockID, Rarity: 0.3, MinDepth: 1000, MaxDepth: 3000, VeinMin: 2, VeinMax: 5},
	}

	cave := newDefinition(Cave, "Cave")
	cave.MinHeight = 0
	cave.MaxHeight = world.UndergroundBottom
	cave.BackgroundBlock = block.CaveStoneBlockID
	cave.CaveFrequency = 0.08
	cave.AmbientLight = block.Color{R: 0.3, G: 0.3, B: 0.4}

	return []Definition{plains, forest, desert, snow, mountains, cave}
}

// ExtendedCatalog стандартный набор плюс болото.
// Болото забирает влажные столбцы у леса, карта биомов меняется.
func ExtendedCatalog() []Definition {
	return append(DefaultCatalog(), SwampDefinition())
}

// SwampDefinition болото на мшистом камне
func SwampDefinition() Definition {
	swamp := newDefinition(Swamp, "Swamp")
	swamp.Temperature = 0.6
	swamp.Humidity = 0.9
	swamp.StoneBlock = block.MossyStoneBlockID
	swamp.CaveStoneBlock = block.MossyCaveStoneBlockID
	swamp.TerrainAmplitude = 15
	swamp.EvaporationRate = 0.5
	swamp.RainFrequency = 0.5
	swamp.AmbientLight = block.Color{R: 0.8, G: 0.9, B: 0.8}
	swamp.CannotBorder = []Type{Desert}
	swamp.PrefersNear = []Type{Forest}
	swamp.Ores = []Ore{
		{ID: block.CopperOreBlockID, Rarity: 0.5, MinDepth: 0, MaxDepth: 1500, VeinMin: 2, VeinMax: 6},
	}
	return swamp
}
