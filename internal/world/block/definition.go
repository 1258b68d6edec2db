package block

import "gopkg.in/yaml.v3"

// Color цвет излучаемого света
type Color struct {
	R float32 `yaml:"r"`
	G float32 `yaml:"g"`
	B float32 `yaml:"b"`
}

// Definition статическое описание типа блока
type Definition struct {
	ID   BlockID `yaml:"id"`
	Name string  `yaml:"name"`

	// Разрушение
	MaxHealth        float64 `yaml:"max_health"`
	DamageReduction  float64 `yaml:"damage_reduction"`
	RequiredToolTier int     `yaml:"required_tool_tier"`
	MiningTime       float64 `yaml:"mining_time"`

	// Физика
	AffectedByGravity  bool    `yaml:"affected_by_gravity"`
	BreaksOnFall       bool    `yaml:"breaks_on_fall"`
	Density            float64 `yaml:"density"`
	StabilityThreshold int     `yaml:"stability_threshold"` // минимум твёрдых соседей при наличии фона

	// Отображение
	UseAutotile bool      `yaml:"use_autotile"`
	BlendsWith  []BlockID `yaml:"blends_with,omitempty"`
	Variants    uint8     `yaml:"variants"`

	// Освещение
	LightOpacity  uint8 `yaml:"light_opacity"`
	LightEmission uint8 `yaml:"light_emission"`
	LightColor    Color `yaml:"light_color"`

	IsDoor           bool `yaml:"is_door"`
	IsChest          bool `yaml:"is_chest"`
	IsPlatform       bool `yaml:"is_platform"`
	IsLiquid         bool `yaml:"is_liquid"`
	GrowsPlants      bool `yaml:"grows_plants"`
	IsOre            bool `yaml:"is_ore"`
	IsStructureBlock bool `yaml:"is_structure_block"`

	// Фоновый слой
	CanBeBackground       bool    `yaml:"can_be_background"`
	BackgroundVariantID   BlockID `yaml:"background_variant_id"`
	BackgroundOrePriority bool    `yaml:"background_ore_priority"`
}

// NewDefinition возвращает определение со значениями по умолчанию
func NewDefinition(id BlockID, name string) Definition {
	return Definition{
		ID:              id,
		Name:            name,
		MaxHealth:       100,
		MiningTime:      1,
		Density:         1,
		Variants:        1,
		LightOpacity:    255,
		LightColor:      Color{R: 1, G: 1, B: 1},
		CanBeBackground: true,
	}
}

// UnmarshalYAML заполняет отсутствующие в YAML поля значениями по умолчанию
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	type plain Definition
	raw := plain(NewDefinition(0, ""))
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*d = Definition(raw)
	return nil
}

// CellFlags возвращает флаги, которые получает клетка этого типа
func (d *Definition) CellFlags() Flags {
	var f Flags
	f = f.With(FlagGravity, d.AffectedByGravity)
	f = f.With(FlagLiquid, d.IsLiquid)
	f = f.With(FlagPlatform, d.IsPlatform)
	f = f.With(FlagBlend, d.UseAutotile)
	f = f.With(FlagBlocksLight, d.LightOpacity > 0)
	f = f.With(FlagEmitsLight, d.LightEmission > 0)
	return f
}

// IsSolid true для блоков, которые считаются опорой
func (d *Definition) IsSolid() bool {
	return d.ID != AirBlockID && !d.IsLiquid && !d.IsPlatform
}

// DefaultDefinitions возвращает стандартный каталог
func DefaultDefinitions() []Definition {
	air := NewDefinition(AirBlockID, "air")
	air.MaxHealth = 0
	air.LightOpacity = 0

	stone := NewDefinition(StoneBlockID, "stone")
	stone.DamageReduction = 80
	stone.UseAutotile = true

	dirt := NewDefinition(DirtBlockID, "dirt")
	dirt.DamageReduction = 20
	dirt.UseAutotile = true
	dirt.GrowsPlants = true

	sand := NewDefinition(SandBlockID, "sand")
	sand.DamageReduction = 10
	sand.AffectedByGravity = true
	sand.StabilityThreshold = 2

	gravel := NewDefinition(GravelBlockID, "gravel")
	gravel.DamageReduction = 15
	gravel.AffectedByGravity = true
	gravel.StabilityThreshold = 1

	grass := NewDefinition(GrassBlockID, "grass")
	grass.DamageReduction = 20
	grass.UseAutotile = true

	copper := ore(CopperOreBlockID, "copper_ore", 50)
	iron := ore(IronOreBlockID, "iron_ore", 60)
	gold := ore(GoldOreBlockID, "gold_ore", 70)

	torch := NewDefinition(TorchBlockID, "torch")
	torch.LightOpacity = 0
	torch.LightEmission = 255
	torch.LightColor = Color{R: 1, G: 0.9, B: 0.7}
	torch.BreaksOnFall = true

	caveStone := NewDefinition(CaveStoneBlockID, "cave_stone")
	caveStone.DamageReduction = 80
	caveStone.UseAutotile = true
	caveStone.CanBeBackground = false

	mossy := NewDefinition(MossyStoneBlockID, "mossy_stone")
	mossy.DamageReduction = 80
	mossy.UseAutotile = true

	mossyCave := NewDefinition(MossyCaveStoneBlockID, "mossy_cave_stone")
	mossyCave.DamageReduction = 80
	mossyCave.UseAutotile = true

	planks := NewDefinition(PlanksBlockID, "planks")
	planks.DamageReduction = 30
	planks.IsStructureBlock = true

	brick := NewDefinition(BrickBlockID, "brick")
	brick.DamageReduction = 70
	brick.RequiredToolTier = 1
	brick.IsStructureBlock = true

	return []Definition{
		air, stone, dirt, sand, gravel, grass,
		copper, iron, gold, torch,
		caveStone, mossy, mossyCave, planks, brick,
	}
}

func ore(id BlockID, name string, reduction float64) Definition {
	d := NewDefinition(id, name)
	d.DamageReduction = reduction
	d.IsOre = true
	d.BackgroundOrePriority = true
	return d
}
