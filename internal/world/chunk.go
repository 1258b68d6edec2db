package world

import (
	"unsafe"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world/block"
)

// LiquidType тип жидкости
type LiquidType uint8

const (
	LiquidNone LiquidType = iota
	LiquidWater
	LiquidLava
	LiquidHoney
	LiquidAcid
)

// LiquidCell разреженная запись жидкости. Level может превышать 1.0 под давлением.
type LiquidCell struct {
	Type  LiquidType
	Level float32
}

// Health запись повреждённого блока. Существует только пока Current < Max.
type Health struct {
	Current float64
	Max     float64
}

// Percentage доля оставшегося здоровья
func (h Health) Percentage() float64 {
	if h.Max <= 0 {
		return 0
	}
	return h.Current / h.Max
}

// Chunk участок мира 32x32 тайла.
// Плотные сетки переднего и заднего слоя, байты освещения и
// две разреженные карты: здоровье повреждённых блоков и жидкости.
// Индексация сеток: x*ChunkSize + y.
type Chunk struct {
	Coords vec.Vec2 // замкнутые координаты чанка

	Foreground [ChunkArea]block.Cell
	Background [ChunkArea]block.Cell
	Lighting   [ChunkArea]uint8

	health  map[healthIndex]Health
	liquids map[uint16]LiquidCell

	Generated bool

	// Флаги для внешнего рендера. Ядро их только выставляет.
	DirtyMesh       bool
	DirtyLighting   bool
	DirtyBackground bool

	ChangeCounter int // число изменений с момента загрузки/сохранения
}

type healthIndex uint16 // layer<<10 | index

// NewChunk создаёт пустой чанк; все флаги "грязные"
func NewChunk(coords vec.Vec2) *Chunk {
	return &Chunk{
		Coords:          coords,
		health:          make(map[healthIndex]Health),
		liquids:         make(map[uint16]LiquidCell),
		DirtyMesh:       true,
		DirtyLighting:   true,
		DirtyBackground: true,
	}
}

// InBounds проверяет локальную позицию
func InBounds(local vec.Vec2) bool {
	return local.X >= 0 && local.X < ChunkSize && local.Y >= 0 && local.Y < ChunkSize
}

func index(local vec.Vec2) int {
	return local.X*ChunkSize + local.Y
}

func hIndex(local vec.Vec2, layer Layer) healthIndex {
	return healthIndex(uint16(layer)<<10 | uint16(index(local)))
}

func (c *Chunk) grid(layer Layer) *[ChunkArea]block.Cell {
	if layer == Background {
		return &c.Background
	}
	return &c.Foreground
}

// Cell возвращает клетку слоя. Вне границ - пустая клетка и false.
func (c *Chunk) Cell(local vec.Vec2, layer Layer) (block.Cell, bool) {
	if !InBounds(local) {
		return block.Cell{}, false
	}
	return c.grid(layer)[index(local)], true
}

// SetCell записывает клетку и помечает флаги.
// Смена типа сбрасывает запись здоровья, флаг Damaged всегда отражает наличие записи.
func (c *Chunk) SetCell(local vec.Vec2, layer Layer, cell block.Cell) {
	if !InBounds(local) {
		return
	}
	i := index(local)
	grid := c.grid(layer)
	hk := hIndex(local, layer)
	if grid[i].ID != cell.ID || cell.IsEmpty() {
		delete(c.health, hk)
	}
	_, damaged := c.health[hk]
	cell.Flags = cell.Flags.With(block.FlagDamaged, damaged)
	grid[i] = cell

	if layer == Background {
		c.DirtyBackground = true
	} else {
		c.DirtyMesh = true
	}
	c.DirtyLighting = true
	c.ChangeCounter++
}

// Health возвращает запись здоровья, если блок повреждён
func (c *Chunk) Health(local vec.Vec2, layer Layer) (Health, bool) {
	if !InBounds(local) {
		return Health{}, false
	}
	h, ok := c.health[hIndex(local, layer)]
	return h, ok
}

// SetHealth сохраняет здоровье. current >= max удаляет запись.
func (c *Chunk) SetHealth(local vec.Vec2, layer Layer, current, max float64) {
	if !InBounds(local) {
		return
	}
	hk := hIndex(local, layer)
	grid := c.grid(layer)
	i := index(local)
	if current >= max || grid[i].IsEmpty() {
		if _, ok := c.health[hk]; !ok {
			return
		}
		delete(c.health, hk)
		grid[i].Flags = grid[i].Flags.With(block.FlagDamaged, false)
	} else {
		c.health[hk] = Health{Current: current, Max: max}
		grid[i].Flags = grid[i].Flags.With(block.FlagDamaged, true)
	}
	c.ChangeCounter++
}

// HealthCount число повреждённых блоков в чанке
func (c *Chunk) HealthCount() int {
	return len(c.health)
}

// ForEachHealth обходит записи здоровья
func (c *Chunk) ForEachHealth(fn func(local vec.Vec2, layer Layer, h Health)) {
	for k, h := range c.health {
		i := int(k & 0x3FF)
		fn(vec.Vec2{X: i / ChunkSize, Y: i % ChunkSize}, Layer(k>>10), h)
	}
}

// Liquid возвращает жидкость в клетке
func (c *Chunk) Liquid(local vec.Vec2) (LiquidCell, bool) {
	if !InBounds(local) {
		return LiquidCell{}, false
	}
	l, ok := c.liquids[uint16(index(local))]
	return l, ok
}

// SetLiquid записывает жидкость. Уровень <= 0 или LiquidNone удаляет запись.
func (c *Chunk) SetLiquid(local vec.Vec2, t LiquidType, level float32) {
	if !InBounds(local) {
		return
	}
	i := uint16(index(local))
	if level <= 0 || t == LiquidNone {
		delete(c.liquids, i)
	} else {
		c.liquids[i] = LiquidCell{Type: t, Level: level}
	}
	c.DirtyMesh = true
	c.ChangeCounter++
}

// LiquidCount число клеток с жидкостью
func (c *Chunk) LiquidCount() int {
	return len(c.liquids)
}

// ForEachLiquid обходит жидкости
func (c *Chunk) ForEachLiquid(fn func(local vec.Vec2, l LiquidCell)) {
	for i, l := range c.liquids {
		fn(vec.Vec2{X: int(i) / ChunkSize, Y: int(i) % ChunkSize}, l)
	}
}

// Light возвращает уровень освещения
func (c *Chunk) Light(local vec.Vec2) uint8 {
	if !InBounds(local) {
		return 0
	}
	return c.Lighting[index(local)]
}

// SetLight сохраняет уровень освещения (расчёт света - внешняя задача)
func (c *Chunk) SetLight(local vec.Vec2, level uint8) {
	if !InBounds(local) {
		return
	}
	c.Lighting[index(local)] = level
}

// Clear сбрасывает чанк в пустое негенерированное состояние
func (c *Chunk) Clear() {
	c.Foreground = [ChunkArea]block.Cell{}
	c.Background = [ChunkArea]block.Cell{}
	c.Lighting = [ChunkArea]uint8{}
	c.health = make(map[healthIndex]Health)
	c.liquids = make(map[uint16]LiquidCell)
	c.Generated = false
	c.DirtyMesh = true
	c.DirtyLighting = true
	c.DirtyBackground = true
	c.ChangeCounter++
}

// ClearDirty сбрасывает флаги после того, как рендер их обработал
func (c *Chunk) ClearDirty() {
	c.DirtyMesh = false
	c.DirtyLighting = false
	c.DirtyBackground = false
}

// MemoryUsage оценка занимаемой памяти в байтах
func (c *Chunk) MemoryUsage() int {
	base := int(unsafe.Sizeof(*c))
	liquidMem := len(c.liquids) * int(unsafe.Sizeof(uint16(0))+unsafe.Sizeof(LiquidCell{}))
	healthMem := len(c.health) * int(unsafe.Sizeof(healthIndex(0))+unsafe.Sizeof(Health{}))
	return base + liquidMem + healthMem
}
