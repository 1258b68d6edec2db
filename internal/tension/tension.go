// Package tension отвечает за устойчивость блоков с гравитацией:
// очередь проверок, обрушение и физику падающих блоков.
package tension

import (
	"math"
	"math/rand"

	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
)

var log = logging.NewLazy("tension")

// DefaultCollapseChance вероятность немедленного обрушения опёртого
// кардинального соседа после добычи
const DefaultCollapseChance = 0.3

// Roller источник случайных чисел в [0, 1)
type Roller interface {
	Float64() float64
}

var (
	cardinals = [4]vec.Vec2{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}
	diagonals = [4]vec.Vec2{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}}
)

// FallingBlock блок в свободном падении.
// Position в пикселях, Velocity.Y - скорость вниз (к меньшему Y).
type FallingBlock struct {
	Position vec.Vec2Float
	Velocity vec.Vec2Float
	Cell     block.Cell
	ID       block.BlockID
}

// Tile текущий тайл блока
func (f FallingBlock) Tile() vec.Vec2 {
	return world.WorldToTile(f.Position)
}

// Options параметры системы
type Options struct {
	CollapseChance float64
	Rand           Roller
	Events         world.EventSink
	Metrics        *metrics.Collectors
}

// DefaultOptions возвращает параметры по умолчанию с детерминированным RNG
func DefaultOptions(seed int64) Options {
	return Options{
		CollapseChance: DefaultCollapseChance,
		Rand:           rand.New(rand.NewSource(seed)),
	}
}

// System очередь проверок устойчивости и список падающих блоков.
// Не потокобезопасна: вызывается из цикла симуляции.
type System struct {
	manager  *world.Manager
	registry *block.Registry
	opts     Options
	events   world.EventSink

	queue   []vec.Vec2
	falling []FallingBlock
}

// New создаёт систему напряжений
func New(manager *world.Manager, registry *block.Registry, opts Options) *System {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return &System{
		manager:  manager,
		registry: registry,
		opts:     opts,
		events:   world.SinkOrNop(opts.Events),
	}
}

// cell читает передний слой; отсутствующий чанк считается воздухом
func (s *System) cell(tile vec.Vec2, layer world.Layer) block.Cell {
	c, _ := s.manager.Get(tile, layer)
	return c
}

// gravityDef возвращает описание, если блок непустой, известный и подвержен гравитации
func (s *System) gravityDef(c block.Cell) (*block.Definition, bool) {
	if c.IsEmpty() {
		return nil, false
	}
	def, ok := s.registry.Get(c.ID)
	if !ok || !def.AffectedByGravity {
		return nil, false
	}
	return def, true
}

// IsSolid true, если клетка служит опорой: не воздух, не жидкость, не платформа
func IsSolid(c block.Cell) bool {
	return !c.IsEmpty() && !c.Has(block.FlagLiquid) && !c.Has(block.FlagPlatform)
}

// IsStable проверяет устойчивость блока переднего слоя.
// Воздух, неизвестные и негравитационные блоки всегда устойчивы.
func (s *System) IsStable(tile vec.Vec2) bool {
	def, ok := s.gravityDef(s.cell(tile, world.Foreground))
	if !ok {
		return true
	}
	if s.cell(tile, world.Background).IsEmpty() {
		return false
	}
	solid := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if IsSolid(s.cell(tile.Offset(dx, dy), world.Foreground)) {
				solid++
			}
		}
	}
	return solid >= def.StabilityThreshold
}

// Queue ставит тайл в очередь проверки. Повторы допустимы.
func (s *System) Queue(tile vec.Vec2) {
	s.queue = append(s.queue, world.WrapTile(tile))
}

// QueueLength число ожидающих проверок
func (s *System) QueueLength() int {
	return len(s.queue)
}

// Drain обрабатывает снимок очереди. Проверки, добавленные во время
// обработки, остаются до следующего вызова.
func (s *System) Drain() {
	if len(s.queue) == 0 {
		return
	}
	pending := s.queue
	s.queue = nil
	for _, tile := range pending {
		if !s.IsStable(tile) {
			s.Collapse(tile)
		}
	}
}

// AfterMining реагирует на добычу тайла: кардинальные соседи с гравитацией
// падают сразу с шансом CollapseChance (если у них есть фон) или
// ставятся в очередь, диагонали ставятся в очередь всегда.
func (s *System) AfterMining(tile vec.Vec2) {
	for _, d := range cardinals {
		n := tile.Add(d)
		if _, ok := s.gravityDef(s.cell(n, world.Foreground)); !ok {
			continue
		}
		if !s.cell(n, world.Background).IsEmpty() && s.opts.Rand.Float64() < s.opts.CollapseChance {
			s.Collapse(n)
		} else {
			s.Queue(n)
		}
	}
	for _, d := range diagonals {
		s.Queue(tile.Add(d))
	}
}

// Collapse превращает блок в падающий. Тайл становится воздухом,
// все восемь соседей ставятся в очередь.
func (s *System) Collapse(tile vec.Vec2) bool {
	tile = world.WrapTile(tile)
	c := s.cell(tile, world.Foreground)
	if _, ok := s.gravityDef(c); !ok {
		return false
	}

	s.falling = append(s.falling, FallingBlock{
		Position: world.TileToWorld(tile),
		Cell:     c,
		ID:       c.ID,
	})
	s.manager.Set(tile, world.Foreground, block.Cell{})

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx != 0 || dy != 0 {
				s.Queue(tile.Offset(dx, dy))
			}
		}
	}

	s.events.BlockCollapsed(tile, c.ID)
	s.opts.Metrics.Collapsed()
	s.opts.Metrics.FallingActive(len(s.falling))
	log.Trace("Обрушение блока %d в (%d, %d)", c.ID, tile.X, tile.Y)
	return true
}

// Tick продвигает падающие блоки на dt секунд
func (s *System) Tick(dt float64) {
	if len(s.falling) == 0 {
		return
	}
	kept := s.falling[:0]
	for _, f := range s.falling {
		f.Velocity.Y = math.Min(f.Velocity.Y+world.Gravity*dt, world.MaxFallSpeed)
		f.Position.X += f.Velocity.X * dt
		f.Position.Y -= f.Velocity.Y * dt

		tile := world.WorldToTile(f.Position)
		if !world.ValidY(tile.Y) {
			s.opts.Metrics.FallFinished("lost")
			continue
		}
		below := s.cell(tile.Offset(0, -1), world.Foreground)
		if below.IsEmpty() {
			kept = append(kept, f)
			continue
		}
		if s.place(f, tile) {
			s.events.BlockLanded(world.WrapTile(tile), f.ID)
			s.opts.Metrics.FallFinished("placed")
		} else {
			s.events.SpawnDrop(world.WrapTile(tile), f.ID)
			s.opts.Metrics.FallFinished("broken")
		}
	}
	// обнуляем хвост, чтобы не держать старые значения
	for i := len(kept); i < len(s.falling); i++ {
		s.falling[i] = FallingBlock{}
	}
	s.falling = kept
	s.opts.Metrics.FallingActive(len(s.falling))
}

// place пытается поставить блок в тайл приземления
func (s *System) place(f FallingBlock, tile vec.Vec2) bool {
	if !s.cell(tile, world.Foreground).IsEmpty() {
		return false
	}
	def, ok := s.registry.Get(f.ID)
	if !ok {
		return false
	}
	if def.BreaksOnFall && math.Abs(f.Velocity.Y) > world.BreakVelocity {
		return false
	}
	s.manager.Set(tile, world.Foreground, f.Cell)
	return true
}

// Falling возвращает копию списка падающих блоков
func (s *System) Falling() []FallingBlock {
	out := make([]FallingBlock, len(s.falling))
	copy(out, s.falling)
	return out
}

// FallingCount число падающих блоков
func (s *System) FallingCount() int {
	return len(s.falling)
}

// ClearFalling удаляет все падающие блоки без выпадения предметов
func (s *System) ClearFalling() {
	s.falling = nil
	s.opts.Metrics.FallingActive(0)
}
