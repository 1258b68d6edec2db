// Package damage реализует урон по тайлам, разрушение и регенерацию.
package damage

import (
	"math"

	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
)

var log = logging.NewLazy("damage")

// Tool инструмент игрока
type Tool struct {
	Damage      float64
	Tier        int
	MiningSpeed float64
}

// DefaultTool руки/базовая кирка
func DefaultTool() Tool {
	return Tool{Damage: 10, Tier: 0, MiningSpeed: 1}
}

// Result итог удара по одному тайлу
type Result struct {
	Destroyed bool
	ID        block.BlockID
	Tile      vec.Vec2
	Overkill  float64
}

// Stability получает уведомления об изменениях опоры
type Stability interface {
	AfterMining(tile vec.Vec2)
	Queue(tile vec.Vec2)
}

// Options параметры урона и регенерации
type Options struct {
	RegenDelay    float64 // пауза после удара, с
	RegenAmount   float64 // восстановление за шаг
	RegenInterval float64 // пауза между шагами, с
	RingFactor    float64 // множитель урона по кольцу взрыва

	Stability Stability
	Events    world.EventSink
	Metrics   *metrics.Collectors
}

// DefaultOptions значения по умолчанию
func DefaultOptions() Options {
	return Options{
		RegenDelay:    2.0,
		RegenAmount:   35,
		RegenInterval: 0.5,
		RingFactor:    0.5,
	}
}

type regenTimer struct {
	lastHit   float64
	nextRegen float64
}

// System хранит таймеры регенерации и собственные часы.
// Не потокобезопасна.
type System struct {
	manager  *world.Manager
	registry *block.Registry
	opts     Options
	events   world.EventSink

	timers map[world.LayerKey]*regenTimer
	now    float64
}

// New создаёт систему урона
func New(manager *world.Manager, registry *block.Registry, opts Options) *System {
	return &System{
		manager:  manager,
		registry: registry,
		opts:     opts,
		events:   world.SinkOrNop(opts.Events),
		timers:   make(map[world.LayerKey]*regenTimer),
	}
}

// ring кольцо 5x5 вокруг центра 3x3 (16 клеток)
var ring = func() []vec.Vec2 {
	out := make([]vec.Vec2, 0, 16)
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			if dx == -2 || dx == 2 || dy == -2 || dy == 2 {
				out = append(out, vec.Vec2{X: dx, Y: dy})
			}
		}
	}
	return out
}()

// ActualDamage урон после снижения, не меньше нуля
func ActualDamage(raw, reduction float64) float64 {
	return math.Max(0, raw-reduction)
}

func key(tile vec.Vec2, layer world.Layer) world.LayerKey {
	return world.LayerKey{Tile: world.KeyOf(world.WrapTile(tile)), Layer: layer}
}

// target возвращает непустую известную клетку и её описание
func (s *System) target(tile vec.Vec2, layer world.Layer) (block.Cell, *block.Definition, bool) {
	c, ok := s.manager.Get(tile, layer)
	if !ok || c.IsEmpty() {
		return c, nil, false
	}
	def, ok := s.registry.Get(c.ID)
	if !ok {
		return c, nil, false
	}
	return c, def, true
}

// Damage наносит урон инструментом. Пустой, неизвестный тайл или
// недостаточный уровень инструмента дают пустой результат.
func (s *System) Damage(tile vec.Vec2, raw float64, tool Tool, layer world.Layer) Result {
	_, def, ok := s.target(tile, layer)
	if !ok || tool.Tier < def.RequiredToolTier {
		return Result{}
	}
	return s.Apply(tile, ActualDamage(raw, def.DamageReduction), layer)
}

// Apply применяет уже посчитанный урон без проверок инструмента
func (s *System) Apply(tile vec.Vec2, amount float64, layer world.Layer) Result {
	if amount <= 0 {
		return Result{}
	}
	c, def, ok := s.target(tile, layer)
	if !ok {
		return Result{}
	}

	current := def.MaxHealth
	if h, ok := s.manager.Health(tile, layer); ok {
		current = h.Current
	}
	current -= amount

	if current <= 0 {
		s.Destroy(tile, layer)
		return Result{
			Destroyed: true,
			ID:        c.ID,
			Tile:      world.WrapTile(tile),
			Overkill:  -current,
		}
	}

	s.manager.SetHealth(tile, layer, current, def.MaxHealth)
	s.timers[key(tile, layer)] = &regenTimer{
		lastHit:   s.now,
		nextRegen: s.now + s.opts.RegenDelay,
	}
	s.opts.Metrics.RegenTracked(len(s.timers))
	return Result{}
}

// Splash урон по области: полный по 3x3 и ослабленный по кольцу 5x5.
// Возвращает только разрушенные тайлы.
func (s *System) Splash(center vec.Vec2, raw float64, tool Tool) []Result {
	var out []Result
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if r := s.Damage(center.Offset(dx, dy), raw, tool, world.Foreground); r.Destroyed {
				out = append(out, r)
			}
		}
	}

	for _, d := range ring {
		tile := center.Add(d)
		_, def, ok := s.target(tile, world.Foreground)
		if !ok {
			continue
		}
		amount := s.opts.RingFactor * ActualDamage(raw, def.DamageReduction)
		r := s.Apply(tile, amount, world.Foreground)
		if !r.Destroyed {
			continue
		}
		out = append(out, r)
		if bg, _ := s.manager.Get(tile, world.Background); !bg.IsEmpty() && def.AffectedByGravity && s.opts.Stability != nil {
			s.opts.Stability.Queue(tile)
		}
	}
	return out
}

// Destroy превращает тайл в воздух и снимает здоровье.
// Для переднего слоя выпадает предмет и проверяются соседи.
func (s *System) Destroy(tile vec.Vec2, layer world.Layer) {
	c, ok := s.manager.Get(tile, layer)
	if !ok || c.IsEmpty() {
		return
	}
	tile = world.WrapTile(tile)
	s.manager.Set(tile, layer, block.Cell{})
	delete(s.timers, key(tile, layer))

	s.events.TileDestroyed(tile, layer, c.ID)
	s.opts.Metrics.TileDestroyed(layer.String())
	s.opts.Metrics.RegenTracked(len(s.timers))

	if layer == world.Foreground {
		s.events.SpawnDrop(tile, c.ID)
		if s.opts.Stability != nil {
			s.opts.Stability.AfterMining(tile)
		}
	}
	log.Trace("Тайл (%d, %d) слой %s разрушен: %d", tile.X, tile.Y, layer, c.ID)
}

// Restore возвращает тайлу полное здоровье
func (s *System) Restore(tile vec.Vec2, layer world.Layer) {
	_, def, ok := s.target(tile, layer)
	if ok {
		s.manager.SetHealth(tile, layer, def.MaxHealth, def.MaxHealth)
	}
	delete(s.timers, key(tile, layer))
	s.opts.Metrics.RegenTracked(len(s.timers))
}

// TickRegeneration продвигает часы на dt и восстанавливает тайлы,
// у которых истекла пауза
func (s *System) TickRegeneration(dt float64) {
	s.now += dt
	for k, t := range s.timers {
		if s.now < t.nextRegen {
			continue
		}
		tile := k.Tile.Tile()
		_, def, ok := s.target(tile, k.Layer)
		if !ok {
			delete(s.timers, k)
			continue
		}
		h, ok := s.manager.Health(tile, k.Layer)
		if !ok {
			delete(s.timers, k)
			continue
		}
		current := h.Current + s.opts.RegenAmount
		if current >= def.MaxHealth {
			s.manager.SetHealth(tile, k.Layer, def.MaxHealth, def.MaxHealth)
			delete(s.timers, k)
			continue
		}
		s.manager.SetHealth(tile, k.Layer, current, def.MaxHealth)
		t.nextRegen = s.now + s.opts.RegenInterval
	}
	s.opts.Metrics.RegenTracked(len(s.timers))
}

// Now текущее время часов регенерации
func (s *System) Now() float64 {
	return s.now
}

// TrackedCount число тайлов, ожидающих регенерации
func (s *System) TrackedCount() int {
	return len(s.timers)
}

// NextRegen время следующего шага регенерации тайла
func (s *System) NextRegen(tile vec.Vec2, layer world.Layer) (float64, bool) {
	t, ok := s.timers[key(tile, layer)]
	if !ok {
		return 0, false
	}
	return t.nextRegen, true
}
