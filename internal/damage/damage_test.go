package damage

import (
	"testing"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stabilityStub struct {
	mined  []vec.Vec2
	queued []vec.Vec2
}

func (s *stabilityStub) AfterMining(tile vec.Vec2) { s.mined = append(s.mined, tile) }
func (s *stabilityStub) Queue(tile vec.Vec2)       { s.queued = append(s.queued, tile) }

type dropRecorder struct {
	world.NopSink
	drops     int
	destroyed int
}

func (d *dropRecorder) SpawnDrop(vec.Vec2, block.BlockID) { d.drops++ }
func (d *dropRecorder) TileDestroyed(vec.Vec2, world.Layer, block.BlockID) {
	d.destroyed++
}

type fixture struct {
	sys       *System
	manager   *world.Manager
	registry  *block.Registry
	stability *stabilityStub
	events    *dropRecorder
}

func newFixture() *fixture {
	f := &fixture{
		manager:   world.NewManager(world.DefaultManagerOptions()),
		registry:  block.NewDefaultRegistry(),
		stability: &stabilityStub{},
		events:    &dropRecorder{},
	}
	opts := DefaultOptions()
	opts.Stability = f.stability
	opts.Events = f.events
	f.sys = New(f.manager, f.registry, opts)
	return f
}

func (f *fixture) put(tile vec.Vec2, layer world.Layer, id block.BlockID) {
	f.manager.Set(tile, layer, f.registry.Cell(id))
}

func (f *fixture) health(t *testing.T, tile vec.Vec2) float64 {
	t.Helper()
	h, ok := f.manager.Health(tile, world.Foreground)
	require.True(t, ok, "ожидалась запись здоровья")
	return h.Current
}

func TestActualDamage(t *testing.T) {
	assert.Equal(t, 0.0, ActualDamage(50, 80))
	assert.Equal(t, 10.0, ActualDamage(90, 80))
	assert.Equal(t, 0.0, ActualDamage(80, 80))
}

func TestDamage_ReductionFloor(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)

	r := f.sys.Damage(tile, 50, DefaultTool(), world.Foreground)
	assert.Equal(t, Result{}, r)
	_, ok := f.manager.Health(tile, world.Foreground)
	assert.False(t, ok, "нулевой урон не создаёт запись")
	assert.Zero(t, f.sys.TrackedCount())
}

func TestDamage_TenHitsBreakStone(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)

	for i := 1; i <= 9; i++ {
		r := f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)
		require.False(t, r.Destroyed, "удар %d", i)
		assert.InDelta(t, 100-10*float64(i), f.health(t, tile), 1e-9)
	}
	c, _ := f.manager.Get(tile, world.Foreground)
	assert.True(t, c.Has(block.FlagDamaged))

	r := f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)
	assert.True(t, r.Destroyed)
	assert.Equal(t, block.StoneBlockID, r.ID)
	assert.Equal(t, tile, r.Tile)
	assert.InDelta(t, 0, r.Overkill, 1e-9)

	c, _ = f.manager.Get(tile, world.Foreground)
	assert.True(t, c.IsEmpty())
	_, ok := f.manager.Health(tile, world.Foreground)
	assert.False(t, ok)
	assert.Zero(t, f.sys.TrackedCount())
	assert.Equal(t, 1, f.events.drops)
	assert.Equal(t, []vec.Vec2{tile}, f.stability.mined)
}

func TestDamage_Overkill(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.DirtBlockID)

	r := f.sys.Damage(tile, 150, DefaultTool(), world.Foreground)
	assert.True(t, r.Destroyed)
	assert.InDelta(t, 30, r.Overkill, 1e-9)
}

func TestDamage_ToolTierAndUnknown(t *testing.T) {
	f := newFixture()
	brick := vec.Vec2{X: 5, Y: 100}
	f.put(brick, world.Foreground, block.BrickBlockID)

	assert.Equal(t, Result{}, f.sys.Damage(brick, 1000, DefaultTool(), world.Foreground))
	c, _ := f.manager.Get(brick, world.Foreground)
	assert.Equal(t, block.BrickBlockID, c.ID)

	r := f.sys.Damage(brick, 1000, Tool{Damage: 1000, Tier: 1, MiningSpeed: 1}, world.Foreground)
	assert.True(t, r.Destroyed)

	unknown := vec.Vec2{X: 6, Y: 100}
	f.manager.Set(unknown, world.Foreground, block.Cell{ID: 999})
	assert.Equal(t, Result{}, f.sys.Damage(unknown, 1000, DefaultTool(), world.Foreground))
	assert.Equal(t, Result{}, f.sys.Apply(unknown, 1000, world.Foreground))

	assert.Equal(t, Result{}, f.sys.Damage(vec.Vec2{X: 7, Y: 100}, 1000, DefaultTool(), world.Foreground), "воздух")
}

func TestDamage_BackgroundLayer(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.DirtBlockID)
	f.put(tile, world.Background, block.DirtBlockID)

	f.sys.Damage(tile, 50, DefaultTool(), world.Background)
	_, fgDamaged := f.manager.Health(tile, world.Foreground)
	bg, bgDamaged := f.manager.Health(tile, world.Background)
	assert.False(t, fgDamaged, "здоровье хранится по слоям")
	require.True(t, bgDamaged)
	assert.InDelta(t, 70, bg.Current, 1e-9)

	r := f.sys.Damage(tile, 200, DefaultTool(), world.Background)
	assert.True(t, r.Destroyed)
	assert.Zero(t, f.events.drops, "задний слой не роняет предметы")
	assert.Empty(t, f.stability.mined)
	assert.Equal(t, 1, f.events.destroyed)
}

func TestRegeneration_Timing(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)

	for i := 0; i < 9; i++ {
		f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)
	}
	require.InDelta(t, 10, f.health(t, tile), 1e-9)
	next, ok := f.sys.NextRegen(tile, world.Foreground)
	require.True(t, ok)
	assert.Equal(t, 2.0, next)

	f.sys.TickRegeneration(1.5)
	assert.InDelta(t, 10, f.health(t, tile), 1e-9, "пауза после удара")

	f.sys.TickRegeneration(0.5)
	assert.InDelta(t, 45, f.health(t, tile), 1e-9)
	next, _ = f.sys.NextRegen(tile, world.Foreground)
	assert.Equal(t, 2.5, next)

	f.sys.TickRegeneration(0.25)
	assert.InDelta(t, 45, f.health(t, tile), 1e-9)
	f.sys.TickRegeneration(0.25)
	assert.InDelta(t, 80, f.health(t, tile), 1e-9)

	f.sys.TickRegeneration(0.5)
	_, ok = f.manager.Health(tile, world.Foreground)
	assert.False(t, ok, "полное здоровье удаляет запись")
	assert.Zero(t, f.sys.TrackedCount())
	c, _ := f.manager.Get(tile, world.Foreground)
	assert.False(t, c.Has(block.FlagDamaged))
	assert.Equal(t, 3.0, f.sys.Now())
}

func TestRegeneration_HitResetsDelay(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)

	f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)
	f.sys.TickRegeneration(1.5)
	f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)

	next, ok := f.sys.NextRegen(tile, world.Foreground)
	require.True(t, ok)
	assert.Equal(t, 3.5, next)

	f.sys.TickRegeneration(1.5)
	assert.InDelta(t, 80, f.health(t, tile), 1e-9)
}

func TestRegeneration_DropsStaleTrackers(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)
	f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)
	require.Equal(t, 1, f.sys.TrackedCount())

	// тайл убран в обход системы урона
	f.manager.Set(tile, world.Foreground, block.Cell{})
	f.sys.TickRegeneration(2)
	assert.Zero(t, f.sys.TrackedCount())
}

func TestRestore(t *testing.T) {
	f := newFixture()
	tile := vec.Vec2{X: 5, Y: 100}
	f.put(tile, world.Foreground, block.StoneBlockID)
	f.sys.Damage(tile, 90, DefaultTool(), world.Foreground)

	f.sys.Restore(tile, world.Foreground)
	_, ok := f.manager.Health(tile, world.Foreground)
	assert.False(t, ok)
	assert.Zero(t, f.sys.TrackedCount())
	c, _ := f.manager.Get(tile, world.Foreground)
	assert.Equal(t, block.StoneBlockID, c.ID)
	assert.False(t, c.Has(block.FlagDamaged))
}

func TestSplash_CenterAndRing(t *testing.T) {
	f := newFixture()
	center := vec.Vec2{X: 20, Y: 200}
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			f.put(center.Offset(dx, dy), world.Foreground, block.DirtBlockID)
		}
	}

	results := f.sys.Splash(center, 150, DefaultTool())
	assert.Len(t, results, 9)
	for _, r := range results {
		assert.True(t, r.Destroyed)
		assert.LessOrEqual(t, abs(r.Tile.X-center.X), 1)
		assert.LessOrEqual(t, abs(r.Tile.Y-center.Y), 1)
	}

	// кольцо получает половину урона после снижения: 0.5 * 130
	for _, tile := range []vec.Vec2{center.Offset(2, 0), center.Offset(-2, 2), center.Offset(2, -2), center.Offset(0, -2)} {
		assert.InDelta(t, 35, f.health(t, tile), 1e-9)
	}
	_, ok := f.manager.Health(center.Offset(3, 0), world.Foreground)
	assert.False(t, ok, "за кольцом урона нет")
	assert.Equal(t, 16, f.sys.TrackedCount())
}

func TestSplash_RingCollapseQueue(t *testing.T) {
	f := newFixture()
	center := vec.Vec2{X: 20, Y: 200}
	for _, d := range ring {
		tile := center.Add(d)
		f.put(tile, world.Foreground, block.SandBlockID)
		f.put(tile, world.Background, block.StoneBlockID)
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			f.put(center.Offset(dx, dy), world.Foreground, block.DirtBlockID)
		}
	}

	results := f.sys.Splash(center, 250, DefaultTool())
	assert.Len(t, results, 25)
	assert.Len(t, f.stability.queued, 16)
	assert.Len(t, f.stability.mined, 25)
	assert.Equal(t, 25, f.events.drops)
}

func TestSplash_StoneChip(t *testing.T) {
	f := newFixture()
	center := vec.Vec2{X: 20, Y: 200}
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			f.put(center.Offset(dx, dy), world.Foreground, block.StoneBlockID)
		}
	}

	results := f.sys.Splash(center, 100, DefaultTool())
	assert.Empty(t, results)
	assert.InDelta(t, 80, f.health(t, center), 1e-9)
	assert.InDelta(t, 90, f.health(t, center.Offset(2, 2)), 1e-9)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
