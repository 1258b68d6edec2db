package tension

import (
	"math/rand"
	"testing"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRoll float64

func (f fixedRoll) Float64() float64 { return float64(f) }

type recorder struct {
	world.NopSink
	drops     []vec.Vec2
	landed    []vec.Vec2
	collapsed int
}

func (r *recorder) SpawnDrop(tile vec.Vec2, _ block.BlockID)  { r.drops = append(r.drops, tile) }
func (r *recorder) BlockLanded(tile vec.Vec2, _ block.BlockID) { r.landed = append(r.landed, tile) }
func (r *recorder) BlockCollapsed(vec.Vec2, block.BlockID)     { r.collapsed++ }

func setup(roll Roller) (*System, *world.Manager, *block.Registry, *recorder) {
	reg := block.NewDefaultRegistry()
	m := world.NewManager(world.DefaultManagerOptions())
	rec := &recorder{}
	s := New(m, reg, Options{CollapseChance: DefaultCollapseChance, Rand: roll, Events: rec})
	return s, m, reg, rec
}

func put(m *world.Manager, reg *block.Registry, tile vec.Vec2, layer world.Layer, id block.BlockID) {
	m.Set(tile, layer, reg.Cell(id))
}

// runUntilSettled крутит физику, пока все блоки не завершат падение
func runUntilSettled(t *testing.T, s *System, dt float64) {
	t.Helper()
	for i := 0; i < 10000 && s.FallingCount() > 0; i++ {
		s.Tick(dt)
	}
	require.Zero(t, s.FallingCount(), "блоки должны завершить падение")
}

func TestIsStable_NonGravityAlwaysStable(t *testing.T) {
	s, m, reg, _ := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}

	assert.True(t, s.IsStable(tile), "воздух устойчив")

	put(m, reg, tile, world.Foreground, block.StoneBlockID)
	assert.True(t, s.IsStable(tile), "камень не подвержен гравитации")

	m.Set(tile, world.Foreground, block.Cell{ID: 999})
	assert.True(t, s.IsStable(tile), "неизвестный блок устойчив")
}

func TestIsStable_GravityRules(t *testing.T) {
	s, m, reg, _ := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}
	put(m, reg, tile, world.Foreground, block.SandBlockID)

	// без фона песок неустойчив даже в окружении камня
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx != 0 || dy != 0 {
				put(m, reg, tile.Offset(dx, dy), world.Foreground, block.StoneBlockID)
			}
		}
	}
	assert.False(t, s.IsStable(tile))

	put(m, reg, tile, world.Background, block.StoneBlockID)
	assert.True(t, s.IsStable(tile))

	// оставляем одного твёрдого соседа: порог песка 2
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && !(dx == 0 && dy == -1) {
				m.Set(tile.Offset(dx, dy), world.Foreground, block.Cell{})
			}
		}
	}
	assert.False(t, s.IsStable(tile))

	// жидкость опорой не считается
	m.Set(tile.Offset(1, 0), world.Foreground, block.Cell{ID: block.StoneBlockID, Flags: block.FlagLiquid})
	assert.False(t, s.IsStable(tile))

	put(m, reg, tile.Offset(-1, 0), world.Foreground, block.SandBlockID)
	assert.True(t, s.IsStable(tile), "гравитационный сосед тоже опора")
}

func TestFallingKinematics(t *testing.T) {
	s, m, reg, _ := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 5000}
	put(m, reg, tile, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(tile))

	start := s.Falling()[0].Position
	for i := 0; i < 50; i++ {
		s.Tick(0.01)
	}
	f := s.Falling()
	require.Len(t, f, 1)
	assert.InDelta(t, world.Gravity*0.5, f[0].Velocity.Y, 1e-6)
	assert.Less(t, f[0].Position.Y, start.Y, "падение идёт к меньшему Y")
	assert.Equal(t, start.X, f[0].Position.X)

	for i := 0; i < 200; i++ {
		s.Tick(0.01)
	}
	f = s.Falling()
	require.Len(t, f, 1)
	assert.Equal(t, world.MaxFallSpeed, f[0].Velocity.Y, "скорость ограничена")
}

func TestCollapse(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}

	assert.False(t, s.Collapse(tile), "воздух не падает")
	put(m, reg, tile, world.Foreground, block.StoneBlockID)
	assert.False(t, s.Collapse(tile), "камень не падает")
	assert.Zero(t, s.QueueLength())

	put(m, reg, tile, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(tile))

	got, _ := m.Get(tile, world.Foreground)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 1, s.FallingCount())
	assert.Equal(t, 8, s.QueueLength())
	assert.Equal(t, 1, rec.collapsed)

	f := s.Falling()[0]
	assert.Equal(t, world.TileToWorld(tile), f.Position)
	assert.Equal(t, block.SandBlockID, f.ID)
	assert.Zero(t, f.Velocity.Y)
}

func TestLanding_PlacesAboveSupport(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	floor := vec.Vec2{X: 10, Y: 100}
	put(m, reg, floor, world.Foreground, block.StoneBlockID)

	top := floor.Offset(0, 30)
	put(m, reg, top, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(top))
	runUntilSettled(t, s, 0.01)

	landed, _ := m.Get(floor.Offset(0, 1), world.Foreground)
	assert.Equal(t, block.SandBlockID, landed.ID)
	assert.Equal(t, []vec.Vec2{floor.Offset(0, 1)}, rec.landed)
	assert.Empty(t, rec.drops)
}

func TestLanding_ImmediateWhenSupported(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}
	put(m, reg, tile.Offset(0, -1), world.Foreground, block.StoneBlockID)
	put(m, reg, tile, world.Foreground, block.SandBlockID)

	require.True(t, s.Collapse(tile))
	s.Tick(1.0 / 60)

	assert.Zero(t, s.FallingCount())
	got, _ := m.Get(tile, world.Foreground)
	assert.Equal(t, block.SandBlockID, got.ID)
	assert.Len(t, rec.landed, 1)
}

func TestLanding_BreaksOnFastImpact(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	glass := block.NewDefinition(100, "glass")
	glass.AffectedByGravity = true
	glass.BreaksOnFall = true
	reg.Register(glass)

	floor := vec.Vec2{X: 10, Y: 100}
	put(m, reg, floor, world.Foreground, block.StoneBlockID)
	top := floor.Offset(0, 30)
	put(m, reg, top, world.Foreground, 100)

	require.True(t, s.Collapse(top))
	runUntilSettled(t, s, 0.01)

	got, _ := m.Get(floor.Offset(0, 1), world.Foreground)
	assert.True(t, got.IsEmpty(), "блок разбился")
	assert.Equal(t, []vec.Vec2{floor.Offset(0, 1)}, rec.drops)
	assert.Empty(t, rec.landed)
}

func TestLanding_OccupiedOrUnknownDrops(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}
	put(m, reg, tile.Offset(0, -1), world.Foreground, block.StoneBlockID)
	put(m, reg, tile, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(tile))

	// тайл заняли, пока блок висел
	put(m, reg, tile, world.Foreground, block.DirtBlockID)
	s.Tick(1.0 / 60)
	assert.Len(t, rec.drops, 1)

	put(m, reg, tile, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(tile))
	reg.Clear()
	s.Tick(1.0 / 60)
	assert.Len(t, rec.drops, 2, "неизвестный тип не ставится")
	got, _ := m.Get(tile, world.Foreground)
	assert.True(t, got.IsEmpty())
}

func TestFallingBelowWorldIsLost(t *testing.T) {
	s, m, reg, rec := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 2}
	put(m, reg, tile, world.Foreground, block.SandBlockID)
	require.True(t, s.Collapse(tile))

	runUntilSettled(t, s, 0.01)
	assert.Empty(t, rec.drops)
	assert.Empty(t, rec.landed)
}

func TestDrain_DefersNewChecks(t *testing.T) {
	s, m, reg, _ := setup(fixedRoll(0))
	low := vec.Vec2{X: 10, Y: 101}
	high := low.Offset(0, 1)
	put(m, reg, low, world.Foreground, block.SandBlockID)
	put(m, reg, high, world.Foreground, block.SandBlockID)

	s.Queue(low)
	s.Drain()

	assert.Equal(t, 1, s.FallingCount())
	assert.Equal(t, 8, s.QueueLength(), "соседи ждут следующего прохода")
	got, _ := m.Get(high, world.Foreground)
	assert.Equal(t, block.SandBlockID, got.ID)

	s.Drain()
	got, _ = m.Get(high, world.Foreground)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, 2, s.FallingCount())
}

func TestDrain_StableBlocksStay(t *testing.T) {
	s, m, reg, _ := setup(fixedRoll(0))
	tile := vec.Vec2{X: 10, Y: 100}
	put(m, reg, tile, world.Foreground, block.GravelBlockID)
	put(m, reg, tile, world.Background, block.StoneBlockID)
	put(m, reg, tile.Offset(0, -1), world.Foreground, block.StoneBlockID)

	s.Queue(tile)
	s.Drain()
	assert.Zero(t, s.FallingCount())
	assert.Zero(t, s.QueueLength())
}

func TestAfterMining(t *testing.T) {
	mined := vec.Vec2{X: 10, Y: 100}
	up := mined.Offset(0, 1)
	right := mined.Offset(1, 0)

	prepare := func(roll Roller) (*System, *world.Manager) {
		s, m, reg, _ := setup(roll)
		put(m, reg, up, world.Foreground, block.SandBlockID)
		put(m, reg, up, world.Background, block.StoneBlockID)
		put(m, reg, right, world.Foreground, block.SandBlockID) // без фона
		return s, m
	}

	t.Run("low roll collapses backed neighbour", func(t *testing.T) {
		s, m := prepare(fixedRoll(0.1))
		s.AfterMining(mined)
		assert.Equal(t, 1, s.FallingCount())
		got, _ := m.Get(up, world.Foreground)
		assert.True(t, got.IsEmpty())
		// right + 4 диагонали + 8 соседей обрушенного
		assert.Equal(t, 13, s.QueueLength())
	})

	t.Run("high roll queues", func(t *testing.T) {
		s, _ := prepare(fixedRoll(0.9))
		s.AfterMining(mined)
		assert.Zero(t, s.FallingCount())
		assert.Equal(t, 6, s.QueueLength())
	})

	t.Run("non gravity neighbours ignored", func(t *testing.T) {
		s, m, reg, _ := setup(fixedRoll(0))
		put(m, reg, up, world.Foreground, block.StoneBlockID)
		s.AfterMining(mined)
		assert.Equal(t, 4, s.QueueLength(), "только диагонали")
	})
}

func TestAfterMining_CollapseFrequency(t *testing.T) {
	s, m, reg, _ := setup(rand.New(rand.NewSource(42)))
	mined := vec.Vec2{X: 10, Y: 100}
	up := mined.Offset(0, 1)
	put(m, reg, up, world.Background, block.StoneBlockID)

	const trials = 10000
	collapsed := 0
	for i := 0; i < trials; i++ {
		put(m, reg, up, world.Foreground, block.SandBlockID)
		s.AfterMining(mined)
		if s.FallingCount() > 0 {
			collapsed++
		}
		s.ClearFalling()
		s.queue = nil
	}
	assert.InDelta(t, 0.3, float64(collapsed)/trials, 0.03)
}
