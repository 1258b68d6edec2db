package sim

import (
	"context"
	"testing"

	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/config"
	"github.com/annel0/terra2d/internal/damage"
	"github.com/annel0/terra2d/internal/storage"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	world.NopSink
	destroyed []block.BlockID
	drops     []block.BlockID
	collapsed []vec.Vec2
	landed    []vec.Vec2
}

func (r *recorder) TileDestroyed(_ vec.Vec2, _ world.Layer, id block.BlockID) {
	r.destroyed = append(r.destroyed, id)
}
func (r *recorder) SpawnDrop(_ vec.Vec2, id block.BlockID) { r.drops = append(r.drops, id) }
func (r *recorder) BlockCollapsed(t vec.Vec2, _ block.BlockID) {
	r.collapsed = append(r.collapsed, t)
}
func (r *recorder) BlockLanded(t vec.Vec2, _ block.BlockID) { r.landed = append(r.landed, t) }

// Постройки в космосе: генератор туда не пишет
const skyY = 9500

func newTestWorld(t *testing.T, events world.EventSink) *World {
	t.Helper()
	w, err := New(Options{Events: events})
	require.NoError(t, err)
	return w
}

func put(w *World, x, y int, id block.BlockID) {
	w.Chunks.Set(vec.Vec2{X: x, Y: y}, world.Foreground, w.Registry.Cell(id))
}

func fgID(w *World, x, y int) block.BlockID {
	c, _ := w.Chunks.Get(vec.Vec2{X: x, Y: y}, world.Foreground)
	return c.ID
}

func TestNew_UsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Streaming.ViewHalfWidth = 3
	w, err := New(Options{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 3, w.Chunks.Options().ViewHalfWidth)
	assert.NotEmpty(t, w.ID)
	assert.Same(t, cfg, w.Config())
	assert.Equal(t, 15, w.Registry.Count())

	minY, maxY := w.Generator.Band()
	assert.Equal(t, cfg.World.MinY, minY)
	assert.Equal(t, cfg.World.MaxY, maxY)
}

func TestNew_ExtendedBiomes(t *testing.T) {
	w := newTestWorld(t, nil)
	_, ok := w.Biomes().Definition(biome.Swamp)
	assert.False(t, ok)

	cfg := config.Default()
	cfg.World.ExtendedBiomes = true
	w, err := New(Options{Config: cfg})
	require.NoError(t, err)
	d, ok := w.Biomes().Definition(biome.Swamp)
	require.True(t, ok)
	assert.Equal(t, block.MossyStoneBlockID, d.StoneBlock)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Damage.RegenInterval = 0
	_, err := New(Options{Config: cfg})
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Blocks = "missing-blocks.yaml"
	_, err = New(Options{Config: cfg})
	assert.Error(t, err)
}

func TestWorld_MineAndRegenerate(t *testing.T) {
	rec := &recorder{}
	w := newTestWorld(t, rec)
	tile := vec.Vec2{X: 10, Y: skyY}
	put(w, tile.X, tile.Y, block.DirtBlockID)
	viewer := world.TileToWorld(tile)

	tool := damage.Tool{Damage: 70, Tier: 0, MiningSpeed: 1}
	r := w.Mine(tile, tool)
	assert.False(t, r.Destroyed)
	h, ok := w.Chunks.Health(tile, world.Foreground)
	require.True(t, ok)
	assert.Equal(t, 50.0, h.Current)

	w.Step(2.0, viewer)
	h, _ = w.Chunks.Health(tile, world.Foreground)
	assert.Equal(t, 85.0, h.Current)

	w.Step(0.5, viewer)
	_, ok = w.Chunks.Health(tile, world.Foreground)
	assert.False(t, ok, "полное здоровье снимает запись")
	assert.Zero(t, w.Damage.TrackedCount())
	assert.Equal(t, uint64(2), w.Steps())

	r = w.Mine(tile, tool)
	require.False(t, r.Destroyed)
	r = w.Mine(tile, tool)
	require.True(t, r.Destroyed)
	assert.Equal(t, block.DirtBlockID, r.ID)
	assert.Equal(t, []block.BlockID{block.DirtBlockID}, rec.destroyed)
	assert.Equal(t, []block.BlockID{block.DirtBlockID}, rec.drops)
}

func TestWorld_SandFallsAfterMining(t *testing.T) {
	rec := &recorder{}
	w := newTestWorld(t, rec)
	for x := 5; x <= 15; x++ {
		put(w, x, skyY, block.DirtBlockID)
	}
	put(w, 11, skyY+1, block.DirtBlockID)
	put(w, 11, skyY+2, block.SandBlockID)
	viewer := world.TileToWorld(vec.Vec2{X: 11, Y: skyY})

	r := w.Mine(vec.Vec2{X: 11, Y: skyY + 1}, damage.Tool{Damage: 500, MiningSpeed: 1})
	require.True(t, r.Destroyed)
	// песок без фона ставится в очередь вместе с четырьмя диагоналями
	assert.Equal(t, 5, w.Tension.QueueLength())

	w.Step(0.05, viewer)
	require.Equal(t, 1, w.Tension.FallingCount())
	assert.Equal(t, []vec.Vec2{{X: 11, Y: skyY + 2}}, rec.collapsed)

	for i := 0; i < 100 && w.Tension.FallingCount() > 0; i++ {
		w.Step(0.05, viewer)
	}
	assert.Zero(t, w.Tension.FallingCount())
	assert.Equal(t, block.SandBlockID, fgID(w, 11, skyY+1))
	assert.Equal(t, block.AirBlockID, fgID(w, 11, skyY+2))
	assert.Equal(t, []vec.Vec2{{X: 11, Y: skyY + 1}}, rec.landed)
}

func TestWorld_Explode(t *testing.T) {
	w := newTestWorld(t, nil)
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			put(w, 20+x, skyY+y, block.DirtBlockID)
		}
	}
	results := w.Explode(vec.Vec2{X: 22, Y: skyY + 2}, 150, damage.DefaultTool())
	assert.Len(t, results, 9)
	assert.Equal(t, 16, w.Damage.TrackedCount())
}

func TestWorld_StreamingWithStore(t *testing.T) {
	store, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Default()
	cfg.Streaming = config.StreamingConfig{ViewHalfWidth: 2, ViewHalfHeight: 2, UnloadMargin: 1}
	w, err := New(Options{Config: cfg, Store: store})
	require.NoError(t, err)

	here := vec.Vec2{X: 10, Y: skyY}
	far := vec.Vec2{X: 10 + world.WorldWidth/2, Y: skyY}

	w.Step(0.1, world.TileToWorld(here))
	put(w, here.X, here.Y, block.GoldOreBlockID)
	assert.Empty(t, w.Chunks.GenerationQueue(), "новые чанки отмечены")
	assert.True(t, w.Chunks.Chunk(world.TileToChunk(here)).Generated)

	w.Step(0.1, world.TileToWorld(far))
	assert.False(t, w.Chunks.HasChunk(world.TileToChunk(here)))
	n, err := store.Count()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	w.Step(0.1, world.TileToWorld(here))
	assert.Equal(t, block.GoldOreBlockID, fgID(w, here.X, here.Y))
}

func TestWorld_GenerateAndSpawn(t *testing.T) {
	cfg := config.Default()
	cfg.World.Seed = 12345
	cfg.World.MinY = world.SeaLevel - 64
	cfg.World.MaxY = world.SeaLevel + 280
	w, err := New(Options{Config: cfg})
	require.NoError(t, err)

	stats, err := w.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), stats.Seed)
	assert.True(t, w.Biomes().Generated())
	assert.Empty(t, w.Chunks.GenerationQueue())

	checked := 0
	for x := 0; x < world.WorldWidth; x += 37 {
		top := w.Generator.Height(x)
		spawn := world.WorldToTile(w.SpawnPoint(x))
		assert.Equal(t, top+1, spawn.Y)
		if w.Generator.Protected(spawn) || spawn.Y >= cfg.World.MaxY {
			continue
		}
		assert.Equal(t, block.AirBlockID, fgID(w, spawn.X, spawn.Y), "x=%d", x)
		checked++
	}
	assert.Greater(t, checked, 0)
}
