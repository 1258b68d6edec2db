package world

import (
	"testing"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestCoords_Constants(t *testing.T) {
	assert.Equal(t, 50, ChunksHorizontal)
	assert.Equal(t, 313, ChunksVertical)
}

func TestCoords_Conversions(t *testing.T) {
	assert.Equal(t, vec.Vec2{X: 0, Y: 0}, WorldToTile(vec.Vec2Float{X: 15.9, Y: 0}))
	assert.Equal(t, vec.Vec2{X: -1, Y: 2}, WorldToTile(vec.Vec2Float{X: -0.1, Y: 32}))
	assert.Equal(t, vec.Vec2Float{X: 24, Y: 8}, TileToWorld(vec.Vec2{X: 1, Y: 0}))

	tile := vec.Vec2{X: -1, Y: 65}
	assert.Equal(t, vec.Vec2{X: -1, Y: 2}, TileToChunk(tile))
	assert.Equal(t, vec.Vec2{X: 31, Y: 1}, TileToLocal(tile))
	assert.Equal(t, tile, ChunkLocalToTile(TileToChunk(tile), TileToLocal(tile)))
}

func TestCoords_Wrap(t *testing.T) {
	assert.Equal(t, 0, WrapX(1600))
	assert.Equal(t, 1599, WrapX(-1))
	assert.Equal(t, 5, WrapX(5-3*1600))
	assert.Equal(t, vec.Vec2{X: 49, Y: 3}, WrapChunk(vec.Vec2{X: -1, Y: 3}))

	assert.True(t, ValidY(0))
	assert.True(t, ValidY(WorldHeight-1))
	assert.False(t, ValidY(-1))
	assert.False(t, ValidY(WorldHeight))
	assert.False(t, ValidChunkY(ChunksVertical))

	assert.Equal(t, 1, WrappedDelta(0, 49, 50))
	assert.Equal(t, 25, WrappedDelta(0, 25, 50))
	assert.Equal(t, 3, WrappedDelta(10, 7, 50))
}

func TestCoords_DisplayY(t *testing.T) {
	assert.Equal(t, 0, AbsoluteToDisplayY(SeaLevel))
	assert.Equal(t, -8000, AbsoluteToDisplayY(0))
	assert.Equal(t, 8100, DisplayToAbsoluteY(100))
}

func TestLayerAt(t *testing.T) {
	assert.Equal(t, LayerSpace, LayerAt(9500))
	assert.Equal(t, LayerSurface, LayerAt(SeaLevel))
	assert.Equal(t, LayerSurface, LayerAt(SurfaceBottom), "пояс поверхности внутри неба")
	assert.Equal(t, LayerSurface, LayerAt(SurfaceTop))
	assert.Equal(t, LayerSky, LayerAt(SurfaceTop+1))
	assert.Equal(t, LayerSky, LayerAt(SurfaceBottom-1))
	assert.Equal(t, LayerSky, LayerAt(8500))
	assert.Equal(t, LayerSky, LayerAt(7500))
	assert.Equal(t, LayerUnderground, LayerAt(5000))
	assert.Equal(t, LayerUnderworld, LayerAt(2500))
	assert.Equal(t, LayerDeepWorld, LayerAt(10))
	assert.Equal(t, "surface", LayerSurface.String())
}

func TestTileKey_RoundTrip(t *testing.T) {
	for _, tile := range []vec.Vec2{{X: 0, Y: 0}, {X: -5, Y: 7}, {X: 1599, Y: 9999}, {X: 3, Y: -1}} {
		assert.Equal(t, tile, KeyOf(tile).Tile())
	}
	assert.NotEqual(t, KeyOf(vec.Vec2{X: 1, Y: 2}), KeyOf(vec.Vec2{X: 2, Y: 1}))
}
