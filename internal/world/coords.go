package world

import "github.com/annel0/terra2d/internal/vec"

// Размеры мира в тайлах. 0 - коренная порода, рост Y - вверх к космосу.
const (
	WorldWidth   = 1600 // ширина, по X мир замкнут
	WorldHeight  = 10000
	SeaLevel     = 8000
	BedrockLevel = 0

	ChunkSize        = 32
	ChunkArea        = ChunkSize * ChunkSize
	ChunksHorizontal = WorldWidth / ChunkSize                    // 50
	ChunksVertical   = (WorldHeight + ChunkSize - 1) / ChunkSize // 313

	TileSizePixels = 16
)

// Физика падающих блоков (пиксели, секунды)
const (
	Gravity       = 980.0
	MaxFallSpeed  = 1000.0
	BreakVelocity = 500.0
)

// Жидкости
const (
	MinLiquidLevel    = 0.01
	MaxLiquidLevel    = 1.0
	MaxLiquidPressure = 2.0
	LiquidFlowRate    = 0.5
)

// Освещение
const (
	MaxLightLevel           uint8 = 255
	MinLightLevel           uint8 = 0
	AmbientLightUnderground uint8 = 20
	AmbientLightSurface     uint8 = 100
)

// WorldToTile переводит пиксельную позицию в тайл
func WorldToTile(pos vec.Vec2Float) vec.Vec2 {
	return pos.Scale(1.0 / TileSizePixels).Floor()
}

// TileToWorld возвращает пиксельный центр тайла
func TileToWorld(tile vec.Vec2) vec.Vec2Float {
	half := vec.Vec2Float{X: TileSizePixels / 2.0, Y: TileSizePixels / 2.0}
	return vec.FromVec2(tile).Scale(TileSizePixels).Add(half)
}

// TileToChunk возвращает координаты чанка (без замыкания по X)
func TileToChunk(tile vec.Vec2) vec.Vec2 {
	return tile.ToChunkCoords()
}

// TileToLocal возвращает позицию тайла внутри чанка
func TileToLocal(tile vec.Vec2) vec.Vec2 {
	return tile.LocalInChunk()
}

// ChunkLocalToTile собирает координаты тайла из чанка и локальной позиции
func ChunkLocalToTile(chunk, local vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: chunk.X*ChunkSize + local.X, Y: chunk.Y*ChunkSize + local.Y}
}

// WrapX замыкает X тайла по ширине мира
func WrapX(x int) int {
	return mod(x, WorldWidth)
}

// WrapTile замыкает тайл по X, Y не меняется
func WrapTile(tile vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: WrapX(tile.X), Y: tile.Y}
}

// WrapChunk замыкает координаты чанка по X
func WrapChunk(chunk vec.Vec2) vec.Vec2 {
	return vec.Vec2{X: mod(chunk.X, ChunksHorizontal), Y: chunk.Y}
}

// ValidY проверяет, что Y тайла внутри мира
func ValidY(y int) bool {
	return y >= 0 && y < WorldHeight
}

// ValidChunkY проверяет, что Y чанка внутри мира
func ValidChunkY(cy int) bool {
	return cy >= 0 && cy < ChunksVertical
}

// AbsoluteToDisplayY: уровень моря становится нулём
func AbsoluteToDisplayY(y int) int {
	return y - SeaLevel
}

// DisplayToAbsoluteY обратное преобразование
func DisplayToAbsoluteY(y int) int {
	return y + SeaLevel
}

// WrappedDelta возвращает кратчайшее (по модулю) расстояние между a и b на кольце длины period
func WrappedDelta(a, b, period int) int {
	d := mod(a-b, period)
	if period-d < d {
		return period - d
	}
	return d
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
