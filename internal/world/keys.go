package world

import "github.com/annel0/terra2d/internal/vec"

// TileKey упаковывает два 32-битных значения координат в один ключ карты
type TileKey uint64

// KeyOf возвращает ключ тайла
func KeyOf(tile vec.Vec2) TileKey {
	return TileKey(uint64(uint32(int32(tile.X)))<<32 | uint64(uint32(int32(tile.Y))))
}

// Tile распаковывает координаты
func (k TileKey) Tile() vec.Vec2 {
	return vec.Vec2{X: int(int32(uint32(k >> 32))), Y: int(int32(uint32(k)))}
}

// LayerKey ключ тайла в конкретном слое
type LayerKey struct {
	Tile  TileKey
	Layer Layer
}
