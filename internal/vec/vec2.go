package vec

// Vec2 представляет целочисленные 2D координаты (тайлы, чанки, локальные позиции)
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Offset сдвигает вектор на dx, dy
func (v Vec2) Offset(dx, dy int) Vec2 {
	return Vec2{X: v.X + dx, Y: v.Y + dy}
}

// ToChunkCoords преобразует координаты тайла в координаты чанка.
// Сдвиг вправо даёт округление вниз и для отрицательных значений.
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 5, Y: v.Y >> 5} // Деление на 32
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0x1F, Y: v.Y & 0x1F} // Модуль 32
}
