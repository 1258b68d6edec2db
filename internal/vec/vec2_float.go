package vec

import "math"

// Vec2Float пиксельная позиция или скорость
type Vec2Float struct {
	X, Y float64
}

// FromVec2 переводит целые координаты в вещественные
func FromVec2(v Vec2) Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}

// Floor округляет вниз, в том числе для отрицательных координат
func (v Vec2Float) Floor() Vec2 {
	return Vec2{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y))}
}

// Scale умножает обе компоненты на k
func (v Vec2Float) Scale(k float64) Vec2Float {
	return Vec2Float{X: v.X * k, Y: v.Y * k}
}

// Add покомпонентная сумма
func (v Vec2Float) Add(other Vec2Float) Vec2Float {
	return Vec2Float{X: v.X + other.X, Y: v.Y + other.Y}
}
