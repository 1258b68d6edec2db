package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
)

// Source детерминированный источник шума со значениями в [-1, 1].
// offset разводит независимые каналы одного источника.
type Source interface {
	Sample1D(x, offset float32) float32
	Sample2D(x, y, offset float32) float32
}

// Kind тип источника в конфигурации
const (
	KindHash   = "hash"
	KindPerlin = "perlin"
)

// New создаёт источник по имени, неизвестное имя - хэш-шум
func New(kind string, seed int64) Source {
	if kind == KindPerlin {
		return NewPerlin(seed)
	}
	return NewHash(seed)
}

// Hash псевдослучайная хэш-функция sin(x)*43758.5453.
// Промежуточные значения хранятся в float32, иначе последовательности
// не совпадут с уже сгенерированными мирами. Явные преобразования
// запрещают компилятору сливать умножение со сложением (FMA).
type Hash struct {
	seed float32
}

// NewHash создаёт хэш-шум; сид прибавляется к аргументу синуса
func NewHash(seed int64) *Hash {
	return &Hash{seed: float32(seed)}
}

// Sample1D frac(sin(x*12.9898 + offset + seed) * 43758.5453) * 2 - 1
func (h *Hash) Sample1D(x, offset float32) float32 {
	return hash(float32(x*12.9898) + offset + h.seed)
}

// Sample2D то же, что Sample1D, с добавкой y*78.233
func (h *Hash) Sample2D(x, y, offset float32) float32 {
	return hash(float32(x*12.9898) + float32(y*78.233) + offset + h.seed)
}

func hash(arg float32) float32 {
	n := float32(math.Sin(float64(arg)) * float64(float32(43758.5453)))
	n -= float32(math.Floor(float64(n)))
	return n*2 - 1
}

// Perlin гладкий шум на базе go-perlin
type Perlin struct {
	p *perlin.Perlin
}

// NewPerlin создаёт шум Перлина: alpha=2, beta=2, 3 октавы
func NewPerlin(seed int64) *Perlin {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Perlin{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Смещения уводят выборку с узлов решётки, где градиентный шум равен нулю
const (
	latticeShiftX = 0.31
	latticeShiftY = 0.47
	offsetScale   = 0.618
	offsetShift   = 0.27
)

func (p *Perlin) Sample1D(x, offset float32) float32 {
	v := p.p.Noise2D(float64(x)+latticeShiftX, float64(offset)*offsetScale+offsetShift)
	return clamp(v)
}

func (p *Perlin) Sample2D(x, y, offset float32) float32 {
	v := p.p.Noise3D(float64(x)+latticeShiftX, float64(y)+latticeShiftY, float64(offset)*offsetScale+offsetShift)
	return clamp(v)
}

func clamp(v float64) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return float32(v)
}

// Unit переводит значение шума из [-1, 1] в [0, 1]
func Unit(v float32) float32 {
	return (v + 1) * 0.5
}
