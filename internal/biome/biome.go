// Package biome назначает биомы столбцам мира по климату.
package biome

import (
	"context"
	"math"

	"github.com/annel0/terra2d/internal/noise"
	"github.com/annel0/terra2d/internal/world"
	"golang.org/x/sync/errgroup"
)

// Fallback биом по умолчанию
const Fallback = Plains

const (
	climateScale      = 0.001
	temperatureOffset = 1000
	humidityOffset    = 2000
	columnBatch       = 200
)

// System каталог биомов и карта биомов по X
type System struct {
	defs   []Definition
	byType map[Type]int
	noise  noise.Source

	columns []Type
}

// New создаёт систему. Пустой каталог заменяется стандартным.
// Климат зависит только от src: генератор передаёт источник без сида,
// и карта биомов одинакова для всех миров.
func New(src noise.Source, catalog []Definition) *System {
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}
	s := &System{
		defs:   catalog,
		byType: make(map[Type]int, len(catalog)),
		noise:  src,
	}
	for i := range s.defs {
		s.byType[s.defs[i].Type] = i
	}
	return s
}

// Temperature климатическая температура столбца в [0, 1]
func (s *System) Temperature(x int) float32 {
	return (s.noise.Sample1D(float32(x)*climateScale, temperatureOffset) + 1) * 0.5
}

// Humidity влажность столбца в [0, 1]
func (s *System) Humidity(x int) float32 {
	return (s.noise.Sample1D(float32(x)*climateScale, humidityOffset) + 1) * 0.5
}

// Select выбирает ближайший по климату биом среди допускающих высоту
func (s *System) Select(temperature, humidity float32, height int) Type {
	best := Fallback
	bestDist := float32(math.MaxFloat32)
	for i := range s.defs {
		d := &s.defs[i]
		if !d.AllowsHeight(height) {
			continue
		}
		dt := temperature - d.Temperature
		dh := humidity - d.Humidity
		// расстояние в float32, как в уже сгенерированных мирах
		sq := float32(dt*dt) + float32(dh*dh)
		if dist := float32(math.Sqrt(float64(sq))); dist < bestDist {
			bestDist = dist
			best = d.Type
		}
	}
	return best
}

// GenerateMap назначает биом каждому столбцу на уровне моря.
// Столбцы считаются параллельно пачками.
func (s *System) GenerateMap(ctx context.Context) error {
	columns := make([]Type, world.WorldWidth)
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < world.WorldWidth; start += columnBatch {
		start := start // per-iteration copy (go 1.21 loop semantics)
		end := min(start+columnBatch, world.WorldWidth)
		g.Go(func() error {
			for x := start; x < end; x++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				columns[x] = s.Select(s.Temperature(x), s.Humidity(x), world.SeaLevel)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.columns = columns
	return nil
}

// Generated true после успешного GenerateMap
func (s *System) Generated() bool {
	return s.columns != nil
}

// BiomeAt биом столбца; X замыкается, без карты - Fallback
func (s *System) BiomeAt(x int) Type {
	if s.columns == nil {
		return Fallback
	}
	return s.columns[world.WrapX(x)]
}

// Definition описание биома по типу
func (s *System) Definition(t Type) (*Definition, bool) {
	i, ok := s.byType[t]
	if !ok {
		return nil, false
	}
	return &s.defs[i], true
}

// DefinitionAt описание биома столбца. Тип вне каталога заменяется
// Fallback, а при его отсутствии первым биомом каталога.
func (s *System) DefinitionAt(x int) *Definition {
	if d, ok := s.Definition(s.BiomeAt(x)); ok {
		return d
	}
	if d, ok := s.Definition(Fallback); ok {
		return d
	}
	return &s.defs[0]
}

// CanBorder проверяет, допустимо ли соседство a с b.
// Неизвестный биом ни с чем не конфликтует.
func (s *System) CanBorder(a, b Type) bool {
	d, ok := s.Definition(a)
	if !ok {
		return true
	}
	for _, t := range d.CannotBorder {
		if t == b {
			return false
		}
	}
	return true
}

// Types возвращает типы каталога в порядке объявления
func (s *System) Types() []Type {
	out := make([]Type, len(s.defs))
	for i := range s.defs {
		out[i] = s.defs[i].Type
	}
	return out
}
