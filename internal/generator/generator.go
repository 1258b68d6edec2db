// Package generator строит мир по сиду в фиксированном порядке этапов:
// биомы, постройки до пещер, рельеф, руды, пещеры, постройки после пещер, фон.
// Каждый этап полностью завершается до начала следующего.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/noise"
	"github.com/annel0/terra2d/internal/observability"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var log = logging.NewLazy("generator")

// Смещения сидов подсистем
const (
	caveSeedOffset      = 1000
	structureSeedOffset = 2000

	climateSeed = 0
)

// Названия этапов (метки метрик и спанов)
const (
	StageBiomes         = "biomes"
	StagePreStructures  = "structures_pre"
	StageTerrain        = "terrain"
	StageOres           = "ores"
	StageCaves          = "caves"
	StagePostStructures = "structures_post"
	StageBackground     = "background"
)

// Options параметры генерации
type Options struct {
	// Полоса генерации по Y: [MinY, MaxY). Весь мир - 0 и WorldHeight.
	MinY, MaxY int
	// Тип шума: noise.KindHash или noise.KindPerlin
	Noise string
	// Каталоги; пустые заменяются стандартными
	Biomes     []biome.Definition
	Structures []Template

	Doorways DoorwayHook
	Metrics  *metrics.Collectors
	Tracer   trace.Tracer
	// Workers ограничивает параллельные вычисления по столбцам (0 - без ограничения)
	Workers int
}

// DefaultOptions полоса вокруг уровня моря, выровненная по чанкам
func DefaultOptions() Options {
	return Options{
		MinY:  world.SeaLevel - 256,
		MaxY:  world.SeaLevel + 320,
		Noise: noise.KindHash,
	}
}

// Stats итоги генерации
type Stats struct {
	Seed       int64
	Structures map[string]int
	Markers    int
	OreTiles   int
	CaveCells  int
	Doorways   int
	Chunks     int
	Stages     map[string]time.Duration
	Duration   time.Duration
}

// Generator конвейер генерации. Не потокобезопасен; внутри этапов
// чистые вычисления по столбцам выполняются параллельно, запись в мир
// всегда последовательна.
type Generator struct {
	manager  *world.Manager
	registry *block.Registry
	opts     Options

	seed      int64
	biomes    *biome.System
	terrain   noise.Source
	caves     noise.Source
	rng       lcg
	templates []Template

	placed     []vec.Vec2
	placements []Placement
	markers    []FlattenMarker
	protected  map[world.TileKey]struct{}
	heights    []int
	carved     []vec.Vec2
	doorways   []Doorway
	stats      Stats
}

// New создаёт генератор поверх менеджера чанков
func New(manager *world.Manager, registry *block.Registry, opts Options) *Generator {
	if opts.MinY < 0 {
		opts.MinY = 0
	}
	if opts.MaxY <= 0 || opts.MaxY > world.WorldHeight {
		opts.MaxY = world.WorldHeight
	}
	templates := opts.Structures
	if templates == nil {
		templates = DefaultTemplates()
	}
	g := &Generator{
		manager:   manager,
		registry:  registry,
		opts:      opts,
		templates: templates,
	}
	g.reseed(0)
	return g
}

// reseed пересоздаёт источники шума и сбрасывает состояние прошлого прогона
func (g *Generator) reseed(seed int64) {
	g.seed = seed
	// климат не зависит от сида мира
	g.biomes = biome.New(noise.New(g.opts.Noise, climateSeed), g.opts.Biomes)
	g.terrain = noise.New(g.opts.Noise, seed)
	g.caves = noise.New(g.opts.Noise, seed+caveSeedOffset)
	g.rng = newLCG(uint64(seed + structureSeedOffset))

	g.placed = nil
	g.placements = nil
	g.markers = nil
	g.protected = make(map[world.TileKey]struct{})
	g.heights = make([]int, world.WorldWidth)
	g.carved = nil
	g.doorways = nil
	g.stats = Stats{
		Seed:       seed,
		Structures: make(map[string]int),
		Stages:     make(map[string]time.Duration),
	}
}

// Biomes система биомов последнего прогона
func (g *Generator) Biomes() *biome.System {
	return g.biomes
}

// Seed сид последнего прогона
func (g *Generator) Seed() int64 {
	return g.seed
}

// Band полоса генерации [MinY, MaxY)
func (g *Generator) Band() (int, int) {
	return g.opts.MinY, g.opts.MaxY
}

// Height верх рельефа столбца после генерации
func (g *Generator) Height(x int) int {
	return g.heights[world.WrapX(x)]
}

// Placements размещённые постройки в порядке размещения
func (g *Generator) Placements() []Placement {
	out := make([]Placement, len(g.placements))
	copy(out, g.placements)
	return out
}

// Templates шаблоны построек генератора
func (g *Generator) Templates() []Template {
	return g.templates
}

// Doorways запросы проходов к пещерам
func (g *Generator) Doorways() []Doorway {
	out := make([]Doorway, len(g.doorways))
	copy(out, g.doorways)
	return out
}

// Protected true для тайлов, записанных постройкой
func (g *Generator) Protected(tile vec.Vec2) bool {
	_, ok := g.protected[world.KeyOf(world.WrapTile(tile))]
	return ok
}

// Generate строит мир с явным сидом
func (g *Generator) Generate(ctx context.Context, seed int64) (Stats, error) {
	g.reseed(seed)
	start := time.Now()
	log.Info("Генерация мира: сид %d, полоса Y [%d, %d)", seed, g.opts.MinY, g.opts.MaxY)

	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{StageBiomes, g.biomes.GenerateMap},
		{StagePreStructures, func(context.Context) error { g.placeStructures(PreCave); return nil }},
		{StageTerrain, g.generateTerrain},
		{StageOres, func(context.Context) error { g.placeOres(); return nil }},
		{StageCaves, g.carveCaves},
		{StagePostStructures, func(context.Context) error { g.placeStructures(PostCave); return nil }},
		{StageBackground, func(context.Context) error { g.generateBackground(); return nil }},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return g.stats, fmt.Errorf("генерация прервана перед этапом %s: %w", st.name, err)
		}
		if err := g.runStage(ctx, st.name, st.run); err != nil {
			return g.stats, fmt.Errorf("этап %s: %w", st.name, err)
		}
	}

	g.manager.ForEachChunk(func(c *world.Chunk) {
		c.Generated = true
	})
	g.manager.DrainGenerationQueue()

	g.stats.Chunks = g.manager.LoadedCount()
	g.stats.Doorways = len(g.doorways)
	g.stats.Duration = time.Since(start)
	log.Info("Мир сгенерирован за %v: чанков %d, построек %d, руды %d, пещер %d",
		g.stats.Duration, g.stats.Chunks, len(g.placed), g.stats.OreTiles, g.stats.CaveCells)
	return g.stats, nil
}

func (g *Generator) runStage(ctx context.Context, name string, run func(context.Context) error) error {
	ctx, span := observability.StartStage(ctx, g.opts.Tracer, name, g.seed)
	defer span.End()

	started := time.Now()
	err := run(ctx)
	elapsed := time.Since(started)

	g.stats.Stages[name] = elapsed
	g.opts.Metrics.StageDuration(name, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	log.Debug("Этап %s завершён за %v", name, elapsed)
	return nil
}

// inBand true для Y внутри полосы генерации
func (g *Generator) inBand(y int) bool {
	return y >= g.opts.MinY && y < g.opts.MaxY
}

// set пишет клетку переднего слоя
func (g *Generator) set(tile vec.Vec2, id block.BlockID) {
	g.manager.Set(tile, world.Foreground, g.registry.Cell(id))
}

// fg читает передний слой; отсутствующий чанк - воздух
func (g *Generator) fg(tile vec.Vec2) block.Cell {
	c, _ := g.manager.Get(tile, world.Foreground)
	return c
}
