// Package sim собирает подсистемы мира в один контекст симуляции.
package sim

import (
	"context"
	"fmt"

	"github.com/annel0/terra2d/internal/biome"
	"github.com/annel0/terra2d/internal/config"
	"github.com/annel0/terra2d/internal/damage"
	"github.com/annel0/terra2d/internal/generator"
	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/tension"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

var log = logging.NewLazy("sim")

// Options внешние зависимости мира. Все поля кроме Config опциональны.
type Options struct {
	Config   *config.Config
	Store    world.ChunkStore
	Events   world.EventSink
	Metrics  *metrics.Collectors
	Tracer   trace.Tracer
	Doorways generator.DoorwayHook
}

// World владеет реестром блоков, менеджером чанков и подсистемами.
// Не потокобезопасен: все вызовы из одного цикла симуляции.
type World struct {
	ID string

	Registry  *block.Registry
	Chunks    *world.Manager
	Damage    *damage.System
	Tension   *tension.System
	Generator *generator.Generator

	cfg   *config.Config
	steps uint64
}

// New создаёт мир по конфигурации. Дополнительные блоки из cfg.Blocks
// загружаются в реестр до создания подсистем.
func New(opts Options) (*World, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := block.NewDefaultRegistry()
	if cfg.Blocks != "" {
		n, err := registry.LoadYAMLFile(cfg.Blocks)
		if err != nil {
			return nil, fmt.Errorf("каталог блоков: %w", err)
		}
		log.Info("Загружено %d дополнительных блоков из %s", n, cfg.Blocks)
	}

	events := world.SinkOrNop(opts.Events)

	chunks := world.NewManager(world.ManagerOptions{
		ViewHalfWidth:  cfg.Streaming.ViewHalfWidth,
		ViewHalfHeight: cfg.Streaming.ViewHalfHeight,
		UnloadMargin:   cfg.Streaming.UnloadMargin,
		Store:          opts.Store,
		Metrics:        opts.Metrics,
	})

	tensionOpts := tension.DefaultOptions(cfg.Tension.Seed)
	tensionOpts.CollapseChance = cfg.Tension.CollapseChance
	tensionOpts.Events = events
	tensionOpts.Metrics = opts.Metrics
	stability := tension.New(chunks, registry, tensionOpts)

	dmg := damage.New(chunks, registry, damage.Options{
		RegenDelay:    cfg.Damage.RegenDelay,
		RegenAmount:   cfg.Damage.RegenAmount,
		RegenInterval: cfg.Damage.RegenInterval,
		RingFactor:    cfg.Damage.RingFactor,
		Stability:     stability,
		Events:        events,
		Metrics:       opts.Metrics,
	})

	var biomes []biome.Definition
	if cfg.World.ExtendedBiomes {
		biomes = biome.ExtendedCatalog()
	}
	gen := generator.New(chunks, registry, generator.Options{
		MinY:     cfg.World.MinY,
		MaxY:     cfg.World.MaxY,
		Noise:    cfg.World.Noise,
		Biomes:   biomes,
		Doorways: opts.Doorways,
		Metrics:  opts.Metrics,
		Tracer:   opts.Tracer,
	})

	return &World{
		ID:        uuid.NewString(),
		Registry:  registry,
		Chunks:    chunks,
		Damage:    dmg,
		Tension:   stability,
		Generator: gen,
		cfg:       cfg,
	}, nil
}

// Config конфигурация мира
func (w *World) Config() *config.Config {
	return w.cfg
}

// Generate строит мир с сидом из конфигурации
func (w *World) Generate(ctx context.Context) (generator.Stats, error) {
	return w.Generator.Generate(ctx, w.cfg.World.Seed)
}

// Biomes система биомов последней генерации
func (w *World) Biomes() *biome.System {
	return w.Generator.Biomes()
}

// SpawnPoint пиксельная позиция над поверхностью в столбце x
func (w *World) SpawnPoint(x int) vec.Vec2Float {
	return world.TileToWorld(vec.Vec2{X: world.WrapX(x), Y: w.Generator.Height(x) + 1})
}

// Mine бьёт тайл переднего слоя инструментом
func (w *World) Mine(tile vec.Vec2, tool damage.Tool) damage.Result {
	return w.Damage.Damage(tile, tool.Damage*tool.MiningSpeed, tool, world.Foreground)
}

// Explode наносит урон по области вокруг тайла
func (w *World) Explode(center vec.Vec2, raw float64, tool damage.Tool) []damage.Result {
	return w.Damage.Splash(center, raw, tool)
}

// Step один шаг симуляции: стриминг вокруг наблюдателя, регенерация,
// физика падающих блоков, затем проверка очереди устойчивости.
// Подсистемы можно вызывать и напрямую в любом порядке.
func (w *World) Step(dt float64, viewer vec.Vec2Float) {
	w.Chunks.UpdateActiveChunks(viewer)
	w.settleNewChunks()

	w.Damage.TickRegeneration(dt)
	w.Tension.Tick(dt)
	w.Tension.Drain()
	w.steps++
}

// Steps число выполненных шагов
func (w *World) Steps() uint64 {
	return w.steps
}

// settleNewChunks отмечает подгруженные после генерации чанки.
// Генератор строит всю полосу сразу, поэтому новые чанки вне хранилища
// остаются пустыми (небо и глубины вне полосы).
func (w *World) settleNewChunks() {
	queued := w.Chunks.DrainGenerationQueue()
	for _, coords := range queued {
		if c := w.Chunks.Chunk(coords); c != nil {
			c.Generated = true
		}
	}
	if len(queued) > 0 {
		log.Trace("Новых пустых чанков: %d", len(queued))
	}
}

// Save сохраняет изменённые чанки в хранилище, если оно задано
func (w *World) Save() {
	w.Chunks.SaveAll()
}
