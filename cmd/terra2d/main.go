package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/annel0/terra2d/internal/config"
	"github.com/annel0/terra2d/internal/damage"
	"github.com/annel0/terra2d/internal/eventbus"
	"github.com/annel0/terra2d/internal/generator"
	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/metrics"
	"github.com/annel0/terra2d/internal/observability"
	"github.com/annel0/terra2d/internal/sim"
	"github.com/annel0/terra2d/internal/storage"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML конфигурация (по умолчанию $TERRA_CONFIG)")
		seed       = flag.Int64("seed", 0, "сид мира, 0 - из конфигурации")
		steps      = flag.Int("steps", 600, "шагов симуляции после добычи")
		depth      = flag.Int("depth", 12, "глубина шахты в тайлах")
		serve      = flag.Bool("serve", false, "после сценария ждать сигнала (для /metrics)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}

	if err := logging.InitLogger(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.Level),
		FileLevel:    logging.DEBUG,
	}); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *steps, *depth, *serve); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseLogger()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, steps, depth int, serve bool) error {
	logging.Info("🌍 terra2d: сид %d, шум %s", cfg.World.Seed, cfg.World.Noise)

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.Service, cfg.Telemetry.Endpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("Ошибка остановки телеметрии: %v", err)
			}
		}()
	}

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col := metrics.New(reg)
	if addr := cfg.Metrics.GetAddr(); addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	opts := sim.Options{
		Config:  cfg,
		Metrics: col,
		Tracer:  observability.Tracer(),
		Doorways: generator.DoorwayFunc(func(d generator.Doorway) {
			logging.Debug("Проход от %s (%d, %d): пещера найдена=%v %v", d.Structure, d.Origin.X, d.Origin.Y, d.Found, d.Target)
		}),
	}

	counts := &eventCounts{}
	opts.Events = counts

	// === ХРАНИЛИЩЕ ===
	if cfg.Storage.Enabled {
		store, err := storage.Open(storage.Options{Path: cfg.Storage.Path})
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Warn("Ошибка закрытия хранилища: %v", err)
			}
		}()
		opts.Store = store
	}

	// === ШИНА СОБЫТИЙ ===
	if cfg.EventBus.Enabled {
		var bus eventbus.EventBus
		if cfg.EventBus.URL != "" {
			js, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, cfg.EventBus.RetentionDuration())
			if err != nil {
				return err
			}
			bus = js
		} else {
			bus = eventbus.NewMemoryBus(cfg.EventBus.Buffer)
		}
		if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
			return err
		}
		exporter := eventbus.NewMetricsExporter(bus, reg)
		exporter.Start(time.Second)
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Warn("Ошибка закрытия шины: %v", err)
			}
			exporter.Stop()
		}()
		opts.Events = world.MultiSink{counts, eventbus.NewWorldPublisher(bus, nil, "")}
	}

	w, err := sim.New(opts)
	if err != nil {
		return err
	}
	defer w.Save()

	// === ГЕНЕРАЦИЯ ===
	stats, err := w.Generate(ctx)
	if err != nil {
		return err
	}
	printGeneration(stats)

	// === СЦЕНАРИЙ ===
	mined := mineShaft(w, 0, depth)
	viewer := w.SpawnPoint(0)
	const dt = 1.0 / 60
	for i := 0; i < steps && ctx.Err() == nil; i++ {
		w.Step(dt, viewer)
	}
	fmt.Printf("Добыто тайлов: %d, падающих блоков: %d, ожидают регенерации: %d\n",
		mined, w.Tension.FallingCount(), w.Damage.TrackedCount())
	fmt.Printf("Чанков загружено: %d (~%d КБ)\n", w.Chunks.LoadedCount(), w.Chunks.TotalMemoryUsage()/1024)
	fmt.Printf("События: разрушено %d, выпало %d, обрушилось %d, приземлилось %d\n",
		counts.destroyed, counts.drops, counts.collapsed, counts.landed)

	if serve {
		logging.Info("Ожидание сигнала завершения...")
		<-ctx.Done()
	}
	logging.Info("👋 Завершение работы")
	return nil
}

// eventCounts считает события мира для итоговой сводки
type eventCounts struct {
	destroyed, drops, collapsed, landed int
}

func (c *eventCounts) SpawnDrop(vec.Vec2, block.BlockID)                  { c.drops++ }
func (c *eventCounts) TileDestroyed(vec.Vec2, world.Layer, block.BlockID) { c.destroyed++ }
func (c *eventCounts) BlockCollapsed(vec.Vec2, block.BlockID)             { c.collapsed++ }
func (c *eventCounts) BlockLanded(vec.Vec2, block.BlockID)                { c.landed++ }

// mineShaft копает вертикальную шахту от поверхности в столбце x и взрывает дно
func mineShaft(w *sim.World, x, depth int) int {
	pick := damage.Tool{Damage: 150, Tier: 1, MiningSpeed: 1}
	top := w.Generator.Height(x)
	mined := 0
	for y := top; y > top-depth; y-- {
		tile := vec.Vec2{X: x, Y: y}
		for hit := 0; hit < 20; hit++ {
			c, ok := w.Chunks.Get(tile, world.Foreground)
			if !ok || c.IsEmpty() {
				break
			}
			if r := w.Mine(tile, pick); r.Destroyed {
				mined++
				break
			}
		}
	}
	mined += len(w.Explode(vec.Vec2{X: x, Y: top - depth}, 200, pick))
	return mined
}

func printGeneration(stats generator.Stats) {
	fmt.Printf("Мир сгенерирован: сид %d за %v, чанков %d\n", stats.Seed, stats.Duration.Round(time.Millisecond), stats.Chunks)
	fmt.Printf("  руда: %d тайлов, пещеры: %d клеток, проходы: %d\n", stats.OreTiles, stats.CaveCells, stats.Doorways)

	names := make([]string, 0, len(stats.Structures))
	for name := range stats.Structures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %d\n", name, stats.Structures[name])
	}
	stages := make([]string, 0, len(stats.Stages))
	for name := range stats.Stages {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		fmt.Printf("  этап %s: %v\n", name, stats.Stages[name].Round(time.Microsecond))
	}
}
