package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors Prometheus-метрики симуляции мира.
// Все методы безопасны для nil-получателя: без метрик вызовы ничего не делают.
type Collectors struct {
	chunksLoaded   prometheus.Gauge
	chunkLoads     *prometheus.CounterVec
	chunkEvictions prometheus.Counter
	storeErrors    *prometheus.CounterVec

	tilesDestroyed *prometheus.CounterVec
	regenTracked   prometheus.Gauge

	collapses     prometheus.Counter
	fallingActive prometheus.Gauge
	landings      *prometheus.CounterVec

	stageDuration    *prometheus.HistogramVec
	structuresPlaced *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg (если reg != nil)
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		chunksLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terra2d",
			Name:      "chunks_loaded",
			Help:      "Количество загруженных чанков.",
		}),
		chunkLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "chunk_loads_total",
			Help:      "Загрузки чанков по источнику (new, store).",
		}, []string{"source"}),
		chunkEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "chunk_evictions_total",
			Help:      "Выгруженные чанки.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "store_errors_total",
			Help:      "Ошибки хранилища чанков по операции.",
		}, []string{"op"}),
		tilesDestroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "tiles_destroyed_total",
			Help:      "Разрушенные тайлы по слою.",
		}, []string{"layer"}),
		regenTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terra2d",
			Name:      "regeneration_tracked",
			Help:      "Тайлы, ожидающие регенерации.",
		}),
		collapses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "collapses_total",
			Help:      "Блоки, потерявшие опору.",
		}),
		fallingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terra2d",
			Name:      "falling_blocks",
			Help:      "Активные падающие блоки.",
		}),
		landings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "falling_outcomes_total",
			Help:      "Завершения падения: placed, broken, lost.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "terra2d",
			Name:      "generation_stage_seconds",
			Help:      "Длительность стадий генерации.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		structuresPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terra2d",
			Name:      "structures_placed_total",
			Help:      "Размещённые строения по шаблону.",
		}, []string{"structure"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.chunksLoaded, c.chunkLoads, c.chunkEvictions, c.storeErrors,
			c.tilesDestroyed, c.regenTracked,
			c.collapses, c.fallingActive, c.landings,
			c.stageDuration, c.structuresPlaced,
		)
	}
	return c
}

func (c *Collectors) ChunkLoaded(source string, loaded int) {
	if c == nil {
		return
	}
	c.chunkLoads.WithLabelValues(source).Inc()
	c.chunksLoaded.Set(float64(loaded))
}

func (c *Collectors) ChunkEvicted(loaded int) {
	if c == nil {
		return
	}
	c.chunkEvictions.Inc()
	c.chunksLoaded.Set(float64(loaded))
}

func (c *Collectors) ChunksLoaded(loaded int) {
	if c == nil {
		return
	}
	c.chunksLoaded.Set(float64(loaded))
}

func (c *Collectors) StoreError(op string) {
	if c == nil {
		return
	}
	c.storeErrors.WithLabelValues(op).Inc()
}

func (c *Collectors) TileDestroyed(layer string) {
	if c == nil {
		return
	}
	c.tilesDestroyed.WithLabelValues(layer).Inc()
}

func (c *Collectors) RegenTracked(n int) {
	if c == nil {
		return
	}
	c.regenTracked.Set(float64(n))
}

func (c *Collectors) Collapsed() {
	if c == nil {
		return
	}
	c.collapses.Inc()
}

func (c *Collectors) FallingActive(n int) {
	if c == nil {
		return
	}
	c.fallingActive.Set(float64(n))
}

// FallFinished outcome: placed, broken, lost
func (c *Collectors) FallFinished(outcome string) {
	if c == nil {
		return
	}
	c.landings.WithLabelValues(outcome).Inc()
}

func (c *Collectors) StageDuration(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collectors) StructurePlaced(name string) {
	if c == nil {
		return
	}
	c.structuresPlaced.WithLabelValues(name).Inc()
}
