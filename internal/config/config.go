package config

import (
	"fmt"
	"os"
	"time"

	"github.com/annel0/terra2d/internal/noise"
	"github.com/annel0/terra2d/internal/world"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath переменная окружения с путём к файлу конфигурации
const EnvConfigPath = "TERRA_CONFIG"

// EnvMetricsAddr переопределяет адрес Prometheus-эндпоинта
const EnvMetricsAddr = "TERRA_METRICS_ADDR"

// Config корневая структура конфигурации.
// Отсутствующие в файле поля сохраняют значения Default().
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Streaming StreamingConfig `yaml:"streaming"`
	Damage    DamageConfig    `yaml:"damage"`
	Tension   TensionConfig   `yaml:"tension"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Blocks путь к YAML с дополнительными определениями блоков
	Blocks string `yaml:"blocks"`
}

type WorldConfig struct {
	Seed  int64  `yaml:"seed"`
	MinY  int    `yaml:"min_y"`
	MaxY  int    `yaml:"max_y"`
	Noise string `yaml:"noise"` // hash | perlin
	// ExtendedBiomes добавляет болото; меняет карту биомов
	ExtendedBiomes bool `yaml:"extended_biomes"`
}

type StreamingConfig struct {
	ViewHalfWidth  int `yaml:"view_half_width"`
	ViewHalfHeight int `yaml:"view_half_height"`
	UnloadMargin   int `yaml:"unload_margin"`
}

type DamageConfig struct {
	RegenDelay    float64 `yaml:"regen_delay"`
	RegenAmount   float64 `yaml:"regen_amount"`
	RegenInterval float64 `yaml:"regen_interval"`
	RingFactor    float64 `yaml:"ring_factor"`
}

type TensionConfig struct {
	CollapseChance float64 `yaml:"collapse_chance"`
	Seed           int64   `yaml:"seed"`
}

type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type EventBusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"` // ёмкость in-memory шины, если NATS не задан
}

// RetentionDuration срок хранения событий в стриме
func (e EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // "" - эндпоинт выключен
}

// GetAddr адрес с приоритетом: config -> env
func (m MetricsConfig) GetAddr() string {
	if m.Addr != "" {
		return m.Addr
	}
	return os.Getenv(EnvMetricsAddr)
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Service  string `yaml:"service"`
	Endpoint string `yaml:"endpoint"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default значения по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:  1,
			MinY:  world.SeaLevel - 256,
			MaxY:  world.SeaLevel + 320,
			Noise: noise.KindHash,
		},
		Streaming: StreamingConfig{ViewHalfWidth: 8, ViewHalfHeight: 6, UnloadMargin: 2},
		Damage: DamageConfig{
			RegenDelay:    2.0,
			RegenAmount:   35,
			RegenInterval: 0.5,
			RingFactor:    0.5,
		},
		Tension:   TensionConfig{CollapseChance: 0.3, Seed: 1},
		Storage:   StorageConfig{Path: "data"},
		EventBus:  EventBusConfig{Stream: "WORLD", Retention: 24, Buffer: 1024},
		Telemetry: TelemetryConfig{Service: "terra2d", Endpoint: "localhost:4318"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	if c.World.MinY < 0 || c.World.MaxY > world.WorldHeight || c.World.MinY >= c.World.MaxY {
		return fmt.Errorf("world: неверная полоса генерации [%d, %d)", c.World.MinY, c.World.MaxY)
	}
	if c.World.Noise != noise.KindHash && c.World.Noise != noise.KindPerlin {
		return fmt.Errorf("world: неизвестный тип шума %q", c.World.Noise)
	}
	if c.Streaming.ViewHalfWidth <= 0 || c.Streaming.ViewHalfHeight <= 0 || c.Streaming.UnloadMargin < 0 {
		return fmt.Errorf("streaming: неверное окно %+v", c.Streaming)
	}
	if c.Damage.RegenInterval <= 0 || c.Damage.RegenAmount < 0 || c.Damage.RegenDelay < 0 {
		return fmt.Errorf("damage: неверные параметры регенерации %+v", c.Damage)
	}
	if c.Tension.CollapseChance < 0 || c.Tension.CollapseChance > 1 {
		return fmt.Errorf("tension: вероятность обрушения %v вне [0, 1]", c.Tension.CollapseChance)
	}
	if c.EventBus.Enabled && c.EventBus.Buffer <= 0 && c.EventBus.URL == "" {
		return fmt.Errorf("eventbus: нужен url или buffer > 0")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать путь из ENV TERRA_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil // конфиг не задан, остаются дефолты
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
