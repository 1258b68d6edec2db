package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/terra2d/internal/logging"
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/google/uuid"
)

// Типы событий мира
const (
	EventItemDrop       = "ItemDrop"
	EventTileDestroyed  = "TileDestroyed"
	EventBlockCollapsed = "BlockCollapsed"
	EventBlockLanded    = "BlockLanded"
)

// SourceWorld имя источника событий симуляции
const SourceWorld = "terra2d"

// WorldEventVersion версия схемы WorldEvent
const WorldEventVersion = 1

// WorldEvent полезная нагрузка событий мира
type WorldEvent struct {
	X     int           `json:"x"`
	Y     int           `json:"y"`
	Layer string        `json:"layer,omitempty"`
	Block block.BlockID `json:"block"`
	Name  string        `json:"name,omitempty"`
}

// Tile позиция события
func (e WorldEvent) Tile() vec.Vec2 {
	return vec.Vec2{X: e.X, Y: e.Y}
}

// DecodeWorldEvent разбирает полезную нагрузку конверта
func DecodeWorldEvent(ev *Envelope) (WorldEvent, error) {
	var we WorldEvent
	if err := json.Unmarshal(ev.Payload, &we); err != nil {
		return WorldEvent{}, fmt.Errorf("decode %s: %w", ev.EventType, err)
	}
	return we, nil
}

// WorldPublisher публикует события симуляции в шину. Реализует world.EventSink.
// Ошибки публикации логируются: симуляция от шины не зависит.
type WorldPublisher struct {
	bus      EventBus
	registry *block.Registry // опционально, для имён блоков
	worldID  string
	timeout  time.Duration
	log      logging.Lazy
}

var _ world.EventSink = (*WorldPublisher)(nil)

// NewWorldPublisher создаёт издателя. worldID пустой - генерируется UUID.
func NewWorldPublisher(bus EventBus, registry *block.Registry, worldID string) *WorldPublisher {
	if worldID == "" {
		worldID = uuid.NewString()
	}
	return &WorldPublisher{
		bus:      bus,
		registry: registry,
		worldID:  worldID,
		timeout:  time.Second,
		log:      logging.NewLazy("eventbus"),
	}
}

// WorldID идентификатор мира, пишется в CorrelationID конвертов
func (p *WorldPublisher) WorldID() string {
	return p.worldID
}

// NewEnvelope собирает конверт с UUID и временем создания
func NewEnvelope(eventType, correlationID string, priority int, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        SourceWorld,
		EventType:     eventType,
		Version:       WorldEventVersion,
		CorrelationID: correlationID,
		Priority:      priority,
		Payload:       data,
	}, nil
}

func (p *WorldPublisher) publish(eventType string, priority int, we WorldEvent) {
	if p.registry != nil {
		if def, ok := p.registry.Get(we.Block); ok {
			we.Name = def.Name
		}
	}
	ev, err := NewEnvelope(eventType, p.worldID, priority, we)
	if err != nil {
		p.log.Error("Событие %s: %v", eventType, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.log.Warn("Не удалось опубликовать %s: %v", eventType, err)
	}
}

// SpawnDrop предмет выпал из разрушенного или разбившегося блока.
// Дропы важнее статистики, поэтому высокий приоритет.
func (p *WorldPublisher) SpawnDrop(tile vec.Vec2, id block.BlockID) {
	p.publish(EventItemDrop, 7, WorldEvent{X: tile.X, Y: tile.Y, Block: id})
}

func (p *WorldPublisher) TileDestroyed(tile vec.Vec2, layer world.Layer, id block.BlockID) {
	p.publish(EventTileDestroyed, 3, WorldEvent{X: tile.X, Y: tile.Y, Layer: layer.String(), Block: id})
}

func (p *WorldPublisher) BlockCollapsed(tile vec.Vec2, id block.BlockID) {
	p.publish(EventBlockCollapsed, 3, WorldEvent{X: tile.X, Y: tile.Y, Block: id})
}

func (p *WorldPublisher) BlockLanded(tile vec.Vec2, id block.BlockID) {
	p.publish(EventBlockLanded, 3, WorldEvent{X: tile.X, Y: tile.Y, Block: id})
}
