package world

import (
	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world/block"
)

// EventSink получает события симуляции: выпадение предметов,
// разрушение тайлов, обрушения и приземления падающих блоков.
// Реализации не должны обращаться к миру обратно из обработчика.
type EventSink interface {
	SpawnDrop(tile vec.Vec2, id block.BlockID)
	TileDestroyed(tile vec.Vec2, layer Layer, id block.BlockID)
	BlockCollapsed(tile vec.Vec2, id block.BlockID)
	BlockLanded(tile vec.Vec2, id block.BlockID)
}

// NopSink игнорирует все события
type NopSink struct{}

func (NopSink) SpawnDrop(vec.Vec2, block.BlockID)            {}
func (NopSink) TileDestroyed(vec.Vec2, Layer, block.BlockID) {}
func (NopSink) BlockCollapsed(vec.Vec2, block.BlockID)       {}
func (NopSink) BlockLanded(vec.Vec2, block.BlockID)          {}

// SinkOrNop подставляет NopSink вместо nil
func SinkOrNop(s EventSink) EventSink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// MultiSink рассылает события нескольким получателям
type MultiSink []EventSink

func (m MultiSink) SpawnDrop(tile vec.Vec2, id block.BlockID) {
	for _, s := range m {
		s.SpawnDrop(tile, id)
	}
}

func (m MultiSink) TileDestroyed(tile vec.Vec2, layer Layer, id block.BlockID) {
	for _, s := range m {
		s.TileDestroyed(tile, layer, id)
	}
}

func (m MultiSink) BlockCollapsed(tile vec.Vec2, id block.BlockID) {
	for _, s := range m {
		s.BlockCollapsed(tile, id)
	}
}

func (m MultiSink) BlockLanded(tile vec.Vec2, id block.BlockID) {
	for _, s := range m {
		s.BlockLanded(tile, id)
	}
}
