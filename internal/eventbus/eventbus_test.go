package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/annel0/terra2d/internal/vec"
	"github.com/annel0/terra2d/internal/world"
	"github.com/annel0/terra2d/internal/world/block"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) all() []*Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Envelope(nil), c.events...)
}

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	var got collector
	_, err := bus.Subscribe(context.Background(), Filter{}, got.handle)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{ID: string(rune('a' + i)), EventType: "T"}))
	}
	require.NoError(t, bus.Close())

	events := got.all()
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, string(rune('a'+i)), ev.ID)
	}
	stats := bus.Metrics()
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(5), stats.Consumed)
	assert.Zero(t, stats.InFlight)
}

func TestMemoryBus_Filter(t *testing.T) {
	bus := NewMemoryBus(16)
	var drops, all collector
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventItemDrop}}, drops.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Sources: []string{SourceWorld}}, all.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: EventItemDrop, Source: SourceWorld}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: EventBlockLanded, Source: SourceWorld}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: EventItemDrop, Source: "other"}))
	require.NoError(t, bus.Close())

	assert.Len(t, drops.all(), 2)
	assert.Len(t, all.all(), 2)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	var got collector
	sub, err := bus.Subscribe(context.Background(), Filter{}, got.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "T"}))
	require.NoError(t, bus.Close())
	assert.Empty(t, got.all())
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "повторное закрытие безопасно")
	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrBusClosed)
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	// первое событие занимает обработчик, второе заполняет буфер
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 1}))
	<-entered
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 1}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = bus.Publish(ctx, &Envelope{Priority: 9})
	assert.ErrorIs(t, err, context.Canceled, "высокий приоритет ждёт места")

	close(release)
	require.NoError(t, bus.Close())
	stats := bus.Metrics()
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(2), stats.Published)
}

func TestWorldPublisher_Events(t *testing.T) {
	bus := NewMemoryBus(16)
	var got collector
	_, err := bus.Subscribe(context.Background(), Filter{}, got.handle)
	require.NoError(t, err)

	pub := NewWorldPublisher(bus, block.NewDefaultRegistry(), "")
	_, err = uuid.Parse(pub.WorldID())
	require.NoError(t, err)

	var sink world.EventSink = pub
	tile := vec.Vec2{X: 3, Y: 8000}
	sink.TileDestroyed(tile, world.Background, block.StoneBlockID)
	sink.SpawnDrop(tile, block.StoneBlockID)
	sink.BlockCollapsed(tile, block.SandBlockID)
	sink.BlockLanded(vec.Vec2{X: 3, Y: 7990}, block.SandBlockID)
	require.NoError(t, bus.Close())

	events := got.all()
	require.Len(t, events, 4)
	types := []string{EventTileDestroyed, EventItemDrop, EventBlockCollapsed, EventBlockLanded}
	for i, ev := range events {
		assert.Equal(t, types[i], ev.EventType)
		assert.Equal(t, SourceWorld, ev.Source)
		assert.Equal(t, pub.WorldID(), ev.CorrelationID)
		_, err := uuid.Parse(ev.ID)
		assert.NoError(t, err)
	}
	assert.Equal(t, 7, events[1].Priority)

	we, err := DecodeWorldEvent(events[0])
	require.NoError(t, err)
	assert.Equal(t, tile, we.Tile())
	assert.Equal(t, "background", we.Layer)
	assert.Equal(t, "stone", we.Name)

	we, err = DecodeWorldEvent(events[3])
	require.NoError(t, err)
	assert.Equal(t, 7990, we.Y)
	assert.Equal(t, block.SandBlockID, we.Block)
}

func TestWorldPublisher_ClosedBusIsNotFatal(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	pub := NewWorldPublisher(bus, nil, "w1")
	assert.NotPanics(t, func() { pub.SpawnDrop(vec.Vec2{}, block.DirtBlockID) })
}

func TestDecodeWorldEvent_Invalid(t *testing.T) {
	_, err := DecodeWorldEvent(&Envelope{EventType: EventItemDrop, Payload: []byte("{")})
	assert.Error(t, err)
}

func TestMetricsExporter_Update(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	exp := NewMetricsExporter(bus, reg)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "T"}))
	}
	require.NoError(t, bus.Close())

	exp.Update()
	exp.Update() // повторный снимок без новых событий ничего не добавляет
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.published))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.consumed))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.inflight))

	exp.Stop() // без Start не блокируется

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSubjectAndFilter(t *testing.T) {
	assert.Equal(t, "world.ItemDrop", Subject(EventItemDrop))

	ev := &Envelope{EventType: EventBlockLanded, Source: SourceWorld}
	assert.True(t, Filter{}.match(ev))
	assert.True(t, Filter{Types: []string{EventItemDrop, EventBlockLanded}}.match(ev))
	assert.False(t, Filter{Types: []string{EventItemDrop}}.match(ev))
	assert.False(t, Filter{Sources: []string{"other"}}.match(ev))
}
