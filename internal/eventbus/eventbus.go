// Package eventbus доставляет события мира (дропы, разрушения, обрушения)
// внешним потребителям.
package eventbus

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// Envelope конверт события. Формат общий для всех реализаций шины.
type Envelope struct {
	ID            string            `json:"id"`             // UUID
	Timestamp     time.Time         `json:"ts"`             // UTC
	Source        string            `json:"source"`         // имя сервиса-источника
	EventType     string            `json:"type"`           // ItemDrop, TileDestroyed…
	Version       int               `json:"version"`        // схема полезной нагрузки
	CorrelationID string            `json:"correlation_id"` // идентификатор мира
	Priority      int               `json:"priority"`       // 0=Low … 9=Critical, для backpressure
	Payload       []byte            `json:"payload"`        // JSON полезной нагрузки
	Metadata      map[string]string `json:"meta,omitempty"`
}

// Filter отбор событий подписчика. Пустой список пропускает всё.
type Filter struct {
	Types   []string
	Sources []string
}

func (f Filter) match(ev *Envelope) bool {
	return (len(f.Types) == 0 || slices.Contains(f.Types, ev.EventType)) &&
		(len(f.Sources) == 0 || slices.Contains(f.Sources, ev.Source))
}

// Subscription возвращается при подписке
type Subscription interface {
	Unsubscribe()
}

// Handler обработчик событий
type Handler func(ctx context.Context, ev *Envelope)

// Stats счётчики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus абстракция шины событий мира.
// Реализации: MemoryBus (тесты, одиночный процесс) и JetStreamBus.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("шина событий закрыта")

// HighPriority события с приоритетом не ниже этого не отбрасываются
// при заполненном буфере, а ждут места
const HighPriority = 5

// MemoryBus шина в памяти процесса. Одна горутина рассылки, поэтому
// каждый подписчик получает события в порядке публикации.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[int]*memSub
	nextID int
	stats  Stats

	sendMu sync.RWMutex // закрытие buffer только под записью
	closed bool
	buffer chan *Envelope
	done   chan struct{}
}

var _ EventBus = (*MemoryBus)(nil)

// NewMemoryBus создаёт шину с буфером на capacity событий
func NewMemoryBus(capacity int) *MemoryBus {
	b := &MemoryBus{
		subs:   make(map[int]*memSub),
		buffer: make(chan *Envelope, max(capacity, 1)),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish ставит событие в буфер. При заполненном буфере событие
// с низким приоритетом отбрасывается, с высоким ждёт места или отмены ctx.
func (b *MemoryBus) Publish(ctx context.Context, ev *Envelope) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.buffer <- ev:
	default:
		if ev.Priority < HighPriority {
			b.count(func(s *Stats) { s.Dropped++ })
			return nil
		}
		select {
		case b.buffer <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.count(func(s *Stats) { s.Published++ })
	return nil
}

func (b *MemoryBus) count(fn func(s *Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// Subscribe регистрирует обработчик. Отмена ctx прекращает доставку.
func (b *MemoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	cctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &memSub{bus: b, id: b.nextID, filter: f, handler: h, ctx: cctx, cancel: cancel}
	b.subs[s.id] = s
	b.nextID++
	return s, nil
}

// Metrics снимок счётчиков
func (b *MemoryBus) Metrics() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.InFlight = len(b.buffer)
	return s
}

// Close прекращает приём и дожидается доставки уже принятых событий
func (b *MemoryBus) Close() error {
	b.sendMu.Lock()
	if b.closed {
		b.sendMu.Unlock()
		return nil
	}
	b.closed = true
	close(b.buffer)
	b.sendMu.Unlock()

	<-b.done
	return nil
}

func (b *MemoryBus) snapshot() []*memSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*memSub, 0, len(b.subs))
	for _, s := range b.subs {
		out = append(out, s)
	}
	return out
}

func (b *MemoryBus) dispatch() {
	defer close(b.done)
	for ev := range b.buffer {
		for _, s := range b.snapshot() {
			if s.ctx.Err() != nil || !s.filter.match(ev) {
				continue
			}
			s.handler(s.ctx, ev)
			b.count(func(st *Stats) { st.Consumed++ })
		}
	}
}

type memSub struct {
	bus     *MemoryBus
	id      int
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

func (s *memSub) Unsubscribe() {
	s.cancel()
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
}
