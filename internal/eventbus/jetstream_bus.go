package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/terra2d/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// SubjectPrefix префикс subject'ов событий мира: world.<EventType>
const SubjectPrefix = "world."

// Subject subject события заданного типа
func Subject(eventType string) string {
	return SubjectPrefix + eventType
}

// JetStreamBus EventBus поверх NATS JetStream. Конверты передаются в JSON.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	log    logging.Lazy

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64
}

var _ EventBus = (*JetStreamBus)(nil)

// NewJetStreamBus подключается к NATS и создаёт стрим, если его нет.
// url: nats://127.0.0.1:4222, stream по умолчанию "WORLD", retention 0 - без ограничения.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "WORLD"
	}
	log := logging.NewLazy("eventbus")

	nc, err := nats.Connect(url,
		nats.Name("terra2d"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS отключён: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS переподключён к %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(stream); errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{SubjectPrefix + "*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
		log.Info("Создан стрим %s (%s*)", stream, SubjectPrefix)
	} else if err != nil {
		nc.Close()
		return nil, fmt.Errorf("stream info %s: %w", stream, err)
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream, log: log}, nil
}

// Publish публикует конверт в world.<EventType> и ждёт подтверждения стрима
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subj := Subject(ev.EventType)
	if _, err := jb.js.Publish(subj, data, nats.Context(ctx), nats.MsgId(ev.ID)); err != nil {
		jb.dropped.Add(1)
		return fmt.Errorf("jetstream publish %s: %w", subj, err)
	}
	jb.published.Add(1)
	return nil
}

// Subscribe создаёт эфемерного потребителя стрима. При одном типе в фильтре
// сервер сам отбирает subject, остальное отбирается на клиенте.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := SubjectPrefix + "*"
	if len(f.Types) == 1 {
		subj = Subject(f.Types[0])
	}

	sub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.log.Warn("Битое сообщение в %s: %v", msg.Subject, err)
		} else if f.match(&ev) && ctx.Err() == nil {
			h(ctx, &ev)
			jb.consumed.Add(1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("jetstream subscribe %s: %w", subj, err)
	}
	return jetSub{sub}, nil
}

type jetSub struct {
	s *nats.Subscription
}

func (j jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics счётчики клиента; очередь стрима хранит сервер
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: jb.published.Load(),
		Consumed:  jb.consumed.Load(),
		Dropped:   jb.dropped.Load(),
	}
}

// Close дожидается отправки буферизованных сообщений и закрывает соединение
func (jb *JetStreamBus) Close() error {
	if err := jb.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
