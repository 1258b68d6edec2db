package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/terra2d/internal/eventbus"
)

const (
	defaultNATSURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		url        = flag.String("url", defaultNATSURL, "NATS server URL")
		stream     = flag.String("stream", "WORLD", "JetStream stream")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		worldID    = flag.String("world", "", "World ID filter")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339")
		limit      = flag.Int("limit", 100, "Maximum number of events (0 - unlimited)")
		window     = flag.Duration("window", 5*time.Second, "stats: how long to collect")
	)
	flag.Parse()

	from, err := parseSinceTime(*since, time.Now().UTC())
	if err != nil {
		log.Fatalf("❌ Invalid -since: %v", err)
	}

	bus, err := eventbus.NewJetStreamBus(*url, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := eventbus.Filter{Types: parseStringList(*eventTypes), Sources: []string{eventbus.SourceWorld}}
	sel := selector{from: from, world: *worldID}

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, f, sel, *limit)
	case "stats":
		err = showStats(ctx, bus, f, sel, *window)
	default:
		err = fmt.Errorf("unknown command %q", *command)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// selector отбор событий по времени и миру
type selector struct {
	from  time.Time
	world string
}

func (s selector) match(ev *eventbus.Envelope) bool {
	if ev.Timestamp.Before(s.from) {
		return false
	}
	return s.world == "" || ev.CorrelationID == s.world
}

// tailEvents печатает события до лимита или сигнала
func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, sel selector, limit int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	printed := 0
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if !sel.match(ev) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && printed >= limit {
			return
		}
		printEvent(ev)
		printed++
		if limit > 0 && printed >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

// showStats собирает события за окно и печатает счётчики по типам
func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, sel selector, window time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	var mu sync.Mutex
	counts := make(map[string]int)
	blocks := make(map[string]int)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if !sel.match(ev) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		counts[ev.EventType]++
		if we, err := eventbus.DecodeWorldEvent(ev); err == nil && ev.EventType == eventbus.EventItemDrop {
			blocks[fmt.Sprintf("%d", we.Block)]++
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("📊 Events since %s:\n", sel.from.Format(timeFormat))
	printCounts(counts)
	if len(blocks) > 0 {
		fmt.Println("📦 Drops by block id:")
		printCounts(blocks)
	}
	return nil
}

func printCounts(m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-16s %d\n", k, m[k])
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		ev.CorrelationID,
		ev.EventType,
		ev.ID)

	we, err := eventbus.DecodeWorldEvent(ev)
	if err != nil {
		fmt.Printf("  payload: %s\n", ev.Payload)
		return
	}
	if we.Layer != "" {
		fmt.Printf("  Tile: (%d,%d) Layer: %s Block: %d %s\n", we.X, we.Y, we.Layer, we.Block, we.Name)
	} else {
		fmt.Printf("  Tile: (%d,%d) Block: %d %s\n", we.X, we.Y, we.Block, we.Name)
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
