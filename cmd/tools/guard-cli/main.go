package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/blockguard/internal/api"
	"github.com/annel0/blockguard/internal/eventbus"
)

const (
	defaultServer = "http://localhost:8088"
	defaultNATS   = "nats://localhost:4222"
	timeFormat    = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		server   = flag.String("server", defaultServer, "REST API address")
		natsURL  = flag.String("nats", defaultNATS, "NATS server URL (tail)")
		stream   = flag.String("stream", "BLOCKGUARD", "JetStream stream name (tail)")
		command  = flag.String("cmd", "tail", "Command: tail, watch, vetoes, stats, halt, fire, reload, state, eval")
		types    = flag.String("types", eventbus.TypeVeto, "Event types filter for tail (comma-separated)")
		world    = flag.String("world", "", "World filter / target world")
		category = flag.String("category", "", "Event category (eval) or filter (vetoes)")
		since    = flag.String("since", "", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit    = flag.Int("limit", 100, "Maximum number of events")
		enable   = flag.Bool("enable", true, "Toggle value for halt/fire")
		event    = flag.String("event", "-", "Event JSON file for eval ('-' = stdin)")
		user     = flag.String("user", os.Getenv("BLOCKGUARD_USER"), "Admin username")
		password = flag.String("password", os.Getenv("BLOCKGUARD_PASSWORD"), "Admin password")
		token    = flag.String("token", os.Getenv("BLOCKGUARD_TOKEN"), "Admin JWT (skips login)")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *command == "tail" {
		if err := tail(ctx, *natsURL, *stream, parseStringList(*types), *world, *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
		return
	}

	client := NewClient(*server, *token)
	needsAdmin := *command != "eval"
	if needsAdmin && client.Token == "" {
		if err := client.Login(ctx, *user, *password); err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
	}

	var (
		out interface{}
		err error
	)
	switch *command {
	case "watch":
		if err := watch(ctx, client, parseStringList(*types), *limit); err != nil {
			log.Fatalf("❌ Watch failed: %v", err)
		}
		return
	case "vetoes":
		var from *time.Time
		if *since != "" {
			t, perr := parseSinceTime(*since, time.Now())
			if perr != nil {
				log.Fatalf("❌ Invalid since: %v", perr)
			}
			from = &t
		}
		out, err = client.Vetoes(ctx, VetoFilter{World: *world, Category: *category, Since: from, Limit: *limit})
	case "stats":
		out, err = client.Stats(ctx)
	case "state":
		out, err = client.State(ctx)
	case "halt":
		out, err = client.Halt(ctx, *enable)
	case "fire":
		if *world == "" {
			log.Fatal("❌ -world is required for fire")
		}
		out, err = client.FireSpread(ctx, *world, *enable)
	case "reload":
		out, err = client.Reload(ctx)
	case "eval":
		if *category == "" {
			log.Fatal("❌ -category is required for eval")
		}
		body, rerr := readEvent(*event)
		if rerr != nil {
			log.Fatalf("❌ Read event: %v", rerr)
		}
		out, err = client.Evaluate(ctx, *category, body)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, watch, vetoes, stats, halt, fire, reload, state, eval")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
	printJSON(os.Stdout, out)
}

// tail выводит записи аудита из JetStream до Ctrl-C или лимита
func tail(ctx context.Context, url, stream string, types []string, world string, limit int) error {
	bus, err := eventbus.NewJetStreamBus(url, stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing %v from %s (limit: %d)\n", types, url, limit)

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n📊 Total events: %d\n", count)
			return nil
		case ev := <-events:
			if !matchWorld(ev, world) {
				continue
			}
			printEvent(os.Stdout, ev)
			count++
			if limit > 0 && count >= limit {
				fmt.Printf("\n📊 Total events: %d\n", count)
				return nil
			}
		}
	}
}

// watch выводит поток событий REST API, NATS не нужен
func watch(ctx context.Context, client *Client, types []string, limit int) error {
	fmt.Printf("🎬 Watching %v via %s (limit: %d)\n", types, client.BaseURL, limit)
	count := 0
	err := client.Watch(ctx, types, func(msg api.StreamMessage) bool {
		if msg.EventType == api.StreamSubscribed {
			return true
		}
		printStreamMessage(os.Stdout, msg)
		count++
		return limit <= 0 || count < limit
	})
	fmt.Printf("\n📊 Total events: %d\n", count)
	return err
}

func readEvent(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
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

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное RFC3339
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
