package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/annel0/blockguard/internal/api"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
)

// printEvent выводит событие шины в читаемом формате
func printEvent(w io.Writer, ev *eventbus.Envelope) {
	printRecord(w, ev.Timestamp, ev.Source, ev.EventType, ev.ID, ev.Payload)
}

func printStreamMessage(w io.Writer, msg api.StreamMessage) {
	printRecord(w, msg.Timestamp, msg.Source, msg.EventType, msg.ID, msg.Payload)
}

func printRecord(w io.Writer, ts time.Time, source, eventType, id string, payload []byte) {
	fmt.Fprintf(w, "[%s] %s [%s] %s\n", ts.Format("15:04:05"), source, eventType, id)

	switch eventType {
	case eventbus.TypeVeto:
		var rec guard.VetoRecord
		if json.Unmarshal(payload, &rec) == nil {
			fmt.Fprintf(w, "  World: %s Pos: %s Category: %s Check: %s", rec.World, rec.Pos, rec.Category, rec.Check)
			if rec.Actor != "" {
				fmt.Fprintf(w, " Player: %s", rec.Actor)
			}
			fmt.Fprintln(w)
		}
	case eventbus.TypeSponge:
		var rec guard.SpongeRecord
		if json.Unmarshal(payload, &rec) == nil {
			fmt.Fprintf(w, "  World: %s Pos: %s Cells: %d Changes: %d\n", rec.World, rec.Pos, rec.Cells, len(rec.Changes))
		}
	default:
		fmt.Fprintf(w, "  %s\n", payload)
	}
}

// matchWorld проверяет мир записи; пустой фильтр пропускает всё
func matchWorld(ev *eventbus.Envelope, world string) bool {
	if world == "" {
		return true
	}
	var rec struct {
		World string `json:"world"`
	}
	if err := ev.Decode(&rec); err != nil {
		return false
	}
	return rec.World == world
}

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
