package guard

import (
	"context"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/vec"
)

// AuditSource задаёт имя источника в конвертах шины
const AuditSource = "blockguard"

// VetoRecord представляет запись аудита о запрещённом событии
type VetoRecord struct {
	World    string    `json:"world"`
	Category Category  `json:"category"`
	Check    string    `json:"check"`
	Pos      vec.Vec3  `json:"pos"`
	Actor    string    `json:"actor,omitempty"`
	Message  string    `json:"message,omitempty"`
	DropSign *vec.Vec3 `json:"drop_sign,omitempty"`
}

// NoticeRecord содержит сообщение игроку для доставки хостом
type NoticeRecord struct {
	Actor string `json:"actor"`
	Text  string `json:"text"`
}

// SpongeRecord фиксирует изменение клеток мира губкой
type SpongeRecord struct {
	World   string        `json:"world"`
	Pos     vec.Vec3      `json:"pos"`
	Cells   int           `json:"cells"`
	Changes []BlockChange `json:"changes,omitempty"`
}

// Auditor публикует записи аудита
type Auditor interface {
	Veto(rec VetoRecord)
	Sponge(rec SpongeRecord)
}

// BusAuditor публикует аудит в шину событий с низким приоритетом:
// при переполненной шине записи отбрасываются, обработка события не блокируется.
type BusAuditor struct {
	bus eventbus.EventBus
}

// NewBusAuditor создаёт аудитора поверх шины
func NewBusAuditor(bus eventbus.EventBus) *BusAuditor {
	return &BusAuditor{bus: bus}
}

func (a *BusAuditor) Veto(rec VetoRecord) {
	a.publish(eventbus.TypeVeto, rec)
}

func (a *BusAuditor) Sponge(rec SpongeRecord) {
	a.publish(eventbus.TypeSponge, rec)
}

func (a *BusAuditor) publish(eventType string, payload interface{}) {
	env, err := eventbus.NewEnvelope(AuditSource, eventType, 1, payload)
	if err != nil {
		return
	}
	_ = a.bus.Publish(context.Background(), env)
}

// BusMessenger передаёт сообщения игрокам через шину событий
type BusMessenger struct {
	bus eventbus.EventBus
}

// NewBusMessenger создаёт мессенджер поверх шины
func NewBusMessenger(bus eventbus.EventBus) *BusMessenger {
	return &BusMessenger{bus: bus}
}

func (m *BusMessenger) Notify(actor *Actor, text string) error {
	env, err := eventbus.NewEnvelope(AuditSource, eventbus.TypeNotify, 4, NoticeRecord{Actor: actor.DisplayName(), Text: text})
	if err != nil {
		return err
	}
	return m.bus.Publish(context.Background(), env)
}
