package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer     = 256
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second

	// StreamPath задаёт маршрут потока событий
	StreamPath = "/api/admin/stream"

	// StreamSubscribed обозначает первое сообщение потока после подписки на шину
	StreamSubscribed = "Subscribed"
)

// StreamMessage представляет событие шины в потоке StreamPath
type StreamMessage struct {
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newStreamMessage(ev *eventbus.Envelope) StreamMessage {
	return StreamMessage{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Source:    ev.Source,
		EventType: ev.EventType,
		Payload:   json.RawMessage(ev.Payload),
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // доступ закрыт JWT
	}
}

// handleStream транслирует события шины (по умолчанию Veto) в WebSocket.
// Медленный клиент теряет события, шина не блокируется.
func (rs *RestServer) handleStream(c *gin.Context) {
	if rs.bus == nil {
		c.JSON(http.StatusNotImplemented, GenericResponse{Success: false, Message: "Шина событий недоступна"})
		return
	}
	types := streamTypes(c.Query("types"))

	conn, err := rs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rs.logger.Warn("Не удалось открыть поток событий: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *eventbus.Envelope, streamBuffer)
	sub, err := rs.bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case out <- ev:
		default:
		}
	})
	if err != nil {
		rs.logger.Error("Подписка потока событий: %v", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"), time.Now().Add(time.Second))
		return
	}
	defer sub.Unsubscribe()

	user := c.GetString(middleware.ContextUsername)
	rs.logger.Info("📡 Поток событий %v открыт (%s)", types, user)
	defer rs.logger.Info("📡 Поток событий закрыт (%s)", user)

	hello, _ := json.Marshal(types)
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(StreamMessage{Timestamp: time.Now().UTC(), EventType: StreamSubscribed, Payload: hello}); err != nil {
		return
	}

	// Читатель нужен только для обработки close и pong
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return
		case ev := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(newStreamMessage(ev)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func streamTypes(raw string) []string {
	if raw == "" {
		return []string{eventbus.TypeVeto}
	}
	if raw == "*" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}
