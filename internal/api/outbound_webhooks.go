package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockguard/internal/config"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/logging"
)

// SignatureHeader определяет заголовок с HMAC-подписью тела запроса
const SignatureHeader = "X-Webhook-Signature"

// WebhookEventTypes перечисляет типы событий, которые можно переслать во внешние системы
var WebhookEventTypes = []string{eventbus.TypeVeto, eventbus.TypeSponge, eventbus.TypeToggle}

// ErrWebhookNotFound возвращается для неизвестного ID
var ErrWebhookNotFound = errors.New("webhook not found")

// OutboundWebhook представляет исходящий webhook
type OutboundWebhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required,url"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // События, на которые подписан
	Active       bool       `json:"active"`
	Timeout      int        `json:"timeout"` // Таймаут в секундах
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// OutboundWebhookEvent представляет тело запроса к webhook
type OutboundWebhookEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	ServerID  string          `json:"server_id"`
	Data      json.RawMessage `json:"data"`
}

// OutboundWebhookManager пересылает записи аудита из шины событий во внешние системы
type OutboundWebhookManager struct {
	webhooks   map[uint64]*OutboundWebhook
	eventQueue chan *eventbus.Envelope
	mu         sync.RWMutex
	nextID     uint64
	httpClient *http.Client
	serverID   string
	retryDelay time.Duration
	logger     *logging.Logger
	wg         sync.WaitGroup
}

// NewOutboundWebhookManager создает новый менеджер исходящих webhook'ов
func NewOutboundWebhookManager(serverID string) *OutboundWebhookManager {
	return &OutboundWebhookManager{
		webhooks:   make(map[uint64]*OutboundWebhook),
		eventQueue: make(chan *eventbus.Envelope, 1000),
		nextID:     1,
		serverID:   serverID,
		retryDelay: time.Second,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.GetAPILogger(),
	}
}

// LoadConfig добавляет webhook'и из конфигурации
func (owm *OutboundWebhookManager) LoadConfig(hooks []config.WebhookConfig) {
	for _, h := range hooks {
		owm.AddWebhook(OutboundWebhook{
			Name:       h.Name,
			URL:        h.URL,
			Secret:     h.Secret,
			Events:     h.Events,
			Timeout:    h.Timeout,
			RetryCount: h.RetryCount,
		})
	}
}

// AddWebhook добавляет новый webhook
func (owm *OutboundWebhookManager) AddWebhook(webhook OutboundWebhook) *OutboundWebhook {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	webhook.ID = owm.nextID
	owm.nextID++
	webhook.CreatedAt = time.Now()
	webhook.Active = true

	if webhook.Timeout <= 0 {
		webhook.Timeout = 10
	}
	if webhook.RetryCount < 0 {
		webhook.RetryCount = 0
	}

	owm.webhooks[webhook.ID] = &webhook
	copied := webhook
	return &copied
}

// GetWebhooks возвращает копии всех webhook'ов по возрастанию ID
func (owm *OutboundWebhookManager) GetWebhooks() []OutboundWebhook {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	out := make([]OutboundWebhook, 0, len(owm.webhooks))
	for _, webhook := range owm.webhooks {
		out = append(out, *webhook)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetWebhook возвращает копию webhook'а по ID
func (owm *OutboundWebhookManager) GetWebhook(id uint64) (OutboundWebhook, bool) {
	owm.mu.RLock()
	defer owm.mu.RUnlock()

	webhook, exists := owm.webhooks[id]
	if !exists {
		return OutboundWebhook{}, false
	}
	return *webhook, true
}

// DeleteWebhook удаляет webhook
func (owm *OutboundWebhookManager) DeleteWebhook(id uint64) bool {
	owm.mu.Lock()
	defer owm.mu.Unlock()

	if _, exists := owm.webhooks[id]; !exists {
		return false
	}
	delete(owm.webhooks, id)
	return true
}

// Attach подписывает менеджер на записи аудита шины
func (owm *OutboundWebhookManager) Attach(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: WebhookEventTypes}, func(_ context.Context, ev *eventbus.Envelope) {
		owm.Enqueue(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe webhooks: %w", err)
	}
	return sub, nil
}

// Enqueue ставит событие в очередь отправки; при переполненной очереди событие отбрасывается
func (owm *OutboundWebhookManager) Enqueue(ev *eventbus.Envelope) {
	select {
	case owm.eventQueue <- ev:
	default:
		owm.logger.Warn("⚠️  Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

// Start запускает воркер очереди до отмены контекста
func (owm *OutboundWebhookManager) Start(ctx context.Context) {
	owm.wg.Add(1)
	go owm.eventWorker(ctx)
}

// Wait дожидается завершения воркера и начатых отправок
func (owm *OutboundWebhookManager) Wait() {
	owm.wg.Wait()
}

func (owm *OutboundWebhookManager) eventWorker(ctx context.Context) {
	defer owm.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-owm.eventQueue:
			owm.processEvent(ev)
		}
	}
}

// processEvent отправляет событие всем подписанным webhook'ам
func (owm *OutboundWebhookManager) processEvent(ev *eventbus.Envelope) {
	owm.mu.RLock()
	targets := make([]OutboundWebhook, 0)
	for _, webhook := range owm.webhooks {
		if webhook.Active && isSubscribedToEvent(webhook, ev.EventType) {
			targets = append(targets, *webhook)
		}
	}
	owm.mu.RUnlock()

	for _, webhook := range targets {
		owm.wg.Add(1)
		go func(w OutboundWebhook) {
			defer owm.wg.Done()
			owm.recordResult(w.ID, owm.sendToWebhook(&w, ev))
		}(webhook)
	}
}

func isSubscribedToEvent(webhook *OutboundWebhook, eventType string) bool {
	for _, subscribedEvent := range webhook.Events {
		if subscribedEvent == eventType || subscribedEvent == "*" {
			return true
		}
	}
	return false
}

// TestWebhook синхронно отправляет проверочное событие
func (owm *OutboundWebhookManager) TestWebhook(id uint64) error {
	webhook, ok := owm.GetWebhook(id)
	if !ok {
		return ErrWebhookNotFound
	}
	ev, err := eventbus.NewEnvelope("blockguard", "Test", 0, map[string]string{"message": "webhook test"})
	if err != nil {
		return err
	}
	err = owm.sendToWebhook(&webhook, ev)
	owm.recordResult(id, err)
	return err
}

func (owm *OutboundWebhookManager) recordResult(id uint64, err error) {
	owm.mu.Lock()
	defer owm.mu.Unlock()
	webhook, ok := owm.webhooks[id]
	if !ok {
		return
	}
	now := time.Now()
	webhook.LastUsed = &now
	if err != nil {
		webhook.FailureCount++
	}
}

// sendToWebhook отправляет событие конкретному webhook'у с повторами
func (owm *OutboundWebhookManager) sendToWebhook(webhook *OutboundWebhook, ev *eventbus.Envelope) error {
	body, err := json.Marshal(OutboundWebhookEvent{
		EventID:   ev.ID,
		EventType: ev.EventType,
		Timestamp: ev.Timestamp.Unix(),
		ServerID:  owm.serverID,
		Data:      json.RawMessage(ev.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= webhook.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * owm.retryDelay)
		}
		lastErr = owm.post(webhook, ev.EventType, body)
		if lastErr == nil {
			owm.logger.Debug("✅ Событие %s отправлено в webhook %s", ev.EventType, webhook.Name)
			return nil
		}
		owm.logger.Warn("⚠️  Попытка %d/%d для webhook %s: %v", attempt+1, webhook.RetryCount+1, webhook.Name, lastErr)
	}
	return lastErr
}

func (owm *OutboundWebhookManager) post(webhook *OutboundWebhook, eventType string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(webhook.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "blockguard/1.0")
	req.Header.Set("X-Event-Type", eventType)
	req.Header.Set("X-Server-ID", owm.serverID)
	if webhook.Secret != "" {
		req.Header.Set(SignatureHeader, Signature(body, webhook.Secret))
	}

	resp, err := owm.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", webhook.Name, resp.StatusCode)
	}
	return nil
}

// Signature возвращает HMAC-SHA256 подпись тела в формате "sha256=<hex>"
func Signature(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature проверяет подпись тела; пустой секрет отключает проверку
func VerifySignature(data []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}
	return hmac.Equal([]byte(signature), []byte(Signature(data, secret)))
}
