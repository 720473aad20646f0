package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/blockguard/internal/config"
	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// receiver принимает webhook'и в тестах
type receiver struct {
	mu       sync.Mutex
	events   []OutboundWebhookEvent
	headers  []http.Header
	bodies   [][]byte
	failures atomic.Int32 // сколько первых запросов завершить ошибкой
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if r.failures.Add(-1) >= 0 {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	body, _ := io.ReadAll(req.Body)
	var ev OutboundWebhookEvent
	_ = json.Unmarshal(body, &ev)

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.headers = append(r.headers, req.Header.Clone())
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newReceiver(t *testing.T) (*receiver, *httptest.Server) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	t.Cleanup(srv.Close)
	return rcv, srv
}

func TestSignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Signature(body, "k")
	assert.Contains(t, sig, "sha256=")
	assert.True(t, VerifySignature(body, sig, "k"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"a":2}`), sig, "k"))
	assert.True(t, VerifySignature(body, "", ""), "пустой секрет отключает проверку")
}

func TestOutboundWebhooks_ForwardsVetoes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rcv, srv := newReceiver(t)
	owm := NewOutboundWebhookManager("node-1")
	owm.retryDelay = time.Millisecond
	owm.LoadConfig([]config.WebhookConfig{
		{Name: "audit", URL: srv.URL, Secret: "k", Events: []string{eventbus.TypeVeto}, RetryCount: 2},
		{Name: "sponges", URL: srv.URL, Events: []string{eventbus.TypeSponge}},
	})
	require.Len(t, owm.GetWebhooks(), 2)

	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	_, err := owm.Attach(ctx, bus)
	require.NoError(t, err)
	owm.Start(ctx)

	rcv.failures.Store(1) // первая попытка падает, повтор доставляет
	guard.NewBusAuditor(bus).Veto(guard.VetoRecord{World: "world", Category: guard.CategoryBreak, Check: "build"})

	assert.Eventually(t, func() bool { return rcv.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	rcv.mu.Lock()
	ev, hdr, body := rcv.events[0], rcv.headers[0], rcv.bodies[0]
	rcv.mu.Unlock()
	assert.Equal(t, eventbus.TypeVeto, ev.EventType)
	assert.Equal(t, "node-1", ev.ServerID)
	assert.Equal(t, eventbus.TypeVeto, hdr.Get("X-Event-Type"))
	assert.True(t, VerifySignature(body, hdr.Get(SignatureHeader), "k"))

	var rec guard.VetoRecord
	require.NoError(t, json.Unmarshal(ev.Data, &rec))
	assert.Equal(t, "build", rec.Check)

	cancel()
	owm.Wait()

	hook, ok := owm.GetWebhook(1)
	require.True(t, ok)
	assert.NotNil(t, hook.LastUsed)
	assert.Equal(t, 0, hook.FailureCount)
}

func TestOutboundWebhooks_FailureCounted(t *testing.T) {
	rcv, srv := newReceiver(t)
	rcv.failures.Store(10)

	owm := NewOutboundWebhookManager("node-1")
	owm.retryDelay = time.Millisecond
	hook := owm.AddWebhook(OutboundWebhook{Name: "down", URL: srv.URL, Events: []string{"*"}, RetryCount: 1})

	err := owm.TestWebhook(hook.ID)
	assert.Error(t, err)
	got, _ := owm.GetWebhook(hook.ID)
	assert.Equal(t, 1, got.FailureCount)
	assert.Equal(t, int32(8), rcv.failures.Load(), "одна попытка и один повтор")

	assert.ErrorIs(t, owm.TestWebhook(42), ErrWebhookNotFound)
}

func TestAdmin_WebhookCRUD(t *testing.T) {
	ts := newTestServer(t)
	rcv, srv := newReceiver(t)

	w := ts.admin(t, http.MethodPost, "/api/admin/webhooks", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.admin(t, http.MethodPost, "/api/admin/webhooks", mustJSON(t, OutboundWebhook{Name: "ops", URL: srv.URL, Events: []string{"*"}}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data OutboundWebhook `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.Data.ID)

	w = ts.admin(t, http.MethodGet, "/api/admin/webhooks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"event_types":["Veto","Sponge","Toggle"]`)

	path := "/api/admin/webhooks/" + jsonNumber(created.Data.ID)
	w = ts.admin(t, http.MethodPost, path+"/test", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, rcv.count())

	w = ts.admin(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.admin(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.admin(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.admin(t, http.MethodGet, "/api/admin/webhooks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonNumber(id uint64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
