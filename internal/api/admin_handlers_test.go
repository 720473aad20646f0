package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/annel0/blockguard/internal/vec"
	"github.com/annel0/blockguard/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowEvent() *guard.FlowEvent {
	return &guard.FlowEvent{
		Base:   guard.Base{World: "world", Pos: vec.Vec3{X: 50, Y: 64}},
		FromID: block.Water,
		To:     vec.Vec3{X: 51, Y: 64},
		ToID:   block.Air,
	}
}

func TestAdmin_RequiresAdminToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/admin/halt", []byte(`{"enabled":true}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, err := ts.tokens.Generate("viewer", false)
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/api/admin/halt", []byte(`{"enabled":true}`), http.Header{"Authorization": {"Bearer " + viewer}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, ts.state.ActivityHalt())
}

func TestAdmin_HaltVetoesEnvironment(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toggles := make(chan *eventbus.Envelope, 4)
	_, err := ts.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeToggle}}, func(_ context.Context, ev *eventbus.Envelope) {
		toggles <- ev
	})
	require.NoError(t, err)

	r := decodeGuard(t, ts.do(http.MethodPost, "/api/guard/flow", mustJSON(t, flowEvent()), nil))
	assert.False(t, r.Verdict.Vetoed)

	w := ts.admin(t, http.MethodPost, "/api/admin/halt", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.admin(t, http.MethodPost, "/api/admin/halt", []byte(`{"enabled":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.state.ActivityHalt())

	r = decodeGuard(t, ts.do(http.MethodPost, "/api/guard/flow", mustJSON(t, flowEvent()), nil))
	assert.True(t, r.Verdict.Vetoed)
	assert.Equal(t, "halt", r.Verdict.Check)

	select {
	case ev := <-toggles:
		var payload struct {
			ActivityHalt bool   `json:"activity_halt"`
			By           string `json:"by"`
		}
		require.NoError(t, ev.Decode(&payload))
		assert.True(t, payload.ActivityHalt)
		assert.Equal(t, "ops", payload.By)
	case <-time.After(time.Second):
		t.Fatal("Toggle не опубликован")
	}

	w = ts.admin(t, http.MethodPost, "/api/admin/halt", []byte(`{"enabled":false}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ts.state.ActivityHalt())
}

func TestAdmin_FireSpreadToggle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.admin(t, http.MethodPost, "/api/admin/fire/world", []byte(`{"enabled":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.state.Snapshot("world").FireSpreadHalted)
	assert.False(t, ts.state.Snapshot("nether").FireSpreadHalted)

	w = ts.admin(t, http.MethodGet, "/api/admin/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, []string{"world"}, st.FireSpreadHalted)

	burn := &guard.BurnEvent{Base: guard.Base{World: "world", Pos: vec.Vec3{X: 50}}, BlockID: block.Wood}
	r := decodeGuard(t, ts.do(http.MethodPost, "/api/guard/burn", mustJSON(t, burn), nil))
	assert.True(t, r.Verdict.Vetoed)
	assert.Equal(t, "fire-toggle", r.Verdict.Check)
}

func TestAdmin_Reload(t *testing.T) {
	ts := newTestServer(t)

	r := decodeGuard(t, ts.do(http.MethodPost, "/api/guard/place/evaluate", mustJSON(t, placeBy("bob")), nil))
	require.True(t, r.Verdict.Vetoed)
	_, err := ts.worlds.Grid("nether")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(ts.path, []byte("worlds:\n  world:\n    use_regions: true\n  nether: {}\n"), 0o644))
	w := ts.admin(t, http.MethodPost, "/api/admin/reload", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data ReloadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"nether", "world"}, resp.Data.Worlds)
	assert.Equal(t, 0, resp.Data.Regions["world"])
	_, err = ts.worlds.Grid("nether")
	assert.NoError(t, err, "сетка нового мира создана перезагрузкой")

	r = decodeGuard(t, ts.do(http.MethodPost, "/api/guard/place/evaluate", mustJSON(t, placeBy("bob")), nil))
	assert.False(t, r.Verdict.Vetoed, "регион удалён перезагрузкой")

	// Ошибочная конфигурация не применяется
	require.NoError(t, os.WriteFile(ts.path, []byte("worlds:\n  world:\n    sponge_radius: -1\n"), 0o644))
	w = ts.admin(t, http.MethodPost, "/api/admin/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.admin(t, http.MethodGet, "/api/admin/policies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"worlds":["nether","world"]}`, w.Body.String())
}

func TestAdmin_ReloadUnavailable(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.Reloader = nil })
	w := ts.admin(t, http.MethodPost, "/api/admin/reload", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAdmin_PolicyView(t *testing.T) {
	ts := newTestServer(t)

	w := ts.admin(t, http.MethodGet, "/api/admin/policies/world", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Configured bool                   `json:"configured"`
		Policy     map[string]interface{} `json:"policy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Configured)
	assert.Equal(t, true, view.Policy["use_regions"])

	w = ts.admin(t, http.MethodGet, "/api/admin/policies/unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.False(t, view.Configured)
	assert.Equal(t, float64(3), view.Policy["sponge_radius"], "ненастроенный мир получает значения по умолчанию")
}

func TestAdmin_StatsAndVetoes(t *testing.T) {
	ts := newTestServer(t)

	decodeGuard(t, ts.do(http.MethodPost, "/api/guard/place", mustJSON(t, placeBy("bob")), nil))
	assert.Eventually(t, func() bool { return ts.vetoes.Len() == 1 }, time.Second, 10*time.Millisecond)

	w := ts.admin(t, http.MethodGet, "/api/admin/vetoes?world=world&category=place", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Vetoes []map[string]interface{} `json:"vetoes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Vetoes, 1)
	assert.Equal(t, "bob", list.Vetoes[0]["actor"])
	assert.Equal(t, "build", list.Vetoes[0]["check"])

	w = ts.admin(t, http.MethodGet, "/api/admin/vetoes?world=nether", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"vetoes":[]}`, w.Body.String())

	w = ts.admin(t, http.MethodGet, "/api/admin/vetoes/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"by_check":{"build":1}`)

	w = ts.admin(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Data struct {
			Process     ProcessStats `json:"process"`
			Worlds      int          `json:"worlds"`
			VetoesTotal uint64       `json:"vetoes_total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Greater(t, stats.Data.Process.Goroutines, 0)
	assert.Equal(t, 1, stats.Data.Worlds)
	assert.Equal(t, uint64(1), stats.Data.VetoesTotal)
}
