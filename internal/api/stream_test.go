package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/annel0/blockguard/internal/eventbus"
	"github.com/annel0/blockguard/internal/guard"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, ts *testServer, query string, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(ts.rs.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/stream" + query
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readStream(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStream_RequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := dialStream(t, ts, "", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStream_DeliversVetoes(t *testing.T) {
	ts := newTestServer(t)
	token, err := ts.tokens.Generate("ops", true)
	require.NoError(t, err)

	conn, _, err := dialStream(t, ts, "", token)
	require.NoError(t, err)
	defer conn.Close()

	hello := readStream(t, conn)
	require.Equal(t, StreamSubscribed, hello.EventType)
	assert.JSONEq(t, `["Veto"]`, string(hello.Payload))

	decodeGuard(t, ts.do(http.MethodPost, "/api/guard/place", mustJSON(t, placeBy("bob")), nil))

	msg := readStream(t, conn)
	assert.Equal(t, eventbus.TypeVeto, msg.EventType)
	var rec guard.VetoRecord
	require.NoError(t, json.Unmarshal(msg.Payload, &rec))
	assert.Equal(t, "world", rec.World)
	assert.Equal(t, "bob", rec.Actor)
}

func TestStreamTypes(t *testing.T) {
	assert.Equal(t, []string{eventbus.TypeVeto}, streamTypes(""))
	assert.Nil(t, streamTypes("*"))
	assert.Equal(t, []string{"Sponge", "Toggle"}, streamTypes("Sponge, Toggle,"))
}
