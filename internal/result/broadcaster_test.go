package result

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/gokatarajesh/career-assessment/pkg/http/ws"
)

// dialUser connects a WebSocket client registered in hub under userID.
func dialUser(t *testing.T, hub *ws.Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := ws.NewUpgrader([]string{"*"})
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := ws.NewConnection(conn, zerolog.Nop())
		hub.RegisterConnection(userID, c)
		close(registered)
		go c.WritePump()
		c.ReadPump(func(ws.Message) error { return nil })
		hub.UnregisterConnection(userID, c)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	return conn
}

func TestBroadcasterForwardsResultReady(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	conn := dialUser(t, hub, "7")
	b := NewBroadcaster(nil, hub, "", zerolog.Nop())

	b.forward("not json")
	b.forward(`{"user_id":"8","test":"eq","session_id":"other","result":{}}`)
	b.forward(`{"user_id":"7","test":"holland","session_id":"s1","result":{"code":"RIA"},"submitted_at":"2026-10-01T08:00:00Z"}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeResultReady, msg.Type)

	var payload ws.ResultReadyPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "holland", payload.Test)
	assert.Equal(t, "s1", payload.SessionID)
	assert.JSONEq(t, `{"code":"RIA"}`, string(payload.Result))
	assert.Equal(t, "2026-10-01T08:00:00Z", payload.SubmittedAt)
}

func TestRunWithoutRedisReturns(t *testing.T) {
	b := NewBroadcaster(nil, ws.NewHub(zerolog.Nop()), "", zerolog.Nop())
	assert.NoError(t, b.Run(t.Context()))
}
