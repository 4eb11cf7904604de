package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hustconnect/config"
	"hustconnect/pkg/broker"
	"hustconnect/pkg/jwt"
	"hustconnect/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMembers map[uint][]uint

func (m staticMembers) IsParticipant(_ context.Context, conversationID, userID uint) (bool, error) {
	for _, id := range m[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func newTestServer(t *testing.T, hub *Hub, members MembershipChecker) (*httptest.Server, *jwt.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "ws-secret", Issuer: "hustconnect-test", ExpireTime: time.Hour})
	h := NewHandler(hub, jwtSvc, members, redis.NewPresence(nil), config.WebSocketConfig{
		PingInterval: time.Second,
		ReadTimeout:  5 * time.Second,
		SendBuffer:   16,
	})
	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, jwtSvc
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestServeWS_RejectsMissingToken(t *testing.T) {
	hub := startHub(t)
	srv, _ := newTestServer(t, hub, staticMembers{})

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/ws?token=garbage")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestServeWS_JoinRequiresMembership(t *testing.T) {
	hub := startHub(t)
	srv, jwtSvc := newTestServer(t, hub, staticMembers{1: {10, 20}})

	token, err := jwtSvc.GenerateToken(30, nil)
	require.NoError(t, err)
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteJSON(Inbound{Type: ActionJoin, ConversationID: 1}))
	env := readEnvelope(t, conn)
	assert.Equal(t, EventError, env.Type)
	assert.Equal(t, uint(1), env.ConversationID)
	assert.Equal(t, 0, hub.RoomSize(1))
}

func TestServeWS_JoinReceivesMessagesAndLeave(t *testing.T) {
	hub := startHub(t)
	srv, jwtSvc := newTestServer(t, hub, staticMembers{1: {10, 20}})

	token, err := jwtSvc.GenerateToken(10, nil)
	require.NoError(t, err)
	conn := dial(t, srv, token)

	require.NoError(t, conn.WriteJSON(Inbound{Type: ActionJoin, ConversationID: 1}))
	env := readEnvelope(t, conn)
	require.Equal(t, EventJoined, env.Type)
	assert.Equal(t, 1, hub.RoomSize(1))

	hub.Deliver(broker.ConversationTopic(1), mustMarshal(Envelope{Type: EventNewMessage, ConversationID: 1, Message: map[string]interface{}{"content": "hi"}}))
	env = readEnvelope(t, conn)
	assert.Equal(t, EventNewMessage, env.Type)
	assert.Equal(t, "hi", env.Message.(map[string]interface{})["content"])

	require.NoError(t, conn.WriteJSON(Inbound{Type: ActionLeave, ConversationID: 1}))
	env = readEnvelope(t, conn)
	assert.Equal(t, EventLeft, env.Type)
	assert.Equal(t, 0, hub.RoomSize(1))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	env = readEnvelope(t, conn)
	assert.Equal(t, EventError, env.Type)
}

func TestServeWS_DisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	srv, jwtSvc := newTestServer(t, hub, staticMembers{})

	token, err := jwtSvc.GenerateToken(42, nil)
	require.NoError(t, err)
	conn := dial(t, srv, token)
	require.Eventually(t, func() bool { return hub.UserConnections(42) == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return hub.UserConnections(42) == 0 }, 2*time.Second, 10*time.Millisecond)
}
