package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

// WebSocket 客户端与 UDP 客户端可以在同一个大厅里
func TestWSGateway_MixedLobby(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	gw := NewWSGateway(srv)
	hs := httptest.NewServer(srv.AdminMux(gw))
	defer hs.Close()

	conn := dialWS(t, hs.URL)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "create_lobby", "username": "webby"}))
	joined := readWS(t, conn)
	assert.Equal(t, typeLobbyJoined, joined["type"])
	assert.Equal(t, "ABCD", joined["lobby_id"])

	b := udpAddr(1002)
	send(t, srv, b, map[string]any{"type": "join_lobby", "lobby_id": "ABCD", "username": "bob"})
	update := readWS(t, conn)
	assert.Equal(t, typeLobbyUpdate, update["type"])
	assert.Len(t, players(update), 2)
	assert.NotNil(t, rec.last(b, typeLobbyJoined))

	// 断开连接等同于退出，房主转给 bob
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		joined := rec.last(b, typeLobbyJoined)
		return joined != nil && joined["host"] == true
	}, waitFor, time.Millisecond)
}

func TestWSGateway_SendWithoutConnection(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	gw := NewWSGateway(srv)
	assert.Error(t, gw.Send(wsAddr("127.0.0.1:1"), []byte("{}")))
}

// msgpack 输出不是合法 UTF-8，必须以二进制帧发送
func TestWSGateway_MsgpackUsesBinaryFrames(t *testing.T) {
	srv, _ := newTestServer(t, func(c *Config) { c.Codec = CodecMsgpack })
	gw := NewWSGateway(srv)
	hs := httptest.NewServer(srv.AdminMux(gw))
	defer hs.Close()

	conn := dialWS(t, hs.URL)
	defer conn.Close()

	req, err := msgpack.Marshal(map[string]any{"type": "create_lobby", "username": "webby"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, req))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	frameType, b, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, frameType)

	var joined map[string]any
	require.NoError(t, msgpack.Unmarshal(b, &joined))
	assert.Equal(t, typeLobbyJoined, joined["type"])
	assert.Equal(t, "ABCD", joined["lobby_id"])
}
