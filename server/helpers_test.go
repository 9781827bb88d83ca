package server

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder 记录发往各对端的消息（按 JSON 解码成 map），可模拟某个对端不可达
type recorder struct {
	mu          sync.Mutex
	msgs        map[string][]map[string]any
	unreachable map[string]bool
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]map[string]any), unreachable: make(map[string]bool)}
}

func (r *recorder) Send(to net.Addr, b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable[to.String()] {
		return fmt.Errorf("peer %s unreachable", to)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.msgs[to.String()] = append(r.msgs[to.String()], m)
	return nil
}

func (r *recorder) setUnreachable(addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable[addr.String()] = true
}

// all 返回某对端收到的全部消息副本
func (r *recorder) all(addr net.Addr) []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.msgs[addr.String()]...)
}

func (r *recorder) ofType(addr net.Addr, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range r.all(addr) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) last(addr net.Addr, typ string) map[string]any {
	msgs := r.ofType(addr, typ)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = make(map[string][]map[string]any)
}

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

// sequenceGen 依次返回给定的值，用完后按序号生成
func sequenceGen(values ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		i++
		if i <= len(values) {
			return values[i-1]
		}
		return fmt.Sprintf("Z%03d", i)
	}
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Lobby.CountdownInterval = 5 * time.Millisecond
	cfg.World.TickInterval = 5 * time.Millisecond
	cfg.RateLimit.PerSecond = 0
	return cfg
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *recorder) {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := New(cfg,
		WithCodeGenerator(sequenceGen("ABCD", "WXYZ")),
		WithEnemyIDGenerator(sequenceGen("E001", "E002", "E003")),
	)
	require.NoError(t, err)
	rec := newRecorder()
	srv.AddTransport("udp", rec)
	t.Cleanup(srv.Close)
	return srv, rec
}

// send 按线上格式编码后投递，走完整的入站路径
func send(t *testing.T, srv *Server, from net.Addr, msg map[string]any) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	srv.HandleDatagram(from, b)
}

func lobbyState(srv *Server, code string) (LobbyState, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	l, ok := srv.lobbies.Get(code)
	if !ok {
		return 0, false
	}
	return l.State, true
}

func hasWorld(srv *Server, code string) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	_, ok := srv.worlds[code]
	return ok
}

// setupReadyPair A 创建、B 加入、双方准备，返回大厅码
func setupReadyPair(t *testing.T, srv *Server, a, b net.Addr) string {
	t.Helper()
	send(t, srv, a, map[string]any{"type": "create_lobby", "username": "alice"})
	send(t, srv, b, map[string]any{"type": "join_lobby", "lobby_id": "abcd", "username": "bob"})
	send(t, srv, a, map[string]any{"type": "toggle_ready"})
	send(t, srv, b, map[string]any{"type": "toggle_ready"})
	return "ABCD"
}
