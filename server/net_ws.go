package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// NetworkWS WebSocket 对端地址的网络名
const NetworkWS = "ws"

// wsAddr 以 TCP 远端地址作为 WebSocket 对端的地址
type wsAddr string

func (a wsAddr) Network() string { return NetworkWS }
func (a wsAddr) String() string  { return string(a) }

var errSendQueueFull = errors.New("websocket send queue full")

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws        *websocket.Conn
	frameType int // websocket.TextMessage 或 BinaryMessage，取决于编码格式
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClientConn(ws *websocket.Conn, frameType int) *ClientConn {
	return &ClientConn{
		ws:        ws,
		frameType: frameType,
		send:      make(chan []byte, 64),
		done:      make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) error {
	select {
	case <-c.done:
		return errors.New("websocket connection closed")
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		return errSendQueueFull
	}
}

// Close 关闭底层连接，写协程随之退出
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(c.frameType, msg); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，逐条交给服务端处理，与 UDP 数据报等价
func (c *ClientConn) readPump(h DatagramHandler, addr wsAddr) {
	defer c.Close()
	c.ws.SetReadLimit(1 << 16)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.HandleDatagram(addr, payload)
	}
}

// WSGateway 浏览器客户端的接入方式：每个 WebSocket 消息视为一个数据报
type WSGateway struct {
	srv       *Server
	upgrader  websocket.Upgrader
	frameType int

	mu    sync.RWMutex
	conns map[wsAddr]*ClientConn
}

// NewWSGateway 创建网关并注册为 ws 网络的发送端
func NewWSGateway(srv *Server) *WSGateway {
	g := &WSGateway{
		srv: srv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 游戏客户端可能来自任意来源
				return true
			},
		},
		frameType: websocket.TextMessage,
		conns:     make(map[wsAddr]*ClientConn),
	}
	if srv.codec.Binary() {
		g.frameType = websocket.BinaryMessage
	}
	srv.AddTransport(NetworkWS, g)
	return g
}

// Send 实现 Transport
func (g *WSGateway) Send(to net.Addr, b []byte) error {
	g.mu.RLock()
	c, ok := g.conns[wsAddr(to.String())]
	g.mu.RUnlock()
	if !ok {
		return errors.Errorf("no websocket connection for %s", to)
	}
	return c.Enqueue(b)
}

// ServeHTTP WebSocket 接入：/ws
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	addr := wsAddr(r.RemoteAddr)
	client := NewClientConn(ws, g.frameType)

	g.mu.Lock()
	if old, ok := g.conns[addr]; ok {
		old.Close()
	}
	g.conns[addr] = client
	g.mu.Unlock()

	go client.writePump()
	go func() {
		client.readPump(g.srv, addr)
		g.mu.Lock()
		if g.conns[addr] == client {
			delete(g.conns, addr)
		}
		g.mu.Unlock()
		// 连接断开等同于退出大厅
		g.srv.Disconnect(addr)
	}()
}
