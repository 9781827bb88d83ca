package server

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// DatagramHandler 接收一个完整的入站数据报
type DatagramHandler interface {
	HandleDatagram(from net.Addr, data []byte)
}

// UDPTransport 数据报传输：一个读协程，发送即忘
type UDPTransport struct {
	conn    *net.UDPConn
	maxSize int
}

// ListenUDP 绑定 UDP 地址，例如 ":9999"
func ListenUDP(addr string, maxSize int) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving udp address %s", addr)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on udp %s", addr)
	}
	return &UDPTransport{conn: conn, maxSize: maxSize}, nil
}

func (t *UDPTransport) Addr() net.Addr { return t.conn.LocalAddr() }

// Send 发送单个数据报，不重试
func (t *UDPTransport) Send(to net.Addr, b []byte) error {
	if _, err := t.conn.WriteTo(b, to); err != nil {
		return errors.Wrapf(err, "sending to %s", to)
	}
	return nil
}

// Serve 读循环，直到 ctx 取消或连接关闭
func (t *UDPTransport) Serve(ctx context.Context, h DatagramHandler) error {
	go func() {
		<-ctx.Done()
		_ = t.conn.Close()
	}()
	buf := make([]byte, t.maxSize)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// 单个对端的 ICMP 不可达等错误不应终止读循环
			Log.Debugw("udp read error", "err", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		h.HandleDatagram(from, data)
	}
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
