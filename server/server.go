package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Transport 按对端地址发送字节，实现必须可并发调用
type Transport interface {
	Send(to net.Addr, b []byte) error
}

// Server 大厅撮合与对局中继服务。
// 玩家目录、大厅表、世界表和地址绑定全部由 mu 这一把锁保护；
// 持锁期间只往 outbox 里追加消息，释放锁之后才真正发送。
type Server struct {
	cfg     *Config
	codec   Codec
	metrics *Metrics
	limiter *peerLimiter
	tokens  *TokenStore

	mu                sync.Mutex
	dir               *Directory
	lobbies           *Manager
	worlds            map[string]*World
	bindings          map[PlayerID]PlayerID // 重连后的新地址标识 -> 原玩家标识
	worldCfg          WorldConfig
	countdownTicks    int
	countdownInterval time.Duration
	tickInterval      time.Duration
	newEnemyID        EnemyIDGenerator
	closed            bool

	tmu        sync.RWMutex
	transports map[string]Transport // 按 net.Addr.Network() 选择

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// Option 用于测试替换随机源与时钟
type Option func(*Server)

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *Server) { s.lobbies.newCode = gen }
}

func WithEnemyIDGenerator(gen EnemyIDGenerator) Option {
	return func(s *Server) { s.newEnemyID = gen }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New 创建服务；传输层通过 AddTransport 挂载
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	dir := NewDirectory()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:               cfg,
		codec:             codec,
		metrics:           &Metrics{},
		limiter:           newPeerLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		tokens:            NewTokenStore(cfg.Lobby.ReconnectTTL),
		dir:               dir,
		lobbies:           NewManager(dir, RandomCode, cfg.Lobby.CountdownTicks, cfg.Lobby.ChatLogCap),
		worlds:            make(map[string]*World),
		bindings:          make(map[PlayerID]PlayerID),
		worldCfg:          cfg.WorldConfig(),
		countdownTicks:    cfg.Lobby.CountdownTicks,
		countdownInterval: cfg.Lobby.CountdownInterval,
		tickInterval:      cfg.World.TickInterval,
		newEnemyID:        randomEnemyID,
		transports:        make(map[string]Transport),
		ctx:               ctx,
		cancel:            cancel,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lobbies.now = s.now
	if cfg.Lobby.IdleTimeout > 0 {
		s.wg.Add(1)
		go s.runReaper(cfg.Lobby.IdleTimeout)
	}
	return s, nil
}

// AddTransport 注册某种网络（udp、ws）的发送端
func (s *Server) AddTransport(network string, t Transport) {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	s.transports[network] = t
}

func (s *Server) Metrics() *Metrics { return s.metrics }

// Close 停止所有后台协程，之后到达的消息会被丢弃
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Disconnect 传输层得知对端已断开（WebSocket 关闭），按退出大厅处理。
// 玩家已重连到其他地址时不做任何事。
func (s *Server) Disconnect(addr net.Addr) {
	var out outbox
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	id := s.identityFor(addr)
	if p, ok := s.dir.Get(id); ok && SameAddr(p.Addr, addr) {
		s.leave(id, &out)
	}
	s.mu.Unlock()
	s.flush(out)
}

// HandleDatagram 入站入口：限流、解码、分发。可被多个读协程并发调用。
func (s *Server) HandleDatagram(from net.Addr, data []byte) {
	s.metrics.IncDatagramsIn()
	if !s.limiter.Allow(from) {
		s.metrics.IncRateLimited()
		return
	}
	msg, err := s.codec.Decode(data)
	if err != nil {
		s.metrics.IncDecodeErrors()
		Log.Debugw("dropping undecodable datagram", "from", from.String(), "err", err)
		return
	}
	s.Handle(from, msg)
}

// Handle 在一致性边界内执行一条已解码的消息
func (s *Server) Handle(from net.Addr, msg *InboundMessage) {
	var out outbox
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	err := s.dispatch(from, msg, &out)
	s.mu.Unlock()

	if err != nil {
		s.replyError(from, msg.Type, err, &out)
	}
	s.flush(out)
}

func (s *Server) replyError(from net.Addr, msgType string, err error, out *outbox) {
	if IsSilent(err) {
		Log.Debugw("ignoring request", "type", msgType, "from", from.String(), "reason", err)
		return
	}
	var e *Error
	if errors.As(err, &e) {
		out.send(from, errorMessage(e.Msg))
		return
	}
	Log.Errorw("request failed", "type", msgType, "from", from.String(), "err", err)
	out.send(from, errorMessage("Internal server error"))
}

// flush 编码并发送；单个对端发送失败只记录，不影响其他对端
func (s *Server) flush(out outbox) {
	for _, o := range out {
		b, err := s.codec.Encode(o.Msg)
		if err != nil {
			Log.Errorw("encoding outbound message", "to", o.To.String(), "err", err)
			continue
		}
		s.tmu.RLock()
		t, ok := s.transports[o.To.Network()]
		s.tmu.RUnlock()
		if !ok {
			s.metrics.IncSendErrors()
			Log.Warnw("no transport for peer", "to", o.To.String(), "network", o.To.Network())
			continue
		}
		if err := t.Send(o.To, b); err != nil {
			s.metrics.IncSendErrors()
			Log.Debugw("send failed", "to", o.To.String(), "err", err)
			continue
		}
		s.metrics.IncMessagesOut()
	}
}

// identityFor 地址 -> 玩家标识，重连过的地址映射回原标识。调用方持有 mu。
func (s *Server) identityFor(addr net.Addr) PlayerID {
	id := IdentityOf(addr)
	if bound, ok := s.bindings[id]; ok {
		return bound
	}
	return id
}

// roster 大厅名单快照。调用方持有 mu。
func (s *Server) roster(l *Lobby) []PlayerInfo {
	players := make([]PlayerInfo, 0, len(l.Members))
	for _, id := range l.Members {
		if p, ok := s.dir.Get(id); ok {
			players = append(players, PlayerInfo{Username: p.Username, Ready: p.Ready, Character: p.Character})
		}
	}
	return players
}

func (s *Server) lobbyUpdate(l *Lobby) LobbyUpdate {
	return LobbyUpdate{Type: typeLobbyUpdate, Countdown: l.Countdown, Players: s.roster(l)}
}

func (s *Server) lobbyJoined(l *Lobby, id PlayerID) LobbyJoined {
	msg := LobbyJoined{
		Type:        typeLobbyJoined,
		LobbyID:     l.Code,
		Host:        l.Host == id,
		Players:     s.roster(l),
		ChatHistory: l.RecentChat(ChatHistoryOnJoin),
	}
	if p, ok := s.dir.Get(id); ok {
		msg.Token = p.Token
	}
	return msg
}

// broadcast 发给大厅所有成员。调用方持有 mu。
func (s *Server) broadcast(l *Lobby, msg any, out *outbox) {
	for _, id := range l.Members {
		if p, ok := s.dir.Get(id); ok {
			out.send(p.Addr, msg)
		}
	}
}

// leave 玩家离开：撤销令牌、维护世界表、通知剩余成员。调用方持有 mu。
func (s *Server) leave(id PlayerID, out *outbox) {
	p, registered := s.dir.Get(id)
	before, inLobby := s.lobbies.SessionOf(id)
	if registered {
		s.tokens.Revoke(p.Token)
		if key := IdentityOf(p.Addr); s.bindings[key] == id {
			delete(s.bindings, key)
		}
	}
	if !inLobby {
		s.dir.Unregister(id)
		return
	}
	code, prevHost := before.Code, before.Host

	l := s.lobbies.LeaveSession(id)
	if w, ok := s.worlds[code]; ok {
		w.RemovePlayer(id)
		if l == nil {
			delete(s.worlds, code)
		}
	}
	if l == nil {
		Log.Infof("lobby %s closed", code)
		return
	}
	s.broadcast(l, s.lobbyUpdate(l), out)
	if l.Host != prevHost {
		Log.Infof("lobby %s host moved to %s", code, l.Host)
		if h, ok := s.dir.Get(l.Host); ok {
			out.send(h.Addr, s.lobbyJoined(l, l.Host))
		}
	}
}

// startCountdown Forming -> Countdown，并启动倒计时协程。调用方持有 mu。
func (s *Server) startCountdown(l *Lobby) {
	l.State = StateCountdown
	l.Countdown = s.countdownTicks
	l.epoch++
	Log.Infof("lobby %s countdown started (%d)", l.Code, s.countdownTicks)
	s.wg.Add(1)
	go s.runCountdown(l, l.epoch, s.countdownTicks, s.countdownInterval)
}

// countdownLive 倒计时协程的唯一取消信号：状态或轮次变了就退出。调用方持有 mu。
func (s *Server) countdownLive(l *Lobby, epoch uint64) bool {
	if s.closed || l.State != StateCountdown || l.epoch != epoch {
		return false
	}
	cur, ok := s.lobbies.Get(l.Code)
	return ok && cur == l
}

func (s *Server) runCountdown(l *Lobby, epoch uint64, ticks int, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for v := ticks; v > 0; v-- {
		if !s.countdownStep(l, epoch, v) {
			return
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
	s.finishCountdown(l, epoch)
}

func (s *Server) countdownStep(l *Lobby, epoch uint64, v int) bool {
	var out outbox
	s.mu.Lock()
	if !s.countdownLive(l, epoch) {
		s.mu.Unlock()
		return false
	}
	l.Countdown = v
	s.broadcast(l, s.lobbyUpdate(l), &out)
	s.mu.Unlock()
	s.flush(out)
	return true
}

// finishCountdown Countdown -> Active：创建世界并启动 Tick 广播
func (s *Server) finishCountdown(l *Lobby, epoch uint64) {
	var out outbox
	s.mu.Lock()
	if !s.countdownLive(l, epoch) {
		s.mu.Unlock()
		return
	}
	l.Countdown = 0
	s.broadcast(l, s.lobbyUpdate(l), &out)
	s.broadcast(l, GameStart{Type: typeGame}, &out)
	w := NewWorld(l, s.worldCfg, s.newEnemyID)
	s.worlds[l.Code] = w
	l.State = StateActive
	s.metrics.IncGamesStarted()
	Log.Infof("lobby %s game started", l.Code)
	s.wg.Add(1)
	go s.runWorld(w, s.tickInterval)
	s.mu.Unlock()
	s.flush(out)
}
