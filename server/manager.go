package server

import (
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// CodeLength 大厅码长度
	CodeLength      = 4
	maxCodeAttempts = 128
)

var errCodeSpaceExhausted = errors.New("unable to generate a unique lobby code")

// CodeGenerator 生成候选大厅码（可能重复，由 Manager 负责去重）
type CodeGenerator func() string

// RandomCode 取 UUIDv4 的前 4 位并转大写
func RandomCode() string {
	return strings.ToUpper(uuid.NewString()[:CodeLength])
}

// NormalizeCode 大厅码不区分大小写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Manager 管理所有大厅的生命周期（撮合）。
// 不自带锁，调用方必须持有 Server.mu。
type Manager struct {
	dir      *Directory
	lobbies  map[string]*Lobby
	memberOf map[PlayerID]string
	newCode  CodeGenerator
	now      func() time.Time

	countdownTicks int
	chatCap        int
}

func NewManager(dir *Directory, gen CodeGenerator, countdownTicks, chatCap int) *Manager {
	if gen == nil {
		gen = RandomCode
	}
	return &Manager{
		dir:            dir,
		lobbies:        make(map[string]*Lobby),
		memberOf:       make(map[PlayerID]string),
		newCode:        gen,
		now:            time.Now,
		countdownTicks: countdownTicks,
		chatCap:        chatCap,
	}
}

func (m *Manager) uniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := NormalizeCode(m.newCode())
		if code == "" {
			continue
		}
		if _, taken := m.lobbies[code]; !taken {
			return code, nil
		}
	}
	return "", errCodeSpaceExhausted
}

// CreateSession 创建大厅，创建者成为房主和唯一成员
func (m *Manager) CreateSession(id PlayerID, username string, addr net.Addr) (*Lobby, error) {
	if _, in := m.memberOf[id]; in {
		return nil, ErrAlreadyInSession
	}
	code, err := m.uniqueCode()
	if err != nil {
		return nil, err
	}
	if _, err := m.dir.Register(id, username, addr, m.now()); err != nil {
		return nil, err
	}
	l := newLobby(code, id, m.countdownTicks, m.chatCap)
	m.lobbies[code] = l
	m.memberOf[id] = code
	return l, nil
}

// LookupSession 只读探测：未知、已满或已开局都返回 nil，不暴露人数
func (m *Manager) LookupSession(code string) *Lobby {
	l, ok := m.lobbies[NormalizeCode(code)]
	if !ok || l.IsFull() || l.State != StateForming {
		return nil
	}
	return l
}

// JoinSession 加入已有大厅
func (m *Manager) JoinSession(id PlayerID, code, username string, addr net.Addr) (*Lobby, error) {
	if _, in := m.memberOf[id]; in {
		return nil, ErrAlreadyInSession
	}
	l, ok := m.lobbies[NormalizeCode(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if l.IsFull() || l.State != StateForming {
		return nil, ErrSessionFull
	}
	if _, err := m.dir.Register(id, username, addr, m.now()); err != nil {
		return nil, err
	}
	l.Members = append(l.Members, id)
	m.memberOf[id] = l.Code
	return l, nil
}

// LeaveSession 离开大厅并从目录注销；大厅变空时删除并返回 nil
func (m *Manager) LeaveSession(id PlayerID) *Lobby {
	code, ok := m.memberOf[id]
	if !ok {
		m.dir.Unregister(id)
		return nil
	}
	delete(m.memberOf, id)
	m.dir.Unregister(id)

	l := m.lobbies[code]
	l.removeMember(id)
	l.cancelCountdown(m.countdownTicks)
	if len(l.Members) == 0 {
		delete(m.lobbies, code)
		return nil
	}
	return l
}

// SessionOf 返回玩家所在的大厅
func (m *Manager) SessionOf(id PlayerID) (*Lobby, bool) {
	code, ok := m.memberOf[id]
	if !ok {
		return nil, false
	}
	l, ok := m.lobbies[code]
	return l, ok
}

func (m *Manager) Get(code string) (*Lobby, bool) {
	l, ok := m.lobbies[NormalizeCode(code)]
	return l, ok
}

// Lobbies 按大厅码排序返回所有存活大厅
func (m *Manager) Lobbies() []*Lobby {
	out := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *Manager) Len() int { return len(m.lobbies) }

// setCountdownTicks 管理接口热更新倒计时长度，只影响之后创建或重置的大厅
func (m *Manager) setCountdownTicks(n int) { m.countdownTicks = n }
