package server

import (
	"net"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 16

	// DefaultCharacter 未选择角色时下发给客户端的皮肤
	DefaultCharacter = "warrior"
)

// Player 已登记的玩家（大厅成员）
type Player struct {
	ID         PlayerID
	Username   string
	Ready      bool
	Character  string
	LastActive time.Time

	Addr  net.Addr // 当前发送地址，重连后会变化
	Token string   // 重连令牌
}

// Directory 玩家目录：PlayerID -> Player。
// 不自带锁，调用方必须持有 Server.mu。
type Directory struct {
	players map[PlayerID]*Player
}

func NewDirectory() *Directory {
	return &Directory{players: make(map[PlayerID]*Player)}
}

// Register 登记玩家，已存在则返回 ErrDuplicateRegistration。now 来自服务端时钟。
func (d *Directory) Register(id PlayerID, username string, addr net.Addr, now time.Time) (*Player, error) {
	if _, ok := d.players[id]; ok {
		return nil, ErrDuplicateRegistration
	}
	p := &Player{ID: id, Username: username, Addr: addr, LastActive: now}
	d.players[id] = p
	return p, nil
}

// Unregister 注销玩家，不存在时什么也不做
func (d *Directory) Unregister(id PlayerID) {
	delete(d.players, id)
}

func (d *Directory) Get(id PlayerID) (*Player, bool) {
	p, ok := d.players[id]
	return p, ok
}

func (d *Directory) Len() int { return len(d.players) }

// ToggleReady 翻转准备状态，返回新值
func (d *Directory) ToggleReady(id PlayerID) (bool, error) {
	p, ok := d.players[id]
	if !ok {
		return false, ErrUnknownPlayer
	}
	p.Ready = !p.Ready
	return p.Ready, nil
}

func (d *Directory) SetCharacter(id PlayerID, tag string) error {
	p, ok := d.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	p.Character = tag
	return nil
}

// Touch 刷新最后活跃时间
func (d *Directory) Touch(id PlayerID, now time.Time) {
	if p, ok := d.players[id]; ok {
		p.LastActive = now
	}
}

// ValidUsername 3-16 个字符，且只能是字母或数字
func ValidUsername(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minUsernameLen || n > maxUsernameLen {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
