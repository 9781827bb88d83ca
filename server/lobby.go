package server

// LobbyState 大厅生命周期状态
type LobbyState int

const (
	StateForming   LobbyState = iota // 等待成员、准备、聊天
	StateCountdown                   // 房主已开始，成员冻结为 2 人
	StateActive                      // 世界模拟运行中
)

func (s LobbyState) String() string {
	switch s {
	case StateForming:
		return "forming"
	case StateCountdown:
		return "countdown"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

const (
	// MaxMembers 每个大厅最多两名玩家
	MaxMembers = 2
	// ChatHistoryOnJoin 加入时下发的最近聊天条数
	ChatHistoryOnJoin = 10
	// MaxChatLen 聊天文本截断长度（字符）
	MaxChatLen = 100
)

// ChatEntry 一条聊天记录，Timestamp 为 Unix 秒（带小数）
type ChatEntry struct {
	Player    string  `json:"player" msgpack:"player"`
	Text      string  `json:"text" msgpack:"text"`
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
}

// Lobby 两人大厅（会话）。所有字段由 Server.mu 保护。
type Lobby struct {
	Code      string
	Host      PlayerID
	Members   []PlayerID // 按加入顺序
	Chat      []ChatEntry
	State     LobbyState
	Countdown int

	epoch   uint64 // 每次进入倒计时加一，旧的倒计时协程据此退出
	chatCap int
}

func newLobby(code string, host PlayerID, countdown, chatCap int) *Lobby {
	return &Lobby{
		Code:      code,
		Host:      host,
		Members:   []PlayerID{host},
		State:     StateForming,
		Countdown: countdown,
		chatCap:   chatCap,
	}
}

func (l *Lobby) IsFull() bool { return len(l.Members) >= MaxMembers }

// removeMember 移除成员；房主离开时转给最早加入的剩余成员
func (l *Lobby) removeMember(id PlayerID) bool {
	idx := -1
	for i, m := range l.Members {
		if m == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	l.Members = append(l.Members[:idx], l.Members[idx+1:]...)
	if l.Host == id && len(l.Members) > 0 {
		l.Host = l.Members[0]
	}
	return true
}

// AllReady 所有成员均已准备
func (l *Lobby) AllReady(dir *Directory) bool {
	for _, m := range l.Members {
		p, ok := dir.Get(m)
		if !ok || !p.Ready {
			return false
		}
	}
	return true
}

// AppendChat 追加聊天记录，超过上限时丢弃最旧的
func (l *Lobby) AppendChat(e ChatEntry) {
	l.Chat = append(l.Chat, e)
	if l.chatCap > 0 && len(l.Chat) > l.chatCap {
		l.Chat = append([]ChatEntry(nil), l.Chat[len(l.Chat)-l.chatCap:]...)
	}
}

// RecentChat 返回最近 n 条聊天（按时间先后），结果是副本
func (l *Lobby) RecentChat(n int) []ChatEntry {
	start := 0
	if len(l.Chat) > n {
		start = len(l.Chat) - n
	}
	out := make([]ChatEntry, len(l.Chat)-start)
	copy(out, l.Chat[start:])
	return out
}

// cancelCountdown 回到 Forming，正在运行的倒计时协程会在下一次检查时退出
func (l *Lobby) cancelCountdown(ticks int) {
	if l.State != StateCountdown {
		return
	}
	l.State = StateForming
	l.Countdown = ticks
	l.epoch++
}
