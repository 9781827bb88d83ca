package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	DatagramsIn     int64 // 收到的数据报
	DecodeErrors    int64 // 无法解码的数据报
	RateLimited     int64 // 因限流被丢弃
	UnknownCommands int64 // 未知消息类型
	MessagesOut     int64 // 成功发送的消息
	SendErrors      int64 // 发送失败（对端不可达等）
	InputsAccepted  int64 // 被采纳的 player_input
	StaleInputs     int64 // 因旧序列号被忽略的输入
	LobbiesCreated  int64
	GamesStarted    int64
	TickCount       int64 // 所有世界累计 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
}

func (m *Metrics) IncDatagramsIn()     { atomic.AddInt64(&m.DatagramsIn, 1) }
func (m *Metrics) IncDecodeErrors()    { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncRateLimited()     { atomic.AddInt64(&m.RateLimited, 1) }
func (m *Metrics) IncUnknownCommands() { atomic.AddInt64(&m.UnknownCommands, 1) }
func (m *Metrics) IncMessagesOut()     { atomic.AddInt64(&m.MessagesOut, 1) }
func (m *Metrics) IncSendErrors()      { atomic.AddInt64(&m.SendErrors, 1) }
func (m *Metrics) IncInputsAccepted()  { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *Metrics) IncStaleInputs()     { atomic.AddInt64(&m.StaleInputs, 1) }
func (m *Metrics) IncLobbiesCreated()  { atomic.AddInt64(&m.LobbiesCreated, 1) }
func (m *Metrics) IncGamesStarted()    { atomic.AddInt64(&m.GamesStarted, 1) }
func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"datagrams_in":     atomic.LoadInt64(&m.DatagramsIn),
		"decode_errors":    atomic.LoadInt64(&m.DecodeErrors),
		"rate_limited":     atomic.LoadInt64(&m.RateLimited),
		"unknown_commands": atomic.LoadInt64(&m.UnknownCommands),
		"messages_out":     atomic.LoadInt64(&m.MessagesOut),
		"send_errors":      atomic.LoadInt64(&m.SendErrors),
		"inputs_accepted":  atomic.LoadInt64(&m.InputsAccepted),
		"stale_inputs":     atomic.LoadInt64(&m.StaleInputs),
		"lobbies_created":  atomic.LoadInt64(&m.LobbiesCreated),
		"games_started":    atomic.LoadInt64(&m.GamesStarted),
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
	}
}
