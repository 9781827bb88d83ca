package server

import "time"

// runWorld 对局的 Tick 循环：每个周期把世界快照发给所有成员。
// 世界从 worlds 表中移除（大厅解散）或服务关闭时退出。
func (s *Server) runWorld(w *World, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		start := time.Now()
		out, ok := s.worldTick(w)
		if !ok {
			Log.Debugf("world %s tick loop stopped", w.Code)
			return
		}
		s.flush(out)
		s.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}

// worldTick 持锁生成本次 Tick 的出站消息
func (s *Server) worldTick(w *World) (outbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.worlds[w.Code] != w {
		return nil, false
	}
	l, ok := s.lobbies.Get(w.Code)
	if !ok {
		return nil, false
	}
	snapshot := w.Snapshot()
	var out outbox
	for _, msg := range snapshot {
		s.broadcast(l, msg, &out)
	}
	return out, true
}
