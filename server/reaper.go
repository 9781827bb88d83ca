package server

import "time"

// runReaper 定期移除长时间没有任何消息的玩家（数据报没有断线通知）
func (s *Server) runReaper(timeout time.Duration) {
	defer s.wg.Done()
	interval := timeout / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		s.flush(s.reapIdle(timeout))
	}
}

func (s *Server) reapIdle(timeout time.Duration) outbox {
	var out outbox
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	now := s.now()
	for _, l := range s.lobbies.Lobbies() {
		// leave 会修改 Members，先拷贝
		members := append([]PlayerID(nil), l.Members...)
		for _, id := range members {
			p, ok := s.dir.Get(id)
			if !ok || now.Sub(p.LastActive) <= timeout {
				continue
			}
			Log.Infof("removing idle player %s from lobby %s", p.Username, l.Code)
			s.leave(id, &out)
		}
	}
	return out
}
