package server

import (
	"encoding/json"
	"net/http"
)

// LobbyView 管理接口中单个大厅的只读视图
type LobbyView struct {
	Code      string       `json:"code"`
	State     string       `json:"state"`
	Countdown int          `json:"countdown"`
	Players   []PlayerInfo `json:"players"`
	Host      string       `json:"host"`
	ChatLen   int          `json:"chat_len"`
	Enemies   int          `json:"enemies"`
}

// LobbiesSnapshot 所有存活大厅的快照
func (s *Server) LobbiesSnapshot() []LobbyView {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobbies := s.lobbies.Lobbies()
	views := make([]LobbyView, 0, len(lobbies))
	for _, l := range lobbies {
		v := LobbyView{
			Code:      l.Code,
			State:     l.State.String(),
			Countdown: l.Countdown,
			Players:   s.roster(l),
			ChatLen:   len(l.Chat),
		}
		if h, ok := s.dir.Get(l.Host); ok {
			v.Host = h.Username
		}
		if w, ok := s.worlds[l.Code]; ok {
			v.Enemies = len(w.Enemies)
		}
		views = append(views, v)
	}
	return views
}

// RuntimeConfig 可热更新的规则
type RuntimeConfig struct {
	CountdownTicks *int  `json:"countdownTicks,omitempty"`
	EnemiesEnabled *bool `json:"enemiesEnabled,omitempty"`
}

func (s *Server) runtimeConfig() RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticks, enemies := s.countdownTicks, s.worldCfg.EnemiesEnabled
	return RuntimeConfig{CountdownTicks: &ticks, EnemiesEnabled: &enemies}
}

// applyRuntimeConfig 只影响之后开始的倒计时和对局
func (s *Server) applyRuntimeConfig(c RuntimeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CountdownTicks != nil && *c.CountdownTicks >= 0 {
		s.countdownTicks = *c.CountdownTicks
		s.lobbies.setCountdownTicks(*c.CountdownTicks)
	}
	if c.EnemiesEnabled != nil {
		s.worldCfg.EnemiesEnabled = *c.EnemiesEnabled
	}
}

// HandleAdminConfig 规则的读取与更新（热更新）
// GET  /admin/config  返回当前配置
// POST /admin/config  以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.runtimeConfig())
	case http.MethodPost:
		var body RuntimeConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.CountdownTicks != nil && *body.CountdownTicks < 0 {
			http.Error(w, "countdownTicks must not be negative", http.StatusBadRequest)
			return
		}
		s.applyRuntimeConfig(body)
		cur := s.runtimeConfig()
		Log.Infof("config updated: countdownTicks=%d enemiesEnabled=%t", *cur.CountdownTicks, *cur.EnemiesEnabled)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleLobbies GET /admin/lobbies
func (s *Server) HandleLobbies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.LobbiesSnapshot())
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	lobbies, players, worlds := s.lobbies.Len(), s.dir.Len(), len(s.worlds)
	s.mu.Unlock()
	writeJSON(w, map[string]any{
		"lobbies": lobbies,
		"players": players,
		"games":   worlds,
		"metrics": s.metrics.Snapshot(),
	})
}

// AdminMux 管理与监控接口，另挂 /ws 网关（可为 nil）
func (s *Server) AdminMux(ws http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if ws != nil {
		mux.Handle("/ws", ws)
	}
	mux.HandleFunc("/admin/config", s.HandleAdminConfig)
	mux.HandleFunc("/admin/lobbies", s.HandleLobbies)
	mux.HandleFunc("/metrics", s.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
