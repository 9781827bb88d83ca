package server

import (
	"net"
	"strings"
)

// dispatch 按消息类型分发到对应处理函数。调用方持有 mu。
func (s *Server) dispatch(from net.Addr, msg *InboundMessage, out *outbox) error {
	id := s.identityFor(from)
	typ := parseMessageType(msg.Type)
	if p, ok := s.dir.Get(id); ok {
		// 玩家重连到新地址后，旧地址上的消息不再代表该玩家
		if !SameAddr(p.Addr, from) && typ != MsgReconnect {
			return ErrStaleAddress
		}
		s.dir.Touch(id, s.now())
		s.tokens.Refresh(p.Token, id)
	}

	switch typ {
	case MsgCreateLobby:
		return s.handleCreateLobby(id, from, msg, out)
	case MsgFindLobby:
		return s.handleFindLobby(from, msg, out)
	case MsgJoinLobby:
		return s.handleJoinLobby(id, from, msg, out)
	case MsgExitLobby:
		return s.handleExitLobby(id, out)
	case MsgChatMessage:
		return s.handleChatMessage(id, msg, out)
	case MsgToggleReady:
		return s.handleToggleReady(id, out)
	case MsgCharacterSelect:
		return s.handleCharacterSelect(id, msg, out)
	case MsgStartGame:
		return s.handleStartGame(id)
	case MsgPlayerInput:
		return s.handlePlayerInput(id, msg)
	case MsgPlayerReady:
		return s.handlePlayerReady(id, from, out)
	case MsgEnemyStatus:
		return s.handleEnemyStatus(id, msg)
	case MsgReconnect:
		return s.handleReconnect(from, msg, out)
	case MsgUnknown:
		fallthrough
	default:
		s.metrics.IncUnknownCommands()
		return ErrUnknownCommand
	}
}

func (s *Server) handleCreateLobby(id PlayerID, from net.Addr, msg *InboundMessage, out *outbox) error {
	if !ValidUsername(msg.Username) {
		return ErrInvalidUsername
	}
	l, err := s.lobbies.CreateSession(id, msg.Username, from)
	if err != nil {
		return err
	}
	p, _ := s.dir.Get(id)
	p.Token = s.tokens.Issue(id)
	s.metrics.IncLobbiesCreated()
	Log.Infof("%s created lobby %s", msg.Username, l.Code)
	out.send(from, s.lobbyJoined(l, id))
	return nil
}

func (s *Server) handleFindLobby(from net.Addr, msg *InboundMessage, out *outbox) error {
	code := NormalizeCode(msg.LobbyID)
	status := "not found"
	if s.lobbies.LookupSession(code) != nil {
		status = "found"
	}
	out.send(from, LobbyStatus{Type: typeLobbyStatus, LobbyID: code, Status: status})
	return nil
}

func (s *Server) handleJoinLobby(id PlayerID, from net.Addr, msg *InboundMessage, out *outbox) error {
	if !ValidUsername(msg.Username) {
		return ErrInvalidUsername
	}
	l, err := s.lobbies.JoinSession(id, msg.LobbyID, msg.Username, from)
	if err != nil {
		return err
	}
	p, _ := s.dir.Get(id)
	p.Token = s.tokens.Issue(id)
	Log.Infof("%s joined lobby %s", msg.Username, l.Code)
	s.broadcast(l, s.lobbyUpdate(l), out)
	out.send(from, s.lobbyJoined(l, id))
	return nil
}

func (s *Server) handleExitLobby(id PlayerID, out *outbox) error {
	if _, ok := s.lobbies.SessionOf(id); !ok {
		return ErrNotInSession
	}
	s.leave(id, out)
	return nil
}

// truncateRunes 按字符截断
func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (s *Server) handleChatMessage(id PlayerID, msg *InboundMessage, out *outbox) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return ErrNotInSession
	}
	text := strings.TrimSpace(truncateRunes(msg.Text, MaxChatLen))
	if text == "" {
		return nil
	}
	p, _ := s.dir.Get(id)
	entry := ChatEntry{
		Player:    p.Username,
		Text:      text,
		Timestamp: float64(s.now().UnixNano()) / 1e9,
	}
	l.AppendChat(entry)
	s.broadcast(l, ChatMessage{Type: typeChatMessage, ChatEntry: entry}, out)
	return nil
}

func (s *Server) handleToggleReady(id PlayerID, out *outbox) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return ErrNotInSession
	}
	if l.State == StateActive {
		return ErrWrongState
	}
	ready, err := s.dir.ToggleReady(id)
	if err != nil {
		return err
	}
	if !ready && l.State == StateCountdown {
		l.cancelCountdown(s.countdownTicks)
		Log.Infof("lobby %s countdown cancelled", l.Code)
	}
	s.broadcast(l, s.lobbyUpdate(l), out)
	return nil
}

func (s *Server) handleCharacterSelect(id PlayerID, msg *InboundMessage, out *outbox) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return ErrNotInSession
	}
	if l.State != StateForming {
		return ErrWrongState
	}
	tag := strings.TrimSpace(msg.Character)
	if tag == "" {
		tag = DefaultCharacter
	}
	if err := s.dir.SetCharacter(id, tag); err != nil {
		return err
	}
	s.broadcast(l, CharacterChanged{Type: typeCharacterChanged, ID: string(id), Character: tag}, out)
	s.broadcast(l, s.lobbyUpdate(l), out)
	return nil
}

func (s *Server) handleStartGame(id PlayerID) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return ErrNotInSession
	}
	switch {
	case l.Host != id:
		return ErrNotHost
	case l.State != StateForming:
		return ErrWrongState
	case len(l.Members) != MaxMembers, !l.AllReady(s.dir):
		return ErrNotReady
	}
	s.startCountdown(l)
	return nil
}

// handlePlayerInput 输入可能与解散竞争，找不到世界时静默忽略
func (s *Server) handlePlayerInput(id PlayerID, msg *InboundMessage) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return nil
	}
	w, ok := s.worlds[l.Code]
	if !ok {
		return nil
	}
	switch w.ApplyInput(id, msg.Input()) {
	case inputApplied:
		s.metrics.IncInputsAccepted()
	case inputStale:
		s.metrics.IncStaleInputs()
	}
	return nil
}

// handlePlayerReady 客户端进入对局场景后，下发所有玩家与 NPC 的生成信息
func (s *Server) handlePlayerReady(id PlayerID, from net.Addr, out *outbox) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return ErrNotInSession
	}
	w, ok := s.worlds[l.Code]
	if !ok {
		return ErrWrongState
	}
	for _, m := range l.Members {
		p, ok := s.dir.Get(m)
		if !ok {
			continue
		}
		var pos Vec2
		if k, ok := w.Players[m]; ok {
			pos = k.Position
		}
		character := p.Character
		if character == "" {
			character = DefaultCharacter
		}
		out.send(from, SpawnPlayer{
			Type:      typeSpawnPlayer,
			ID:        string(m),
			Position:  pos,
			IsLocal:   m == id,
			Username:  p.Username,
			Character: character,
		})
	}
	for _, eid := range w.EnemyOrder {
		e := w.Enemies[eid]
		out.send(from, SpawnEnemy{
			Type:      typeSpawnEnemy,
			EnemyID:   eid,
			IsHost:    l.Host == id,
			Position:  e.Position,
			Character: e.Character,
		})
	}
	return nil
}

// handleEnemyStatus 只有房主可以驱动 NPC
func (s *Server) handleEnemyStatus(id PlayerID, msg *InboundMessage) error {
	l, ok := s.lobbies.SessionOf(id)
	if !ok {
		return nil
	}
	w, ok := s.worlds[l.Code]
	if !ok {
		return nil
	}
	if l.Host != id {
		return ErrNotHost
	}
	w.ApplyEnemyStatus(msg.EnemyID, msg.Input())
	return nil
}

// handleReconnect 凭令牌把新地址绑定到原玩家
func (s *Server) handleReconnect(from net.Addr, msg *InboundMessage, out *outbox) error {
	target, ok := s.tokens.Resolve(msg.Token)
	if !ok {
		return ErrInvalidToken
	}
	p, ok := s.dir.Get(target)
	if !ok {
		s.tokens.Revoke(msg.Token)
		return ErrInvalidToken
	}
	l, ok := s.lobbies.SessionOf(target)
	if !ok {
		return ErrInvalidToken
	}
	key := IdentityOf(from)
	if key != target {
		if _, taken := s.dir.Get(key); taken {
			return ErrAlreadyInSession
		}
		if bound, ok := s.bindings[key]; ok && bound != target {
			return ErrAlreadyInSession
		}
	}
	if old := IdentityOf(p.Addr); s.bindings[old] == target {
		delete(s.bindings, old)
	}
	if key != target {
		s.bindings[key] = target
	}
	p.Addr = from
	p.LastActive = s.now()
	Log.Infof("%s reconnected to lobby %s from %s", p.Username, l.Code, from.String())

	out.send(from, s.lobbyJoined(l, target))
	if l.State == StateActive {
		out.send(from, GameStart{Type: typeGame})
	}
	return nil
}
