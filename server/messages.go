package server

import "net"

// MessageType 入站消息种类（封闭枚举）
type MessageType int

const (
	MsgUnknown MessageType = iota
	MsgCreateLobby
	MsgFindLobby
	MsgJoinLobby
	MsgExitLobby
	MsgChatMessage
	MsgToggleReady
	MsgCharacterSelect
	MsgStartGame
	MsgPlayerInput
	MsgPlayerReady
	MsgEnemyStatus
	MsgReconnect
)

var messageTypes = map[string]MessageType{
	"create_lobby":     MsgCreateLobby,
	"find_lobby":       MsgFindLobby,
	"join_lobby":       MsgJoinLobby,
	"exit_lobby":       MsgExitLobby,
	"chat_message":     MsgChatMessage,
	"toggle_ready":     MsgToggleReady,
	"character_select": MsgCharacterSelect,
	"start_game":       MsgStartGame,
	"player_input":     MsgPlayerInput,
	"player_ready":     MsgPlayerReady,
	"enemy_status":     MsgEnemyStatus,
	"reconnect":        MsgReconnect,
}

func parseMessageType(s string) MessageType {
	if t, ok := messageTypes[s]; ok {
		return t
	}
	return MsgUnknown
}

// 出站消息类型字符串
const (
	typeLobbyJoined      = "lobby_joined"
	typeLobbyUpdate      = "lobby_update"
	typeLobbyStatus      = "lobby_status"
	typeChatMessage      = "chat_message"
	typeCharacterChanged = "character_changed"
	typeGame             = "game"
	typeSpawnPlayer      = "spawn_player"
	typeSpawnEnemy       = "spawn_enemy"
	typePlayerPosition   = "player_position"
	typeEnemySync        = "enemy_sync"
	typeError            = "error"
)

// PlayerInfo 大厅名单中的一项
type PlayerInfo struct {
	Username  string `json:"username" msgpack:"username"`
	Ready     bool   `json:"ready" msgpack:"ready"`
	Character string `json:"character" msgpack:"character"`
}

type LobbyJoined struct {
	Type        string       `json:"type" msgpack:"type"`
	LobbyID     string       `json:"lobby_id" msgpack:"lobby_id"`
	Host        bool         `json:"host" msgpack:"host"`
	Players     []PlayerInfo `json:"players" msgpack:"players"`
	ChatHistory []ChatEntry  `json:"chat_history" msgpack:"chat_history"`
	Token       string       `json:"token,omitempty" msgpack:"token,omitempty"`
}

type LobbyUpdate struct {
	Type      string       `json:"type" msgpack:"type"`
	Countdown int          `json:"countdown" msgpack:"countdown"`
	Players   []PlayerInfo `json:"players" msgpack:"players"`
}

type LobbyStatus struct {
	Type    string `json:"type" msgpack:"type"`
	LobbyID string `json:"lobby_id" msgpack:"lobby_id"`
	Status  string `json:"status" msgpack:"status"`
}

type ChatMessage struct {
	Type string `json:"type" msgpack:"type"`
	ChatEntry
}

type CharacterChanged struct {
	Type      string `json:"type" msgpack:"type"`
	ID        string `json:"id" msgpack:"id"`
	Character string `json:"character" msgpack:"character"`
}

type GameStart struct {
	Type string `json:"type" msgpack:"type"`
}

type SpawnPlayer struct {
	Type      string `json:"type" msgpack:"type"`
	ID        string `json:"id" msgpack:"id"`
	Position  Vec2   `json:"position" msgpack:"position"`
	IsLocal   bool   `json:"is_local" msgpack:"is_local"`
	Username  string `json:"username" msgpack:"username"`
	Character string `json:"character" msgpack:"character"`
}

type SpawnEnemy struct {
	Type      string `json:"type" msgpack:"type"`
	EnemyID   string `json:"enemy_id" msgpack:"enemy_id"`
	IsHost    bool   `json:"is_host" msgpack:"is_host"`
	Position  Vec2   `json:"position" msgpack:"position"`
	Character string `json:"character" msgpack:"character"`
}

type PlayerPosition struct {
	Type string `json:"type" msgpack:"type"`
	ID   string `json:"id" msgpack:"id"`
	Kinematics
}

type EnemySync struct {
	Type    string                `json:"type" msgpack:"type"`
	Enemies map[string]EnemyState `json:"enemies" msgpack:"enemies"`
}

type ErrorMessage struct {
	Type    string `json:"type" msgpack:"type"`
	Message string `json:"message" msgpack:"message"`
}

func errorMessage(msg string) ErrorMessage {
	return ErrorMessage{Type: typeError, Message: msg}
}

// Outbound 待发送的一条消息，在释放 Server.mu 之后统一编码发送
type Outbound struct {
	To  net.Addr
	Msg any
}

// outbox 处理一次请求过程中产生的出站消息
type outbox []Outbound

func (o *outbox) send(to net.Addr, msg any) {
	if to == nil {
		return
	}
	*o = append(*o, Outbound{To: to, Msg: msg})
}
