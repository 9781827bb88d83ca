package server

// Vec2 二维向量，线上格式为 [x, y]
type Vec2 [2]float64

// PlayerInput 客户端上报的局部状态，nil 字段表示保持原值
type PlayerInput struct {
	Position  *Vec2
	Velocity  *Vec2
	AnimState *string
	Direction *string
	Seq       int64 // 客户端本地序列号，0 表示不做乱序检查
}

// InboundMessage 入站消息的统一结构，按 Type 区分
// 示例：{"type":"player_input","position":[10,20],"seq":42}
type InboundMessage struct {
	Type      string  `json:"type" msgpack:"type"`
	Username  string  `json:"username,omitempty" msgpack:"username,omitempty"`
	LobbyID   string  `json:"lobby_id,omitempty" msgpack:"lobby_id,omitempty"`
	Text      string  `json:"text,omitempty" msgpack:"text,omitempty"`
	Character string  `json:"character,omitempty" msgpack:"character,omitempty"`
	Token     string  `json:"token,omitempty" msgpack:"token,omitempty"`
	EnemyID   string  `json:"enemy_id,omitempty" msgpack:"enemy_id,omitempty"`
	Position  *Vec2   `json:"position,omitempty" msgpack:"position,omitempty"`
	Velocity  *Vec2   `json:"velocity,omitempty" msgpack:"velocity,omitempty"`
	AnimState *string `json:"anim_state,omitempty" msgpack:"anim_state,omitempty"`
	Direction *string `json:"direction,omitempty" msgpack:"direction,omitempty"`
	Seq       int64   `json:"seq,omitempty" msgpack:"seq,omitempty"`
}

// Input 取出运动学相关字段
func (m *InboundMessage) Input() PlayerInput {
	return PlayerInput{
		Position:  m.Position,
		Velocity:  m.Velocity,
		AnimState: m.AnimState,
		Direction: m.Direction,
		Seq:       m.Seq,
	}
}
