package server

import (
	"strings"

	"github.com/google/uuid"
)

const (
	AnimIdle       = "idle"
	DirectionRight = "right"
)

// Kinematics 实体的运动学快照
type Kinematics struct {
	Position  Vec2   `json:"position" msgpack:"position"`
	Velocity  Vec2   `json:"velocity" msgpack:"velocity"`
	AnimState string `json:"anim_state" msgpack:"anim_state"`
	Direction string `json:"direction" msgpack:"direction"`
}

// apply 只覆盖输入中出现的字段
func (k *Kinematics) apply(in PlayerInput) {
	if in.Position != nil {
		k.Position = *in.Position
	}
	if in.Velocity != nil {
		k.Velocity = *in.Velocity
	}
	if in.AnimState != nil {
		k.AnimState = *in.AnimState
	}
	if in.Direction != nil {
		k.Direction = *in.Direction
	}
}

// EnemyState 非玩家实体，额外带皮肤
type EnemyState struct {
	Kinematics
	Character string `json:"character" msgpack:"character"`
}

// WorldConfig 世界初始化参数
type WorldConfig struct {
	SpawnPoints      []Vec2
	EnemiesEnabled   bool
	EnemyCount       int
	EnemySpawnPoints []Vec2
	EnemyCharacter   string
}

// DefaultWorldConfig 两个出生点 + 一只骷髅
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		SpawnPoints:      []Vec2{{271, 385}, {716, 321}},
		EnemiesEnabled:   true,
		EnemyCount:       1,
		EnemySpawnPoints: []Vec2{{1031, 349}},
		EnemyCharacter:   "Skeleton",
	}
}

// EnemyIDGenerator 生成 NPC 标识
type EnemyIDGenerator func() string

func randomEnemyID() string {
	return strings.ToUpper(uuid.NewString()[:4])
}

// inputResult ApplyInput 的处理结果，用于指标统计
type inputResult int

const (
	inputApplied inputResult = iota
	inputUnknown
	inputStale
)

// World 开局后大厅的权威世界状态。所有字段由 Server.mu 保护。
type World struct {
	Code        string
	Players     map[PlayerID]*Kinematics
	PlayerOrder []PlayerID
	Enemies     map[string]*EnemyState
	EnemyOrder  []string

	enemiesEnabled bool
	lastSeq        map[PlayerID]int64
}

// NewWorld 按加入顺序分配出生点，初始速度为零、待机、朝右
func NewWorld(l *Lobby, cfg WorldConfig, newID EnemyIDGenerator) *World {
	if newID == nil {
		newID = randomEnemyID
	}
	w := &World{
		Code:           l.Code,
		Players:        make(map[PlayerID]*Kinematics, len(l.Members)),
		Enemies:        make(map[string]*EnemyState),
		enemiesEnabled: cfg.EnemiesEnabled,
		lastSeq:        make(map[PlayerID]int64),
	}
	for i, id := range l.Members {
		var pos Vec2
		if n := len(cfg.SpawnPoints); n > 0 {
			pos = cfg.SpawnPoints[i%n]
		}
		w.Players[id] = &Kinematics{Position: pos, AnimState: AnimIdle, Direction: DirectionRight}
		w.PlayerOrder = append(w.PlayerOrder, id)
	}
	if !cfg.EnemiesEnabled {
		return w
	}
	for i := 0; i < cfg.EnemyCount; i++ {
		id := newID()
		for _, taken := w.Enemies[id]; taken; _, taken = w.Enemies[id] {
			id = newID()
		}
		var pos Vec2
		if n := len(cfg.EnemySpawnPoints); n > 0 {
			pos = cfg.EnemySpawnPoints[i%n]
		}
		w.Enemies[id] = &EnemyState{
			Kinematics: Kinematics{Position: pos, AnimState: AnimIdle, Direction: DirectionRight},
			Character:  cfg.EnemyCharacter,
		}
		w.EnemyOrder = append(w.EnemyOrder, id)
	}
	return w
}

// ApplyInput 更新成员的运动学状态；未知成员或过期序列号直接忽略
func (w *World) ApplyInput(id PlayerID, in PlayerInput) inputResult {
	k, ok := w.Players[id]
	if !ok {
		return inputUnknown
	}
	if in.Seq > 0 {
		if in.Seq <= w.lastSeq[id] {
			return inputStale
		}
		w.lastSeq[id] = in.Seq
	}
	k.apply(in)
	return inputApplied
}

// ApplyEnemyStatus 由房主驱动 NPC 状态
func (w *World) ApplyEnemyStatus(enemyID string, in PlayerInput) bool {
	e, ok := w.Enemies[enemyID]
	if !ok {
		return false
	}
	e.apply(in)
	return true
}

// RemovePlayer 成员中途离开时移除其实体
func (w *World) RemovePlayer(id PlayerID) {
	if _, ok := w.Players[id]; !ok {
		return
	}
	delete(w.Players, id)
	delete(w.lastSeq, id)
	for i, p := range w.PlayerOrder {
		if p == id {
			w.PlayerOrder = append(w.PlayerOrder[:i], w.PlayerOrder[i+1:]...)
			break
		}
	}
}

// Snapshot 生成一次 Tick 要发给每个成员的消息（按成员顺序）
func (w *World) Snapshot() []any {
	msgs := make([]any, 0, len(w.PlayerOrder)+1)
	for _, id := range w.PlayerOrder {
		msgs = append(msgs, PlayerPosition{Type: typePlayerPosition, ID: string(id), Kinematics: *w.Players[id]})
	}
	if w.enemiesEnabled && len(w.Enemies) > 0 {
		enemies := make(map[string]EnemyState, len(w.Enemies))
		for id, e := range w.Enemies {
			enemies[id] = *e
		}
		msgs = append(msgs, EnemySync{Type: typeEnemySync, Enemies: enemies})
	}
	return msgs
}
