package server

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestJSONCodec_DecodePartialInput(t *testing.T) {
	c, err := NewCodec(CodecJSON)
	require.NoError(t, err)

	msg, err := c.Decode([]byte(`{"type":"player_input","velocity":[1.5,-2],"direction":"left"}`))
	require.NoError(t, err)
	assert.Equal(t, MsgPlayerInput, parseMessageType(msg.Type))

	in := msg.Input()
	assert.Nil(t, in.Position)
	assert.Nil(t, in.AnimState)
	require.NotNil(t, in.Velocity)
	assert.Equal(t, Vec2{1.5, -2}, *in.Velocity)
	require.NotNil(t, in.Direction)
	assert.Equal(t, "left", *in.Direction)
}

func TestJSONCodec_EncodeFlattensEmbedded(t *testing.T) {
	c, _ := NewCodec(CodecJSON)
	b, err := c.Encode(PlayerPosition{
		Type:       typePlayerPosition,
		ID:         "p1",
		Kinematics: Kinematics{Position: Vec2{1, 2}, AnimState: AnimIdle, Direction: DirectionRight},
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"player_position","id":"p1","position":[1,2],"velocity":[0,0],"anim_state":"idle","direction":"right"}`,
		string(b))

	b, err = c.Encode(ChatMessage{Type: typeChatMessage, ChatEntry: ChatEntry{Player: "alice", Text: "hi", Timestamp: 1.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"chat_message","player":"alice","text":"hi","timestamp":1.5}`, string(b))
}

func TestJSONCodec_DecodeError(t *testing.T) {
	c, _ := NewCodec(CodecJSON)
	_, err := c.Decode([]byte(`[1,2`))
	assert.Error(t, err)
}

func TestMsgpackCodec_Decode(t *testing.T) {
	c, err := NewCodec(CodecMsgpack)
	require.NoError(t, err)

	raw, err := msgpack.Marshal(map[string]any{
		"type":     "join_lobby",
		"lobby_id": "abcd",
		"username": "bob",
		"position": []float64{3, 4},
	})
	require.NoError(t, err)

	msg, err := c.Decode(raw)
	require.NoError(t, err)
	want := &InboundMessage{Type: "join_lobby", LobbyID: "abcd", Username: "bob", Position: &Vec2{3, 4}}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("decoded message did not match; diff:\n%s", diff)
	}
}

func TestMsgpackCodec_Encode(t *testing.T) {
	c, _ := NewCodec(CodecMsgpack)
	b, err := c.Encode(errorMessage("Lobby not found"))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, msgpack.Unmarshal(b, &out))
	assert.Equal(t, "error", out["type"])
	assert.Equal(t, "Lobby not found", out["message"])
}

func TestCodec_Binary(t *testing.T) {
	j, _ := NewCodec(CodecJSON)
	m, _ := NewCodec(CodecMsgpack)
	assert.False(t, j.Binary())
	assert.True(t, m.Binary())
}

func TestNewCodec_Unknown(t *testing.T) {
	_, err := NewCodec("xml")
	assert.Error(t, err)
}

func TestParseMessageType(t *testing.T) {
	for name, want := range messageTypes {
		assert.Equal(t, want, parseMessageType(name))
	}
	assert.Equal(t, MsgUnknown, parseMessageType(""))
	assert.Equal(t, MsgUnknown, parseMessageType("CREATE_LOBBY"))
}
