package server

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec 负责消息与字节之间的转换
type Codec interface {
	Decode(data []byte) (*InboundMessage, error)
	Encode(msg any) ([]byte, error)
	// Binary 为 true 时输出不是合法 UTF-8 文本
	Binary() bool
}

// NewCodec 按名称选择编码格式
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, errors.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Decode(data []byte) (*InboundMessage, error) {
	var m InboundMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decoding json message")
	}
	return &m, nil
}

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	return b, errors.Wrap(err, "encoding json message")
}

// msgpackCodec 二进制格式，字段名与 JSON 一致
type msgpackCodec struct{}

func (msgpackCodec) Decode(data []byte) (*InboundMessage, error) {
	var m InboundMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decoding msgpack message")
	}
	return &m, nil
}

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msg any) ([]byte, error) {
	b, err := msgpack.Marshal(msg)
	return b, errors.Wrap(err, "encoding msgpack message")
}
