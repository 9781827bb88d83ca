package server

import "github.com/pkg/errors"

// ErrorKind 错误分类，决定是否回复给发送方
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindCapacity
	KindStateConflict // 客户端状态不同步，静默忽略
	KindUnknownCommand
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindStateConflict:
		return "state_conflict"
	case KindUnknownCommand:
		return "unknown_command"
	default:
		return "unknown"
	}
}

// Error 业务错误：Kind 用于分类，Msg 是发给客户端的文本
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrInvalidUsername       = &Error{Kind: KindValidation, Msg: "Invalid or duplicate username"}
	ErrAlreadyInSession      = &Error{Kind: KindValidation, Msg: "Invalid or duplicate username"}
	ErrDuplicateRegistration = &Error{Kind: KindValidation, Msg: "Player already registered"}
	ErrInvalidToken          = &Error{Kind: KindValidation, Msg: "Invalid reconnect token"}
	ErrUnknownPlayer         = &Error{Kind: KindNotFound, Msg: "Unknown player"}
	ErrSessionNotFound       = &Error{Kind: KindNotFound, Msg: "Lobby not found"}
	ErrSessionFull           = &Error{Kind: KindCapacity, Msg: "Lobby is full"}
	ErrNotInSession          = &Error{Kind: KindStateConflict, Msg: "Not in a lobby"}
	ErrNotHost               = &Error{Kind: KindStateConflict, Msg: "Only the host can do that"}
	ErrNotReady              = &Error{Kind: KindStateConflict, Msg: "Not all players are ready"}
	ErrWrongState            = &Error{Kind: KindStateConflict, Msg: "Not allowed in the current lobby state"}
	ErrStaleAddress          = &Error{Kind: KindStateConflict, Msg: "Player has moved to another address"}
	ErrUnknownCommand        = &Error{Kind: KindUnknownCommand, Msg: "Unknown command"}
)

// KindOf 提取错误分类；非业务错误返回 false
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsSilent 报告该错误是否不应回复给客户端
func IsSilent(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindStateConflict
}
