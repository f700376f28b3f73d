package encoding

import (
	"errors"
	"fmt"
)

var (
	ErrDecode      = errors.New("decode failed")
	ErrUnknownType = errors.New("unknown memory type")
	ErrUnsupported = errors.New("unsupported type")
	ErrShortBuffer = errors.New("short buffer")
)

// DecodeError is returned when a debugger reply does not carry the value
// that was asked for.
type DecodeError struct {
	Type   Type
	Addr   uint64
	Reason string
	Reply  string
}

func (e *DecodeError) Error() string {
	reply := e.Reply
	if len(reply) > 64 {
		reply = reply[:64] + "..."
	}
	return fmt.Sprintf("decode %v at %016X: %s (reply %q)", e.Type, e.Addr, e.Reason, reply)
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}
