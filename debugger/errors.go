package debugger

import (
	"errors"
)

var (
	ErrModuleNotFound     = errors.New("module not found")
	ErrArgumentInvalid    = errors.New("argument invalid")
	ErrAddressInvalid     = errors.New("address invalid")
	ErrDialectUnsupported = errors.New("dialect unsupported")
	ErrClosed             = errors.New("debugger closed")
	ErrCommandRejected    = errors.New("command rejected")
)
