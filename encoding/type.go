package encoding

import (
	"fmt"
	"strings"
)

// Type is the element type of a single typed memory access.
type Type int

const (
	TYPE_BYTE Type = iota
	TYPE_BYTE2
	TYPE_BYTE4
	TYPE_BYTE8
	TYPE_POINTER
	TYPE_FLOAT
	TYPE_DOUBLE
	TYPE_ASCII
	TYPE_UNICODE
)

type Category int

const (
	CATEGORY_HEX Category = iota
	CATEGORY_DECIMAL
	CATEGORY_STRING
)

var typeNames = [...]string{
	TYPE_BYTE:    "byte",
	TYPE_BYTE2:   "byte2",
	TYPE_BYTE4:   "byte4",
	TYPE_BYTE8:   "byte8",
	TYPE_POINTER: "pointer",
	TYPE_FLOAT:   "float",
	TYPE_DOUBLE:  "double",
	TYPE_ASCII:   "ascii",
	TYPE_UNICODE: "unicode",
}

// Types lists every memory type in declaration order.
func Types() []Type {
	types := make([]Type, len(typeNames))
	for i := range types {
		types[i] = Type(i)
	}
	return types
}

func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "dword" {
		return TYPE_POINTER, nil
	}
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

func (t Type) Valid() bool {
	return t >= TYPE_BYTE && t <= TYPE_UNICODE
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

func (t Type) Category() Category {
	switch t {
	case TYPE_FLOAT, TYPE_DOUBLE:
		return CATEGORY_DECIMAL
	case TYPE_ASCII, TYPE_UNICODE:
		return CATEGORY_STRING
	}
	return CATEGORY_HEX
}

// Size is the width in bytes of numeric types; strings report 0.
func (t Type) Size(ptrSize uint64) uint64 {
	switch t {
	case TYPE_BYTE:
		return 1
	case TYPE_BYTE2:
		return 2
	case TYPE_BYTE4, TYPE_FLOAT:
		return 4
	case TYPE_BYTE8, TYPE_DOUBLE:
		return 8
	case TYPE_POINTER:
		return ptrSize
	}
	return 0
}

func (c Category) String() string {
	switch c {
	case CATEGORY_HEX:
		return "hex"
	case CATEGORY_DECIMAL:
		return "decimal"
	case CATEGORY_STRING:
		return "string"
	}
	return "unknown"
}
