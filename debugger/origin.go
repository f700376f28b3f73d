package debugger

import (
	"strconv"
	"strings"
)

// Origin is the start of a pointer chain: a module base or an absolute
// address.
type Origin struct {
	Module string
	Addr   uint64
}

func AtModule(name string) Origin {
	return Origin{Module: name}
}

func AtAddr(addr uint64) Origin {
	return Origin{Addr: addr}
}

// ParseOrigin reads a 0x-prefixed hex number as an address and anything
// else as a module name.
func ParseOrigin(s string) Origin {
	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		if addr, err := strconv.ParseUint(hex, 16, 64); err == nil {
			return AtAddr(addr)
		}
	}
	return AtModule(s)
}

func (o Origin) IsModule() bool {
	return o.Module != ""
}

func (o Origin) String() string {
	if o.IsModule() {
		return o.Module
	}
	return "0x" + strconv.FormatUint(o.Addr, 16)
}
